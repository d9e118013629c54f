package network

import (
	"context"
	"fmt"
	"time"

	"wallet-signer/internal/model"
	"wallet-signer/pkg/errno"

	"github.com/algorand/go-algorand-sdk/v2/client/v2/algod"
)

// DefaultMinFee 节点未返回 min-fee 时使用
const DefaultMinFee uint64 = 1000

// AlgodClient 基于 algod REST API 的 Node 实现
type AlgodClient struct {
	client *algod.Client
	now    func() time.Time
}

// NewAlgodClient 创建客户端
func NewAlgodClient(address, token string) (*AlgodClient, error) {
	c, err := algod.MakeClient(address, token)
	if err != nil {
		return nil, fmt.Errorf("创建 algod 客户端失败: %w", err)
	}
	return &AlgodClient{client: c, now: time.Now}, nil
}

func (a *AlgodClient) Params(ctx context.Context) (model.NetworkParams, error) {
	sp, err := a.client.SuggestedParams().Do(ctx)
	if err != nil {
		return model.NetworkParams{}, errno.ErrNetwork.Wrap(classify(err))
	}

	minFee := sp.MinFee
	if minFee == 0 {
		minFee = DefaultMinFee
	}
	return model.NetworkParams{
		FeePerByte:  uint64(sp.Fee),
		MinFee:      minFee,
		FirstValid:  uint64(sp.FirstRoundValid),
		LastValid:   uint64(sp.LastRoundValid),
		GenesisID:   sp.GenesisID,
		GenesisHash: append([]byte(nil), sp.GenesisHash...),
		FetchedAt:   a.now(),
	}, nil
}

func (a *AlgodClient) Account(ctx context.Context, address string) (model.AccountInfo, error) {
	acct, err := a.client.AccountInformation(address).Do(ctx)
	if err != nil {
		return model.AccountInfo{}, errno.ErrNetwork.Wrap(classify(err))
	}

	info := model.AccountInfo{
		Address:    address,
		Amount:     acct.Amount,
		MinBalance: acct.MinBalance,
		Assets:     make(map[uint64]uint64, len(acct.Assets)),
	}
	for _, h := range acct.Assets {
		info.Assets[h.AssetId] = h.Amount
	}
	return info, nil
}

// SubmitRaw 返回 *NodeError 以便上层区分网络故障与拒绝
func (a *AlgodClient) SubmitRaw(ctx context.Context, raw []byte) (string, error) {
	txID, err := a.client.SendRawTransaction(raw).Do(ctx)
	if err != nil {
		return "", classify(err)
	}
	return txID, nil
}
