package cmd

import (
	"fmt"
	"time"

	"wallet-signer/internal/model"
	"wallet-signer/pkg/wallet/types"
)

// toPlanFile model.Plan -> build-tx 输出文件
func toPlanFile(plan model.Plan, assetDecimals int32, now time.Time) types.UnsignedPlan {
	out := types.UnsignedPlan{
		GenesisID:     plan.Params.GenesisID,
		FirstValid:    plan.Params.FirstValid,
		LastValid:     plan.Params.LastValid,
		TotalFee:      plan.TotalFee,
		TopUp:         plan.TopUp,
		AssetDecimals: assetDecimals,
		CreatedAt:     now.UTC(),
	}
	for _, tx := range plan.Transactions {
		m := tx.Mirror
		out.Transactions = append(out.Transactions, types.UnsignedTransaction{
			TxID:    m.TxID,
			Type:    string(m.Type),
			From:    m.Sender,
			To:      m.Receiver,
			Amount:  m.Amount,
			Fee:     m.Fee,
			AssetID: m.AssetID,
			Bytes:   tx.Bytes,
		})
	}
	return out
}

// fromPlanFile 按字节重新解码每笔交易并核对交易 ID
func fromPlanFile(f types.UnsignedPlan) ([]model.SignableTransaction, error) {
	if len(f.Transactions) == 0 {
		return nil, fmt.Errorf("计划文件中没有交易")
	}
	out := make([]model.SignableTransaction, 0, len(f.Transactions))
	for i, tx := range f.Transactions {
		signable, err := decodeSignable(tx.Bytes, tx.TxID)
		if err != nil {
			return nil, fmt.Errorf("交易 #%d: %w", i+1, err)
		}
		out = append(out, signable)
	}
	return out, nil
}

func toSignedFile(signed []model.SignedBytes) types.SignedPlan {
	var out types.SignedPlan
	for _, s := range signed {
		out.Transactions = append(out.Transactions, types.SignedTransaction{TxID: s.TxID, Raw: s.Bytes, Partial: s.Partial})
	}
	return out
}

func fromSignedFile(f types.SignedPlan) []model.SignedBytes {
	out := make([]model.SignedBytes, 0, len(f.Transactions))
	for _, s := range f.Transactions {
		out = append(out, model.SignedBytes{Bytes: s.Raw, TxID: s.TxID, Partial: s.Partial})
	}
	return out
}
