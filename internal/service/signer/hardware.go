package signer

import (
	"context"
	"crypto/ed25519"

	"wallet-signer/internal/model"
	"wallet-signer/internal/service/encoder"
	"wallet-signer/internal/service/hardware"
	"wallet-signer/pkg/errno"

	"github.com/algorand/go-algorand-sdk/v2/crypto"
	"github.com/algorand/go-algorand-sdk/v2/encoding/msgpack"
	"github.com/algorand/go-algorand-sdk/v2/types"
)

// HardwareDeviceSigner 通过硬件会话获取 64 字节签名并组装 SignedTxn
type HardwareDeviceSigner struct {
	manager *hardware.Manager
	observe func(hardware.Event)
}

// NewHardwareDeviceSigner observe 接收会话事件 (可为 nil)
func NewHardwareDeviceSigner(m *hardware.Manager, observe func(hardware.Event)) *HardwareDeviceSigner {
	return &HardwareDeviceSigner{manager: m, observe: observe}
}

// Cancel 取消该交易正在进行的设备会话
func (s *HardwareDeviceSigner) Cancel(txID string) bool {
	return s.manager.Cancel(txID)
}

func (s *HardwareDeviceSigner) Sign(ctx context.Context, tx model.SignableTransaction, h model.HardwareKey) (model.SignedBytes, error) {
	txn, err := encoder.DecodeTransaction(tx.Bytes)
	if err != nil {
		return model.SignedBytes{}, err
	}

	res, err := s.manager.Sign(ctx, hardware.Request{
		TxID:         tx.TxID(),
		Bytes:        tx.Bytes,
		AccountIndex: h.AccountIndex,
		DeviceName:   h.DeviceName,
	}, s.observe)
	if err != nil {
		return model.SignedBytes{}, err
	}

	if err := checkSender(res.PublicKey, txn.Sender); err != nil {
		return model.SignedBytes{}, err
	}
	if len(res.Signature) != ed25519.SignatureSize ||
		!ed25519.Verify(res.PublicKey, append([]byte("TX"), tx.Bytes...), res.Signature) {
		return model.SignedBytes{}, errno.ErrDeviceRejected.WithMessage("device returned an invalid signature")
	}

	stx := types.SignedTxn{Txn: txn}
	copy(stx.Sig[:], res.Signature)
	return model.SignedBytes{Bytes: msgpack.Encode(stx), TxID: crypto.GetTxID(txn)}, nil
}
