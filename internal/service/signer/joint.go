package signer

import (
	"bytes"
	"context"
	"crypto/ed25519"

	"wallet-signer/internal/model"
	"wallet-signer/internal/service/encoder"
	"wallet-signer/internal/service/joint"
	"wallet-signer/pkg/errno"

	"github.com/algorand/go-algorand-sdk/v2/crypto"
	"github.com/algorand/go-algorand-sdk/v2/types"
)

// JointAccountThresholdSigner 生成一个参与者的多签贡献并登记到协调器
type JointAccountThresholdSigner struct {
	registry *joint.Registry
}

func NewJointAccountThresholdSigner(registry *joint.Registry) *JointAccountThresholdSigner {
	return &JointAccountThresholdSigner{registry: registry}
}

// Sign 返回 Partial 结果；是否达到阈值由协调器判断
func (s *JointAccountThresholdSigner) Sign(ctx context.Context, tx model.SignableTransaction, h model.JointParticipant, keys keyOpener) (model.SignedBytes, error) {
	if keys == nil {
		return model.SignedBytes{}, errno.ErrKeyNotFound.WithMessage("no key source for participant " + h.Participant)
	}

	c, err := s.registry.Get(h.SignRequestID)
	if err != nil {
		return model.SignedBytes{}, err
	}
	txn, requested := c.Transaction()
	if !bytes.Equal(requested.Bytes, tx.Bytes) {
		return model.SignedBytes{}, errno.ErrInvalidDraft.WithMessage("transaction differs from the sign request")
	}

	blob, err := signShare(ctx, keys, h.Key, h.Participant, c.Multisig(), txn)
	if err != nil {
		return model.SignedBytes{}, err
	}

	if _, err := s.registry.SubmitResponse(h.SignRequestID, h.Participant, true, blob); err != nil {
		return model.SignedBytes{}, err
	}
	return model.SignedBytes{Bytes: blob, TxID: tx.TxID(), Partial: true}, nil
}

// SignShare 为远端协调的签名请求生成本参与者的多签子签名 (CLI 使用)
// ma 由请求的参与者顺序和阈值重建
func (r *Router) SignShare(ctx context.Context, ma crypto.MultisigAccount, tx model.SignableTransaction, participant string, key model.SigningKeyHandle) ([]byte, error) {
	keys := r.opener(key)
	if keys == nil {
		return nil, errno.ErrKeyNotFound.WithMessage("no key source for participant " + participant)
	}
	txn, err := encoder.DecodeTransaction(tx.Bytes)
	if err != nil {
		return nil, err
	}
	return signShare(ctx, keys, key, participant, ma, txn)
}

func signShare(ctx context.Context, keys keyOpener, key model.SigningKeyHandle, participant string, ma crypto.MultisigAccount, txn types.Transaction) ([]byte, error) {
	var blob []byte
	err := keys.withKey(ctx, key, func(priv ed25519.PrivateKey) error {
		pub := priv.Public().(ed25519.PublicKey)
		if a, _ := addressOf(pub); a != participant {
			return errno.ErrKeyMismatch.WithMessage("key does not belong to participant " + participant)
		}
		_, signed, err := crypto.SignMultisigTransaction(priv, ma, txn)
		if err != nil {
			return errno.ErrEncoding.Wrap(err)
		}
		blob = signed
		return nil
	})
	return blob, err
}
