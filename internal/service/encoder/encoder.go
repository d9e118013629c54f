// Package encoder 将交易意图编码为规范的 msgpack 字节，并从字节解码出结构化镜像。
package encoder

import (
	"encoding/base64"
	"fmt"

	"wallet-signer/internal/model"
	"wallet-signer/internal/service/fee"
	"wallet-signer/pkg/address"
	"wallet-signer/pkg/errno"

	"github.com/algorand/go-algorand-sdk/v2/crypto"
	"github.com/algorand/go-algorand-sdk/v2/encoding/msgpack"
	"github.com/algorand/go-algorand-sdk/v2/types"
)

// 手续费定点迭代上限，fee 字段宽度变化最多影响两轮
const maxFeeIterations = 4

// Encoder 纯函数式编码器，相同输入产生相同字节
type Encoder struct {
	calc *fee.Calculator
}

func New(calc *fee.Calculator) *Encoder {
	return &Encoder{calc: calc}
}

// Encode 编码单笔交易，手续费由编码长度计算
func (e *Encoder) Encode(d model.Draft, params model.NetworkParams) (model.SignableTransaction, error) {
	txn, err := e.Transaction(d, params)
	if err != nil {
		return model.SignableTransaction{}, err
	}
	e.applyFee(&txn, params)
	return Seal(txn)
}

// Transaction 把 Draft 转为 SDK 交易结构 (手续费与组 ID 未设置)
func (e *Encoder) Transaction(d model.Draft, params model.NetworkParams) (types.Transaction, error) {
	if err := model.Validate(d); err != nil {
		return types.Transaction{}, errno.ErrInvalidDraft.Wrap(err)
	}
	if err := ValidateAddresses(d); err != nil {
		return types.Transaction{}, err
	}
	if len(params.GenesisHash) != len(types.Digest{}) {
		return types.Transaction{}, errno.ErrEncoding.WithMessage(fmt.Sprintf("genesis hash must be 32 bytes, got %d", len(params.GenesisHash)))
	}

	b := d.Base()
	sender, _ := address.Decode(b.Sender)

	var gh types.Digest
	copy(gh[:], params.GenesisHash)

	txn := types.Transaction{
		Header: types.Header{
			Sender:      sender,
			FirstValid:  types.Round(params.FirstValid),
			LastValid:   types.Round(params.LastValid),
			Note:        b.EncodedNote(),
			GenesisID:   params.GenesisID,
			GenesisHash: gh,
		},
	}

	switch v := d.(type) {
	case model.ValueTransfer:
		receiver, _ := address.DecodeOptional(v.Receiver)
		closeTo, _ := address.DecodeOptional(v.CloseTo)
		if receiver.IsZero() {
			receiver = closeTo
		}
		txn.Type = types.PaymentTx
		txn.PaymentTxnFields = types.PaymentTxnFields{
			Receiver:         receiver,
			Amount:           types.MicroAlgos(v.Amount),
			CloseRemainderTo: closeTo,
		}

	case model.AssetTransfer:
		receiver, _ := address.Decode(v.Receiver)
		txn.Type = types.AssetTransferTx
		txn.AssetTransferTxnFields = types.AssetTransferTxnFields{
			XferAsset:     types.AssetIndex(v.AssetID),
			AssetAmount:   v.Amount,
			AssetReceiver: receiver,
		}

	case model.AssetOptIn:
		txn.Type = types.AssetTransferTx
		txn.AssetTransferTxnFields = types.AssetTransferTxnFields{
			XferAsset:     types.AssetIndex(v.AssetID),
			AssetReceiver: sender,
		}

	case model.AssetOptOut:
		txn.Type = types.AssetTransferTx
		txn.AssetTransferTxnFields = closeOutFields(v.AssetID, v.Receiver, v.CloseTo)

	case model.AssetRemoval:
		txn.Type = types.AssetTransferTx
		txn.AssetTransferTxnFields = closeOutFields(v.AssetID, v.Receiver, v.CloseTo)

	case model.KeyRegistration:
		fields, err := keyregFields(v)
		if err != nil {
			return types.Transaction{}, err
		}
		txn.Type = types.KeyRegistrationTx
		txn.KeyregTxnFields = fields

	default:
		return types.Transaction{}, errno.ErrInvalidDraft.WithMessage(fmt.Sprintf("unsupported draft %T", d))
	}
	return txn, nil
}

// closeOutFields 接收方缺省为 close-to 地址
func closeOutFields(assetID uint64, receiver, closeTo string) types.AssetTransferTxnFields {
	to, _ := address.Decode(closeTo)
	recv, _ := address.DecodeOptional(receiver)
	if recv.IsZero() {
		recv = to
	}
	return types.AssetTransferTxnFields{
		XferAsset:     types.AssetIndex(assetID),
		AssetReceiver: recv,
		AssetCloseTo:  to,
	}
}

func keyregFields(v model.KeyRegistration) (types.KeyregTxnFields, error) {
	if v.Offline {
		// 下线注册: 所有参与密钥为空
		return types.KeyregTxnFields{}, nil
	}

	var fields types.KeyregTxnFields
	if err := decodeKey(v.VoteKey, fields.VotePK[:]); err != nil {
		return fields, errno.ErrEncoding.Wrap(fmt.Errorf("vote key: %w", err))
	}
	if err := decodeKey(v.SelectionKey, fields.SelectionPK[:]); err != nil {
		return fields, errno.ErrEncoding.Wrap(fmt.Errorf("selection key: %w", err))
	}
	if v.StateProofKey != "" {
		if err := decodeKey(v.StateProofKey, fields.StateProofPK[:]); err != nil {
			return fields, errno.ErrEncoding.Wrap(fmt.Errorf("state proof key: %w", err))
		}
	}
	fields.VoteFirst = types.Round(v.VoteFirst)
	fields.VoteLast = types.Round(v.VoteLast)
	fields.VoteKeyDilution = v.KeyDilution
	return fields, nil
}

func decodeKey(text string, dst []byte) error {
	raw, err := base64.StdEncoding.DecodeString(text)
	if err != nil {
		return err
	}
	if len(raw) != len(dst) {
		return fmt.Errorf("expected %d bytes, got %d", len(dst), len(raw))
	}
	copy(dst, raw)
	return nil
}

// applyFee 迭代至手续费稳定；per_byte 模式下 fee 字段宽度会影响编码长度
func (e *Encoder) applyFee(txn *types.Transaction, params model.NetworkParams) {
	txn.Fee = types.MicroAlgos(params.MinFee)
	for i := 0; i < maxFeeIterations; i++ {
		size := fee.EstimatedSize(len(msgpack.Encode(*txn)))
		next := types.MicroAlgos(e.calc.Fee(size, params))
		if next == txn.Fee {
			return
		}
		txn.Fee = next
	}
}

// Seal 编码并从字节解码出镜像
func Seal(txn types.Transaction) (model.SignableTransaction, error) {
	raw := msgpack.Encode(txn)
	mirror, err := Decode(raw)
	if err != nil {
		return model.SignableTransaction{}, err
	}
	return model.SignableTransaction{Bytes: raw, Mirror: mirror}, nil
}

// DecodeTransaction 解码规范字节为 SDK 交易结构
func DecodeTransaction(raw []byte) (types.Transaction, error) {
	var txn types.Transaction
	if err := msgpack.Decode(raw, &txn); err != nil {
		return types.Transaction{}, errno.ErrEncoding.Wrap(err)
	}
	if txn.Type == "" {
		return types.Transaction{}, errno.ErrEncoding.WithMessage("transaction type missing")
	}
	return txn, nil
}

// Decode 从字节得到结构化镜像
func Decode(raw []byte) (model.Mirror, error) {
	txn, err := DecodeTransaction(raw)
	if err != nil {
		return model.Mirror{}, err
	}
	return MirrorOf(txn), nil
}

// MirrorOf 生成交易镜像
func MirrorOf(txn types.Transaction) model.Mirror {
	m := model.Mirror{
		TxID:       crypto.GetTxID(txn),
		Type:       model.TxType(txn.Type),
		Sender:     address.String(txn.Sender),
		Fee:        uint64(txn.Fee),
		Note:       txn.Note,
		FirstValid: uint64(txn.FirstValid),
		LastValid:  uint64(txn.LastValid),
		GenesisID:  txn.GenesisID,
	}
	if txn.Group != (types.Digest{}) {
		m.Group = append([]byte(nil), txn.Group[:]...)
	}

	switch txn.Type {
	case types.PaymentTx:
		m.Receiver = address.String(txn.Receiver)
		m.Amount = uint64(txn.Amount)
		m.CloseTo = address.String(txn.CloseRemainderTo)
	case types.AssetTransferTx:
		m.Receiver = address.String(txn.AssetReceiver)
		m.Amount = txn.AssetAmount
		m.AssetID = uint64(txn.XferAsset)
		m.CloseTo = address.String(txn.AssetCloseTo)
	case types.KeyRegistrationTx:
		m.Offline = txn.VotePK == (types.VotePK{}) && txn.SelectionPK == (types.VRFPK{})
	}
	return m
}

// ValidateAddresses 在任何网络或签名调用之前校验地址
func ValidateAddresses(d model.Draft) error {
	b := d.Base()
	if err := address.Validate(b.Sender); err != nil {
		return err
	}
	if _, err := address.DecodeOptional(b.Receiver); err != nil {
		return err
	}

	var closeTo string
	switch v := d.(type) {
	case model.ValueTransfer:
		closeTo = v.CloseTo
	case model.AssetOptOut:
		closeTo = v.CloseTo
	case model.AssetRemoval:
		closeTo = v.CloseTo
	}
	_, err := address.DecodeOptional(closeTo)
	return err
}
