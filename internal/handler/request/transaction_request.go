package request

import (
	"errors"
	"fmt"

	"wallet-signer/internal/model"
)

// SubmitRequest 已签名交易按组顺序排列，每项为 base64 编码的 SignedTxn
type SubmitRequest struct {
	Transactions [][]byte `json:"transactions" binding:"required,min=1"`
}

// RegisterMonitorRequest 登记链上资产状态观察
type RegisterMonitorRequest struct {
	Account    string `json:"account" binding:"required,algo_address"`
	AssetID    uint64 `json:"asset_id" binding:"required"`
	Transition string `json:"transition" binding:"required,oneof=opt_in opt_out"`
	TxID       string `json:"tx_id" binding:"required"`
}

// KeyRequest 签名密钥选择
type KeyRequest struct {
	Type         string `json:"type" binding:"required,oneof=local hd hardware"`
	Address      string `json:"address,omitempty"`
	WalletID     string `json:"wallet_id,omitempty"`
	Account      uint32 `json:"account,omitempty"`
	Change       uint32 `json:"change,omitempty"`
	Index        uint32 `json:"index,omitempty"`
	DeviceName   string `json:"device_name,omitempty"`
	AccountIndex uint32 `json:"account_index,omitempty"`
}

func (k KeyRequest) ToHandle() (model.SigningKeyHandle, error) {
	switch k.Type {
	case "local":
		if k.Address == "" {
			return nil, errors.New("local key requires address")
		}
		return model.LocalKey{Address: k.Address}, nil
	case "hd":
		if k.WalletID == "" {
			return nil, errors.New("hd key requires wallet_id")
		}
		return model.HDPath{WalletID: k.WalletID, Account: k.Account, Change: k.Change, Index: k.Index}, nil
	case "hardware":
		return model.HardwareKey{DeviceName: k.DeviceName, AccountIndex: k.AccountIndex}, nil
	}
	return nil, fmt.Errorf("unknown key type %q", k.Type)
}

// ExecuteRequest 服务端构建 + 签名 + 提交
type ExecuteRequest struct {
	Draft DraftRequest `json:"draft"`
	Key   KeyRequest   `json:"key"`
}
