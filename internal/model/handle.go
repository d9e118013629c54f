package model

import "fmt"

// SigningKeyHandle 是对签名能力的不透明引用，从不携带私钥原文
type SigningKeyHandle interface {
	fmt.Stringer
	isSigningKeyHandle()
}

// LocalKey 本地存储的单地址密钥
type LocalKey struct {
	Address string `json:"address"`
}

// HDPath HD 钱包派生路径 (wallet, account, change, index)
type HDPath struct {
	WalletID string `json:"wallet_id"`
	Account  uint32 `json:"account"`
	Change   uint32 `json:"change"`
	Index    uint32 `json:"index"`
}

// HardwareKey 硬件设备 + 设备内账户序号
type HardwareKey struct {
	DeviceName   string `json:"device_name"` // 名称前缀，空表示第一个发现的设备
	AccountIndex uint32 `json:"account_index"`
}

// JointParticipant 联合账户某个参与者的签名贡献
type JointParticipant struct {
	SignRequestID string           `json:"sign_request_id"`
	Participant   string           `json:"participant"`
	Key           SigningKeyHandle `json:"-"` // 参与者自己的本地 / HD 密钥
}

func (LocalKey) isSigningKeyHandle()         {}
func (HDPath) isSigningKeyHandle()           {}
func (HardwareKey) isSigningKeyHandle()      {}
func (JointParticipant) isSigningKeyHandle() {}

func (h LocalKey) String() string { return "local:" + h.Address }

func (h HDPath) String() string {
	return fmt.Sprintf("hd:%s/%d/%d/%d", h.WalletID, h.Account, h.Change, h.Index)
}

func (h HardwareKey) String() string {
	return fmt.Sprintf("hardware:%s#%d", h.DeviceName, h.AccountIndex)
}

func (h JointParticipant) String() string {
	return fmt.Sprintf("joint:%s@%s", h.Participant, h.SignRequestID)
}
