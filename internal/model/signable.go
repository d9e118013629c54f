package model

// TxType 链上交易类型
type TxType string

const (
	TxTypePayment       TxType = "pay"
	TxTypeAssetTransfer TxType = "axfer"
	TxTypeKeyReg        TxType = "keyreg"
)

// Mirror 是从交易字节解码出的结构化视图，用于确认页展示和校验
type Mirror struct {
	TxID       string `json:"tx_id"`
	Type       TxType `json:"type"`
	Sender     string `json:"sender"`
	Receiver   string `json:"receiver,omitempty"`
	Amount     uint64 `json:"amount"`
	Fee        uint64 `json:"fee"`
	AssetID    uint64 `json:"asset_id,omitempty"`
	Note       []byte `json:"note,omitempty"`
	CloseTo    string `json:"close_to,omitempty"`
	FirstValid uint64 `json:"first_valid"`
	LastValid  uint64 `json:"last_valid"`
	GenesisID  string `json:"genesis_id"`
	Group      []byte `json:"group,omitempty"`
	Offline    bool   `json:"offline,omitempty"` // keyreg 下线
}

// SignableTransaction 待签名交易: 规范编码字节 + 由字节解码得到的镜像
type SignableTransaction struct {
	Bytes  []byte `json:"bytes"`
	Mirror Mirror `json:"mirror"`
}

// TxID 交易 ID (从字节推导)
func (s SignableTransaction) TxID() string {
	return s.Mirror.TxID
}

// SignedBytes 签名结果
// Partial 为 true 表示只是联合账户中一个参与者的贡献，不能直接提交
type SignedBytes struct {
	Bytes   []byte `json:"bytes"`
	TxID    string `json:"tx_id"`
	Partial bool   `json:"partial,omitempty"`
}

// Plan 一次 buildAndEncode 的结果，可能包含多笔原子组交易
type Plan struct {
	Draft        Draft                 `json:"-"`
	Transactions []SignableTransaction `json:"transactions"`
	TotalFee     uint64                `json:"total_fee"`
	TopUp        uint64                `json:"top_up,omitempty"` // 为接收方补足的最低余额
	Params       NetworkParams         `json:"params"`
	Sealed       bool                  `json:"sealed,omitempty"` // 已签名后不可再重新计算
}
