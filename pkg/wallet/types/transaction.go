package types

import "time"

// UnsignedTransaction 冷钱包签名所需的全部数据
// Bytes 是规范 msgpack 编码 (JSON 中为 base64)；其余字段仅供展示，签名前会从 Bytes 重新解码核对
type UnsignedTransaction struct {
	TxID    string `json:"tx_id"`
	Type    string `json:"type"`   // pay, axfer, keyreg
	From    string `json:"from"`   // Sender Address
	To      string `json:"to"`     // Receiver Address
	Amount  uint64 `json:"amount"` // 基本单位 (microAlgo 或资产最小单位)
	Fee     uint64 `json:"fee"`
	AssetID uint64 `json:"asset_id,omitempty"`
	Bytes   []byte `json:"bytes"`
}

// UnsignedPlan build-tx 的输出文件；多笔交易时按原子组顺序排列
type UnsignedPlan struct {
	GenesisID     string                `json:"genesis_id"`
	FirstValid    uint64                `json:"first_valid"`
	LastValid     uint64                `json:"last_valid"`
	TotalFee      uint64                `json:"total_fee"`
	TopUp         uint64                `json:"top_up,omitempty"`
	AssetDecimals int32                 `json:"asset_decimals,omitempty"` // 仅用于显示资产金额
	Transactions  []UnsignedTransaction `json:"transactions"`
	CreatedAt     time.Time             `json:"created_at"`
}

// SignedTransaction represents the result of the signing process.
type SignedTransaction struct {
	TxID    string `json:"tx_id"`
	Raw     []byte `json:"raw"`               // SignedTxn msgpack (ready to submit)
	Partial bool   `json:"partial,omitempty"` // 联合账户的单个子签名
}

// SignedPlan sign 的输出文件，submit 的输入
type SignedPlan struct {
	Transactions []SignedTransaction `json:"transactions"`
}
