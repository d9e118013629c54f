package request

import (
	"time"
)

// CreateSignRequest 发起联合签名请求
// Transaction 为规范编码的交易字节 (JSON 中为 base64)
type CreateSignRequest struct {
	Proposer     string    `json:"proposer" binding:"required,algo_address"`
	Participants []string  `json:"participants" binding:"required,min=1,dive,algo_address"`
	Threshold    int       `json:"threshold" binding:"required,min=1"`
	Deadline     time.Time `json:"deadline"`
	Transaction  []byte    `json:"transaction" binding:"required"`
}

// SignResponseRequest 参与者答复
type SignResponseRequest struct {
	Participant string `json:"participant" binding:"required,algo_address"`
	Signed      bool   `json:"signed"`
	Signature   []byte `json:"signature"` // 参与者签过的多签 SignedTxn
}
