package model

import "time"

// ResponseStatus 单个参与者的答复状态
type ResponseStatus string

const (
	ResponsePending  ResponseStatus = "pending"
	ResponseSigned   ResponseStatus = "signed"
	ResponseDeclined ResponseStatus = "declined"
)

// JointStatus 联合签名请求整体状态
type JointStatus string

const (
	JointPending  JointStatus = "pending"
	JointComplete JointStatus = "complete"
	JointExpired  JointStatus = "expired"
	JointDeclined JointStatus = "declined"
)

// IsTerminal reports whether no further response can change the status
func (s JointStatus) IsTerminal() bool {
	return s != JointPending
}

// ParticipantResponse 参与者答复
type ParticipantResponse struct {
	Address   string         `json:"address"`
	Status    ResponseStatus `json:"status"`
	Signature []byte         `json:"signature,omitempty"` // 该参与者签过的 multisig SignedTxn
	UpdatedAt time.Time      `json:"updated_at,omitempty"`
}

// SignRequestMetadata 联合账户签名请求
type SignRequestMetadata struct {
	ID           string                `json:"id"`
	Proposer     string                `json:"proposer"`
	Participants []ParticipantResponse `json:"participants"` // 有序
	Threshold    int                   `json:"threshold"`
	Deadline     time.Time             `json:"deadline"`
	Transaction  SignableTransaction   `json:"transaction"`
	CreatedAt    time.Time             `json:"created_at"`
}

// Counts 统计已签名 / 已拒绝人数
func (m SignRequestMetadata) Counts() (signed, declined int) {
	for _, p := range m.Participants {
		switch p.Status {
		case ResponseSigned:
			signed++
		case ResponseDeclined:
			declined++
		}
	}
	return signed, declined
}
