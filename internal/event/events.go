package event

import "time"

// JointStatusChangedEvent 联合签名请求状态变化
// Topic: wallet_signer_events
type JointStatusChangedEvent struct {
	Type      string    `json:"type"` // "joint_status_changed"
	RequestID string    `json:"request_id"`
	Status    string    `json:"status"`
	Signed    int       `json:"signed"`
	Declined  int       `json:"declined"`
	Threshold int       `json:"threshold"`
	At        time.Time `json:"at"`
}

// JointResponseMessage 远端参与者的答复
// Topic: joint_sign_responses
type JointResponseMessage struct {
	RequestID   string `json:"request_id"`
	Participant string `json:"participant"`
	Signed      bool   `json:"signed"`
	Signature   []byte `json:"signature,omitempty"` // base64 (encoding/json 默认)
}

// TransactionSubmittedEvent 交易已被节点接受
type TransactionSubmittedEvent struct {
	Type  string    `json:"type"` // "transaction_submitted"
	TxID  string    `json:"tx_id"`
	Group int       `json:"group_size"`
	At    time.Time `json:"at"`
}

// MonitorResolvedEvent 链上状态监视结束
type MonitorResolvedEvent struct {
	Type       string    `json:"type"` // "monitor_resolved"
	TxID       string    `json:"tx_id"`
	Account    string    `json:"account"`
	AssetID    uint64    `json:"asset_id"`
	Transition string    `json:"transition"`
	Outcome    string    `json:"outcome"` // reflected | cancelled | timeout
	At         time.Time `json:"at"`
}

const (
	TypeJointStatusChanged   = "joint_status_changed"
	TypeTransactionSubmitted = "transaction_submitted"
	TypeMonitorResolved      = "monitor_resolved"
)
