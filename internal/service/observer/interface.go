package observer

import (
	"wallet-signer/internal/model"
)

// AccountMonitor 观察账户资产集合的链上变化
type AccountMonitor interface {
	// Register 开始观察，返回的 Watch 在反映变化、超时或取消后结束
	Register(entry model.MonitorEntry) *Watch

	// CancelTransaction 结束该交易的全部观察，返回被取消的数量
	CancelTransaction(txID string) int

	// Close 取消全部观察
	Close()
}

// Outcome 观察结束的原因
type Outcome string

const (
	OutcomeReflected Outcome = "reflected"
	OutcomeCancelled Outcome = "cancelled"
	OutcomeTimeout   Outcome = "timeout"
)

// Result 观察结果
type Result struct {
	Entry   model.MonitorEntry `json:"entry"`
	Outcome Outcome            `json:"outcome"`
	Info    model.AccountInfo  `json:"info"` // 最后一次观察到的账户状态
}
