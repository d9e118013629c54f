package model

import "time"

// Transition 期望观察到的资产状态变化
type Transition string

const (
	TransitionOptIn  Transition = "opt_in"
	TransitionOptOut Transition = "opt_out"
)

// MonitorEntry 一个链上状态监视登记
type MonitorEntry struct {
	Account    string     `json:"account"`
	AssetID    uint64     `json:"asset_id"`
	Transition Transition `json:"transition"`
	TxID       string     `json:"tx_id"`
	StartedAt  time.Time  `json:"started_at"`
}

// Reflected reports whether the observed account state satisfies the transition
func (e MonitorEntry) Reflected(info AccountInfo) bool {
	switch e.Transition {
	case TransitionOptIn:
		return info.HasAsset(e.AssetID)
	case TransitionOptOut:
		return !info.HasAsset(e.AssetID)
	}
	return false
}
