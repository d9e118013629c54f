// Package hardware 驱动硬件设备签名会话: 扫描、连接、推送交易、等待用户在设备上确认。
package hardware

import (
	"errors"
	"fmt"
)

// State 会话状态
type State string

const (
	StateIdle             State = "idle"
	StateScanning         State = "scanning"
	StateConnected        State = "connected"
	StateAwaitingApproval State = "awaiting_approval"
	StateSigned           State = "signed"
	StateRejected         State = "rejected"
	StateTimedOut         State = "timed_out"
	StateDisconnected     State = "disconnected"
	StateCancelled        State = "cancelled"
)

var ErrInvalidTransition = errors.New("invalid session transition")

// Terminal 终态之后不再有任何转换
func (s State) Terminal() bool {
	switch s {
	case StateSigned, StateRejected, StateTimedOut, StateDisconnected, StateCancelled:
		return true
	}
	return false
}

var transitions = map[State][]State{
	StateIdle:             {StateScanning, StateCancelled},
	StateScanning:         {StateConnected, StateTimedOut, StateDisconnected, StateCancelled},
	StateConnected:        {StateAwaitingApproval, StateTimedOut, StateDisconnected, StateCancelled},
	StateAwaitingApproval: {StateSigned, StateRejected, StateTimedOut, StateDisconnected, StateCancelled},
}

func canTransition(from, to State) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

func transitionError(from, to State) error {
	return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
}

// EventType 会话事件类型
type EventType string

const (
	EventStateChanged      EventType = "state_changed"
	EventApprovalRequested EventType = "approval_requested"
	EventTimeout           EventType = "timeout"
	EventDisconnected      EventType = "disconnected"
	EventSigned            EventType = "signed"
	EventRejected          EventType = "rejected"
	EventCancelled         EventType = "cancelled"
)

// Event 会话事件，流在终态事件之后关闭
type Event struct {
	Type       EventType `json:"type"`
	State      State     `json:"state"`
	DeviceName string    `json:"device_name,omitempty"`
	Err        error     `json:"-"`
}

func terminalEvent(s State) EventType {
	switch s {
	case StateSigned:
		return EventSigned
	case StateRejected:
		return EventRejected
	case StateTimedOut:
		return EventTimeout
	case StateDisconnected:
		return EventDisconnected
	}
	return EventCancelled
}
