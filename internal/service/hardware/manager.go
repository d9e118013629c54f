package hardware

import (
	"context"
	"errors"
	"sync"

	"wallet-signer/pkg/errno"
	"wallet-signer/pkg/logger"

	"go.uber.org/zap"
)

// Retries 超时与断连分别计数
type Retries struct {
	Timeout    int
	Disconnect int
}

// Manager 为每次尝试创建新会话，并按错误类别重试
type Manager struct {
	transport Transport
	cfg       Config
	retries   Retries

	mu       sync.Mutex
	onAbort  func(txID string)
	sessions map[string]*Session // txID -> 当前会话
}

func NewManager(t Transport, cfg Config, retries Retries) *Manager {
	return &Manager{
		transport: t,
		cfg:       cfg,
		retries:   retries,
		sessions:  make(map[string]*Session),
	}
}

// SetMonitorCanceller 注册会话失败或取消时调用的监视取消函数
func (m *Manager) SetMonitorCanceller(fn func(txID string)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onAbort = fn
}

// Sign 运行会话直到签名成功或重试预算耗尽；observe 可为 nil
// 监视取消函数只在最终失败时调用一次，重试中的失败不会取消监视
func (m *Manager) Sign(ctx context.Context, req Request, observe func(Event)) (Result, error) {
	timeouts, disconnects := 0, 0
	for {
		s := m.newSession(req)
		result, err := m.runOnce(ctx, s, observe)
		m.forget(req.TxID, s)

		switch {
		case err == nil:
			return result, nil
		case errors.Is(err, errno.ErrDeviceTimeout) && timeouts < m.retries.Timeout && ctx.Err() == nil:
			timeouts++
		case errors.Is(err, errno.ErrDeviceDisconnected) && disconnects < m.retries.Disconnect && ctx.Err() == nil:
			disconnects++
		default:
			m.abort(req.TxID)
			return Result{}, err
		}
		logger.Warn("hardware session retry",
			zap.String("tx_id", req.TxID),
			zap.Int("timeouts", timeouts),
			zap.Int("disconnects", disconnects),
			zap.Error(err),
		)
	}
}

// Cancel 取消该交易正在进行的会话
func (m *Manager) Cancel(txID string) bool {
	m.mu.Lock()
	s, ok := m.sessions[txID]
	m.mu.Unlock()
	if ok {
		s.Cancel()
	}
	return ok
}

func (m *Manager) newSession(req Request) *Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := NewSession(m.transport, m.cfg, req, nil)
	m.sessions[req.TxID] = s
	return s
}

func (m *Manager) abort(txID string) {
	m.mu.Lock()
	fn := m.onAbort
	m.mu.Unlock()
	if fn != nil {
		fn(txID)
	}
}

func (m *Manager) forget(txID string, s *Session) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.sessions[txID] == s {
		delete(m.sessions, txID)
	}
}

func (m *Manager) runOnce(ctx context.Context, s *Session, observe func(Event)) (Result, error) {
	if err := s.Start(ctx); err != nil {
		return Result{}, err
	}

	drained := make(chan struct{})
	go func() {
		defer close(drained)
		for e := range s.Events() {
			if observe != nil {
				observe(e)
			}
		}
	}()

	// ctx 取消时会话自行进入 cancelled，这里等待终态
	<-s.Done()
	<-drained
	return s.Wait(context.Background())
}
