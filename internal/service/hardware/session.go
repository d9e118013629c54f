package hardware

import (
	"context"
	"crypto/ed25519"
	"errors"
	"strings"
	"sync"
	"time"

	"wallet-signer/pkg/errno"
	"wallet-signer/pkg/ledger"
	"wallet-signer/pkg/logger"
	"wallet-signer/pkg/monitor"

	"go.uber.org/zap"
)

// Request 一次硬件签名请求
type Request struct {
	TxID         string
	Bytes        []byte // 规范编码的交易字节 (不含 "TX" 前缀)
	AccountIndex uint32
	DeviceName   string // 设备名前缀，空表示第一个发现的设备
}

// Result 设备签名结果
type Result struct {
	Signature  []byte
	PublicKey  ed25519.PublicKey
	DeviceName string
}

// Config 会话时间预算
type Config struct {
	ScanTimeout     time.Duration
	ApprovalTimeout time.Duration
}

const eventBuffer = 16

// Session 单次签名会话，终态后不可复用
type Session struct {
	cfg       Config
	transport Transport
	req       Request
	onAbort   func(txID string)
	log       *zap.Logger

	mu      sync.Mutex
	state   State
	events  chan Event
	done    chan struct{}
	cancel  context.CancelFunc
	link    Link
	device  string
	result  Result
	err     error
	release sync.Once
}

// NewSession onAbort 在任何非 signed 终态时以 txID 调用，用于取消链上监视
func NewSession(t Transport, cfg Config, req Request, onAbort func(txID string)) *Session {
	return &Session{
		cfg:       cfg,
		transport: t,
		req:       req,
		onAbort:   onAbort,
		log:       logger.Named("hardware").With(zap.String("tx_id", req.TxID)),
		state:     StateIdle,
		events:    make(chan Event, eventBuffer),
		done:      make(chan struct{}),
	}
}

// Events 有限事件流，终态事件之后关闭
func (s *Session) Events() <-chan Event {
	return s.events
}

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Done 在会话进入终态时关闭
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// Start idle -> scanning，后台运行直到终态
func (s *Session) Start(ctx context.Context) error {
	s.mu.Lock()
	if !canTransition(s.state, StateScanning) {
		from := s.state
		s.mu.Unlock()
		return transitionError(from, StateScanning)
	}
	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.setStateLocked(StateScanning)
	s.mu.Unlock()

	go s.run(runCtx)
	return nil
}

// Cancel 任意非终态下取消，幂等
func (s *Session) Cancel() {
	s.finish(StateCancelled, errno.ErrUserCancelled, Result{})
}

// Wait 阻塞直到终态
func (s *Session) Wait(ctx context.Context) (Result, error) {
	select {
	case <-s.done:
		s.mu.Lock()
		defer s.mu.Unlock()
		return s.result, s.err
	case <-ctx.Done():
		return Result{}, ctx.Err()
	}
}

func (s *Session) run(ctx context.Context) {
	// 1. 扫描，第一个匹配的设备即停止
	p, err := s.scan(ctx)
	if err != nil {
		s.fail(ctx, err)
		return
	}

	// 2. 连接，与扫描共用同样的时间预算
	link, err := s.connect(ctx, p)
	if err != nil {
		s.fail(ctx, err)
		return
	}
	if !s.attach(link, p.Name) {
		_ = link.Close()
		return
	}

	// 3. 读取账户公钥，用于之后校验签名
	app := ledger.NewApp(link)
	approvalCtx, stop := context.WithTimeout(ctx, s.cfg.ApprovalTimeout)
	defer stop()

	pub, err := app.PublicKey(approvalCtx, s.req.AccountIndex)
	if err != nil {
		s.fail(ctx, s.deviceError(approvalCtx, link, err))
		return
	}

	// 4. 推送交易，等待用户确认
	if !s.transition(StateAwaitingApproval) {
		return
	}
	s.emit(Event{Type: EventApprovalRequested, State: StateAwaitingApproval, DeviceName: p.Name})

	type signResult struct {
		sig []byte
		err error
	}
	sigCh := make(chan signResult, 1)
	go func() {
		sig, err := app.SignMsgpack(approvalCtx, s.req.AccountIndex, s.req.Bytes)
		sigCh <- signResult{sig: sig, err: err}
	}()

	select {
	case r := <-sigCh:
		if r.err != nil {
			s.fail(ctx, s.deviceError(approvalCtx, link, r.err))
			return
		}
		s.finish(StateSigned, nil, Result{Signature: r.sig, PublicKey: pub, DeviceName: p.Name})
	case <-link.Disconnected():
		s.fail(ctx, errno.ErrDeviceDisconnected)
	case <-approvalCtx.Done():
		s.fail(ctx, s.deviceError(approvalCtx, link, approvalCtx.Err()))
	}
}

func (s *Session) scan(ctx context.Context) (Peripheral, error) {
	scanCtx, stop := context.WithTimeout(ctx, s.cfg.ScanTimeout)
	defer stop()

	found, err := s.transport.Scan(scanCtx)
	if err != nil {
		return Peripheral{}, errno.ErrDeviceDisconnected.Wrap(err)
	}

	for {
		select {
		case p, ok := <-found:
			if !ok {
				// 扫描提前结束，等到预算耗尽再判定超时
				<-scanCtx.Done()
				return Peripheral{}, errno.ErrDeviceTimeout.WithMessage("no device found")
			}
			if s.req.DeviceName == "" || strings.HasPrefix(p.Name, s.req.DeviceName) {
				s.log.Info("device found", zap.String("device", p.Name))
				return p, nil
			}
		case <-scanCtx.Done():
			return Peripheral{}, errno.ErrDeviceTimeout.WithMessage("no device found")
		}
	}
}

// connect 超出 ScanTimeout 视为超时；超时后才返回的链路直接关闭
func (s *Session) connect(ctx context.Context, p Peripheral) (Link, error) {
	connectCtx, stop := context.WithTimeout(ctx, s.cfg.ScanTimeout)
	defer stop()

	type connectResult struct {
		link Link
		err  error
	}
	ch := make(chan connectResult, 1)
	go func() {
		link, err := s.transport.Connect(connectCtx, p)
		ch <- connectResult{link: link, err: err}
	}()

	select {
	case r := <-ch:
		if r.err == nil {
			return r.link, nil
		}
		if errors.Is(connectCtx.Err(), context.DeadlineExceeded) {
			return nil, errno.ErrDeviceTimeout.WithMessage("device connection timed out")
		}
		return nil, errno.ErrDeviceDisconnected.Wrap(r.err)
	case <-connectCtx.Done():
		go func() {
			if r := <-ch; r.link != nil {
				_ = r.link.Close()
			}
		}()
		if errors.Is(connectCtx.Err(), context.DeadlineExceeded) {
			return nil, errno.ErrDeviceTimeout.WithMessage("device connection timed out")
		}
		return nil, connectCtx.Err()
	}
}

// deviceError 将设备通信错误归类
func (s *Session) deviceError(ctx context.Context, link Link, err error) error {
	var se *ledger.StatusError
	switch {
	case errors.As(err, &se) && se.Rejected():
		return errno.ErrDeviceRejected.Wrap(err)
	case errors.As(err, &se):
		return errno.ErrDeviceRejected.WithMessage("device refused request").Wrap(err)
	case errors.Is(ctx.Err(), context.DeadlineExceeded):
		return errno.ErrDeviceTimeout.WithMessage("approval timed out")
	}
	select {
	case <-link.Disconnected():
		return errno.ErrDeviceDisconnected.Wrap(err)
	default:
	}
	if errors.Is(err, context.Canceled) {
		return errno.ErrUserCancelled
	}
	return errno.ErrDeviceDisconnected.Wrap(err)
}

// fail 根据错误类别进入对应终态；ctx 已取消时一律视为取消
func (s *Session) fail(ctx context.Context, err error) {
	switch {
	case ctx.Err() != nil:
		s.finish(StateCancelled, errno.ErrUserCancelled, Result{})
	case errors.Is(err, errno.ErrDeviceRejected):
		s.finish(StateRejected, err, Result{})
	case errors.Is(err, errno.ErrDeviceTimeout):
		s.finish(StateTimedOut, err, Result{})
	case errors.Is(err, errno.ErrUserCancelled):
		s.finish(StateCancelled, err, Result{})
	default:
		s.finish(StateDisconnected, err, Result{})
	}
}

func (s *Session) attach(link Link, device string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !canTransition(s.state, StateConnected) {
		return false
	}
	s.link = link
	s.device = device
	s.setStateLocked(StateConnected)
	return true
}

func (s *Session) transition(to State) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !canTransition(s.state, to) {
		return false
	}
	s.setStateLocked(to)
	return true
}

// finish 进入终态，只有第一次调用生效
func (s *Session) finish(to State, err error, result Result) {
	s.mu.Lock()
	if s.state.Terminal() || !canTransition(s.state, to) {
		s.mu.Unlock()
		return
	}
	s.result = result
	s.err = err
	s.setStateLocked(to)
	s.emitLocked(Event{Type: terminalEvent(to), State: to, DeviceName: s.device, Err: err})
	close(s.events)
	close(s.done)
	link, cancel := s.link, s.cancel
	s.mu.Unlock()

	// 停止扫描与计时器并释放链路
	if cancel != nil {
		cancel()
	}
	s.release.Do(func() {
		if link != nil {
			if cerr := link.Close(); cerr != nil {
				s.log.Warn("close link failed", zap.Error(cerr))
			}
		}
	})

	if to != StateSigned && s.onAbort != nil {
		s.onAbort(s.req.TxID)
	}

	monitor.ObserveHardwareSession(string(to))
	if err != nil {
		s.log.Info("session finished", zap.String("state", string(to)), zap.Error(err))
	} else {
		s.log.Info("session finished", zap.String("state", string(to)))
	}
}

func (s *Session) setStateLocked(to State) {
	s.state = to
	s.emitLocked(Event{Type: EventStateChanged, State: to, DeviceName: s.device})
}

func (s *Session) emit(e Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state.Terminal() {
		return
	}
	s.emitLocked(e)
}

func (s *Session) emitLocked(e Event) {
	select {
	case s.events <- e:
	default:
		s.log.Warn("event dropped, consumer too slow", zap.String("event", string(e.Type)))
	}
}
