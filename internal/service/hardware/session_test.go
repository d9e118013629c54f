package hardware

import (
	"context"
	"crypto/ed25519"
	"encoding/binary"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"wallet-signer/pkg/errno"
	"wallet-signer/pkg/ledger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// approval 设备端用户行为
type approval int

const (
	approve approval = iota
	reject
	never
	unplug
)

type fakeLink struct {
	*baseLink
	priv     ed25519.PrivateKey
	behavior approval
	closes   atomic.Int32
	payload  []byte
	pushed   chan struct{}
	pushOnce sync.Once
}

func newFakeLink(priv ed25519.PrivateKey, behavior approval) *fakeLink {
	l := &fakeLink{priv: priv, behavior: behavior, pushed: make(chan struct{})}
	l.baseLink = newBaseLink(func() error {
		l.closes.Add(1)
		return nil
	})
	return l
}

func (l *fakeLink) Exchange(ctx context.Context, apdu []byte) ([]byte, error) {
	ins, p1, p2, data := apdu[1], apdu[2], apdu[3], apdu[5:]
	switch ins {
	case ledger.InsGetPublicKey:
		return append(append([]byte(nil), l.priv.Public().(ed25519.PublicKey)...), 0x90, 0x00), nil
	case ledger.InsSignMsgpack:
		if p1 == ledger.P1FirstAccountID {
			l.payload = append([]byte(nil), data[4:]...)
		} else {
			l.payload = append(l.payload, data...)
		}
		if p2 == ledger.P2More {
			return []byte{0x90, 0x00}, nil
		}
		l.pushOnce.Do(func() { close(l.pushed) })
		switch l.behavior {
		case approve:
			sig := ed25519.Sign(l.priv, append([]byte("TX"), l.payload...))
			return append(sig, 0x90, 0x00), nil
		case reject:
			return []byte{0x69, 0x85}, nil
		case unplug:
			_ = l.Close()
			<-ctx.Done()
			return nil, ctx.Err()
		default:
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-l.Disconnected():
				return nil, errors.New("link closed")
			}
		}
	}
	return []byte{0x6D, 0x00}, nil
}

type fakeTransport struct {
	devices  []Peripheral
	link     *fakeLink
	connects atomic.Int32
}

func (t *fakeTransport) Scan(ctx context.Context) (<-chan Peripheral, error) {
	ch := make(chan Peripheral)
	go func() {
		defer close(ch)
		for _, d := range t.devices {
			select {
			case ch <- d:
			case <-ctx.Done():
				return
			}
		}
		<-ctx.Done()
	}()
	return ch, nil
}

func (t *fakeTransport) Connect(ctx context.Context, p Peripheral) (Link, error) {
	t.connects.Add(1)
	return t.link, nil
}

type abortRecorder struct {
	mu  sync.Mutex
	ids []string
}

func (a *abortRecorder) cancel(txID string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.ids = append(a.ids, txID)
}

func (a *abortRecorder) calls() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]string(nil), a.ids...)
}

var testCfg = Config{ScanTimeout: 100 * time.Millisecond, ApprovalTimeout: time.Second}

func testRequest() Request {
	txn := make([]byte, 300)
	binary.BigEndian.PutUint32(txn, 0xCAFE)
	return Request{TxID: "TX-1", Bytes: txn, DeviceName: "Nano"}
}

func collect(s *Session) []Event {
	var out []Event
	for e := range s.Events() {
		out = append(out, e)
	}
	return out
}

func TestCanTransition(t *testing.T) {
	assert.True(t, canTransition(StateIdle, StateScanning))
	assert.True(t, canTransition(StateAwaitingApproval, StateCancelled))
	assert.False(t, canTransition(StateIdle, StateSigned))
	assert.False(t, canTransition(StateSigned, StateCancelled))
	assert.False(t, canTransition(StateCancelled, StateScanning))
	assert.True(t, StateTimedOut.Terminal())
	assert.ErrorIs(t, transitionError(StateSigned, StateIdle), ErrInvalidTransition)
}

func TestSessionSigned(t *testing.T) {
	_, priv, _ := ed25519.GenerateKey(nil)
	link := newFakeLink(priv, approve)
	transport := &fakeTransport{devices: []Peripheral{{ID: "1", Name: "Other"}, {ID: "2", Name: "Nano X 1234"}}, link: link}
	aborts := &abortRecorder{}

	req := testRequest()
	s := NewSession(transport, testCfg, req, aborts.cancel)
	require.NoError(t, s.Start(context.Background()))

	events := collect(s)
	result, err := s.Wait(context.Background())
	require.NoError(t, err)

	assert.Equal(t, StateSigned, s.State())
	assert.Equal(t, "Nano X 1234", result.DeviceName)
	assert.True(t, ed25519.Verify(result.PublicKey, append([]byte("TX"), req.Bytes...), result.Signature))
	assert.Equal(t, int32(1), transport.connects.Load())
	assert.Equal(t, int32(1), link.closes.Load())
	assert.Empty(t, aborts.calls())

	var approvalDevice string
	for _, e := range events {
		if e.Type == EventApprovalRequested {
			approvalDevice = e.DeviceName
		}
	}
	assert.Equal(t, "Nano X 1234", approvalDevice)
	assert.Equal(t, EventSigned, events[len(events)-1].Type)

	// 终态后再次 Start 无效
	assert.ErrorIs(t, s.Start(context.Background()), ErrInvalidTransition)
}

func TestSessionNoDeviceTimesOut(t *testing.T) {
	transport := &fakeTransport{}
	aborts := &abortRecorder{}
	s := NewSession(transport, testCfg, testRequest(), aborts.cancel)

	start := time.Now()
	require.NoError(t, s.Start(context.Background()))
	_, err := s.Wait(context.Background())
	elapsed := time.Since(start)

	assert.ErrorIs(t, err, errno.ErrDeviceTimeout)
	assert.Equal(t, StateTimedOut, s.State())
	assert.GreaterOrEqual(t, elapsed, testCfg.ScanTimeout)
	assert.Less(t, elapsed, testCfg.ScanTimeout+500*time.Millisecond)
	assert.Equal(t, int32(0), transport.connects.Load(), "不应建立连接")
	assert.Equal(t, []string{"TX-1"}, aborts.calls())
}

func TestSessionCancelAwaitingApproval(t *testing.T) {
	_, priv, _ := ed25519.GenerateKey(nil)
	link := newFakeLink(priv, never)
	transport := &fakeTransport{devices: []Peripheral{{ID: "1", Name: "Nano S"}}, link: link}
	aborts := &abortRecorder{}

	s := NewSession(transport, testCfg, testRequest(), aborts.cancel)
	require.NoError(t, s.Start(context.Background()))

	select {
	case <-link.pushed:
	case <-time.After(time.Second):
		t.Fatal("transaction never pushed")
	}
	require.Eventually(t, func() bool { return s.State() == StateAwaitingApproval }, time.Second, 5*time.Millisecond)

	s.Cancel()
	s.Cancel() // 幂等

	_, err := s.Wait(context.Background())
	assert.ErrorIs(t, err, errno.ErrUserCancelled)
	assert.Equal(t, StateCancelled, s.State())
	assert.Equal(t, []string{"TX-1"}, aborts.calls())
	assert.Equal(t, int32(1), link.closes.Load())
}

func TestSessionRejected(t *testing.T) {
	_, priv, _ := ed25519.GenerateKey(nil)
	link := newFakeLink(priv, reject)
	transport := &fakeTransport{devices: []Peripheral{{ID: "1", Name: "Nano X"}}, link: link}
	aborts := &abortRecorder{}

	s := NewSession(transport, testCfg, testRequest(), aborts.cancel)
	require.NoError(t, s.Start(context.Background()))
	_, err := s.Wait(context.Background())

	assert.ErrorIs(t, err, errno.ErrDeviceRejected)
	assert.Equal(t, StateRejected, s.State())
	assert.Equal(t, []string{"TX-1"}, aborts.calls())
}

func TestSessionDisconnected(t *testing.T) {
	_, priv, _ := ed25519.GenerateKey(nil)
	link := newFakeLink(priv, unplug)
	transport := &fakeTransport{devices: []Peripheral{{ID: "1", Name: "Nano X"}}, link: link}

	s := NewSession(transport, testCfg, testRequest(), nil)
	require.NoError(t, s.Start(context.Background()))
	_, err := s.Wait(context.Background())

	assert.ErrorIs(t, err, errno.ErrDeviceDisconnected)
	assert.Equal(t, StateDisconnected, s.State())
}

func TestSessionApprovalTimeout(t *testing.T) {
	_, priv, _ := ed25519.GenerateKey(nil)
	link := newFakeLink(priv, never)
	transport := &fakeTransport{devices: []Peripheral{{ID: "1", Name: "Nano X"}}, link: link}

	cfg := Config{ScanTimeout: time.Second, ApprovalTimeout: 100 * time.Millisecond}
	s := NewSession(transport, cfg, testRequest(), nil)
	require.NoError(t, s.Start(context.Background()))
	_, err := s.Wait(context.Background())

	assert.ErrorIs(t, err, errno.ErrDeviceTimeout)
	assert.Equal(t, StateTimedOut, s.State())
	assert.Equal(t, int32(1), link.closes.Load())
}

func TestCancelBeforeStart(t *testing.T) {
	s := NewSession(&fakeTransport{}, testCfg, testRequest(), nil)
	s.Cancel()
	assert.Equal(t, StateCancelled, s.State())
	events := collect(s)
	require.NotEmpty(t, events)
	assert.Equal(t, EventCancelled, events[len(events)-1].Type)
}

func TestManagerRetriesDisconnect(t *testing.T) {
	_, priv, _ := ed25519.GenerateKey(nil)
	transport := &flakyTransport{priv: priv, failures: 1}

	m := NewManager(transport, testCfg, Retries{Disconnect: 1})
	var seen []EventType
	result, err := m.Sign(context.Background(), testRequest(), func(e Event) {
		seen = append(seen, e.Type)
	})
	require.NoError(t, err)
	assert.Len(t, result.Signature, ed25519.SignatureSize)
	assert.Equal(t, int32(2), transport.connects.Load())
	assert.Contains(t, seen, EventDisconnected)
	assert.Contains(t, seen, EventSigned)
}

// 重试后签名成功，监视不应被取消
func TestManagerRetryKeepsMonitor(t *testing.T) {
	_, priv, _ := ed25519.GenerateKey(nil)
	transport := &flakyTransport{priv: priv, failures: 1}
	aborts := &abortRecorder{}

	m := NewManager(transport, testCfg, Retries{Disconnect: 1})
	m.SetMonitorCanceller(aborts.cancel)

	result, err := m.Sign(context.Background(), testRequest(), nil)
	require.NoError(t, err)
	assert.Len(t, result.Signature, ed25519.SignatureSize)
	assert.Equal(t, int32(2), transport.connects.Load())
	assert.Empty(t, aborts.calls())
}

func TestManagerRetriesExhaustedAbortsOnce(t *testing.T) {
	_, priv, _ := ed25519.GenerateKey(nil)
	transport := &flakyTransport{priv: priv, failures: 5}
	aborts := &abortRecorder{}

	m := NewManager(transport, testCfg, Retries{Disconnect: 2})
	m.SetMonitorCanceller(aborts.cancel)

	_, err := m.Sign(context.Background(), testRequest(), nil)
	assert.ErrorIs(t, err, errno.ErrDeviceDisconnected)
	assert.Equal(t, int32(3), transport.connects.Load())
	assert.Equal(t, []string{"TX-1"}, aborts.calls())
}

// stalledTransport 发现设备后连接一直挂起直到 ctx 结束
type stalledTransport struct {
	fakeTransport
}

func (t *stalledTransport) Connect(ctx context.Context, p Peripheral) (Link, error) {
	t.connects.Add(1)
	<-ctx.Done()
	return nil, ctx.Err()
}

func TestSessionConnectTimesOut(t *testing.T) {
	transport := &stalledTransport{fakeTransport{devices: []Peripheral{{ID: "1", Name: "Nano X"}}}}
	aborts := &abortRecorder{}
	s := NewSession(transport, testCfg, testRequest(), aborts.cancel)

	start := time.Now()
	require.NoError(t, s.Start(context.Background()))
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_, err := s.Wait(ctx)

	assert.ErrorIs(t, err, errno.ErrDeviceTimeout)
	assert.Equal(t, StateTimedOut, s.State())
	assert.Less(t, time.Since(start), testCfg.ScanTimeout+500*time.Millisecond)
	assert.Equal(t, int32(1), transport.connects.Load())
	assert.Equal(t, []string{"TX-1"}, aborts.calls())
}

func TestManagerNoRetryOnReject(t *testing.T) {
	_, priv, _ := ed25519.GenerateKey(nil)
	transport := &fakeTransport{devices: []Peripheral{{ID: "1", Name: "Nano X"}}, link: newFakeLink(priv, reject)}

	m := NewManager(transport, testCfg, Retries{Timeout: 3, Disconnect: 3})
	_, err := m.Sign(context.Background(), testRequest(), nil)
	assert.ErrorIs(t, err, errno.ErrDeviceRejected)
	assert.Equal(t, int32(1), transport.connects.Load())
}

// flakyTransport 前 failures 次连接在签名时断开
type flakyTransport struct {
	priv     ed25519.PrivateKey
	failures int32
	connects atomic.Int32
}

func (t *flakyTransport) Scan(ctx context.Context) (<-chan Peripheral, error) {
	ch := make(chan Peripheral, 1)
	ch <- Peripheral{ID: "1", Name: "Nano X"}
	return ch, nil
}

func (t *flakyTransport) Connect(ctx context.Context, p Peripheral) (Link, error) {
	n := t.connects.Add(1)
	if n <= t.failures {
		return newFakeLink(t.priv, unplug), nil
	}
	return newFakeLink(t.priv, approve), nil
}
