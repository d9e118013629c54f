package hardware

import (
	"context"
	"errors"
	"io"
	"net"
	"sync"

	"wallet-signer/pkg/ledger"
)

// Peripheral 扫描到的设备
type Peripheral struct {
	ID   string
	Name string
}

// Transport 设备发现与连接 (BLE、USB 或模拟器)
type Transport interface {
	// Scan 持续上报发现的设备，ctx 结束时关闭通道并停止扫描
	Scan(ctx context.Context) (<-chan Peripheral, error)
	Connect(ctx context.Context, p Peripheral) (Link, error)
}

// Link 已建立的设备连接
type Link interface {
	ledger.Exchanger
	// Disconnected 在链路断开时关闭
	Disconnected() <-chan struct{}
	Close() error
}

// baseLink Close 幂等，断开通知只触发一次
type baseLink struct {
	once   sync.Once
	gone   chan struct{}
	closer func() error
	err    error
}

func newBaseLink(closer func() error) *baseLink {
	return &baseLink{gone: make(chan struct{}), closer: closer}
}

func (b *baseLink) Disconnected() <-chan struct{} { return b.gone }

func (b *baseLink) Close() error {
	b.once.Do(func() {
		if b.closer != nil {
			b.err = b.closer()
		}
		close(b.gone)
	})
	return b.err
}

// --- 模拟器 (Speculos APDU over TCP) ---

// EmulatorTransport 开发环境下连接设备模拟器
type EmulatorTransport struct {
	Addr string
	Name string
}

func (t *EmulatorTransport) Scan(ctx context.Context) (<-chan Peripheral, error) {
	ch := make(chan Peripheral, 1)
	go func() {
		defer close(ch)
		// 端口可连通即视为发现设备
		var d net.Dialer
		conn, err := d.DialContext(ctx, "tcp", t.Addr)
		if err != nil {
			<-ctx.Done()
			return
		}
		_ = conn.Close()

		name := t.Name
		if name == "" {
			name = "Speculos"
		}
		select {
		case ch <- Peripheral{ID: t.Addr, Name: name}:
		case <-ctx.Done():
		}
	}()
	return ch, nil
}

func (t *EmulatorTransport) Connect(ctx context.Context, p Peripheral) (Link, error) {
	ex, err := ledger.DialTCP(ctx, p.ID)
	if err != nil {
		return nil, err
	}
	return &tcpLink{ex: ex, baseLink: newBaseLink(ex.Close)}, nil
}

type tcpLink struct {
	*baseLink
	ex *ledger.TCPExchanger
}

func (l *tcpLink) Exchange(ctx context.Context, apdu []byte) ([]byte, error) {
	resp, err := l.ex.Exchange(ctx, apdu)
	if err != nil && isConnectionLost(err) {
		_ = l.Close()
	}
	return resp, err
}

// --- BLE ---

// BLELink 平台 BLE 栈给出的帧链路之上的 Link
type BLELink struct {
	*baseLink
	ex *ledger.BLEExchanger
}

// NewBLELink frames 为平台实现的特征值读写，disconnected 由平台在断连时关闭
func NewBLELink(frames ledger.FrameLink, mtu int, disconnected <-chan struct{}, closer func() error) *BLELink {
	l := &BLELink{baseLink: newBaseLink(closer), ex: ledger.NewBLEExchanger(frames, mtu)}
	if disconnected != nil {
		go func() {
			select {
			case <-disconnected:
				_ = l.Close()
			case <-l.gone:
			}
		}()
	}
	return l
}

func (l *BLELink) Exchange(ctx context.Context, apdu []byte) ([]byte, error) {
	resp, err := l.ex.Exchange(ctx, apdu)
	if err != nil && isConnectionLost(err) {
		_ = l.Close()
	}
	return resp, err
}

func isConnectionLost(err error) bool {
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, net.ErrClosed) {
		return true
	}
	var opErr *net.OpError
	return errors.As(err, &opErr) && !opErr.Timeout()
}
