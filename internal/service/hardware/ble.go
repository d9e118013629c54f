package hardware

import (
	"context"
	"fmt"
	"io"

	"wallet-signer/pkg/ledger"
	"wallet-signer/pkg/logger"

	"go.uber.org/zap"
)

var errDeviceGone = fmt.Errorf("ble: device disconnected: %w", io.EOF)

// BLECentral 平台 BLE 中心设备 (扫描 + GATT 连接)
type BLECentral interface {
	// Scan 阻塞扫描，直到 ctx 结束或出错；每个广播调用一次 found
	Scan(ctx context.Context, found func(Peripheral)) error
	Dial(ctx context.Context, p Peripheral) (BLEConn, error)
}

// BLEConn 已订阅通知的 GATT 连接
type BLEConn interface {
	ledger.FrameLink
	// Disconnected 在设备断开时关闭
	Disconnected() <-chan struct{}
	Close() error
}

// BLETransport 无线硬件设备传输
type BLETransport struct {
	Central BLECentral
	MTU     int
}

func NewBLETransport(c BLECentral, mtu int) *BLETransport {
	return &BLETransport{Central: c, MTU: mtu}
}

func (t *BLETransport) Scan(ctx context.Context) (<-chan Peripheral, error) {
	ch := make(chan Peripheral)
	go func() {
		defer close(ch)
		seen := make(map[string]bool)
		err := t.Central.Scan(ctx, func(p Peripheral) {
			if seen[p.ID] {
				return
			}
			seen[p.ID] = true
			select {
			case ch <- p:
			case <-ctx.Done():
			}
		})
		if err != nil && ctx.Err() == nil {
			logger.Warn("ble scan stopped", zap.Error(err))
		}
	}()
	return ch, nil
}

func (t *BLETransport) Connect(ctx context.Context, p Peripheral) (Link, error) {
	conn, err := t.Central.Dial(ctx, p)
	if err != nil {
		return nil, fmt.Errorf("ble connect %s: %w", p.Name, err)
	}
	return NewBLELink(conn, t.MTU, conn.Disconnected(), conn.Close), nil
}

// Transport 类型，对应 hardware.transport
const (
	TransportEmulator = "emulator"
	TransportBLE      = "ble"
)

// NewTransport 按配置选择设备传输；emulator 连接 addr，ble 使用系统蓝牙适配器
func NewTransport(kind, addr, deviceName string, mtu int) (Transport, error) {
	switch kind {
	case TransportEmulator:
		return &EmulatorTransport{Addr: addr, Name: deviceName}, nil
	case TransportBLE:
		central, err := NewTinyGoCentral()
		if err != nil {
			return nil, err
		}
		return NewBLETransport(central, mtu), nil
	}
	return nil, fmt.Errorf("unknown hardware transport %q", kind)
}
