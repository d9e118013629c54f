package hardware

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"tinygo.org/x/bluetooth"
)

// Ledger Nano X GATT 服务与特征值
const (
	ledgerServiceUUID = "13d63400-2c97-0004-0000-4c6564676572"
	ledgerNotifyUUID  = "13d63400-2c97-0004-0001-4c6564676572"
	ledgerWriteUUID   = "13d63400-2c97-0004-0002-4c6564676572"
)

const notifyBuffer = 64

var errNoLedgerService = errors.New("ble: ledger service not found")

// TinyGoCentral 基于 tinygo.org/x/bluetooth 的 BLECentral (Linux BlueZ / macOS / Windows)
type TinyGoCentral struct {
	adapter *bluetooth.Adapter
	service bluetooth.UUID

	enableOnce sync.Once
	enableErr  error

	mu    sync.Mutex
	seen  map[string]bluetooth.Address // Peripheral.ID -> 地址
	conns map[string]*tinygoConn
}

func NewTinyGoCentral() (*TinyGoCentral, error) {
	svc, err := bluetooth.ParseUUID(ledgerServiceUUID)
	if err != nil {
		return nil, err
	}
	return &TinyGoCentral{
		adapter: bluetooth.DefaultAdapter,
		service: svc,
		seen:    make(map[string]bluetooth.Address),
		conns:   make(map[string]*tinygoConn),
	}, nil
}

func (c *TinyGoCentral) enable() error {
	c.enableOnce.Do(func() {
		c.enableErr = c.adapter.Enable()
		if c.enableErr == nil {
			c.adapter.SetConnectHandler(c.onConnect)
		}
	})
	return c.enableErr
}

// onConnect 平台断连通知
func (c *TinyGoCentral) onConnect(device bluetooth.Device, connected bool) {
	if connected {
		return
	}
	c.mu.Lock()
	conn, ok := c.conns[device.Address.String()]
	delete(c.conns, device.Address.String())
	c.mu.Unlock()
	if ok {
		conn.markGone()
	}
}

func (c *TinyGoCentral) Scan(ctx context.Context, found func(Peripheral)) error {
	if err := c.enable(); err != nil {
		return fmt.Errorf("ble enable: %w", err)
	}
	if ctx.Err() != nil {
		return nil
	}
	stop := context.AfterFunc(ctx, func() { _ = c.adapter.StopScan() })
	defer stop()

	err := c.adapter.Scan(func(a *bluetooth.Adapter, r bluetooth.ScanResult) {
		if ctx.Err() != nil {
			_ = a.StopScan()
			return
		}
		if !r.HasServiceUUID(c.service) {
			return
		}
		id := r.Address.String()
		c.mu.Lock()
		c.seen[id] = r.Address
		c.mu.Unlock()
		found(Peripheral{ID: id, Name: r.LocalName()})
	})
	if ctx.Err() != nil {
		return nil
	}
	return err
}

func (c *TinyGoCentral) Dial(ctx context.Context, p Peripheral) (BLEConn, error) {
	c.mu.Lock()
	addr, ok := c.seen[p.ID]
	c.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("ble: peripheral %s was not discovered", p.ID)
	}

	device, err := c.adapter.Connect(addr, bluetooth.ConnectionParams{})
	if err != nil {
		return nil, err
	}
	conn, err := openLedgerGATT(device, c.service)
	if err != nil {
		_ = device.Disconnect()
		return nil, err
	}

	c.mu.Lock()
	c.conns[p.ID] = conn
	c.mu.Unlock()
	return conn, nil
}

func openLedgerGATT(device bluetooth.Device, service bluetooth.UUID) (*tinygoConn, error) {
	services, err := device.DiscoverServices([]bluetooth.UUID{service})
	if err != nil {
		return nil, err
	}
	if len(services) == 0 {
		return nil, errNoLedgerService
	}
	chars, err := services[0].DiscoverCharacteristics(nil)
	if err != nil {
		return nil, err
	}

	conn := &tinygoConn{
		device: device,
		frames: make(chan []byte, notifyBuffer),
		gone:   make(chan struct{}),
	}
	var notify *bluetooth.DeviceCharacteristic
	for i := range chars {
		switch strings.ToLower(chars[i].UUID().String()) {
		case ledgerWriteUUID:
			conn.write = chars[i]
			conn.hasWrite = true
		case ledgerNotifyUUID:
			notify = &chars[i]
		}
	}
	if !conn.hasWrite || notify == nil {
		return nil, errNoLedgerService
	}
	if err := notify.EnableNotifications(conn.onNotify); err != nil {
		return nil, err
	}
	return conn, nil
}

type tinygoConn struct {
	device   bluetooth.Device
	write    bluetooth.DeviceCharacteristic
	hasWrite bool
	frames   chan []byte

	goneOnce  sync.Once
	gone      chan struct{}
	closeOnce sync.Once
	closeErr  error
}

func (c *tinygoConn) onNotify(buf []byte) {
	frame := append([]byte(nil), buf...)
	select {
	case c.frames <- frame:
	default:
		// 缓冲满说明读端已放弃，丢弃即可
	}
}

func (c *tinygoConn) WriteFrame(ctx context.Context, frame []byte) error {
	select {
	case <-c.gone:
		return errDeviceGone
	default:
	}
	_, err := c.write.Write(frame)
	return err
}

func (c *tinygoConn) ReadFrame(ctx context.Context) ([]byte, error) {
	select {
	case f := <-c.frames:
		return f, nil
	case <-c.gone:
		return nil, errDeviceGone
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (c *tinygoConn) Disconnected() <-chan struct{} { return c.gone }

func (c *tinygoConn) markGone() {
	c.goneOnce.Do(func() { close(c.gone) })
}

func (c *tinygoConn) Close() error {
	c.closeOnce.Do(func() {
		c.closeErr = c.device.Disconnect()
		c.markGone()
	})
	return c.closeErr
}
