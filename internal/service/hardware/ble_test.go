package hardware

import (
	"context"
	"crypto/ed25519"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"wallet-signer/pkg/errno"
	"wallet-signer/pkg/ledger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// bleDevice 在帧层模拟设备: 重组请求帧，按 fakeLink 的行为应答
type bleDevice struct {
	inner  *fakeLink
	mtu    int
	in     ledger.Reassembler
	frames chan []byte
	gone   chan struct{}
	once   sync.Once
	closes atomic.Int32
}

func newBLEDevice(priv ed25519.PrivateKey, behavior approval, mtu int) *bleDevice {
	return &bleDevice{
		inner:  newFakeLink(priv, behavior),
		mtu:    mtu,
		frames: make(chan []byte, 64),
		gone:   make(chan struct{}),
	}
}

func (d *bleDevice) WriteFrame(ctx context.Context, frame []byte) error {
	apdu, done, err := d.in.Push(frame)
	if err != nil || !done {
		return err
	}
	go func() {
		resp, err := d.inner.Exchange(ctx, apdu)
		if err != nil {
			return
		}
		out, err := ledger.Frame(resp, d.mtu)
		if err != nil {
			return
		}
		for _, f := range out {
			select {
			case d.frames <- f:
			case <-d.gone:
				return
			}
		}
	}()
	return nil
}

func (d *bleDevice) ReadFrame(ctx context.Context) ([]byte, error) {
	select {
	case f := <-d.frames:
		return f, nil
	case <-d.gone:
		return nil, errDeviceGone
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (d *bleDevice) Disconnected() <-chan struct{} { return d.gone }

func (d *bleDevice) unplug() {
	d.once.Do(func() { close(d.gone) })
}

func (d *bleDevice) Close() error {
	d.closes.Add(1)
	d.unplug()
	return nil
}

type fakeCentral struct {
	adverts []Peripheral
	dev     *bleDevice
	dials   atomic.Int32
}

func (c *fakeCentral) Scan(ctx context.Context, found func(Peripheral)) error {
	for _, p := range c.adverts {
		found(p)
	}
	<-ctx.Done()
	return nil
}

func (c *fakeCentral) Dial(ctx context.Context, p Peripheral) (BLEConn, error) {
	c.dials.Add(1)
	return c.dev, nil
}

func TestBLETransportSigns(t *testing.T) {
	_, priv, _ := ed25519.GenerateKey(nil)
	dev := newBLEDevice(priv, approve, 20)
	central := &fakeCentral{adverts: []Peripheral{{ID: "AA:BB", Name: "Nano X 99"}}, dev: dev}

	req := testRequest()
	s := NewSession(NewBLETransport(central, 20), testCfg, req, nil)
	require.NoError(t, s.Start(context.Background()))
	result, err := s.Wait(context.Background())
	require.NoError(t, err)

	assert.Equal(t, StateSigned, s.State())
	assert.Equal(t, "Nano X 99", result.DeviceName)
	assert.True(t, ed25519.Verify(result.PublicKey, append([]byte("TX"), req.Bytes...), result.Signature))
	assert.Equal(t, int32(1), central.dials.Load())
	assert.Equal(t, int32(1), dev.closes.Load())
}

func TestBLETransportDeviceLost(t *testing.T) {
	_, priv, _ := ed25519.GenerateKey(nil)
	dev := newBLEDevice(priv, never, 64)
	central := &fakeCentral{adverts: []Peripheral{{ID: "AA:BB", Name: "Nano X"}}, dev: dev}

	s := NewSession(NewBLETransport(central, 64), testCfg, testRequest(), nil)
	require.NoError(t, s.Start(context.Background()))

	select {
	case <-dev.inner.pushed:
	case <-time.After(time.Second):
		t.Fatal("transaction never pushed")
	}
	dev.unplug()

	_, err := s.Wait(context.Background())
	assert.ErrorIs(t, err, errno.ErrDeviceDisconnected)
	assert.Equal(t, StateDisconnected, s.State())
}

func TestBLEScanReportsEachDeviceOnce(t *testing.T) {
	central := &fakeCentral{adverts: []Peripheral{
		{ID: "AA", Name: "Nano X"},
		{ID: "AA", Name: "Nano X"},
		{ID: "BB", Name: "Nano X 2"},
	}}
	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	found, err := NewBLETransport(central, 0).Scan(ctx)
	require.NoError(t, err)
	var ids []string
	for p := range found {
		ids = append(ids, p.ID)
	}
	assert.Equal(t, []string{"AA", "BB"}, ids)
}

func TestNewTransport(t *testing.T) {
	tr, err := NewTransport(TransportEmulator, "127.0.0.1:9999", "Speculos", 0)
	require.NoError(t, err)
	assert.IsType(t, &EmulatorTransport{}, tr)

	_, err = NewTransport("usb", "", "", 0)
	assert.Error(t, err)
}
