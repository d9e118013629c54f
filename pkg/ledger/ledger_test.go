package ledger

import (
	"bytes"
	"context"
	"crypto/ed25519"
	"encoding/binary"
	"errors"
	"io"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSignCommandsChunking(t *testing.T) {
	txn := bytes.Repeat([]byte{0xAB}, 600)
	cmds := SignCommands(3, txn)

	// 4 + 600 = 604 -> 250 + 250 + 104
	require.Len(t, cmds, 3)
	assert.Equal(t, byte(P1FirstAccountID), cmds[0].P1)
	assert.Equal(t, byte(P2More), cmds[0].P2)
	assert.Equal(t, []byte{0, 0, 0, 3}, cmds[0].Data[:4])
	assert.Equal(t, byte(P1More), cmds[1].P1)
	assert.Equal(t, byte(P2Last), cmds[2].P2)
	assert.Len(t, cmds[2].Data, 104)

	enc := cmds[2].Encode()
	assert.Equal(t, []byte{CLA, InsSignMsgpack, P1More, P2Last, 104}, enc[:5])
}

func TestParseResponse(t *testing.T) {
	data, err := ParseResponse([]byte{1, 2, 0x90, 0x00})
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 2}, data)

	_, err = ParseResponse([]byte{0x69, 0x85})
	var se *StatusError
	require.True(t, errors.As(err, &se))
	assert.True(t, se.Rejected())

	_, err = ParseResponse([]byte{0x90})
	assert.ErrorIs(t, err, ErrShortResponse)
}

func TestBLEFrameRoundTrip(t *testing.T) {
	apdu := bytes.Repeat([]byte{1, 2, 3, 4, 5}, 20) // 100 bytes
	frames, err := Frame(apdu, 23)
	require.NoError(t, err)
	// 首帧 18 字节负载，之后每帧 20 字节: 18 + 20*4 = 98 < 100 -> 6 帧
	require.Len(t, frames, 6)
	for i, f := range frames {
		assert.LessOrEqual(t, len(f), 23)
		assert.Equal(t, uint16(i), binary.BigEndian.Uint16(f[1:3]))
	}

	var r Reassembler
	var out []byte
	for i, f := range frames {
		got, done, err := r.Push(f)
		require.NoError(t, err)
		assert.Equal(t, i == len(frames)-1, done)
		if done {
			out = got
		}
	}
	assert.Equal(t, apdu, out)
}

func TestBLEReassemblerOutOfOrder(t *testing.T) {
	frames, _ := Frame(bytes.Repeat([]byte{9}, 60), 23)
	var r Reassembler
	_, _, err := r.Push(frames[1])
	assert.ErrorIs(t, err, ErrFrameOutOfOrder)
}

// fakeDevice 在 FrameLink 上模拟 Algorand 应用
type fakeDevice struct {
	priv    ed25519.PrivateKey
	mtu     int
	in      Reassembler
	out     [][]byte
	payload []byte
	reject  bool
}

func (d *fakeDevice) WriteFrame(ctx context.Context, frame []byte) error {
	apdu, done, err := d.in.Push(frame)
	if err != nil || !done {
		return err
	}
	resp := d.handle(apdu)
	d.out, err = Frame(resp, d.mtu)
	return err
}

func (d *fakeDevice) ReadFrame(ctx context.Context) ([]byte, error) {
	if len(d.out) == 0 {
		return nil, io.EOF
	}
	f := d.out[0]
	d.out = d.out[1:]
	return f, nil
}

func (d *fakeDevice) handle(apdu []byte) []byte {
	ins, p1, p2, data := apdu[1], apdu[2], apdu[3], apdu[5:]
	switch ins {
	case InsGetPublicKey:
		return append(append([]byte(nil), d.priv.Public().(ed25519.PublicKey)...), 0x90, 0x00)
	case InsSignMsgpack:
		if p1 == P1FirstAccountID {
			d.payload = append([]byte(nil), data[4:]...)
		} else {
			d.payload = append(d.payload, data...)
		}
		if p2 == P2More {
			return []byte{0x90, 0x00}
		}
		if d.reject {
			return []byte{0x69, 0x85}
		}
		sig := ed25519.Sign(d.priv, append([]byte("TX"), d.payload...))
		return append(sig, 0x90, 0x00)
	}
	return []byte{0x6D, 0x00}
}

func TestAppOverBLE(t *testing.T) {
	_, priv, _ := ed25519.GenerateKey(nil)
	dev := &fakeDevice{priv: priv, mtu: 64}
	app := NewApp(NewBLEExchanger(dev, 64))
	ctx := context.Background()

	pub, err := app.PublicKey(ctx, 0)
	require.NoError(t, err)
	assert.True(t, pub.Equal(priv.Public()))

	txn := bytes.Repeat([]byte{0x42}, 400)
	sig, err := app.SignMsgpack(ctx, 0, txn)
	require.NoError(t, err)
	assert.True(t, ed25519.Verify(pub, append([]byte("TX"), txn...), sig))

	dev.reject = true
	_, err = app.SignMsgpack(ctx, 0, txn)
	var se *StatusError
	require.True(t, errors.As(err, &se))
	assert.True(t, se.Rejected())
}

func TestTCPExchanger(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		var header [4]byte
		if _, err := io.ReadFull(conn, header[:]); err != nil {
			return
		}
		req := make([]byte, binary.BigEndian.Uint32(header[:]))
		if _, err := io.ReadFull(conn, req); err != nil {
			return
		}
		// 回显 INS 作为数据
		resp := binary.BigEndian.AppendUint32(nil, 1)
		resp = append(resp, req[1], 0x90, 0x00)
		_, _ = conn.Write(resp)
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	ex, err := DialTCP(ctx, ln.Addr().String())
	require.NoError(t, err)
	defer ex.Close()

	resp, err := ex.Exchange(ctx, GetPublicKeyCommand(0).Encode())
	require.NoError(t, err)
	data, err := ParseResponse(resp)
	require.NoError(t, err)
	assert.Equal(t, []byte{InsGetPublicKey}, data)
}

func TestTCPExchangerCancel(t *testing.T) {
	client, server := net.Pipe()
	defer server.Close()
	ex := NewTCPExchanger(client)
	defer ex.Close()

	// 服务端只读不回
	go func() { _, _ = io.Copy(io.Discard, server) }()

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(50 * time.Millisecond)
		cancel()
	}()

	_, err := ex.Exchange(ctx, []byte{1, 2, 3})
	assert.ErrorIs(t, err, context.Canceled)
}
