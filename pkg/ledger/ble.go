package ledger

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
)

const (
	bleTag = 0x05

	// DefaultMTU 协商前的最小 MTU
	DefaultMTU = 23
)

var ErrFrameOutOfOrder = errors.New("ledger: ble frame out of order")

// Frame 把 APDU 切成 BLE 帧
// 帧格式: tag(1) seq(2)，首帧额外携带 total length(2)
func Frame(apdu []byte, mtu int) ([][]byte, error) {
	if mtu <= 5 {
		return nil, fmt.Errorf("ledger: mtu %d too small", mtu)
	}
	if len(apdu) > 0xFFFF {
		return nil, fmt.Errorf("ledger: apdu too large (%d)", len(apdu))
	}

	var frames [][]byte
	remaining := apdu
	for seq := uint16(0); seq == 0 || len(remaining) > 0; seq++ {
		frame := make([]byte, 0, mtu)
		frame = append(frame, bleTag)
		frame = binary.BigEndian.AppendUint16(frame, seq)
		if seq == 0 {
			frame = binary.BigEndian.AppendUint16(frame, uint16(len(apdu)))
		}
		n := min(mtu-len(frame), len(remaining))
		frame = append(frame, remaining[:n]...)
		remaining = remaining[n:]
		frames = append(frames, frame)
	}
	return frames, nil
}

// Reassembler 按序重组响应帧
type Reassembler struct {
	buf      []byte
	expected int
	seq      uint16
}

// Push 追加一帧，完整时返回 (apdu, true, nil)
func (r *Reassembler) Push(frame []byte) ([]byte, bool, error) {
	if len(frame) < 3 || frame[0] != bleTag {
		return nil, false, fmt.Errorf("ledger: malformed ble frame")
	}
	seq := binary.BigEndian.Uint16(frame[1:3])
	if seq != r.seq {
		return nil, false, ErrFrameOutOfOrder
	}
	body := frame[3:]
	if seq == 0 {
		if len(body) < 2 {
			return nil, false, fmt.Errorf("ledger: first frame missing length")
		}
		r.expected = int(binary.BigEndian.Uint16(body[:2]))
		r.buf = make([]byte, 0, r.expected)
		body = body[2:]
	}
	r.seq++

	r.buf = append(r.buf, body...)
	if len(r.buf) < r.expected {
		return nil, false, nil
	}
	out := r.buf[:r.expected]
	*r = Reassembler{}
	return out, true, nil
}

// FrameLink 以帧为单位读写的底层连接 (BLE 特征值 write / notify)
type FrameLink interface {
	WriteFrame(ctx context.Context, frame []byte) error
	ReadFrame(ctx context.Context) ([]byte, error)
}

// BLEExchanger 在 FrameLink 上实现 Exchanger
type BLEExchanger struct {
	link FrameLink
	mtu  int
}

func NewBLEExchanger(link FrameLink, mtu int) *BLEExchanger {
	if mtu <= 0 {
		mtu = DefaultMTU
	}
	return &BLEExchanger{link: link, mtu: mtu}
}

func (b *BLEExchanger) Exchange(ctx context.Context, apdu []byte) ([]byte, error) {
	frames, err := Frame(apdu, b.mtu)
	if err != nil {
		return nil, err
	}
	for _, f := range frames {
		if err := b.link.WriteFrame(ctx, f); err != nil {
			return nil, err
		}
	}

	var r Reassembler
	for {
		frame, err := b.link.ReadFrame(ctx)
		if err != nil {
			return nil, err
		}
		resp, done, err := r.Push(frame)
		if err != nil {
			return nil, err
		}
		if done {
			return resp, nil
		}
	}
}
