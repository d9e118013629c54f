package ledger

import (
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"net"
	"sync"
	"time"
)

// TCPExchanger 连接 Speculos 模拟器的 APDU 端口
// 请求: len(4) || apdu；响应: len(4) || data || sw(2)，len 不含 sw
type TCPExchanger struct {
	mu   sync.Mutex
	conn net.Conn
}

// DialTCP 连接模拟器
func DialTCP(ctx context.Context, addr string) (*TCPExchanger, error) {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, err
	}
	return NewTCPExchanger(conn), nil
}

func NewTCPExchanger(conn net.Conn) *TCPExchanger {
	return &TCPExchanger{conn: conn}
}

func (t *TCPExchanger) Exchange(ctx context.Context, apdu []byte) ([]byte, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if deadline, ok := ctx.Deadline(); ok {
		_ = t.conn.SetDeadline(deadline)
	} else {
		_ = t.conn.SetDeadline(time.Time{})
	}

	// ctx 取消时打断阻塞读写
	stop := context.AfterFunc(ctx, func() {
		_ = t.conn.SetDeadline(time.Now())
	})
	defer stop()

	req := binary.BigEndian.AppendUint32(nil, uint32(len(apdu)))
	if _, err := t.conn.Write(append(req, apdu...)); err != nil {
		return nil, t.wrap(ctx, err)
	}

	var header [4]byte
	if _, err := io.ReadFull(t.conn, header[:]); err != nil {
		return nil, t.wrap(ctx, err)
	}
	n := binary.BigEndian.Uint32(header[:])
	if n > 0xFFFF {
		return nil, fmt.Errorf("ledger: emulator response too large (%d)", n)
	}
	resp := make([]byte, int(n)+2)
	if _, err := io.ReadFull(t.conn, resp); err != nil {
		return nil, t.wrap(ctx, err)
	}
	return resp, nil
}

func (t *TCPExchanger) Close() error {
	return t.conn.Close()
}

func (t *TCPExchanger) wrap(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	return err
}
