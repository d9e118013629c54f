// Package ledger 实现与 Ledger 设备上 Algorand 应用通信所需的 APDU 协议和传输层封装。
package ledger

import (
	"context"
	"crypto/ed25519"
	"encoding/binary"
	"errors"
	"fmt"
)

const (
	CLA = 0x80

	InsGetPublicKey = 0x03
	InsSignMsgpack  = 0x08

	P1First          = 0x00
	P1FirstAccountID = 0x01
	P1More           = 0x80
	P2Last           = 0x00
	P2More           = 0x80

	// ChunkSize 单个 APDU 数据段上限
	ChunkSize = 250
)

// Status words
const (
	StatusOK             uint16 = 0x9000
	StatusUserRejected   uint16 = 0x6985
	StatusInvalidParam   uint16 = 0x6986
	StatusAppNotOpen     uint16 = 0x6E01
	StatusDeviceLocked   uint16 = 0x5515
	StatusWrongDataLen   uint16 = 0x6700
	StatusInvalidCommand uint16 = 0x6D00
)

var ErrShortResponse = errors.New("ledger: response shorter than status word")

// StatusError 设备返回非 0x9000
type StatusError struct {
	SW uint16
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("ledger: status 0x%04X", e.SW)
}

// Rejected reports whether the user declined the request on the device
func (e *StatusError) Rejected() bool {
	return e.SW == StatusUserRejected || e.SW == StatusInvalidParam
}

// Command 单条 APDU 指令
type Command struct {
	CLA, INS, P1, P2 byte
	Data             []byte
}

// Encode CLA INS P1 P2 Lc Data
func (c Command) Encode() []byte {
	out := make([]byte, 0, 5+len(c.Data))
	out = append(out, c.CLA, c.INS, c.P1, c.P2, byte(len(c.Data)))
	return append(out, c.Data...)
}

// ParseResponse 拆分数据与状态字，非 0x9000 返回 *StatusError
func ParseResponse(resp []byte) ([]byte, error) {
	if len(resp) < 2 {
		return nil, ErrShortResponse
	}
	sw := binary.BigEndian.Uint16(resp[len(resp)-2:])
	if sw != StatusOK {
		return nil, &StatusError{SW: sw}
	}
	return resp[:len(resp)-2], nil
}

// GetPublicKeyCommand 查询 account 序号对应的公钥
func GetPublicKeyCommand(account uint32) Command {
	return Command{CLA: CLA, INS: InsGetPublicKey, P1: P1First, P2: P2Last, Data: binary.BigEndian.AppendUint32(nil, account)}
}

// SignCommands 把 account || msgpack(txn) 切成多段签名指令
func SignCommands(account uint32, txn []byte) []Command {
	payload := binary.BigEndian.AppendUint32(nil, account)
	payload = append(payload, txn...)

	var cmds []Command
	for offset := 0; offset < len(payload); offset += ChunkSize {
		end := min(offset+ChunkSize, len(payload))

		p1 := byte(P1More)
		if offset == 0 {
			p1 = P1FirstAccountID
		}
		p2 := byte(P2More)
		if end == len(payload) {
			p2 = P2Last
		}
		cmds = append(cmds, Command{CLA: CLA, INS: InsSignMsgpack, P1: p1, P2: p2, Data: payload[offset:end]})
	}
	return cmds
}

// Exchanger 发送一条 APDU 并返回原始响应 (含状态字)
type Exchanger interface {
	Exchange(ctx context.Context, apdu []byte) ([]byte, error)
}

// App Algorand 应用客户端
type App struct {
	ex Exchanger
}

func NewApp(ex Exchanger) *App {
	return &App{ex: ex}
}

// PublicKey 读取设备账户公钥
func (a *App) PublicKey(ctx context.Context, account uint32) (ed25519.PublicKey, error) {
	data, err := a.send(ctx, GetPublicKeyCommand(account))
	if err != nil {
		return nil, err
	}
	if len(data) < ed25519.PublicKeySize {
		return nil, fmt.Errorf("ledger: public key length %d", len(data))
	}
	return ed25519.PublicKey(append([]byte(nil), data[:ed25519.PublicKeySize]...)), nil
}

// SignMsgpack 请求设备签名，设备上需要用户确认，阻塞直到用户操作或 ctx 结束
func (a *App) SignMsgpack(ctx context.Context, account uint32, txn []byte) ([]byte, error) {
	var data []byte
	for _, cmd := range SignCommands(account, txn) {
		var err error
		if data, err = a.send(ctx, cmd); err != nil {
			return nil, err
		}
	}
	if len(data) < ed25519.SignatureSize {
		return nil, fmt.Errorf("ledger: signature length %d", len(data))
	}
	return append([]byte(nil), data[:ed25519.SignatureSize]...), nil
}

func (a *App) send(ctx context.Context, cmd Command) ([]byte, error) {
	resp, err := a.ex.Exchange(ctx, cmd.Encode())
	if err != nil {
		return nil, err
	}
	return ParseResponse(resp)
}
