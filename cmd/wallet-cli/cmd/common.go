package cmd

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"syscall"

	"wallet-signer/internal/model"
	"wallet-signer/internal/network"
	"wallet-signer/internal/service/encoder"
	"wallet-signer/internal/service/hardware"
	"wallet-signer/internal/service/signer"
	"wallet-signer/pkg/config"
	"wallet-signer/pkg/errno"
	"wallet-signer/pkg/keystore"

	"github.com/spf13/cobra"
	"golang.org/x/term"
)

var stdin = bufio.NewReader(os.Stdin)

// fail 打印错误并退出
func fail(format string, args ...interface{}) {
	fmt.Printf(format+"\n", args...)
	os.Exit(1)
}

// readPassword 从终端读取密码，不回显
func readPassword(prompt string) (string, error) {
	fmt.Print(prompt + ": ")
	b, err := term.ReadPassword(int(syscall.Stdin))
	fmt.Println()
	if err != nil {
		return "", fmt.Errorf("读取密码失败: %w", err)
	}
	return string(b), nil
}

// readNewPassword 设置密码需要输入两次
func readNewPassword() (string, error) {
	pw, err := readPassword("输入密码")
	if err != nil {
		return "", err
	}
	confirm, err := readPassword("确认密码")
	if err != nil {
		return "", err
	}
	if pw != confirm {
		return "", errors.New("两次输入的密码不一致")
	}
	if len(pw) < 8 {
		return "", errors.New("密码至少需要 8 个字符")
	}
	return pw, nil
}

// terminalPassword 每个提示只询问一次 (一组交易共用同一把密钥)
func terminalPassword() signer.PasswordFunc {
	var (
		mu    sync.Mutex
		cache = map[string]string{}
	)
	return func(ctx context.Context, prompt string) (string, error) {
		mu.Lock()
		defer mu.Unlock()
		if pw, ok := cache[prompt]; ok {
			return pw, nil
		}
		pw, err := readPassword(prompt)
		if err != nil {
			return "", errno.ErrUserCancelled.Wrap(err)
		}
		cache[prompt] = pw
		return pw, nil
	}
}

func fixedPassword(pw string) signer.PasswordFunc {
	return func(ctx context.Context, prompt string) (string, error) { return pw, nil }
}

// readLine 读取一行明文输入 (助记词)
func readLine(prompt string) (string, error) {
	fmt.Print(prompt + ": ")
	line, err := stdin.ReadString('\n')
	if err != nil && line == "" {
		return "", err
	}
	return strings.Join(strings.Fields(line), " "), nil
}

// confirm 默认拒绝
func confirm(prompt string) bool {
	answer, err := readLine(prompt + " [y/N]")
	if err != nil {
		return false
	}
	answer = strings.ToLower(answer)
	return answer == "y" || answer == "yes"
}

func openKeystore() *keystore.Dir {
	dir, err := keystore.NewDir(config.Global.Wallet.KeystoreDir)
	if err != nil {
		fail("打开 Keystore 失败: %v", err)
	}
	return dir
}

func newNode() *network.AlgodClient {
	node, err := network.NewAlgodClient(config.Global.Algod.Address, config.Global.Algod.Token)
	if err != nil {
		fail("连接 algod 失败: %v", err)
	}
	return node
}

func readJSON(path string, v interface{}) {
	data, err := os.ReadFile(path)
	if err != nil {
		fail("读取文件 %s 失败: %v", path, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		fail("解析文件 %s 失败: %v", path, err)
	}
}

func writeJSON(path string, v interface{}) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		fail("序列化失败: %v", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		fail("保存文件 %s 失败: %v", path, err)
	}
}

// addKeyFlags 签名密钥选择标志，sign 与 joint respond 共用
func addKeyFlags(c *cobra.Command) {
	c.Flags().String("address", "", "使用 Keystore 中的单账户密钥")
	c.Flags().String("wallet", "", "使用 HD 钱包 (wallet id)")
	c.Flags().Uint32("account", 0, "HD 账户序号")
	c.Flags().Uint32("change", 0, "HD change 序号")
	c.Flags().Uint32("index", 0, "HD 地址序号")
	c.Flags().Bool("ledger", false, "使用硬件设备签名")
	c.Flags().String("device", "", "硬件设备名前缀 (默认 hardware.device_name)")
	c.Flags().Uint32("ledger-account", 0, "硬件设备账户序号")
}

// keyHandleFromFlags 三选一: --address / --wallet / --ledger
func keyHandleFromFlags(c *cobra.Command) (model.SigningKeyHandle, error) {
	addr, _ := c.Flags().GetString("address")
	walletID, _ := c.Flags().GetString("wallet")
	ledger, _ := c.Flags().GetBool("ledger")

	chosen := 0
	for _, set := range []bool{addr != "", walletID != "", ledger} {
		if set {
			chosen++
		}
	}
	if chosen != 1 {
		return nil, errors.New("请指定且只指定一个密钥来源: --address, --wallet 或 --ledger")
	}

	switch {
	case addr != "":
		return model.LocalKey{Address: addr}, nil
	case walletID != "":
		account, _ := c.Flags().GetUint32("account")
		change, _ := c.Flags().GetUint32("change")
		index, _ := c.Flags().GetUint32("index")
		return model.HDPath{WalletID: walletID, Account: account, Change: change, Index: index}, nil
	default:
		device, _ := c.Flags().GetString("device")
		if device == "" {
			device = config.Global.Hardware.DeviceName
		}
		account, _ := c.Flags().GetUint32("ledger-account")
		return model.HardwareKey{DeviceName: device, AccountIndex: account}, nil
	}
}

// newRouter 本地签名后端；硬件后端按 hardware.transport 连接模拟器或蓝牙设备
func newRouter(dir *keystore.Dir, password signer.PasswordFunc) *signer.Router {
	r := &signer.Router{
		Local: signer.NewLocalKeySigner(signer.NewKeystoreKeySource(dir, password)),
		HD:    signer.NewHDDerivedSigner(dir, password),
	}

	hw := config.Global.Hardware
	if hw.Transport != "" {
		transport, err := hardware.NewTransport(hw.Transport, hw.EmulatorAddr, hw.DeviceName, hw.BLEMTU)
		if err != nil {
			fail("初始化硬件设备失败: %v", err)
		}
		mgr := hardware.NewManager(
			transport,
			hardware.Config{ScanTimeout: hw.ScanTimeout, ApprovalTimeout: hw.ApprovalTimeout},
			hardware.Retries{Timeout: hw.TimeoutRetries, Disconnect: hw.DisconnectRetries},
		)
		r.Hardware = signer.NewHardwareDeviceSigner(mgr, printDeviceEvent)
	}
	return r
}

func printDeviceEvent(e hardware.Event) {
	switch e.Type {
	case hardware.EventApprovalRequested:
		fmt.Printf("请在设备 %s 上确认交易...\n", e.DeviceName)
	case hardware.EventTimeout:
		fmt.Println("设备确认超时")
	case hardware.EventDisconnected:
		fmt.Println("设备连接已断开")
	case hardware.EventRejected:
		fmt.Println("设备上已拒绝交易")
	}
}

// decodeSignable 从字节重新解码镜像，不信任文件中的展示字段
func decodeSignable(raw []byte, wantTxID string) (model.SignableTransaction, error) {
	mirror, err := encoder.Decode(raw)
	if err != nil {
		return model.SignableTransaction{}, err
	}
	if wantTxID != "" && mirror.TxID != wantTxID {
		return model.SignableTransaction{}, fmt.Errorf("交易 ID 不匹配: 文件记录 %s, 实际 %s", wantTxID, mirror.TxID)
	}
	return model.SignableTransaction{Bytes: raw, Mirror: mirror}, nil
}

// printMirror 签名前在屏幕上核对 (Verify on Screen)
// assetDecimals 为 0 时资产金额按最小单位显示
func printMirror(i int, m model.Mirror, assetDecimals int32) {
	fmt.Printf("\n================ 交易 #%d ================\n", i+1)
	fmt.Printf("TxID:       %s\n", m.TxID)
	fmt.Printf("Type:       %s\n", m.Type)
	fmt.Printf("From:       %s\n", m.Sender)
	if m.Receiver != "" {
		fmt.Printf("To:         %s\n", m.Receiver)
	}
	if m.Type == model.TxTypeAssetTransfer {
		fmt.Printf("Amount:     %s\n", model.FormatAmount(m.Amount, assetDecimals))
	} else {
		fmt.Printf("Amount:     %s ALGO\n", model.FormatAmount(m.Amount, model.NativeDecimals))
	}
	if m.AssetID != 0 {
		fmt.Printf("Asset:      %d\n", m.AssetID)
	}
	if m.CloseTo != "" {
		fmt.Printf("CloseTo:    %s\n", m.CloseTo)
	}
	fmt.Printf("Fee:        %s ALGO\n", model.FormatAmount(m.Fee, model.NativeDecimals))
	fmt.Printf("Valid:      %d - %d (%s)\n", m.FirstValid, m.LastValid, m.GenesisID)
	if len(m.Note) > 0 {
		fmt.Printf("Note:       %q\n", m.Note)
	}
	if m.Type == model.TxTypeKeyReg {
		fmt.Printf("Offline:    %v\n", m.Offline)
	}
	fmt.Println("==========================================")
}
