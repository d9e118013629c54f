package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"wallet-signer/internal/model"
	"wallet-signer/pkg/wallet/types"

	"github.com/spf13/cobra"
)

var signCmd = &cobra.Command{
	Use:   "sign",
	Short: "离线签名交易 (Offline Signing)",
	Long:  `读取未签名交易文件，显示交易详情供确认，使用 Keystore 账户、HD 钱包或硬件设备签名，输出已签名交易文件。`,
	Run: func(cmd *cobra.Command, args []string) {
		inputFile, _ := cmd.Flags().GetString("input")
		outputFile, _ := cmd.Flags().GetString("output")
		yes, _ := cmd.Flags().GetBool("yes")

		// 1. 读取未签名交易
		var file types.UnsignedPlan
		readJSON(inputFile, &file)
		txs, err := fromPlanFile(file)
		if err != nil {
			fail("交易文件无效: %v", err)
		}

		handle, err := keyHandleFromFlags(cmd)
		if err != nil {
			fail("%v", err)
		}

		// 2. 显示交易详情供用户确认 (Verify on Screen)
		for i, tx := range txs {
			printMirror(i, tx.Mirror, file.AssetDecimals)
		}
		fmt.Printf("签名密钥:   %s\n", handle)
		if !yes && !confirm("确认签名以上交易?") {
			fail("已取消")
		}

		// 3. 签名 (组内每笔交易使用同一密钥)；Ctrl-C 取消进行中的设备会话
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
		defer stop()
		router := newRouter(openKeystore(), terminalPassword())
		signed := make([]model.SignedBytes, 0, len(txs))
		for _, tx := range txs {
			out, err := router.Sign(ctx, tx, handle)
			if err != nil {
				fail("签名失败: %v", err)
			}
			signed = append(signed, out)
		}

		writeJSON(outputFile, toSignedFile(signed))
		fmt.Printf("✅ 签名成功!\nTxID: %s\n文件: %s\n", signed[0].TxID, outputFile)
	},
}

func init() {
	rootCmd.AddCommand(signCmd)

	signCmd.Flags().StringP("input", "i", "unsigned.json", "未签名交易文件")
	signCmd.Flags().StringP("output", "o", "signed.json", "输出文件路径")
	signCmd.Flags().BoolP("yes", "y", false, "跳过确认")
	addKeyFlags(signCmd)
}
