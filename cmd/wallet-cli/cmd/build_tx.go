package cmd

import (
	"context"
	"fmt"
	"time"

	"wallet-signer/internal/handler/request"
	"wallet-signer/internal/service/encoder"
	"wallet-signer/internal/service/fee"
	"wallet-signer/pkg/config"
	"wallet-signer/pkg/validator"

	"github.com/spf13/cobra"
)

// buildTxCmd Online 端构造交易
var buildTxCmd = &cobra.Command{
	Use:   "build-tx",
	Short: "构造未签名交易 (Online)",
	Long: `读取交易意图 JSON (draft)，从节点获取网络参数和账户信息，计算手续费后输出未签名交易文件。
金额为十进制字符串，资产意图需提供 asset_decimals。
示例 draft: {"kind":"value_transfer","sender":"...","receiver":"...","amount":"1.5"}`,
	Run: func(cmd *cobra.Command, args []string) {
		draftFile, _ := cmd.Flags().GetString("draft")
		outputFile, _ := cmd.Flags().GetString("output")

		// 1. 读取并校验意图
		var req request.DraftRequest
		readJSON(draftFile, &req)
		if err := validator.Struct(req); err != nil {
			fail("交易意图无效: %s", validator.GetErrorMsg(err))
		}
		draft, err := req.ToDraft()
		if err != nil {
			fail("交易意图无效: %v", err)
		}

		// 2. 构造
		node := newNode()
		calc := fee.NewCalculator(fee.Policy{
			AccountMinBalance:   config.Global.Policy.AccountMinBalance,
			AssetSlotMinBalance: config.Global.Policy.AssetSlotMinBalance,
			FeeMode:             fee.FeeMode(config.Global.Policy.FeeMode),
		})
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		plan, err := encoder.NewBuilder(calc, node, node).Build(ctx, draft)
		if err != nil {
			fail("构造交易失败: %v", err)
		}

		for i, tx := range plan.Transactions {
			printMirror(i, tx.Mirror, req.AssetDecimals)
		}
		writeJSON(outputFile, toPlanFile(plan, req.AssetDecimals, time.Now()))

		fmt.Printf("✅ 未签名交易已构造! 共 %d 笔, 总手续费 %d microAlgo\n文件: %s\n", len(plan.Transactions), plan.TotalFee, outputFile)
	},
}

func init() {
	rootCmd.AddCommand(buildTxCmd)

	buildTxCmd.Flags().String("draft", "draft.json", "交易意图 JSON 文件")
	buildTxCmd.Flags().StringP("output", "o", "unsigned.json", "输出文件路径")
}
