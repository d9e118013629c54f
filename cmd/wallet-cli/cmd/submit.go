package cmd

import (
	"context"
	"errors"
	"fmt"
	"time"

	"wallet-signer/internal/service/submission"
	"wallet-signer/pkg/wallet/types"

	"github.com/spf13/cobra"
)

var submitCmd = &cobra.Command{
	Use:   "submit",
	Short: "提交已签名交易 (Online)",
	Long:  `读取已签名交易文件，按原子组顺序提交到节点。交易已在链上或交易池中视为成功。`,
	Run: func(cmd *cobra.Command, args []string) {
		inputFile, _ := cmd.Flags().GetString("input")

		var file types.SignedPlan
		readJSON(inputFile, &file)

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		pipeline := submission.NewPipeline(newNode(), nil, nil)
		txID, err := pipeline.Submit(ctx, fromSignedFile(file)...)
		if err != nil {
			var se *submission.SubmissionError
			if errors.As(err, &se) {
				fmt.Printf("提交失败 [%s/%s] TxID: %s\n", se.Kind, se.Reason, se.TxID)
				if se.Stale() {
					fmt.Println("验证窗口已过期，请重新运行 build-tx 与 sign")
				}
			}
			fail("%v", err)
		}

		fmt.Printf("✅ 已提交!\nTxID: %s\n", txID)
	},
}

func init() {
	rootCmd.AddCommand(submitCmd)
	submitCmd.Flags().StringP("input", "i", "signed.json", "已签名交易文件")
}
