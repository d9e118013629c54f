package cmd

import (
	"context"
	"fmt"
	"time"

	"wallet-signer/internal/handler/request"
	"wallet-signer/internal/model"
	"wallet-signer/internal/service/submission"
	"wallet-signer/pkg/address"
	"wallet-signer/pkg/wallet/types"

	"github.com/algorand/go-algorand-sdk/v2/crypto"
	sdktypes "github.com/algorand/go-algorand-sdk/v2/types"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(jointCmd)

	jointCmd.AddCommand(proposeCmd)
	proposeCmd.Flags().StringP("input", "i", "unsigned.json", "未签名交易文件 (发送方为联合账户地址)")
	proposeCmd.Flags().String("proposer", "", "发起人地址")
	proposeCmd.Flags().StringSlice("participants", nil, "参与者地址 (顺序决定联合账户地址)")
	proposeCmd.Flags().IntP("threshold", "t", 2, "签名阈值")
	proposeCmd.Flags().Duration("deadline", 24*time.Hour, "请求有效期")
	_ = proposeCmd.MarkFlagRequired("proposer")
	_ = proposeCmd.MarkFlagRequired("participants")

	jointCmd.AddCommand(statusCmd)

	jointCmd.AddCommand(respondCmd)
	respondCmd.Flags().String("participant", "", "本人的参与者地址")
	respondCmd.Flags().Bool("decline", false, "拒绝签名")
	respondCmd.Flags().BoolP("yes", "y", false, "跳过确认")
	addKeyFlags(respondCmd)
	_ = respondCmd.MarkFlagRequired("participant")

	jointCmd.AddCommand(aggregateCmd)
	aggregateCmd.Flags().StringP("output", "o", "signed.json", "输出文件路径")
	aggregateCmd.Flags().Bool("submit", false, "聚合后直接提交")
}

var jointCmd = &cobra.Command{
	Use:   "joint",
	Short: "联合账户 (多签) 协同签名",
	Long:  `通过 wallet-server 发起、答复、查询和聚合联合账户的签名请求。`,
}

var proposeCmd = &cobra.Command{
	Use:   "propose",
	Short: "发起签名请求",
	Run: func(cmd *cobra.Command, args []string) {
		inputFile, _ := cmd.Flags().GetString("input")
		proposer, _ := cmd.Flags().GetString("proposer")
		participants, _ := cmd.Flags().GetStringSlice("participants")
		threshold, _ := cmd.Flags().GetInt("threshold")
		ttl, _ := cmd.Flags().GetDuration("deadline")

		var file types.UnsignedPlan
		readJSON(inputFile, &file)
		txs, err := fromPlanFile(file)
		if err != nil {
			fail("交易文件无效: %v", err)
		}
		if len(txs) != 1 {
			fail("联合签名请求只支持单笔交易, 文件中有 %d 笔", len(txs))
		}
		printMirror(0, txs[0].Mirror, file.AssetDecimals)

		view, err := jointClientFor(cmd).Create(context.Background(), request.CreateSignRequest{
			Proposer:     proposer,
			Participants: participants,
			Threshold:    threshold,
			Deadline:     time.Now().Add(ttl),
			Transaction:  txs[0].Bytes,
		})
		if err != nil {
			fail("发起签名请求失败: %v", err)
		}

		fmt.Printf("✅ 签名请求已创建!\n请求 ID:   %s\n联合账户:  %s\n", view.ID, view.MultisigAddress)
		printJointView(view)
	},
}

var statusCmd = &cobra.Command{
	Use:   "status <request-id>",
	Short: "查询签名请求状态",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		view, err := jointClientFor(cmd).Get(context.Background(), args[0])
		if err != nil {
			fail("查询失败: %v", err)
		}
		printMirror(0, view.Transaction, 0)
		printJointView(view)
	},
}

var respondCmd = &cobra.Command{
	Use:   "respond <request-id>",
	Short: "签名或拒绝签名请求",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		participant, _ := cmd.Flags().GetString("participant")
		decline, _ := cmd.Flags().GetBool("decline")
		yes, _ := cmd.Flags().GetBool("yes")

		ctx := context.Background()
		client := jointClientFor(cmd)
		view, err := client.Get(ctx, args[0])
		if err != nil {
			fail("查询失败: %v", err)
		}

		// 1. 按字节核对交易，不信任服务端的展示字段
		tx, err := decodeSignable(view.TransactionBytes, view.Transaction.TxID)
		if err != nil {
			fail("签名请求中的交易无效: %v", err)
		}
		printMirror(0, tx.Mirror, 0)
		printJointView(view)

		resp := request.SignResponseRequest{Participant: participant}
		if decline {
			if !yes && !confirm("确认拒绝该签名请求?") {
				fail("已取消")
			}
		} else {
			handle, err := keyHandleFromFlags(cmd)
			if err != nil {
				fail("%v", err)
			}
			if !yes && !confirm("确认签名以上交易?") {
				fail("已取消")
			}

			// 2. 用参与者顺序和阈值重建联合账户，并与服务端地址核对
			ma, err := multisigOf(view)
			if err != nil {
				fail("%v", err)
			}
			blob, err := newRouter(openKeystore(), terminalPassword()).SignShare(ctx, ma, tx, participant, handle)
			if err != nil {
				fail("签名失败: %v", err)
			}
			resp.Signed = true
			resp.Signature = blob
		}

		status, err := client.Respond(ctx, args[0], resp)
		if err != nil {
			fail("提交答复失败: %v", err)
		}
		fmt.Printf("✅ 答复已提交, 当前状态: %s\n", status)
	},
}

var aggregateCmd = &cobra.Command{
	Use:   "aggregate <request-id>",
	Short: "聚合已达到阈值的签名",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		outputFile, _ := cmd.Flags().GetString("output")
		submit, _ := cmd.Flags().GetBool("submit")

		ctx := context.Background()
		signed, err := jointClientFor(cmd).Aggregate(ctx, args[0])
		if err != nil {
			fail("聚合失败: %v", err)
		}
		writeJSON(outputFile, toSignedFile([]model.SignedBytes{signed}))
		fmt.Printf("✅ 聚合完成!\nTxID: %s\n文件: %s\n", signed.TxID, outputFile)

		if submit {
			ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
			defer cancel()
			txID, err := submission.NewPipeline(newNode(), nil, nil).Submit(ctx, signed)
			if err != nil {
				fail("提交失败: %v", err)
			}
			fmt.Printf("✅ 已提交!\nTxID: %s\n", txID)
		}
	},
}

func jointClientFor(cmd *cobra.Command) *jointClient {
	server, _ := cmd.Flags().GetString("server")
	return newJointClient(server)
}

// multisigOf 重建多签账户描述并核对地址
func multisigOf(view jointRequestView) (crypto.MultisigAccount, error) {
	addrs := make([]sdktypes.Address, 0, len(view.Participants))
	for _, p := range view.participantAddresses() {
		a, err := address.Decode(p)
		if err != nil {
			return crypto.MultisigAccount{}, err
		}
		addrs = append(addrs, a)
	}
	ma, err := crypto.MultisigAccountWithParams(1, uint8(view.Threshold), addrs)
	if err != nil {
		return crypto.MultisigAccount{}, err
	}
	got, err := ma.Address()
	if err != nil {
		return crypto.MultisigAccount{}, err
	}
	if got.String() != view.MultisigAddress {
		return crypto.MultisigAccount{}, fmt.Errorf("联合账户地址不匹配: 服务端 %s, 本地 %s", view.MultisigAddress, got.String())
	}
	return ma, nil
}

func printJointView(v jointRequestView) {
	fmt.Printf("状态:       %s (%d/%d 已签名, %d 拒绝)\n", v.Status, v.Signed, v.Threshold, v.Declined)
	fmt.Printf("截止时间:   %s\n", v.Deadline.Local().Format(time.RFC3339))
	for _, p := range v.Participants {
		fmt.Printf("  %-58s %s\n", p.Address, p.Status)
	}
}
