package cmd

import (
	"context"
	"fmt"

	"wallet-signer/internal/model"
	"wallet-signer/internal/service/signer"
	"wallet-signer/pkg/address"
	"wallet-signer/pkg/hdwallet"

	"github.com/spf13/cobra"
)

var addressCmd = &cobra.Command{
	Use:   "address",
	Short: "显示 HD 钱包在指定路径上的地址",
	Run: func(cmd *cobra.Command, args []string) {
		walletID, _ := cmd.Flags().GetString("wallet")
		account, _ := cmd.Flags().GetUint32("account")
		index, _ := cmd.Flags().GetUint32("index")
		count, _ := cmd.Flags().GetUint32("count")

		hd := signer.NewHDDerivedSigner(openKeystore(), terminalPassword())
		gen := address.NewAlgoGenerator()
		for i := index; i < index+count; i++ {
			path := model.HDPath{WalletID: walletID, Account: account, Index: i}
			pub, err := hd.PublicKey(context.Background(), path)
			if err != nil {
				fail("派生地址失败: %v", err)
			}
			addr, _ := gen.PubKeyToAddress(pub)
			fmt.Printf("%s  %s\n", hdwallet.AccountPath(account, 0, i), addr)
		}
	},
}

func init() {
	rootCmd.AddCommand(addressCmd)
	addressCmd.Flags().String("wallet", "", "HD 钱包 ID")
	addressCmd.Flags().Uint32("account", 0, "账户序号")
	addressCmd.Flags().Uint32("index", 0, "起始地址序号")
	addressCmd.Flags().Uint32("count", 1, "显示的地址数量")
	_ = addressCmd.MarkFlagRequired("wallet")
}
