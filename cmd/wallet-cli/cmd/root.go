package cmd

import (
	"fmt"
	"os"

	"wallet-signer/pkg/config"
	"wallet-signer/pkg/logger"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// rootCmd 代表基础命令，没有子命令时直接调用
var rootCmd = &cobra.Command{
	Use:   "wallet-cli",
	Short: "Algorand 多签名交易命令行工具",
	Long: `构造、签名、提交 Algorand 交易的命令行工具。
支持本地 Keystore 账户、BIP-39 分层确定性钱包、硬件设备以及联合账户 (多签) 的协同签名。`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		config.Init()
		logger.InitCLI(viper.GetString("cli.log_level"))
	},
}

// Execute 将所有子命令添加到根命令并设置标志
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		logger.Sync()
		os.Exit(1)
	}
}

func init() {
	// 全局标志，优先级高于 config.yaml 与环境变量
	rootCmd.PersistentFlags().String("keystore", "", "Keystore 目录 (默认 wallet.keystore_dir)")
	rootCmd.PersistentFlags().String("algod", "", "algod 节点地址 (默认 algod.address)")
	rootCmd.PersistentFlags().String("algod-token", "", "algod API token")
	rootCmd.PersistentFlags().String("server", "http://localhost:8080", "wallet-server 地址 (joint 命令使用)")
	rootCmd.PersistentFlags().String("log-level", "warn", "日志级别，输出到 stderr")

	_ = viper.BindPFlag("wallet.keystore_dir", rootCmd.PersistentFlags().Lookup("keystore"))
	_ = viper.BindPFlag("algod.address", rootCmd.PersistentFlags().Lookup("algod"))
	_ = viper.BindPFlag("algod.token", rootCmd.PersistentFlags().Lookup("algod-token"))
	_ = viper.BindPFlag("cli.log_level", rootCmd.PersistentFlags().Lookup("log-level"))
}
