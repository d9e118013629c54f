package cmd

import (
	"fmt"

	"wallet-signer/pkg/address"
	"wallet-signer/pkg/crypto_util"
	"wallet-signer/pkg/hdwallet"
	"wallet-signer/pkg/keystore"

	"github.com/algorand/go-algorand-sdk/v2/mnemonic"
	"github.com/spf13/cobra"
)

var importCmd = &cobra.Command{
	Use:   "import",
	Short: "导入账户助记词 (25 词) 或 HD 钱包助记词 (--hd)",
	Long: `默认导入 Algorand 单账户的 25 词助记词，加密后作为 account 条目保存。
使用 --hd 导入 BIP-39 助记词，作为 HD 钱包保存。`,
	Run: func(cmd *cobra.Command, args []string) {
		hd, _ := cmd.Flags().GetBool("hd")
		light, _ := cmd.Flags().GetBool("light-kdf")

		words, err := readLine("请输入助记词")
		if err != nil {
			fail("读取助记词失败: %v", err)
		}

		if hd {
			if !hdwallet.NewMnemonicService().ValidateMnemonic(words) {
				fail("无效的 BIP-39 助记词")
			}
			password, err := readNewPassword()
			if err != nil {
				fail("%v", err)
			}
			walletID := storeMnemonic(words, password, light)
			fmt.Println("✅ HD 钱包已导入")
			printFirstAddress(walletID, password)
			return
		}

		// 1. 25 词助记词 -> ed25519 私钥
		sk, err := mnemonic.ToPrivateKey(words)
		if err != nil {
			fail("无效的账户助记词: %v", err)
		}
		defer crypto_util.ZeroBytes(sk)

		addr, err := address.NewAlgoGenerator().PubKeyToAddress(sk[32:])
		if err != nil {
			fail("生成地址失败: %v", err)
		}

		// 2. 已存在则不重复导入
		dir := openKeystore()
		if _, err := dir.FindByAddress(addr); err == nil {
			fail("错误: 账户 %s 已存在于 Keystore 中", addr)
		}

		password, err := readNewPassword()
		if err != nil {
			fail("%v", err)
		}

		// 3. 只保存 32 字节种子
		seed := sk.Seed()
		defer crypto_util.ZeroBytes(seed)
		entry, err := keystore.EncryptSecret(keystore.KindAccount, seed, password, scryptParams(light))
		if err != nil {
			fail("加密失败: %v", err)
		}
		entry.Address = addr
		if err := dir.Store(entry); err != nil {
			fail("保存 Keystore 失败: %v", err)
		}

		fmt.Printf("✅ 账户已导入!\n地址: %s\n", addr)
	},
}

func init() {
	rootCmd.AddCommand(importCmd)
	importCmd.Flags().Bool("hd", false, "导入 BIP-39 助记词作为 HD 钱包")
	importCmd.Flags().Bool("light-kdf", false, "使用较低强度的 scrypt 参数 (仅用于测试)")
}
