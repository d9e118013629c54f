package cmd

import (
	"context"
	"fmt"

	"wallet-signer/internal/model"
	"wallet-signer/internal/service/signer"
	"wallet-signer/pkg/address"
	"wallet-signer/pkg/hdwallet"
	"wallet-signer/pkg/keystore"

	"github.com/spf13/cobra"
)

// newCmd 代表 new 命令
var newCmd = &cobra.Command{
	Use:   "new",
	Short: "创建一个新的 HD 钱包",
	Long:  `生成新的 BIP-39 助记词，使用密码加密后保存到 Keystore 目录，并显示第一个地址 m/44'/283'/0'/0'/0'。`,
	Run: func(cmd *cobra.Command, args []string) {
		bits, _ := cmd.Flags().GetInt("bits")
		light, _ := cmd.Flags().GetBool("light-kdf")

		fmt.Println("正在生成新钱包...")
		fmt.Println("请设置一个强密码来保护您的助记词。")

		// 1. 输入密码
		password, err := readNewPassword()
		if err != nil {
			fail("%v", err)
		}

		// 2. 生成助记词
		mnemonic, err := hdwallet.NewMnemonicService().GenerateMnemonic(bits)
		if err != nil {
			fail("生成助记词失败: %v", err)
		}

		// 3. 加密保存
		walletID := storeMnemonic(mnemonic, password, light)

		fmt.Println("---------------------------------------------------")
		fmt.Printf("助记词 (Mnemonic): \n%s\n", mnemonic)
		fmt.Println("---------------------------------------------------")
		printFirstAddress(walletID, password)
		fmt.Println("请妥善保管您的助记词！任何拥有助记词的人都可以控制该钱包的所有资产。")
	},
}

func init() {
	rootCmd.AddCommand(newCmd)
	newCmd.Flags().Int("bits", 256, "助记词熵长度 (128 = 12 词, 256 = 24 词)")
	newCmd.Flags().Bool("light-kdf", false, "使用较低强度的 scrypt 参数 (仅用于测试)")
}

func scryptParams(light bool) keystore.ScryptParams {
	if light {
		return keystore.LightScrypt
	}
	return keystore.StandardScrypt
}

// storeMnemonic 返回 wallet id
func storeMnemonic(mnemonic, password string, light bool) string {
	entry, err := keystore.EncryptMnemonic(mnemonic, password, scryptParams(light))
	if err != nil {
		fail("加密失败: %v", err)
	}
	if err := openKeystore().Store(entry); err != nil {
		fail("保存 Keystore 失败: %v", err)
	}
	return entry.Id
}

func printFirstAddress(walletID, password string) {
	hd := signer.NewHDDerivedSigner(openKeystore(), fixedPassword(password))
	pub, err := hd.PublicKey(context.Background(), model.HDPath{WalletID: walletID})
	if err != nil {
		fail("派生地址失败: %v", err)
	}
	addr, err := address.NewAlgoGenerator().PubKeyToAddress(pub)
	if err != nil {
		fail("生成地址失败: %v", err)
	}
	fmt.Printf("钱包 ID (Wallet ID): %s\n", walletID)
	fmt.Printf("Algorand Address [%s]: %s\n", hdwallet.AccountPath(0, 0, 0), addr)
	fmt.Println("---------------------------------------------------")
}
