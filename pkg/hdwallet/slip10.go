package hdwallet

import (
	"crypto/ed25519"
	"crypto/hmac"
	"crypto/sha512"
	"encoding/binary"
	"fmt"
	"strconv"
	"strings"

	"wallet-signer/pkg/crypto_util"
)

const (
	// HardenedKeyStart 第一个 hardened 索引 (2^31)
	HardenedKeyStart uint32 = 0x80000000

	// CoinType Algorand 的 SLIP-44 币种编号
	CoinType uint32 = 283

	masterHMACKey = "ed25519 seed"
)

// slip10Key 实现了 ExtendedKey 接口
type slip10Key struct {
	key       [32]byte
	chainCode [32]byte
}

func (k *slip10Key) Derive(index uint32) (ExtendedKey, error) {
	if index < HardenedKeyStart {
		return nil, ErrNonHardened
	}

	// I = HMAC-SHA512(Key = c_par, Data = 0x00 || k_par || ser32(i))
	data := make([]byte, 0, 1+32+4)
	data = append(data, 0x00)
	data = append(data, k.key[:]...)
	data = binary.BigEndian.AppendUint32(data, index)
	defer crypto_util.ZeroBytes(data)

	mac := hmac.New(sha512.New, k.chainCode[:])
	mac.Write(data)
	sum := mac.Sum(nil)
	defer crypto_util.ZeroBytes(sum)

	child := &slip10Key{}
	copy(child.key[:], sum[:32])
	copy(child.chainCode[:], sum[32:])
	return child, nil
}

func (k *slip10Key) PrivateKey() ed25519.PrivateKey {
	return ed25519.NewKeyFromSeed(k.key[:])
}

func (k *slip10Key) PublicKey() ed25519.PublicKey {
	priv := k.PrivateKey()
	defer crypto_util.ZeroBytes(priv)

	pub := make(ed25519.PublicKey, ed25519.PublicKeySize)
	copy(pub, priv.Public().(ed25519.PublicKey))
	return pub
}

func (k *slip10Key) Zero() {
	crypto_util.ZeroBytes(k.key[:])
	crypto_util.ZeroBytes(k.chainCode[:])
}

// Wallet 实现 HDWallet 接口
type Wallet struct {
	masterKey *slip10Key
}

// NewMasterKeyFromSeed 使用 BIP-39 种子生成主密钥
func NewMasterKeyFromSeed(seed []byte) (*Wallet, error) {
	if len(seed) < 16 || len(seed) > 64 {
		return nil, ErrInvalidSeed
	}

	mac := hmac.New(sha512.New, []byte(masterHMACKey))
	mac.Write(seed)
	sum := mac.Sum(nil)
	defer crypto_util.ZeroBytes(sum)

	master := &slip10Key{}
	copy(master.key[:], sum[:32])
	copy(master.chainCode[:], sum[32:])

	return &Wallet{masterKey: master}, nil
}

func (w *Wallet) MasterKey() ExtendedKey {
	return w.masterKey
}

func (w *Wallet) Zero() {
	w.masterKey.Zero()
}

// DerivePath 解析路径并派生密钥
// 支持格式: m/44'/283'/0'/0'/0' 或 m/44h/283h/0h/0h/0h
// 中间层密钥在派生下一层后立即清零
func (w *Wallet) DerivePath(path string) (ExtendedKey, error) {
	indexes, err := ParsePath(path)
	if err != nil {
		return nil, err
	}

	current := &slip10Key{key: w.masterKey.key, chainCode: w.masterKey.chainCode}
	for _, index := range indexes {
		next, err := current.Derive(index)
		current.Zero()
		if err != nil {
			return nil, err
		}
		current = next.(*slip10Key)
	}
	return current, nil
}

// ParsePath 把路径字符串解析为索引列表
func ParsePath(path string) ([]uint32, error) {
	path = strings.TrimSpace(path)
	if path == "" || path == "m" {
		return nil, nil
	}
	if !strings.HasPrefix(path, "m/") {
		return nil, fmt.Errorf("%w: 路径必须以 m/ 开头", ErrInvalidPath)
	}
	path = path[2:]

	segments := strings.Split(path, "/")
	indexes := make([]uint32, 0, len(segments))
	for _, segment := range segments {
		isHardened := false
		if strings.HasSuffix(segment, "'") || strings.HasSuffix(segment, "h") {
			isHardened = true
			segment = segment[:len(segment)-1]
		}

		val, err := strconv.ParseUint(segment, 10, 31)
		if err != nil {
			return nil, fmt.Errorf("%w: 无效的路径段 '%s': %v", ErrInvalidPath, segment, err)
		}
		if !isHardened {
			return nil, fmt.Errorf("%w: 路径段 '%s'", ErrNonHardened, segment)
		}
		indexes = append(indexes, uint32(val)+HardenedKeyStart)
	}
	return indexes, nil
}

// AccountPath 生成 m/44'/283'/account'/change'/index'
func AccountPath(account, change, index uint32) string {
	return fmt.Sprintf("m/44'/%d'/%d'/%d'/%d'", CoinType, account, change, index)
}
