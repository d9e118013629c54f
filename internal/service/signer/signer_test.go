package signer

import (
	"bytes"
	"context"
	"crypto/ed25519"
	"sync"
	"testing"
	"time"

	"wallet-signer/internal/model"
	"wallet-signer/internal/service/encoder"
	"wallet-signer/internal/service/fee"
	"wallet-signer/internal/service/hardware"
	"wallet-signer/internal/service/joint"
	"wallet-signer/pkg/errno"
	"wallet-signer/pkg/hdwallet"
	"wallet-signer/pkg/keystore"
	"wallet-signer/pkg/kms"
	"wallet-signer/pkg/ledger"

	"github.com/algorand/go-algorand-sdk/v2/crypto"
	"github.com/algorand/go-algorand-sdk/v2/encoding/msgpack"
	"github.com/algorand/go-algorand-sdk/v2/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testPolicy = fee.Policy{AccountMinBalance: 100000, AssetSlotMinBalance: 100000}

func testParams() model.NetworkParams {
	return model.NetworkParams{
		FeePerByte:  10,
		MinFee:      1000,
		FirstValid:  500,
		LastValid:   1500,
		GenesisID:   "testnet-v1.0",
		GenesisHash: bytes.Repeat([]byte{9}, 32),
	}
}

func encodePayment(t *testing.T, sender string) model.SignableTransaction {
	t.Helper()
	enc := encoder.New(fee.NewCalculator(testPolicy))
	tx, err := enc.Encode(model.ValueTransfer{DraftBase: model.DraftBase{
		Sender:   sender,
		Receiver: crypto.GenerateAccount().Address.String(),
		Amount:   2500,
	}}, testParams())
	require.NoError(t, err)
	return tx
}

// assertSignedBy 解码 SignedTxn 并校验签名
func assertSignedBy(t *testing.T, signed model.SignedBytes, tx model.SignableTransaction, pub ed25519.PublicKey) {
	t.Helper()
	var stx types.SignedTxn
	require.NoError(t, msgpack.Decode(signed.Bytes, &stx))
	assert.Equal(t, tx.Bytes, msgpack.Encode(stx.Txn))
	assert.True(t, ed25519.Verify(pub, append([]byte("TX"), tx.Bytes...), stx.Sig[:]))
	assert.Equal(t, tx.TxID(), signed.TxID)
	assert.False(t, signed.Partial)
}

func newKMSRouter(t *testing.T, accounts ...crypto.Account) (*Router, *kms.LocalKMS) {
	t.Helper()
	vault, err := kms.NewLocalKMS()
	require.NoError(t, err)
	for _, a := range accounts {
		_, err := vault.ImportKey(a.PrivateKey)
		require.NoError(t, err)
	}
	return &Router{Local: NewLocalKeySigner(NewKMSKeySource(vault))}, vault
}

func TestLocalKeySigner(t *testing.T) {
	acct := crypto.GenerateAccount()
	router, _ := newKMSRouter(t, acct)

	tx := encodePayment(t, acct.Address.String())
	signed, err := router.Sign(context.Background(), tx, model.LocalKey{Address: acct.Address.String()})
	require.NoError(t, err)
	assertSignedBy(t, signed, tx, acct.PublicKey)
}

func TestLocalKeyErrors(t *testing.T) {
	acct, other := crypto.GenerateAccount(), crypto.GenerateAccount()
	router, vault := newKMSRouter(t, acct, other)
	ctx := context.Background()

	// 密钥不控制发送方
	tx := encodePayment(t, acct.Address.String())
	_, err := router.Sign(ctx, tx, model.LocalKey{Address: other.Address.String()})
	assert.ErrorIs(t, err, errno.ErrKeyMismatch)

	_, err = router.Sign(ctx, tx, model.LocalKey{Address: crypto.GenerateAccount().Address.String()})
	assert.ErrorIs(t, err, errno.ErrKeyNotFound)

	require.NoError(t, vault.Disable(acct.Address.String()))
	_, err = router.Sign(ctx, tx, model.LocalKey{Address: acct.Address.String()})
	assert.ErrorIs(t, err, errno.ErrKeyNotFound)

	_, err = (&Router{}).Sign(ctx, tx, model.HDPath{WalletID: "w"})
	assert.ErrorIs(t, err, errno.ErrKeyNotFound)
}

func staticPassword(pw string) PasswordFunc {
	return func(ctx context.Context, prompt string) (string, error) { return pw, nil }
}

func TestKeystoreKeySource(t *testing.T) {
	dir, err := keystore.NewDir(t.TempDir())
	require.NoError(t, err)

	acct := crypto.GenerateAccount()
	entry, err := keystore.EncryptSecret(keystore.KindAccount, acct.PrivateKey.Seed(), "correct horse", keystore.LightScrypt)
	require.NoError(t, err)
	entry.Address = acct.Address.String()
	require.NoError(t, dir.Store(entry))

	tx := encodePayment(t, acct.Address.String())
	handle := model.LocalKey{Address: acct.Address.String()}
	ctx := context.Background()

	router := &Router{Local: NewLocalKeySigner(NewKeystoreKeySource(dir, staticPassword("correct horse")))}
	signed, err := router.Sign(ctx, tx, handle)
	require.NoError(t, err)
	assertSignedBy(t, signed, tx, acct.PublicKey)

	wrong := &Router{Local: NewLocalKeySigner(NewKeystoreKeySource(dir, staticPassword("wrong")))}
	_, err = wrong.Sign(ctx, tx, handle)
	assert.ErrorIs(t, err, errno.ErrKeyNotFound)

	cancelled := func(ctx context.Context, prompt string) (string, error) { return "", errno.ErrUserCancelled }
	aborted := &Router{Local: NewLocalKeySigner(NewKeystoreKeySource(dir, cancelled))}
	_, err = aborted.Sign(ctx, tx, handle)
	assert.ErrorIs(t, err, errno.ErrUserCancelled)
}

func TestHDDerivedSigner(t *testing.T) {
	dir, err := keystore.NewDir(t.TempDir())
	require.NoError(t, err)

	mnemonic, err := hdwallet.NewMnemonicService().GenerateMnemonic(256)
	require.NoError(t, err)
	entry, err := keystore.EncryptMnemonic(mnemonic, "pw", keystore.LightScrypt)
	require.NoError(t, err)
	require.NoError(t, dir.Store(entry))

	hd := NewHDDerivedSigner(dir, staticPassword("pw"))
	handle := model.HDPath{WalletID: entry.Id, Account: 0, Change: 0, Index: 1}
	ctx := context.Background()

	pub, err := hd.PublicKey(ctx, handle)
	require.NoError(t, err)
	sender, err := addressOf(pub)
	require.NoError(t, err)

	// 不同索引派生不同地址
	pub0, err := hd.PublicKey(ctx, model.HDPath{WalletID: entry.Id})
	require.NoError(t, err)
	assert.False(t, pub.Equal(pub0))

	tx := encodePayment(t, sender)
	router := &Router{HD: hd}
	signed, err := router.Sign(ctx, tx, handle)
	require.NoError(t, err)
	assertSignedBy(t, signed, tx, pub)

	_, err = router.Sign(ctx, tx, model.HDPath{WalletID: "missing"})
	assert.ErrorIs(t, err, errno.ErrKeyNotFound)
}

// deviceLink 直接处理 APDU 的模拟设备
type deviceLink struct {
	priv    ed25519.PrivateKey
	payload []byte
	gone    chan struct{}
	once    sync.Once
}

func (l *deviceLink) Exchange(ctx context.Context, apdu []byte) ([]byte, error) {
	ins, p1, p2, data := apdu[1], apdu[2], apdu[3], apdu[5:]
	switch ins {
	case ledger.InsGetPublicKey:
		return append(append([]byte(nil), l.priv.Public().(ed25519.PublicKey)...), 0x90, 0x00), nil
	case ledger.InsSignMsgpack:
		if p1 == ledger.P1FirstAccountID {
			l.payload = append([]byte(nil), data[4:]...)
		} else {
			l.payload = append(l.payload, data...)
		}
		if p2 == ledger.P2More {
			return []byte{0x90, 0x00}, nil
		}
		sig := ed25519.Sign(l.priv, append([]byte("TX"), l.payload...))
		return append(sig, 0x90, 0x00), nil
	}
	return []byte{0x6D, 0x00}, nil
}

func (l *deviceLink) Disconnected() <-chan struct{} { return l.gone }

func (l *deviceLink) Close() error {
	l.once.Do(func() { close(l.gone) })
	return nil
}

type deviceTransport struct {
	priv ed25519.PrivateKey
}

func (d *deviceTransport) Scan(ctx context.Context) (<-chan hardware.Peripheral, error) {
	ch := make(chan hardware.Peripheral, 1)
	ch <- hardware.Peripheral{ID: "dev-1", Name: "Nano X 7A1B"}
	go func() {
		<-ctx.Done()
		close(ch)
	}()
	return ch, nil
}

func (d *deviceTransport) Connect(ctx context.Context, p hardware.Peripheral) (hardware.Link, error) {
	return &deviceLink{priv: d.priv, gone: make(chan struct{})}, nil
}

func TestHardwareDeviceSigner(t *testing.T) {
	acct := crypto.GenerateAccount()
	mgr := hardware.NewManager(&deviceTransport{priv: acct.PrivateKey},
		hardware.Config{ScanTimeout: time.Second, ApprovalTimeout: time.Second}, hardware.Retries{})

	var mu sync.Mutex
	var seen []hardware.EventType
	observe := func(e hardware.Event) {
		mu.Lock()
		seen = append(seen, e.Type)
		mu.Unlock()
	}
	router := &Router{Hardware: NewHardwareDeviceSigner(mgr, observe)}

	tx := encodePayment(t, acct.Address.String())
	signed, err := router.Sign(context.Background(), tx, model.HardwareKey{DeviceName: "Nano X"})
	require.NoError(t, err)
	assertSignedBy(t, signed, tx, acct.PublicKey)

	mu.Lock()
	assert.Contains(t, seen, hardware.EventApprovalRequested)
	assert.Contains(t, seen, hardware.EventSigned)
	mu.Unlock()

	// 设备账户不控制发送方
	other := encodePayment(t, crypto.GenerateAccount().Address.String())
	_, err = router.Sign(context.Background(), other, model.HardwareKey{})
	assert.ErrorIs(t, err, errno.ErrKeyMismatch)
}

func TestJointAccountThresholdSigner(t *testing.T) {
	accts := []crypto.Account{crypto.GenerateAccount(), crypto.GenerateAccount(), crypto.GenerateAccount()}
	addrs := []types.Address{accts[0].Address, accts[1].Address, accts[2].Address}
	ma, err := crypto.MultisigAccountWithParams(1, 2, addrs)
	require.NoError(t, err)
	msig, err := ma.Address()
	require.NoError(t, err)

	registry := joint.NewRegistry(nil, time.Hour)
	router, _ := newKMSRouter(t, accts...)
	router.Joint = NewJointAccountThresholdSigner(registry)

	tx := encodePayment(t, msig.String())
	c, err := registry.Create(context.Background(), joint.CreateRequest{
		Proposer:     accts[0].Address.String(),
		Participants: []string{addrs[0].String(), addrs[1].String(), addrs[2].String()},
		Threshold:    2,
		Transaction:  tx,
	})
	require.NoError(t, err)
	id := c.Metadata().ID

	handle := func(i int) model.JointParticipant {
		a := accts[i].Address.String()
		return model.JointParticipant{SignRequestID: id, Participant: a, Key: model.LocalKey{Address: a}}
	}

	part, err := router.Sign(context.Background(), tx, handle(0))
	require.NoError(t, err)
	assert.True(t, part.Partial)
	assert.Equal(t, model.JointPending, c.Status())

	// 参与者身份与密钥不一致
	wrong := handle(1)
	wrong.Key = model.LocalKey{Address: accts[2].Address.String()}
	_, err = router.Sign(context.Background(), tx, wrong)
	assert.ErrorIs(t, err, errno.ErrKeyMismatch)

	_, err = router.Sign(context.Background(), tx, handle(2))
	require.NoError(t, err)
	assert.Equal(t, model.JointComplete, c.Status())

	merged, err := registry.Aggregate(id)
	require.NoError(t, err)
	assert.Equal(t, tx.TxID(), merged.TxID)
	assert.False(t, merged.Partial)
}

// 远端签名请求: CLI 重建多签账户后各自签名，合并结果可直接提交
func TestRouterSignShare(t *testing.T) {
	accts := []crypto.Account{crypto.GenerateAccount(), crypto.GenerateAccount()}
	ma, err := crypto.MultisigAccountWithParams(1, 2, []types.Address{accts[0].Address, accts[1].Address})
	require.NoError(t, err)
	msig, err := ma.Address()
	require.NoError(t, err)

	router, _ := newKMSRouter(t, accts...)
	tx := encodePayment(t, msig.String())

	var blobs [][]byte
	for _, a := range accts {
		addr := a.Address.String()
		blob, err := router.SignShare(context.Background(), ma, tx, addr, model.LocalKey{Address: addr})
		require.NoError(t, err)
		blobs = append(blobs, blob)
	}
	txID, _, err := crypto.MergeMultisigTransactions(blobs...)
	require.NoError(t, err)
	assert.Equal(t, tx.TxID(), txID)

	_, err = router.SignShare(context.Background(), ma, tx, accts[0].Address.String(), model.LocalKey{Address: accts[1].Address.String()})
	assert.ErrorIs(t, err, errno.ErrKeyMismatch)

	_, err = router.SignShare(context.Background(), ma, tx, accts[0].Address.String(), model.HardwareKey{})
	assert.ErrorIs(t, err, errno.ErrKeyNotFound)
}

// 补足最低余额的两笔组交易都在提交前签名
func TestSignOptInTopUpGroup(t *testing.T) {
	acct := crypto.GenerateAccount()
	receiver := crypto.GenerateAccount().Address.String()
	router, _ := newKMSRouter(t, acct)

	params := testParams()
	node := staticNode{params: params, accounts: map[string]model.AccountInfo{receiver: {Address: receiver}}}
	b := encoder.NewBuilder(fee.NewCalculator(testPolicy), node, node)

	plan, err := b.Build(context.Background(), model.AssetTransfer{
		DraftBase:  model.DraftBase{Sender: acct.Address.String(), Receiver: receiver, AssetID: 31566704, Amount: 50},
		OptInTopUp: true,
	})
	require.NoError(t, err)
	require.Len(t, plan.Transactions, 2)
	assert.Equal(t, uint64(200000), plan.Transactions[0].Mirror.Amount)

	assert.Equal(t, uint64(2000), plan.TotalFee)
	for _, tx := range plan.Transactions {
		assert.Equal(t, uint64(1000), tx.Mirror.Fee)
		signed, err := router.Sign(context.Background(), tx, model.LocalKey{Address: acct.Address.String()})
		require.NoError(t, err)
		assertSignedBy(t, signed, tx, acct.PublicKey)
	}
}

type staticNode struct {
	params   model.NetworkParams
	accounts map[string]model.AccountInfo
}

func (n staticNode) Params(ctx context.Context) (model.NetworkParams, error) { return n.params, nil }

func (n staticNode) Account(ctx context.Context, addr string) (model.AccountInfo, error) {
	return n.accounts[addr], nil
}
