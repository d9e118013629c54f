package joint

import (
	"bytes"
	"testing"
	"time"

	"wallet-signer/internal/model"
	"wallet-signer/internal/service/encoder"
	"wallet-signer/internal/service/fee"
	"wallet-signer/pkg/errno"

	"github.com/algorand/go-algorand-sdk/v2/crypto"
	"github.com/algorand/go-algorand-sdk/v2/encoding/msgpack"
	"github.com/algorand/go-algorand-sdk/v2/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fixture 一组参与者与一笔联合账户发出的交易
type fixture struct {
	accounts []crypto.Account
	multisig crypto.MultisigAccount
	signable model.SignableTransaction
	txn      types.Transaction
}

func newFixture(t *testing.T, n, threshold int) *fixture {
	t.Helper()
	f := &fixture{}
	addrs := make([]types.Address, 0, n)
	for i := 0; i < n; i++ {
		acct := crypto.GenerateAccount()
		f.accounts = append(f.accounts, acct)
		addrs = append(addrs, acct.Address)
	}
	ma, err := crypto.MultisigAccountWithParams(1, uint8(threshold), addrs)
	require.NoError(t, err)
	f.multisig = ma
	msigAddr, err := ma.Address()
	require.NoError(t, err)

	enc := encoder.New(fee.NewCalculator(fee.Policy{AccountMinBalance: 100000, AssetSlotMinBalance: 100000}))
	params := model.NetworkParams{
		FeePerByte:  0,
		MinFee:      1000,
		FirstValid:  100,
		LastValid:   1100,
		GenesisID:   "testnet-v1.0",
		GenesisHash: bytes.Repeat([]byte{3}, 32),
	}
	d := model.ValueTransfer{DraftBase: model.DraftBase{
		Sender:   msigAddr.String(),
		Receiver: crypto.GenerateAccount().Address.String(),
		Amount:   1000,
	}}
	f.signable, err = enc.Encode(d, params)
	require.NoError(t, err)
	f.txn, err = encoder.DecodeTransaction(f.signable.Bytes)
	require.NoError(t, err)
	return f
}

func (f *fixture) meta(threshold int, deadline time.Time) model.SignRequestMetadata {
	participants := make([]model.ParticipantResponse, 0, len(f.accounts))
	for _, a := range f.accounts {
		participants = append(participants, model.ParticipantResponse{Address: a.Address.String()})
	}
	return model.SignRequestMetadata{
		ID:           "req-1",
		Participants: participants,
		Threshold:    threshold,
		Deadline:     deadline,
		Transaction:  f.signable,
	}
}

func (f *fixture) sign(t *testing.T, i int) []byte {
	t.Helper()
	_, blob, err := crypto.SignMultisigTransaction(f.accounts[i].PrivateKey, f.multisig, f.txn)
	require.NoError(t, err)
	return blob
}

func (f *fixture) addr(i int) string {
	return f.accounts[i].Address.String()
}

func newTestCoordinator(t *testing.T, f *fixture, threshold int) *Coordinator {
	t.Helper()
	c, err := NewCoordinator(f.meta(threshold, time.Now().Add(time.Hour)), nil)
	require.NoError(t, err)
	t.Cleanup(c.Stop)
	return c
}

func TestTwoOfThreeLifecycle(t *testing.T) {
	f := newFixture(t, 3, 2)
	c := newTestCoordinator(t, f, 2)

	msigAddr, _ := f.multisig.Address()
	assert.Equal(t, msigAddr.String(), c.MultisigAddress())

	status, err := c.SubmitResponse(f.addr(0), true, f.sign(t, 0))
	require.NoError(t, err)
	assert.Equal(t, model.JointPending, status)

	_, err = c.Aggregate()
	assert.ErrorIs(t, err, errno.ErrInsufficientThreshold)

	status, err = c.SubmitResponse(f.addr(2), true, f.sign(t, 2))
	require.NoError(t, err)
	assert.Equal(t, model.JointComplete, status)

	// 第三个参与者拒绝不改变完成状态
	_, err = c.SubmitResponse(f.addr(1), false, nil)
	assert.ErrorIs(t, err, ErrRequestFinalized)
	assert.Equal(t, model.JointComplete, c.Status())

	signed, err := c.Aggregate()
	require.NoError(t, err)
	assert.Equal(t, f.signable.TxID(), signed.TxID)

	var stx types.SignedTxn
	require.NoError(t, msgpack.Decode(signed.Bytes, &stx))
	var present int
	for _, sub := range stx.Msig.Subsigs {
		if sub.Sig != (types.Signature{}) {
			present++
		}
	}
	assert.Equal(t, 2, present)
	assert.Equal(t, f.signable.Bytes, msgpack.Encode(stx.Txn))
}

func TestDeclinedWhenThresholdUnreachable(t *testing.T) {
	f := newFixture(t, 3, 2)
	c := newTestCoordinator(t, f, 2)

	status, err := c.SubmitResponse(f.addr(0), false, nil)
	require.NoError(t, err)
	assert.Equal(t, model.JointPending, status)

	status, err = c.SubmitResponse(f.addr(1), false, nil)
	require.NoError(t, err)
	assert.Equal(t, model.JointDeclined, status)

	_, err = c.Aggregate()
	assert.ErrorIs(t, err, errno.ErrSignRequestDeclined)

	_, err = c.SubmitResponse(f.addr(2), true, f.sign(t, 2))
	assert.ErrorIs(t, err, ErrRequestFinalized)
}

func TestLastResponseWins(t *testing.T) {
	f := newFixture(t, 3, 2)
	c := newTestCoordinator(t, f, 2)

	_, err := c.SubmitResponse(f.addr(0), false, nil)
	require.NoError(t, err)
	_, err = c.SubmitResponse(f.addr(0), true, f.sign(t, 0))
	require.NoError(t, err)

	signed, declined := c.Metadata().Counts()
	assert.Equal(t, 1, signed)
	assert.Equal(t, 0, declined)
}

func TestSingleSignatureThresholdReturnsBlob(t *testing.T) {
	f := newFixture(t, 2, 1)
	c := newTestCoordinator(t, f, 1)

	blob := f.sign(t, 1)
	status, err := c.SubmitResponse(f.addr(1), true, blob)
	require.NoError(t, err)
	assert.Equal(t, model.JointComplete, status)

	signed, err := c.Aggregate()
	require.NoError(t, err)
	assert.Equal(t, blob, signed.Bytes)
}

func TestRejectsUnknownAndInvalid(t *testing.T) {
	f := newFixture(t, 3, 2)
	c := newTestCoordinator(t, f, 2)

	outsider := crypto.GenerateAccount()
	_, err := c.SubmitResponse(outsider.Address.String(), false, nil)
	assert.ErrorIs(t, err, ErrUnknownParticipant)

	// 参与者 0 提交参与者 1 的签名
	_, err = c.SubmitResponse(f.addr(0), true, f.sign(t, 1))
	assert.ErrorIs(t, err, ErrInvalidSignature)

	_, err = c.SubmitResponse(f.addr(0), true, []byte("garbage"))
	assert.ErrorIs(t, err, ErrInvalidSignature)

	// 另一笔交易上的签名
	other := newFixture(t, 3, 2)
	_, err = c.SubmitResponse(f.addr(0), true, other.sign(t, 0))
	assert.ErrorIs(t, err, ErrInvalidSignature)

	signed, declined := c.Metadata().Counts()
	assert.Zero(t, signed)
	assert.Zero(t, declined)
}

func TestInvalidThreshold(t *testing.T) {
	f := newFixture(t, 2, 1)
	for _, thr := range []int{0, 3} {
		_, err := NewCoordinator(f.meta(thr, time.Now().Add(time.Hour)), nil)
		assert.ErrorIs(t, err, ErrInvalidThreshold)
	}
}

func TestExpiryNotifiesListener(t *testing.T) {
	f := newFixture(t, 3, 2)
	c, err := NewCoordinator(f.meta(2, time.Now().Add(50*time.Millisecond)), nil)
	require.NoError(t, err)
	defer c.Stop()

	got := make(chan model.JointStatus, 4)
	c.OnStatusChanged(func(meta model.SignRequestMetadata, status model.JointStatus) {
		got <- status
	})

	select {
	case status := <-got:
		assert.Equal(t, model.JointExpired, status)
	case <-time.After(2 * time.Second):
		t.Fatal("expiry was not reported")
	}

	_, err = c.SubmitResponse(f.addr(0), true, f.sign(t, 0))
	assert.ErrorIs(t, err, ErrRequestFinalized)
	_, err = c.Aggregate()
	assert.ErrorIs(t, err, errno.ErrSignRequestExpired)
}

func TestExpiryWithFakeClock(t *testing.T) {
	f := newFixture(t, 2, 2)
	now := time.Now()
	clock := func() time.Time { return now }
	c, err := NewCoordinator(f.meta(2, now.Add(time.Hour)), clock)
	require.NoError(t, err)
	defer c.Stop()

	_, err = c.SubmitResponse(f.addr(0), true, f.sign(t, 0))
	require.NoError(t, err)

	now = now.Add(2 * time.Hour)
	assert.Equal(t, model.JointExpired, c.Status())
}

func TestCoordinatorCopiesParticipants(t *testing.T) {
	f := newFixture(t, 3, 2)
	meta := f.meta(2, time.Now().Add(time.Hour))
	meta.Participants[0].Status = model.ResponseSigned
	meta.Participants[0].Signature = []byte{1}

	c, err := NewCoordinator(meta, nil)
	require.NoError(t, err)
	t.Cleanup(c.Stop)

	// 调用方切片保持原样
	assert.Equal(t, model.ResponseSigned, meta.Participants[0].Status)
	assert.Equal(t, []byte{1}, meta.Participants[0].Signature)

	_, err = c.SubmitResponse(f.addr(1), true, f.sign(t, 1))
	require.NoError(t, err)
	assert.Equal(t, model.ResponsePending, meta.Participants[1].Status)

	got := c.Metadata().Participants
	assert.Equal(t, model.ResponsePending, got[0].Status)
	assert.Nil(t, got[0].Signature)
	assert.Equal(t, model.ResponseSigned, got[1].Status)
}
