package observer

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"wallet-signer/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// flippingAccounts 第 n 次查询之后账户持有资产
type flippingAccounts struct {
	after   int32
	assetID uint64
	calls   atomic.Int32
	failFor int32
}

func (f *flippingAccounts) Account(ctx context.Context, addr string) (model.AccountInfo, error) {
	n := f.calls.Add(1)
	if n <= f.failFor {
		return model.AccountInfo{}, errors.New("node unreachable")
	}
	info := model.AccountInfo{Address: addr, Assets: map[uint64]uint64{}}
	if n > f.after {
		info.Assets[f.assetID] = 0
	}
	return info, nil
}

var fastCfg = Config{PollInterval: 5 * time.Millisecond, Timeout: 2 * time.Second, RatePerSec: 1000}

func waitDone(t *testing.T, w *Watch) Result {
	t.Helper()
	select {
	case <-w.Done():
		return w.Result()
	case <-time.After(3 * time.Second):
		t.Fatal("watch did not finish")
		return Result{}
	}
}

func TestOptInReflected(t *testing.T) {
	accounts := &flippingAccounts{after: 3, assetID: 77, failFor: 1}
	m := NewAssetMonitor(accounts, fastCfg, nil)
	defer m.Close()

	w := m.Register(model.MonitorEntry{Account: "ACCT", AssetID: 77, Transition: model.TransitionOptIn, TxID: "TX1"})
	res := waitDone(t, w)
	assert.Equal(t, OutcomeReflected, res.Outcome)
	assert.True(t, res.Info.HasAsset(77))
	assert.GreaterOrEqual(t, accounts.calls.Load(), int32(4))
}

func TestOptOutAlreadyReflected(t *testing.T) {
	accounts := &flippingAccounts{after: 1000, assetID: 9}
	m := NewAssetMonitor(accounts, fastCfg, nil)
	defer m.Close()

	w := m.Register(model.MonitorEntry{Account: "ACCT", AssetID: 9, Transition: model.TransitionOptOut, TxID: "TX2"})
	assert.Equal(t, OutcomeReflected, waitDone(t, w).Outcome)
	assert.Equal(t, int32(1), accounts.calls.Load())
}

func TestWatchTimeout(t *testing.T) {
	accounts := &flippingAccounts{after: 1 << 30, assetID: 5}
	cfg := fastCfg
	cfg.Timeout = 50 * time.Millisecond
	m := NewAssetMonitor(accounts, cfg, nil)
	defer m.Close()

	w := m.Register(model.MonitorEntry{Account: "ACCT", AssetID: 5, Transition: model.TransitionOptIn, TxID: "TX3"})
	assert.Equal(t, OutcomeTimeout, waitDone(t, w).Outcome)
}

func TestCancelTransaction(t *testing.T) {
	accounts := &flippingAccounts{after: 1 << 30, assetID: 5}
	m := NewAssetMonitor(accounts, fastCfg, nil)
	defer m.Close()

	a := m.Register(model.MonitorEntry{Account: "A", AssetID: 5, Transition: model.TransitionOptIn, TxID: "TX4"})
	b := m.Register(model.MonitorEntry{Account: "B", AssetID: 5, Transition: model.TransitionOptIn, TxID: "TX4"})
	other := m.Register(model.MonitorEntry{Account: "C", AssetID: 5, Transition: model.TransitionOptIn, TxID: "TX5"})

	assert.Equal(t, 2, m.CancelTransaction("TX4"))
	assert.Equal(t, OutcomeCancelled, waitDone(t, a).Outcome)
	assert.Equal(t, OutcomeCancelled, waitDone(t, b).Outcome)

	select {
	case <-other.Done():
		t.Fatal("unrelated watch should still run")
	default:
	}
	assert.Equal(t, 0, m.CancelTransaction("TX4"))

	other.Cancel()
	require.Equal(t, OutcomeCancelled, waitDone(t, other).Outcome)
}
