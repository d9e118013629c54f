package observer

import (
	"context"
	"errors"
	"sync"
	"time"

	"wallet-signer/internal/event"
	"wallet-signer/internal/model"
	"wallet-signer/internal/network"
	"wallet-signer/pkg/logger"
	"wallet-signer/pkg/monitor"

	"go.uber.org/ratelimit"
	"go.uber.org/zap"
)

// Config 轮询参数
type Config struct {
	PollInterval time.Duration
	Timeout      time.Duration
	RatePerSec   int // 所有观察共享的账户查询速率
}

// Watch 单个观察登记
type Watch struct {
	entry  model.MonitorEntry
	done   chan struct{}
	cancel context.CancelFunc
	once   sync.Once
	result Result
}

// Done 观察结束时关闭
func (w *Watch) Done() <-chan struct{} { return w.done }

// Result 仅在 Done 关闭后有意义
func (w *Watch) Result() Result {
	<-w.done
	return w.result
}

// Cancel 主动结束观察
func (w *Watch) Cancel() { w.cancel() }

// AssetMonitor 轮询账户信息直到资产 opt-in / opt-out 在链上可见
// 核心设计:
// 1. 每个 Watch 一个 goroutine，按 PollInterval 轮询
// 2. 全部 goroutine 共享一个 ratelimit.Limiter，防止打爆节点
type AssetMonitor struct {
	accounts  network.AccountFetcher
	cfg       Config
	rl        ratelimit.Limiter
	publisher *event.Publisher
	log       *zap.Logger

	root    context.Context
	stopAll context.CancelFunc
	wg      sync.WaitGroup

	mu      sync.Mutex
	watches map[string][]*Watch // txID -> watches
}

// NewAssetMonitor publisher 可为 nil
func NewAssetMonitor(accounts network.AccountFetcher, cfg Config, publisher *event.Publisher) *AssetMonitor {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 2 * time.Second
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 2 * time.Minute
	}
	if cfg.RatePerSec <= 0 {
		cfg.RatePerSec = 10
	}
	root, stop := context.WithCancel(context.Background())
	return &AssetMonitor{
		accounts:  accounts,
		cfg:       cfg,
		rl:        ratelimit.New(cfg.RatePerSec),
		publisher: publisher,
		log:       logger.Named("monitor"),
		root:      root,
		stopAll:   stop,
		watches:   make(map[string][]*Watch),
	}
}

func (m *AssetMonitor) Register(entry model.MonitorEntry) *Watch {
	if entry.StartedAt.IsZero() {
		entry.StartedAt = time.Now()
	}
	ctx, cancel := context.WithTimeout(m.root, m.cfg.Timeout)
	w := &Watch{entry: entry, done: make(chan struct{}), cancel: cancel}

	m.mu.Lock()
	m.watches[entry.TxID] = append(m.watches[entry.TxID], w)
	m.mu.Unlock()

	m.log.Info("watch registered",
		zap.String("tx_id", entry.TxID),
		zap.String("account", entry.Account),
		zap.Uint64("asset_id", entry.AssetID),
		zap.String("transition", string(entry.Transition)),
	)

	m.wg.Add(1)
	go m.poll(ctx, w)
	return w
}

func (m *AssetMonitor) CancelTransaction(txID string) int {
	m.mu.Lock()
	ws := append([]*Watch(nil), m.watches[txID]...)
	m.mu.Unlock()

	for _, w := range ws {
		w.Cancel()
	}
	if len(ws) > 0 {
		m.log.Info("watches cancelled", zap.String("tx_id", txID), zap.Int("count", len(ws)))
	}
	return len(ws)
}

// Close 取消全部观察并等待轮询 goroutine 退出
func (m *AssetMonitor) Close() {
	m.stopAll()
	m.wg.Wait()
}

func (m *AssetMonitor) poll(ctx context.Context, w *Watch) {
	defer m.wg.Done()
	defer w.cancel()

	ticker := time.NewTicker(m.cfg.PollInterval)
	defer ticker.Stop()

	var last model.AccountInfo
	for {
		m.rl.Take()
		if ctx.Err() != nil {
			m.finish(w, outcomeOf(ctx), last)
			return
		}

		info, err := m.accounts.Account(ctx, w.entry.Account)
		if err == nil {
			last = info
			if w.entry.Reflected(info) {
				m.finish(w, OutcomeReflected, info)
				return
			}
		} else if ctx.Err() == nil {
			// 暂时性错误，下个周期重试
			m.log.Debug("account poll failed", zap.String("tx_id", w.entry.TxID), zap.Error(err))
		}

		select {
		case <-ctx.Done():
			m.finish(w, outcomeOf(ctx), last)
			return
		case <-ticker.C:
		}
	}
}

func outcomeOf(ctx context.Context) Outcome {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return OutcomeTimeout
	}
	return OutcomeCancelled
}

func (m *AssetMonitor) finish(w *Watch, outcome Outcome, info model.AccountInfo) {
	w.once.Do(func() {
		w.result = Result{Entry: w.entry, Outcome: outcome, Info: info}

		m.mu.Lock()
		ws := m.watches[w.entry.TxID]
		for i, other := range ws {
			if other == w {
				ws = append(ws[:i], ws[i+1:]...)
				break
			}
		}
		if len(ws) == 0 {
			delete(m.watches, w.entry.TxID)
		} else {
			m.watches[w.entry.TxID] = ws
		}
		m.mu.Unlock()

		close(w.done)

		elapsed := time.Since(w.entry.StartedAt)
		monitor.ObserveMonitorWatch(string(w.entry.Transition), elapsed.Seconds())
		m.log.Info("watch finished",
			zap.String("tx_id", w.entry.TxID),
			zap.String("outcome", string(outcome)),
			zap.Duration("elapsed", elapsed),
		)

		evt := event.MonitorResolvedEvent{
			Type:       event.TypeMonitorResolved,
			TxID:       w.entry.TxID,
			Account:    w.entry.Account,
			AssetID:    w.entry.AssetID,
			Transition: string(w.entry.Transition),
			Outcome:    string(outcome),
			At:         time.Now(),
		}
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := m.publisher.Publish(ctx, w.entry.TxID, evt); err != nil {
			m.log.Warn("publish monitor event failed", zap.String("tx_id", w.entry.TxID), zap.Error(err))
		}
	})
}
