package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"wallet-signer/internal/event"
	"wallet-signer/internal/handler"
	"wallet-signer/internal/network"
	"wallet-signer/internal/server"
	"wallet-signer/internal/service"
	"wallet-signer/internal/service/encoder"
	"wallet-signer/internal/service/fee"
	"wallet-signer/internal/service/hardware"
	"wallet-signer/internal/service/joint"
	"wallet-signer/internal/service/mq"
	"wallet-signer/internal/service/observer"
	"wallet-signer/internal/service/signer"
	"wallet-signer/internal/service/submission"
	"wallet-signer/pkg/cache"
	"wallet-signer/pkg/config"
	"wallet-signer/pkg/database"
	"wallet-signer/pkg/errno"
	"wallet-signer/pkg/keystore"
	"wallet-signer/pkg/logger"
	"wallet-signer/pkg/monitor"
	"wallet-signer/pkg/utils/lock"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const sweepInterval = time.Minute

// @title Wallet Signer API
// @version 1.0
// @description Algorand build / sign / submit pipeline
// @host localhost:8080
// @BasePath /api/v1
func main() {
	// 0. 初始化 Config
	config.Init()
	cfg := config.Global

	// 1. 初始化 Logger 与 Prometheus 指标
	logger.Init(cfg.App.Env, cfg.App.LogLevel)
	defer logger.Sync()
	monitor.Init()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 2. 连接 Redis (可选)
	var rdb *redis.Client
	if cfg.Redis.Enabled {
		var err error
		rdb, err = database.ConnectRedis(ctx, cfg.Redis)
		if err != nil {
			logger.Fatal("Redis 连接失败", zap.Error(err))
		}
		defer rdb.Close()
	}

	// 3. 节点客户端与参数缓存
	node, err := network.NewAlgodClient(cfg.Algod.Address, cfg.Algod.Token)
	if err != nil {
		logger.Fatal("初始化 algod 客户端失败", zap.Error(err))
	}
	params := network.NewCachedParams(node, newParamsCache(rdb), cfg.Cache.ParamsTTL)

	calc := fee.NewCalculator(fee.Policy{
		AccountMinBalance:   cfg.Policy.AccountMinBalance,
		AssetSlotMinBalance: cfg.Policy.AssetSlotMinBalance,
		FeeMode:             fee.FeeMode(cfg.Policy.FeeMode),
	})
	builder := encoder.NewBuilder(calc, params, node)

	// 4. 消息队列
	producer, consumer := newMQ(rdb)
	defer consumer.Close()
	publisher := event.NewPublisher(producer, cfg.Joint.EventTopic)

	// 5. 联合账户签名请求
	registry := joint.NewRegistry(publisher, cfg.Joint.DefaultDeadline)
	bridge := joint.NewResponseBridge(consumer, registry, cfg.Joint.ResponseTopic)

	// 6. 签名后端
	dir, err := keystore.NewDir(cfg.Wallet.KeystoreDir)
	if err != nil {
		logger.Fatal("打开 keystore 失败", zap.Error(err))
	}
	password := configuredPassword(cfg.Wallet.Password)
	router := &signer.Router{
		Local: signer.NewLocalKeySigner(signer.NewKeystoreKeySource(dir, password)),
		HD:    signer.NewHDDerivedSigner(dir, password),
		Joint: signer.NewJointAccountThresholdSigner(registry),
	}

	var devices *hardware.Manager
	if hw := cfg.Hardware; hw.Transport != "" {
		transport, err := hardware.NewTransport(hw.Transport, hw.EmulatorAddr, hw.DeviceName, hw.BLEMTU)
		if err != nil {
			logger.Fatal("初始化硬件设备传输失败", zap.Error(err))
		}
		devices = hardware.NewManager(
			transport,
			hardware.Config{ScanTimeout: hw.ScanTimeout, ApprovalTimeout: hw.ApprovalTimeout},
			hardware.Retries{Timeout: hw.TimeoutRetries, Disconnect: hw.DisconnectRetries},
		)
		router.Hardware = signer.NewHardwareDeviceSigner(devices, func(e hardware.Event) {
			logger.Debug("hardware session event", zap.String("type", string(e.Type)), zap.String("state", string(e.State)))
		})
	}

	// 7. 提交管线与资产监视
	var lk lock.DistributedLock
	if rdb != nil {
		lk = lock.NewRedisLock(rdb)
	}
	pipeline := submission.NewPipeline(node, lk, publisher)
	mon := observer.NewAssetMonitor(node, observer.Config{
		PollInterval: cfg.Monitor.PollInterval,
		Timeout:      cfg.Monitor.Timeout,
		RatePerSec:   cfg.Monitor.RatePerSec,
	}, publisher)
	defer mon.Close()
	if devices != nil {
		devices.SetMonitorCanceller(func(txID string) { mon.CancelTransaction(txID) })
	}

	svc := service.NewTransactionService(builder, params, router, pipeline, mon)

	// 8. HTTP
	handlers := server.Handlers{
		Joint:       handler.NewJointHandler(registry),
		Transaction: handler.NewTransactionHandler(svc),
		Monitor:     handler.NewMonitorHandler(mon),
	}
	if router.Hardware != nil {
		handlers.Hardware = handler.NewHardwareHandler(router.Hardware)
	}
	engine := server.NewHTTPRouter(handlers)
	app := server.New(server.Config{HttpPort: cfg.App.HttpPort}, engine)

	// 9. 启动
	if err := bridge.Start(ctx); err != nil {
		logger.Fatal("订阅联合签名答复失败", zap.Error(err))
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return app.Run(gctx) })
	g.Go(func() error {
		registry.Run(gctx, sweepInterval)
		return nil
	})

	if err := g.Wait(); err != nil {
		logger.Error("服务异常退出", zap.Error(err))
	}
	logger.Info("系统已退出")
}

// newParamsCache 按 cache.mode 组装参数缓存；Redis 未启用时退回内存
func newParamsCache(rdb *redis.Client) cache.Cache {
	ttl := config.Global.Cache.ParamsTTL
	local := cache.NewMemoryCache(ttl, 2*ttl)
	if rdb == nil {
		return local
	}
	remote := cache.NewRedisCache(rdb, "wallet-signer:")
	switch config.Global.Cache.Mode {
	case "redis":
		return remote
	case "multilevel":
		return cache.NewMultiLevelCache(local, remote)
	}
	return local
}

// newMQ 按 redis.mq_type 选择 Kafka 或 Redis Streams；都不可用时使用进程内总线
func newMQ(rdb *redis.Client) (mq.Producer, mq.Consumer) {
	switch {
	case config.Global.Redis.MQType == "kafka":
		logger.Info("使用 Kafka 作为消息队列...")
		brokers := config.Global.Kafka.Brokers
		return mq.NewKafkaProducer(brokers), mq.NewKafkaConsumer(brokers, config.Global.Kafka.GroupID)
	case rdb != nil:
		logger.Info("使用 Redis Streams 作为消息队列...")
		host, _ := os.Hostname()
		return mq.NewRedisProducer(rdb), mq.NewRedisConsumer(rdb, config.Global.Kafka.GroupID, "signer-"+host)
	}
	logger.Warn("未配置消息队列，事件只在进程内分发")
	bus := mq.NewMemoryBus()
	return bus, bus
}

// configuredPassword 服务端 keystore 密码来自配置 (WALLET_PASSWORD)
func configuredPassword(pw string) signer.PasswordFunc {
	return func(ctx context.Context, prompt string) (string, error) {
		if pw == "" {
			return "", errno.ErrKeyNotFound.WithMessage("wallet.password is not configured")
		}
		return pw, nil
	}
}
