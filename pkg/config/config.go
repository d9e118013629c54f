package config

import (
	"log"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	App      AppConfig      `mapstructure:"app"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Kafka    KafkaConfig    `mapstructure:"kafka"`
	Algod    AlgodConfig    `mapstructure:"algod"`
	Policy   PolicyConfig   `mapstructure:"policy"`
	Cache    CacheConfig    `mapstructure:"cache"`
	Hardware HardwareConfig `mapstructure:"hardware"`
	Joint    JointConfig    `mapstructure:"joint"`
	Monitor  MonitorConfig  `mapstructure:"monitor"`
	Wallet   WalletConfig   `mapstructure:"wallet"`
}

type AppConfig struct {
	Env      string `mapstructure:"env"`
	HttpPort string `mapstructure:"http_port"`
	LogLevel string `mapstructure:"log_level"`
}

type RedisConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	MQType   string `mapstructure:"mq_type"` // "redis" or "kafka"
}

type KafkaConfig struct {
	Brokers []string `mapstructure:"brokers"`
	GroupID string   `mapstructure:"group_id"`
}

// AlgodConfig 节点 REST 接口
type AlgodConfig struct {
	Address string `mapstructure:"address"`
	Token   string `mapstructure:"token"`
}

// PolicyConfig 网络最低余额策略 (共识参数，可能随协议升级变化，所以不写死)
type PolicyConfig struct {
	AccountMinBalance   uint64 `mapstructure:"account_min_balance"`
	AssetSlotMinBalance uint64 `mapstructure:"asset_slot_min_balance"`
	FeeMode             string `mapstructure:"fee_mode"` // "flat" 或 "per_byte"
}

type CacheConfig struct {
	Mode      string        `mapstructure:"mode"` // "memory", "redis", "multilevel"
	ParamsTTL time.Duration `mapstructure:"params_ttl"`
}

type HardwareConfig struct {
	// "emulator" 或 "ble"，空表示不启用硬件签名
	Transport       string        `mapstructure:"transport"`
	ScanTimeout     time.Duration `mapstructure:"scan_timeout"`
	ApprovalTimeout time.Duration `mapstructure:"approval_timeout"`
	DeviceName      string        `mapstructure:"device_name"`   // 设备名前缀过滤，空表示任意设备
	EmulatorAddr    string        `mapstructure:"emulator_addr"` // 开发环境模拟器地址 (host:port)
	BLEMTU          int           `mapstructure:"ble_mtu"`

	// 超时与断连分别计数重试
	TimeoutRetries    int `mapstructure:"timeout_retries"`
	DisconnectRetries int `mapstructure:"disconnect_retries"`
}

type JointConfig struct {
	DefaultDeadline time.Duration `mapstructure:"default_deadline"`
	ResponseTopic   string        `mapstructure:"response_topic"`
	EventTopic      string        `mapstructure:"event_topic"`
}

type MonitorConfig struct {
	PollInterval time.Duration `mapstructure:"poll_interval"`
	Timeout      time.Duration `mapstructure:"timeout"`
	RatePerSec   int           `mapstructure:"rate_per_sec"`
}

type WalletConfig struct {
	KeystoreDir string `mapstructure:"keystore_dir"` // 本地 Keystore 目录
	Password    string `mapstructure:"password"`     // Keystore 密码 (通常通过环境变量 WALLET_PASSWORD 传入)
}

var Global Config

func Init() {
	viper.SetConfigName("config") // name of config file (without extension)
	viper.SetConfigType("yaml")   // REQUIRED if the config file does not have the extension in the name
	viper.AddConfigPath(".")      // optionally look for config in the working directory
	viper.AddConfigPath("./config")

	// 环境变量设置
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// 设置默认值
	setDefaults()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			log.Printf("Warning: Config file not found, using defaults and environment variables")
		} else {
			log.Fatalf("Fatal error config file: %s \n", err)
		}
	}

	if err := viper.Unmarshal(&Global); err != nil {
		log.Fatalf("Unable to decode into struct, %v", err)
	}

	log.Printf("Configuration loaded successfully. Env: %s", Global.App.Env)
}

func setDefaults() {
	viper.SetDefault("app.env", "development")
	viper.SetDefault("app.http_port", "8080")
	viper.SetDefault("app.log_level", "")

	viper.SetDefault("redis.enabled", false)
	viper.SetDefault("redis.addr", "localhost:6379")
	viper.SetDefault("redis.db", 0)
	viper.SetDefault("redis.mq_type", "redis")

	viper.SetDefault("kafka.brokers", []string{"localhost:9092"})
	viper.SetDefault("kafka.group_id", "wallet_signer_joint")

	viper.SetDefault("algod.address", "https://testnet-api.algonode.cloud")
	viper.SetDefault("algod.token", "")

	viper.SetDefault("policy.account_min_balance", 100000)
	viper.SetDefault("policy.asset_slot_min_balance", 100000)
	viper.SetDefault("policy.fee_mode", "flat")

	viper.SetDefault("cache.mode", "memory")
	viper.SetDefault("cache.params_ttl", 5*time.Second)

	viper.SetDefault("hardware.transport", "emulator")
	viper.SetDefault("hardware.scan_timeout", 15*time.Second)
	viper.SetDefault("hardware.approval_timeout", 60*time.Second)
	viper.SetDefault("hardware.emulator_addr", "127.0.0.1:9999")
	viper.SetDefault("hardware.ble_mtu", 156)
	viper.SetDefault("hardware.timeout_retries", 0)
	viper.SetDefault("hardware.disconnect_retries", 2)

	viper.SetDefault("joint.default_deadline", 24*time.Hour)
	viper.SetDefault("joint.response_topic", "joint_sign_responses")
	viper.SetDefault("joint.event_topic", "wallet_signer_events")

	viper.SetDefault("monitor.poll_interval", 4*time.Second)
	viper.SetDefault("monitor.timeout", 2*time.Minute)
	viper.SetDefault("monitor.rate_per_sec", 10)

	viper.SetDefault("wallet.keystore_dir", "keystore")
}
