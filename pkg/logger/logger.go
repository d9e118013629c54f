package logger

import (
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Service 每条日志都带上的 service 字段
const Service = "wallet-signer"

var (
	Log *zap.Logger
)

func init() {
	// 未 Init 时为 Nop，单元测试不输出日志
	Log = zap.NewNop()
}

// Init 服务端日志
// env: "production" 输出 JSON，其它环境输出带颜色的 console 格式
// level: debug | info | warn | error，空或无法解析时按环境默认 (production 为 info，其它为 debug)
func Init(env, level string) {
	var config zap.Config

	if env == "production" {
		config = zap.NewProductionConfig()
		config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	} else {
		config = zap.NewDevelopmentConfig()
		config.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}
	if lvl, err := zapcore.ParseLevel(level); err == nil && level != "" {
		config.Level = zap.NewAtomicLevelAt(lvl)
	}
	config.InitialFields = map[string]interface{}{"service": Service, "env": env}

	var err error
	Log, err = config.Build(zap.AddCallerSkip(1)) // helper 多一层调用
	if err != nil {
		panic(err)
	}

	zap.ReplaceGlobals(Log)
}

// InitCLI 命令行日志写到 stderr，stdout 只留给命令输出 (交易预览、签名结果)
func InitCLI(level string) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil || level == "" {
		lvl = zapcore.WarnLevel
	}
	enc := zap.NewDevelopmentEncoderConfig()
	enc.EncodeLevel = zapcore.CapitalColorLevelEncoder
	enc.TimeKey = "" // 终端里不需要时间戳
	core := zapcore.NewCore(zapcore.NewConsoleEncoder(enc), zapcore.Lock(os.Stderr), lvl)
	Log = zap.New(core, zap.AddCaller(), zap.AddCallerSkip(1))
}

// Sync flushes any buffered log entries
func Sync() {
	_ = Log.Sync()
}

// Named 组件 logger，如 logger.Named("hardware")
// 组件 logger 不经过 helper，所以去掉 caller skip
func Named(component string) *zap.Logger {
	return Log.WithOptions(zap.AddCallerSkip(-1)).Named(component)
}

func Info(msg string, fields ...zap.Field) {
	Log.Info(msg, fields...)
}

func Warn(msg string, fields ...zap.Field) {
	Log.Warn(msg, fields...)
}

func Error(msg string, fields ...zap.Field) {
	Log.Error(msg, fields...)
}

func Fatal(msg string, fields ...zap.Field) {
	Log.Fatal(msg, fields...)
}

func Debug(msg string, fields ...zap.Field) {
	Log.Debug(msg, fields...)
}
