package monitor

import (
	"github.com/prometheus/client_golang/prometheus"
)

// BusinessMetrics 定义签名流水线的业务监控指标
type BusinessMetrics struct {
	TransactionsBuiltTotal *prometheus.CounterVec   // kind
	SignaturesTotal        *prometheus.CounterVec   // source, result
	SubmissionsTotal       *prometheus.CounterVec   // result
	SubmitDuration         prometheus.Histogram     // 提交到节点的耗时
	HardwareSessionTotal   *prometheus.CounterVec   // terminal state
	JointRequestsTotal     *prometheus.CounterVec   // terminal status
	MonitorWatchDuration   *prometheus.HistogramVec // transition
	ParamsCacheTotal       *prometheus.CounterVec   // hit | miss
}

const pipelineSubsystem = "pipeline"

// Business 全局实例，未初始化时为 nil，调用方需判空
var Business *BusinessMetrics

// NewBusinessMetrics 创建并注册到指定 Registerer
func NewBusinessMetrics(reg prometheus.Registerer) *BusinessMetrics {
	m := &BusinessMetrics{
		TransactionsBuiltTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: pipelineSubsystem,
			Name:      "transactions_built_total",
			Help:      "Number of transactions built and encoded",
		}, []string{"kind"}),
		SignaturesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: pipelineSubsystem,
			Name:      "signatures_total",
			Help:      "Signing attempts by key source and outcome",
		}, []string{"source", "result"}),
		SubmissionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: pipelineSubsystem,
			Name:      "submissions_total",
			Help:      "Submission attempts by outcome",
		}, []string{"result"}),
		SubmitDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: Namespace,
			Subsystem: pipelineSubsystem,
			Name:      "submit_duration_seconds",
			Help:      "Latency of submitting signed bytes to the network",
			Buckets:   prometheus.DefBuckets,
		}),
		HardwareSessionTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: pipelineSubsystem,
			Name:      "hardware_sessions_total",
			Help:      "Hardware signing sessions by terminal state",
		}, []string{"state"}),
		JointRequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: pipelineSubsystem,
			Name:      "joint_requests_total",
			Help:      "Joint sign requests by terminal status",
		}, []string{"status"}),
		MonitorWatchDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: Namespace,
			Subsystem: pipelineSubsystem,
			Name:      "monitor_watch_duration_seconds",
			Help:      "Time until an asset transition was reflected on chain",
			Buckets:   []float64{1, 2, 4, 8, 16, 32, 64, 128},
		}, []string{"transition"}),
		ParamsCacheTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: pipelineSubsystem,
			Name:      "params_cache_total",
			Help:      "Network params cache lookups",
		}, []string{"result"}),
	}

	reg.MustRegister(
		m.TransactionsBuiltTotal,
		m.SignaturesTotal,
		m.SubmissionsTotal,
		m.SubmitDuration,
		m.HardwareSessionTotal,
		m.JointRequestsTotal,
		m.MonitorWatchDuration,
		m.ParamsCacheTotal,
	)
	return m
}

// InitBusinessMetrics 初始化业务指标 (默认 Registerer)
func InitBusinessMetrics() {
	Business = NewBusinessMetrics(prometheus.DefaultRegisterer)
}

// 以下为判空的便捷记录函数，CLI 模式下不初始化指标

func ObserveBuilt(kind string) {
	if Business != nil {
		Business.TransactionsBuiltTotal.WithLabelValues(kind).Inc()
	}
}

func ObserveSignature(source, result string) {
	if Business != nil {
		Business.SignaturesTotal.WithLabelValues(source, result).Inc()
	}
}

func ObserveSubmission(result string, seconds float64) {
	if Business != nil {
		Business.SubmissionsTotal.WithLabelValues(result).Inc()
		Business.SubmitDuration.Observe(seconds)
	}
}

func ObserveHardwareSession(state string) {
	if Business != nil {
		Business.HardwareSessionTotal.WithLabelValues(state).Inc()
	}
}

func ObserveJointRequest(status string) {
	if Business != nil {
		Business.JointRequestsTotal.WithLabelValues(status).Inc()
	}
}

func ObserveMonitorWatch(transition string, seconds float64) {
	if Business != nil {
		Business.MonitorWatchDuration.WithLabelValues(transition).Observe(seconds)
	}
}

func ObserveParamsCache(hit bool) {
	if Business != nil {
		result := "miss"
		if hit {
			result = "hit"
		}
		Business.ParamsCacheTotal.WithLabelValues(result).Inc()
	}
}
