package monitor

import (
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
)

// Namespace 所有指标的前缀 wallet_signer_*
const Namespace = "wallet_signer"

const httpSubsystem = "http"

// HTTPMetrics 签名服务 API 的请求指标
type HTTPMetrics struct {
	RequestsTotal   *prometheus.CounterVec   // group, method, route, status
	RequestDuration *prometheus.HistogramVec // group, method, route
}

// HTTP 全局实例，未初始化时中间件不记录
var HTTP *HTTPMetrics

func NewHTTPMetrics(reg prometheus.Registerer) *HTTPMetrics {
	m := &HTTPMetrics{
		RequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: httpSubsystem,
			Name:      "requests_total",
			Help:      "API requests by route group, route template and status",
		}, []string{"group", "method", "route", "status"}),
		// 硬件会话 execute 可能阻塞到用户确认，高位桶放宽到两分钟
		RequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: Namespace,
			Subsystem: httpSubsystem,
			Name:      "request_duration_seconds",
			Help:      "API request latency by route group and route template",
			Buckets:   []float64{0.05, 0.1, 0.3, 1, 3, 10, 30, 120},
		}, []string{"group", "method", "route"}),
	}
	reg.MustRegister(m.RequestsTotal, m.RequestDuration)
	return m
}

// Init 注册 HTTP 与业务指标到默认 Registerer
func Init() {
	HTTP = NewHTTPMetrics(prometheus.DefaultRegisterer)
	InitBusinessMetrics()
}

// RouteGroup 路由模板所属的分组: /api/v1/joint/requests/:id -> joint
func RouteGroup(route string) string {
	rest, ok := strings.CutPrefix(route, "/api/v1/")
	if !ok {
		return strings.Trim(route, "/") // health, metrics
	}
	group, _, _ := strings.Cut(rest, "/")
	return group
}

// PrometheusMiddleware 按路由模板记录请求，未匹配的路由 (404) 不记录
func PrometheusMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		route := c.FullPath()

		c.Next()

		if HTTP == nil || route == "" {
			return
		}
		group := RouteGroup(route)
		status := strconv.Itoa(c.Writer.Status())
		HTTP.RequestsTotal.WithLabelValues(group, c.Request.Method, route, status).Inc()
		HTTP.RequestDuration.WithLabelValues(group, c.Request.Method, route).Observe(time.Since(start).Seconds())
	}
}
