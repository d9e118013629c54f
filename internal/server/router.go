package server

import (
	_ "wallet-signer/docs/swagger"
	"wallet-signer/internal/handler"
	"wallet-signer/internal/handler/response"
	"wallet-signer/internal/server/routes"
	"wallet-signer/pkg/monitor"
	"wallet-signer/pkg/validator"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

// Handlers 路由依赖，nil 的组不注册
type Handlers struct {
	Joint       *handler.JointHandler
	Transaction *handler.TransactionHandler
	Monitor     *handler.MonitorHandler
	Hardware    *handler.HardwareHandler
}

// NewHTTPRouter 初始化并返回一个 Gin Engine
func NewHTTPRouter(h Handlers) *gin.Engine {
	// 0. 自定义校验 (algo_address)
	validator.Init()

	// 1. 创建 Engine (使用默认中间件: Logger, Recovery)
	r := gin.Default()

	// 2. 注册通用中间件
	r.Use(monitor.PrometheusMiddleware())

	// 3. 注册基础路由
	r.GET("/health", handler.HealthCheck)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	// 4. 注册 API 路由组
	api := r.Group("/api/v1")
	{
		api.GET("/ping", func(c *gin.Context) {
			response.Success(c, gin.H{"pong": true})
		})

		if h.Joint != nil {
			routes.RegisterJointRoutes(api, h.Joint)
		}
		if h.Transaction != nil {
			routes.RegisterTransactionRoutes(api, h.Transaction)
		}
		if h.Monitor != nil {
			routes.RegisterMonitorRoutes(api, h.Monitor)
		}
		if h.Hardware != nil {
			routes.RegisterHardwareRoutes(api, h.Hardware)
		}
	}

	return r
}
