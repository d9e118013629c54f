package routes

import (
	"wallet-signer/internal/handler"

	"github.com/gin-gonic/gin"
)

func RegisterTransactionRoutes(rg *gin.RouterGroup, h *handler.TransactionHandler) {
	txGroup := rg.Group("/transactions")
	{
		txGroup.POST("/build", h.Build)
		txGroup.POST("/submit", h.Submit)
		txGroup.POST("/execute", h.Execute)
	}
}

func RegisterMonitorRoutes(rg *gin.RouterGroup, h *handler.MonitorHandler) {
	monitorGroup := rg.Group("/monitors")
	{
		monitorGroup.POST("", h.Register)
		monitorGroup.DELETE("/:txid", h.Cancel)
	}
}

func RegisterHardwareRoutes(rg *gin.RouterGroup, h *handler.HardwareHandler) {
	rg.DELETE("/hardware/sessions/:txid", h.Cancel)
}
