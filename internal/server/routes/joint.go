package routes

import (
	"wallet-signer/internal/handler"

	"github.com/gin-gonic/gin"
)

func RegisterJointRoutes(rg *gin.RouterGroup, h *handler.JointHandler) {
	jointGroup := rg.Group("/joint/requests")
	{
		jointGroup.POST("", h.Create)
		jointGroup.GET("/:id", h.Get)
		jointGroup.POST("/:id/responses", h.Respond)
		jointGroup.POST("/:id/aggregate", h.Aggregate)
	}
}
