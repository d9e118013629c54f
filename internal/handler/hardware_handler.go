package handler

import (
	"wallet-signer/internal/handler/response"
	"wallet-signer/pkg/errno"

	"github.com/gin-gonic/gin"
)

// SessionCanceller 取消进行中的硬件签名会话 (signer.HardwareDeviceSigner)
type SessionCanceller interface {
	Cancel(txID string) bool
}

type HardwareHandler struct {
	sessions SessionCanceller
}

func NewHardwareHandler(s SessionCanceller) *HardwareHandler {
	return &HardwareHandler{sessions: s}
}

// Cancel 取消进行中的硬件签名会话
// @Summary 取消进行中的硬件签名会话
// @Tags Hardware
// @Produce json
// @Param txid path string true "txid"
// @Success 200 {object} response.Response
// @Router /hardware/sessions/{txid} [delete]
func (h *HardwareHandler) Cancel(c *gin.Context) {
	txID := c.Param("txid")
	if !h.sessions.Cancel(txID) {
		response.Error(c, errno.ErrNotFound.WithMessage("no hardware session for "+txID))
		return
	}
	response.Success(c, gin.H{"tx_id": txID, "status": "cancelled"})
}
