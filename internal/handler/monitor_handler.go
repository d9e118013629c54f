package handler

import (
	"wallet-signer/internal/handler/request"
	"wallet-signer/internal/handler/response"
	"wallet-signer/internal/model"
	"wallet-signer/internal/service/observer"
	"wallet-signer/pkg/errno"
	"wallet-signer/pkg/validator"

	"github.com/gin-gonic/gin"
)

// MonitorHandler 链上状态观察；结果通过 MQ 事件通知
type MonitorHandler struct {
	monitor observer.AccountMonitor
}

func NewMonitorHandler(m observer.AccountMonitor) *MonitorHandler {
	return &MonitorHandler{monitor: m}
}

// Register 注册资产状态观察
// @Summary 注册资产状态观察
// @Tags Monitor
// @Accept json
// @Produce json
// @Param request body request.RegisterMonitorRequest true "request"
// @Success 200 {object} response.Response
// @Router /monitors [post]
func (h *MonitorHandler) Register(c *gin.Context) {
	var req request.RegisterMonitorRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, errno.ErrBind.WithMessage(validator.GetErrorMsg(err)))
		return
	}

	h.monitor.Register(model.MonitorEntry{
		Account:    req.Account,
		AssetID:    req.AssetID,
		Transition: model.Transition(req.Transition),
		TxID:       req.TxID,
	})
	response.Success(c, gin.H{"tx_id": req.TxID, "status": "watching"})
}

// Cancel 取消交易的观察
// @Summary 取消交易的观察
// @Tags Monitor
// @Produce json
// @Param txid path string true "txid"
// @Success 200 {object} response.Response
// @Router /monitors/{txid} [delete]
func (h *MonitorHandler) Cancel(c *gin.Context) {
	n := h.monitor.CancelTransaction(c.Param("txid"))
	if n == 0 {
		response.Error(c, errno.ErrNotFound.WithMessage("no active monitor for "+c.Param("txid")))
		return
	}
	response.Success(c, gin.H{"cancelled": n})
}
