package handler

import (
	"errors"

	"wallet-signer/internal/handler/request"
	"wallet-signer/internal/handler/response"
	"wallet-signer/internal/model"
	"wallet-signer/internal/service"
	"wallet-signer/internal/service/submission"
	"wallet-signer/pkg/errno"
	"wallet-signer/pkg/validator"

	"github.com/gin-gonic/gin"
)

// TransactionHandler 构建与提交
type TransactionHandler struct {
	svc service.TransactionAPI
}

func NewTransactionHandler(svc service.TransactionAPI) *TransactionHandler {
	return &TransactionHandler{svc: svc}
}

// Build 构建并编码交易
// @Summary 构建并编码交易
// @Tags Transaction
// @Accept json
// @Produce json
// @Param request body request.DraftRequest true "request"
// @Success 200 {object} response.Response
// @Router /transactions/build [post]
func (h *TransactionHandler) Build(c *gin.Context) {
	var req request.DraftRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, errno.ErrBind.WithMessage(validator.GetErrorMsg(err)))
		return
	}
	d, err := req.ToDraft()
	if err != nil {
		response.Error(c, errno.ErrInvalidDraft.Wrap(err))
		return
	}

	plan, err := h.svc.BuildAndEncode(c.Request.Context(), d)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, buildView{Plan: plan, Preview: previewOf(plan, req.Decimals())})
}

// buildView 计划 + 十进制金额预览 (来自解码后的镜像)
type buildView struct {
	model.Plan
	Preview []txPreview `json:"preview"`
}

type txPreview struct {
	TxID    string       `json:"tx_id"`
	Type    model.TxType `json:"type"`
	AssetID uint64       `json:"asset_id,omitempty"`
	Amount  string       `json:"amount"`
	Fee     string       `json:"fee"`
}

func previewOf(plan model.Plan, assetDecimals int32) []txPreview {
	out := make([]txPreview, 0, len(plan.Transactions))
	for _, tx := range plan.Transactions {
		m := tx.Mirror
		decimals := model.NativeDecimals
		if m.Type == model.TxTypeAssetTransfer {
			decimals = assetDecimals
		}
		out = append(out, txPreview{
			TxID:    m.TxID,
			Type:    m.Type,
			AssetID: m.AssetID,
			Amount:  model.FormatAmount(m.Amount, decimals),
			Fee:     model.FormatAmount(m.Fee, model.NativeDecimals),
		})
	}
	return out
}

// Submit 提交已签名的交易组
// @Summary 提交已签名的交易组
// @Tags Transaction
// @Accept json
// @Produce json
// @Param request body request.SubmitRequest true "request"
// @Success 200 {object} response.Response
// @Router /transactions/submit [post]
func (h *TransactionHandler) Submit(c *gin.Context) {
	var req request.SubmitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, errno.ErrBind.WithMessage(validator.GetErrorMsg(err)))
		return
	}

	signed := make([]model.SignedBytes, 0, len(req.Transactions))
	for _, raw := range req.Transactions {
		signed = append(signed, model.SignedBytes{Bytes: raw})
	}

	txID, err := h.svc.Submit(c.Request.Context(), signed...)
	if err != nil {
		submitError(c, err)
		return
	}
	response.Success(c, gin.H{"tx_id": txID})
}

// Execute 构建、签名并提交
// 使用服务端密钥 (keystore、HD 或连接在服务端的硬件设备) 签名
// @Summary 构建、签名并提交
// @Tags Transaction
// @Accept json
// @Produce json
// @Param request body request.ExecuteRequest true "request"
// @Success 200 {object} response.Response
// @Router /transactions/execute [post]
func (h *TransactionHandler) Execute(c *gin.Context) {
	var req request.ExecuteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, errno.ErrBind.WithMessage(validator.GetErrorMsg(err)))
		return
	}
	d, err := req.Draft.ToDraft()
	if err != nil {
		response.Error(c, errno.ErrInvalidDraft.Wrap(err))
		return
	}
	handle, err := req.Key.ToHandle()
	if err != nil {
		response.Error(c, errno.ErrBind.WithMessage(err.Error()))
		return
	}

	res, err := h.svc.Execute(c.Request.Context(), d, handle)
	if err != nil {
		submitError(c, err)
		return
	}
	response.Success(c, gin.H{
		"tx_id":    res.TxID,
		"preview":  previewOf(res.Plan, req.Draft.Decimals()),
		"watching": res.Watch != nil,
	})
}

// submitError 提交失败时带回交易 ID 与失败分类
func submitError(c *gin.Context, err error) {
	var se *submission.SubmissionError
	if errors.As(err, &se) {
		response.ErrorWithData(c, err, gin.H{"tx_id": se.TxID, "kind": se.Kind, "reason": se.Reason})
		return
	}
	response.Error(c, err)
}
