package handler

import (
	"errors"
	"time"

	"wallet-signer/internal/handler/request"
	"wallet-signer/internal/handler/response"
	"wallet-signer/internal/model"
	"wallet-signer/internal/service/encoder"
	"wallet-signer/internal/service/joint"
	"wallet-signer/pkg/errno"
	"wallet-signer/pkg/validator"

	"github.com/gin-gonic/gin"
)

// JointHandler 联合签名请求
type JointHandler struct {
	registry *joint.Registry
}

func NewJointHandler(registry *joint.Registry) *JointHandler {
	return &JointHandler{registry: registry}
}

// signRequestView 对外展示，参与者签名不回传
type signRequestView struct {
	ID               string            `json:"id"`
	Status           model.JointStatus `json:"status"`
	MultisigAddress  string            `json:"multisig_address"`
	Threshold        int               `json:"threshold"`
	Signed           int               `json:"signed"`
	Declined         int               `json:"declined"`
	Participants     []participantView `json:"participants"`
	Transaction      model.Mirror      `json:"transaction"`
	TransactionBytes []byte            `json:"transaction_bytes"`
	Deadline         time.Time         `json:"deadline"`
}

type participantView struct {
	Address string               `json:"address"`
	Status  model.ResponseStatus `json:"status"`
}

func viewOf(c *joint.Coordinator) signRequestView {
	meta := c.Metadata()
	signed, declined := meta.Counts()
	v := signRequestView{
		ID:               meta.ID,
		Status:           c.Status(),
		MultisigAddress:  c.MultisigAddress(),
		Threshold:        meta.Threshold,
		Signed:           signed,
		Declined:         declined,
		Transaction:      meta.Transaction.Mirror,
		TransactionBytes: meta.Transaction.Bytes,
		Deadline:         meta.Deadline,
	}
	for _, p := range meta.Participants {
		v.Participants = append(v.Participants, participantView{Address: p.Address, Status: p.Status})
	}
	return v
}

// Create 发起联合签名请求
// @Summary 发起联合签名请求
// @Tags Joint
// @Accept json
// @Produce json
// @Param request body request.CreateSignRequest true "request"
// @Success 200 {object} response.Response
// @Router /joint/requests [post]
func (h *JointHandler) Create(c *gin.Context) {
	var req request.CreateSignRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, errno.ErrBind.WithMessage(validator.GetErrorMsg(err)))
		return
	}

	mirror, err := encoder.Decode(req.Transaction)
	if err != nil {
		response.Error(c, err)
		return
	}

	coord, err := h.registry.Create(c.Request.Context(), joint.CreateRequest{
		Proposer:     req.Proposer,
		Participants: req.Participants,
		Threshold:    req.Threshold,
		Deadline:     req.Deadline,
		Transaction:  model.SignableTransaction{Bytes: req.Transaction, Mirror: mirror},
	})
	if err != nil {
		response.Error(c, asBadRequest(err))
		return
	}
	response.Success(c, viewOf(coord))
}

// Get 查询联合签名请求
// @Summary 查询联合签名请求
// @Tags Joint
// @Produce json
// @Param id path string true "id"
// @Success 200 {object} response.Response
// @Router /joint/requests/{id} [get]
func (h *JointHandler) Get(c *gin.Context) {
	coord, err := h.registry.Get(c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, viewOf(coord))
}

// Respond 参与者答复 (签名或拒绝)
// @Summary 参与者答复 (签名或拒绝)
// @Tags Joint
// @Accept json
// @Produce json
// @Param id path string true "id"
// @Param request body request.SignResponseRequest true "request"
// @Success 200 {object} response.Response
// @Router /joint/requests/{id}/responses [post]
func (h *JointHandler) Respond(c *gin.Context) {
	var req request.SignResponseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, errno.ErrBind.WithMessage(validator.GetErrorMsg(err)))
		return
	}

	status, err := h.registry.SubmitResponse(c.Param("id"), req.Participant, req.Signed, req.Signature)
	if err != nil {
		response.ErrorWithData(c, asBadRequest(err), gin.H{"status": status})
		return
	}
	response.Success(c, gin.H{"status": status})
}

// Aggregate 聚合已完成的请求
// @Summary 聚合已完成的请求
// @Tags Joint
// @Produce json
// @Param id path string true "id"
// @Success 200 {object} response.Response
// @Router /joint/requests/{id}/aggregate [post]
func (h *JointHandler) Aggregate(c *gin.Context) {
	signed, err := h.registry.Aggregate(c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, signed)
}

// asBadRequest 协调器的包内错误归为参数错误
func asBadRequest(err error) error {
	var typed *errno.Errno
	if errors.As(err, &typed) {
		return err
	}
	return errno.ErrBind.WithMessage(err.Error())
}
