package handler

import (
	"errors"

	"github.com/gin-gonic/gin"

	"session-board/internal/dto"
	"session-board/internal/model"
	"session-board/internal/service"
	"session-board/pkg/response"
)

// ParticipantHandler 参与者模块 HTTP 处理器
type ParticipantHandler struct {
	participantSvc service.ParticipantService
	karmaSvc       service.KarmaService
}

// NewParticipantHandler 创建 ParticipantHandler
func NewParticipantHandler(participantSvc service.ParticipantService, karmaSvc service.KarmaService) *ParticipantHandler {
	return &ParticipantHandler{participantSvc: participantSvc, karmaSvc: karmaSvc}
}

// GetMe 获取当前参与者
// GET /api/v1/participants/me
func (h *ParticipantHandler) GetMe(c *gin.Context) {
	id, ok := MustGetParticipantID(c)
	if !ok {
		return
	}

	p, err := h.participantSvc.GetByID(c.Request.Context(), id)
	if err != nil {
		h.handleParticipantError(c, err)
		return
	}

	response.OK(c, p)
}

// ListParticipants 参与者列表（管理员）
// GET /api/v1/participants
func (h *ParticipantHandler) ListParticipants(c *gin.Context) {
	var page dto.PaginationRequest
	if err := c.ShouldBindQuery(&page); err != nil {
		response.BadRequest(c, 10001, "参数校验失败")
		return
	}

	list, total, err := h.participantSvc.List(c.Request.Context(), &page)
	if err != nil {
		response.InternalError(c)
		return
	}

	response.OKPage(c, list, total, page.GetPage(), page.GetPageSize())
}

// GetParticipant 参与者详情
// GET /api/v1/participants/:id
func (h *ParticipantHandler) GetParticipant(c *gin.Context) {
	p, err := h.participantSvc.GetByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.handleParticipantError(c, err)
		return
	}

	response.OK(c, p)
}

// UpdateParticipant 修改参与者属性（管理员）
// PUT /api/v1/participants/:id
func (h *ParticipantHandler) UpdateParticipant(c *gin.Context) {
	var req dto.UpdateParticipantRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, 10001, "参数校验失败")
		return
	}

	p, err := h.participantSvc.Update(c.Request.Context(), c.Param("id"), &req)
	if err != nil {
		h.handleParticipantError(c, err)
		return
	}

	response.OK(c, p)
}

// ListReputationLogs 声望流水（本人、记录员或管理员）
// GET /api/v1/participants/:id/reputation-logs
func (h *ParticipantHandler) ListReputationLogs(c *gin.Context) {
	callerID, ok := MustGetParticipantID(c)
	if !ok {
		return
	}
	role, ok := MustGetRole(c)
	if !ok {
		return
	}

	id := c.Param("id")
	if id == "me" {
		id = callerID
	}
	if id != callerID && role != model.RoleAdmin && role != model.RoleOperator {
		response.Forbidden(c, 10003, "无权限访问")
		return
	}

	var page dto.PaginationRequest
	if err := c.ShouldBindQuery(&page); err != nil {
		response.BadRequest(c, 10001, "参数校验失败")
		return
	}

	list, total, err := h.karmaSvc.ListHistory(c.Request.Context(), id, &page)
	if err != nil {
		h.handleParticipantError(c, err)
		return
	}

	response.OKPage(c, list, total, page.GetPage(), page.GetPageSize())
}

// Penalize 手动追加迟到取消扣分（管理员）
// POST /api/v1/admin/participants/:id/penalty
func (h *ParticipantHandler) Penalize(c *gin.Context) {
	resp, err := h.karmaSvc.PenalizeLateCancellation(c.Request.Context(), c.Param("id"), nil)
	if err != nil {
		h.handleParticipantError(c, err)
		return
	}

	response.OK(c, resp)
}

func (h *ParticipantHandler) handleParticipantError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrParticipantNotFound):
		response.NotFound(c, 11001, "参与者不存在")
	default:
		response.InternalError(c)
	}
}
