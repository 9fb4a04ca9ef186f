package handler

import (
	"errors"

	"github.com/gin-gonic/gin"

	"session-board/internal/dto"
	"session-board/internal/service"
	"session-board/pkg/response"
)

// SignupHandler 报名模块 HTTP 处理器
type SignupHandler struct {
	signupSvc service.SignupService
}

// NewSignupHandler 创建 SignupHandler
func NewSignupHandler(signupSvc service.SignupService) *SignupHandler {
	return &SignupHandler{signupSvc: signupSvc}
}

// Toggle 切换报名
// POST /api/v1/signups
func (h *SignupHandler) Toggle(c *gin.Context) {
	var req dto.ToggleSignupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, 10001, "参数校验失败")
		return
	}

	participantID, ok := MustGetParticipantID(c)
	if !ok {
		return
	}

	resp, err := h.signupSvc.Toggle(c.Request.Context(), participantID, &req)
	if err != nil {
		h.handleSignupError(c, err)
		return
	}

	response.OK(c, resp)
}

// ListMine 我的报名
// GET /api/v1/signups/me?date=YYYY-MM-DD
func (h *SignupHandler) ListMine(c *gin.Context) {
	participantID, ok := MustGetParticipantID(c)
	if !ok {
		return
	}
	date, ok := BindDate(c)
	if !ok {
		return
	}

	list, err := h.signupSvc.ListMine(c.Request.Context(), participantID, date)
	if err != nil {
		response.InternalError(c)
		return
	}

	response.OK(c, gin.H{"list": list})
}

func (h *SignupHandler) handleSignupError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrSessionNotFound):
		response.NotFound(c, 13001, "场次不存在")
	case errors.Is(err, service.ErrSignupWaitingList):
		response.BadRequest(c, 13002, "候补场次不接受报名")
	case errors.Is(err, service.ErrSignupClosed):
		response.BadRequest(c, 13003, "场次已过期，不能报名")
	default:
		response.InternalError(c)
	}
}
