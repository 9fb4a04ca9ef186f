package handler

import (
	"errors"

	"github.com/gin-gonic/gin"

	"session-board/internal/dto"
	"session-board/internal/service"
	"session-board/pkg/response"
)

// SessionHandler 场次模块 HTTP 处理器
type SessionHandler struct {
	sessionSvc service.SessionService
}

// NewSessionHandler 创建 SessionHandler
func NewSessionHandler(sessionSvc service.SessionService) *SessionHandler {
	return &SessionHandler{sessionSvc: sessionSvc}
}

// ListWeek 待分配周的场次
// GET /api/v1/sessions?date=YYYY-MM-DD
func (h *SessionHandler) ListWeek(c *gin.Context) {
	date, ok := BindDate(c)
	if !ok {
		return
	}

	week, err := h.sessionSvc.ListWeek(c.Request.Context(), date)
	if err != nil {
		response.InternalError(c)
		return
	}

	response.OK(c, week)
}

// GetSession 场次详情
// GET /api/v1/sessions/:id
func (h *SessionHandler) GetSession(c *gin.Context) {
	s, err := h.sessionSvc.GetByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.handleSessionError(c, err)
		return
	}

	response.OK(c, s)
}

// CreateSession 创建场次（可一次创建连续多周）
// POST /api/v1/sessions
func (h *SessionHandler) CreateSession(c *gin.Context) {
	var req dto.CreateSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, 10001, "参数校验失败")
		return
	}

	creatorID, ok := MustGetParticipantID(c)
	if !ok {
		return
	}

	list, err := h.sessionSvc.Create(c.Request.Context(), creatorID, &req)
	if err != nil {
		h.handleSessionError(c, err)
		return
	}

	response.Created(c, gin.H{"list": list})
}

func (h *SessionHandler) handleSessionError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrSessionNotFound):
		response.NotFound(c, 12001, "场次不存在")
	case errors.Is(err, service.ErrPredecessorNotFound):
		response.BadRequest(c, 12002, "前置场次不存在")
	case errors.Is(err, service.ErrInvalidDate):
		response.BadRequest(c, 12003, "日期格式错误")
	case errors.Is(err, service.ErrSessionInPast):
		response.BadRequest(c, 12004, "不能创建过去日期的场次")
	default:
		response.InternalError(c)
	}
}
