package handler

import (
	"errors"

	"github.com/gin-gonic/gin"

	"session-board/internal/dto"
	"session-board/internal/service"
	pkgerrors "session-board/pkg/errors"
	"session-board/pkg/response"
)

// AdminHandler 周期动作 HTTP 处理器
type AdminHandler struct {
	cycleSvc service.CycleService
}

// NewAdminHandler 创建 AdminHandler
func NewAdminHandler(cycleSvc service.CycleService) *AdminHandler {
	return &AdminHandler{cycleSvc: cycleSvc}
}

// RunAction 手动触发周期动作
// POST /api/v1/admin/actions
func (h *AdminHandler) RunAction(c *gin.Context) {
	var req dto.RunActionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, 10001, "参数校验失败")
		return
	}
	date, ok := parseDate(c, req.Date)
	if !ok {
		return
	}

	callerID, ok := MustGetParticipantID(c)
	if !ok {
		return
	}

	result, err := h.cycleSvc.Execute(c.Request.Context(), req.Action, date, &callerID)
	if err != nil {
		h.handleCycleError(c, err)
		return
	}

	response.OK(c, result)
}

// ListRuns 周期动作运行记录
// GET /api/v1/admin/runs?action=assign
func (h *AdminHandler) ListRuns(c *gin.Context) {
	var req dto.RunListRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		response.BadRequest(c, 10001, "参数校验失败")
		return
	}

	list, total, err := h.cycleSvc.ListRuns(c.Request.Context(), &req)
	if err != nil {
		response.InternalError(c)
		return
	}

	response.OKPage(c, list, total, req.GetPage(), req.GetPageSize())
}

func (h *AdminHandler) handleCycleError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrUnknownAction):
		response.BadRequest(c, 15001, "未知的周期动作")
	case errors.Is(err, pkgerrors.ErrLockNotAcquired):
		response.Conflict(c, 15002, "窗口正被其他动作占用，请稍后再试")
	default:
		response.InternalError(c)
	}
}
