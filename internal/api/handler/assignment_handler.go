package handler

import (
	"errors"

	"github.com/gin-gonic/gin"

	"session-board/internal/dto"
	"session-board/internal/service"
	pkgerrors "session-board/pkg/errors"
	"session-board/pkg/response"
)

// AssignmentHandler 分配模块 HTTP 处理器
type AssignmentHandler struct {
	assignmentSvc service.AssignmentService
}

// NewAssignmentHandler 创建 AssignmentHandler
func NewAssignmentHandler(assignmentSvc service.AssignmentService) *AssignmentHandler {
	return &AssignmentHandler{assignmentSvc: assignmentSvc}
}

// ListWeek 待分配周的全部分配（管理员 / 记录员）
// GET /api/v1/assignments?date=YYYY-MM-DD
func (h *AssignmentHandler) ListWeek(c *gin.Context) {
	date, ok := BindDate(c)
	if !ok {
		return
	}

	list, err := h.assignmentSvc.ListWeek(c.Request.Context(), date)
	if err != nil {
		response.InternalError(c)
		return
	}

	response.OK(c, gin.H{"list": list})
}

// ListMine 我的已发布分配
// GET /api/v1/assignments/me?date=YYYY-MM-DD
func (h *AssignmentHandler) ListMine(c *gin.Context) {
	participantID, ok := MustGetParticipantID(c)
	if !ok {
		return
	}
	date, ok := BindDate(c)
	if !ok {
		return
	}

	list, err := h.assignmentSvc.ListMine(c.Request.Context(), participantID, date)
	if err != nil {
		response.InternalError(c)
		return
	}

	response.OK(c, gin.H{"list": list})
}

// UpdateAppeared 修正出席情况
// PUT /api/v1/assignments/:id/appeared
func (h *AssignmentHandler) UpdateAppeared(c *gin.Context) {
	var req dto.UpdateAppearedRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, 10001, "参数校验失败")
		return
	}

	if err := h.assignmentSvc.UpdateAppeared(c.Request.Context(), c.Param("id"), *req.Appeared); err != nil {
		h.handleAssignmentError(c, err)
		return
	}

	response.OK(c, nil)
}

// Move 改挂分配（管理员）
// PATCH /api/v1/assignments/:id/move
func (h *AssignmentHandler) Move(c *gin.Context) {
	var req dto.MoveAssignmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, 10001, "参数校验失败")
		return
	}

	resp, err := h.assignmentSvc.Move(c.Request.Context(), c.Param("id"), req.SessionID)
	if err != nil {
		h.handleAssignmentError(c, err)
		return
	}

	response.OK(c, resp)
}

// Withdraw 退出分配
// DELETE /api/v1/assignments/:id
func (h *AssignmentHandler) Withdraw(c *gin.Context) {
	callerID, ok := MustGetParticipantID(c)
	if !ok {
		return
	}
	role, ok := MustGetRole(c)
	if !ok {
		return
	}

	resp, err := h.assignmentSvc.Withdraw(c.Request.Context(), callerID, role, c.Param("id"))
	if err != nil {
		h.handleAssignmentError(c, err)
		return
	}

	response.OK(c, resp)
}

func (h *AssignmentHandler) handleAssignmentError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrAssignmentNotFound):
		response.NotFound(c, 14001, "分配不存在")
	case errors.Is(err, service.ErrNotAssignmentOwner):
		response.Forbidden(c, 14002, "只能操作自己的分配")
	case errors.Is(err, service.ErrSessionNotFound):
		response.NotFound(c, 14003, "场次不存在")
	case errors.Is(err, service.ErrSessionFull):
		response.Conflict(c, 14004, "目标场次已满")
	case errors.Is(err, service.ErrMoveToWaitingList):
		response.BadRequest(c, 14005, "不能改挂到候补场次")
	case errors.Is(err, service.ErrAlreadyAssigned):
		response.Conflict(c, 14006, "该参与者已在目标场次中")
	case errors.Is(err, service.ErrParticipantNotFound):
		response.NotFound(c, 11001, "参与者不存在")
	case errors.Is(err, pkgerrors.ErrLockNotAcquired):
		response.Conflict(c, 15002, "窗口正被其他动作占用，请稍后再试")
	default:
		response.InternalError(c)
	}
}
