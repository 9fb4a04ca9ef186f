package handler

import (
	"errors"

	"github.com/gin-gonic/gin"

	"session-board/internal/service"
	"session-board/pkg/response"
)

const (
	contentTypeXLSX = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	contentTypeICS  = "text/calendar; charset=utf-8"
)

// ExportHandler 导出模块 HTTP 处理器
type ExportHandler struct {
	exportSvc service.ExportService
}

// NewExportHandler 创建 ExportHandler
func NewExportHandler(exportSvc service.ExportService) *ExportHandler {
	return &ExportHandler{exportSvc: exportSvc}
}

// ExportWeek 导出待分配周名册
// GET /api/v1/admin/export?date=YYYY-MM-DD
func (h *ExportHandler) ExportWeek(c *gin.Context) {
	date, ok := BindDate(c)
	if !ok {
		return
	}

	buf, filename, err := h.exportSvc.ExportWeek(c.Request.Context(), date)
	if err != nil {
		h.handleExportError(c, err)
		return
	}

	response.Attachment(c, filename, contentTypeXLSX, buf.Bytes())
}

// CalendarFeed 我的日历订阅
// GET /api/v1/assignments/me.ics
func (h *ExportHandler) CalendarFeed(c *gin.Context) {
	participantID, ok := MustGetParticipantID(c)
	if !ok {
		return
	}

	feed, err := h.exportSvc.CalendarFeed(c.Request.Context(), participantID)
	if err != nil {
		h.handleExportError(c, err)
		return
	}

	response.Attachment(c, "sessions.ics", contentTypeICS, []byte(feed))
}

func (h *ExportHandler) handleExportError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrExportNoAssignments):
		response.NotFound(c, 16101, "该周暂无分配")
	case errors.Is(err, service.ErrExportGenerateFail):
		response.InternalError(c)
	default:
		response.InternalError(c)
	}
}
