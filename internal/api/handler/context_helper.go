package handler

import (
	"time"

	"github.com/gin-gonic/gin"

	"session-board/internal/dto"
	"session-board/pkg/response"
)

// MustGetParticipantID 从 Gin 上下文中安全提取 participant_id。
// 如果 JWT 中间件未正确注入 participant_id，返回 false 并写入 401 响应。
// 调用方应在 ok=false 时直接 return。
func MustGetParticipantID(c *gin.Context) (string, bool) {
	v, exists := c.Get("participant_id")
	if !exists {
		response.Unauthorized(c, 10002, "未认证")
		return "", false
	}
	s, ok := v.(string)
	if !ok || s == "" {
		response.Unauthorized(c, 10002, "未认证")
		return "", false
	}
	return s, true
}

// MustGetRole 从 Gin 上下文中安全提取 role。
func MustGetRole(c *gin.Context) (string, bool) {
	v, exists := c.Get("role")
	if !exists {
		response.Unauthorized(c, 10002, "未认证")
		return "", false
	}
	s, ok := v.(string)
	if !ok || s == "" {
		response.Unauthorized(c, 10002, "未认证")
		return "", false
	}
	return s, true
}

// BindDate 解析 ?date=YYYY-MM-DD；缺省返回零值，由 Service 层视为今天
func BindDate(c *gin.Context) (time.Time, bool) {
	var q dto.DateQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		response.BadRequest(c, 10001, "日期格式错误，应为 YYYY-MM-DD")
		return time.Time{}, false
	}
	return parseDate(c, q.Date)
}

func parseDate(c *gin.Context, s string) (time.Time, bool) {
	if s == "" {
		return time.Time{}, true
	}
	d, err := time.Parse("2006-01-02", s)
	if err != nil {
		response.BadRequest(c, 10001, "日期格式错误，应为 YYYY-MM-DD")
		return time.Time{}, false
	}
	return d, true
}
