package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"
)

// SecurityHeaders 安全响应头中间件
// 服务只返回 JSON、xlsx 与 iCalendar，不渲染页面，CSP 全部拒绝
func SecurityHeaders() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("X-Frame-Options", "DENY")
		c.Header("X-Content-Type-Options", "nosniff")
		c.Header("Referrer-Policy", "no-referrer")
		c.Header("Content-Security-Policy", "default-src 'none'; frame-ancestors 'none'")
		c.Header("Permissions-Policy", "camera=(), microphone=(), geolocation=()")

		// 名册与个人日历不应被中间代理缓存
		if strings.HasPrefix(c.Request.URL.Path, "/api/") {
			c.Header("Cache-Control", "no-store")
		}

		c.Next()
	}
}
