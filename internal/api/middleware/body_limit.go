package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"session-board/pkg/response"
)

const defaultMaxBodyBytes = 1 << 20

// BodyLimit 请求体大小限制中间件
// 声明的 Content-Length 超限时直接返回 413；未声明长度的请求体在读取时截断，
// 超限后 JSON 绑定失败，由 Handler 返回 400
func BodyLimit(maxBytes int64) gin.HandlerFunc {
	if maxBytes <= 0 {
		maxBytes = defaultMaxBodyBytes
	}

	return func(c *gin.Context) {
		if c.Request.ContentLength > maxBytes {
			response.Error(c, http.StatusRequestEntityTooLarge, 10005, "请求体过大")
			c.Abort()
			return
		}
		if c.Request.Body != nil && c.Request.Body != http.NoBody {
			c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		}

		c.Next()
	}
}
