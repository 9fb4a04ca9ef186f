package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// CORS 跨域中间件；allowOrigins 含 "*" 时放行任意来源（不携带凭证）
func CORS(allowOrigins []string) gin.HandlerFunc {
	originsMap := make(map[string]bool, len(allowOrigins))
	wildcard := false
	for _, o := range allowOrigins {
		o = strings.TrimRight(o, "/")
		if o == "*" {
			wildcard = true
			continue
		}
		originsMap[o] = true
	}

	return func(c *gin.Context) {
		origin := c.GetHeader("Origin")

		switch {
		case origin == "":
		case originsMap[origin]:
			c.Header("Access-Control-Allow-Origin", origin)
			c.Header("Access-Control-Allow-Credentials", "true")
			c.Header("Vary", "Origin")
		case wildcard:
			c.Header("Access-Control-Allow-Origin", "*")
		default:
			origin = ""
		}

		if origin != "" {
			c.Header("Access-Control-Allow-Headers", "Content-Type, Authorization, "+headerRequestID)
			c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
			// 导出文件名与请求 ID 需要前端可读
			c.Header("Access-Control-Expose-Headers", "Content-Disposition, "+headerRequestID)
			c.Header("Access-Control-Max-Age", "86400")
		}

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}
