package middleware

import (
	"time"

	"github.com/gin-gonic/gin"

	"session-board/pkg/metrics"
)

// Metrics 请求指标中间件，按路由模板而非原始路径聚合
func Metrics(m *metrics.Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		m.ObserveHTTP(c.Request.Method, route, c.Writer.Status(), time.Since(start))
	}
}
