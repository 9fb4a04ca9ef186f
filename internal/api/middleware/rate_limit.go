package middleware

import (
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"session-board/pkg/redis"
	"session-board/pkg/response"
)

// RateLimit 基于 Redis 滑动窗口的速率限制中间件
// limit: 窗口内允许的最大请求数
// window: 滑动窗口时长
// rdb 为 nil 时使用进程内令牌桶；Redis 出错时降级放行
func RateLimit(rdb *redis.Client, limit int, window time.Duration) gin.HandlerFunc {
	local := newLocalLimiter(limit, window)

	return func(c *gin.Context) {
		key := fmt.Sprintf("rate_limit:%s:%s", c.ClientIP(), c.FullPath())

		allowed := true
		if rdb == nil {
			allowed = local.allow(key)
		} else if ok, err := rdb.CheckRateLimit(c.Request.Context(), key, limit, window); err == nil {
			allowed = ok
		}

		if !allowed {
			response.Error(c, http.StatusTooManyRequests, 10004, "请求过于频繁，请稍后再试")
			c.Abort()
			return
		}

		c.Next()
	}
}

// localLimiter 每个 key 一个令牌桶，容量为 limit，每 window/limit 补充一个
type localLimiter struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	every    rate.Limit
	burst    int
}

func newLocalLimiter(limit int, window time.Duration) *localLimiter {
	if limit <= 0 {
		limit = 1
	}
	return &localLimiter{
		limiters: make(map[string]*rate.Limiter),
		every:    rate.Every(window / time.Duration(limit)),
		burst:    limit,
	}
}

func (l *localLimiter) allow(key string) bool {
	l.mu.Lock()
	lim, ok := l.limiters[key]
	if !ok {
		lim = rate.NewLimiter(l.every, l.burst)
		l.limiters[key] = lim
	}
	l.mu.Unlock()
	return lim.Allow()
}
