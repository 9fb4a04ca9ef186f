package router

import (
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"session-board/config"
	"session-board/internal/api/handler"
	"session-board/internal/api/middleware"
	"session-board/internal/model"
	"session-board/pkg/jwt"
	"session-board/pkg/metrics"
	"session-board/pkg/redis"
)

// Setup 初始化并返回 Gin 路由引擎
// rdb 与 metricsMgr 均可为 nil
func Setup(
	cfg *config.Config,
	h *handler.Handler,
	jwtMgr *jwt.Manager,
	rdb *redis.Client,
	metricsMgr *metrics.Manager,
	logger *zap.Logger,
) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	r := gin.New()

	// ── 全局中间件 ──
	r.Use(gin.Recovery())
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger(logger))
	r.Use(middleware.Metrics(metricsMgr))
	r.Use(middleware.CORS(cfg.Server.CORS.AllowOrigins))
	r.Use(middleware.SecurityHeaders())
	r.Use(middleware.BodyLimit(cfg.Server.MaxBodyBytes))
	if cfg.Server.RateLimit > 0 {
		r.Use(middleware.RateLimit(rdb, cfg.Server.RateLimit, time.Minute))
	}

	// ── 健康检查 ──
	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})
	if metricsMgr != nil {
		r.GET("/metrics", gin.WrapH(metricsMgr.Handler()))
	}

	admin := middleware.RoleAuth(model.RoleAdmin)
	operator := middleware.RoleAuth(model.RoleAdmin, model.RoleOperator)

	// ── API v1 ──
	v1 := r.Group("/api/v1")
	v1.Use(middleware.JWTAuth(jwtMgr, rdb))
	{
		// 参与者模块
		participants := v1.Group("/participants")
		{
			participants.GET("/me", h.Participant.GetMe)
			participants.GET("", admin, h.Participant.ListParticipants)
			participants.GET("/:id", operator, h.Participant.GetParticipant)
			participants.PUT("/:id", admin, h.Participant.UpdateParticipant)
			participants.GET("/:id/reputation-logs", h.Participant.ListReputationLogs) // 本人或记录员 / 管理员（Handler 层鉴权）
		}

		// 场次模块
		sessions := v1.Group("/sessions")
		{
			sessions.GET("", h.Session.ListWeek)
			sessions.GET("/:id", h.Session.GetSession)
			sessions.POST("", h.Session.CreateSession)
		}

		// 报名模块
		signups := v1.Group("/signups")
		{
			signups.POST("", h.Signup.Toggle)
			signups.GET("/me", h.Signup.ListMine)
		}

		// 分配模块
		assignments := v1.Group("/assignments")
		{
			assignments.GET("", operator, h.Assignment.ListWeek)
			assignments.GET("/me", h.Assignment.ListMine)
			assignments.GET("/me.ics", h.Export.CalendarFeed)
			assignments.PUT("/:id/appeared", operator, h.Assignment.UpdateAppeared)
			assignments.PATCH("/:id/move", admin, h.Assignment.Move)
			assignments.DELETE("/:id", h.Assignment.Withdraw) // 本人或管理员（Service 层鉴权）
		}

		// 管理模块
		adminGroup := v1.Group("/admin", admin)
		{
			adminGroup.POST("/actions", h.Admin.RunAction)
			adminGroup.GET("/runs", h.Admin.ListRuns)
			adminGroup.GET("/export", h.Export.ExportWeek)
			adminGroup.POST("/participants/:id/penalty", h.Participant.Penalize)
		}
	}

	return r
}
