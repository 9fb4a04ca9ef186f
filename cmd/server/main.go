package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	flag "github.com/spf13/pflag"
	"go.uber.org/zap"

	"session-board/config"
	"session-board/internal/api/handler"
	"session-board/internal/api/router"
	"session-board/internal/repository"
	"session-board/internal/scheduler"
	"session-board/internal/service"
	"session-board/pkg/database"
	"session-board/pkg/jwt"
	applogger "session-board/pkg/logger"
	"session-board/pkg/metrics"
	"session-board/pkg/redis"
)

func main() {
	configPath := flag.StringP("config", "c", "", "配置文件路径（默认查找 ./config/config.yaml）")
	runAction := flag.String("run", "", "执行一次周期动作后退出: assign|rooms|reclaim|karma|release|reset|purge")
	runDate := flag.String("date", "", "动作基准日期 YYYY-MM-DD，默认今天")
	flag.Parse()

	// 1. 加载配置
	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "加载配置失败: %v\n", err)
		os.Exit(1)
	}

	// 2. 初始化日志
	logger, err := applogger.NewLogger(&cfg.Log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "初始化日志失败: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("应用启动中...",
		zap.Int("port", cfg.Server.Port),
		zap.String("log_level", cfg.Log.Level),
		zap.String("location", cfg.Schedule.Location),
	)

	// 3. 连接数据库
	db, err := database.NewDB(&cfg.Database, cfg.Log.Level, logger)
	if err != nil {
		logger.Fatal("数据库连接失败", zap.Error(err))
	}
	logger.Info("数据库连接成功")

	// 3.1 执行数据库迁移
	sqlDB, err := db.DB()
	if err != nil {
		logger.Fatal("获取底层 sql.DB 失败", zap.Error(err))
	}
	if err := database.RunMigrations(sqlDB, logger); err != nil {
		logger.Fatal("数据库迁移失败", zap.Error(err))
	}

	// 4. 连接 Redis（可选：连接失败时降级为进程内锁与限流）
	var rdb *redis.Client
	if cfg.Redis.Addr != "" {
		rdb, err = redis.NewClient(&cfg.Redis, logger)
		if err != nil {
			logger.Warn("Redis 连接失败，窗口锁退化为进程内锁", zap.Error(err))
			rdb = nil
		}
	}

	// 5. 初始化 JWT 管理器与指标
	jwtMgr := jwt.NewManager(&cfg.Auth)
	metricsMgr := metrics.NewManager()

	// 6. 依赖注入: Repository → Service → Handler
	deps := service.Deps{Metrics: metricsMgr}
	if rdb != nil {
		deps.Locker = rdb
	}
	repo := repository.NewRepository(db)
	svc := service.NewService(cfg, repo, deps, logger)

	// 6.1 单次执行模式
	if *runAction != "" {
		code := runOnce(svc.Cycle, *runAction, *runDate, logger)
		closeResources(sqlDB, rdb)
		logger.Sync()
		os.Exit(code)
	}

	h := handler.NewHandler(svc)

	// 7. 初始化路由
	engine := router.Setup(cfg, h, jwtMgr, rdb, metricsMgr, logger)

	// 8. 启动定时任务
	var sched *scheduler.Scheduler
	if cfg.Feature.SchedulerEnabled {
		sched, err = scheduler.New(&cfg.Schedule, svc.Cycle, logger.Named("scheduler"))
		if err != nil {
			logger.Fatal("定时任务初始化失败", zap.Error(err))
		}
		sched.Start()
	}

	// 9. 启动 HTTP 服务器（优雅关闭）
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      engine,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("HTTP 服务器已启动", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("HTTP 服务器异常", zap.Error(err))
		}
	}()

	// 10. 监听系统信号，优雅关闭
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit

	logger.Info("收到关闭信号，开始优雅关闭...", zap.String("signal", sig.String()))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("服务器关闭异常", zap.Error(err))
	}

	// 等待运行中的定时任务结束
	if sched != nil {
		select {
		case <-sched.Stop().Done():
		case <-ctx.Done():
			logger.Warn("定时任务未在关闭超时内结束")
		}
	}

	closeResources(sqlDB, rdb)

	logger.Info("服务器已关闭")
}

// runOnce 执行一次周期动作，返回进程退出码
func runOnce(runner service.CycleService, action, date string, logger *zap.Logger) int {
	var day time.Time
	if date != "" {
		d, err := time.Parse("2006-01-02", date)
		if err != nil {
			logger.Error("日期格式错误，应为 YYYY-MM-DD", zap.String("date", date))
			return 2
		}
		day = d
	}

	result, err := runner.Execute(context.Background(), action, day, nil)
	if err != nil {
		logger.Error("周期动作执行失败", zap.String("action", action), zap.Error(err))
		return 1
	}

	out, _ := json.MarshalIndent(result, "", "  ")
	fmt.Println(string(out))
	return 0
}

func closeResources(sqlDB interface{ Close() error }, rdb *redis.Client) {
	if sqlDB != nil {
		sqlDB.Close()
	}
	if rdb != nil {
		rdb.Close()
	}
}
