package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"session-board/config"
	"session-board/internal/dto"
	"session-board/internal/service"
)

// Runner 执行一次周期动作；CycleService 满足该接口
type Runner interface {
	Execute(ctx context.Context, action string, date time.Time, triggeredBy *string) (*dto.ActionResult, error)
}

// Scheduler 进程内定时任务：周结算与分配、发布、过期清理
type Scheduler struct {
	cron    *cron.Cron
	runner  Runner
	timeout time.Duration
	logger  *zap.Logger
}

// New 按配置注册定时任务；cron 表达式无效时返回错误
func New(cfg *config.ScheduleConfig, runner Runner, logger *zap.Logger) (*Scheduler, error) {
	cl := cronLogger{logger: logger}
	s := &Scheduler{
		cron: cron.New(
			cron.WithLocation(cfg.MustLocation()),
			cron.WithLogger(cl),
			cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
		),
		runner:  runner,
		timeout: cfg.LockTTL,
		logger:  logger,
	}
	if s.timeout <= 0 {
		s.timeout = 10 * time.Minute
	}

	jobs := []struct {
		name string
		spec string
		fn   func()
	}{
		{"assignment", cfg.AssignmentCron, s.assignmentJob},
		{"release", cfg.ReleaseCron, s.releaseJob},
		{"retention", cfg.RetentionCron, s.retentionJob},
	}
	for _, j := range jobs {
		if j.spec == "" {
			continue
		}
		if _, err := s.cron.AddFunc(j.spec, j.fn); err != nil {
			return nil, fmt.Errorf("注册定时任务 %s 失败: %w", j.name, err)
		}
		logger.Info("定时任务已注册", zap.String("job", j.name), zap.String("spec", j.spec))
	}

	return s, nil
}

// Start 启动调度（非阻塞）
func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop 停止调度，返回的 context 在运行中的任务结束后关闭
func (s *Scheduler) Stop() context.Context {
	return s.cron.Stop()
}

// assignmentJob 先结算本周，再分配下周并排房间
// 结算失败不阻塞分配
func (s *Scheduler) assignmentJob() {
	s.execute(service.ActionKarma)
	s.execute(service.ActionAssign)
}

func (s *Scheduler) releaseJob() {
	s.execute(service.ActionRelease)
}

func (s *Scheduler) retentionJob() {
	s.execute(service.ActionPurge)
}

func (s *Scheduler) execute(action string) {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	start := time.Now()
	if _, err := s.runner.Execute(ctx, action, time.Time{}, nil); err != nil {
		s.logger.Error("定时任务执行失败", zap.String("action", action), zap.Error(err))
		return
	}
	s.logger.Info("定时任务执行完成", zap.String("action", action), zap.Duration("duration", time.Since(start)))
}

// cronLogger 把 cron 的日志接口桥接到 zap
type cronLogger struct {
	logger *zap.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Sugar().Debugw(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Sugar().Errorw(msg, append(keysAndValues, "error", err)...)
}
