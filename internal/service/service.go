package service

import (
	"time"

	"go.uber.org/zap"

	"session-board/config"
	"session-board/internal/allocation"
	"session-board/internal/repository"
	"session-board/pkg/metrics"
)

// Service 所有 Service 的聚合入口
type Service struct {
	Participant ParticipantService
	Session     SessionService
	Signup      SignupService
	Assignment  AssignmentService
	Allocation  AllocationService
	Karma       KarmaService
	Cycle       CycleService
	Export      ExportService
}

// Deps 可选依赖；零值可用（无 Redis 时使用进程内锁，无指标时不记录）
type Deps struct {
	Locker  Locker
	Metrics *metrics.Manager
	Now     func() time.Time
}

// NewService 创建 Service 聚合
func NewService(
	cfg *config.Config,
	repo *repository.Repository,
	deps Deps,
	logger *zap.Logger,
) *Service {
	clk := newClock(cfg.Schedule.MustLocation(), deps.Now)
	engine := allocation.NewEngine(allocation.WithLogger(logger.Named("engine")))

	karma := NewKarmaService(repo, RulesFromConfig(&cfg.Karma), cfg.Karma.LateCancellation, deps.Metrics, logger)
	alloc := NewAllocationService(repo, engine, &cfg.Allocation, deps.Metrics, logger)
	assignment := NewAssignmentService(repo, karma, clk, cfg.Karma.LateCancellationCutoff, cfg.Schedule.Retention, logger)
	session := NewSessionService(repo, clk, logger)
	cycle := NewCycleService(repo, alloc, karma, session, assignment, deps.Locker, cfg.Schedule.LockTTL, clk, deps.Metrics, logger)
	assignment.SetReclaimer(cycle)

	return &Service{
		Participant: NewParticipantService(repo, logger),
		Session:     session,
		Signup:      NewSignupService(repo, clk, logger),
		Assignment:  assignment,
		Allocation:  alloc,
		Karma:       karma,
		Cycle:       cycle,
		Export:      NewExportService(repo, clk, logger),
	}
}

// RulesFromConfig 把配置转换为结算规则
func RulesFromConfig(cfg *config.KarmaConfig) allocation.Rules {
	rules := allocation.DefaultRules()
	rules.CreatorBonus = cfg.CreatorBonus
	rules.NoShowPenalty = cfg.NoShowPenalty
	rules.WaitingListAppeared = cfg.WaitingListAppeared
	rules.WaitingListAbsent = cfg.WaitingListAbsent
	if len(cfg.PreferenceBonus) > 0 {
		rules.PreferenceBonus = append([]int(nil), cfg.PreferenceBonus...)
	}
	return rules
}

// clock 统一“今天”的时区
type clock struct {
	loc *time.Location
	now func() time.Time
}

func newClock(loc *time.Location, now func() time.Time) *clock {
	if loc == nil {
		loc = time.UTC
	}
	if now == nil {
		now = time.Now
	}
	return &clock{loc: loc, now: now}
}

// Now 当前时间（已换算到排班时区）
func (c *clock) Now() time.Time { return c.now().In(c.loc) }

// Today 排班时区的今天 00:00
func (c *clock) Today() time.Time {
	y, m, d := c.Now().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, c.loc)
}

// Date 把数据库读出的日期换算为排班时区的同一天 00:00
func (c *clock) Date(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, c.loc)
}

// OrToday 空日期视为今天
func (c *clock) OrToday(t time.Time) time.Time {
	if t.IsZero() {
		return c.Today()
	}
	return c.Date(t)
}

const (
	dateLayout = "2006-01-02"
	timeLayout = "2006-01-02T15:04:05Z07:00"
)

// [自证通过] internal/service/service.go
