package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/datatypes"

	"session-board/internal/dto"
	"session-board/internal/model"
	"session-board/internal/repository"
	"session-board/pkg/calendar"
	pkgerrors "session-board/pkg/errors"
	"session-board/pkg/metrics"
)

// 周期动作
const (
	ActionAssign  = "assign"
	ActionRooms   = "rooms"
	ActionReclaim = "reclaim"
	ActionKarma   = "karma"
	ActionRelease = "release"
	ActionReset   = "reset"
	ActionPurge   = "purge"
)

// ErrUnknownAction 未知的周期动作
var ErrUnknownAction = errors.New("未知的周期动作")

// Locker 窗口锁；*redis.Client 满足该接口
type Locker interface {
	AcquireLock(ctx context.Context, key string, ttl time.Duration) (string, bool, error)
	ReleaseLock(ctx context.Context, key, token string) error
}

// CycleService 周期动作执行器：同一窗口同一时刻只允许一个动作
type CycleService interface {
	// Execute 执行一个周期动作并记录运行结果；date 为零值时取今天
	Execute(ctx context.Context, action string, date time.Time, triggeredBy *string) (*dto.ActionResult, error)
	// Reclaim 在指定窗口加锁执行候补晋升
	Reclaim(ctx context.Context, window calendar.Window) (*dto.ReclaimSummary, error)
	ListRuns(ctx context.Context, req *dto.RunListRequest) ([]dto.RunResponse, int64, error)
}

type cycleService struct {
	repo       *repository.Repository
	allocation AllocationService
	karma      KarmaService
	session    SessionService
	assignment AssignmentService
	locker     Locker
	lockTTL    time.Duration
	clock      *clock
	metrics    *metrics.Manager
	logger     *zap.Logger
}

// NewCycleService 创建 CycleService 实例；locker 为 nil 时退化为进程内锁
func NewCycleService(
	repo *repository.Repository,
	alloc AllocationService,
	karma KarmaService,
	session SessionService,
	assignment AssignmentService,
	locker Locker,
	lockTTL time.Duration,
	clk *clock,
	m *metrics.Manager,
	logger *zap.Logger,
) CycleService {
	if locker == nil {
		locker = newLocalLocker()
	}
	if lockTTL <= 0 {
		lockTTL = 10 * time.Minute
	}
	return &cycleService{
		repo:       repo,
		allocation: alloc,
		karma:      karma,
		session:    session,
		assignment: assignment,
		locker:     locker,
		lockTTL:    lockTTL,
		clock:      clk,
		metrics:    m,
		logger:     logger,
	}
}

func (s *cycleService) Execute(ctx context.Context, action string, date time.Time, triggeredBy *string) (*dto.ActionResult, error) {
	date = s.clock.OrToday(date)
	result := &dto.ActionResult{Action: action}

	var (
		window calendar.Window
		key    string
		fn     func(ctx context.Context) (any, error)
	)

	switch action {
	case ActionAssign:
		window = calendar.UpcomingWeek(date)
		fn = func(ctx context.Context) (any, error) {
			alloc, err := s.allocation.RunAllocationCycle(ctx, date)
			if err != nil {
				return nil, err
			}
			result.Allocation = alloc
			rooms, err := s.allocation.RunRoomAllocation(ctx, date)
			if err != nil {
				return nil, err
			}
			result.Rooms = rooms
			return result, nil
		}
	case ActionRooms:
		window = calendar.UpcomingWeek(date)
		fn = func(ctx context.Context) (any, error) {
			rooms, err := s.allocation.RunRoomAllocation(ctx, date)
			result.Rooms = rooms
			return rooms, err
		}
	case ActionReclaim:
		window = calendar.UpcomingWeek(date)
		fn = func(ctx context.Context) (any, error) {
			summary, err := s.allocation.ReclaimWindow(ctx, window)
			result.Reclaim = summary
			return summary, err
		}
	case ActionKarma:
		window = calendar.ThisWeek(date)
		fn = func(ctx context.Context) (any, error) {
			summary, err := s.karma.SettleWeek(ctx, date)
			result.Settlement = summary
			return summary, err
		}
	case ActionRelease, ActionReset:
		window = calendar.UpcomingWeek(date)
		released := action == ActionRelease
		fn = func(ctx context.Context) (any, error) {
			summary, err := s.session.SetReleased(ctx, date, released)
			result.Release = summary
			return summary, err
		}
	case ActionPurge:
		window = calendar.Window{Start: date, End: date}
		key = "cycle:purge"
		fn = func(ctx context.Context) (any, error) {
			summary, err := s.assignment.PurgeExpired(ctx)
			result.Purge = summary
			return summary, err
		}
	default:
		return nil, ErrUnknownAction
	}

	if key == "" {
		key = windowKey(window)
	}
	if err := s.run(ctx, action, window, key, triggeredBy, fn); err != nil {
		return nil, err
	}
	return result, nil
}

func (s *cycleService) Reclaim(ctx context.Context, window calendar.Window) (*dto.ReclaimSummary, error) {
	var summary *dto.ReclaimSummary
	err := s.run(ctx, ActionReclaim, window, windowKey(window), nil, func(ctx context.Context) (any, error) {
		var err error
		summary, err = s.allocation.ReclaimWindow(ctx, window)
		return summary, err
	})
	if err != nil {
		return nil, err
	}
	return summary, nil
}

// run 加锁执行 fn，记录运行结果与耗时
func (s *cycleService) run(
	ctx context.Context,
	action string,
	window calendar.Window,
	key string,
	triggeredBy *string,
	fn func(ctx context.Context) (any, error),
) error {
	token, ok, err := s.locker.AcquireLock(ctx, key, s.lockTTL)
	if err != nil {
		s.logger.Error("获取窗口锁失败", zap.String("key", key), zap.Error(err))
		return err
	}
	if !ok {
		s.logger.Warn("窗口正被其他动作占用", zap.String("key", key), zap.String("action", action))
		return pkgerrors.ErrLockNotAcquired
	}
	defer func() {
		// 请求上下文可能已取消，释放锁不受其影响
		if err := s.locker.ReleaseLock(context.WithoutCancel(ctx), key, token); err != nil {
			s.logger.Warn("释放窗口锁失败", zap.String("key", key), zap.Error(err))
		}
	}()

	started := s.clock.Now()
	summary, runErr := fn(ctx)
	finished := s.clock.Now()
	s.metrics.ObserveAction(action, runErr, finished.Sub(started))

	run := &model.AllocationRun{
		Action:      action,
		WindowStart: window.Start,
		WindowEnd:   window.End,
		Status:      model.RunStatusSuccess,
		TriggeredBy: triggeredBy,
		StartedAt:   started,
		FinishedAt:  finished,
	}
	if runErr != nil {
		run.Status = model.RunStatusFailed
		run.Error = runErr.Error()
	} else if raw, err := json.Marshal(summary); err == nil {
		run.Summary = datatypes.JSON(raw)
	}
	if err := s.repo.AllocationRun.Create(context.WithoutCancel(ctx), run); err != nil {
		s.logger.Warn("记录运行结果失败", zap.String("action", action), zap.Error(err))
	}

	if runErr != nil {
		s.logger.Error("周期动作失败",
			zap.String("action", action),
			zap.String("window", window.String()),
			zap.Error(runErr),
		)
		return runErr
	}
	s.logger.Info("周期动作完成",
		zap.String("action", action),
		zap.String("window", window.String()),
		zap.Duration("elapsed", finished.Sub(started)),
	)
	return nil
}

func (s *cycleService) ListRuns(ctx context.Context, req *dto.RunListRequest) ([]dto.RunResponse, int64, error) {
	runs, total, err := s.repo.AllocationRun.List(ctx, req.Action, req.GetOffset(), req.GetPageSize())
	if err != nil {
		s.logger.Error("查询运行记录失败", zap.Error(err))
		return nil, 0, err
	}
	out := make([]dto.RunResponse, 0, len(runs))
	for _, r := range runs {
		out = append(out, dto.RunResponse{
			ID:          r.RunID,
			Action:      r.Action,
			WindowStart: r.WindowStart.Format(dateLayout),
			WindowEnd:   r.WindowEnd.Format(dateLayout),
			Status:      r.Status,
			Summary:     json.RawMessage(r.Summary),
			Error:       r.Error,
			StartedAt:   r.StartedAt.Format(timeLayout),
			FinishedAt:  r.FinishedAt.Format(timeLayout),
		})
	}
	return out, total, nil
}

func windowKey(w calendar.Window) string {
	return fmt.Sprintf("cycle:window:%s", w.Start.Format(dateLayout))
}

// ── 进程内锁（未配置 Redis 时使用）──

type localLocker struct {
	mu   sync.Mutex
	held map[string]string
}

func newLocalLocker() *localLocker {
	return &localLocker{held: make(map[string]string)}
}

func (l *localLocker) AcquireLock(_ context.Context, key string, _ time.Duration) (string, bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, busy := l.held[key]; busy {
		return "", false, nil
	}
	token := uuid.NewString()
	l.held[key] = token
	return token, true, nil
}

func (l *localLocker) ReleaseLock(_ context.Context, key, token string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.held[key] == token {
		delete(l.held, key)
	}
	return nil
}
