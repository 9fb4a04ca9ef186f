package service

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"session-board/internal/dto"
	"session-board/internal/model"
	"session-board/internal/repository"
	"session-board/pkg/calendar"
	pkgerrors "session-board/pkg/errors"
)

// ── 分配模块业务错误 ──

var (
	ErrAssignmentNotFound = errors.New("分配不存在")
	ErrNotAssignmentOwner = errors.New("只能操作自己的分配")
	ErrSessionFull        = errors.New("目标场次已满")
	ErrMoveToWaitingList  = errors.New("不能改挂到候补场次")
	ErrAlreadyAssigned    = errors.New("该参与者已在目标场次中")
)

// Reclaimer 在名额空出后执行候补晋升（由 CycleService 加锁执行）
type Reclaimer interface {
	Reclaim(ctx context.Context, window calendar.Window) (*dto.ReclaimSummary, error)
}

// AssignmentService 分配业务接口
type AssignmentService interface {
	// ListWeek date 所在待分配周的全部分配
	ListWeek(ctx context.Context, date time.Time) ([]dto.AssignmentResponse, error)
	// ListMine 参与者在待分配周已发布的分配
	ListMine(ctx context.Context, participantID string, date time.Time) ([]dto.AssignmentResponse, error)
	UpdateAppeared(ctx context.Context, id string, appeared bool) error
	// Move 管理员改挂分配，校验目标场次容量
	Move(ctx context.Context, id, sessionID string) (*dto.AssignmentResponse, error)
	// Withdraw 退出分配；截止时间内追加迟到取消扣分，随后执行候补晋升
	Withdraw(ctx context.Context, callerID, callerRole, id string) (*dto.WithdrawResponse, error)
	// PurgeExpired 删除超出保留期的分配
	PurgeExpired(ctx context.Context) (*dto.PurgeSummary, error)
	SetReclaimer(r Reclaimer)
}

type assignmentService struct {
	repo      *repository.Repository
	karma     KarmaService
	reclaimer Reclaimer
	clock     *clock
	cutoff    time.Duration
	retention time.Duration
	logger    *zap.Logger
}

// NewAssignmentService 创建 AssignmentService 实例
func NewAssignmentService(
	repo *repository.Repository,
	karma KarmaService,
	clk *clock,
	cutoff, retention time.Duration,
	logger *zap.Logger,
) AssignmentService {
	return &assignmentService{
		repo:      repo,
		karma:     karma,
		clock:     clk,
		cutoff:    cutoff,
		retention: retention,
		logger:    logger,
	}
}

func (s *assignmentService) SetReclaimer(r Reclaimer) {
	s.reclaimer = r
}

func (s *assignmentService) ListWeek(ctx context.Context, date time.Time) ([]dto.AssignmentResponse, error) {
	window := calendar.UpcomingWeek(s.clock.OrToday(date))

	list, err := s.repo.Assignment.ListByDateRange(ctx, window.Start, window.End)
	if err != nil {
		s.logger.Error("查询分配失败", zap.Error(err))
		return nil, err
	}
	out := make([]dto.AssignmentResponse, 0, len(list))
	for i := range list {
		out = append(out, toAssignmentResponse(&list[i]))
	}
	return out, nil
}

func (s *assignmentService) ListMine(ctx context.Context, participantID string, date time.Time) ([]dto.AssignmentResponse, error) {
	window := calendar.UpcomingWeek(s.clock.OrToday(date))

	list, err := s.repo.Assignment.ListByParticipant(ctx, participantID, window.Start, window.End)
	if err != nil {
		s.logger.Error("查询分配失败", zap.Error(err))
		return nil, err
	}
	out := make([]dto.AssignmentResponse, 0, len(list))
	for i := range list {
		// 未发布的分配对参与者不可见
		if list[i].Session == nil || !list[i].Session.ReleaseAssignments {
			continue
		}
		out = append(out, toAssignmentResponse(&list[i]))
	}
	return out, nil
}

func (s *assignmentService) UpdateAppeared(ctx context.Context, id string, appeared bool) error {
	if err := s.repo.Assignment.UpdateAppeared(ctx, id, appeared); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrAssignmentNotFound
		}
		s.logger.Error("更新出席状态失败", zap.Error(err))
		return err
	}
	s.logger.Info("出席状态已修正", zap.String("assignment_id", id), zap.Bool("appeared", appeared))
	return nil
}

func (s *assignmentService) Move(ctx context.Context, id, sessionID string) (*dto.AssignmentResponse, error) {
	a, err := s.getAssignment(ctx, id)
	if err != nil {
		return nil, err
	}

	target, err := s.repo.Session.GetByID(ctx, sessionID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrSessionNotFound
		}
		s.logger.Error("查询场次失败", zap.Error(err))
		return nil, err
	}
	if target.WaitingList != model.WaitingListNone {
		return nil, ErrMoveToWaitingList
	}
	if a.SessionID == sessionID {
		resp := toAssignmentResponse(a)
		return &resp, nil
	}

	holders, err := s.repo.Assignment.ListBySessionIDs(ctx, []string{sessionID})
	if err != nil {
		s.logger.Error("查询分配失败", zap.Error(err))
		return nil, err
	}
	for _, h := range holders {
		if h.ParticipantID == a.ParticipantID {
			return nil, ErrAlreadyAssigned
		}
	}

	if err := s.repo.Assignment.MoveToSession(ctx, id, sessionID); err != nil {
		switch {
		case errors.Is(err, pkgerrors.ErrCapacityExceeded):
			return nil, ErrSessionFull
		case errors.Is(err, gorm.ErrRecordNotFound):
			return nil, ErrAssignmentNotFound
		}
		s.logger.Error("改挂分配失败", zap.Error(err))
		return nil, err
	}

	s.logger.Info("分配已改挂",
		zap.String("assignment_id", id),
		zap.String("from", a.SessionID),
		zap.String("to", sessionID),
	)

	a.SessionID = sessionID
	a.Session = target
	resp := toAssignmentResponse(a)
	return &resp, nil
}

func (s *assignmentService) Withdraw(ctx context.Context, callerID, callerRole, id string) (*dto.WithdrawResponse, error) {
	a, err := s.getAssignment(ctx, id)
	if err != nil {
		return nil, err
	}
	if a.ParticipantID != callerID && callerRole != model.RoleAdmin {
		return nil, ErrNotAssignmentOwner
	}

	if err := s.repo.Assignment.Delete(ctx, id); err != nil {
		s.logger.Error("删除分配失败", zap.Error(err))
		return nil, err
	}

	resp := &dto.WithdrawResponse{}
	if a.Session == nil {
		return resp, nil
	}

	// ── 迟到取消扣分 ──
	date := s.clock.Date(a.Session.ScheduledDate)
	if a.Session.WaitingList == model.WaitingListNone && !s.clock.Now().Before(date.Add(-s.cutoff)) {
		sessionID := a.SessionID
		if _, err := s.karma.PenalizeLateCancellation(ctx, a.ParticipantID, &sessionID); err != nil {
			return nil, err
		}
		resp.Penalized = true
	}

	s.logger.Info("分配已退出",
		zap.String("assignment_id", id),
		zap.String("participant_id", a.ParticipantID),
		zap.Bool("penalized", resp.Penalized),
	)

	// ── 候补晋升 ──
	if s.reclaimer == nil || a.Session.WaitingList != model.WaitingListNone {
		return resp, nil
	}
	summary, err := s.reclaimer.Reclaim(ctx, calendar.ThisWeek(date))
	if err != nil {
		if errors.Is(err, pkgerrors.ErrLockNotAcquired) {
			s.logger.Warn("窗口正被占用，跳过候补晋升", zap.String("session_id", a.SessionID))
			return resp, nil
		}
		return nil, err
	}
	resp.Promoted = summary.Promoted
	return resp, nil
}

func (s *assignmentService) PurgeExpired(ctx context.Context) (*dto.PurgeSummary, error) {
	before := s.clock.Today().Add(-s.retention)

	n, err := s.repo.Assignment.DeleteBefore(ctx, before)
	if err != nil {
		s.logger.Error("清理过期分配失败", zap.Error(err))
		return nil, err
	}
	s.logger.Info("过期分配已清理", zap.String("before", before.Format(dateLayout)), zap.Int64("deleted", n))
	return &dto.PurgeSummary{Before: before.Format(dateLayout), Deleted: n}, nil
}

func (s *assignmentService) getAssignment(ctx context.Context, id string) (*model.Assignment, error) {
	a, err := s.repo.Assignment.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrAssignmentNotFound
		}
		s.logger.Error("查询分配失败", zap.Error(err))
		return nil, err
	}
	return a, nil
}

func toAssignmentResponse(a *model.Assignment) dto.AssignmentResponse {
	resp := dto.AssignmentResponse{
		ID:              a.AssignmentID,
		ParticipantID:   a.ParticipantID,
		SessionID:       a.SessionID,
		Appeared:        a.Appeared,
		PreferencePlace: a.PreferencePlace,
	}
	if a.Session != nil {
		resp.SessionTitle = a.Session.Title
		resp.Date = a.Session.ScheduledDate.Format(dateLayout)
		resp.WaitingList = a.Session.WaitingList != model.WaitingListNone
	}
	if a.Participant != nil {
		resp.ParticipantName = a.Participant.DisplayName
	}
	return resp
}
