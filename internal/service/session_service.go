package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"session-board/internal/dto"
	"session-board/internal/model"
	"session-board/internal/repository"
	"session-board/pkg/calendar"
)

// ── 场次模块业务错误 ──

var (
	ErrSessionNotFound     = errors.New("场次不存在")
	ErrPredecessorNotFound = errors.New("前置场次不存在")
	ErrInvalidDate         = errors.New("日期格式错误，应为 YYYY-MM-DD")
	ErrSessionInPast       = errors.New("不能创建过去日期的场次")
)

// SessionService 场次业务接口
type SessionService interface {
	// Create 创建场次；num_sessions > 1 时按周创建连续场次链
	Create(ctx context.Context, creatorID string, req *dto.CreateSessionRequest) ([]dto.SessionResponse, error)
	GetByID(ctx context.Context, id string) (*dto.SessionResponse, error)
	// ListWeek date 所在待分配周的场次（含已占名额）
	ListWeek(ctx context.Context, date time.Time) (*dto.WeekResponse, error)
	// SetReleased 发布或撤回待分配周的分配结果
	SetReleased(ctx context.Context, date time.Time, released bool) (*dto.ReleaseSummary, error)
}

type sessionService struct {
	repo   *repository.Repository
	clock  *clock
	logger *zap.Logger
}

// NewSessionService 创建 SessionService 实例
func NewSessionService(repo *repository.Repository, clk *clock, logger *zap.Logger) SessionService {
	return &sessionService{repo: repo, clock: clk, logger: logger}
}

func (s *sessionService) Create(ctx context.Context, creatorID string, req *dto.CreateSessionRequest) ([]dto.SessionResponse, error) {
	date, err := calendar.ParseDate(req.Date, s.clock.loc)
	if err != nil {
		return nil, ErrInvalidDate
	}
	if date.Before(s.clock.Today()) {
		return nil, ErrSessionInPast
	}

	if req.PredecessorID != nil {
		if _, err := s.repo.Session.GetByID(ctx, *req.PredecessorID); err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, ErrPredecessorNotFound
			}
			s.logger.Error("查询前置场次失败", zap.Error(err))
			return nil, err
		}
	}

	n := req.NumSessions
	if n <= 0 {
		n = 1
	}

	// 预先生成 ID，链上每一场指向前一场
	creator := creatorID
	sessions := make([]model.Session, 0, n)
	prev := req.PredecessorID
	for i := 0; i < n; i++ {
		id := uuid.NewString()
		sessions = append(sessions, model.Session{
			SessionID:        id,
			Title:            req.Title,
			Description:      req.Description,
			CreatorID:        &creator,
			Capacity:         req.Capacity,
			ScheduledDate:    date.AddDate(0, 0, 7*i),
			PredecessorID:    prev,
			ExcludeFromKarma: req.ExcludeFromKarma,
			StorySession:     req.StorySession,
		})
		idCopy := id
		prev = &idCopy
	}

	if err := s.repo.Session.BatchCreate(ctx, sessions); err != nil {
		s.logger.Error("创建场次失败", zap.Error(err))
		return nil, err
	}

	s.logger.Info("场次已创建",
		zap.String("creator_id", creatorID),
		zap.String("title", req.Title),
		zap.Int("count", n),
	)

	out := make([]dto.SessionResponse, 0, len(sessions))
	for i := range sessions {
		out = append(out, toSessionResponse(&sessions[i], 0))
	}
	return out, nil
}

func (s *sessionService) GetByID(ctx context.Context, id string) (*dto.SessionResponse, error) {
	sess, err := s.repo.Session.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrSessionNotFound
		}
		s.logger.Error("查询场次失败", zap.Error(err))
		return nil, err
	}
	assignments, err := s.repo.Assignment.ListBySessionIDs(ctx, []string{id})
	if err != nil {
		s.logger.Error("查询分配失败", zap.Error(err))
		return nil, err
	}
	resp := toSessionResponse(sess, len(assignments))
	return &resp, nil
}

func (s *sessionService) ListWeek(ctx context.Context, date time.Time) (*dto.WeekResponse, error) {
	window := calendar.UpcomingWeek(s.clock.OrToday(date))

	sessions, err := s.repo.Session.ListByDateRange(ctx, window.Start, window.End)
	if err != nil {
		s.logger.Error("查询场次失败", zap.Error(err))
		return nil, err
	}

	ids := make([]string, 0, len(sessions))
	for _, sess := range sessions {
		ids = append(ids, sess.SessionID)
	}
	assignments, err := s.repo.Assignment.ListBySessionIDs(ctx, ids)
	if err != nil {
		s.logger.Error("查询分配失败", zap.Error(err))
		return nil, err
	}
	taken := make(map[string]int, len(sessions))
	for _, a := range assignments {
		taken[a.SessionID]++
	}

	resp := &dto.WeekResponse{
		Start:    window.Start.Format(dateLayout),
		End:      window.End.Format(dateLayout),
		Sessions: make([]dto.SessionResponse, 0, len(sessions)),
	}
	for i := range sessions {
		resp.Sessions = append(resp.Sessions, toSessionResponse(&sessions[i], taken[sessions[i].SessionID]))
	}
	return resp, nil
}

func (s *sessionService) SetReleased(ctx context.Context, date time.Time, released bool) (*dto.ReleaseSummary, error) {
	window := calendar.UpcomingWeek(s.clock.OrToday(date))

	n, err := s.repo.Session.SetReleased(ctx, window.Start, window.End, released)
	if err != nil {
		s.logger.Error("更新发布状态失败", zap.Error(err))
		return nil, err
	}

	s.logger.Info("分配发布状态已更新",
		zap.String("window", window.String()),
		zap.Bool("released", released),
		zap.Int64("sessions", n),
	)
	return &dto.ReleaseSummary{Released: released, Sessions: n}, nil
}

func toSessionResponse(s *model.Session, taken int) dto.SessionResponse {
	resp := dto.SessionResponse{
		ID:               s.SessionID,
		Title:            s.Title,
		Description:      s.Description,
		CreatorID:        s.CreatorID,
		Capacity:         s.Capacity,
		Taken:            taken,
		Date:             s.ScheduledDate.Format(dateLayout),
		PredecessorID:    s.PredecessorID,
		WaitingList:      s.WaitingList,
		Room:             s.RequestedRoom,
		Released:         s.ReleaseAssignments,
		ExcludeFromKarma: s.ExcludeFromKarma,
		StorySession:     s.StorySession,
	}
	if s.Creator != nil {
		resp.CreatorName = s.Creator.DisplayName
	}
	return resp
}
