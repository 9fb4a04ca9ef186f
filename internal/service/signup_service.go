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
)

// ── 报名模块业务错误 ──

var (
	ErrSignupWaitingList = errors.New("候补场次不接受报名")
	ErrSignupClosed      = errors.New("场次已过期，不能报名")
)

// SignupService 报名业务接口
type SignupService interface {
	// Toggle 切换报名：完全相同的报名会被取消
	Toggle(ctx context.Context, participantID string, req *dto.ToggleSignupRequest) (*dto.ToggleSignupResponse, error)
	// ListMine 参与者在 date 所在待分配周的报名
	ListMine(ctx context.Context, participantID string, date time.Time) ([]dto.SignupResponse, error)
}

type signupService struct {
	repo   *repository.Repository
	clock  *clock
	logger *zap.Logger
}

// NewSignupService 创建 SignupService 实例
func NewSignupService(repo *repository.Repository, clk *clock, logger *zap.Logger) SignupService {
	return &signupService{repo: repo, clock: clk, logger: logger}
}

func (s *signupService) Toggle(ctx context.Context, participantID string, req *dto.ToggleSignupRequest) (*dto.ToggleSignupResponse, error) {
	sess, err := s.repo.Session.GetByID(ctx, req.SessionID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrSessionNotFound
		}
		s.logger.Error("查询场次失败", zap.Error(err))
		return nil, err
	}
	if sess.WaitingList != model.WaitingListNone {
		return nil, ErrSignupWaitingList
	}
	date := s.clock.Date(sess.ScheduledDate)
	if date.Before(s.clock.Today()) {
		return nil, ErrSignupClosed
	}

	signup := &model.Signup{
		ParticipantID: participantID,
		SessionID:     req.SessionID,
		Priority:      req.Priority,
	}
	created, err := s.repo.Signup.Toggle(ctx, signup, date)
	if err != nil {
		s.logger.Error("切换报名失败", zap.Error(err))
		return nil, err
	}

	s.logger.Info("报名已切换",
		zap.String("participant_id", participantID),
		zap.String("session_id", req.SessionID),
		zap.Int("priority", req.Priority),
		zap.Bool("signed_up", created),
	)

	if !created {
		return &dto.ToggleSignupResponse{SignedUp: false}, nil
	}
	return &dto.ToggleSignupResponse{
		SignedUp: true,
		Signup: &dto.SignupResponse{
			ID:           signup.SignupID,
			SessionID:    sess.SessionID,
			SessionTitle: sess.Title,
			Date:         date.Format(dateLayout),
			Priority:     signup.Priority,
		},
	}, nil
}

func (s *signupService) ListMine(ctx context.Context, participantID string, date time.Time) ([]dto.SignupResponse, error) {
	window := calendar.UpcomingWeek(s.clock.OrToday(date))

	signups, err := s.repo.Signup.ListByParticipant(ctx, participantID, window.Start, window.End)
	if err != nil {
		s.logger.Error("查询报名失败", zap.Error(err))
		return nil, err
	}

	out := make([]dto.SignupResponse, 0, len(signups))
	for _, su := range signups {
		item := dto.SignupResponse{ID: su.SignupID, SessionID: su.SessionID, Priority: su.Priority}
		if su.Session != nil {
			item.SessionTitle = su.Session.Title
			item.Date = su.Session.ScheduledDate.Format(dateLayout)
		}
		out = append(out, item)
	}
	return out, nil
}
