package service

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"session-board/internal/allocation"
	"session-board/internal/dto"
	"session-board/internal/model"
	"session-board/internal/repository"
	"session-board/pkg/calendar"
	"session-board/pkg/metrics"
)

// ── 声望模块业务错误 ──

var (
	ErrParticipantNotFound = errors.New("参与者不存在")
)

// KarmaService 声望业务接口
type KarmaService interface {
	// SettleWeek 结算 date 所在自然周；重复调用会重复计入
	SettleWeek(ctx context.Context, date time.Time) (*dto.SettlementSummary, error)
	// PenalizeLateCancellation 迟到取消的固定扣分，与周结算无关
	PenalizeLateCancellation(ctx context.Context, participantID string, sessionID *string) (*dto.PenaltyResponse, error)
	ListHistory(ctx context.Context, participantID string, req *dto.PaginationRequest) ([]dto.ReputationLogResponse, int64, error)
}

type karmaService struct {
	repo             *repository.Repository
	rules            allocation.Rules
	lateCancellation int
	metrics          *metrics.Manager
	logger           *zap.Logger
}

// NewKarmaService 创建 KarmaService 实例
func NewKarmaService(
	repo *repository.Repository,
	rules allocation.Rules,
	lateCancellation int,
	m *metrics.Manager,
	logger *zap.Logger,
) KarmaService {
	return &karmaService{repo: repo, rules: rules, lateCancellation: lateCancellation, metrics: m, logger: logger}
}

func (s *karmaService) SettleWeek(ctx context.Context, date time.Time) (*dto.SettlementSummary, error) {
	window := calendar.ThisWeek(date)

	sessions, err := s.repo.Session.ListByDateRange(ctx, window.Start, window.End)
	if err != nil {
		s.logger.Error("查询场次失败", zap.Error(err))
		return nil, err
	}
	assignments, err := s.repo.Assignment.ListByDateRange(ctx, window.Start, window.End)
	if err != nil {
		s.logger.Error("查询分配失败", zap.Error(err))
		return nil, err
	}

	settled := make([]allocation.SettledSession, 0, len(sessions))
	for _, sess := range sessions {
		ss := allocation.SettledSession{
			ID:               sess.SessionID,
			WaitingList:      sess.WaitingList != model.WaitingListNone,
			ExcludeFromKarma: sess.ExcludeFromKarma,
		}
		if sess.CreatorID != nil {
			ss.CreatorID = *sess.CreatorID
		}
		settled = append(settled, ss)
	}
	outcomes := make([]allocation.Outcome, 0, len(assignments))
	for _, a := range assignments {
		outcomes = append(outcomes, allocation.Outcome{
			ParticipantID:   a.ParticipantID,
			SessionID:       a.SessionID,
			Appeared:        a.Appeared,
			PreferencePlace: a.PreferencePlace,
		})
	}

	deltas := allocation.Settle(s.rules, settled, outcomes)

	start := window.Start
	logs := make([]model.ReputationLog, 0, len(deltas))
	byReason := make(map[string]int)
	for _, d := range deltas {
		sessionID := d.SessionID
		logs = append(logs, model.ReputationLog{
			ParticipantID: d.ParticipantID,
			SessionID:     &sessionID,
			Delta:         d.Amount,
			Reason:        string(d.Reason),
			WindowStart:   &start,
		})
		byReason[string(d.Reason)]++
		s.metrics.ObserveReputationDelta(string(d.Reason))
	}
	if err := s.repo.Participant.ApplyReputationDeltas(ctx, logs); err != nil {
		s.logger.Error("写入声望变动失败", zap.Error(err))
		return nil, err
	}

	participants := len(allocation.Sum(deltas))
	s.logger.Info("周结算完成",
		zap.String("window", window.String()),
		zap.Int("deltas", len(deltas)),
		zap.Int("participants", participants),
	)

	return &dto.SettlementSummary{
		WindowStart:  window.Start.Format(dateLayout),
		WindowEnd:    window.End.Format(dateLayout),
		Deltas:       len(deltas),
		Participants: participants,
		ByReason:     byReason,
	}, nil
}

func (s *karmaService) PenalizeLateCancellation(ctx context.Context, participantID string, sessionID *string) (*dto.PenaltyResponse, error) {
	p, err := s.repo.Participant.GetByID(ctx, participantID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrParticipantNotFound
		}
		s.logger.Error("查询参与者失败", zap.Error(err))
		return nil, err
	}

	log := model.ReputationLog{
		ParticipantID: participantID,
		SessionID:     sessionID,
		Delta:         s.lateCancellation,
		Reason:        string(allocation.ReasonLateCancellation),
	}
	if err := s.repo.Participant.ApplyReputationDeltas(ctx, []model.ReputationLog{log}); err != nil {
		s.logger.Error("写入迟到取消扣分失败", zap.Error(err))
		return nil, err
	}
	s.metrics.ObserveReputationDelta(log.Reason)

	s.logger.Info("迟到取消扣分",
		zap.String("participant_id", participantID),
		zap.Int("delta", s.lateCancellation),
	)

	return &dto.PenaltyResponse{
		ParticipantID: participantID,
		Delta:         s.lateCancellation,
		Reputation:    p.Reputation + s.lateCancellation,
	}, nil
}

func (s *karmaService) ListHistory(ctx context.Context, participantID string, req *dto.PaginationRequest) ([]dto.ReputationLogResponse, int64, error) {
	if _, err := s.repo.Participant.GetByID(ctx, participantID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, 0, ErrParticipantNotFound
		}
		s.logger.Error("查询参与者失败", zap.Error(err))
		return nil, 0, err
	}

	logs, total, err := s.repo.ReputationLog.ListByParticipant(ctx, participantID, req.GetOffset(), req.GetPageSize())
	if err != nil {
		s.logger.Error("查询声望流水失败", zap.Error(err))
		return nil, 0, err
	}

	list := make([]dto.ReputationLogResponse, 0, len(logs))
	for _, l := range logs {
		item := dto.ReputationLogResponse{
			ID:        l.LogID,
			Delta:     l.Delta,
			Reason:    l.Reason,
			SessionID: l.SessionID,
			CreatedAt: l.CreatedAt.Format(timeLayout),
		}
		if l.WindowStart != nil {
			ws := l.WindowStart.Format(dateLayout)
			item.WindowStart = &ws
		}
		list = append(list, item)
	}
	return list, total, nil
}
