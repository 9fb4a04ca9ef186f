package service

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"session-board/config"
	"session-board/internal/allocation"
	"session-board/internal/dto"
	"session-board/internal/model"
	"session-board/internal/repository"
	"session-board/pkg/calendar"
	pkgerrors "session-board/pkg/errors"
	"session-board/pkg/metrics"
)

// AllocationService 分配业务接口
type AllocationService interface {
	// RunAllocationCycle 为 date 所在的待分配周生成分配（五轮）
	RunAllocationCycle(ctx context.Context, date time.Time) (*dto.AllocationSummary, error)
	// RunRoomAllocation 为待分配周的普通场次分配房间
	RunRoomAllocation(ctx context.Context, date time.Time) (*dto.RoomSummary, error)
	// ReclaimFromWaitingList 把候补晋升到待分配周中空出的位置
	ReclaimFromWaitingList(ctx context.Context, date time.Time) (*dto.ReclaimSummary, error)
	// ReclaimWindow 同上，直接指定窗口
	ReclaimWindow(ctx context.Context, window calendar.Window) (*dto.ReclaimSummary, error)
}

type allocationService struct {
	repo    *repository.Repository
	engine  *allocation.Engine
	cfg     *config.AllocationConfig
	metrics *metrics.Manager
	logger  *zap.Logger
}

// NewAllocationService 创建 AllocationService 实例
func NewAllocationService(
	repo *repository.Repository,
	engine *allocation.Engine,
	cfg *config.AllocationConfig,
	m *metrics.Manager,
	logger *zap.Logger,
) AllocationService {
	return &allocationService{repo: repo, engine: engine, cfg: cfg, metrics: m, logger: logger}
}

// ════════════════════════════════════════════════════════════
// RunAllocationCycle — 五轮贪心分配
// ════════════════════════════════════════════════════════════

func (s *allocationService) RunAllocationCycle(ctx context.Context, date time.Time) (*dto.AllocationSummary, error) {
	window := calendar.UpcomingWeek(date)

	// ── 阶段1: 确保本窗口的候补场次存在 ──
	waiting, err := s.ensureWaitingList(ctx, window)
	if err != nil {
		return nil, err
	}

	// ── 阶段2: 读取快照 ──
	snap, err := s.loadSnapshot(ctx, window)
	if err != nil {
		return nil, err
	}
	snap.WaitingListID = waiting.SessionID
	if !containsSession(snap.Sessions, waiting.SessionID) {
		snap.Sessions = append(snap.Sessions, toEngineSession(waiting))
	}

	// 本月报名数
	ids := make([]string, 0, len(snap.Participants))
	for _, p := range snap.Participants {
		ids = append(ids, p.ID)
	}
	month := calendar.ThisMonth(date)
	counts, err := s.repo.Signup.CountByParticipants(ctx, ids, month.Start, month.End)
	if err != nil {
		s.logger.Error("统计本月报名数失败", zap.Error(err))
		return nil, err
	}
	for i := range snap.Participants {
		snap.Participants[i].MonthlySignups = counts[snap.Participants[i].ID]
	}

	// ── 阶段3: 计算 ──
	result := s.engine.Allocate(snap)

	// ── 阶段4: 持久化 ──
	assignments := make([]model.Assignment, 0, len(result.Placements)+len(result.WaitingList))
	for _, p := range append(append([]allocation.Placement{}, result.Placements...), result.WaitingList...) {
		assignments = append(assignments, model.Assignment{
			ParticipantID:   p.ParticipantID,
			SessionID:       p.SessionID,
			Appeared:        true,
			PreferencePlace: p.PreferencePlace,
		})
	}
	if err := s.repo.Assignment.BatchCreate(ctx, assignments); err != nil {
		s.logger.Error("保存分配结果失败", zap.Error(err))
		return nil, err
	}

	for round, n := range result.RoundCounts {
		s.metrics.ObservePlacements(round+1, n)
	}
	s.metrics.ObserveUnplaced(len(result.Unplaced))

	s.logger.Info("分配完成",
		zap.String("window", window.String()),
		zap.Int("placed", len(result.Placements)),
		zap.Int("waiting_list", len(result.WaitingList)),
		zap.Int("unplaced", len(result.Unplaced)),
	)

	return &dto.AllocationSummary{
		WindowStart:   window.Start.Format(dateLayout),
		WindowEnd:     window.End.Format(dateLayout),
		WaitingListID: waiting.SessionID,
		Placed:        len(result.Placements),
		WaitingListed: len(result.WaitingList),
		Unplaced:      len(result.Unplaced),
		Rounds:        result.RoundCounts,
	}, nil
}

// ensureWaitingList 复用窗口周三的候补场次；旧日期的候补标记为历史后新建
func (s *allocationService) ensureWaitingList(ctx context.Context, window calendar.Window) (*model.Session, error) {
	target := window.Wednesday()

	current, err := s.repo.Session.GetCurrentWaitingList(ctx)
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		s.logger.Error("查询候补场次失败", zap.Error(err))
		return nil, err
	}
	if current != nil && current.ScheduledDate.Format(dateLayout) == target.Format(dateLayout) {
		s.logger.Debug("复用已有候补场次", zap.String("session_id", current.SessionID))
		return current, nil
	}

	fresh := &model.Session{
		Title:         s.cfg.WaitingListTitle,
		Capacity:      s.cfg.WaitingListCapacity,
		ScheduledDate: target,
		WaitingList:   model.WaitingListCurrent,
	}
	if err := s.repo.Session.ReplaceWaitingList(ctx, current, fresh); err != nil {
		s.logger.Error("创建候补场次失败", zap.Error(err))
		return nil, err
	}

	if current != nil {
		s.logger.Info("旧候补场次已标记为历史",
			zap.String("session_id", current.SessionID),
			zap.String("date", current.ScheduledDate.Format(dateLayout)),
		)
	}
	s.logger.Info("已创建候补场次",
		zap.String("session_id", fresh.SessionID),
		zap.String("date", target.Format(dateLayout)),
	)
	return fresh, nil
}

// loadSnapshot 读取窗口内的场次、报名、分配、参与者与前置场次分配
func (s *allocationService) loadSnapshot(ctx context.Context, window calendar.Window) (allocation.Snapshot, error) {
	snap := allocation.Snapshot{Window: window}

	sessions, err := s.repo.Session.ListByDateRange(ctx, window.Start, window.End)
	if err != nil {
		s.logger.Error("查询场次失败", zap.Error(err))
		return snap, err
	}
	var predecessorIDs []string
	for i := range sessions {
		snap.Sessions = append(snap.Sessions, toEngineSession(&sessions[i]))
		if sessions[i].PredecessorID != nil {
			predecessorIDs = append(predecessorIDs, *sessions[i].PredecessorID)
		}
	}

	signups, err := s.repo.Signup.ListByDateRange(ctx, window.Start, window.End)
	if err != nil {
		s.logger.Error("查询报名失败", zap.Error(err))
		return snap, err
	}
	seen := make(map[string]bool)
	var participantIDs []string
	for _, su := range signups {
		snap.Signups = append(snap.Signups, allocation.Signup{
			ParticipantID: su.ParticipantID,
			SessionID:     su.SessionID,
			Priority:      su.Priority,
		})
		if !seen[su.ParticipantID] {
			seen[su.ParticipantID] = true
			participantIDs = append(participantIDs, su.ParticipantID)
		}
	}

	existing, err := s.repo.Assignment.ListByDateRange(ctx, window.Start, window.End)
	if err != nil {
		s.logger.Error("查询已有分配失败", zap.Error(err))
		return snap, err
	}
	snap.Existing = toEngineAssignments(existing)

	if len(predecessorIDs) > 0 {
		prior, err := s.repo.Assignment.ListBySessionIDs(ctx, predecessorIDs)
		if err != nil {
			s.logger.Error("查询前置场次分配失败", zap.Error(err))
			return snap, err
		}
		snap.Continuity = toEngineAssignments(prior)
	}

	participants, err := s.repo.Participant.ListByIDs(ctx, participantIDs)
	if err != nil {
		s.logger.Error("查询参与者失败", zap.Error(err))
		return snap, err
	}
	for _, p := range participants {
		snap.Participants = append(snap.Participants, allocation.Participant{
			ID:         p.ParticipantID,
			Reputation: p.Reputation,
			Story:      p.StoryParticipant,
		})
	}

	return snap, nil
}

// ════════════════════════════════════════════════════════════
// RunRoomAllocation — 房间分配
// ════════════════════════════════════════════════════════════

func (s *allocationService) RunRoomAllocation(ctx context.Context, date time.Time) (*dto.RoomSummary, error) {
	window := calendar.UpcomingWeek(date)

	sessions, err := s.repo.Session.ListByDateRange(ctx, window.Start, window.End)
	if err != nil {
		s.logger.Error("查询场次失败", zap.Error(err))
		return nil, err
	}

	var requests []allocation.RoomRequest
	for _, sess := range sessions {
		if sess.WaitingList != model.WaitingListNone {
			continue
		}
		req := allocation.RoomRequest{SessionID: sess.SessionID}
		if sess.Creator != nil && sess.Creator.PersonalRoom != nil {
			req.PersonalRoom = *sess.Creator.PersonalRoom
		}
		requests = append(requests, req)
	}

	assigned := s.engine.AssignRooms(requests, s.cfg.Rooms)
	rooms := make(map[string]string, len(assigned))
	for _, a := range assigned {
		rooms[a.SessionID] = a.Room
	}
	if err := s.repo.Session.UpdateRooms(ctx, rooms); err != nil {
		s.logger.Error("保存房间分配失败", zap.Error(err))
		return nil, err
	}

	s.metrics.ObserveRooms(len(assigned))
	if len(assigned) < len(requests) {
		s.logger.Warn("房间不足，部分场次未分配房间",
			zap.Int("sessions", len(requests)),
			zap.Int("assigned", len(assigned)),
		)
	}
	s.logger.Info("房间分配完成", zap.String("window", window.String()), zap.Int("assigned", len(assigned)))

	return &dto.RoomSummary{Sessions: len(requests), Assigned: len(assigned)}, nil
}

// ════════════════════════════════════════════════════════════
// ReclaimFromWaitingList — 候补晋升
// ════════════════════════════════════════════════════════════

func (s *allocationService) ReclaimFromWaitingList(ctx context.Context, date time.Time) (*dto.ReclaimSummary, error) {
	return s.ReclaimWindow(ctx, calendar.UpcomingWeek(date))
}

func (s *allocationService) ReclaimWindow(ctx context.Context, window calendar.Window) (*dto.ReclaimSummary, error) {
	waiting, err := s.repo.Session.GetCurrentWaitingList(ctx)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			s.logger.Info("没有候补场次，跳过晋升")
			return &dto.ReclaimSummary{}, nil
		}
		s.logger.Error("查询候补场次失败", zap.Error(err))
		return nil, err
	}

	snap, err := s.loadSnapshot(ctx, window)
	if err != nil {
		return nil, err
	}
	snap.WaitingListID = waiting.SessionID

	// 候补场次可能不在该窗口内，单独补齐
	if !containsSession(snap.Sessions, waiting.SessionID) {
		snap.Sessions = append(snap.Sessions, toEngineSession(waiting))
		queued, err := s.repo.Assignment.ListBySessionIDs(ctx, []string{waiting.SessionID})
		if err != nil {
			s.logger.Error("查询候补分配失败", zap.Error(err))
			return nil, err
		}
		snap.Existing = append(snap.Existing, toEngineAssignments(queued)...)
	}

	// 候补者的声望
	var ids []string
	for _, a := range snap.Existing {
		if a.SessionID == waiting.SessionID {
			ids = append(ids, a.ParticipantID)
		}
	}
	if len(ids) == 0 {
		s.logger.Info("候补名单为空，跳过晋升")
		return &dto.ReclaimSummary{}, nil
	}
	participants, err := s.repo.Participant.ListByIDs(ctx, ids)
	if err != nil {
		s.logger.Error("查询参与者失败", zap.Error(err))
		return nil, err
	}
	snap.Participants = snap.Participants[:0]
	for _, p := range participants {
		snap.Participants = append(snap.Participants, allocation.Participant{ID: p.ParticipantID, Reputation: p.Reputation})
	}

	promoted := 0
	for _, p := range s.engine.Reclaim(snap) {
		place := p.PreferencePlace
		a := &model.Assignment{
			ParticipantID:   p.ParticipantID,
			SessionID:       p.SessionID,
			Appeared:        true,
			PreferencePlace: &place,
		}
		if err := s.repo.Assignment.Promote(ctx, p.WaitingAssignmentID, a); err != nil {
			if errors.Is(err, pkgerrors.ErrCapacityExceeded) {
				s.logger.Warn("晋升时场次已满，跳过",
					zap.String("participant_id", p.ParticipantID),
					zap.String("session_id", p.SessionID),
				)
				continue
			}
			s.logger.Error("保存候补晋升失败", zap.Error(err))
			return nil, err
		}
		promoted++
	}

	s.metrics.ObservePromotions(promoted)
	s.logger.Info("候补晋升完成", zap.String("window", window.String()), zap.Int("promoted", promoted))
	return &dto.ReclaimSummary{Promoted: promoted}, nil
}

// ── 转换 ──

func toEngineSession(s *model.Session) allocation.Session {
	es := allocation.Session{
		ID:          s.SessionID,
		Capacity:    s.Capacity,
		WaitingList: s.WaitingList != model.WaitingListNone,
	}
	if s.PredecessorID != nil {
		es.PredecessorID = *s.PredecessorID
	}
	return es
}

func toEngineAssignments(list []model.Assignment) []allocation.Assignment {
	out := make([]allocation.Assignment, 0, len(list))
	for _, a := range list {
		out = append(out, allocation.Assignment{ID: a.AssignmentID, ParticipantID: a.ParticipantID, SessionID: a.SessionID})
	}
	return out
}

func containsSession(sessions []allocation.Session, id string) bool {
	for _, s := range sessions {
		if s.ID == id {
			return true
		}
	}
	return false
}
