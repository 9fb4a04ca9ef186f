package service

import (
	"context"
	"fmt"
	"sort"
	"time"

	"gorm.io/gorm"

	"session-board/internal/model"
	"session-board/internal/repository"
	pkgerrors "session-board/pkg/errors"
)

func day(t time.Time) string { return t.Format("2006-01-02") }

func inRange(t, start, end time.Time) bool {
	d := day(t)
	return d >= day(start) && d <= day(end)
}

// ── Mock ParticipantRepository ──

type mockParticipantRepo struct {
	participants map[string]*model.Participant
	logs         *mockReputationLogRepo
}

func newMockParticipantRepo(logs *mockReputationLogRepo) *mockParticipantRepo {
	return &mockParticipantRepo{participants: make(map[string]*model.Participant), logs: logs}
}

func (m *mockParticipantRepo) Create(_ context.Context, p *model.Participant) error {
	if p.ParticipantID == "" {
		p.ParticipantID = "p-" + p.DisplayName
	}
	m.participants[p.ParticipantID] = p
	return nil
}

func (m *mockParticipantRepo) GetByID(_ context.Context, id string) (*model.Participant, error) {
	if p, ok := m.participants[id]; ok {
		return p, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockParticipantRepo) List(_ context.Context, offset, limit int) ([]model.Participant, int64, error) {
	var all []model.Participant
	for _, p := range m.participants {
		all = append(all, *p)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].ParticipantID < all[j].ParticipantID })
	total := int64(len(all))
	if offset >= len(all) {
		return nil, total, nil
	}
	end := offset + limit
	if end > len(all) {
		end = len(all)
	}
	return all[offset:end], total, nil
}

func (m *mockParticipantRepo) ListByIDs(_ context.Context, ids []string) ([]model.Participant, error) {
	var result []model.Participant
	for _, id := range ids {
		if p, ok := m.participants[id]; ok {
			result = append(result, *p)
		}
	}
	return result, nil
}

func (m *mockParticipantRepo) UpdateProfile(_ context.Context, p *model.Participant) error {
	if _, ok := m.participants[p.ParticipantID]; !ok {
		return gorm.ErrRecordNotFound
	}
	m.participants[p.ParticipantID] = p
	return nil
}

func (m *mockParticipantRepo) ApplyReputationDeltas(_ context.Context, logs []model.ReputationLog) error {
	for _, l := range logs {
		p, ok := m.participants[l.ParticipantID]
		if !ok {
			return gorm.ErrRecordNotFound
		}
		p.Reputation += l.Delta
		l.LogID = fmt.Sprintf("log-%d", len(m.logs.logs)+1)
		l.CreatedAt = time.Now()
		m.logs.logs = append(m.logs.logs, l)
	}
	return nil
}

// ── Mock ReputationLogRepository ──

type mockReputationLogRepo struct {
	logs []model.ReputationLog
}

func newMockReputationLogRepo() *mockReputationLogRepo {
	return &mockReputationLogRepo{}
}

func (m *mockReputationLogRepo) ListByParticipant(_ context.Context, participantID string, offset, limit int) ([]model.ReputationLog, int64, error) {
	var result []model.ReputationLog
	for i := len(m.logs) - 1; i >= 0; i-- {
		if m.logs[i].ParticipantID == participantID {
			result = append(result, m.logs[i])
		}
	}
	total := int64(len(result))
	if offset >= len(result) {
		return nil, total, nil
	}
	end := offset + limit
	if end > len(result) {
		end = len(result)
	}
	return result[offset:end], total, nil
}

// ── Mock SessionRepository ──

type mockSessionRepo struct {
	sessions     map[string]*model.Session
	participants *mockParticipantRepo
	seq          int
}

func newMockSessionRepo(participants *mockParticipantRepo) *mockSessionRepo {
	return &mockSessionRepo{sessions: make(map[string]*model.Session), participants: participants}
}

func (m *mockSessionRepo) withCreator(s model.Session) model.Session {
	if s.CreatorID != nil {
		if p, ok := m.participants.participants[*s.CreatorID]; ok {
			s.Creator = p
		}
	}
	return s
}

func (m *mockSessionRepo) Create(_ context.Context, s *model.Session) error {
	if s.SessionID == "" {
		m.seq++
		s.SessionID = fmt.Sprintf("sess-%d", m.seq)
	}
	s.Version = 1
	m.sessions[s.SessionID] = s
	return nil
}

func (m *mockSessionRepo) BatchCreate(ctx context.Context, sessions []model.Session) error {
	for i := range sessions {
		s := sessions[i]
		if err := m.Create(ctx, &s); err != nil {
			return err
		}
		sessions[i].SessionID = s.SessionID
	}
	return nil
}

func (m *mockSessionRepo) GetByID(_ context.Context, id string) (*model.Session, error) {
	if s, ok := m.sessions[id]; ok {
		out := m.withCreator(*s)
		return &out, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockSessionRepo) ListByIDs(_ context.Context, ids []string) ([]model.Session, error) {
	var result []model.Session
	for _, id := range ids {
		if s, ok := m.sessions[id]; ok {
			result = append(result, m.withCreator(*s))
		}
	}
	return result, nil
}

func (m *mockSessionRepo) ListByDateRange(_ context.Context, start, end time.Time) ([]model.Session, error) {
	var result []model.Session
	for _, s := range m.sessions {
		if inRange(s.ScheduledDate, start, end) {
			result = append(result, m.withCreator(*s))
		}
	}
	sort.Slice(result, func(i, j int) bool {
		if !result[i].ScheduledDate.Equal(result[j].ScheduledDate) {
			return result[i].ScheduledDate.Before(result[j].ScheduledDate)
		}
		return result[i].SessionID < result[j].SessionID
	})
	return result, nil
}

func (m *mockSessionRepo) Update(_ context.Context, s *model.Session) error {
	cur, ok := m.sessions[s.SessionID]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	if cur.Version != s.Version {
		return pkgerrors.ErrOptimisticLock
	}
	s.Version++
	m.sessions[s.SessionID] = s
	return nil
}

func (m *mockSessionRepo) GetCurrentWaitingList(_ context.Context) (*model.Session, error) {
	for _, s := range m.sessions {
		if s.WaitingList == model.WaitingListCurrent {
			out := *s
			return &out, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockSessionRepo) ReplaceWaitingList(ctx context.Context, stale *model.Session, fresh *model.Session) error {
	if stale != nil {
		if s, ok := m.sessions[stale.SessionID]; ok {
			s.WaitingList = model.WaitingListFormer
		}
	}
	return m.Create(ctx, fresh)
}

func (m *mockSessionRepo) UpdateRooms(_ context.Context, rooms map[string]string) error {
	for id, room := range rooms {
		if s, ok := m.sessions[id]; ok {
			r := room
			s.RequestedRoom = &r
		}
	}
	return nil
}

func (m *mockSessionRepo) SetReleased(_ context.Context, start, end time.Time, released bool) (int64, error) {
	var n int64
	for _, s := range m.sessions {
		if inRange(s.ScheduledDate, start, end) {
			s.ReleaseAssignments = released
			n++
		}
	}
	return n, nil
}

func (m *mockSessionRepo) currentWaitingLists() []*model.Session {
	var result []*model.Session
	for _, s := range m.sessions {
		if s.WaitingList == model.WaitingListCurrent {
			result = append(result, s)
		}
	}
	return result
}

// ── Mock SignupRepository ──

type mockSignupRepo struct {
	signups  map[string]*model.Signup
	sessions *mockSessionRepo
	seq      int
}

func newMockSignupRepo(sessions *mockSessionRepo) *mockSignupRepo {
	return &mockSignupRepo{signups: make(map[string]*model.Signup), sessions: sessions}
}

func (m *mockSignupRepo) add(su *model.Signup) {
	if su.SignupID == "" {
		m.seq++
		su.SignupID = fmt.Sprintf("su-%d", m.seq)
	}
	m.signups[su.SignupID] = su
}

func (m *mockSignupRepo) sessionDate(id string) (time.Time, bool) {
	s, ok := m.sessions.sessions[id]
	if !ok {
		return time.Time{}, false
	}
	return s.ScheduledDate, true
}

func (m *mockSignupRepo) ListByDateRange(_ context.Context, start, end time.Time) ([]model.Signup, error) {
	var result []model.Signup
	for _, su := range m.signups {
		if d, ok := m.sessionDate(su.SessionID); ok && inRange(d, start, end) {
			result = append(result, *su)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].SignupID < result[j].SignupID })
	return result, nil
}

func (m *mockSignupRepo) ListByParticipant(_ context.Context, participantID string, start, end time.Time) ([]model.Signup, error) {
	var result []model.Signup
	for _, su := range m.signups {
		if su.ParticipantID != participantID {
			continue
		}
		if d, ok := m.sessionDate(su.SessionID); ok && inRange(d, start, end) {
			item := *su
			item.Session = m.sessions.sessions[su.SessionID]
			result = append(result, item)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Priority < result[j].Priority })
	return result, nil
}

func (m *mockSignupRepo) CountByParticipants(_ context.Context, participantIDs []string, start, end time.Time) (map[string]int, error) {
	want := make(map[string]bool, len(participantIDs))
	for _, id := range participantIDs {
		want[id] = true
	}
	counts := make(map[string]int)
	for _, su := range m.signups {
		if !want[su.ParticipantID] {
			continue
		}
		if d, ok := m.sessionDate(su.SessionID); ok && inRange(d, start, end) {
			counts[su.ParticipantID]++
		}
	}
	return counts, nil
}

func (m *mockSignupRepo) Toggle(_ context.Context, signup *model.Signup, date time.Time) (bool, error) {
	for id, su := range m.signups {
		if su.ParticipantID == signup.ParticipantID && su.SessionID == signup.SessionID && su.Priority == signup.Priority {
			delete(m.signups, id)
			return false, nil
		}
	}
	for id, su := range m.signups {
		if su.ParticipantID != signup.ParticipantID {
			continue
		}
		d, _ := m.sessionDate(su.SessionID)
		if su.SessionID == signup.SessionID || (su.Priority == signup.Priority && day(d) == day(date)) {
			delete(m.signups, id)
		}
	}
	m.add(signup)
	return true, nil
}

// ── Mock AssignmentRepository ──

type mockAssignmentRepo struct {
	assignments  map[string]*model.Assignment
	sessions     *mockSessionRepo
	participants *mockParticipantRepo
	seq          int
	batchErr     error
}

func newMockAssignmentRepo(sessions *mockSessionRepo, participants *mockParticipantRepo) *mockAssignmentRepo {
	return &mockAssignmentRepo{
		assignments:  make(map[string]*model.Assignment),
		sessions:     sessions,
		participants: participants,
	}
}

func (m *mockAssignmentRepo) add(a *model.Assignment) {
	if a.AssignmentID == "" {
		m.seq++
		a.AssignmentID = fmt.Sprintf("asg-%d", m.seq)
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now()
	}
	m.assignments[a.AssignmentID] = a
}

func (m *mockAssignmentRepo) hydrate(a *model.Assignment) model.Assignment {
	out := *a
	out.Session = m.sessions.sessions[a.SessionID]
	out.Participant = m.participants.participants[a.ParticipantID]
	return out
}

func (m *mockAssignmentRepo) sorted(filter func(a *model.Assignment) bool) []model.Assignment {
	var result []model.Assignment
	for _, a := range m.assignments {
		if filter(a) {
			result = append(result, m.hydrate(a))
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].AssignmentID < result[j].AssignmentID })
	return result
}

func (m *mockAssignmentRepo) ListByDateRange(_ context.Context, start, end time.Time) ([]model.Assignment, error) {
	return m.sorted(func(a *model.Assignment) bool {
		s, ok := m.sessions.sessions[a.SessionID]
		return ok && inRange(s.ScheduledDate, start, end)
	}), nil
}

func (m *mockAssignmentRepo) ListBySessionIDs(_ context.Context, sessionIDs []string) ([]model.Assignment, error) {
	want := make(map[string]bool, len(sessionIDs))
	for _, id := range sessionIDs {
		want[id] = true
	}
	return m.sorted(func(a *model.Assignment) bool { return want[a.SessionID] }), nil
}

func (m *mockAssignmentRepo) ListByParticipant(_ context.Context, participantID string, start, end time.Time) ([]model.Assignment, error) {
	return m.sorted(func(a *model.Assignment) bool {
		s, ok := m.sessions.sessions[a.SessionID]
		return ok && a.ParticipantID == participantID && inRange(s.ScheduledDate, start, end)
	}), nil
}

func (m *mockAssignmentRepo) GetByID(_ context.Context, id string) (*model.Assignment, error) {
	if a, ok := m.assignments[id]; ok {
		out := m.hydrate(a)
		return &out, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockAssignmentRepo) BatchCreate(_ context.Context, assignments []model.Assignment) error {
	if m.batchErr != nil {
		return m.batchErr
	}
	for i := range assignments {
		a := assignments[i]
		m.add(&a)
		assignments[i].AssignmentID = a.AssignmentID
	}
	return nil
}

func (m *mockAssignmentRepo) Delete(_ context.Context, id string) error {
	delete(m.assignments, id)
	return nil
}

func (m *mockAssignmentRepo) UpdateAppeared(_ context.Context, id string, appeared bool) error {
	a, ok := m.assignments[id]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	a.Appeared = appeared
	return nil
}

func (m *mockAssignmentRepo) hasRoom(sessionID string) error {
	s, ok := m.sessions.sessions[sessionID]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	taken := 0
	for _, a := range m.assignments {
		if a.SessionID == sessionID {
			taken++
		}
	}
	if taken >= s.Capacity {
		return pkgerrors.ErrCapacityExceeded
	}
	return nil
}

func (m *mockAssignmentRepo) MoveToSession(_ context.Context, id, sessionID string) error {
	if err := m.hasRoom(sessionID); err != nil {
		return err
	}
	a, ok := m.assignments[id]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	a.SessionID = sessionID
	return nil
}

func (m *mockAssignmentRepo) Promote(_ context.Context, waitingAssignmentID string, a *model.Assignment) error {
	if err := m.hasRoom(a.SessionID); err != nil {
		return err
	}
	m.add(a)
	delete(m.assignments, waitingAssignmentID)
	return nil
}

func (m *mockAssignmentRepo) DeleteBefore(_ context.Context, date time.Time) (int64, error) {
	var n int64
	for id, a := range m.assignments {
		s, ok := m.sessions.sessions[a.SessionID]
		if ok && day(s.ScheduledDate) < day(date) {
			delete(m.assignments, id)
			n++
		}
	}
	return n, nil
}

func (m *mockAssignmentRepo) bySession(sessionID string) []*model.Assignment {
	var result []*model.Assignment
	for _, a := range m.assignments {
		if a.SessionID == sessionID {
			result = append(result, a)
		}
	}
	return result
}

// ── Mock AllocationRunRepository ──

type mockAllocationRunRepo struct {
	runs []model.AllocationRun
}

func newMockAllocationRunRepo() *mockAllocationRunRepo {
	return &mockAllocationRunRepo{}
}

func (m *mockAllocationRunRepo) Create(_ context.Context, run *model.AllocationRun) error {
	run.RunID = fmt.Sprintf("run-%d", len(m.runs)+1)
	m.runs = append(m.runs, *run)
	return nil
}

func (m *mockAllocationRunRepo) List(_ context.Context, action string, offset, limit int) ([]model.AllocationRun, int64, error) {
	var result []model.AllocationRun
	for i := len(m.runs) - 1; i >= 0; i-- {
		if action == "" || m.runs[i].Action == action {
			result = append(result, m.runs[i])
		}
	}
	total := int64(len(result))
	if offset >= len(result) {
		return nil, total, nil
	}
	end := offset + limit
	if end > len(result) {
		end = len(result)
	}
	return result[offset:end], total, nil
}

// ── 聚合 ──

type mockRepos struct {
	participants *mockParticipantRepo
	sessions     *mockSessionRepo
	signups      *mockSignupRepo
	assignments  *mockAssignmentRepo
	logs         *mockReputationLogRepo
	runs         *mockAllocationRunRepo
}

func newMockRepos() (*repository.Repository, *mockRepos) {
	logs := newMockReputationLogRepo()
	participants := newMockParticipantRepo(logs)
	sessions := newMockSessionRepo(participants)
	m := &mockRepos{
		participants: participants,
		sessions:     sessions,
		signups:      newMockSignupRepo(sessions),
		assignments:  newMockAssignmentRepo(sessions, participants),
		logs:         logs,
		runs:         newMockAllocationRunRepo(),
	}
	repo := &repository.Repository{
		Participant:   m.participants,
		Session:       m.sessions,
		Signup:        m.signups,
		Assignment:    m.assignments,
		ReputationLog: m.logs,
		AllocationRun: m.runs,
	}
	return repo, m
}

// ── 测试数据 ──

func (m *mockRepos) participant(id string, reputation int) *model.Participant {
	p := &model.Participant{
		ParticipantID: id,
		DisplayName:   id,
		Role:          model.RoleParticipant,
		Reputation:    reputation,
	}
	m.participants.participants[id] = p
	return p
}

func (m *mockRepos) session(id string, date time.Time, capacity int) *model.Session {
	s := &model.Session{
		SessionID:     id,
		Title:         "场次 " + id,
		Capacity:      capacity,
		ScheduledDate: date,
	}
	s.Version = 1
	m.sessions.sessions[id] = s
	return s
}

func (m *mockRepos) waitingList(id string, date time.Time) *model.Session {
	s := m.session(id, date, 128)
	s.WaitingList = model.WaitingListCurrent
	return s
}

func (m *mockRepos) signup(participantID, sessionID string, priority int) {
	m.signups.add(&model.Signup{ParticipantID: participantID, SessionID: sessionID, Priority: priority})
}

func (m *mockRepos) assign(participantID, sessionID string, place *int) *model.Assignment {
	a := &model.Assignment{ParticipantID: participantID, SessionID: sessionID, Appeared: true, PreferencePlace: place}
	m.assignments.add(a)
	return a
}
