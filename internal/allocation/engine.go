package allocation

import (
	"math/rand/v2"
	"sort"

	"go.uber.org/zap"
)

// Engine 多轮贪心分配引擎。
// 引擎本身无状态，每次 Allocate 都使用新的随机源和新的占位计数；
// 同一窗口的并发调用需要由调用方串行化。
type Engine struct {
	logger  *zap.Logger
	newRand func() *rand.Rand
}

// Option 引擎可选项
type Option func(*Engine)

// WithLogger 设置日志
func WithLogger(logger *zap.Logger) Option {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithSeed 固定随机种子，仅用于测试复现
func WithSeed(seed uint64) Option {
	return func(e *Engine) {
		e.newRand = func() *rand.Rand {
			return rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
		}
	}
}

// NewEngine 创建分配引擎
func NewEngine(opts ...Option) *Engine {
	e := &Engine{
		logger: zap.NewNop(),
		newRand: func() *rand.Rand {
			return rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
		},
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// candidate 参与者及其在本窗口的报名
type candidate struct {
	Participant
	signups [MaxPriority + 1][]string // 下标为志愿序号
}

// Allocate 为窗口内已报名且尚未分配的参与者生成新的分配。
// 只做加法：已有分配不会被修改，也不会产出重复分配。
func (e *Engine) Allocate(snap Snapshot) Result {
	rng := e.newRand()
	var res Result

	sessions := make(map[string]Session, len(snap.Sessions))
	for _, s := range snap.Sessions {
		sessions[s.ID] = s
	}

	t := newTracker(snap.Sessions, snap.Existing)
	ranked := e.rank(snap, sessions, rng)
	for _, c := range ranked {
		t.remaining[c.ID] = true
	}

	e.logger.Info("开始分配",
		zap.String("window", snap.Window.String()),
		zap.Int("candidates", len(ranked)),
		zap.Int("sessions", len(snap.Sessions)),
	)

	place := func(c *candidate, sessionID string, pref *int, round int) bool {
		if !t.tryPlace(c.ID, sessionID) {
			return false
		}
		p := Placement{ParticipantID: c.ID, SessionID: sessionID, PreferencePlace: pref, Round: round}
		if sessions[sessionID].WaitingList {
			res.WaitingList = append(res.WaitingList, p)
		} else {
			res.Placements = append(res.Placements, p)
		}
		res.RoundCounts[round-1]++
		return true
	}

	continuity := make(map[string]map[string]bool)
	for _, a := range snap.Continuity {
		if continuity[a.SessionID] == nil {
			continuity[a.SessionID] = make(map[string]bool)
		}
		continuity[a.SessionID][a.ParticipantID] = true
	}

	// ── 第 1-3 轮：按志愿逐级扫描 ──
	preferenceRound := func(round int, eligible func(c *candidate, sessionID string) bool) {
		for prio := 1; prio <= MaxPriority; prio++ {
			for _, c := range ranked {
				if !t.remaining[c.ID] {
					continue
				}
				for _, sessionID := range c.signups[prio] {
					if !eligible(c, sessionID) {
						continue
					}
					if place(c, sessionID, intPtr(prio), round) {
						break
					}
				}
			}
		}
		e.logger.Info("分配轮次完成", zap.Int("round", round), zap.Int("placed", res.RoundCounts[round-1]))
	}

	// 第 1 轮：连续性，前置场次里已有自己的分配
	preferenceRound(1, func(c *candidate, sessionID string) bool {
		pre := sessions[sessionID].PredecessorID
		return pre != "" && continuity[pre][c.ID]
	})

	// 第 2 轮：剧情通道
	preferenceRound(2, func(c *candidate, _ string) bool {
		return c.Story
	})

	// 第 3 轮：普通志愿
	preferenceRound(3, func(*candidate, string) bool { return true })

	// ── 第 4 轮：兜底，随机顺序的任意普通场次 ──
	open := make([]string, 0, len(snap.Sessions))
	for _, s := range snap.Sessions {
		if !s.WaitingList {
			open = append(open, s.ID)
		}
	}
	shuffleStrings(rng, open)
	for _, c := range ranked {
		if !t.remaining[c.ID] {
			continue
		}
		for _, sessionID := range open {
			if place(c, sessionID, intPtr(FallbackPlace), 4) {
				break
			}
		}
	}
	e.logger.Info("分配轮次完成", zap.Int("round", 4), zap.Int("placed", res.RoundCounts[3]))

	// ── 第 5 轮：候补 ──
	for _, c := range ranked {
		if !t.remaining[c.ID] {
			continue
		}
		if snap.WaitingListID == "" || !place(c, snap.WaitingListID, nil, 5) {
			e.logger.Error("候补名单安排失败",
				zap.String("participant_id", c.ID),
				zap.String("waiting_list_id", snap.WaitingListID),
			)
			res.Unplaced = append(res.Unplaced, c.ID)
		}
	}
	e.logger.Info("分配轮次完成", zap.Int("round", 5), zap.Int("placed", res.RoundCounts[4]))

	return res
}

// rank 构造候选人列表：声望降序，本月报名数降序，其余随机
func (e *Engine) rank(snap Snapshot, sessions map[string]Session, rng *rand.Rand) []*candidate {
	assigned := make(map[string]bool, len(snap.Existing))
	for _, a := range snap.Existing {
		assigned[a.ParticipantID] = true
	}

	byID := make(map[string]*candidate)
	for _, p := range snap.Participants {
		if !assigned[p.ID] {
			byID[p.ID] = &candidate{Participant: p}
		}
	}

	var ranked []*candidate
	seen := make(map[string]bool)
	for _, s := range snap.Signups {
		c, ok := byID[s.ParticipantID]
		if !ok {
			continue
		}
		session, ok := sessions[s.SessionID]
		if !ok {
			e.logger.Debug("报名引用的场次不存在，跳过",
				zap.String("participant_id", s.ParticipantID),
				zap.String("session_id", s.SessionID),
			)
			continue
		}
		if session.WaitingList || s.Priority < 1 || s.Priority > MaxPriority {
			continue
		}
		c.signups[s.Priority] = append(c.signups[s.Priority], s.SessionID)
		if !seen[c.ID] {
			seen[c.ID] = true
			ranked = append(ranked, c)
		}
	}

	rng.Shuffle(len(ranked), func(i, j int) { ranked[i], ranked[j] = ranked[j], ranked[i] })
	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].Reputation != ranked[j].Reputation {
			return ranked[i].Reputation > ranked[j].Reputation
		}
		return ranked[i].MonthlySignups > ranked[j].MonthlySignups
	})
	return ranked
}
