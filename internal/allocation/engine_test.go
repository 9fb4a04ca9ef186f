package allocation

import (
	"fmt"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func placementsBySession(res Result) map[string][]string {
	out := make(map[string][]string)
	for _, p := range append(append([]Placement{}, res.Placements...), res.WaitingList...) {
		out[p.SessionID] = append(out[p.SessionID], p.ParticipantID)
	}
	return out
}

func findPlacement(res Result, participantID string) (Placement, bool) {
	for _, p := range append(append([]Placement{}, res.Placements...), res.WaitingList...) {
		if p.ParticipantID == participantID {
			return p, true
		}
	}
	return Placement{}, false
}

func TestAllocate_ReputationDecidesContestedSession(t *testing.T) {
	snap := Snapshot{
		Participants: []Participant{
			{ID: "low", Reputation: 100},
			{ID: "high", Reputation: 300},
			{ID: "mid", Reputation: 200},
		},
		Sessions: []Session{
			{ID: "A", Capacity: 1},
			{ID: "B", Capacity: 1},
			{ID: "W", Capacity: 128, WaitingList: true},
		},
		Signups: []Signup{
			{ParticipantID: "low", SessionID: "A", Priority: 1},
			{ParticipantID: "high", SessionID: "A", Priority: 1},
			{ParticipantID: "mid", SessionID: "A", Priority: 1},
		},
		WaitingListID: "W",
	}

	for seed := uint64(1); seed <= 20; seed++ {
		res := NewEngine(WithSeed(seed)).Allocate(snap)

		high, ok := findPlacement(res, "high")
		require.True(t, ok)
		assert.Equal(t, "A", high.SessionID)
		assert.Equal(t, 3, high.Round)
		require.NotNil(t, high.PreferencePlace)
		assert.Equal(t, 1, *high.PreferencePlace)

		mid, ok := findPlacement(res, "mid")
		require.True(t, ok)
		assert.Equal(t, "B", mid.SessionID)
		assert.Equal(t, 4, mid.Round)
		require.NotNil(t, mid.PreferencePlace)
		assert.Equal(t, FallbackPlace, *mid.PreferencePlace)

		low, ok := findPlacement(res, "low")
		require.True(t, ok)
		assert.Equal(t, "W", low.SessionID)
		assert.Nil(t, low.PreferencePlace)

		assert.Equal(t, [5]int{0, 0, 1, 1, 1}, res.RoundCounts)
		assert.Len(t, res.WaitingList, 1)
		assert.Empty(t, res.Unplaced)
	}
}

func TestAllocate_MonthlySignupsBreakReputationTie(t *testing.T) {
	snap := Snapshot{
		Participants: []Participant{
			{ID: "few", Reputation: 1000, MonthlySignups: 1},
			{ID: "many", Reputation: 1000, MonthlySignups: 4},
		},
		Sessions: []Session{{ID: "A", Capacity: 1}, {ID: "W", Capacity: 10, WaitingList: true}},
		Signups: []Signup{
			{ParticipantID: "few", SessionID: "A", Priority: 1},
			{ParticipantID: "many", SessionID: "A", Priority: 1},
		},
		WaitingListID: "W",
	}
	for seed := uint64(1); seed <= 10; seed++ {
		res := NewEngine(WithSeed(seed)).Allocate(snap)
		assert.Equal(t, []string{"many"}, placementsBySession(res)["A"])
	}
}

func TestAllocate_ContinuityBeatsReputation(t *testing.T) {
	snap := Snapshot{
		Participants: []Participant{
			{ID: "veteran", Reputation: 10},
			{ID: "star", Reputation: 5000},
		},
		Sessions: []Session{
			{ID: "part2", Capacity: 1, PredecessorID: "part1"},
			{ID: "other", Capacity: 1},
			{ID: "W", Capacity: 10, WaitingList: true},
		},
		Signups: []Signup{
			{ParticipantID: "veteran", SessionID: "part2", Priority: 1},
			{ParticipantID: "star", SessionID: "part2", Priority: 1},
		},
		Continuity:    []Assignment{{ParticipantID: "veteran", SessionID: "part1"}},
		WaitingListID: "W",
	}

	for seed := uint64(1); seed <= 10; seed++ {
		res := NewEngine(WithSeed(seed)).Allocate(snap)
		veteran, ok := findPlacement(res, "veteran")
		require.True(t, ok)
		assert.Equal(t, "part2", veteran.SessionID)
		assert.Equal(t, 1, veteran.Round)

		star, ok := findPlacement(res, "star")
		require.True(t, ok)
		assert.Equal(t, "other", star.SessionID)
		assert.Equal(t, 4, star.Round)
	}
}

func TestAllocate_StoryLaneBeforeGeneralPreference(t *testing.T) {
	snap := Snapshot{
		Participants: []Participant{
			{ID: "story", Reputation: 1, Story: true},
			{ID: "regular", Reputation: 9000},
		},
		Sessions: []Session{{ID: "A", Capacity: 1}, {ID: "W", Capacity: 10, WaitingList: true}},
		Signups: []Signup{
			// 剧情玩家第 2 志愿也优先于高声望玩家的第 1 志愿
			{ParticipantID: "story", SessionID: "A", Priority: 2},
			{ParticipantID: "regular", SessionID: "A", Priority: 1},
		},
		WaitingListID: "W",
	}
	res := NewEngine(WithSeed(7)).Allocate(snap)

	story, ok := findPlacement(res, "story")
	require.True(t, ok)
	assert.Equal(t, "A", story.SessionID)
	assert.Equal(t, 2, story.Round)
	assert.Equal(t, 2, *story.PreferencePlace)

	regular, ok := findPlacement(res, "regular")
	require.True(t, ok)
	assert.Equal(t, "W", regular.SessionID)
}

func TestAllocate_LowerPriorityTakenWhenFirstChoiceFull(t *testing.T) {
	snap := Snapshot{
		Participants: []Participant{
			{ID: "p1", Reputation: 500},
			{ID: "p2", Reputation: 400},
		},
		Sessions: []Session{{ID: "A", Capacity: 1}, {ID: "B", Capacity: 1}, {ID: "W", Capacity: 10, WaitingList: true}},
		Signups: []Signup{
			{ParticipantID: "p1", SessionID: "A", Priority: 1},
			{ParticipantID: "p2", SessionID: "A", Priority: 1},
			{ParticipantID: "p2", SessionID: "B", Priority: 2},
		},
		WaitingListID: "W",
	}
	res := NewEngine(WithSeed(3)).Allocate(snap)

	p2, ok := findPlacement(res, "p2")
	require.True(t, ok)
	assert.Equal(t, "B", p2.SessionID)
	assert.Equal(t, 3, p2.Round)
	assert.Equal(t, 2, *p2.PreferencePlace)
}

func TestAllocate_ExistingAssignmentsAreRespected(t *testing.T) {
	snap := Snapshot{
		Participants: []Participant{
			{ID: "done", Reputation: 9000},
			{ID: "new", Reputation: 100},
			{ID: "late", Reputation: 50},
		},
		Sessions: []Session{{ID: "A", Capacity: 2}, {ID: "W", Capacity: 10, WaitingList: true}},
		Signups: []Signup{
			{ParticipantID: "done", SessionID: "A", Priority: 1},
			{ParticipantID: "new", SessionID: "A", Priority: 1},
			{ParticipantID: "late", SessionID: "A", Priority: 1},
		},
		Existing:      []Assignment{{ID: "a1", ParticipantID: "done", SessionID: "A"}},
		WaitingListID: "W",
	}
	res := NewEngine(WithSeed(11)).Allocate(snap)

	_, ok := findPlacement(res, "done")
	assert.False(t, ok, "已分配的参与者不应再次出现")

	bySession := placementsBySession(res)
	assert.Equal(t, []string{"new"}, bySession["A"])
	assert.Equal(t, []string{"late"}, bySession["W"])
}

func TestAllocate_DanglingAndWaitingListSignupsSkipped(t *testing.T) {
	snap := Snapshot{
		Participants: []Participant{{ID: "p", Reputation: 1}, {ID: "ghost-only", Reputation: 1}},
		Sessions:     []Session{{ID: "A", Capacity: 1}, {ID: "W", Capacity: 10, WaitingList: true}},
		Signups: []Signup{
			{ParticipantID: "p", SessionID: "missing", Priority: 1},
			{ParticipantID: "p", SessionID: "A", Priority: 2},
			{ParticipantID: "ghost-only", SessionID: "missing", Priority: 1},
			{ParticipantID: "unknown", SessionID: "A", Priority: 1},
		},
		WaitingListID: "W",
	}
	res := NewEngine(WithSeed(5)).Allocate(snap)

	p, ok := findPlacement(res, "p")
	require.True(t, ok)
	assert.Equal(t, "A", p.SessionID)

	_, ok = findPlacement(res, "ghost-only")
	assert.False(t, ok, "只有悬空报名的参与者不是候选人")
	_, ok = findPlacement(res, "unknown")
	assert.False(t, ok)
}

func TestAllocate_MissingWaitingListReportsUnplaced(t *testing.T) {
	snap := Snapshot{
		Participants: []Participant{{ID: "a", Reputation: 2}, {ID: "b", Reputation: 1}},
		Sessions:     []Session{{ID: "A", Capacity: 1}},
		Signups: []Signup{
			{ParticipantID: "a", SessionID: "A", Priority: 1},
			{ParticipantID: "b", SessionID: "A", Priority: 1},
		},
	}
	res := NewEngine(WithSeed(1)).Allocate(snap)
	assert.Equal(t, []string{"b"}, res.Unplaced)
	assert.Empty(t, res.WaitingList)
}

func TestAllocate_FallbackNeverUsesWaitingList(t *testing.T) {
	snap := Snapshot{
		Participants:  []Participant{{ID: "a", Reputation: 2}},
		Sessions:      []Session{{ID: "A", Capacity: 0}, {ID: "W", Capacity: 10, WaitingList: true}},
		Signups:       []Signup{{ParticipantID: "a", SessionID: "A", Priority: 1}},
		WaitingListID: "W",
	}
	res := NewEngine(WithSeed(1)).Allocate(snap)
	require.Len(t, res.WaitingList, 1)
	assert.Equal(t, 5, res.WaitingList[0].Round)
	assert.Empty(t, res.Placements)
}

// randomSnapshot 生成随机场景，用于不变量检查
func randomSnapshot(rng *rand.Rand) Snapshot {
	var snap Snapshot
	nSessions := 2 + rng.IntN(6)
	for i := 0; i < nSessions; i++ {
		s := Session{ID: fmt.Sprintf("s%d", i), Capacity: rng.IntN(4)}
		if i > 0 && rng.IntN(3) == 0 {
			s.PredecessorID = fmt.Sprintf("prev%d", i)
		}
		snap.Sessions = append(snap.Sessions, s)
	}
	snap.Sessions = append(snap.Sessions, Session{ID: "W", Capacity: 1000, WaitingList: true})
	snap.WaitingListID = "W"

	nParticipants := 5 + rng.IntN(25)
	for i := 0; i < nParticipants; i++ {
		id := fmt.Sprintf("p%d", i)
		snap.Participants = append(snap.Participants, Participant{
			ID:             id,
			Reputation:     rng.IntN(2000),
			Story:          rng.IntN(5) == 0,
			MonthlySignups: rng.IntN(5),
		})
		for prio := 1; prio <= MaxPriority; prio++ {
			if rng.IntN(4) == 0 {
				continue
			}
			sid := fmt.Sprintf("s%d", rng.IntN(nSessions))
			snap.Signups = append(snap.Signups, Signup{ParticipantID: id, SessionID: sid, Priority: prio})
		}
		if rng.IntN(4) == 0 {
			snap.Continuity = append(snap.Continuity, Assignment{ParticipantID: id, SessionID: fmt.Sprintf("prev%d", rng.IntN(nSessions))})
		}
	}
	return snap
}

func TestAllocate_Invariants(t *testing.T) {
	gen := rand.New(rand.NewPCG(42, 42))
	for i := 0; i < 200; i++ {
		snap := randomSnapshot(gen)
		res := NewEngine(WithSeed(uint64(i))).Allocate(snap)

		capacity := make(map[string]int)
		for _, s := range snap.Sessions {
			capacity[s.ID] = s.Capacity
		}
		for sessionID, ids := range placementsBySession(res) {
			assert.LessOrEqual(t, len(ids), capacity[sessionID], "场次 %s 超出容量", sessionID)
		}

		seen := make(map[string]int)
		for _, p := range res.Placements {
			seen[p.ParticipantID]++
		}
		for _, p := range res.WaitingList {
			seen[p.ParticipantID]++
		}
		for id, n := range seen {
			assert.Equal(t, 1, n, "参与者 %s 被重复安排", id)
		}
		assert.Empty(t, res.Unplaced)

		// 有有效报名的参与者都得到安排
		signedUp := make(map[string]bool)
		for _, s := range snap.Signups {
			signedUp[s.ParticipantID] = true
		}
		assert.Len(t, seen, len(signedUp))
	}
}

func TestAllocate_ContinuityNeverFallsBack(t *testing.T) {
	gen := rand.New(rand.NewPCG(9, 9))
	for i := 0; i < 100; i++ {
		snap := randomSnapshot(gen)
		// 追加一个有连续性的第 1 志愿场次，容量足够
		snap.Sessions = append(snap.Sessions, Session{ID: "chain2", Capacity: 5, PredecessorID: "chain1"})
		snap.Participants = append(snap.Participants, Participant{ID: "cont", Reputation: 0})
		snap.Signups = append(snap.Signups, Signup{ParticipantID: "cont", SessionID: "chain2", Priority: 1})
		snap.Continuity = append(snap.Continuity, Assignment{ParticipantID: "cont", SessionID: "chain1"})

		res := NewEngine(WithSeed(uint64(i))).Allocate(snap)
		p, ok := findPlacement(res, "cont")
		require.True(t, ok)
		assert.Equal(t, "chain2", p.SessionID)
		assert.Equal(t, 1, p.Round)
	}
}
