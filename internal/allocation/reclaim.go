package allocation

import (
	"math/rand/v2"
	"sort"

	"go.uber.org/zap"
)

// Promotion 一次候补晋升：删除候补分配，新建普通分配
type Promotion struct {
	WaitingAssignmentID string
	ParticipantID       string
	SessionID           string
	PreferencePlace     int
}

// Reclaim 把候补名单上的参与者晋升到已报名且仍有空位的普通场次。
// 候补按声望降序处理；每人的候选场次按本人志愿升序，同志愿随机。
// 只处理当前候补场次上的分配；已持有普通分配的参与者不参与晋升。
func (e *Engine) Reclaim(snap Snapshot) []Promotion {
	rng := e.newRand()

	sessions := make(map[string]Session, len(snap.Sessions))
	for _, s := range snap.Sessions {
		sessions[s.ID] = s
	}
	reputation := make(map[string]int, len(snap.Participants))
	for _, p := range snap.Participants {
		reputation[p.ID] = p.Reputation
	}

	t := newTracker(snap.Sessions, snap.Existing)

	var waiting []Assignment
	placed := make(map[string]bool)
	for _, a := range snap.Existing {
		s, ok := sessions[a.SessionID]
		if !ok {
			continue
		}
		switch {
		case a.SessionID == snap.WaitingListID:
			waiting = append(waiting, a)
		case !s.WaitingList:
			placed[a.ParticipantID] = true
		}
	}
	rng.Shuffle(len(waiting), func(i, j int) { waiting[i], waiting[j] = waiting[j], waiting[i] })
	sort.SliceStable(waiting, func(i, j int) bool {
		return reputation[waiting[i].ParticipantID] > reputation[waiting[j].ParticipantID]
	})

	signups := make(map[string][]Signup)
	for _, s := range snap.Signups {
		session, ok := sessions[s.SessionID]
		if !ok || session.WaitingList {
			continue
		}
		signups[s.ParticipantID] = append(signups[s.ParticipantID], s)
	}

	var promotions []Promotion
	for _, a := range waiting {
		if placed[a.ParticipantID] {
			continue
		}
		options := orderByPriority(rng, signups[a.ParticipantID])
		for _, s := range options {
			if !t.tryPlace(a.ParticipantID, s.SessionID) {
				continue
			}
			t.release(a.SessionID)
			placed[a.ParticipantID] = true
			place := s.Priority
			if place < 1 || place > MaxPriority {
				place = FallbackPlace
			}
			promotions = append(promotions, Promotion{
				WaitingAssignmentID: a.ID,
				ParticipantID:       a.ParticipantID,
				SessionID:           s.SessionID,
				PreferencePlace:     place,
			})
			break
		}
	}

	e.logger.Info("候补晋升完成",
		zap.String("window", snap.Window.String()),
		zap.Int("waiting", len(waiting)),
		zap.Int("promoted", len(promotions)),
	)
	return promotions
}

func orderByPriority(rng *rand.Rand, signups []Signup) []Signup {
	out := make([]Signup, len(signups))
	copy(out, signups)
	rng.Shuffle(len(out), func(i, j int) { out[i], out[j] = out[j], out[i] })
	sort.SliceStable(out, func(i, j int) bool { return out[i].Priority < out[j].Priority })
	return out
}
