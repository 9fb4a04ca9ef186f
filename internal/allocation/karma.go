package allocation

// Reason 声望变动原因
type Reason string

const (
	ReasonCreator             Reason = "creator"
	ReasonNoShow              Reason = "no_show"
	ReasonWaitingListAppeared Reason = "waiting_list_appeared"
	ReasonWaitingListAbsent   Reason = "waiting_list_absent"
	ReasonPreference          Reason = "preference"
	ReasonLateCancellation    Reason = "late_cancellation"
	ReasonManual              Reason = "manual"
)

// Rules 周结算规则，各项独立计算、互相叠加
type Rules struct {
	CreatorBonus        int
	NoShowPenalty       int
	WaitingListAppeared int
	WaitingListAbsent   int
	PreferenceBonus     []int // 下标 0 对应第 1 志愿，最后一项对应兜底
}

// DefaultRules 默认结算规则
func DefaultRules() Rules {
	return Rules{
		CreatorBonus:        500,
		NoShowPenalty:       -500,
		WaitingListAppeared: 200,
		WaitingListAbsent:   180,
		PreferenceBonus:     []int{100, 120, 140, 150},
	}
}

// SettledSession 参与结算的场次
type SettledSession struct {
	ID               string
	CreatorID        string
	WaitingList      bool
	ExcludeFromKarma bool
}

// Outcome 一条分配的事后结果
type Outcome struct {
	ParticipantID   string
	SessionID       string
	Appeared        bool
	PreferencePlace *int
}

// Delta 一条声望变动
type Delta struct {
	ParticipantID string
	SessionID     string
	Amount        int
	Reason        Reason
}

// Settle 根据场次与出席结果计算声望变动。
// 同一参与者可以命中多条规则；结果不做去重，重复结算会重复计入。
func Settle(rules Rules, sessions []SettledSession, outcomes []Outcome) []Delta {
	byID := make(map[string]SettledSession, len(sessions))
	for _, s := range sessions {
		byID[s.ID] = s
	}

	var deltas []Delta

	// 创建者奖励：每人每周最多一次
	rewarded := make(map[string]bool)
	for _, s := range sessions {
		if s.WaitingList || s.ExcludeFromKarma || s.CreatorID == "" || rewarded[s.CreatorID] {
			continue
		}
		rewarded[s.CreatorID] = true
		deltas = append(deltas, Delta{ParticipantID: s.CreatorID, SessionID: s.ID, Amount: rules.CreatorBonus, Reason: ReasonCreator})
	}

	for _, o := range outcomes {
		s, ok := byID[o.SessionID]
		if !ok || s.ExcludeFromKarma {
			continue
		}
		d := Delta{ParticipantID: o.ParticipantID, SessionID: o.SessionID}
		switch {
		case s.WaitingList && o.Appeared:
			d.Amount, d.Reason = rules.WaitingListAppeared, ReasonWaitingListAppeared
		case s.WaitingList:
			d.Amount, d.Reason = rules.WaitingListAbsent, ReasonWaitingListAbsent
		case !o.Appeared:
			d.Amount, d.Reason = rules.NoShowPenalty, ReasonNoShow
		default:
			bonus, ok := rules.preferenceBonus(o.PreferencePlace)
			if !ok {
				continue
			}
			d.Amount, d.Reason = bonus, ReasonPreference
		}
		deltas = append(deltas, d)
	}
	return deltas
}

func (r Rules) preferenceBonus(place *int) (int, bool) {
	if place == nil || *place < 1 || *place > len(r.PreferenceBonus) {
		return 0, false
	}
	return r.PreferenceBonus[*place-1], true
}

// Sum 按参与者汇总变动
func Sum(deltas []Delta) map[string]int {
	out := make(map[string]int)
	for _, d := range deltas {
		out[d.ParticipantID] += d.Amount
	}
	return out
}
