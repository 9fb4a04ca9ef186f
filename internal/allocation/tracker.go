package allocation

// tracker 一次运行内的占位计数，所有轮次共用同一个放置原语
type tracker struct {
	taken     map[string]int
	capacity  map[string]int
	remaining map[string]bool
}

func newTracker(sessions []Session, existing []Assignment) *tracker {
	t := &tracker{
		taken:     make(map[string]int, len(sessions)),
		capacity:  make(map[string]int, len(sessions)),
		remaining: make(map[string]bool),
	}
	for _, s := range sessions {
		t.capacity[s.ID] = s.Capacity
	}
	for _, a := range existing {
		t.taken[a.SessionID]++
	}
	return t
}

func (t *tracker) hasRoom(sessionID string) bool {
	capacity, ok := t.capacity[sessionID]
	if !ok {
		return false
	}
	return t.taken[sessionID] < capacity
}

// tryPlace 容量足够时占位并把参与者移出待分配集合
func (t *tracker) tryPlace(participantID, sessionID string) bool {
	if !t.hasRoom(sessionID) {
		return false
	}
	t.taken[sessionID]++
	delete(t.remaining, participantID)
	return true
}

// release 归还一个名额（候补晋升时腾出候补场次的位置）
func (t *tracker) release(sessionID string) {
	if t.taken[sessionID] > 0 {
		t.taken[sessionID]--
	}
}
