package allocation

import "session-board/pkg/calendar"

// MaxPriority 报名志愿的最大序号（1 = 最想去）
const MaxPriority = 3

// FallbackPlace 兜底轮安排在志愿之外时记录的志愿序号
const FallbackPlace = 4

// Participant 参与者快照
type Participant struct {
	ID             string
	Reputation     int
	Story          bool
	MonthlySignups int // 本自然月的报名数，排名第二关键字
}

// Session 场次快照
type Session struct {
	ID            string
	Capacity      int
	PredecessorID string
	WaitingList   bool
}

// Signup 报名（参与者, 场次, 志愿序号）
type Signup struct {
	ParticipantID string
	SessionID     string
	Priority      int
}

// Assignment 已存在的分配
type Assignment struct {
	ID            string
	ParticipantID string
	SessionID     string
}

// Snapshot 一次分配运行所需的只读输入
type Snapshot struct {
	Window       calendar.Window
	Participants []Participant
	Sessions     []Session // 窗口内全部场次，含候补场次
	Signups      []Signup  // 窗口内报名
	Existing     []Assignment
	// Continuity 前置场次上的分配，用于第 1 轮连续性判断
	Continuity    []Assignment
	WaitingListID string
}

// Placement 引擎产出的一条新分配
type Placement struct {
	ParticipantID   string
	SessionID       string
	PreferencePlace *int // nil 表示候补
	Round           int
}

// Result 一次分配运行的结果
type Result struct {
	Placements  []Placement // 普通场次
	WaitingList []Placement // 候补场次
	Unplaced    []string    // 第 5 轮仍未能安排的参与者
	RoundCounts [5]int
}

func intPtr(v int) *int { return &v }
