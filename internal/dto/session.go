package dto

// ── 场次模块 DTO ──

// CreateSessionRequest 创建场次请求；num_sessions > 1 时按周生成连续场次链
type CreateSessionRequest struct {
	Title            string  `json:"title"              binding:"required,min=1,max=200"`
	Description      string  `json:"description"        binding:"omitempty,max=5000"`
	Capacity         int     `json:"capacity"           binding:"required,min=1,max=64"`
	Date             string  `json:"date"               binding:"required,datetime=2006-01-02"`
	NumSessions      int     `json:"num_sessions"       binding:"omitempty,min=1,max=12"`
	PredecessorID    *string `json:"predecessor_id"     binding:"omitempty,uuid"`
	ExcludeFromKarma bool    `json:"exclude_from_karma"`
	StorySession     bool    `json:"story_session"`
}

// SessionResponse 场次响应
type SessionResponse struct {
	ID               string  `json:"id"`
	Title            string  `json:"title"`
	Description      string  `json:"description"`
	CreatorID        *string `json:"creator_id,omitempty"`
	CreatorName      string  `json:"creator_name,omitempty"`
	Capacity         int     `json:"capacity"`
	Taken            int     `json:"taken"`
	Date             string  `json:"date"`
	PredecessorID    *string `json:"predecessor_id,omitempty"`
	WaitingList      int     `json:"waiting_list"`
	Room             *string `json:"room,omitempty"`
	Released         bool    `json:"released"`
	ExcludeFromKarma bool    `json:"exclude_from_karma"`
	StorySession     bool    `json:"story_session"`
}

// WeekResponse 一周场次
type WeekResponse struct {
	Start    string            `json:"start"`
	End      string            `json:"end"`
	Sessions []SessionResponse `json:"sessions"`
}

// ── 报名 ──

// ToggleSignupRequest 报名切换请求
type ToggleSignupRequest struct {
	SessionID string `json:"session_id" binding:"required,uuid"`
	Priority  int    `json:"priority"   binding:"required,min=1,max=3"`
}

// SignupResponse 报名响应
type SignupResponse struct {
	ID           string `json:"id"`
	SessionID    string `json:"session_id"`
	SessionTitle string `json:"session_title,omitempty"`
	Date         string `json:"date,omitempty"`
	Priority     int    `json:"priority"`
}

// ToggleSignupResponse 报名切换结果；signed_up=false 表示报名已取消
type ToggleSignupResponse struct {
	SignedUp bool            `json:"signed_up"`
	Signup   *SignupResponse `json:"signup,omitempty"`
}

// ── 分配 ──

// AssignmentResponse 分配响应
type AssignmentResponse struct {
	ID              string `json:"id"`
	ParticipantID   string `json:"participant_id"`
	ParticipantName string `json:"participant_name,omitempty"`
	SessionID       string `json:"session_id"`
	SessionTitle    string `json:"session_title,omitempty"`
	Date            string `json:"date,omitempty"`
	Appeared        bool   `json:"appeared"`
	PreferencePlace *int   `json:"preference_place,omitempty"`
	WaitingList     bool   `json:"waiting_list"`
}

// UpdateAppearedRequest 修正出席请求
type UpdateAppearedRequest struct {
	Appeared *bool `json:"appeared" binding:"required"`
}

// MoveAssignmentRequest 改挂分配请求
type MoveAssignmentRequest struct {
	SessionID string `json:"session_id" binding:"required,uuid"`
}

// WithdrawResponse 退出结果
type WithdrawResponse struct {
	Penalized bool `json:"penalized"`
	Promoted  int  `json:"promoted"`
}
