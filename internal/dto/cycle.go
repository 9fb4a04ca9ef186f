package dto

import "encoding/json"

// ── 周期动作 DTO ──

// RunActionRequest 管理员手动触发周期动作
type RunActionRequest struct {
	Action string `json:"action" binding:"required,oneof=assign rooms reclaim karma release reset purge"`
	Date   string `json:"date"   binding:"omitempty,datetime=2006-01-02"`
}

// RunListRequest 运行记录查询参数
type RunListRequest struct {
	Action string `form:"action" binding:"omitempty,oneof=assign rooms reclaim karma release reset purge"`
	PaginationRequest
}

// RunResponse 一次周期动作的运行记录
type RunResponse struct {
	ID          string          `json:"id"`
	Action      string          `json:"action"`
	WindowStart string          `json:"window_start"`
	WindowEnd   string          `json:"window_end"`
	Status      string          `json:"status"`
	Summary     json.RawMessage `json:"summary,omitempty"`
	Error       string          `json:"error,omitempty"`
	StartedAt   string          `json:"started_at"`
	FinishedAt  string          `json:"finished_at"`
}

// AllocationSummary 分配结果摘要
type AllocationSummary struct {
	WindowStart   string `json:"window_start"`
	WindowEnd     string `json:"window_end"`
	WaitingListID string `json:"waiting_list_id"`
	Placed        int    `json:"placed"`
	WaitingListed int    `json:"waiting_listed"`
	Unplaced      int    `json:"unplaced"`
	Rounds        [5]int `json:"rounds"`
}

// RoomSummary 房间分配摘要
type RoomSummary struct {
	Sessions int `json:"sessions"`
	Assigned int `json:"assigned"`
}

// SettlementSummary 周结算摘要
type SettlementSummary struct {
	WindowStart  string         `json:"window_start"`
	WindowEnd    string         `json:"window_end"`
	Deltas       int            `json:"deltas"`
	Participants int            `json:"participants"`
	ByReason     map[string]int `json:"by_reason"`
}

// ReclaimSummary 候补晋升摘要
type ReclaimSummary struct {
	Promoted int `json:"promoted"`
}

// ReleaseSummary 发布 / 撤回发布摘要
type ReleaseSummary struct {
	Released bool  `json:"released"`
	Sessions int64 `json:"sessions"`
}

// PurgeSummary 过期清理摘要
type PurgeSummary struct {
	Before  string `json:"before"`
	Deleted int64  `json:"deleted"`
}

// ActionResult 周期动作结果，按动作不同只填其中若干项
type ActionResult struct {
	Action     string             `json:"action"`
	Allocation *AllocationSummary `json:"allocation,omitempty"`
	Rooms      *RoomSummary       `json:"rooms,omitempty"`
	Settlement *SettlementSummary `json:"settlement,omitempty"`
	Reclaim    *ReclaimSummary    `json:"reclaim,omitempty"`
	Release    *ReleaseSummary    `json:"release,omitempty"`
	Purge      *PurgeSummary      `json:"purge,omitempty"`
}
