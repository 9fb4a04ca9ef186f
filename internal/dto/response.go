package dto

// ── 分页请求 ──

// PaginationRequest 通用分页参数
type PaginationRequest struct {
	Page     int `form:"page"      binding:"omitempty,min=1"`
	PageSize int `form:"page_size" binding:"omitempty,min=1,max=100"`
}

// GetPage 获取页码（含默认值）
func (p *PaginationRequest) GetPage() int {
	if p.Page <= 0 {
		return 1
	}
	return p.Page
}

// GetPageSize 获取每页数量（含默认值）
func (p *PaginationRequest) GetPageSize() int {
	if p.PageSize <= 0 {
		return 20
	}
	return p.PageSize
}

// GetOffset 计算偏移量
func (p *PaginationRequest) GetOffset() int {
	return (p.GetPage() - 1) * p.GetPageSize()
}

// DateQuery 以某一天定位窗口的查询参数，空值表示今天
type DateQuery struct {
	Date string `form:"date" binding:"omitempty,datetime=2006-01-02"`
}

// ── 参与者 ──

// ParticipantResponse 参与者信息
type ParticipantResponse struct {
	ID               string  `json:"id"`
	DisplayName      string  `json:"display_name"`
	Role             string  `json:"role"`
	Reputation       int     `json:"reputation"`
	StoryParticipant bool    `json:"story_participant"`
	PersonalRoom     *string `json:"personal_room,omitempty"`
}

// UpdateParticipantRequest 管理员修改参与者属性
type UpdateParticipantRequest struct {
	StoryParticipant *bool   `json:"story_participant" binding:"required"`
	PersonalRoom     *string `json:"personal_room"     binding:"omitempty,max=50"`
}

// ReputationLogResponse 声望流水
type ReputationLogResponse struct {
	ID          string  `json:"id"`
	Delta       int     `json:"delta"`
	Reason      string  `json:"reason"`
	SessionID   *string `json:"session_id,omitempty"`
	WindowStart *string `json:"window_start,omitempty"`
	CreatedAt   string  `json:"created_at"`
}

// PenaltyResponse 手动处罚结果
type PenaltyResponse struct {
	ParticipantID string `json:"participant_id"`
	Delta         int    `json:"delta"`
	Reputation    int    `json:"reputation"`
}

// [自证通过] internal/dto/response.go
