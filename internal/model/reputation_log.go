package model

import "time"

// ReputationLog 声望变动流水表 — 对应 reputation_logs（纯审计日志，只增不改）
type ReputationLog struct {
	LogID         string     `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"log_id"`
	ParticipantID string     `gorm:"type:uuid;not null;index"                       json:"participant_id"`
	SessionID     *string    `gorm:"type:uuid"                                      json:"session_id,omitempty"`
	Delta         int        `gorm:"not null"                                       json:"delta"`
	Reason        string     `gorm:"type:varchar(40);not null"                      json:"reason"`
	WindowStart   *time.Time `gorm:"type:date"                                      json:"window_start,omitempty"`
	CreatedAt     time.Time  `gorm:"not null;default:CURRENT_TIMESTAMP"             json:"created_at"`
}

func (ReputationLog) TableName() string { return "reputation_logs" }
