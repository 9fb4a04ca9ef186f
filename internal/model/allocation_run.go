package model

import (
	"time"

	"gorm.io/datatypes"
)

// 运行状态
const (
	RunStatusSuccess = "success"
	RunStatusFailed  = "failed"
)

// AllocationRun 周期动作运行记录表 — 对应 allocation_runs
type AllocationRun struct {
	RunID       string         `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"run_id"`
	Action      string         `gorm:"type:varchar(20);not null"                      json:"action"`
	WindowStart time.Time      `gorm:"type:date;not null"                             json:"window_start"`
	WindowEnd   time.Time      `gorm:"type:date;not null"                             json:"window_end"`
	Status      string         `gorm:"type:varchar(20);not null"                      json:"status"`
	Summary     datatypes.JSON `gorm:"type:jsonb"                                     json:"summary,omitempty"`
	Error       string         `gorm:"type:text;not null;default:''"                  json:"error,omitempty"`
	TriggeredBy *string        `gorm:"type:uuid"                                      json:"triggered_by,omitempty"`
	StartedAt   time.Time      `gorm:"not null"                                       json:"started_at"`
	FinishedAt  time.Time      `gorm:"not null"                                       json:"finished_at"`
}

func (AllocationRun) TableName() string { return "allocation_runs" }
