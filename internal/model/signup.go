package model

// Signup 报名表 — 对应 signups
// 唯一约束：(participant_id, session_id)；同一天同一志愿序号只能有一条，由服务层在事务中保证
type Signup struct {
	SignupID      string `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"signup_id"`
	ParticipantID string `gorm:"type:uuid;not null"                             json:"participant_id"`
	SessionID     string `gorm:"type:uuid;not null"                             json:"session_id"`
	Priority      int    `gorm:"type:smallint;not null"                         json:"priority"` // 1 | 2 | 3
	BaseModel

	// 关联
	Session *Session `gorm:"foreignKey:SessionID;references:SessionID" json:"session,omitempty"`
}

func (Signup) TableName() string { return "signups" }
