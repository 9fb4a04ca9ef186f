package repository

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"session-board/internal/model"
	pkgerrors "session-board/pkg/errors"
)

// AssignmentRepository 分配数据访问接口
type AssignmentRepository interface {
	// ListByDateRange 场次日期落在 [start, end] 内的分配，预加载场次
	ListByDateRange(ctx context.Context, start, end time.Time) ([]model.Assignment, error)
	ListBySessionIDs(ctx context.Context, sessionIDs []string) ([]model.Assignment, error)
	ListByParticipant(ctx context.Context, participantID string, start, end time.Time) ([]model.Assignment, error)
	GetByID(ctx context.Context, id string) (*model.Assignment, error)
	BatchCreate(ctx context.Context, assignments []model.Assignment) error
	Delete(ctx context.Context, id string) error
	UpdateAppeared(ctx context.Context, id string, appeared bool) error
	// MoveToSession 锁定目标场次并校验容量后改挂分配
	MoveToSession(ctx context.Context, id, sessionID string) error
	// Promote 锁定目标场次并校验容量后创建新分配，同时删除候补分配
	Promote(ctx context.Context, waitingAssignmentID string, a *model.Assignment) error
	// DeleteBefore 删除场次日期早于 date 的分配
	DeleteBefore(ctx context.Context, date time.Time) (int64, error)
}

type assignmentRepo struct {
	db *gorm.DB
}

func NewAssignmentRepo(db *gorm.DB) AssignmentRepository {
	return &assignmentRepo{db: db}
}

func (r *assignmentRepo) ListByDateRange(ctx context.Context, start, end time.Time) ([]model.Assignment, error) {
	var list []model.Assignment
	err := r.db.WithContext(ctx).
		Preload("Session").
		Preload("Participant").
		Joins("JOIN sessions ON sessions.session_id = assignments.session_id AND sessions.deleted_at IS NULL").
		Where("sessions.scheduled_date >= ? AND sessions.scheduled_date <= ?", dateOnly(start), dateOnly(end)).
		Order("sessions.scheduled_date ASC, assignments.created_at ASC").
		Find(&list).Error
	return list, err
}

func (r *assignmentRepo) ListBySessionIDs(ctx context.Context, sessionIDs []string) ([]model.Assignment, error) {
	var list []model.Assignment
	if len(sessionIDs) == 0 {
		return list, nil
	}
	err := r.db.WithContext(ctx).Where("session_id IN ?", sessionIDs).Find(&list).Error
	return list, err
}

func (r *assignmentRepo) ListByParticipant(ctx context.Context, participantID string, start, end time.Time) ([]model.Assignment, error) {
	var list []model.Assignment
	err := r.db.WithContext(ctx).
		Preload("Session").
		Joins("JOIN sessions ON sessions.session_id = assignments.session_id AND sessions.deleted_at IS NULL").
		Where("assignments.participant_id = ?", participantID).
		Where("sessions.scheduled_date >= ? AND sessions.scheduled_date <= ?", dateOnly(start), dateOnly(end)).
		Order("sessions.scheduled_date ASC").
		Find(&list).Error
	return list, err
}

func (r *assignmentRepo) GetByID(ctx context.Context, id string) (*model.Assignment, error) {
	var a model.Assignment
	err := r.db.WithContext(ctx).
		Preload("Session").
		Where("assignment_id = ?", id).
		First(&a).Error
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func (r *assignmentRepo) BatchCreate(ctx context.Context, assignments []model.Assignment) error {
	if len(assignments) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).CreateInBatches(assignments, 200).Error
}

func (r *assignmentRepo) Delete(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).
		Where("assignment_id = ?", id).
		Delete(&model.Assignment{}).Error
}

func (r *assignmentRepo) UpdateAppeared(ctx context.Context, id string, appeared bool) error {
	result := r.db.WithContext(ctx).
		Model(&model.Assignment{}).
		Where("assignment_id = ?", id).
		Update("appeared", appeared)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// lockWithRoom 对场次加行锁并确认仍有空位
func lockWithRoom(tx *gorm.DB, sessionID string) error {
	var s model.Session
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("session_id = ?", sessionID).
		First(&s).Error
	if err != nil {
		return err
	}
	var taken int64
	if err := tx.Model(&model.Assignment{}).Where("session_id = ?", sessionID).Count(&taken).Error; err != nil {
		return err
	}
	if taken >= int64(s.Capacity) {
		return pkgerrors.ErrCapacityExceeded
	}
	return nil
}

func (r *assignmentRepo) MoveToSession(ctx context.Context, id, sessionID string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := lockWithRoom(tx, sessionID); err != nil {
			return err
		}
		result := tx.Model(&model.Assignment{}).
			Where("assignment_id = ?", id).
			Update("session_id", sessionID)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return nil
	})
}

func (r *assignmentRepo) Promote(ctx context.Context, waitingAssignmentID string, a *model.Assignment) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := lockWithRoom(tx, a.SessionID); err != nil {
			return err
		}
		if err := tx.Create(a).Error; err != nil {
			return err
		}
		return tx.Where("assignment_id = ?", waitingAssignmentID).
			Delete(&model.Assignment{}).Error
	})
}

func (r *assignmentRepo) DeleteBefore(ctx context.Context, date time.Time) (int64, error) {
	result := r.db.WithContext(ctx).
		Where("session_id IN (?)", r.db.Model(&model.Session{}).
			Select("session_id").
			Where("scheduled_date < ?", dateOnly(date))).
		Delete(&model.Assignment{})
	return result.RowsAffected, result.Error
}
