package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"session-board/internal/model"
)

// SignupRepository 报名数据访问接口
type SignupRepository interface {
	// ListByDateRange 场次日期落在 [start, end] 内的全部报名
	ListByDateRange(ctx context.Context, start, end time.Time) ([]model.Signup, error)
	ListByParticipant(ctx context.Context, participantID string, start, end time.Time) ([]model.Signup, error)
	// CountByParticipants 统计每个参与者在 [start, end] 内的报名数
	CountByParticipants(ctx context.Context, participantIDs []string, start, end time.Time) (map[string]int, error)
	// Toggle 切换报名：完全相同的报名会被取消；否则替换同场次、同日同志愿的旧报名
	// 返回 true 表示最终存在该报名
	Toggle(ctx context.Context, signup *model.Signup, date time.Time) (bool, error)
}

type signupRepo struct {
	db *gorm.DB
}

func NewSignupRepo(db *gorm.DB) SignupRepository {
	return &signupRepo{db: db}
}

func (r *signupRepo) ListByDateRange(ctx context.Context, start, end time.Time) ([]model.Signup, error) {
	var list []model.Signup
	err := r.db.WithContext(ctx).
		Joins("JOIN sessions ON sessions.session_id = signups.session_id AND sessions.deleted_at IS NULL").
		Where("sessions.scheduled_date >= ? AND sessions.scheduled_date <= ?", dateOnly(start), dateOnly(end)).
		Order("signups.priority ASC, sessions.scheduled_date ASC, signups.created_at ASC").
		Find(&list).Error
	return list, err
}

func (r *signupRepo) ListByParticipant(ctx context.Context, participantID string, start, end time.Time) ([]model.Signup, error) {
	var list []model.Signup
	err := r.db.WithContext(ctx).
		Preload("Session").
		Joins("JOIN sessions ON sessions.session_id = signups.session_id AND sessions.deleted_at IS NULL").
		Where("signups.participant_id = ?", participantID).
		Where("sessions.scheduled_date >= ? AND sessions.scheduled_date <= ?", dateOnly(start), dateOnly(end)).
		Order("sessions.scheduled_date ASC, signups.priority ASC").
		Find(&list).Error
	return list, err
}

func (r *signupRepo) CountByParticipants(ctx context.Context, participantIDs []string, start, end time.Time) (map[string]int, error) {
	counts := make(map[string]int, len(participantIDs))
	if len(participantIDs) == 0 {
		return counts, nil
	}

	var rows []struct {
		ParticipantID string
		Total         int
	}
	err := r.db.WithContext(ctx).
		Model(&model.Signup{}).
		Select("signups.participant_id, COUNT(*) AS total").
		Joins("JOIN sessions ON sessions.session_id = signups.session_id AND sessions.deleted_at IS NULL").
		Where("signups.participant_id IN ?", participantIDs).
		Where("sessions.scheduled_date >= ? AND sessions.scheduled_date <= ?", dateOnly(start), dateOnly(end)).
		Group("signups.participant_id").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	for _, row := range rows {
		counts[row.ParticipantID] = row.Total
	}
	return counts, nil
}

func (r *signupRepo) Toggle(ctx context.Context, signup *model.Signup, date time.Time) (bool, error) {
	created := false
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// 完全相同：取消报名
		result := tx.Where("participant_id = ? AND session_id = ? AND priority = ?",
			signup.ParticipantID, signup.SessionID, signup.Priority).
			Delete(&model.Signup{})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected > 0 {
			return nil
		}

		// 同日同志愿只保留一条
		err := tx.Where("participant_id = ? AND priority = ?", signup.ParticipantID, signup.Priority).
			Where("session_id IN (?)", tx.Model(&model.Session{}).
				Select("session_id").
				Where("scheduled_date = ?", dateOnly(date))).
			Delete(&model.Signup{}).Error
		if err != nil {
			return err
		}

		// 同一场次只保留一条
		err = tx.Where("participant_id = ? AND session_id = ?", signup.ParticipantID, signup.SessionID).
			Delete(&model.Signup{}).Error
		if err != nil {
			return err
		}

		if err := tx.Create(signup).Error; err != nil {
			return err
		}
		created = true
		return nil
	})
	return created, err
}
