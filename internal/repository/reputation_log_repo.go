package repository

import (
	"context"

	"gorm.io/gorm"

	"session-board/internal/model"
)

// ReputationLogRepository 声望流水数据访问接口（只读，写入由 ParticipantRepository 在事务中完成）
type ReputationLogRepository interface {
	ListByParticipant(ctx context.Context, participantID string, offset, limit int) ([]model.ReputationLog, int64, error)
}

type reputationLogRepo struct {
	db *gorm.DB
}

func NewReputationLogRepo(db *gorm.DB) ReputationLogRepository {
	return &reputationLogRepo{db: db}
}

func (r *reputationLogRepo) ListByParticipant(ctx context.Context, participantID string, offset, limit int) ([]model.ReputationLog, int64, error) {
	var (
		list  []model.ReputationLog
		total int64
	)
	query := r.db.WithContext(ctx).
		Model(&model.ReputationLog{}).
		Where("participant_id = ?", participantID)
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	err := query.Order("created_at DESC").Offset(offset).Limit(limit).Find(&list).Error
	return list, total, err
}
