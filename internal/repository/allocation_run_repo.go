package repository

import (
	"context"

	"gorm.io/gorm"

	"session-board/internal/model"
)

// AllocationRunRepository 周期动作运行记录数据访问接口
type AllocationRunRepository interface {
	Create(ctx context.Context, run *model.AllocationRun) error
	List(ctx context.Context, action string, offset, limit int) ([]model.AllocationRun, int64, error)
}

type allocationRunRepo struct {
	db *gorm.DB
}

func NewAllocationRunRepo(db *gorm.DB) AllocationRunRepository {
	return &allocationRunRepo{db: db}
}

func (r *allocationRunRepo) Create(ctx context.Context, run *model.AllocationRun) error {
	return r.db.WithContext(ctx).Create(run).Error
}

func (r *allocationRunRepo) List(ctx context.Context, action string, offset, limit int) ([]model.AllocationRun, int64, error) {
	var (
		list  []model.AllocationRun
		total int64
	)
	query := r.db.WithContext(ctx).Model(&model.AllocationRun{})
	if action != "" {
		query = query.Where("action = ?", action)
	}
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	err := query.Order("started_at DESC").Offset(offset).Limit(limit).Find(&list).Error
	return list, total, err
}
