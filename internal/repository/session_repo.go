package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"session-board/internal/model"
	pkgerrors "session-board/pkg/errors"
)

// SessionRepository 场次数据访问接口
type SessionRepository interface {
	Create(ctx context.Context, s *model.Session) error
	// BatchCreate 在一个事务中创建一组场次（连续场次链）
	BatchCreate(ctx context.Context, sessions []model.Session) error
	GetByID(ctx context.Context, id string) (*model.Session, error)
	ListByIDs(ctx context.Context, ids []string) ([]model.Session, error)
	// ListByDateRange 日期闭区间 [start, end] 内的场次，预加载创建者
	ListByDateRange(ctx context.Context, start, end time.Time) ([]model.Session, error)
	Update(ctx context.Context, s *model.Session) error
	GetCurrentWaitingList(ctx context.Context) (*model.Session, error)
	// ReplaceWaitingList 把旧候补标记为历史并创建新候补，stale 可为 nil
	ReplaceWaitingList(ctx context.Context, stale *model.Session, fresh *model.Session) error
	UpdateRooms(ctx context.Context, rooms map[string]string) error
	SetReleased(ctx context.Context, start, end time.Time, released bool) (int64, error)
}

type sessionRepo struct {
	db *gorm.DB
}

func NewSessionRepo(db *gorm.DB) SessionRepository {
	return &sessionRepo{db: db}
}

func (r *sessionRepo) Create(ctx context.Context, s *model.Session) error {
	return r.db.WithContext(ctx).Create(s).Error
}

func (r *sessionRepo) BatchCreate(ctx context.Context, sessions []model.Session) error {
	if len(sessions) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// 逐条插入，后一场的 predecessor_id 依赖前一场已落库
		for i := range sessions {
			if err := tx.Create(&sessions[i]).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

func (r *sessionRepo) GetByID(ctx context.Context, id string) (*model.Session, error) {
	var s model.Session
	err := r.db.WithContext(ctx).
		Preload("Creator").
		Where("session_id = ?", id).
		First(&s).Error
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *sessionRepo) ListByIDs(ctx context.Context, ids []string) ([]model.Session, error) {
	var list []model.Session
	if len(ids) == 0 {
		return list, nil
	}
	err := r.db.WithContext(ctx).Where("session_id IN ?", ids).Find(&list).Error
	return list, err
}

func (r *sessionRepo) ListByDateRange(ctx context.Context, start, end time.Time) ([]model.Session, error) {
	var list []model.Session
	err := r.db.WithContext(ctx).
		Preload("Creator").
		Where("scheduled_date >= ? AND scheduled_date <= ?", dateOnly(start), dateOnly(end)).
		Order("scheduled_date ASC, title ASC").
		Find(&list).Error
	return list, err
}

func (r *sessionRepo) Update(ctx context.Context, s *model.Session) error {
	oldVersion := s.Version
	result := r.db.WithContext(ctx).
		Model(&model.Session{}).
		Where("session_id = ? AND version = ?", s.SessionID, oldVersion).
		Updates(map[string]interface{}{
			"title":              s.Title,
			"description":        s.Description,
			"capacity":           s.Capacity,
			"exclude_from_karma": s.ExcludeFromKarma,
			"story_session":      s.StorySession,
			"requested_room":     s.RequestedRoom,
			"version":            oldVersion + 1,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return pkgerrors.ErrOptimisticLock
	}
	s.Version = oldVersion + 1
	return nil
}

func (r *sessionRepo) GetCurrentWaitingList(ctx context.Context) (*model.Session, error) {
	var s model.Session
	err := r.db.WithContext(ctx).
		Where("waiting_list = ?", model.WaitingListCurrent).
		First(&s).Error
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *sessionRepo) ReplaceWaitingList(ctx context.Context, stale *model.Session, fresh *model.Session) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if stale != nil {
			err := tx.Model(&model.Session{}).
				Where("session_id = ?", stale.SessionID).
				Updates(map[string]interface{}{
					"waiting_list": model.WaitingListFormer,
					"version":      gorm.Expr("version + 1"),
				}).Error
			if err != nil {
				return err
			}
		}
		return tx.Create(fresh).Error
	})
}

func (r *sessionRepo) UpdateRooms(ctx context.Context, rooms map[string]string) error {
	if len(rooms) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for sessionID, room := range rooms {
			err := tx.Model(&model.Session{}).
				Where("session_id = ?", sessionID).
				Update("requested_room", room).Error
			if err != nil {
				return err
			}
		}
		return nil
	})
}

func (r *sessionRepo) SetReleased(ctx context.Context, start, end time.Time, released bool) (int64, error) {
	result := r.db.WithContext(ctx).
		Model(&model.Session{}).
		Where("scheduled_date >= ? AND scheduled_date <= ?", dateOnly(start), dateOnly(end)).
		Update("release_assignments", released)
	return result.RowsAffected, result.Error
}
