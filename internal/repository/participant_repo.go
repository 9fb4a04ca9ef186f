package repository

import (
	"context"

	"gorm.io/gorm"

	"session-board/internal/model"
)

// ParticipantRepository 参与者数据访问接口
type ParticipantRepository interface {
	Create(ctx context.Context, p *model.Participant) error
	GetByID(ctx context.Context, id string) (*model.Participant, error)
	List(ctx context.Context, offset, limit int) ([]model.Participant, int64, error)
	ListByIDs(ctx context.Context, ids []string) ([]model.Participant, error)
	UpdateProfile(ctx context.Context, p *model.Participant) error
	// ApplyReputationDeltas 在一个事务中累加声望并写入流水
	ApplyReputationDeltas(ctx context.Context, logs []model.ReputationLog) error
}

type participantRepo struct {
	db *gorm.DB
}

func NewParticipantRepo(db *gorm.DB) ParticipantRepository {
	return &participantRepo{db: db}
}

func (r *participantRepo) Create(ctx context.Context, p *model.Participant) error {
	return r.db.WithContext(ctx).Create(p).Error
}

func (r *participantRepo) GetByID(ctx context.Context, id string) (*model.Participant, error) {
	var p model.Participant
	err := r.db.WithContext(ctx).Where("participant_id = ?", id).First(&p).Error
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *participantRepo) List(ctx context.Context, offset, limit int) ([]model.Participant, int64, error) {
	var (
		list  []model.Participant
		total int64
	)
	query := r.db.WithContext(ctx).Model(&model.Participant{})
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	err := query.Order("reputation DESC, display_name ASC").
		Offset(offset).Limit(limit).
		Find(&list).Error
	return list, total, err
}

func (r *participantRepo) ListByIDs(ctx context.Context, ids []string) ([]model.Participant, error) {
	var list []model.Participant
	if len(ids) == 0 {
		return list, nil
	}
	err := r.db.WithContext(ctx).Where("participant_id IN ?", ids).Find(&list).Error
	return list, err
}

func (r *participantRepo) UpdateProfile(ctx context.Context, p *model.Participant) error {
	return r.db.WithContext(ctx).
		Model(&model.Participant{}).
		Where("participant_id = ?", p.ParticipantID).
		Updates(map[string]interface{}{
			"story_participant": p.StoryParticipant,
			"personal_room":     p.PersonalRoom,
		}).Error
}

func (r *participantRepo) ApplyReputationDeltas(ctx context.Context, logs []model.ReputationLog) error {
	if len(logs) == 0 {
		return nil
	}

	totals := make(map[string]int)
	order := make([]string, 0)
	for _, l := range logs {
		if _, ok := totals[l.ParticipantID]; !ok {
			order = append(order, l.ParticipantID)
		}
		totals[l.ParticipantID] += l.Delta
	}

	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// 固定顺序加锁，避免并发结算互相死锁
		for _, id := range order {
			err := tx.Model(&model.Participant{}).
				Where("participant_id = ?", id).
				Update("reputation", gorm.Expr("reputation + ?", totals[id])).Error
			if err != nil {
				return err
			}
		}
		return tx.CreateInBatches(logs, 200).Error
	})
}
