package service

import (
	"context"
	"errors"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"session-board/internal/dto"
	"session-board/internal/model"
	"session-board/internal/repository"
)

// ParticipantService 参与者业务接口
type ParticipantService interface {
	GetByID(ctx context.Context, id string) (*dto.ParticipantResponse, error)
	List(ctx context.Context, req *dto.PaginationRequest) ([]dto.ParticipantResponse, int64, error)
	Update(ctx context.Context, id string, req *dto.UpdateParticipantRequest) (*dto.ParticipantResponse, error)
}

type participantService struct {
	repo   *repository.Repository
	logger *zap.Logger
}

// NewParticipantService 创建 ParticipantService 实例
func NewParticipantService(repo *repository.Repository, logger *zap.Logger) ParticipantService {
	return &participantService{repo: repo, logger: logger}
}

func (s *participantService) GetByID(ctx context.Context, id string) (*dto.ParticipantResponse, error) {
	p, err := s.repo.Participant.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrParticipantNotFound
		}
		s.logger.Error("查询参与者失败", zap.Error(err))
		return nil, err
	}
	resp := toParticipantResponse(p)
	return &resp, nil
}

func (s *participantService) List(ctx context.Context, req *dto.PaginationRequest) ([]dto.ParticipantResponse, int64, error) {
	list, total, err := s.repo.Participant.List(ctx, req.GetOffset(), req.GetPageSize())
	if err != nil {
		s.logger.Error("查询参与者列表失败", zap.Error(err))
		return nil, 0, err
	}
	out := make([]dto.ParticipantResponse, 0, len(list))
	for i := range list {
		out = append(out, toParticipantResponse(&list[i]))
	}
	return out, total, nil
}

func (s *participantService) Update(ctx context.Context, id string, req *dto.UpdateParticipantRequest) (*dto.ParticipantResponse, error) {
	p, err := s.repo.Participant.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrParticipantNotFound
		}
		s.logger.Error("查询参与者失败", zap.Error(err))
		return nil, err
	}

	p.StoryParticipant = *req.StoryParticipant
	p.PersonalRoom = req.PersonalRoom
	if p.PersonalRoom != nil && *p.PersonalRoom == "" {
		p.PersonalRoom = nil
	}
	if err := s.repo.Participant.UpdateProfile(ctx, p); err != nil {
		s.logger.Error("更新参与者失败", zap.Error(err))
		return nil, err
	}

	resp := toParticipantResponse(p)
	return &resp, nil
}

func toParticipantResponse(p *model.Participant) dto.ParticipantResponse {
	return dto.ParticipantResponse{
		ID:               p.ParticipantID,
		DisplayName:      p.DisplayName,
		Role:             p.Role,
		Reputation:       p.Reputation,
		StoryParticipant: p.StoryParticipant,
		PersonalRoom:     p.PersonalRoom,
	}
}
