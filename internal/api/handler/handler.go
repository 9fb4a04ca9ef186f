package handler

import "session-board/internal/service"

// Handler 所有 Handler 的聚合入口
type Handler struct {
	Participant *ParticipantHandler
	Session     *SessionHandler
	Signup      *SignupHandler
	Assignment  *AssignmentHandler
	Admin       *AdminHandler
	Export      *ExportHandler
}

// NewHandler 创建 Handler 聚合
func NewHandler(svc *service.Service) *Handler {
	return &Handler{
		Participant: NewParticipantHandler(svc.Participant, svc.Karma),
		Session:     NewSessionHandler(svc.Session),
		Signup:      NewSignupHandler(svc.Signup),
		Assignment:  NewAssignmentHandler(svc.Assignment),
		Admin:       NewAdminHandler(svc.Cycle),
		Export:      NewExportHandler(svc.Export),
	}
}
