package audit

import (
	"context"

	"github.com/google/uuid"

	"rentcore/internal/domain"
	"rentcore/internal/repository"
)

type Service interface {
	List(ctx context.Context, params domain.PaginationParams) (domain.PaginatedResponse[domain.AuditLog], error)
	History(ctx context.Context, entityType string, entityID uuid.UUID) ([]domain.AuditLog, error)
}

type service struct {
	auditRepo repository.AuditLogRepository
}

func NewService(auditRepo repository.AuditLogRepository) Service {
	return &service{
		auditRepo: auditRepo,
	}
}

func (s *service) List(ctx context.Context, params domain.PaginationParams) (domain.PaginatedResponse[domain.AuditLog], error) {
	params.Normalize()
	logs, total, err := s.auditRepo.List(ctx, params)
	if err != nil {
		return domain.PaginatedResponse[domain.AuditLog]{}, err
	}
	return domain.NewPaginatedResponse(logs, params, total), nil
}

// History returns the decisions recorded for one reservation, oldest first.
func (s *service) History(ctx context.Context, entityType string, entityID uuid.UUID) ([]domain.AuditLog, error) {
	logs, err := s.auditRepo.ListByEntity(ctx, entityType, entityID)
	if err != nil {
		return nil, err
	}
	if logs == nil {
		logs = []domain.AuditLog{}
	}
	return logs, nil
}
