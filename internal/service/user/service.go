package user

import (
	"context"

	"github.com/google/uuid"

	"rentcore/internal/domain"
	"rentcore/internal/repository"
)

type Service interface {
	GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error)
	List(ctx context.Context, role *domain.UserRole, params domain.PaginationParams) (domain.PaginatedResponse[domain.User], error)
}

type service struct {
	userRepo repository.UserRepository
}

func NewService(userRepo repository.UserRepository) Service {
	return &service{userRepo: userRepo}
}

func (s *service) GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	user, err := s.userRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, domain.ErrUserNotFound
	}
	return user, nil
}

func (s *service) List(ctx context.Context, role *domain.UserRole, params domain.PaginationParams) (domain.PaginatedResponse[domain.User], error) {
	if role != nil && !role.IsValid() {
		return domain.PaginatedResponse[domain.User]{}, domain.NewValidationError("role", "must be USER or ADMIN")
	}
	params.Normalize()
	users, total, err := s.userRepo.List(ctx, role, params)
	if err != nil {
		return domain.PaginatedResponse[domain.User]{}, err
	}
	return domain.NewPaginatedResponse(users, params, total), nil
}
