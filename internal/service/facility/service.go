package facility

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"rentcore/internal/domain"
	"rentcore/internal/logging"
	"rentcore/internal/pkg/cache"
	"rentcore/internal/repository"
	"rentcore/internal/service/conflict"
)

type Service interface {
	Create(ctx context.Context, actor domain.Actor, input domain.CreateFacilityReservationInput) (*domain.FacilityReservation, error)
	GetByID(ctx context.Context, actor domain.Actor, id uuid.UUID) (*domain.FacilityReservation, error)
	List(ctx context.Context, filter domain.FacilityReservationFilter, params domain.PaginationParams) (domain.PaginatedResponse[domain.FacilityReservation], error)
	Delete(ctx context.Context, actor domain.Actor, id uuid.UUID) error
}

type service struct {
	store    repository.Store
	userRepo repository.UserRepository
	redis    *redis.Client
	calendar *cache.Generation
}

func NewService(store repository.Store, userRepo repository.UserRepository, redis *redis.Client) Service {
	return &service{
		store:    store,
		userRepo: userRepo,
		redis:    redis,
		calendar: cache.NewGeneration(redis, cache.CalendarPrefix),
	}
}

func validateRoster(members []domain.TeamMember) *domain.ValidationError {
	v := &domain.ValidationError{}
	for i, m := range members {
		if strings.TrimSpace(m.Name) == "" {
			v.Add(fmt.Sprintf("team_members[%d].name", i), "is required")
		}
		if strings.TrimSpace(m.Department) == "" {
			v.Add(fmt.Sprintf("team_members[%d].department", i), "is required")
		}
		if strings.TrimSpace(m.StudentID) == "" {
			v.Add(fmt.Sprintf("team_members[%d].student_id", i), "is required")
		}
	}
	return v
}

func (s *service) Create(ctx context.Context, actor domain.Actor, input domain.CreateFacilityReservationInput) (*domain.FacilityReservation, error) {
	v := domain.ValidateWindow(input.StartAt, input.EndAt)
	for field, msg := range validateRoster(input.TeamMembers).FieldErrors {
		v.Add(field, msg)
	}
	if input.FacilityID == nil && strings.TrimSpace(input.FacilityName) == "" {
		v.Add("facility_id", "facility_id or facility_name is required")
	}
	if err := v.OrNil(); err != nil {
		return nil, err
	}

	var created *domain.FacilityReservation
	err := s.store.Transact(ctx, func(tx repository.Tx) error {
		facility, err := resolveFacility(ctx, tx.Resources(), input)
		if err != nil {
			return err
		}

		if err := tx.Resources().LockByIDs(ctx, []uuid.UUID{facility.ID}); err != nil {
			return fmt.Errorf("lock facility: %w", err)
		}

		if err := conflict.Check(ctx, tx.FacilityReservations(), domain.ConflictQuery{
			ResourceIDs:      []uuid.UUID{facility.ID},
			Start:            input.StartAt,
			End:              input.EndAt,
			BlockingStatuses: domain.FacilityBlockingStatuses,
		}, false); err != nil {
			return err
		}

		roster := domain.TeamRoster(append([]domain.TeamMember{}, input.TeamMembers...))
		fr := &domain.FacilityReservation{
			ID:          uuid.New(),
			UserID:      actor.UserID,
			FacilityID:  facility.ID,
			StartAt:     input.StartAt,
			EndAt:       input.EndAt,
			Status:      domain.StatusRequested,
			Purpose:     input.Purpose,
			TeamMembers: roster,
			Headcount:   domain.HeadcountFor(roster),
		}
		if err := tx.FacilityReservations().Create(ctx, fr); err != nil {
			return fmt.Errorf("create facility reservation: %w", err)
		}
		fr.Facility = &domain.ResourceSummary{
			ID:         facility.ID,
			Kind:       facility.Kind,
			CatalogKey: facility.CatalogKey,
			Name:       facility.Name,
		}

		created = fr
		return nil
	})
	if err != nil {
		return nil, err
	}

	cache.Delete(ctx, s.redis, cache.PendingCountsKey)
	logging.FromContext(ctx).Info("facility reservation requested",
		"reservation_id", created.ID, "facility_id", created.FacilityID, "headcount", created.Headcount)
	return created, nil
}

func resolveFacility(ctx context.Context, repo repository.ResourceRepository, input domain.CreateFacilityReservationInput) (*domain.Resource, error) {
	var (
		facility *domain.Resource
		err      error
	)
	if input.FacilityID != nil {
		facility, err = repo.GetByID(ctx, *input.FacilityID)
	} else {
		facility, err = repo.GetFacilityByName(ctx, input.FacilityName)
	}
	if err != nil {
		return nil, err
	}
	if facility == nil {
		return nil, domain.ErrResourceNotFound
	}
	if !facility.IsFacility() || !facility.IsActive {
		return nil, domain.NewValidationError("facility_id", "inactive or not a facility")
	}
	return facility, nil
}

func (s *service) GetByID(ctx context.Context, actor domain.Actor, id uuid.UUID) (*domain.FacilityReservation, error) {
	fr, err := s.store.FacilityReservations().GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if fr == nil || !actor.CanManage(fr.UserID) {
		return nil, domain.ErrReservationNotFound
	}
	s.attachUsers(ctx, []*domain.FacilityReservation{fr})
	return fr, nil
}

func (s *service) List(ctx context.Context, filter domain.FacilityReservationFilter, params domain.PaginationParams) (domain.PaginatedResponse[domain.FacilityReservation], error) {
	params.Normalize()
	rows, total, err := s.store.FacilityReservations().List(ctx, filter, params)
	if err != nil {
		return domain.PaginatedResponse[domain.FacilityReservation]{}, err
	}

	ptrs := make([]*domain.FacilityReservation, len(rows))
	for i := range rows {
		ptrs[i] = &rows[i]
	}
	s.attachUsers(ctx, ptrs)

	return domain.NewPaginatedResponse(rows, params, total), nil
}

func (s *service) Delete(ctx context.Context, actor domain.Actor, id uuid.UUID) error {
	var deleted *domain.FacilityReservation
	err := s.store.Transact(ctx, func(tx repository.Tx) error {
		fr, err := tx.FacilityReservations().GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if fr == nil {
			return domain.ErrReservationNotFound
		}
		if !actor.CanManage(fr.UserID) {
			return domain.ErrForbidden
		}
		ok, err := tx.FacilityReservations().Delete(ctx, id)
		if err != nil {
			return fmt.Errorf("delete facility reservation: %w", err)
		}
		if !ok {
			return domain.ErrReservationNotFound
		}
		deleted = fr
		return nil
	})
	if err != nil {
		return err
	}

	if deleted.Status == domain.StatusApproved {
		s.calendar.Bump(ctx)
	}
	cache.Delete(ctx, s.redis, cache.PendingCountsKey)
	return nil
}

func (s *service) attachUsers(ctx context.Context, rows []*domain.FacilityReservation) {
	if len(rows) == 0 {
		return
	}
	ids := make([]uuid.UUID, len(rows))
	for i, r := range rows {
		ids[i] = r.UserID
	}
	users, err := s.userRepo.GetSummaries(ctx, domain.UniqueIDs(ids))
	if err != nil {
		logging.FromContext(ctx).Warn("failed to load facility reservation users", "error", err)
		return
	}
	for _, r := range rows {
		if u, ok := users[r.UserID]; ok {
			u := u
			r.User = &u
		}
	}
}
