package dashboard

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"rentcore/internal/domain"
	"rentcore/internal/pkg/cache"
	"rentcore/internal/repository"
)

// RequestFilter narrows the merged admin request list. A nil Status lists
// every status; PENDING and REQUESTED both select undecided requests.
type RequestFilter struct {
	Status *domain.ReservationStatus
	Kind   *domain.RequestKind
}

type Service interface {
	PendingCounts(ctx context.Context) (*domain.PendingCounts, error)
	Requests(ctx context.Context, filter RequestFilter, params domain.PaginationParams) (domain.PaginatedResponse[domain.AdminRequest], error)
}

type service struct {
	store    repository.Store
	userRepo repository.UserRepository
	redis    *redis.Client
	cacheTTL time.Duration
}

func NewService(store repository.Store, userRepo repository.UserRepository, redis *redis.Client, cacheTTL time.Duration) Service {
	return &service{
		store:    store,
		userRepo: userRepo,
		redis:    redis,
		cacheTTL: cacheTTL,
	}
}

func (s *service) PendingCounts(ctx context.Context) (*domain.PendingCounts, error) {
	var counts domain.PendingCounts
	if cache.GetJSON(ctx, s.redis, cache.PendingCountsKey, &counts) {
		return &counts, nil
	}

	rental, err := s.store.Reservations().CountByStatus(ctx, domain.StatusPending)
	if err != nil {
		return nil, err
	}
	facility, err := s.store.FacilityReservations().CountByStatus(ctx, domain.StatusRequested)
	if err != nil {
		return nil, err
	}

	counts = domain.PendingCounts{
		Rental:   rental,
		Facility: facility,
		Total:    rental + facility,
	}
	cache.SetJSON(ctx, s.redis, cache.PendingCountsKey, counts, s.cacheTTL)
	return &counts, nil
}

func statusesFor(status *domain.ReservationStatus, kind domain.RequestKind) []domain.ReservationStatus {
	if status == nil {
		return nil
	}
	if status.IsUndecided() {
		if kind == domain.RequestFacility {
			return []domain.ReservationStatus{domain.StatusRequested}
		}
		return []domain.ReservationStatus{domain.StatusPending}
	}
	return []domain.ReservationStatus{*status}
}

// Requests merges equipment and facility requests, newest first.
func (s *service) Requests(ctx context.Context, filter RequestFilter, params domain.PaginationParams) (domain.PaginatedResponse[domain.AdminRequest], error) {
	params.Normalize()
	need := params.Offset() + params.PageSize

	var (
		merged []domain.AdminRequest
		total  int64
	)

	if filter.Kind == nil || *filter.Kind == domain.RequestRental {
		rf := domain.ReservationFilter{Statuses: statusesFor(filter.Status, domain.RequestRental)}
		rows, n, err := collect(need, func(p domain.PaginationParams) ([]domain.Reservation, int64, error) {
			return s.store.Reservations().List(ctx, rf, p)
		})
		if err != nil {
			return domain.PaginatedResponse[domain.AdminRequest]{}, err
		}
		total += n
		for i := range rows {
			r := rows[i]
			merged = append(merged, domain.AdminRequest{
				Kind:          domain.RequestRental,
				ID:            r.ID,
				Status:        r.Status,
				StartDateTime: r.StartAt,
				EndDateTime:   r.EndAt,
				CreatedAt:     r.CreatedAt,
				Rental:        &r,
			})
		}
	}

	if filter.Kind == nil || *filter.Kind == domain.RequestFacility {
		ff := domain.FacilityReservationFilter{Statuses: statusesFor(filter.Status, domain.RequestFacility)}
		rows, n, err := collect(need, func(p domain.PaginationParams) ([]domain.FacilityReservation, int64, error) {
			return s.store.FacilityReservations().List(ctx, ff, p)
		})
		if err != nil {
			return domain.PaginatedResponse[domain.AdminRequest]{}, err
		}
		total += n
		for i := range rows {
			f := rows[i]
			merged = append(merged, domain.AdminRequest{
				Kind:          domain.RequestFacility,
				ID:            f.ID,
				Status:        f.Status,
				StartDateTime: f.StartAt,
				EndDateTime:   f.EndAt,
				CreatedAt:     f.CreatedAt,
				Facility:      &f,
			})
		}
	}

	sort.SliceStable(merged, func(i, j int) bool { return merged[i].CreatedAt.After(merged[j].CreatedAt) })

	start := params.Offset()
	if start > len(merged) {
		start = len(merged)
	}
	end := start + params.PageSize
	if end > len(merged) {
		end = len(merged)
	}
	pageRows := merged[start:end]
	s.attachUsers(ctx, pageRows)

	return domain.NewPaginatedResponse(pageRows, params, total), nil
}

const collectPageSize = 100

// collect reads pages from fetch until it has n rows or the source runs out.
func collect[T any](n int, fetch func(domain.PaginationParams) ([]T, int64, error)) ([]T, int64, error) {
	var (
		out   []T
		total int64
	)
	for page := 1; len(out) < n; page++ {
		rows, count, err := fetch(domain.PaginationParams{Page: page, PageSize: collectPageSize})
		if err != nil {
			return nil, 0, err
		}
		total = count
		out = append(out, rows...)
		if len(rows) < collectPageSize {
			break
		}
	}
	if len(out) > n {
		out = out[:n]
	}
	return out, total, nil
}

func (s *service) attachUsers(ctx context.Context, rows []domain.AdminRequest) {
	ids := make([]uuid.UUID, 0, len(rows))
	for _, r := range rows {
		switch {
		case r.Rental != nil:
			ids = append(ids, r.Rental.UserID)
		case r.Facility != nil:
			ids = append(ids, r.Facility.UserID)
		}
	}
	if len(ids) == 0 {
		return
	}
	users, err := s.userRepo.GetSummaries(ctx, domain.UniqueIDs(ids))
	if err != nil {
		return
	}
	for _, r := range rows {
		switch {
		case r.Rental != nil:
			if u, ok := users[r.Rental.UserID]; ok {
				u := u
				r.Rental.User = &u
			}
		case r.Facility != nil:
			if u, ok := users[r.Facility.UserID]; ok {
				u := u
				r.Facility.User = &u
			}
		}
	}
}
