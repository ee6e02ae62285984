package reservation

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"rentcore/internal/domain"
	"rentcore/internal/logging"
	"rentcore/internal/pkg/cache"
	"rentcore/internal/repository"
	"rentcore/internal/service/catalog"
	"rentcore/internal/service/conflict"
)

// ConflictLookup is the input of the read-only conflict lookup. An empty
// ResourceIDs scope means every active equipment unit.
type ConflictLookup struct {
	ResourceIDs  []uuid.UUID
	Start        time.Time
	End          time.Time
	ExcludeID    *uuid.UUID
	ApprovedOnly bool
}

type MyStatus struct {
	Reservations []domain.Reservation         `json:"reservations"`
	Facilities   []domain.FacilityReservation `json:"facilities"`
}

type Service interface {
	Create(ctx context.Context, actor domain.Actor, input domain.CreateReservationInput) (*domain.Reservation, error)
	CreateManual(ctx context.Context, actor domain.Actor, input domain.CreateReservationInput) (*domain.Reservation, error)
	Update(ctx context.Context, actor domain.Actor, id uuid.UUID, input domain.UpdateReservationInput) (*domain.Reservation, error)
	Delete(ctx context.Context, actor domain.Actor, id uuid.UUID) error
	Conflicts(ctx context.Context, lookup ConflictLookup) ([]uuid.UUID, error)
	GetByID(ctx context.Context, actor domain.Actor, id uuid.UUID) (*domain.Reservation, error)
	List(ctx context.Context, filter domain.ReservationFilter, params domain.PaginationParams) (domain.PaginatedResponse[domain.Reservation], error)
	ApprovedEquipmentOn(ctx context.Context, day time.Time) ([]uuid.UUID, error)
	Calendar(ctx context.Context, from, to time.Time) ([]domain.CalendarEvent, error)
	MyStatus(ctx context.Context, userID uuid.UUID) (*MyStatus, error)
}

type service struct {
	store     repository.Store
	userRepo  repository.UserRepository
	auditRepo repository.AuditLogRepository
	redis     *redis.Client
	calendar  *cache.Generation
	cacheTTL  time.Duration
	now       func() time.Time
}

func NewService(store repository.Store, userRepo repository.UserRepository, auditRepo repository.AuditLogRepository, redis *redis.Client, cacheTTL time.Duration) Service {
	return &service{
		store:     store,
		userRepo:  userRepo,
		auditRepo: auditRepo,
		redis:     redis,
		calendar:  cache.NewGeneration(redis, cache.CalendarPrefix),
		cacheTTL:  cacheTTL,
		now:       time.Now,
	}
}

func (s *service) Create(ctx context.Context, actor domain.Actor, input domain.CreateReservationInput) (*domain.Reservation, error) {
	ownerID, err := s.ownerFor(ctx, actor, input.UserID)
	if err != nil {
		return nil, err
	}

	created, err := s.create(ctx, ownerID, input, domain.StatusPending)
	if err != nil {
		return nil, err
	}

	cache.Delete(ctx, s.redis, cache.PendingCountsKey)
	logging.FromContext(ctx).Info("reservation created",
		"reservation_id", created.ID, "user_id", ownerID, "resources", len(created.Items))
	return created, nil
}

// CreateManual books on behalf of a user and skips the approval step. The
// booked equipment is stamped with the reservation as its current rental.
func (s *service) CreateManual(ctx context.Context, actor domain.Actor, input domain.CreateReservationInput) (*domain.Reservation, error) {
	if !actor.IsAdmin() {
		return nil, domain.ErrForbidden
	}
	if input.UserID == nil {
		return nil, domain.NewValidationError("user_id", "is required")
	}
	ownerID, err := s.ownerFor(ctx, actor, input.UserID)
	if err != nil {
		return nil, err
	}

	created, err := s.create(ctx, ownerID, input, domain.StatusApproved)
	if err != nil {
		return nil, err
	}

	s.calendar.Bump(ctx)
	if err := repository.CreateAuditLog(ctx, s.auditRepo, domain.CreateAuditLogInput{
		ActorID:    actor.UserID,
		Action:     domain.AuditManualReservation,
		EntityType: domain.EntityReservation,
		EntityID:   created.ID,
		ToStatus:   domain.StatusApproved,
		Detail:     map[string]interface{}{"user_id": ownerID, "resource_ids": created.ResourceIDs()},
		Meta:       actor.Meta,
	}); err != nil {
		logging.FromContext(ctx).Error("failed to write audit log", "reservation_id", created.ID, "error", err)
	}

	logging.FromContext(ctx).Info("manual reservation created",
		"reservation_id", created.ID, "user_id", ownerID, "admin_id", actor.UserID)
	return created, nil
}

func (s *service) ownerFor(ctx context.Context, actor domain.Actor, requested *uuid.UUID) (uuid.UUID, error) {
	if requested == nil || *requested == actor.UserID {
		return actor.UserID, nil
	}
	if !actor.IsAdmin() {
		return uuid.Nil, domain.ErrForbidden
	}
	user, err := s.userRepo.GetByID(ctx, *requested)
	if err != nil {
		return uuid.Nil, err
	}
	if user == nil {
		return uuid.Nil, domain.NewValidationError("user_id", "unknown user")
	}
	return user.ID, nil
}

func validateRequest(resourceIDs []uuid.UUID, start, end time.Time) error {
	v := domain.ValidateWindow(start, end)
	if len(resourceIDs) == 0 {
		v.Add("resource_ids", "at least one resource is required")
	}
	for _, id := range resourceIDs {
		if id == uuid.Nil {
			v.Add("resource_ids", "contains an empty id")
			break
		}
	}
	return v.OrNil()
}

func (s *service) create(ctx context.Context, ownerID uuid.UUID, input domain.CreateReservationInput, status domain.ReservationStatus) (*domain.Reservation, error) {
	if err := validateRequest(input.ResourceIDs, input.StartAt, input.EndAt); err != nil {
		return nil, err
	}

	var created *domain.Reservation
	err := s.store.Transact(ctx, func(tx repository.Tx) error {
		resources, err := catalog.ResolveWith(ctx, tx.Resources(), input.ResourceIDs, domain.KindEquipment)
		if err != nil {
			return err
		}
		ids := resourceIDs(resources)

		if err := tx.Resources().LockByIDs(ctx, ids); err != nil {
			return fmt.Errorf("lock resources: %w", err)
		}

		if err := conflict.Check(ctx, tx.Reservations(), domain.ConflictQuery{
			ResourceIDs:      ids,
			Start:            input.StartAt,
			End:              input.EndAt,
			BlockingStatuses: domain.BookingBlockingStatuses,
		}, false); err != nil {
			return err
		}

		reservation := &domain.Reservation{
			ID:          uuid.New(),
			UserID:      ownerID,
			StartAt:     input.StartAt,
			EndAt:       input.EndAt,
			Status:      status,
			SubjectName: trimmed(input.SubjectName),
			Purpose:     trimmed(input.Purpose),
		}
		if status == domain.StatusApproved {
			reviewedAt := s.now()
			reservation.ReviewedAt = &reviewedAt
		}
		if err := tx.Reservations().Create(ctx, reservation); err != nil {
			return fmt.Errorf("create reservation: %w", err)
		}

		items, err := tx.Reservations().InsertItems(ctx, reservation.ID, ids)
		if err != nil {
			return fmt.Errorf("insert reservation items: %w", err)
		}
		reservation.Items = withSummaries(items, resources)

		if status == domain.StatusApproved {
			if err := tx.Resources().SetCurrentReservation(ctx, ids, reservation.ID); err != nil {
				return fmt.Errorf("stamp current reservation: %w", err)
			}
		}

		created = reservation
		return nil
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

// Update replaces the window and the full item set of a reservation. Owners
// may edit their own undecided requests; administrators may edit any.
func (s *service) Update(ctx context.Context, actor domain.Actor, id uuid.UUID, input domain.UpdateReservationInput) (*domain.Reservation, error) {
	if err := validateRequest(input.ResourceIDs, input.StartAt, input.EndAt); err != nil {
		return nil, err
	}

	var updated *domain.Reservation
	err := s.store.Transact(ctx, func(tx repository.Tx) error {
		existing, err := tx.Reservations().GetByID(ctx, id)
		if err != nil {
			return err
		}
		if existing == nil {
			return domain.ErrReservationNotFound
		}
		if !actor.CanManage(existing.UserID) {
			return domain.ErrForbidden
		}

		resources, err := catalog.ResolveWith(ctx, tx.Resources(), input.ResourceIDs, domain.KindEquipment)
		if err != nil {
			return err
		}
		ids := resourceIDs(resources)

		if err := tx.Resources().LockByIDs(ctx, unionIDs(existing.ResourceIDs(), ids)); err != nil {
			return fmt.Errorf("lock resources: %w", err)
		}

		current, err := tx.Reservations().GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if current == nil {
			return domain.ErrReservationNotFound
		}
		if !actor.IsAdmin() && current.Status != domain.StatusPending {
			return &domain.AlreadyDecidedError{ID: id, Status: current.Status}
		}
		if current.Status == domain.StatusRejected {
			return &domain.AlreadyDecidedError{ID: id, Status: current.Status}
		}

		if err := conflict.Check(ctx, tx.Reservations(), domain.ConflictQuery{
			ResourceIDs:      ids,
			Start:            input.StartAt,
			End:              input.EndAt,
			BlockingStatuses: domain.BookingBlockingStatuses,
			ExcludeID:        &id,
		}, false); err != nil {
			return err
		}

		current.StartAt = input.StartAt
		current.EndAt = input.EndAt
		current.SubjectName = trimmed(input.SubjectName)
		current.Purpose = trimmed(input.Purpose)
		if err := tx.Reservations().UpdateWindow(ctx, current); err != nil {
			return fmt.Errorf("update reservation: %w", err)
		}

		if err := tx.Reservations().DeleteItems(ctx, id); err != nil {
			return fmt.Errorf("delete reservation items: %w", err)
		}
		items, err := tx.Reservations().InsertItems(ctx, id, ids)
		if err != nil {
			return fmt.Errorf("insert reservation items: %w", err)
		}
		current.Items = withSummaries(items, resources)

		// Only envelopes that already carry back-references get them moved.
		stamped, err := tx.Resources().ClearCurrentReservation(ctx, id)
		if err != nil {
			return fmt.Errorf("clear current reservation: %w", err)
		}
		if stamped {
			if err := tx.Resources().SetCurrentReservation(ctx, ids, id); err != nil {
				return fmt.Errorf("stamp current reservation: %w", err)
			}
		}

		updated = current
		return nil
	})
	if err != nil {
		return nil, err
	}

	if updated.Status == domain.StatusApproved {
		s.calendar.Bump(ctx)
	}
	return updated, nil
}

func (s *service) Delete(ctx context.Context, actor domain.Actor, id uuid.UUID) error {
	var deleted *domain.Reservation
	err := s.store.Transact(ctx, func(tx repository.Tx) error {
		existing, err := tx.Reservations().GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if existing == nil {
			return domain.ErrReservationNotFound
		}
		if !actor.CanManage(existing.UserID) {
			return domain.ErrForbidden
		}
		if !actor.IsAdmin() && existing.Status != domain.StatusPending {
			return &domain.AlreadyDecidedError{ID: id, Status: existing.Status}
		}

		if _, err := tx.Resources().ClearCurrentReservation(ctx, id); err != nil {
			return fmt.Errorf("clear current reservation: %w", err)
		}
		ok, err := tx.Reservations().Delete(ctx, id)
		if err != nil {
			return fmt.Errorf("delete reservation: %w", err)
		}
		if !ok {
			return domain.ErrReservationNotFound
		}
		deleted = existing
		return nil
	})
	if err != nil {
		return err
	}

	if deleted.Status == domain.StatusApproved {
		s.calendar.Bump(ctx)
	}
	cache.Delete(ctx, s.redis, cache.PendingCountsKey)
	if err := repository.CreateAuditLog(ctx, s.auditRepo, domain.CreateAuditLogInput{
		ActorID:    actor.UserID,
		Action:     domain.AuditDeleteReservation,
		EntityType: domain.EntityReservation,
		EntityID:   id,
		FromStatus: deleted.Status,
		Detail:     map[string]interface{}{"user_id": deleted.UserID, "resource_ids": deleted.ResourceIDs()},
		Meta:       actor.Meta,
	}); err != nil {
		logging.FromContext(ctx).Error("failed to write audit log", "reservation_id", id, "error", err)
	}
	return nil
}

func (s *service) Conflicts(ctx context.Context, lookup ConflictLookup) ([]uuid.UUID, error) {
	if err := domain.ValidateWindow(lookup.Start, lookup.End).OrNil(); err != nil {
		return nil, err
	}

	scope := lookup.ResourceIDs
	if len(scope) == 0 {
		equipment, err := s.store.Resources().List(ctx, domain.ResourceFilter{Kind: kindPtr(domain.KindEquipment), ActiveOnly: true})
		if err != nil {
			return nil, err
		}
		scope = make([]uuid.UUID, len(equipment))
		for i, r := range equipment {
			scope[i] = r.ID
		}
	}

	statuses := domain.BookingBlockingStatuses
	if lookup.ApprovedOnly {
		statuses = domain.ApprovalBlockingStatuses
	}

	return conflict.ConflictingResourceIDs(ctx, s.store.Reservations(), domain.ConflictQuery{
		ResourceIDs:      scope,
		Start:            lookup.Start,
		End:              lookup.End,
		BlockingStatuses: statuses,
		ExcludeID:        lookup.ExcludeID,
	})
}

func (s *service) GetByID(ctx context.Context, actor domain.Actor, id uuid.UUID) (*domain.Reservation, error) {
	reservation, err := s.store.Reservations().GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if reservation == nil {
		return nil, domain.ErrReservationNotFound
	}
	if !actor.CanManage(reservation.UserID) {
		return nil, domain.ErrReservationNotFound
	}
	s.attachUsers(ctx, []*domain.Reservation{reservation})
	return reservation, nil
}

func (s *service) List(ctx context.Context, filter domain.ReservationFilter, params domain.PaginationParams) (domain.PaginatedResponse[domain.Reservation], error) {
	params.Normalize()
	reservations, total, err := s.store.Reservations().List(ctx, filter, params)
	if err != nil {
		return domain.PaginatedResponse[domain.Reservation]{}, err
	}

	ptrs := make([]*domain.Reservation, len(reservations))
	for i := range reservations {
		ptrs[i] = &reservations[i]
	}
	s.attachUsers(ctx, ptrs)

	return domain.NewPaginatedResponse(reservations, params, total), nil
}

// ApprovedEquipmentOn returns the equipment ids held by approved
// reservations touching the calendar day that contains day.
func (s *service) ApprovedEquipmentOn(ctx context.Context, day time.Time) ([]uuid.UUID, error) {
	from := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, day.Location())
	to := from.AddDate(0, 0, 1).Add(-time.Nanosecond)

	reservations, err := s.store.Reservations().ListInWindow(ctx, domain.ApprovalBlockingStatuses, from, to)
	if err != nil {
		return nil, err
	}

	var ids []uuid.UUID
	for _, r := range reservations {
		ids = append(ids, r.ResourceIDs()...)
	}
	return domain.UniqueIDs(ids), nil
}

// Calendar lists approved equipment and facility bookings in [from, to].
func (s *service) Calendar(ctx context.Context, from, to time.Time) ([]domain.CalendarEvent, error) {
	if err := domain.ValidateWindow(from, to).OrNil(); err != nil {
		return nil, err
	}

	key := s.calendar.Key(ctx, from.UTC().Format(time.RFC3339), to.UTC().Format(time.RFC3339))
	var events []domain.CalendarEvent
	if cache.GetJSON(ctx, s.redis, key, &events) {
		return events, nil
	}

	reservations, err := s.store.Reservations().ListInWindow(ctx, domain.ApprovalBlockingStatuses, from, to)
	if err != nil {
		return nil, err
	}
	facilities, err := s.store.FacilityReservations().ListInWindow(ctx, domain.ApprovalBlockingStatuses, from, to)
	if err != nil {
		return nil, err
	}

	userIDs := make([]uuid.UUID, 0, len(reservations)+len(facilities))
	for _, r := range reservations {
		userIDs = append(userIDs, r.UserID)
	}
	for _, f := range facilities {
		userIDs = append(userIDs, f.UserID)
	}
	users, err := s.userRepo.GetSummaries(ctx, domain.UniqueIDs(userIDs))
	if err != nil {
		logging.FromContext(ctx).Warn("failed to load calendar users", "error", err)
		users = nil
	}

	events = make([]domain.CalendarEvent, 0, len(reservations)+len(facilities))
	for _, r := range reservations {
		names := make([]string, 0, len(r.Items))
		for _, item := range r.Items {
			if item.Resource != nil {
				names = append(names, item.Resource.Name)
			}
		}
		events = append(events, domain.CalendarEvent{
			ReservationID: r.ID,
			Kind:          domain.KindEquipment,
			Title:         withOwner(strings.Join(names, ", "), users, r.UserID),
			Start:         r.StartAt,
			End:           r.EndAt,
			Status:        r.Status,
		})
	}
	for _, f := range facilities {
		title := ""
		if f.Facility != nil {
			title = f.Facility.Name
		}
		events = append(events, domain.CalendarEvent{
			ReservationID: f.ID,
			Kind:          domain.KindFacility,
			Title:         withOwner(title, users, f.UserID),
			Start:         f.StartAt,
			End:           f.EndAt,
			Status:        f.Status,
		})
	}
	sort.SliceStable(events, func(i, j int) bool { return events[i].Start.Before(events[j].Start) })

	cache.SetJSON(ctx, s.redis, key, events, s.cacheTTL)
	return events, nil
}

const myStatusLimit = 100

func (s *service) MyStatus(ctx context.Context, userID uuid.UUID) (*MyStatus, error) {
	params := domain.PaginationParams{Page: 1, PageSize: myStatusLimit}

	reservations, _, err := s.store.Reservations().List(ctx, domain.ReservationFilter{UserID: &userID}, params)
	if err != nil {
		return nil, err
	}
	facilities, _, err := s.store.FacilityReservations().List(ctx, domain.FacilityReservationFilter{UserID: &userID}, params)
	if err != nil {
		return nil, err
	}

	if reservations == nil {
		reservations = []domain.Reservation{}
	}
	if facilities == nil {
		facilities = []domain.FacilityReservation{}
	}
	return &MyStatus{Reservations: reservations, Facilities: facilities}, nil
}

func (s *service) attachUsers(ctx context.Context, reservations []*domain.Reservation) {
	if len(reservations) == 0 {
		return
	}
	ids := make([]uuid.UUID, len(reservations))
	for i, r := range reservations {
		ids[i] = r.UserID
	}
	users, err := s.userRepo.GetSummaries(ctx, domain.UniqueIDs(ids))
	if err != nil {
		logging.FromContext(ctx).Warn("failed to load reservation users", "error", err)
		return
	}
	for _, r := range reservations {
		if u, ok := users[r.UserID]; ok {
			u := u
			r.User = &u
		}
	}
}

func withOwner(title string, users map[uuid.UUID]domain.UserSummary, userID uuid.UUID) string {
	u, ok := users[userID]
	if !ok {
		return title
	}
	if title == "" {
		return u.Name
	}
	return title + " (" + u.Name + ")"
}

func withSummaries(items []domain.ReservationItem, resources []domain.Resource) []domain.ReservationItem {
	byID := make(map[uuid.UUID]domain.Resource, len(resources))
	for _, r := range resources {
		byID[r.ID] = r
	}
	for i := range items {
		if r, ok := byID[items[i].ResourceID]; ok {
			items[i].Resource = &domain.ResourceSummary{ID: r.ID, Kind: r.Kind, CatalogKey: r.CatalogKey, Name: r.Name}
		}
	}
	return items
}

func resourceIDs(resources []domain.Resource) []uuid.UUID {
	ids := make([]uuid.UUID, len(resources))
	for i, r := range resources {
		ids[i] = r.ID
	}
	return ids
}

func unionIDs(a, b []uuid.UUID) []uuid.UUID {
	return domain.UniqueIDs(append(append([]uuid.UUID{}, a...), b...))
}

func trimmed(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	if v == "" {
		return nil
	}
	return &v
}

func kindPtr(k domain.ResourceKind) *domain.ResourceKind {
	return &k
}
