package reservation_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rentcore/internal/domain"
	"rentcore/internal/repository"
	"rentcore/internal/repository/memory"
	"rentcore/internal/service/conflict"
	"rentcore/internal/service/reservation"
)

func jan10(hour int) time.Time {
	return time.Date(2025, 1, 10, hour, 0, 0, 0, time.UTC)
}

type env struct {
	repos *repository.Repositories
	store *memory.Store
	svc   reservation.Service
	alice domain.Actor
	bob   domain.Actor
	admin domain.Actor
	e1    domain.Resource
	e2    domain.Resource
	room  domain.Resource
}

func equipment(key, name string) domain.Resource {
	status := domain.EquipmentAvailable
	return domain.Resource{
		ID:         uuid.New(),
		Kind:       domain.KindEquipment,
		CatalogKey: key,
		Name:       name,
		Category:   "camera",
		Status:     &status,
		IsActive:   true,
	}
}

func newEnv(t *testing.T) *env {
	t.Helper()
	repos := memory.NewRepositories()
	store := repos.Store.(*memory.Store)

	e := &env{
		repos: repos,
		store: store,
		e1:    equipment("CAM-001", "Camera 1"),
		e2:    equipment("CAM-002", "Camera 2"),
		room: domain.Resource{
			ID: uuid.New(), Kind: domain.KindFacility, CatalogKey: "ROOM-A", Name: "Studio A", Category: "studio", IsActive: true,
		},
	}
	store.Seed(e.e1, e.e2, e.room)

	ctx := context.Background()
	for _, u := range []*domain.Actor{&e.alice, &e.bob, &e.admin} {
		u.UserID = uuid.New()
		u.Role = domain.RoleUser
	}
	e.admin.Role = domain.RoleAdmin
	require.NoError(t, repos.User.Create(ctx, &domain.User{ID: e.alice.UserID, Email: "alice@example.com", Name: "Alice", Role: domain.RoleUser, IsActive: true}))
	require.NoError(t, repos.User.Create(ctx, &domain.User{ID: e.bob.UserID, Email: "bob@example.com", Name: "Bob", Role: domain.RoleUser, IsActive: true}))
	require.NoError(t, repos.User.Create(ctx, &domain.User{ID: e.admin.UserID, Email: "admin@example.com", Name: "Admin", Role: domain.RoleAdmin, IsActive: true}))

	e.svc = reservation.NewService(repos.Store, repos.User, repos.AuditLog, nil, time.Minute)
	return e
}

func request(start, end time.Time, ids ...uuid.UUID) domain.CreateReservationInput {
	return domain.CreateReservationInput{ResourceIDs: ids, StartAt: start, EndAt: end}
}

func TestCreate_ConflictScenario(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	r1, err := e.svc.Create(ctx, e.alice, request(jan10(9), jan10(11), e.e1.ID))
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPending, r1.Status)
	assert.Equal(t, e.alice.UserID, r1.UserID)
	require.Len(t, r1.Items, 1)
	assert.Equal(t, "Camera 1", r1.Items[0].Resource.Name)

	r2, err := e.svc.Create(ctx, e.bob, request(jan10(10), jan10(12), e.e1.ID))
	assert.Nil(t, r2)
	var ce *domain.ConflictError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, []uuid.UUID{e.e1.ID}, ce.ResourceIDs)
	assert.False(t, ce.AtApproval)
}

func TestCreate_TouchingWindowsConflict(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	_, err := e.svc.Create(ctx, e.alice, request(jan10(9), jan10(11), e.e1.ID))
	require.NoError(t, err)

	_, err = e.svc.Create(ctx, e.bob, request(jan10(11), jan10(13), e.e1.ID))
	assert.True(t, domain.IsConflict(err))

	_, err = e.svc.Create(ctx, e.bob, request(jan10(11), jan10(13), e.e2.ID))
	assert.NoError(t, err, "other resources are unaffected")
}

func TestCreate_MultiResourceReportsOnlyCollisions(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	_, err := e.svc.Create(ctx, e.alice, request(jan10(9), jan10(11), e.e2.ID))
	require.NoError(t, err)

	_, err = e.svc.Create(ctx, e.bob, request(jan10(10), jan10(12), e.e1.ID, e.e2.ID, e.e1.ID))
	var ce *domain.ConflictError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, []uuid.UUID{e.e2.ID}, ce.ResourceIDs)
}

func TestCreate_RejectedDoesNotBlock(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	r1, err := e.svc.Create(ctx, e.alice, request(jan10(9), jan10(11), e.e1.ID))
	require.NoError(t, err)

	ok, err := e.store.Reservations().UpdateStatus(ctx, domain.StatusTransition{
		ID: r1.ID, From: domain.StatusPending, To: domain.StatusRejected, ReviewedBy: e.admin.UserID, ReviewedAt: time.Now(),
	})
	require.NoError(t, err)
	require.True(t, ok)

	_, err = e.svc.Create(ctx, e.bob, request(jan10(9), jan10(11), e.e1.ID))
	assert.NoError(t, err)
}

func TestCreate_Validation(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	inactive := equipment("CAM-003", "Retired camera")
	inactive.IsActive = false
	e.store.Seed(inactive)

	tests := []struct {
		name  string
		input domain.CreateReservationInput
		field string
	}{
		{"no resources", request(jan10(9), jan10(11)), "resource_ids"},
		{"inverted window", request(jan10(11), jan10(9), e.e1.ID), "end_at"},
		{"zero length window", request(jan10(9), jan10(9), e.e1.ID), "end_at"},
		{"missing start", request(time.Time{}, jan10(9), e.e1.ID), "start_at"},
		{"inactive resource", request(jan10(9), jan10(11), inactive.ID), "resource_ids"},
		{"facility is not equipment", request(jan10(9), jan10(11), e.room.ID), "resource_ids"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := e.svc.Create(ctx, e.alice, tt.input)
			assert.Nil(t, res)
			var ve *domain.ValidationError
			require.ErrorAs(t, err, &ve)
			assert.Contains(t, ve.FieldErrors, tt.field)
		})
	}

	t.Run("unknown resource", func(t *testing.T) {
		res, err := e.svc.Create(ctx, e.alice, request(jan10(9), jan10(11), e.e1.ID, uuid.New()))
		assert.Nil(t, res)
		assert.ErrorIs(t, err, domain.ErrResourceNotFound)
	})

	list, err := e.svc.List(ctx, domain.ReservationFilter{}, domain.PaginationParams{})
	require.NoError(t, err)
	assert.Zero(t, list.TotalItems)
}

func TestCreate_OnBehalfOfAnotherUser(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	input := request(jan10(9), jan10(11), e.e1.ID)
	input.UserID = &e.bob.UserID

	_, err := e.svc.Create(ctx, e.alice, input)
	assert.ErrorIs(t, err, domain.ErrForbidden)

	res, err := e.svc.Create(ctx, e.admin, input)
	require.NoError(t, err)
	assert.Equal(t, e.bob.UserID, res.UserID)

	unknown := uuid.New()
	input.UserID = &unknown
	_, err = e.svc.Create(ctx, e.admin, input)
	assert.True(t, domain.IsValidation(err))
}

// failingStore lets the envelope insert succeed and then fails the item insert.
type failingStore struct {
	repository.Store
}

func (f failingStore) Transact(ctx context.Context, fn func(tx repository.Tx) error) error {
	return f.Store.Transact(ctx, func(tx repository.Tx) error {
		return fn(failingTx{tx})
	})
}

type failingTx struct {
	repository.Tx
}

func (t failingTx) Reservations() repository.ReservationRepository {
	return failingReservations{t.Tx.Reservations()}
}

type failingReservations struct {
	repository.ReservationRepository
}

func (failingReservations) InsertItems(context.Context, uuid.UUID, []uuid.UUID) ([]domain.ReservationItem, error) {
	return nil, errors.New("disk full")
}

func TestCreate_EnvelopeAndItemsAreAtomic(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	svc := reservation.NewService(failingStore{e.store}, e.repos.User, e.repos.AuditLog, nil, time.Minute)
	_, err := svc.Create(ctx, e.alice, request(jan10(9), jan10(11), e.e1.ID))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")

	rows, total, err := e.store.Reservations().List(ctx, domain.ReservationFilter{}, domain.PaginationParams{})
	require.NoError(t, err)
	assert.Zero(t, total)
	assert.Empty(t, rows)

	// the resource is still bookable
	_, err = e.svc.Create(ctx, e.bob, request(jan10(9), jan10(11), e.e1.ID))
	assert.NoError(t, err)
}

func TestCreate_ConcurrentSingleWinner(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	const n = 100
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		winners   int
		conflicts int
		others    []error
	)
	start := make(chan struct{})
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			actor := e.alice
			if i%2 == 1 {
				actor = e.bob
			}
			// alternate identical and shifted-but-overlapping windows
			s, end := jan10(9), jan10(11)
			if i%3 == 0 {
				s, end = jan10(10), jan10(12)
			}
			_, err := e.svc.Create(ctx, actor, request(s, end, e.e1.ID))

			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				winners++
			case domain.IsConflict(err):
				conflicts++
			default:
				others = append(others, err)
			}
		}(i)
	}
	close(start)
	wg.Wait()

	assert.Empty(t, others)
	assert.Equal(t, 1, winners)
	assert.Equal(t, n-1, conflicts)

	rows, _, err := e.store.Reservations().List(ctx, domain.ReservationFilter{ResourceID: &e.e1.ID}, domain.PaginationParams{PageSize: 100})
	require.NoError(t, err)
	assertNoBlockingOverlap(t, rows)
}

func assertNoBlockingOverlap(t *testing.T, rows []domain.Reservation) {
	t.Helper()
	for i := range rows {
		for j := i + 1; j < len(rows); j++ {
			a, b := rows[i], rows[j]
			if !hasShared(a, b) {
				continue
			}
			assert.False(t, conflict.Overlaps(a.StartAt, a.EndAt, b.StartAt, b.EndAt),
				"reservations %s and %s overlap on a shared resource", a.ID, b.ID)
		}
	}
}

func hasShared(a, b domain.Reservation) bool {
	for _, x := range a.ResourceIDs() {
		for _, y := range b.ResourceIDs() {
			if x == y {
				return true
			}
		}
	}
	return false
}

func TestCreateManual(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	input := request(jan10(9), jan10(11), e.e1.ID, e.e2.ID)
	input.UserID = &e.alice.UserID
	subject := "  Film Studies  "
	input.SubjectName = &subject

	_, err := e.svc.CreateManual(ctx, e.alice, input)
	assert.ErrorIs(t, err, domain.ErrForbidden)

	res, err := e.svc.CreateManual(ctx, e.admin, input)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusApproved, res.Status)
	assert.Equal(t, "Film Studies", *res.SubjectName)

	for _, id := range []uuid.UUID{e.e1.ID, e.e2.ID} {
		r, err := e.store.Resources().GetByID(ctx, id)
		require.NoError(t, err)
		require.NotNil(t, r.CurrentReservationID)
		assert.Equal(t, res.ID, *r.CurrentReservationID)
		assert.Equal(t, domain.EquipmentRented, *r.Status)
	}

	logs, err := e.repos.AuditLog.ListByEntity(ctx, domain.EntityReservation, res.ID)
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, domain.AuditManualReservation, logs[0].Action)

	missingUser := request(jan10(13), jan10(14), e.e1.ID)
	_, err = e.svc.CreateManual(ctx, e.admin, missingUser)
	assert.True(t, domain.IsValidation(err))
}

func TestUpdate(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	r1, err := e.svc.Create(ctx, e.alice, request(jan10(9), jan10(11), e.e1.ID))
	require.NoError(t, err)
	_, err = e.svc.Create(ctx, e.bob, request(jan10(13), jan10(15), e.e2.ID))
	require.NoError(t, err)

	t.Run("moving within its own window does not self-conflict", func(t *testing.T) {
		updated, err := e.svc.Update(ctx, e.alice, r1.ID, domain.UpdateReservationInput{
			ResourceIDs: []uuid.UUID{e.e1.ID}, StartAt: jan10(10), EndAt: jan10(12),
		})
		require.NoError(t, err)
		assert.Equal(t, jan10(10), updated.StartAt)
		assert.Equal(t, []uuid.UUID{e.e1.ID}, updated.ResourceIDs())
	})

	t.Run("replaces the item set", func(t *testing.T) {
		updated, err := e.svc.Update(ctx, e.alice, r1.ID, domain.UpdateReservationInput{
			ResourceIDs: []uuid.UUID{e.e1.ID, e.e2.ID}, StartAt: jan10(9), EndAt: jan10(11),
		})
		require.NoError(t, err)
		assert.ElementsMatch(t, []uuid.UUID{e.e1.ID, e.e2.ID}, updated.ResourceIDs())

		stored, err := e.store.Reservations().GetByID(ctx, r1.ID)
		require.NoError(t, err)
		assert.Len(t, stored.Items, 2)
	})

	t.Run("conflicts with other reservations", func(t *testing.T) {
		_, err := e.svc.Update(ctx, e.alice, r1.ID, domain.UpdateReservationInput{
			ResourceIDs: []uuid.UUID{e.e2.ID}, StartAt: jan10(14), EndAt: jan10(16),
		})
		var ce *domain.ConflictError
		require.ErrorAs(t, err, &ce)
		assert.Equal(t, []uuid.UUID{e.e2.ID}, ce.ResourceIDs)
	})

	t.Run("other users cannot edit", func(t *testing.T) {
		_, err := e.svc.Update(ctx, e.bob, r1.ID, domain.UpdateReservationInput{
			ResourceIDs: []uuid.UUID{e.e1.ID}, StartAt: jan10(9), EndAt: jan10(11),
		})
		assert.ErrorIs(t, err, domain.ErrForbidden)
	})

	t.Run("not found", func(t *testing.T) {
		_, err := e.svc.Update(ctx, e.admin, uuid.New(), domain.UpdateReservationInput{
			ResourceIDs: []uuid.UUID{e.e1.ID}, StartAt: jan10(9), EndAt: jan10(11),
		})
		assert.ErrorIs(t, err, domain.ErrReservationNotFound)
	})
}

func TestUpdate_MovesBackReferences(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	input := request(jan10(9), jan10(11), e.e1.ID)
	input.UserID = &e.alice.UserID
	res, err := e.svc.CreateManual(ctx, e.admin, input)
	require.NoError(t, err)

	_, err = e.svc.Update(ctx, e.admin, res.ID, domain.UpdateReservationInput{
		ResourceIDs: []uuid.UUID{e.e2.ID}, StartAt: jan10(9), EndAt: jan10(11),
	})
	require.NoError(t, err)

	old, err := e.store.Resources().GetByID(ctx, e.e1.ID)
	require.NoError(t, err)
	assert.Nil(t, old.CurrentReservationID)
	assert.Equal(t, domain.EquipmentAvailable, *old.Status)

	moved, err := e.store.Resources().GetByID(ctx, e.e2.ID)
	require.NoError(t, err)
	require.NotNil(t, moved.CurrentReservationID)
	assert.Equal(t, res.ID, *moved.CurrentReservationID)

	_, err = e.svc.Update(ctx, e.alice, res.ID, domain.UpdateReservationInput{
		ResourceIDs: []uuid.UUID{e.e1.ID}, StartAt: jan10(9), EndAt: jan10(11),
	})
	assert.True(t, domain.IsAlreadyDecided(err), "owners cannot edit approved reservations")
}

func TestUpdate_ApprovedWithoutBackReferencesStaysUnstamped(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	res, err := e.svc.Create(ctx, e.alice, request(jan10(9), jan10(11), e.e1.ID))
	require.NoError(t, err)
	ok, err := e.store.Reservations().UpdateStatus(ctx, domain.StatusTransition{
		ID: res.ID, From: domain.StatusPending, To: domain.StatusApproved, ReviewedBy: e.admin.UserID, ReviewedAt: time.Now(),
	})
	require.NoError(t, err)
	require.True(t, ok)

	updated, err := e.svc.Update(ctx, e.admin, res.ID, domain.UpdateReservationInput{
		ResourceIDs: []uuid.UUID{e.e2.ID}, StartAt: jan10(10), EndAt: jan10(12),
	})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusApproved, updated.Status)

	for _, id := range []uuid.UUID{e.e1.ID, e.e2.ID} {
		r, err := e.store.Resources().GetByID(ctx, id)
		require.NoError(t, err)
		assert.Nil(t, r.CurrentReservationID)
		assert.Equal(t, domain.EquipmentAvailable, *r.Status)
	}
}

func TestDelete(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	input := request(jan10(9), jan10(11), e.e1.ID)
	input.UserID = &e.alice.UserID
	res, err := e.svc.CreateManual(ctx, e.admin, input)
	require.NoError(t, err)

	assert.True(t, domain.IsAlreadyDecided(e.svc.Delete(ctx, e.alice, res.ID)))
	require.NoError(t, e.svc.Delete(ctx, e.admin, res.ID))
	assert.ErrorIs(t, e.svc.Delete(ctx, e.admin, res.ID), domain.ErrReservationNotFound)

	r, err := e.store.Resources().GetByID(ctx, e.e1.ID)
	require.NoError(t, err)
	assert.Nil(t, r.CurrentReservationID)
	assert.Equal(t, domain.EquipmentAvailable, *r.Status)

	_, err = e.svc.Create(ctx, e.bob, request(jan10(9), jan10(11), e.e1.ID))
	assert.NoError(t, err, "a deleted reservation no longer blocks")

	pending, err := e.svc.Create(ctx, e.alice, request(jan10(13), jan10(14), e.e2.ID))
	require.NoError(t, err)
	assert.ErrorIs(t, e.svc.Delete(ctx, e.bob, pending.ID), domain.ErrForbidden)
	assert.NoError(t, e.svc.Delete(ctx, e.alice, pending.ID))
}

func TestConflictsLookup(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	r1, err := e.svc.Create(ctx, e.alice, request(jan10(9), jan10(11), e.e1.ID))
	require.NoError(t, err)

	ids, err := e.svc.Conflicts(ctx, reservation.ConflictLookup{Start: jan10(10), End: jan10(12)})
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{e.e1.ID}, ids)

	ids, err = e.svc.Conflicts(ctx, reservation.ConflictLookup{Start: jan10(10), End: jan10(12), ApprovedOnly: true})
	require.NoError(t, err)
	assert.Empty(t, ids)

	ids, err = e.svc.Conflicts(ctx, reservation.ConflictLookup{Start: jan10(10), End: jan10(12), ExcludeID: &r1.ID})
	require.NoError(t, err)
	assert.Empty(t, ids)

	ids, err = e.svc.Conflicts(ctx, reservation.ConflictLookup{ResourceIDs: []uuid.UUID{e.e2.ID}, Start: jan10(10), End: jan10(12)})
	require.NoError(t, err)
	assert.Empty(t, ids)

	_, err = e.svc.Conflicts(ctx, reservation.ConflictLookup{Start: jan10(12), End: jan10(10)})
	assert.True(t, domain.IsValidation(err))
}

func TestReadViews(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	input := request(jan10(9), jan10(11), e.e1.ID)
	input.UserID = &e.alice.UserID
	approved, err := e.svc.CreateManual(ctx, e.admin, input)
	require.NoError(t, err)
	_, err = e.svc.Create(ctx, e.bob, request(jan10(13), jan10(14), e.e2.ID))
	require.NoError(t, err)

	t.Run("approved equipment by day", func(t *testing.T) {
		ids, err := e.svc.ApprovedEquipmentOn(ctx, jan10(0))
		require.NoError(t, err)
		assert.Equal(t, []uuid.UUID{e.e1.ID}, ids)

		ids, err = e.svc.ApprovedEquipmentOn(ctx, jan10(0).AddDate(0, 0, 1))
		require.NoError(t, err)
		assert.Empty(t, ids)
	})

	t.Run("calendar lists approved bookings only", func(t *testing.T) {
		events, err := e.svc.Calendar(ctx, jan10(0), jan10(23))
		require.NoError(t, err)
		require.Len(t, events, 1)
		assert.Equal(t, approved.ID, events[0].ReservationID)
		assert.Equal(t, "Camera 1 (Alice)", events[0].Title)
		assert.Equal(t, domain.KindEquipment, events[0].Kind)
	})

	t.Run("detail is visible to owner and admin only", func(t *testing.T) {
		got, err := e.svc.GetByID(ctx, e.alice, approved.ID)
		require.NoError(t, err)
		require.NotNil(t, got.User)
		assert.Equal(t, "Alice", got.User.Name)

		_, err = e.svc.GetByID(ctx, e.admin, approved.ID)
		assert.NoError(t, err)

		_, err = e.svc.GetByID(ctx, e.bob, approved.ID)
		assert.ErrorIs(t, err, domain.ErrReservationNotFound)
	})

	t.Run("my status", func(t *testing.T) {
		status, err := e.svc.MyStatus(ctx, e.bob.UserID)
		require.NoError(t, err)
		assert.Len(t, status.Reservations, 1)
		assert.Empty(t, status.Facilities)
	})
}
