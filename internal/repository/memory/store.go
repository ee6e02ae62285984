// Package memory is an in-process implementation of the repository
// interfaces. Transactions run one at a time against a cloned snapshot
// that replaces the live state only when fn succeeds.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"rentcore/internal/domain"
	"rentcore/internal/repository"
)

type state struct {
	resources    map[uuid.UUID]domain.Resource
	reservations map[uuid.UUID]domain.Reservation
	items        map[uuid.UUID][]domain.ReservationItem
	facilities   map[uuid.UUID]domain.FacilityReservation
}

func newState() *state {
	return &state{
		resources:    make(map[uuid.UUID]domain.Resource),
		reservations: make(map[uuid.UUID]domain.Reservation),
		items:        make(map[uuid.UUID][]domain.ReservationItem),
		facilities:   make(map[uuid.UUID]domain.FacilityReservation),
	}
}

func (s *state) clone() *state {
	c := newState()
	for k, v := range s.resources {
		c.resources[k] = v
	}
	for k, v := range s.reservations {
		c.reservations[k] = v
	}
	for k, v := range s.items {
		c.items[k] = append([]domain.ReservationItem(nil), v...)
	}
	for k, v := range s.facilities {
		v.TeamMembers = append(domain.TeamRoster(nil), v.TeamMembers...)
		c.facilities[k] = v
	}
	return c
}

type Store struct {
	mu    sync.Mutex
	state *state
	now   func() time.Time
}

func NewStore() *Store {
	return &Store{state: newState(), now: time.Now}
}

// access runs fn either against a transaction snapshot (already holding the
// store lock) or against the live state under the lock.
type access struct {
	store *Store
	tx    *state
}

func (a access) with(fn func(st *state) error) error {
	if a.tx != nil {
		return fn(a.tx)
	}
	a.store.mu.Lock()
	defer a.store.mu.Unlock()
	return fn(a.store.state)
}

func (s *Store) Resources() repository.ResourceRepository {
	return &resourceRepo{access{store: s}}
}

func (s *Store) Reservations() repository.ReservationRepository {
	return &reservationRepo{access{store: s}}
}

func (s *Store) FacilityReservations() repository.FacilityReservationRepository {
	return &facilityRepo{access{store: s}}
}

func (s *Store) Transact(ctx context.Context, fn func(tx repository.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	snapshot := s.state.clone()
	if err := fn(&txView{access{store: s, tx: snapshot}}); err != nil {
		return err
	}
	s.state = snapshot
	return nil
}

type txView struct {
	a access
}

func (t *txView) Resources() repository.ResourceRepository       { return &resourceRepo{t.a} }
func (t *txView) Reservations() repository.ReservationRepository { return &reservationRepo{t.a} }
func (t *txView) FacilityReservations() repository.FacilityReservationRepository {
	return &facilityRepo{t.a}
}

// Seed inserts resources directly, bypassing the repository API.
func (s *Store) Seed(resources ...domain.Resource) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range resources {
		if r.CreatedAt.IsZero() {
			r.CreatedAt = s.now()
			r.UpdatedAt = r.CreatedAt
		}
		s.state.resources[r.ID] = r
	}
}

type resourceRepo struct{ a access }

func (r *resourceRepo) Create(_ context.Context, resource *domain.Resource) error {
	return r.a.with(func(st *state) error {
		resource.CreatedAt = r.a.store.now()
		resource.UpdatedAt = resource.CreatedAt
		st.resources[resource.ID] = *resource
		return nil
	})
}

func (r *resourceRepo) GetByID(_ context.Context, id uuid.UUID) (*domain.Resource, error) {
	var out *domain.Resource
	err := r.a.with(func(st *state) error {
		if res, ok := st.resources[id]; ok {
			out = &res
		}
		return nil
	})
	return out, err
}

func (r *resourceRepo) GetByIDs(_ context.Context, ids []uuid.UUID) ([]domain.Resource, error) {
	out := []domain.Resource{}
	err := r.a.with(func(st *state) error {
		for _, id := range domain.UniqueIDs(ids) {
			if res, ok := st.resources[id]; ok {
				out = append(out, res)
			}
		}
		return nil
	})
	return out, err
}

func (r *resourceRepo) GetByCatalogKey(_ context.Context, key string) (*domain.Resource, error) {
	var out *domain.Resource
	err := r.a.with(func(st *state) error {
		for _, res := range st.resources {
			if res.CatalogKey == key {
				res := res
				out = &res
				return nil
			}
		}
		return nil
	})
	return out, err
}

func (r *resourceRepo) GetFacilityByName(_ context.Context, name string) (*domain.Resource, error) {
	name = strings.TrimSpace(name)
	var out *domain.Resource
	err := r.a.with(func(st *state) error {
		for _, res := range st.resources {
			if res.Kind != domain.KindFacility || res.Name != name {
				continue
			}
			if out == nil || (res.IsActive && !out.IsActive) {
				res := res
				out = &res
			}
		}
		return nil
	})
	return out, err
}

func (r *resourceRepo) List(_ context.Context, filter domain.ResourceFilter) ([]domain.Resource, error) {
	out := []domain.Resource{}
	err := r.a.with(func(st *state) error {
		for _, res := range st.resources {
			if filter.Kind != nil && res.Kind != *filter.Kind {
				continue
			}
			if filter.ActiveOnly && !res.IsActive {
				continue
			}
			if filter.Category != "" && res.Category != filter.Category {
				continue
			}
			out = append(out, res)
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool {
		if out[i].Kind != out[j].Kind {
			return out[i].Kind < out[j].Kind
		}
		if out[i].Category != out[j].Category {
			return out[i].Category < out[j].Category
		}
		return out[i].Name < out[j].Name
	})
	return out, err
}

func (r *resourceRepo) update(id uuid.UUID, fn func(res *domain.Resource) bool) (bool, error) {
	found := false
	err := r.a.with(func(st *state) error {
		res, ok := st.resources[id]
		if !ok || !fn(&res) {
			return nil
		}
		res.UpdatedAt = r.a.store.now()
		st.resources[id] = res
		found = true
		return nil
	})
	return found, err
}

func (r *resourceRepo) SetActive(_ context.Context, id uuid.UUID, active bool) (bool, error) {
	return r.update(id, func(res *domain.Resource) bool {
		res.IsActive = active
		return true
	})
}

func (r *resourceRepo) SetStatus(_ context.Context, id uuid.UUID, status domain.EquipmentStatus) (bool, error) {
	return r.update(id, func(res *domain.Resource) bool {
		if !res.IsEquipment() {
			return false
		}
		res.Status = &status
		return true
	})
}

func (r *resourceRepo) SetImageURL(_ context.Context, id uuid.UUID, url string) error {
	_, err := r.update(id, func(res *domain.Resource) bool {
		res.ImageURL = &url
		return true
	})
	return err
}

// LockByIDs is a no-op: transactions already run one at a time.
func (r *resourceRepo) LockByIDs(context.Context, []uuid.UUID) error { return nil }

func (r *resourceRepo) SetCurrentReservation(_ context.Context, ids []uuid.UUID, reservationID uuid.UUID) error {
	for _, id := range ids {
		if _, err := r.update(id, func(res *domain.Resource) bool {
			ref := reservationID
			res.CurrentReservationID = &ref
			if res.IsEquipment() && res.Status != nil && *res.Status != domain.EquipmentBroken {
				rented := domain.EquipmentRented
				res.Status = &rented
			}
			return true
		}); err != nil {
			return err
		}
	}
	return nil
}

func (r *resourceRepo) ClearCurrentReservation(_ context.Context, reservationID uuid.UUID) (bool, error) {
	var cleared bool
	err := r.a.with(func(st *state) error {
		for id, res := range st.resources {
			if res.CurrentReservationID == nil || *res.CurrentReservationID != reservationID {
				continue
			}
			cleared = true
			res.CurrentReservationID = nil
			if res.IsEquipment() && res.Status != nil && *res.Status == domain.EquipmentRented {
				available := domain.EquipmentAvailable
				res.Status = &available
			}
			res.UpdatedAt = r.a.store.now()
			st.resources[id] = res
		}
		return nil
	})
	return cleared, err
}
