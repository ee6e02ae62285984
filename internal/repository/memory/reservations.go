package memory

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"

	"rentcore/internal/domain"
)

type reservationRepo struct{ a access }

func (r *reservationRepo) Create(_ context.Context, reservation *domain.Reservation) error {
	return r.a.with(func(st *state) error {
		reservation.CreatedAt = r.a.store.now()
		reservation.UpdatedAt = reservation.CreatedAt
		row := *reservation
		row.Items = nil
		st.reservations[row.ID] = row
		return nil
	})
}

func (r *reservationRepo) InsertItems(_ context.Context, reservationID uuid.UUID, resourceIDs []uuid.UUID) ([]domain.ReservationItem, error) {
	var items []domain.ReservationItem
	err := r.a.with(func(st *state) error {
		for _, resourceID := range resourceIDs {
			item := domain.ReservationItem{ID: uuid.New(), ReservationID: reservationID, ResourceID: resourceID}
			st.items[reservationID] = append(st.items[reservationID], item)
			items = append(items, item)
		}
		return nil
	})
	return items, err
}

func (r *reservationRepo) DeleteItems(_ context.Context, reservationID uuid.UUID) error {
	return r.a.with(func(st *state) error {
		delete(st.items, reservationID)
		return nil
	})
}

func (r *reservationRepo) GetByID(_ context.Context, id uuid.UUID) (*domain.Reservation, error) {
	var out *domain.Reservation
	err := r.a.with(func(st *state) error {
		if row, ok := st.reservations[id]; ok {
			res := st.withItems(row)
			out = &res
		}
		return nil
	})
	return out, err
}

func (r *reservationRepo) GetForUpdate(ctx context.Context, id uuid.UUID) (*domain.Reservation, error) {
	return r.GetByID(ctx, id)
}

func (r *reservationRepo) UpdateWindow(_ context.Context, reservation *domain.Reservation) error {
	return r.a.with(func(st *state) error {
		row, ok := st.reservations[reservation.ID]
		if !ok {
			return nil
		}
		row.StartAt = reservation.StartAt
		row.EndAt = reservation.EndAt
		row.SubjectName = reservation.SubjectName
		row.Purpose = reservation.Purpose
		row.UpdatedAt = r.a.store.now()
		reservation.UpdatedAt = row.UpdatedAt
		st.reservations[row.ID] = row
		return nil
	})
}

func (r *reservationRepo) UpdateStatus(_ context.Context, t domain.StatusTransition) (bool, error) {
	changed := false
	err := r.a.with(func(st *state) error {
		row, ok := st.reservations[t.ID]
		if !ok || row.Status != t.From {
			return nil
		}
		reviewedBy := t.ReviewedBy
		reviewedAt := t.ReviewedAt
		row.Status = t.To
		row.RejectReason = t.RejectReason
		row.ReviewedBy = &reviewedBy
		row.ReviewedAt = &reviewedAt
		row.UpdatedAt = r.a.store.now()
		st.reservations[row.ID] = row
		changed = true
		return nil
	})
	return changed, err
}

func (r *reservationRepo) Delete(_ context.Context, id uuid.UUID) (bool, error) {
	found := false
	err := r.a.with(func(st *state) error {
		if _, ok := st.reservations[id]; !ok {
			return nil
		}
		delete(st.reservations, id)
		delete(st.items, id)
		for rid, res := range st.resources {
			if res.CurrentReservationID != nil && *res.CurrentReservationID == id {
				res.CurrentReservationID = nil
				st.resources[rid] = res
			}
		}
		found = true
		return nil
	})
	return found, err
}

func (r *reservationRepo) List(_ context.Context, filter domain.ReservationFilter, params domain.PaginationParams) ([]domain.Reservation, int64, error) {
	params.Normalize()

	var matched []domain.Reservation
	err := r.a.with(func(st *state) error {
		for _, row := range st.reservations {
			res := st.withItems(row)
			if matchesReservation(res, filter) {
				matched = append(matched, res)
			}
		}
		return nil
	})
	if err != nil {
		return nil, 0, err
	}

	sort.Slice(matched, func(i, j int) bool { return matched[i].CreatedAt.After(matched[j].CreatedAt) })
	return page(matched, params), int64(len(matched)), nil
}

func (r *reservationRepo) ListInWindow(_ context.Context, statuses []domain.ReservationStatus, from, to time.Time) ([]domain.Reservation, error) {
	out := []domain.Reservation{}
	err := r.a.with(func(st *state) error {
		for _, row := range st.reservations {
			if hasStatus(statuses, row.Status) && !row.StartAt.After(to) && !row.EndAt.Before(from) {
				out = append(out, st.withItems(row))
			}
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool { return out[i].StartAt.Before(out[j].StartAt) })
	return out, err
}

func (r *reservationRepo) CountByStatus(_ context.Context, status domain.ReservationStatus) (int64, error) {
	var n int64
	err := r.a.with(func(st *state) error {
		for _, row := range st.reservations {
			if row.Status == status {
				n++
			}
		}
		return nil
	})
	return n, err
}

func (r *reservationRepo) BookedWindows(_ context.Context, resourceID uuid.UUID, statuses []domain.ReservationStatus) ([]domain.BookedWindow, error) {
	out := []domain.BookedWindow{}
	err := r.a.with(func(st *state) error {
		for id, items := range st.items {
			row := st.reservations[id]
			if !hasStatus(statuses, row.Status) {
				continue
			}
			for _, item := range items {
				if item.ResourceID == resourceID {
					out = append(out, domain.BookedWindow{
						ReservationID: id, StartAt: row.StartAt, EndAt: row.EndAt, Status: row.Status,
					})
					break
				}
			}
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool { return out[i].StartAt.Before(out[j].StartAt) })
	return out, err
}

// OverlappingBookings narrows by resource, status and exclusion only; the
// window test is left to the conflict detector.
func (r *reservationRepo) OverlappingBookings(_ context.Context, q domain.ConflictQuery) ([]domain.Booking, error) {
	wanted := make(map[uuid.UUID]bool, len(q.ResourceIDs))
	for _, id := range q.ResourceIDs {
		wanted[id] = true
	}

	out := []domain.Booking{}
	err := r.a.with(func(st *state) error {
		for id, items := range st.items {
			if q.ExcludeID != nil && *q.ExcludeID == id {
				continue
			}
			row, ok := st.reservations[id]
			if !ok || !hasStatus(q.BlockingStatuses, row.Status) {
				continue
			}
			for _, item := range items {
				if wanted[item.ResourceID] {
					out = append(out, domain.Booking{
						ReservationID: id, ResourceID: item.ResourceID,
						StartAt: row.StartAt, EndAt: row.EndAt, Status: row.Status,
					})
				}
			}
		}
		return nil
	})
	return out, err
}

func (st *state) withItems(row domain.Reservation) domain.Reservation {
	items := st.items[row.ID]
	row.Items = make([]domain.ReservationItem, 0, len(items))
	for _, item := range items {
		if res, ok := st.resources[item.ResourceID]; ok {
			item.Resource = &domain.ResourceSummary{ID: res.ID, Kind: res.Kind, CatalogKey: res.CatalogKey, Name: res.Name}
		}
		row.Items = append(row.Items, item)
	}
	return row
}

func matchesReservation(res domain.Reservation, f domain.ReservationFilter) bool {
	if f.UserID != nil && res.UserID != *f.UserID {
		return false
	}
	if len(f.Statuses) > 0 && !hasStatus(f.Statuses, res.Status) {
		return false
	}
	if f.From != nil && res.EndAt.Before(*f.From) {
		return false
	}
	if f.To != nil && res.StartAt.After(*f.To) {
		return false
	}
	if f.ResourceID != nil {
		for _, item := range res.Items {
			if item.ResourceID == *f.ResourceID {
				return true
			}
		}
		return false
	}
	return true
}

func hasStatus(statuses []domain.ReservationStatus, s domain.ReservationStatus) bool {
	for _, candidate := range statuses {
		if candidate == s {
			return true
		}
	}
	return false
}

func page[T any](rows []T, params domain.PaginationParams) []T {
	start := params.Offset()
	if start >= len(rows) {
		return []T{}
	}
	end := start + params.PageSize
	if end > len(rows) {
		end = len(rows)
	}
	return rows[start:end]
}
