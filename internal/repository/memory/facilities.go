package memory

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"

	"rentcore/internal/domain"
)

type facilityRepo struct{ a access }

func (r *facilityRepo) Create(_ context.Context, fr *domain.FacilityReservation) error {
	return r.a.with(func(st *state) error {
		fr.CreatedAt = r.a.store.now()
		fr.UpdatedAt = fr.CreatedAt
		row := *fr
		row.Facility = nil
		row.TeamMembers = append(domain.TeamRoster{}, fr.TeamMembers...)
		st.facilities[row.ID] = row
		return nil
	})
}

func (r *facilityRepo) GetByID(_ context.Context, id uuid.UUID) (*domain.FacilityReservation, error) {
	var out *domain.FacilityReservation
	err := r.a.with(func(st *state) error {
		if row, ok := st.facilities[id]; ok {
			fr := st.withFacility(row)
			out = &fr
		}
		return nil
	})
	return out, err
}

func (r *facilityRepo) GetForUpdate(ctx context.Context, id uuid.UUID) (*domain.FacilityReservation, error) {
	return r.GetByID(ctx, id)
}

func (r *facilityRepo) UpdateStatus(_ context.Context, t domain.StatusTransition) (bool, error) {
	changed := false
	err := r.a.with(func(st *state) error {
		row, ok := st.facilities[t.ID]
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
		st.facilities[row.ID] = row
		changed = true
		return nil
	})
	return changed, err
}

func (r *facilityRepo) Delete(_ context.Context, id uuid.UUID) (bool, error) {
	found := false
	err := r.a.with(func(st *state) error {
		if _, ok := st.facilities[id]; ok {
			delete(st.facilities, id)
			found = true
		}
		return nil
	})
	return found, err
}

func (r *facilityRepo) List(_ context.Context, filter domain.FacilityReservationFilter, params domain.PaginationParams) ([]domain.FacilityReservation, int64, error) {
	params.Normalize()

	var matched []domain.FacilityReservation
	err := r.a.with(func(st *state) error {
		for _, row := range st.facilities {
			if filter.UserID != nil && row.UserID != *filter.UserID {
				continue
			}
			if filter.FacilityID != nil && row.FacilityID != *filter.FacilityID {
				continue
			}
			if len(filter.Statuses) > 0 && !hasStatus(filter.Statuses, row.Status) {
				continue
			}
			if filter.From != nil && row.EndAt.Before(*filter.From) {
				continue
			}
			if filter.To != nil && row.StartAt.After(*filter.To) {
				continue
			}
			matched = append(matched, st.withFacility(row))
		}
		return nil
	})
	if err != nil {
		return nil, 0, err
	}

	sort.Slice(matched, func(i, j int) bool { return matched[i].CreatedAt.After(matched[j].CreatedAt) })
	return page(matched, params), int64(len(matched)), nil
}

func (r *facilityRepo) ListInWindow(_ context.Context, statuses []domain.ReservationStatus, from, to time.Time) ([]domain.FacilityReservation, error) {
	out := []domain.FacilityReservation{}
	err := r.a.with(func(st *state) error {
		for _, row := range st.facilities {
			if hasStatus(statuses, row.Status) && !row.StartAt.After(to) && !row.EndAt.Before(from) {
				out = append(out, st.withFacility(row))
			}
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool { return out[i].StartAt.Before(out[j].StartAt) })
	return out, err
}

func (r *facilityRepo) CountByStatus(_ context.Context, status domain.ReservationStatus) (int64, error) {
	var n int64
	err := r.a.with(func(st *state) error {
		for _, row := range st.facilities {
			if row.Status == status {
				n++
			}
		}
		return nil
	})
	return n, err
}

func (r *facilityRepo) OverlappingBookings(_ context.Context, q domain.ConflictQuery) ([]domain.Booking, error) {
	wanted := make(map[uuid.UUID]bool, len(q.ResourceIDs))
	for _, id := range q.ResourceIDs {
		wanted[id] = true
	}

	out := []domain.Booking{}
	err := r.a.with(func(st *state) error {
		for id, row := range st.facilities {
			if q.ExcludeID != nil && *q.ExcludeID == id {
				continue
			}
			if !wanted[row.FacilityID] || !hasStatus(q.BlockingStatuses, row.Status) {
				continue
			}
			out = append(out, domain.Booking{
				ReservationID: id, ResourceID: row.FacilityID,
				StartAt: row.StartAt, EndAt: row.EndAt, Status: row.Status,
			})
		}
		return nil
	})
	return out, err
}

func (st *state) withFacility(row domain.FacilityReservation) domain.FacilityReservation {
	row.TeamMembers = append(domain.TeamRoster{}, row.TeamMembers...)
	if res, ok := st.resources[row.FacilityID]; ok {
		row.Facility = &domain.ResourceSummary{ID: res.ID, Kind: res.Kind, CatalogKey: res.CatalogKey, Name: res.Name}
	}
	return row
}
