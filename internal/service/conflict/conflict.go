// Package conflict decides whether a candidate window collides with
// existing bookings. Two closed intervals [s1, e1] and [s2, e2] overlap iff
// s1 <= e2 and e1 >= s2, so back-to-back bookings sharing an endpoint
// conflict. The relation is evaluated per resource.
package conflict

import (
	"context"
	"time"

	"github.com/google/uuid"

	"rentcore/internal/domain"
)

// Source yields candidate bookings for a query. It may return a superset;
// Evaluate is the authority on what actually conflicts.
type Source interface {
	OverlappingBookings(ctx context.Context, q domain.ConflictQuery) ([]domain.Booking, error)
}

// Overlaps reports inclusive overlap of [s1, e1] and [s2, e2].
func Overlaps(s1, e1, s2, e2 time.Time) bool {
	return !s1.After(e2) && !e1.Before(s2)
}

// Evaluate returns the ids of q.ResourceIDs that have at least one blocking
// booking overlapping the query window, in query order without duplicates.
func Evaluate(bookings []domain.Booking, q domain.ConflictQuery) []uuid.UUID {
	blocking := make(map[domain.ReservationStatus]bool, len(q.BlockingStatuses))
	for _, s := range q.BlockingStatuses {
		blocking[s] = true
	}

	hit := make(map[uuid.UUID]bool)
	for _, b := range bookings {
		if !blocking[b.Status] {
			continue
		}
		if q.ExcludeID != nil && b.ReservationID == *q.ExcludeID {
			continue
		}
		if Overlaps(q.Start, q.End, b.StartAt, b.EndAt) {
			hit[b.ResourceID] = true
		}
	}

	out := []uuid.UUID{}
	for _, id := range domain.UniqueIDs(q.ResourceIDs) {
		if hit[id] {
			out = append(out, id)
		}
	}
	return out
}

// ConflictingResourceIDs fetches candidate bookings from src and evaluates them.
func ConflictingResourceIDs(ctx context.Context, src Source, q domain.ConflictQuery) ([]uuid.UUID, error) {
	if len(q.ResourceIDs) == 0 || len(q.BlockingStatuses) == 0 {
		return []uuid.UUID{}, nil
	}
	bookings, err := src.OverlappingBookings(ctx, q)
	if err != nil {
		return nil, err
	}
	return Evaluate(bookings, q), nil
}

func HasConflict(ctx context.Context, src Source, q domain.ConflictQuery) (bool, error) {
	ids, err := ConflictingResourceIDs(ctx, src, q)
	if err != nil {
		return false, err
	}
	return len(ids) > 0, nil
}

// Check returns a *domain.ConflictError naming the colliding resources, or nil.
func Check(ctx context.Context, src Source, q domain.ConflictQuery, atApproval bool) error {
	ids, err := ConflictingResourceIDs(ctx, src, q)
	if err != nil {
		return err
	}
	if len(ids) > 0 {
		return &domain.ConflictError{ResourceIDs: ids, AtApproval: atApproval}
	}
	return nil
}
