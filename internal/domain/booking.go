package domain

import (
	"time"

	"github.com/google/uuid"
)

// Booking is one (resource, window, status) row as seen by the conflict
// detector. Envelopes with several items yield one booking per resource.
type Booking struct {
	ReservationID uuid.UUID         `db:"reservation_id"`
	ResourceID    uuid.UUID         `db:"resource_id"`
	StartAt       time.Time         `db:"start_at"`
	EndAt         time.Time         `db:"end_at"`
	Status        ReservationStatus `db:"status"`
}

type ConflictQuery struct {
	ResourceIDs      []uuid.UUID
	Start            time.Time
	End              time.Time
	BlockingStatuses []ReservationStatus
	ExcludeID        *uuid.UUID
}

// ValidateWindow rejects zero-length and inverted windows.
func ValidateWindow(start, end time.Time) *ValidationError {
	v := &ValidationError{}
	if start.IsZero() {
		v.Add("start_at", "is required")
	}
	if end.IsZero() {
		v.Add("end_at", "is required")
	}
	if !start.IsZero() && !end.IsZero() && !start.Before(end) {
		v.Add("end_at", "must be after start_at")
	}
	return v
}

// UniqueIDs drops duplicates while keeping first-seen order.
func UniqueIDs(ids []uuid.UUID) []uuid.UUID {
	seen := make(map[uuid.UUID]struct{}, len(ids))
	out := make([]uuid.UUID, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

func StatusStrings(statuses []ReservationStatus) []string {
	out := make([]string, len(statuses))
	for i, s := range statuses {
		out[i] = string(s)
	}
	return out
}
