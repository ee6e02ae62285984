package domain

import (
	"time"

	"github.com/google/uuid"
)

type ReservationStatus string

const (
	StatusPending   ReservationStatus = "PENDING"
	StatusRequested ReservationStatus = "REQUESTED"
	StatusApproved  ReservationStatus = "APPROVED"
	StatusRejected  ReservationStatus = "REJECTED"
)

// IsUndecided reports whether the status is the initial state of either
// reservation flavour. APPROVED and REJECTED are terminal.
func (s ReservationStatus) IsUndecided() bool {
	return s == StatusPending || s == StatusRequested
}

var (
	// BookingBlockingStatuses block equipment creation and edits.
	BookingBlockingStatuses = []ReservationStatus{StatusPending, StatusApproved}
	// FacilityBlockingStatuses block facility requests.
	FacilityBlockingStatuses = []ReservationStatus{StatusRequested, StatusApproved}
	// ApprovalBlockingStatuses are the only hard conflicts at approval time.
	ApprovalBlockingStatuses = []ReservationStatus{StatusApproved}
)

// Reservation is the envelope grouping one or more equipment line items
// under a single time window and approval status.
type Reservation struct {
	ID           uuid.UUID         `json:"id" db:"id"`
	UserID       uuid.UUID         `json:"user_id" db:"user_id"`
	StartAt      time.Time         `json:"start_at" db:"start_at"`
	EndAt        time.Time         `json:"end_at" db:"end_at"`
	Status       ReservationStatus `json:"status" db:"status"`
	RejectReason *string           `json:"reject_reason,omitempty" db:"reject_reason"`
	SubjectName  *string           `json:"subject_name,omitempty" db:"subject_name"`
	Purpose      *string           `json:"purpose,omitempty" db:"purpose"`
	ReviewedBy   *uuid.UUID        `json:"reviewed_by,omitempty" db:"reviewed_by"`
	ReviewedAt   *time.Time        `json:"reviewed_at,omitempty" db:"reviewed_at"`
	CreatedAt    time.Time         `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time         `json:"updated_at" db:"updated_at"`

	Items []ReservationItem `json:"items" db:"-"`
	User  *UserSummary      `json:"user,omitempty" db:"-"`
}

func (r *Reservation) ResourceIDs() []uuid.UUID {
	ids := make([]uuid.UUID, 0, len(r.Items))
	for _, item := range r.Items {
		ids = append(ids, item.ResourceID)
	}
	return ids
}

type ReservationItem struct {
	ID            uuid.UUID        `json:"id" db:"id"`
	ReservationID uuid.UUID        `json:"reservation_id" db:"reservation_id"`
	ResourceID    uuid.UUID        `json:"resource_id" db:"resource_id"`
	Resource      *ResourceSummary `json:"resource,omitempty" db:"-"`
}

type ReservationFilter struct {
	UserID     *uuid.UUID
	ResourceID *uuid.UUID
	Statuses   []ReservationStatus
	From       *time.Time
	To         *time.Time
}

type ReservationMetadata struct {
	SubjectName *string `json:"subject_name,omitempty" validate:"omitempty,max=200"`
	Purpose     *string `json:"purpose,omitempty" validate:"omitempty,max=1000"`
}

type CreateReservationInput struct {
	UserID      *uuid.UUID  `json:"user_id,omitempty"`
	ResourceIDs []uuid.UUID `json:"resource_ids" validate:"required,min=1,dive,required"`
	StartAt     time.Time   `json:"start_at" validate:"required"`
	EndAt       time.Time   `json:"end_at" validate:"required"`
	ReservationMetadata
}

type UpdateReservationInput struct {
	ResourceIDs []uuid.UUID `json:"resource_ids" validate:"required,min=1,dive,required"`
	StartAt     time.Time   `json:"start_at" validate:"required"`
	EndAt       time.Time   `json:"end_at" validate:"required"`
	ReservationMetadata
}

type RejectInput struct {
	Reason string `json:"reason"`
}

// CalendarEvent is the flattened view consumed by calendar widgets.
type CalendarEvent struct {
	ReservationID uuid.UUID         `json:"reservation_id"`
	Kind          ResourceKind      `json:"kind"`
	Title         string            `json:"title"`
	Start         time.Time         `json:"start"`
	End           time.Time         `json:"end"`
	Status        ReservationStatus `json:"status"`
}

// BookedWindow is a time window occupied on a resource.
type BookedWindow struct {
	ReservationID uuid.UUID         `json:"reservation_id" db:"reservation_id"`
	StartAt       time.Time         `json:"start_at" db:"start_at"`
	EndAt         time.Time         `json:"end_at" db:"end_at"`
	Status        ReservationStatus `json:"status" db:"status"`
}

// StatusTransition is applied only if the row is still in From.
type StatusTransition struct {
	ID           uuid.UUID
	From         ReservationStatus
	To           ReservationStatus
	RejectReason *string
	ReviewedBy   uuid.UUID
	ReviewedAt   time.Time
}
