package domain

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Notification is written only as a side effect of an approval decision.
type Notification struct {
	ID        uuid.UUID        `json:"id" db:"id"`
	UserID    uuid.UUID        `json:"user_id" db:"user_id"`
	Type      NotificationType `json:"type" db:"type"`
	Title     string           `json:"title" db:"title"`
	Message   string           `json:"message" db:"message"`
	Data      json.RawMessage  `json:"data,omitempty" db:"data"`
	IsRead    bool             `json:"is_read" db:"is_read"`
	ReadAt    *time.Time       `json:"read_at,omitempty" db:"read_at"`
	CreatedAt time.Time        `json:"created_at" db:"created_at"`
}

type NotificationType string

const (
	NotifRentalApproved   NotificationType = "RENTAL_APPROVED"
	NotifRentalRejected   NotificationType = "RENTAL_REJECTED"
	NotifFacilityApproved NotificationType = "FACILITY_APPROVED"
	NotifFacilityRejected NotificationType = "FACILITY_REJECTED"
)

// PushInput is what a workflow transition hands to the notification sink.
type PushInput struct {
	UserID  uuid.UUID
	Type    NotificationType
	Title   string
	Message string
	Data    map[string]string
}
