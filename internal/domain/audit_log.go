package domain

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

const (
	AuditApproveReservation = "APPROVE_RESERVATION"
	AuditRejectReservation  = "REJECT_RESERVATION"
	AuditApproveFacility    = "APPROVE_FACILITY_RESERVATION"
	AuditRejectFacility     = "REJECT_FACILITY_RESERVATION"
	AuditManualReservation  = "CREATE_MANUAL_RESERVATION"
	AuditDeleteReservation  = "DELETE_RESERVATION"

	EntityReservation         = "RESERVATION"
	EntityFacilityReservation = "FACILITY_RESERVATION"
)

type AuditLog struct {
	ID         uuid.UUID       `json:"id" db:"id"`
	ActorID    uuid.UUID       `json:"actor_id" db:"actor_id"`
	ActorName  *string         `json:"actor_name,omitempty" db:"actor_name"`
	Action     string          `json:"action" db:"action"`
	EntityType string          `json:"entity_type" db:"entity_type"`
	EntityID   uuid.UUID       `json:"entity_id" db:"entity_id"`
	FromStatus *string         `json:"from_status,omitempty" db:"from_status"`
	ToStatus   *string         `json:"to_status,omitempty" db:"to_status"`
	Detail     json.RawMessage `json:"detail,omitempty" db:"detail"`
	IPAddress  *string         `json:"ip_address,omitempty" db:"ip_address"`
	UserAgent  *string         `json:"user_agent,omitempty" db:"user_agent"`
	CreatedAt  time.Time       `json:"created_at" db:"created_at"`
}

type CreateAuditLogInput struct {
	ActorID    uuid.UUID
	Action     string
	EntityType string
	EntityID   uuid.UUID
	FromStatus ReservationStatus
	ToStatus   ReservationStatus
	Detail     interface{}
	Meta       *RequestMeta
}

// RequestMeta carries caller details recorded with audit entries.
type RequestMeta struct {
	IPAddress string
	UserAgent string
}
