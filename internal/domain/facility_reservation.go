package domain

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
)

type TeamMember struct {
	Name       string `json:"name" validate:"required,max=100"`
	Department string `json:"department" validate:"required,max=100"`
	StudentID  string `json:"student_id" validate:"required,max=32"`
}

// TeamRoster is stored as a JSONB array, order preserved.
type TeamRoster []TeamMember

func (t TeamRoster) Value() (driver.Value, error) {
	if t == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(t)
}

func (t *TeamRoster) Scan(src interface{}) error {
	var data []byte
	switch v := src.(type) {
	case nil:
		*t = TeamRoster{}
		return nil
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return errors.New("team roster: unsupported source type")
	}
	return json.Unmarshal(data, t)
}

// FacilityReservation books exactly one facility. Headcount is the
// requester plus the roster.
type FacilityReservation struct {
	ID           uuid.UUID         `json:"id" db:"id"`
	UserID       uuid.UUID         `json:"user_id" db:"user_id"`
	FacilityID   uuid.UUID         `json:"facility_id" db:"facility_id"`
	StartAt      time.Time         `json:"start_at" db:"start_at"`
	EndAt        time.Time         `json:"end_at" db:"end_at"`
	Status       ReservationStatus `json:"status" db:"status"`
	RejectReason *string           `json:"reject_reason,omitempty" db:"reject_reason"`
	Purpose      *string           `json:"purpose,omitempty" db:"purpose"`
	TeamMembers  TeamRoster        `json:"team_members" db:"team_members"`
	Headcount    int               `json:"headcount" db:"headcount"`
	ReviewedBy   *uuid.UUID        `json:"reviewed_by,omitempty" db:"reviewed_by"`
	ReviewedAt   *time.Time        `json:"reviewed_at,omitempty" db:"reviewed_at"`
	CreatedAt    time.Time         `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time         `json:"updated_at" db:"updated_at"`

	Facility *ResourceSummary `json:"facility,omitempty" db:"-"`
	User     *UserSummary     `json:"user,omitempty" db:"-"`
}

func HeadcountFor(roster TeamRoster) int {
	return 1 + len(roster)
}

type FacilityReservationFilter struct {
	UserID     *uuid.UUID
	FacilityID *uuid.UUID
	Statuses   []ReservationStatus
	From       *time.Time
	To         *time.Time
}

type CreateFacilityReservationInput struct {
	FacilityID   *uuid.UUID   `json:"facility_id,omitempty"`
	FacilityName string       `json:"facility_name,omitempty" validate:"required_without=FacilityID,omitempty,max=200"`
	StartAt      time.Time    `json:"start_at" validate:"required"`
	EndAt        time.Time    `json:"end_at" validate:"required"`
	Purpose      *string      `json:"purpose,omitempty" validate:"omitempty,max=1000"`
	TeamMembers  []TeamMember `json:"team_members" validate:"omitempty,max=50,dive"`
}

// RequestKind distinguishes the two request flavours in the merged admin list.
type RequestKind string

const (
	RequestRental   RequestKind = "RENTAL"
	RequestFacility RequestKind = "FACILITY"
)

// AdminRequest is a row of the merged rental + facility request list.
type AdminRequest struct {
	Kind          RequestKind          `json:"type"`
	ID            uuid.UUID            `json:"id"`
	Status        ReservationStatus    `json:"status"`
	StartDateTime time.Time            `json:"start_date_time"`
	EndDateTime   time.Time            `json:"end_date_time"`
	CreatedAt     time.Time            `json:"created_at"`
	Rental        *Reservation         `json:"rental,omitempty"`
	Facility      *FacilityReservation `json:"facility,omitempty"`
}

type PendingCounts struct {
	Rental   int64 `json:"rental"`
	Facility int64 `json:"facility"`
	Total    int64 `json:"total"`
}
