package domain

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"
)

var (
	ErrReservationNotFound  = errors.New("reservation not found")
	ErrResourceNotFound     = errors.New("resource not found")
	ErrUserNotFound         = errors.New("user not found")
	ErrNotificationNotFound = errors.New("notification not found")
	ErrForbidden            = errors.New("forbidden")
)

// ValidationError collects field level problems found before any domain
// logic runs.
type ValidationError struct {
	FieldErrors map[string]string `json:"fields"`
}

func NewValidationError(field, message string) *ValidationError {
	v := &ValidationError{}
	v.Add(field, message)
	return v
}

func (v *ValidationError) Error() string {
	if v == nil || len(v.FieldErrors) == 0 {
		return "validation failed"
	}
	fields := make([]string, 0, len(v.FieldErrors))
	for f := range v.FieldErrors {
		fields = append(fields, f)
	}
	sort.Strings(fields)
	parts := make([]string, 0, len(fields))
	for _, f := range fields {
		parts = append(parts, f+": "+v.FieldErrors[f])
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

func (v *ValidationError) Add(field, message string) {
	if v.FieldErrors == nil {
		v.FieldErrors = make(map[string]string)
	}
	v.FieldErrors[field] = message
}

func (v *ValidationError) HasErrors() bool {
	return v != nil && len(v.FieldErrors) > 0
}

// OrNil returns nil when nothing was recorded so callers can return it directly.
func (v *ValidationError) OrNil() error {
	if !v.HasErrors() {
		return nil
	}
	return v
}

// ConflictError names the resources whose bookings overlap the candidate
// window. AtApproval is set when the collision was found by the approval gate.
type ConflictError struct {
	ResourceIDs []uuid.UUID
	AtApproval  bool
}

func (e *ConflictError) Error() string {
	ids := make([]string, len(e.ResourceIDs))
	for i, id := range e.ResourceIDs {
		ids[i] = id.String()
	}
	return fmt.Sprintf("booking conflict on resources [%s]", strings.Join(ids, ", "))
}

// AlreadyDecidedError is returned when a transition is attempted on a
// reservation that has already reached a terminal status.
type AlreadyDecidedError struct {
	ID     uuid.UUID
	Status ReservationStatus
}

func (e *AlreadyDecidedError) Error() string {
	return fmt.Sprintf("reservation %s already %s", e.ID, strings.ToLower(string(e.Status)))
}

func IsConflict(err error) bool {
	var ce *ConflictError
	return errors.As(err, &ce)
}

func IsAlreadyDecided(err error) bool {
	var ad *AlreadyDecidedError
	return errors.As(err, &ad)
}

func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
