package domain

import (
	"time"

	"github.com/google/uuid"
)

type ResourceKind string

const (
	KindEquipment ResourceKind = "EQUIPMENT"
	KindFacility  ResourceKind = "FACILITY"
)

type EquipmentStatus string

const (
	EquipmentAvailable EquipmentStatus = "AVAILABLE"
	EquipmentRented    EquipmentStatus = "RENTED"
	EquipmentBroken    EquipmentStatus = "BROKEN"
)

func (s EquipmentStatus) IsValid() bool {
	switch s {
	case EquipmentAvailable, EquipmentRented, EquipmentBroken:
		return true
	default:
		return false
	}
}

// Resource is a catalog entry. Equipment and facilities share the table;
// Status is only set for equipment. Resources are never deleted, IsActive
// is the lifecycle flag.
type Resource struct {
	ID                   uuid.UUID        `json:"id" db:"id"`
	Kind                 ResourceKind     `json:"kind" db:"kind"`
	CatalogKey           string           `json:"catalog_key" db:"catalog_key"`
	Name                 string           `json:"name" db:"name"`
	Category             string           `json:"category" db:"category"`
	Status               *EquipmentStatus `json:"status,omitempty" db:"status"`
	IsActive             bool             `json:"is_active" db:"is_active"`
	ImageURL             *string          `json:"image_url,omitempty" db:"image_url"`
	CurrentReservationID *uuid.UUID       `json:"current_reservation_id,omitempty" db:"current_reservation_id"`
	CreatedAt            time.Time        `json:"created_at" db:"created_at"`
	UpdatedAt            time.Time        `json:"updated_at" db:"updated_at"`
}

func (r *Resource) IsEquipment() bool { return r.Kind == KindEquipment }

func (r *Resource) IsFacility() bool { return r.Kind == KindFacility }

// ResourceSummary is the part of a resource embedded in reservation items.
type ResourceSummary struct {
	ID         uuid.UUID    `json:"id" db:"id"`
	Kind       ResourceKind `json:"kind" db:"kind"`
	CatalogKey string       `json:"catalog_key" db:"catalog_key"`
	Name       string       `json:"name" db:"name"`
}

type ResourceFilter struct {
	Kind       *ResourceKind
	ActiveOnly bool
	Category   string
}

type CreateEquipmentInput struct {
	CatalogKey string  `json:"catalog_key" validate:"required,max=64"`
	Name       string  `json:"name" validate:"required,max=200"`
	Category   string  `json:"category" validate:"required,max=100"`
	ImageURL   *string `json:"image_url,omitempty" validate:"omitempty,url"`
}

type CreateFacilityInput struct {
	CatalogKey string `json:"catalog_key" validate:"required,max=64"`
	Name       string `json:"name" validate:"required,max=200"`
	Category   string `json:"category" validate:"required,max=100"`
}

type SetActiveInput struct {
	IsActive *bool `json:"is_active" validate:"required"`
}

type SetEquipmentStatusInput struct {
	Status EquipmentStatus `json:"status" validate:"required,oneof=AVAILABLE RENTED BROKEN"`
}
