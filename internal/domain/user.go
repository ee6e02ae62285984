package domain

import (
	"time"

	"github.com/google/uuid"
)

type User struct {
	ID           uuid.UUID  `json:"id" db:"id"`
	Email        string     `json:"email" db:"email"`
	PasswordHash string     `json:"-" db:"password_hash"`
	Name         string     `json:"name" db:"name"`
	StudentID    *string    `json:"student_id,omitempty" db:"student_id"`
	Department   *string    `json:"department,omitempty" db:"department"`
	Grade        *int       `json:"grade,omitempty" db:"grade"`
	PhoneNumber  *string    `json:"phone_number,omitempty" db:"phone_number"`
	Birthday     *time.Time `json:"birthday,omitempty" db:"birthday"`
	Role         UserRole   `json:"role" db:"role"`
	IsActive     bool       `json:"is_active" db:"is_active"`
	CreatedAt    time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at" db:"updated_at"`
}

// UserSummary is the slice of a user embedded in reservation listings.
type UserSummary struct {
	ID        uuid.UUID `json:"id" db:"id"`
	Name      string    `json:"name" db:"name"`
	Email     string    `json:"email" db:"email"`
	StudentID *string   `json:"student_id,omitempty" db:"student_id"`
}

type RegisterInput struct {
	Email       string     `json:"email" validate:"required,email"`
	Password    string     `json:"password" validate:"required,min=8"`
	Name        string     `json:"name" validate:"required,min=2"`
	StudentID   *string    `json:"student_id,omitempty" validate:"omitempty,max=32"`
	Department  *string    `json:"department,omitempty" validate:"omitempty,max=100"`
	Grade       *int       `json:"grade,omitempty" validate:"omitempty,min=1,max=6"`
	PhoneNumber *string    `json:"phone_number,omitempty" validate:"omitempty,max=32"`
	Birthday    *time.Time `json:"birthday,omitempty"`
}

type RegisterAdminInput struct {
	Email     string `json:"email" validate:"required,email"`
	Password  string `json:"password" validate:"required,min=8"`
	Name      string `json:"name" validate:"required,min=2"`
	AdminCode string `json:"admin_code" validate:"required"`
}

type LoginInput struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type TokenPair struct {
	AccessToken string   `json:"access_token"`
	ExpiresIn   int64    `json:"expires_in"`
	Role        UserRole `json:"role"`
}

type UserRole string

const (
	RoleUser  UserRole = "USER"
	RoleAdmin UserRole = "ADMIN"
)

func (r UserRole) IsValid() bool {
	switch r {
	case RoleUser, RoleAdmin:
		return true
	default:
		return false
	}
}

func (u *User) IsAdmin() bool {
	return u != nil && u.Role == RoleAdmin
}

func (u *User) HasRole(requiredRole UserRole) bool {
	switch requiredRole {
	case RoleAdmin:
		return u.Role == RoleAdmin
	case RoleUser:
		return u.Role == RoleUser || u.Role == RoleAdmin
	default:
		return false
	}
}

func (u *User) Summary() UserSummary {
	return UserSummary{
		ID:        u.ID,
		Name:      u.Name,
		Email:     u.Email,
		StudentID: u.StudentID,
	}
}

// Actor is the authenticated caller of a service operation.
type Actor struct {
	UserID uuid.UUID
	Role   UserRole
	Meta   *RequestMeta
}

func (a Actor) IsAdmin() bool {
	return a.Role == RoleAdmin
}

// CanManage reports whether the actor may modify a record owned by ownerID.
func (a Actor) CanManage(ownerID uuid.UUID) bool {
	return a.IsAdmin() || a.UserID == ownerID
}
