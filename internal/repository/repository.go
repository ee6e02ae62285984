package repository

import (
	"context"

	"github.com/jmoiron/sqlx"
)

// DBTX is satisfied by both *sqlx.DB and *sqlx.Tx so repositories can run
// inside or outside a transaction.
type DBTX interface {
	sqlx.ExtContext
	GetContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
	SelectContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
}

// Tx exposes the repositories that take part in booking transactions.
type Tx interface {
	Resources() ResourceRepository
	Reservations() ReservationRepository
	FacilityReservations() FacilityReservationRepository
}

// Store runs fn atomically: either every write made through tx commits or
// none does. fn may be invoked more than once when the database asks for a
// retry, so it must not leak state between attempts.
type Store interface {
	Tx
	Transact(ctx context.Context, fn func(tx Tx) error) error
}

type Repositories struct {
	Store        Store
	User         UserRepository
	Notification NotificationRepository
	AuditLog     AuditLogRepository
}

func NewRepositories(db *sqlx.DB, txMaxRetries int) *Repositories {
	return &Repositories{
		Store:        NewPostgresStore(db, txMaxRetries),
		User:         NewUserRepository(db),
		Notification: NewNotificationRepository(db),
		AuditLog:     NewAuditLogRepository(db),
	}
}
