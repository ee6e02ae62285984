package repository

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"rentcore/internal/logging"
)

type postgresStore struct {
	db         *sqlx.DB
	maxRetries int
	repos      pgRepos
}

type pgRepos struct {
	resources    ResourceRepository
	reservations ReservationRepository
	facilities   FacilityReservationRepository
}

func newPgRepos(db DBTX) pgRepos {
	return pgRepos{
		resources:    NewResourceRepository(db),
		reservations: NewReservationRepository(db),
		facilities:   NewFacilityReservationRepository(db),
	}
}

func (r pgRepos) Resources() ResourceRepository                       { return r.resources }
func (r pgRepos) Reservations() ReservationRepository                 { return r.reservations }
func (r pgRepos) FacilityReservations() FacilityReservationRepository { return r.facilities }

func NewPostgresStore(db *sqlx.DB, maxRetries int) Store {
	if maxRetries < 0 {
		maxRetries = 0
	}
	return &postgresStore{db: db, maxRetries: maxRetries, repos: newPgRepos(db)}
}

func (s *postgresStore) Resources() ResourceRepository       { return s.repos.resources }
func (s *postgresStore) Reservations() ReservationRepository { return s.repos.reservations }
func (s *postgresStore) FacilityReservations() FacilityReservationRepository {
	return s.repos.facilities
}

// Transact runs fn at READ COMMITTED. Writers serialise on resource row
// locks; serialization failures and deadlocks are retried with backoff.
func (s *postgresStore) Transact(ctx context.Context, fn func(tx Tx) error) error {
	for attempt := 0; ; attempt++ {
		err := s.transactOnce(ctx, fn)
		if err == nil {
			return nil
		}
		if !IsRetryable(err) || attempt >= s.maxRetries {
			return err
		}

		delay := time.Duration(attempt*attempt+1)*20*time.Millisecond + time.Duration(rand.Intn(50))*time.Millisecond
		logging.FromContext(ctx).Warn("retrying transaction", "attempt", attempt+1, "error", err)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}
}

func (s *postgresStore) transactOnce(ctx context.Context, fn func(tx Tx) error) (err error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()

	if err := fn(newPgRepos(tx)); err != nil {
		_ = tx.Rollback()
		return err
	}

	return tx.Commit()
}

// IsRetryable reports serialization_failure (40001) and deadlock_detected (40P01).
func IsRetryable(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "40001" || pqErr.Code == "40P01"
	}
	return false
}

// IsUniqueViolation reports unique_violation (23505).
func IsUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}
