// Package approval moves reservations out of their initial state. Every
// successful transition notifies the owner exactly once; a transition that
// loses a race or finds the row already decided changes nothing.
package approval

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"rentcore/internal/domain"
	"rentcore/internal/logging"
	"rentcore/internal/pkg/cache"
	"rentcore/internal/repository"
	"rentcore/internal/service/conflict"
	"rentcore/internal/service/notification"
)

// MissingReasonMessage is reported on the reason field when a rejection has
// no reason.
const MissingReasonMessage = "거절 사유를 입력해주세요."

type Service interface {
	ApproveReservation(ctx context.Context, actor domain.Actor, id uuid.UUID) (*domain.Reservation, error)
	RejectReservation(ctx context.Context, actor domain.Actor, id uuid.UUID, reason string) (*domain.Reservation, error)
	ApproveFacility(ctx context.Context, actor domain.Actor, id uuid.UUID) (*domain.FacilityReservation, error)
	RejectFacility(ctx context.Context, actor domain.Actor, id uuid.UUID, reason string) (*domain.FacilityReservation, error)
}

type service struct {
	store     repository.Store
	auditRepo repository.AuditLogRepository
	notifSvc  notification.Service
	redis     *redis.Client
	calendar  *cache.Generation
	now       func() time.Time
}

func NewService(store repository.Store, auditRepo repository.AuditLogRepository, notifSvc notification.Service, redis *redis.Client) Service {
	return &service{
		store:     store,
		auditRepo: auditRepo,
		notifSvc:  notifSvc,
		redis:     redis,
		calendar:  cache.NewGeneration(redis, cache.CalendarPrefix),
		now:       time.Now,
	}
}

func (s *service) ApproveReservation(ctx context.Context, actor domain.Actor, id uuid.UUID) (*domain.Reservation, error) {
	if !actor.IsAdmin() {
		return nil, domain.ErrForbidden
	}

	var approved *domain.Reservation
	err := s.store.Transact(ctx, func(tx repository.Tx) error {
		existing, err := tx.Reservations().GetByID(ctx, id)
		if err != nil {
			return err
		}
		if existing == nil {
			return domain.ErrReservationNotFound
		}
		if existing.Status != domain.StatusPending {
			return &domain.AlreadyDecidedError{ID: id, Status: existing.Status}
		}

		if err := tx.Resources().LockByIDs(ctx, existing.ResourceIDs()); err != nil {
			return fmt.Errorf("lock resources: %w", err)
		}

		current, err := tx.Reservations().GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if current == nil {
			return domain.ErrReservationNotFound
		}
		if current.Status != domain.StatusPending {
			return &domain.AlreadyDecidedError{ID: id, Status: current.Status}
		}
		if err := lockAdded(ctx, tx.Resources(), existing.ResourceIDs(), current.ResourceIDs()); err != nil {
			return err
		}

		if err := conflict.Check(ctx, tx.Reservations(), domain.ConflictQuery{
			ResourceIDs:      current.ResourceIDs(),
			Start:            current.StartAt,
			End:              current.EndAt,
			BlockingStatuses: domain.ApprovalBlockingStatuses,
			ExcludeID:        &id,
		}, true); err != nil {
			return err
		}

		t := s.transition(actor, id, domain.StatusPending, domain.StatusApproved, nil)
		if err := applyTransition(ctx, tx.Reservations().UpdateStatus, t); err != nil {
			return err
		}

		current.Status = t.To
		current.RejectReason = nil
		current.ReviewedBy = &t.ReviewedBy
		current.ReviewedAt = &t.ReviewedAt
		approved = current
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.calendar.Bump(ctx)
	s.afterDecision(ctx, actor, decisionRecord{
		kind:       domain.RequestRental,
		id:         approved.ID,
		ownerID:    approved.UserID,
		from:       domain.StatusPending,
		to:         domain.StatusApproved,
		startAt:    approved.StartAt,
		endAt:      approved.EndAt,
		auditEvent: domain.AuditApproveReservation,
		entityType: domain.EntityReservation,
	})
	return approved, nil
}

func (s *service) RejectReservation(ctx context.Context, actor domain.Actor, id uuid.UUID, reason string) (*domain.Reservation, error) {
	if !actor.IsAdmin() {
		return nil, domain.ErrForbidden
	}
	if err := validateReason(reason); err != nil {
		return nil, err
	}

	var rejected *domain.Reservation
	err := s.store.Transact(ctx, func(tx repository.Tx) error {
		current, err := tx.Reservations().GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if current == nil {
			return domain.ErrReservationNotFound
		}
		if current.Status != domain.StatusPending {
			return &domain.AlreadyDecidedError{ID: id, Status: current.Status}
		}

		t := s.transition(actor, id, domain.StatusPending, domain.StatusRejected, &reason)
		if err := applyTransition(ctx, tx.Reservations().UpdateStatus, t); err != nil {
			return err
		}

		current.Status = t.To
		current.RejectReason = t.RejectReason
		current.ReviewedBy = &t.ReviewedBy
		current.ReviewedAt = &t.ReviewedAt
		rejected = current
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.afterDecision(ctx, actor, decisionRecord{
		kind:       domain.RequestRental,
		id:         rejected.ID,
		ownerID:    rejected.UserID,
		from:       domain.StatusPending,
		to:         domain.StatusRejected,
		reason:     rejected.RejectReason,
		startAt:    rejected.StartAt,
		endAt:      rejected.EndAt,
		auditEvent: domain.AuditRejectReservation,
		entityType: domain.EntityReservation,
	})
	return rejected, nil
}

func (s *service) ApproveFacility(ctx context.Context, actor domain.Actor, id uuid.UUID) (*domain.FacilityReservation, error) {
	if !actor.IsAdmin() {
		return nil, domain.ErrForbidden
	}

	var approved *domain.FacilityReservation
	err := s.store.Transact(ctx, func(tx repository.Tx) error {
		existing, err := tx.FacilityReservations().GetByID(ctx, id)
		if err != nil {
			return err
		}
		if existing == nil {
			return domain.ErrReservationNotFound
		}
		if existing.Status != domain.StatusRequested {
			return &domain.AlreadyDecidedError{ID: id, Status: existing.Status}
		}

		if err := tx.Resources().LockByIDs(ctx, []uuid.UUID{existing.FacilityID}); err != nil {
			return fmt.Errorf("lock facility: %w", err)
		}

		current, err := tx.FacilityReservations().GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if current == nil {
			return domain.ErrReservationNotFound
		}
		if current.Status != domain.StatusRequested {
			return &domain.AlreadyDecidedError{ID: id, Status: current.Status}
		}
		if err := lockAdded(ctx, tx.Resources(), []uuid.UUID{existing.FacilityID}, []uuid.UUID{current.FacilityID}); err != nil {
			return err
		}

		if err := conflict.Check(ctx, tx.FacilityReservations(), domain.ConflictQuery{
			ResourceIDs:      []uuid.UUID{current.FacilityID},
			Start:            current.StartAt,
			End:              current.EndAt,
			BlockingStatuses: domain.ApprovalBlockingStatuses,
			ExcludeID:        &id,
		}, true); err != nil {
			return err
		}

		t := s.transition(actor, id, domain.StatusRequested, domain.StatusApproved, nil)
		if err := applyTransition(ctx, tx.FacilityReservations().UpdateStatus, t); err != nil {
			return err
		}

		current.Status = t.To
		current.RejectReason = nil
		current.ReviewedBy = &t.ReviewedBy
		current.ReviewedAt = &t.ReviewedAt
		approved = current
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.calendar.Bump(ctx)
	s.afterDecision(ctx, actor, decisionRecord{
		kind:       domain.RequestFacility,
		id:         approved.ID,
		ownerID:    approved.UserID,
		from:       domain.StatusRequested,
		to:         domain.StatusApproved,
		startAt:    approved.StartAt,
		endAt:      approved.EndAt,
		auditEvent: domain.AuditApproveFacility,
		entityType: domain.EntityFacilityReservation,
	})
	return approved, nil
}

func (s *service) RejectFacility(ctx context.Context, actor domain.Actor, id uuid.UUID, reason string) (*domain.FacilityReservation, error) {
	if !actor.IsAdmin() {
		return nil, domain.ErrForbidden
	}
	if err := validateReason(reason); err != nil {
		return nil, err
	}

	var rejected *domain.FacilityReservation
	err := s.store.Transact(ctx, func(tx repository.Tx) error {
		current, err := tx.FacilityReservations().GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if current == nil {
			return domain.ErrReservationNotFound
		}
		if current.Status != domain.StatusRequested {
			return &domain.AlreadyDecidedError{ID: id, Status: current.Status}
		}

		t := s.transition(actor, id, domain.StatusRequested, domain.StatusRejected, &reason)
		if err := applyTransition(ctx, tx.FacilityReservations().UpdateStatus, t); err != nil {
			return err
		}

		current.Status = t.To
		current.RejectReason = t.RejectReason
		current.ReviewedBy = &t.ReviewedBy
		current.ReviewedAt = &t.ReviewedAt
		rejected = current
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.afterDecision(ctx, actor, decisionRecord{
		kind:       domain.RequestFacility,
		id:         rejected.ID,
		ownerID:    rejected.UserID,
		from:       domain.StatusRequested,
		to:         domain.StatusRejected,
		reason:     rejected.RejectReason,
		startAt:    rejected.StartAt,
		endAt:      rejected.EndAt,
		auditEvent: domain.AuditRejectFacility,
		entityType: domain.EntityFacilityReservation,
	})
	return rejected, nil
}

func validateReason(reason string) error {
	if strings.TrimSpace(reason) == "" {
		return domain.NewValidationError("reason", MissingReasonMessage)
	}
	return nil
}

func (s *service) transition(actor domain.Actor, id uuid.UUID, from, to domain.ReservationStatus, reason *string) domain.StatusTransition {
	return domain.StatusTransition{
		ID:           id,
		From:         from,
		To:           to,
		RejectReason: reason,
		ReviewedBy:   actor.UserID,
		ReviewedAt:   s.now(),
	}
}

// applyTransition runs the conditional update. Zero affected rows means a
// concurrent reviewer got there first.
func applyTransition(ctx context.Context, update func(context.Context, domain.StatusTransition) (bool, error), t domain.StatusTransition) error {
	ok, err := update(ctx, t)
	if err != nil {
		return fmt.Errorf("update status: %w", err)
	}
	if !ok {
		return &domain.AlreadyDecidedError{ID: t.ID, Status: t.To}
	}
	return nil
}

// lockAdded locks the ids in want that held does not cover. The envelope row
// is read unlocked first to pick the resource locks, so an edit committed in
// between can move it onto resources that are not locked yet.
func lockAdded(ctx context.Context, repo repository.ResourceRepository, held, want []uuid.UUID) error {
	seen := make(map[uuid.UUID]bool, len(held))
	for _, id := range held {
		seen[id] = true
	}
	var added []uuid.UUID
	for _, id := range want {
		if !seen[id] {
			added = append(added, id)
		}
	}
	if len(added) == 0 {
		return nil
	}
	if err := repo.LockByIDs(ctx, added); err != nil {
		return fmt.Errorf("lock resources: %w", err)
	}
	return nil
}

type decisionRecord struct {
	kind       domain.RequestKind
	id         uuid.UUID
	ownerID    uuid.UUID
	from       domain.ReservationStatus
	to         domain.ReservationStatus
	reason     *string
	startAt    time.Time
	endAt      time.Time
	auditEvent string
	entityType string
}

// afterDecision runs once the transition is committed. Its failures are
// logged and never undo the decision.
func (s *service) afterDecision(ctx context.Context, actor domain.Actor, rec decisionRecord) {
	logger := logging.FromContext(ctx).With("reservation_id", rec.id, "type", rec.kind, "status", rec.to)

	cache.Delete(ctx, s.redis, cache.PendingCountsKey)

	if s.notifSvc != nil {
		if _, err := s.notifSvc.NotifyDecision(ctx, notification.Decision{
			UserID:        rec.ownerID,
			Kind:          rec.kind,
			ReservationID: rec.id,
			Approved:      rec.to == domain.StatusApproved,
			Reason:        rec.reason,
			StartAt:       rec.startAt,
			EndAt:         rec.endAt,
		}); err != nil {
			logger.Error("failed to push decision notification", "error", err)
		}
	}

	detail := map[string]interface{}{"user_id": rec.ownerID}
	if rec.reason != nil {
		detail["reason"] = *rec.reason
	}
	if err := repository.CreateAuditLog(ctx, s.auditRepo, domain.CreateAuditLogInput{
		ActorID:    actor.UserID,
		Action:     rec.auditEvent,
		EntityType: rec.entityType,
		EntityID:   rec.id,
		FromStatus: rec.from,
		ToStatus:   rec.to,
		Detail:     detail,
		Meta:       actor.Meta,
	}); err != nil {
		logger.Error("failed to write audit log", "error", err)
	}

	logger.Info("reservation decided", "admin_id", actor.UserID)
}
