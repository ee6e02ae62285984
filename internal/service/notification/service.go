package notification

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"rentcore/internal/domain"
	"rentcore/internal/logging"
	"rentcore/internal/pkg/i18n"
	"rentcore/internal/repository"
	"rentcore/internal/service/email"
)

// Decision is a workflow outcome to report to the requester.
type Decision struct {
	UserID        uuid.UUID
	Kind          domain.RequestKind
	ReservationID uuid.UUID
	Approved      bool
	Reason        *string
	StartAt       time.Time
	EndAt         time.Time
}

func (d Decision) notificationType() domain.NotificationType {
	switch {
	case d.Kind == domain.RequestFacility && d.Approved:
		return domain.NotifFacilityApproved
	case d.Kind == domain.RequestFacility:
		return domain.NotifFacilityRejected
	case d.Approved:
		return domain.NotifRentalApproved
	default:
		return domain.NotifRentalRejected
	}
}

type Service interface {
	Push(ctx context.Context, input domain.PushInput) (*domain.Notification, error)
	NotifyDecision(ctx context.Context, d Decision) (*domain.Notification, error)
	List(ctx context.Context, userID uuid.UUID, unreadOnly bool, params domain.PaginationParams) (domain.PaginatedResponse[domain.Notification], error)
	MarkAsRead(ctx context.Context, userID, id uuid.UUID) error
	MarkAllAsRead(ctx context.Context, userID uuid.UUID) (int64, error)
	GetUnreadCount(ctx context.Context, userID uuid.UUID) (int64, error)
}

type service struct {
	notifRepo repository.NotificationRepository
	userRepo  repository.UserRepository
	emailSvc  email.Service
	locale    string
	async     func(fn func())
}

func NewService(notifRepo repository.NotificationRepository, userRepo repository.UserRepository, emailSvc email.Service, locale string) Service {
	return &service{
		notifRepo: notifRepo,
		userRepo:  userRepo,
		emailSvc:  emailSvc,
		locale:    locale,
		async:     func(fn func()) { go fn() },
	}
}

func (s *service) Push(ctx context.Context, input domain.PushInput) (*domain.Notification, error) {
	var data json.RawMessage
	if len(input.Data) > 0 {
		b, err := json.Marshal(input.Data)
		if err != nil {
			return nil, err
		}
		data = b
	}

	notif := &domain.Notification{
		ID:      uuid.New(),
		UserID:  input.UserID,
		Type:    input.Type,
		Title:   input.Title,
		Message: input.Message,
		Data:    data,
	}
	if err := s.notifRepo.Create(ctx, notif); err != nil {
		return nil, fmt.Errorf("failed to create notification: %w", err)
	}
	return notif, nil
}

// NotifyDecision stores the in-app notification and mails the requester in
// the background. Mail failures are only logged.
func (s *service) NotifyDecision(ctx context.Context, d Decision) (*domain.Notification, error) {
	typ := d.notificationType()
	title := i18n.Translate(s.locale, string(typ)+".title")
	message := i18n.Translate(s.locale, string(typ)+".message")

	data := map[string]string{
		"reservation_id": d.ReservationID.String(),
		"type":           string(d.Kind),
	}
	if d.Reason != nil {
		data["reason"] = *d.Reason
	}

	notif, err := s.Push(ctx, domain.PushInput{
		UserID:  d.UserID,
		Type:    typ,
		Title:   title,
		Message: message,
		Data:    data,
	})
	if err != nil {
		return nil, err
	}

	if s.emailSvc != nil {
		user, err := s.userRepo.GetByID(ctx, d.UserID)
		if err != nil {
			logging.FromContext(ctx).Warn("failed to load notification recipient", "user_id", d.UserID, "error", err)
		} else if user != nil && user.Email != "" {
			logger := logging.FromContext(ctx)
			msg := email.Decision{
				ToEmail:  user.Email,
				Name:     user.Name,
				Title:    title,
				Message:  message,
				Approved: d.Approved,
				Reason:   d.Reason,
				StartAt:  d.StartAt,
				EndAt:    d.EndAt,
			}
			s.async(func() {
				ctx := logging.ContextWithLogger(context.Background(), logger)
				if err := s.emailSvc.SendDecisionEmail(ctx, msg); err != nil {
					logger.Error("failed to send decision email", "email", msg.ToEmail, "error", err)
				}
			})
		}
	}

	return notif, nil
}

func (s *service) List(ctx context.Context, userID uuid.UUID, unreadOnly bool, params domain.PaginationParams) (domain.PaginatedResponse[domain.Notification], error) {
	params.Normalize()
	notifications, total, err := s.notifRepo.ListByUser(ctx, userID, unreadOnly, params)
	if err != nil {
		return domain.PaginatedResponse[domain.Notification]{}, err
	}

	return domain.NewPaginatedResponse(notifications, params, total), nil
}

func (s *service) MarkAsRead(ctx context.Context, userID, id uuid.UUID) error {
	ok, err := s.notifRepo.MarkAsRead(ctx, userID, id)
	if err != nil {
		return err
	}
	if !ok {
		return domain.ErrNotificationNotFound
	}
	return nil
}

func (s *service) MarkAllAsRead(ctx context.Context, userID uuid.UUID) (int64, error) {
	return s.notifRepo.MarkAllAsRead(ctx, userID)
}

func (s *service) GetUnreadCount(ctx context.Context, userID uuid.UUID) (int64, error) {
	return s.notifRepo.CountUnread(ctx, userID)
}
