package memory

import "rentcore/internal/repository"

// NewRepositories wires a full in-memory repository set.
func NewRepositories() *repository.Repositories {
	return &repository.Repositories{
		Store:        NewStore(),
		User:         NewUsers(),
		Notification: NewNotifications(),
		AuditLog:     NewAuditLogs(),
	}
}

var (
	_ repository.Store                  = (*Store)(nil)
	_ repository.UserRepository         = (*Users)(nil)
	_ repository.NotificationRepository = (*Notifications)(nil)
	_ repository.AuditLogRepository     = (*AuditLogs)(nil)
)
