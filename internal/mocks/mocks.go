// Package mocks holds testify mocks for repository and service interfaces.
package mocks

import (
	"rentcore/internal/repository"
	"rentcore/internal/service/email"
	"rentcore/internal/service/notification"
)

var (
	_ repository.UserRepository         = (*UserRepository)(nil)
	_ repository.NotificationRepository = (*NotificationRepository)(nil)
	_ repository.AuditLogRepository     = (*AuditLogRepository)(nil)
	_ email.Service                     = (*EmailService)(nil)
	_ notification.Service              = (*NotificationService)(nil)
)
