package service

import (
	"github.com/minio/minio-go/v7"
	"github.com/redis/go-redis/v9"

	"rentcore/internal/config"
	"rentcore/internal/repository"
	"rentcore/internal/service/approval"
	"rentcore/internal/service/audit"
	"rentcore/internal/service/auth"
	"rentcore/internal/service/catalog"
	"rentcore/internal/service/dashboard"
	"rentcore/internal/service/email"
	"rentcore/internal/service/facility"
	"rentcore/internal/service/notification"
	"rentcore/internal/service/reservation"
	"rentcore/internal/service/user"
)

type Services struct {
	Auth         auth.Service
	User         user.Service
	Catalog      catalog.Service
	Reservation  reservation.Service
	Facility     facility.Service
	Approval     approval.Service
	Notification notification.Service
	Email        email.Service
	Audit        audit.Service
	Dashboard    dashboard.Service
}

func NewServices(repos *repository.Repositories, redis *redis.Client, minioClient *minio.Client, cfg *config.Config) *Services {
	emailService := email.NewService(cfg)
	notificationService := notification.NewService(repos.Notification, repos.User, emailService, cfg.DefaultLocale)

	var objects catalog.ObjectStorage
	if minioClient != nil {
		objects = minioClient
	}

	return &Services{
		Auth:         auth.NewService(repos.User, cfg),
		User:         user.NewService(repos.User),
		Catalog:      catalog.NewService(repos.Store, objects, cfg),
		Reservation:  reservation.NewService(repos.Store, repos.User, repos.AuditLog, redis, cfg.CacheTTL),
		Facility:     facility.NewService(repos.Store, repos.User, redis),
		Approval:     approval.NewService(repos.Store, repos.AuditLog, notificationService, redis),
		Notification: notificationService,
		Email:        emailService,
		Audit:        audit.NewService(repos.AuditLog),
		Dashboard:    dashboard.NewService(repos.Store, repos.User, redis, cfg.CacheTTL),
	}
}
