package handler

import (
	"github.com/gofiber/fiber/v2"

	"rentcore/internal/domain"
	"rentcore/internal/middleware"
	"rentcore/internal/service/auth"
)

// Register mounts the API on router, normally the /api/v1 group.
func (h *Handlers) Register(router fiber.Router, authService auth.Service) {
	authRoutes := router.Group("/auth")
	authRoutes.Post("/register", h.Auth.Register)
	authRoutes.Post("/login", h.Auth.Login)
	authRoutes.Post("/admin/register", h.Auth.RegisterAdmin)

	protected := router.Group("", middleware.AuthRequired(authService))
	adminOnly := middleware.RequireRole(domain.RoleAdmin)

	protected.Get("/auth/me", h.Auth.Me)
	protected.Get("/my/status", h.Reservation.MyStatus)

	reservations := protected.Group("/reservations")
	reservations.Post("/", h.Reservation.Create)
	reservations.Post("/manual", adminOnly, h.Reservation.CreateManual)
	reservations.Get("/", adminOnly, h.Reservation.List)
	reservations.Get("/conflicts", h.Reservation.Conflicts)
	reservations.Get("/by-date", h.Reservation.ByDate)
	reservations.Get("/calendar", h.Reservation.Calendar)
	reservations.Get("/:id", h.Reservation.Get)
	reservations.Get("/:id/history", adminOnly, h.Reservation.History)
	reservations.Put("/:id", h.Reservation.Update)
	reservations.Delete("/:id", h.Reservation.Delete)
	reservations.Patch("/:id/approve", adminOnly, h.Reservation.Approve)
	reservations.Patch("/:id/reject", adminOnly, h.Reservation.Reject)

	facilityReservations := protected.Group("/facility-reservations")
	facilityReservations.Post("/", h.Facility.Create)
	facilityReservations.Get("/", h.Facility.List)
	facilityReservations.Get("/:id", h.Facility.Get)
	facilityReservations.Delete("/:id", h.Facility.Delete)
	facilityReservations.Patch("/:id/approve", adminOnly, h.Facility.Approve)
	facilityReservations.Patch("/:id/reject", adminOnly, h.Facility.Reject)

	equipments := protected.Group("/equipments")
	equipments.Get("/", h.Catalog.ListEquipment)
	equipments.Post("/", adminOnly, h.Catalog.CreateEquipment)
	equipments.Get("/:id", h.Catalog.GetEquipment)
	equipments.Get("/:id/reservations", h.Catalog.EquipmentReservations)
	equipments.Patch("/:id/active", adminOnly, h.Catalog.SetEquipmentActive)
	equipments.Patch("/:id/status", adminOnly, h.Catalog.SetEquipmentStatus)
	equipments.Put("/:id/image", adminOnly, h.Catalog.UploadImage)

	facilities := protected.Group("/facilities")
	facilities.Get("/", h.Catalog.ListFacilities)
	facilities.Post("/", adminOnly, h.Catalog.CreateFacility)
	facilities.Patch("/:id/active", adminOnly, h.Catalog.SetFacilityActive)

	admin := protected.Group("/admin", adminOnly)
	admin.Get("/requests", h.Admin.Requests)
	admin.Get("/requests/count", h.Admin.RequestCount)
	admin.Get("/users", h.Admin.Users)
	admin.Get("/audit-logs", h.Admin.AuditLogs)

	notifications := protected.Group("/notifications")
	notifications.Get("/", h.Notification.List)
	notifications.Get("/unread-count", h.Notification.GetUnreadCount)
	notifications.Patch("/:id/read", h.Notification.MarkAsRead)
	notifications.Post("/mark-all-read", h.Notification.MarkAllAsRead)
}
