package handler

import "rentcore/internal/service"

type Handlers struct {
	Auth         *AuthHandler
	Reservation  *ReservationHandler
	Facility     *FacilityReservationHandler
	Catalog      *CatalogHandler
	Admin        *AdminHandler
	Notification *NotificationHandler
}

func NewHandlers(services *service.Services) *Handlers {
	return &Handlers{
		Auth:         NewAuthHandler(services.Auth),
		Reservation:  NewReservationHandler(services.Reservation, services.Approval, services.Audit),
		Facility:     NewFacilityReservationHandler(services.Facility, services.Approval),
		Catalog:      NewCatalogHandler(services.Catalog),
		Admin:        NewAdminHandler(services.Dashboard, services.User, services.Audit),
		Notification: NewNotificationHandler(services.Notification),
	}
}
