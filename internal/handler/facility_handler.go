package handler

import (
	"github.com/gofiber/fiber/v2"

	"rentcore/internal/domain"
	"rentcore/internal/middleware"
	"rentcore/internal/service/approval"
	"rentcore/internal/service/facility"
)

type FacilityReservationHandler struct {
	facilityService facility.Service
	approvalService approval.Service
}

func NewFacilityReservationHandler(facilityService facility.Service, approvalService approval.Service) *FacilityReservationHandler {
	return &FacilityReservationHandler{
		facilityService: facilityService,
		approvalService: approvalService,
	}
}

func (h *FacilityReservationHandler) Create(c *fiber.Ctx) error {
	actor, err := middleware.GetActor(c)
	if err != nil {
		return err
	}

	var input domain.CreateFacilityReservationInput
	if err := parseBody(c, &input); err != nil {
		return err
	}

	created, err := h.facilityService.Create(c.UserContext(), actor, input)
	if err != nil {
		return err
	}

	return c.Status(fiber.StatusCreated).JSON(created)
}

// List shows every request to administrators and only the caller's own
// requests to everyone else.
func (h *FacilityReservationHandler) List(c *fiber.Ctx) error {
	actor, err := middleware.GetActor(c)
	if err != nil {
		return err
	}

	var filter domain.FacilityReservationFilter
	status, err := parseStatusQuery(c)
	if err != nil {
		return err
	}
	if status != nil {
		filter.Statuses = []domain.ReservationStatus{*status}
	}
	if filter.FacilityID, err = parseOptionalUUID(c, "facility_id"); err != nil {
		return err
	}
	if !actor.IsAdmin() {
		filter.UserID = &actor.UserID
	}

	result, err := h.facilityService.List(c.UserContext(), filter, getPaginationParams(c))
	if err != nil {
		return err
	}

	return c.Status(fiber.StatusOK).JSON(result)
}

func (h *FacilityReservationHandler) Get(c *fiber.Ctx) error {
	actor, err := middleware.GetActor(c)
	if err != nil {
		return err
	}
	id, err := parseUUIDParam(c, "id", "facility reservation")
	if err != nil {
		return err
	}

	fr, err := h.facilityService.GetByID(c.UserContext(), actor, id)
	if err != nil {
		return err
	}

	return c.Status(fiber.StatusOK).JSON(fr)
}

func (h *FacilityReservationHandler) Delete(c *fiber.Ctx) error {
	actor, err := middleware.GetActor(c)
	if err != nil {
		return err
	}
	id, err := parseUUIDParam(c, "id", "facility reservation")
	if err != nil {
		return err
	}

	if err := h.facilityService.Delete(c.UserContext(), actor, id); err != nil {
		return err
	}

	return c.SendStatus(fiber.StatusNoContent)
}

func (h *FacilityReservationHandler) Approve(c *fiber.Ctx) error {
	actor, err := middleware.GetActor(c)
	if err != nil {
		return err
	}
	id, err := parseUUIDParam(c, "id", "facility reservation")
	if err != nil {
		return err
	}

	fr, err := h.approvalService.ApproveFacility(c.UserContext(), actor, id)
	if err != nil {
		return err
	}

	return c.Status(fiber.StatusOK).JSON(fr)
}

func (h *FacilityReservationHandler) Reject(c *fiber.Ctx) error {
	actor, err := middleware.GetActor(c)
	if err != nil {
		return err
	}
	id, err := parseUUIDParam(c, "id", "facility reservation")
	if err != nil {
		return err
	}

	input, err := parseReject(c)
	if err != nil {
		return err
	}

	fr, err := h.approvalService.RejectFacility(c.UserContext(), actor, id, input.Reason)
	if err != nil {
		return err
	}

	return c.Status(fiber.StatusOK).JSON(fr)
}
