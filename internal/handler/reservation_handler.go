package handler

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"rentcore/internal/domain"
	"rentcore/internal/middleware"
	"rentcore/internal/service/approval"
	"rentcore/internal/service/audit"
	"rentcore/internal/service/reservation"
)

type ReservationHandler struct {
	reservationService reservation.Service
	approvalService    approval.Service
	auditService       audit.Service
}

func NewReservationHandler(reservationService reservation.Service, approvalService approval.Service, auditService audit.Service) *ReservationHandler {
	return &ReservationHandler{
		reservationService: reservationService,
		approvalService:    approvalService,
		auditService:       auditService,
	}
}

func (h *ReservationHandler) Create(c *fiber.Ctx) error {
	actor, err := middleware.GetActor(c)
	if err != nil {
		return err
	}

	var input domain.CreateReservationInput
	if err := parseBody(c, &input); err != nil {
		return err
	}

	created, err := h.reservationService.Create(c.UserContext(), actor, input)
	if err != nil {
		return err
	}

	return c.Status(fiber.StatusCreated).JSON(created)
}

func (h *ReservationHandler) CreateManual(c *fiber.Ctx) error {
	actor, err := middleware.GetActor(c)
	if err != nil {
		return err
	}

	var input domain.CreateReservationInput
	if err := parseBody(c, &input); err != nil {
		return err
	}

	created, err := h.reservationService.CreateManual(c.UserContext(), actor, input)
	if err != nil {
		return err
	}

	return c.Status(fiber.StatusCreated).JSON(created)
}

func (h *ReservationHandler) Update(c *fiber.Ctx) error {
	actor, err := middleware.GetActor(c)
	if err != nil {
		return err
	}
	id, err := parseUUIDParam(c, "id", "reservation")
	if err != nil {
		return err
	}

	var input domain.UpdateReservationInput
	if err := parseBody(c, &input); err != nil {
		return err
	}

	updated, err := h.reservationService.Update(c.UserContext(), actor, id, input)
	if err != nil {
		return err
	}

	return c.Status(fiber.StatusOK).JSON(updated)
}

func (h *ReservationHandler) Delete(c *fiber.Ctx) error {
	actor, err := middleware.GetActor(c)
	if err != nil {
		return err
	}
	id, err := parseUUIDParam(c, "id", "reservation")
	if err != nil {
		return err
	}

	if err := h.reservationService.Delete(c.UserContext(), actor, id); err != nil {
		return err
	}

	return c.SendStatus(fiber.StatusNoContent)
}

func (h *ReservationHandler) Get(c *fiber.Ctx) error {
	actor, err := middleware.GetActor(c)
	if err != nil {
		return err
	}
	id, err := parseUUIDParam(c, "id", "reservation")
	if err != nil {
		return err
	}

	res, err := h.reservationService.GetByID(c.UserContext(), actor, id)
	if err != nil {
		return err
	}

	return c.Status(fiber.StatusOK).JSON(res)
}

// List is the administrator view; filters are optional.
func (h *ReservationHandler) List(c *fiber.Ctx) error {
	var filter domain.ReservationFilter

	status, err := parseStatusQuery(c)
	if err != nil {
		return err
	}
	if status != nil {
		filter.Statuses = []domain.ReservationStatus{*status}
	}
	if filter.UserID, err = parseOptionalUUID(c, "user_id"); err != nil {
		return err
	}
	if filter.ResourceID, err = parseOptionalUUID(c, "resource_id"); err != nil {
		return err
	}

	result, err := h.reservationService.List(c.UserContext(), filter, getPaginationParams(c))
	if err != nil {
		return err
	}

	return c.Status(fiber.StatusOK).JSON(result)
}

func (h *ReservationHandler) Conflicts(c *fiber.Ctx) error {
	ids, err := parseUUIDList(c, "resource_ids")
	if err != nil {
		return err
	}
	start, err := parseTimeQuery(c, "start")
	if err != nil {
		return err
	}
	end, err := parseTimeQuery(c, "end")
	if err != nil {
		return err
	}
	exclude, err := parseOptionalUUID(c, "exclude_id")
	if err != nil {
		return err
	}

	conflicts, err := h.reservationService.Conflicts(c.UserContext(), reservation.ConflictLookup{
		ResourceIDs:  ids,
		Start:        start,
		End:          end,
		ExcludeID:    exclude,
		ApprovedOnly: c.QueryBool("approved_only", false),
	})
	if err != nil {
		return err
	}

	return c.Status(fiber.StatusOK).JSON(conflicts)
}

func (h *ReservationHandler) ByDate(c *fiber.Ctx) error {
	day, err := parseTimeQuery(c, "date")
	if err != nil {
		return err
	}
	if day.IsZero() {
		return domain.NewValidationError("date", "is required")
	}

	ids, err := h.reservationService.ApprovedEquipmentOn(c.UserContext(), day)
	if err != nil {
		return err
	}

	return c.Status(fiber.StatusOK).JSON(ids)
}

const defaultCalendarSpan = 31 * 24 * time.Hour

func (h *ReservationHandler) Calendar(c *fiber.Ctx) error {
	from, err := parseTimeQuery(c, "from")
	if err != nil {
		return err
	}
	to, err := parseTimeQuery(c, "to")
	if err != nil {
		return err
	}
	if from.IsZero() {
		now := time.Now().UTC()
		from = time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	}
	if to.IsZero() {
		to = from.Add(defaultCalendarSpan)
	}

	events, err := h.reservationService.Calendar(c.UserContext(), from, to)
	if err != nil {
		return err
	}

	return c.Status(fiber.StatusOK).JSON(events)
}

func (h *ReservationHandler) Approve(c *fiber.Ctx) error {
	actor, err := middleware.GetActor(c)
	if err != nil {
		return err
	}
	id, err := parseUUIDParam(c, "id", "reservation")
	if err != nil {
		return err
	}

	res, err := h.approvalService.ApproveReservation(c.UserContext(), actor, id)
	if err != nil {
		return err
	}

	return c.Status(fiber.StatusOK).JSON(res)
}

func (h *ReservationHandler) Reject(c *fiber.Ctx) error {
	actor, err := middleware.GetActor(c)
	if err != nil {
		return err
	}
	id, err := parseUUIDParam(c, "id", "reservation")
	if err != nil {
		return err
	}

	input, err := parseReject(c)
	if err != nil {
		return err
	}

	res, err := h.approvalService.RejectReservation(c.UserContext(), actor, id, input.Reason)
	if err != nil {
		return err
	}

	return c.Status(fiber.StatusOK).JSON(res)
}

func (h *ReservationHandler) History(c *fiber.Ctx) error {
	id, err := parseUUIDParam(c, "id", "reservation")
	if err != nil {
		return err
	}

	logs, err := h.auditService.History(c.UserContext(), domain.EntityReservation, id)
	if err != nil {
		return err
	}

	return c.Status(fiber.StatusOK).JSON(logs)
}

func (h *ReservationHandler) MyStatus(c *fiber.Ctx) error {
	userID := middleware.GetCurrentUserID(c)

	status, err := h.reservationService.MyStatus(c.UserContext(), userID)
	if err != nil {
		return err
	}

	return c.Status(fiber.StatusOK).JSON(status)
}

// parseReject treats an empty body as an empty reason so the missing-reason
// message comes from the workflow.
func parseReject(c *fiber.Ctx) (domain.RejectInput, error) {
	var input domain.RejectInput
	if len(c.Body()) == 0 {
		return input, nil
	}
	err := parseBody(c, &input)
	return input, err
}
