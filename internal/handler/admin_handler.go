package handler

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"rentcore/internal/domain"
	"rentcore/internal/service/audit"
	"rentcore/internal/service/dashboard"
	"rentcore/internal/service/user"
)

type AdminHandler struct {
	dashboardService dashboard.Service
	userService      user.Service
	auditService     audit.Service
}

func NewAdminHandler(dashboardService dashboard.Service, userService user.Service, auditService audit.Service) *AdminHandler {
	return &AdminHandler{
		dashboardService: dashboardService,
		userService:      userService,
		auditService:     auditService,
	}
}

// Requests lists rental and facility requests together, newest first.
// Query: status, type (RENTAL|FACILITY), page, page_size.
func (h *AdminHandler) Requests(c *fiber.Ctx) error {
	status, err := parseStatusQuery(c)
	if err != nil {
		return err
	}

	filter := dashboard.RequestFilter{Status: status}
	if raw := strings.ToUpper(strings.TrimSpace(c.Query("type"))); raw != "" {
		kind := domain.RequestKind(raw)
		if kind != domain.RequestRental && kind != domain.RequestFacility {
			return domain.NewValidationError("type", "must be RENTAL or FACILITY")
		}
		filter.Kind = &kind
	}

	result, err := h.dashboardService.Requests(c.UserContext(), filter, getPaginationParams(c))
	if err != nil {
		return err
	}

	return c.Status(fiber.StatusOK).JSON(result)
}

func (h *AdminHandler) RequestCount(c *fiber.Ctx) error {
	counts, err := h.dashboardService.PendingCounts(c.UserContext())
	if err != nil {
		return err
	}

	return c.Status(fiber.StatusOK).JSON(counts)
}

func (h *AdminHandler) Users(c *fiber.Ctx) error {
	var role *domain.UserRole
	if raw := strings.ToUpper(strings.TrimSpace(c.Query("role"))); raw != "" {
		r := domain.UserRole(raw)
		role = &r
	}

	result, err := h.userService.List(c.UserContext(), role, getPaginationParams(c))
	if err != nil {
		return err
	}

	return c.Status(fiber.StatusOK).JSON(result)
}

func (h *AdminHandler) AuditLogs(c *fiber.Ctx) error {
	result, err := h.auditService.List(c.UserContext(), getPaginationParams(c))
	if err != nil {
		return err
	}

	return c.Status(fiber.StatusOK).JSON(result)
}
