package handler

import (
	"github.com/gofiber/fiber/v2"

	"rentcore/internal/domain"
	"rentcore/internal/middleware"
	"rentcore/internal/service/catalog"
)

const maxImageSize = 10 * 1024 * 1024

type CatalogHandler struct {
	catalogService catalog.Service
}

func NewCatalogHandler(catalogService catalog.Service) *CatalogHandler {
	return &CatalogHandler{catalogService: catalogService}
}

// ListEquipment lists active equipment; administrators may pass
// include_inactive=true to see retired units too.
func (h *CatalogHandler) ListEquipment(c *fiber.Ctx) error {
	return h.list(c, domain.KindEquipment)
}

func (h *CatalogHandler) ListFacilities(c *fiber.Ctx) error {
	return h.list(c, domain.KindFacility)
}

func (h *CatalogHandler) list(c *fiber.Ctx, kind domain.ResourceKind) error {
	filter := domain.ResourceFilter{
		Kind:       &kind,
		ActiveOnly: !(middleware.IsAdmin(c) && c.QueryBool("include_inactive", false)),
		Category:   c.Query("category"),
	}

	resources, err := h.catalogService.List(c.UserContext(), filter)
	if err != nil {
		return err
	}

	return c.Status(fiber.StatusOK).JSON(resources)
}

func (h *CatalogHandler) GetEquipment(c *fiber.Ctx) error {
	id, err := parseUUIDParam(c, "id", "equipment")
	if err != nil {
		return err
	}

	resource, err := h.catalogService.FindResourceByID(c.UserContext(), id)
	if err != nil {
		return err
	}
	if !resource.IsEquipment() {
		return domain.ErrResourceNotFound
	}

	return c.Status(fiber.StatusOK).JSON(resource)
}

func (h *CatalogHandler) EquipmentReservations(c *fiber.Ctx) error {
	id, err := parseUUIDParam(c, "id", "equipment")
	if err != nil {
		return err
	}

	windows, err := h.catalogService.BookedWindows(c.UserContext(), id)
	if err != nil {
		return err
	}

	return c.Status(fiber.StatusOK).JSON(windows)
}

func (h *CatalogHandler) CreateEquipment(c *fiber.Ctx) error {
	var input domain.CreateEquipmentInput
	if err := parseBody(c, &input); err != nil {
		return err
	}

	resource, err := h.catalogService.CreateEquipment(c.UserContext(), input)
	if err != nil {
		return err
	}

	return c.Status(fiber.StatusCreated).JSON(resource)
}

func (h *CatalogHandler) CreateFacility(c *fiber.Ctx) error {
	var input domain.CreateFacilityInput
	if err := parseBody(c, &input); err != nil {
		return err
	}

	resource, err := h.catalogService.CreateFacility(c.UserContext(), input)
	if err != nil {
		return err
	}

	return c.Status(fiber.StatusCreated).JSON(resource)
}

func (h *CatalogHandler) SetEquipmentActive(c *fiber.Ctx) error {
	return h.setActive(c, domain.KindEquipment)
}

func (h *CatalogHandler) SetFacilityActive(c *fiber.Ctx) error {
	return h.setActive(c, domain.KindFacility)
}

func (h *CatalogHandler) setActive(c *fiber.Ctx, kind domain.ResourceKind) error {
	id, err := parseUUIDParam(c, "id", "resource")
	if err != nil {
		return err
	}

	var input domain.SetActiveInput
	if err := parseBody(c, &input); err != nil {
		return err
	}

	resource, err := h.catalogService.SetActive(c.UserContext(), id, kind, *input.IsActive)
	if err != nil {
		return err
	}

	return c.Status(fiber.StatusOK).JSON(resource)
}

func (h *CatalogHandler) SetEquipmentStatus(c *fiber.Ctx) error {
	id, err := parseUUIDParam(c, "id", "equipment")
	if err != nil {
		return err
	}

	var input domain.SetEquipmentStatusInput
	if err := parseBody(c, &input); err != nil {
		return err
	}

	resource, err := h.catalogService.SetEquipmentStatus(c.UserContext(), id, input.Status)
	if err != nil {
		return err
	}

	return c.Status(fiber.StatusOK).JSON(resource)
}

func (h *CatalogHandler) UploadImage(c *fiber.Ctx) error {
	id, err := parseUUIDParam(c, "id", "equipment")
	if err != nil {
		return err
	}

	file, err := c.FormFile("image")
	if err != nil {
		return middleware.BadRequest("Image file is required")
	}
	if file.Size > maxImageSize {
		return middleware.NewError(fiber.StatusRequestEntityTooLarge, "Image must be 10MB or smaller")
	}

	src, err := file.Open()
	if err != nil {
		return middleware.BadRequest("Failed to read image")
	}
	defer src.Close()

	resource, err := h.catalogService.UploadImage(c.UserContext(), id, file.Filename, file.Size, file.Header.Get("Content-Type"), src)
	if err != nil {
		return err
	}

	return c.Status(fiber.StatusOK).JSON(resource)
}
