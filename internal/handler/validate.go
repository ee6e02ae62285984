package handler

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"
	"unicode"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"rentcore/internal/domain"
	"rentcore/internal/middleware"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		if name == "" {
			return fld.Name
		}
		return name
	})
	return v
}

// parseBody decodes a JSON body, rejecting unknown fields, and runs the
// struct's validate tags.
func parseBody(c *fiber.Ctx, dst interface{}) error {
	dec := json.NewDecoder(bytes.NewReader(c.Body()))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return decodeError(err)
	}
	if dec.More() {
		return middleware.BadRequest("Request body must contain a single JSON object")
	}
	return validateStruct(dst)
}

func decodeError(err error) error {
	var (
		syntaxErr *json.SyntaxError
		typeErr   *json.UnmarshalTypeError
		timeErr   *time.ParseError
	)
	switch {
	case errors.As(err, &typeErr):
		return domain.NewValidationError(typeErr.Field, "has the wrong type")
	case errors.As(err, &timeErr):
		return middleware.BadRequest("Timestamps must be RFC 3339")
	case errors.As(err, &syntaxErr):
		return middleware.BadRequest("Malformed JSON body")
	case strings.HasPrefix(err.Error(), "json: unknown field "):
		field := strings.Trim(strings.TrimPrefix(err.Error(), "json: unknown field "), `"`)
		return domain.NewValidationError(field, "unknown field")
	case err.Error() == "EOF":
		return middleware.BadRequest("Request body is required")
	default:
		return middleware.BadRequest("Invalid request body")
	}
}

func validateStruct(s interface{}) error {
	err := validate.Struct(s)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}

	out := &domain.ValidationError{}
	for _, fe := range verrs {
		out.Add(fieldPath(fe), describe(fe))
	}
	return out
}

// fieldPath keeps the JSON-named segments of the namespace, dropping the
// struct and embedded type names: "CreateReservationInput.ReservationMetadata.purpose"
// becomes "purpose".
func fieldPath(fe validator.FieldError) string {
	var parts []string
	for _, seg := range strings.Split(fe.Namespace(), ".") {
		if seg == "" || unicode.IsUpper([]rune(seg)[0]) {
			continue
		}
		parts = append(parts, seg)
	}
	if len(parts) == 0 {
		return fe.Field()
	}
	return strings.Join(parts, ".")
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required", "required_without":
		return "is required"
	case "email":
		return "must be a valid email address"
	case "url":
		return "must be a valid URL"
	case "min":
		return fmt.Sprintf("must be at least %s", fe.Param())
	case "max":
		return fmt.Sprintf("must be at most %s", fe.Param())
	case "oneof":
		return fmt.Sprintf("must be one of %s", fe.Param())
	default:
		return fmt.Sprintf("failed %s validation", fe.Tag())
	}
}

func parseUUIDParam(c *fiber.Ctx, name, label string) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Params(name))
	if err != nil {
		return uuid.Nil, middleware.BadRequest("Invalid " + label + " ID")
	}
	return id, nil
}

func getPaginationParams(c *fiber.Ctx) domain.PaginationParams {
	params := domain.PaginationParams{
		Page:     c.QueryInt("page", 1),
		PageSize: c.QueryInt("page_size", 20),
	}
	params.Normalize()
	return params
}

// parseTimeQuery accepts RFC 3339 timestamps or bare YYYY-MM-DD dates (UTC
// midnight). An absent value yields the zero time.
func parseTimeQuery(c *fiber.Ctx, key string) (time.Time, error) {
	raw := strings.TrimSpace(c.Query(key))
	if raw == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t, nil
	}
	if t, err := time.Parse(time.DateOnly, raw); err == nil {
		return t, nil
	}
	return time.Time{}, domain.NewValidationError(key, "must be an RFC 3339 timestamp or YYYY-MM-DD date")
}

func parseUUIDList(c *fiber.Ctx, key string) ([]uuid.UUID, error) {
	raw := strings.TrimSpace(c.Query(key))
	if raw == "" {
		return nil, nil
	}
	var ids []uuid.UUID
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, err := uuid.Parse(part)
		if err != nil {
			return nil, domain.NewValidationError(key, "contains an invalid id")
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func parseOptionalUUID(c *fiber.Ctx, key string) (*uuid.UUID, error) {
	raw := strings.TrimSpace(c.Query(key))
	if raw == "" {
		return nil, nil
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return nil, domain.NewValidationError(key, "must be a UUID")
	}
	return &id, nil
}

func parseStatusQuery(c *fiber.Ctx) (*domain.ReservationStatus, error) {
	raw := strings.ToUpper(strings.TrimSpace(c.Query("status")))
	if raw == "" {
		return nil, nil
	}
	s := domain.ReservationStatus(raw)
	switch s {
	case domain.StatusPending, domain.StatusRequested, domain.StatusApproved, domain.StatusRejected:
		return &s, nil
	default:
		return nil, domain.NewValidationError("status", "must be one of PENDING, REQUESTED, APPROVED, REJECTED")
	}
}
