package middleware

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"rentcore/internal/domain"
	"rentcore/internal/logging"
	"rentcore/internal/service/auth"
)

// AlreadyDecidedMessage is shown when a reviewer acts on a request someone
// else has already decided.
const AlreadyDecidedMessage = "이미 처리된 예약입니다."

type ErrorResponse struct {
	Code        string            `json:"code"`
	Message     string            `json:"message"`
	Fields      map[string]string `json:"fields,omitempty"`
	ResourceIDs []uuid.UUID       `json:"resource_ids,omitempty"`
	TraceID     string            `json:"trace_id,omitempty"`
}

func ErrorHandler(c *fiber.Ctx, err error) error {
	status, body := translate(err)

	if status >= fiber.StatusInternalServerError {
		body.TraceID = GetRequestID(c)
		if body.TraceID == "" {
			body.TraceID = uuid.New().String()[:8]
		}
		logging.FromContext(c.UserContext()).Error("request failed",
			"trace_id", body.TraceID, "error", err)
	}

	return c.Status(status).JSON(body)
}

func translate(err error) (int, ErrorResponse) {
	var (
		fe *fiber.Error
		ve *domain.ValidationError
		ce *domain.ConflictError
		ad *domain.AlreadyDecidedError
	)

	switch {
	case errors.As(err, &ve):
		return fiber.StatusBadRequest, ErrorResponse{Code: "VALIDATION_ERROR", Message: ve.Error(), Fields: ve.FieldErrors}
	case errors.As(err, &ce):
		status := fiber.StatusBadRequest
		if ce.AtApproval {
			status = fiber.StatusConflict
		}
		return status, ErrorResponse{Code: "CONFLICT", Message: "Requested window overlaps an existing booking", ResourceIDs: ce.ResourceIDs}
	case errors.As(err, &ad):
		return fiber.StatusConflict, ErrorResponse{Code: "ALREADY_DECIDED", Message: AlreadyDecidedMessage}
	case errors.Is(err, domain.ErrReservationNotFound),
		errors.Is(err, domain.ErrResourceNotFound),
		errors.Is(err, domain.ErrUserNotFound),
		errors.Is(err, domain.ErrNotificationNotFound):
		return fiber.StatusNotFound, ErrorResponse{Code: "NOT_FOUND", Message: err.Error()}
	case errors.Is(err, domain.ErrForbidden), errors.Is(err, auth.ErrInvalidAdminCode):
		return fiber.StatusForbidden, ErrorResponse{Code: "FORBIDDEN", Message: err.Error()}
	case errors.Is(err, auth.ErrEmailExists):
		return fiber.StatusConflict, ErrorResponse{Code: "CONFLICT", Message: err.Error()}
	case errors.Is(err, auth.ErrInvalidCredentials), errors.Is(err, auth.ErrInactiveUser), errors.Is(err, auth.ErrInvalidToken):
		return fiber.StatusUnauthorized, ErrorResponse{Code: "UNAUTHORIZED", Message: err.Error()}
	case errors.As(err, &fe):
		return fe.Code, ErrorResponse{Code: fiberCode(fe.Code), Message: fe.Message}
	default:
		return fiber.StatusInternalServerError, ErrorResponse{Code: "INTERNAL_ERROR", Message: "Internal server error"}
	}
}

func fiberCode(status int) string {
	switch status {
	case fiber.StatusBadRequest:
		return "BAD_REQUEST"
	case fiber.StatusUnauthorized:
		return "UNAUTHORIZED"
	case fiber.StatusForbidden:
		return "FORBIDDEN"
	case fiber.StatusNotFound:
		return "NOT_FOUND"
	case fiber.StatusConflict:
		return "CONFLICT"
	case fiber.StatusRequestEntityTooLarge:
		return "PAYLOAD_TOO_LARGE"
	case fiber.StatusTooManyRequests:
		return "RATE_LIMITED"
	case fiber.StatusUnprocessableEntity:
		return "VALIDATION_ERROR"
	default:
		if status >= fiber.StatusInternalServerError {
			return "INTERNAL_ERROR"
		}
		return "ERROR"
	}
}

func NewError(code int, message string) *fiber.Error {
	return fiber.NewError(code, message)
}

func BadRequest(message string) *fiber.Error {
	return fiber.NewError(fiber.StatusBadRequest, message)
}

func Unauthorized(message string) *fiber.Error {
	return fiber.NewError(fiber.StatusUnauthorized, message)
}
