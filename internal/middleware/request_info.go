package middleware

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"rentcore/internal/domain"
	"rentcore/internal/logging"
)

const (
	requestMetaKey = "request_meta"
	requestIDKey   = "request_id"
)

// RequestInfo records the caller's address and user agent and attaches a
// request-scoped logger to the user context.
func RequestInfo() fiber.Handler {
	return func(c *fiber.Ctx) error {
		meta := &domain.RequestMeta{
			IPAddress: clientIP(c),
			UserAgent: c.Get(fiber.HeaderUserAgent),
		}
		requestID := c.Get(fiber.HeaderXRequestID)
		if requestID == "" {
			requestID = uuid.NewString()
		}

		c.Locals(requestMetaKey, meta)
		c.Locals(requestIDKey, requestID)
		c.Set(fiber.HeaderXRequestID, requestID)

		logger := logging.FromContext(c.UserContext()).With(
			"request_id", requestID,
			"method", c.Method(),
			"path", c.Path(),
		)
		c.SetUserContext(logging.ContextWithLogger(c.UserContext(), logger))

		return c.Next()
	}
}

func clientIP(c *fiber.Ctx) string {
	if ip := c.Get("CF-Connecting-IP"); ip != "" {
		return ip
	}
	if forwarded := c.Get(fiber.HeaderXForwardedFor); forwarded != "" {
		return strings.TrimSpace(strings.Split(forwarded, ",")[0])
	}
	return c.IP()
}

func GetRequestMeta(c *fiber.Ctx) *domain.RequestMeta {
	meta, _ := c.Locals(requestMetaKey).(*domain.RequestMeta)
	return meta
}

func GetRequestID(c *fiber.Ctx) string {
	id, _ := c.Locals(requestIDKey).(string)
	return id
}
