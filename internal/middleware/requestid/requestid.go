package requestid

import (
	"github.com/gofiber/fiber/v2"
	uuid "github.com/gofrs/uuid"

	"github.com/joefour/SnapJS-AdminServer/internal/pkg/log"
)

const (
	// HeaderRequestID is the HTTP header name for request ID
	HeaderRequestID = "X-Request-ID"
	// ContextKeyRequestID is the key used to store request ID in Fiber context
	ContextKeyRequestID = "request_id"
)

// New creates a middleware that generates or propagates X-Request-ID.
func New() fiber.Handler {
	return func(c *fiber.Ctx) error {
		requestID := c.Get(HeaderRequestID)
		if requestID == "" {
			id, _ := uuid.NewV4()
			requestID = id.String()
		}

		c.Locals(ContextKeyRequestID, requestID)
		c.Set(HeaderRequestID, requestID)
		// Downstream code logs through the user context
		c.SetUserContext(log.WithRequestID(c.UserContext(), requestID))

		return c.Next()
	}
}

// GetRequestID retrieves the request ID from Fiber context
func GetRequestID(c *fiber.Ctx) string {
	if id, ok := c.Locals(ContextKeyRequestID).(string); ok {
		return id
	}
	return ""
}
