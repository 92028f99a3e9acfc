package middleware

import (
	"crypto/subtle"

	"github.com/gofiber/fiber/v2"

	"github.com/creativehub/media/pkg/response"
)

// InternalAuthMiddleware guards service-to-service endpoints with a shared
// token. It fails closed: with no token configured, every request is
// rejected.
func InternalAuthMiddleware(expectedToken string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if expectedToken == "" {
			return response.Unauthorized(c, "Internal endpoints are not configured")
		}

		token := c.Get("X-Internal-Token")
		if subtle.ConstantTimeCompare([]byte(token), []byte(expectedToken)) != 1 {
			return response.Unauthorized(c, "Invalid internal token")
		}

		return c.Next()
	}
}
