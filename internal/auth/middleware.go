package auth

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	apperrors "github.com/spec-kit/ticket-intake/pkg/util"
)

const integrationNameKey = "auth_integration"

// RequireIntegrationKey guards ingestion and operator routes with an
// X-API-Key header. With no keys configured the check is skipped.
func RequireIntegrationKey(keys *IntegrationKeys) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if !keys.Enabled() {
			return c.Next()
		}
		name, ok := keys.Verify(c.Get("X-API-Key"))
		if !ok {
			return apperrors.NewUnauthorized("invalid or missing api key")
		}
		c.Locals(integrationNameKey, name)
		return c.Next()
	}
}

// IntegrationFromContext returns the verified integration name, if any.
func IntegrationFromContext(c *fiber.Ctx) (string, bool) {
	name, ok := c.Locals(integrationNameKey).(string)
	return name, ok && name != ""
}

// RequireTicketAccess accepts either a valid integration API key or a
// bearer token scoped to the ticket in the :id route parameter. With
// neither tokens nor keys configured the check is skipped.
func RequireTicketAccess(tokens *TicketTokenManager, keys *IntegrationKeys) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if tokens == nil && !keys.Enabled() {
			return c.Next()
		}
		if keys.Enabled() {
			if name, ok := keys.Verify(c.Get("X-API-Key")); ok {
				c.Locals(integrationNameKey, name)
				return c.Next()
			}
		}
		if tokens != nil {
			header := c.Get("Authorization")
			if token, found := strings.CutPrefix(header, "Bearer "); found {
				if _, err := tokens.Verify(strings.TrimSpace(token), c.Params("id")); err == nil {
					return c.Next()
				}
			}
		}
		return apperrors.NewUnauthorized("ticket access requires an api key or ticket token")
	}
}
