package middleware

import (
	"github.com/gofiber/fiber/v2"

	"github.com/example/voucher/internal/utils"
)

// AdminAuthMiddleware validates the X-Admin-Key header against the stored
// bcrypt hash. With no hash configured, admin routes are disabled outright.
func AdminAuthMiddleware(adminKeyHash string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if adminKeyHash == "" {
			return fiber.NewError(fiber.StatusForbidden, "admin api disabled")
		}

		key := c.Get("X-Admin-Key")
		if key == "" || !utils.CheckAPIKey(adminKeyHash, key) {
			return fiber.NewError(fiber.StatusUnauthorized, "invalid admin key")
		}

		return c.Next()
	}
}
