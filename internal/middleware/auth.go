package middleware

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/example/voucher/internal/config"
	"github.com/example/voucher/internal/utils"
)

const lineUserContextKey = "currentLineUserID"

// AuthMiddleware validates member tokens and loads the caller's LINE user id
// into context.
func AuthMiddleware(cfg *config.Config) fiber.Handler {
	return func(c *fiber.Ctx) error {
		authHeader := c.Get("Authorization")
		if authHeader == "" {
			return fiber.NewError(fiber.StatusUnauthorized, "missing authorization header")
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			return fiber.NewError(fiber.StatusUnauthorized, "invalid authorization header")
		}

		lineUserID, role, err := utils.ParseMemberToken(cfg.TokenSecret, parts[1])
		if err != nil || role != utils.RoleMember || lineUserID == "" {
			return fiber.NewError(fiber.StatusUnauthorized, "invalid token")
		}

		c.Locals(lineUserContextKey, lineUserID)
		return c.Next()
	}
}

// GetCurrentLineUserID extracts the authenticated LINE user id from context.
func GetCurrentLineUserID(c *fiber.Ctx) (string, bool) {
	value := c.Locals(lineUserContextKey)
	if value == nil {
		return "", false
	}

	if id, ok := value.(string); ok && id != "" {
		return id, true
	}

	return "", false
}
