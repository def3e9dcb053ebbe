// Package identity carries the authenticated user id through fiber locals.
package identity

import (
	"backend-navi/internal/apperr"

	"github.com/gofiber/fiber/v2"
)

// LocalsKey is the fiber locals key holding the caller id.
const LocalsKey = "user_id"

func Set(c *fiber.Ctx, userID string) {
	c.Locals(LocalsKey, userID)
}

// UserID returns the caller's id or an Unauthorized error when the request
// did not pass through the auth middleware.
func UserID(c *fiber.Ctx) (string, error) {
	id, ok := c.Locals(LocalsKey).(string)
	if !ok || id == "" {
		return "", apperr.Unauthorized("missing user")
	}
	return id, nil
}
