package logging

import (
	"time"

	"github.com/gofiber/fiber/v2"
)

// Middleware logs one line per request. Errors returned by the chain are
// rendered through the app's error handler first so the logged status is
// the one the client sees.
func Middleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()

		if id, ok := c.Locals("requestid").(string); ok && id != "" {
			c.SetUserContext(ContextWithRequestID(c.UserContext(), id))
		}

		chainErr := c.Next()
		if chainErr != nil {
			if err := c.App().ErrorHandler(c, chainErr); err != nil {
				_ = c.SendStatus(fiber.StatusInternalServerError)
			}
		}

		status := c.Response().StatusCode()
		event := Ctx(c.UserContext()).Info()
		if status >= fiber.StatusInternalServerError {
			event = Ctx(c.UserContext()).Error().Err(chainErr)
		}
		event.
			Str("method", c.Method()).
			Str("path", c.Path()).
			Int("status", status).
			Dur("latency", time.Since(start)).
			Str("ip", c.IP()).
			Msg("request")
		return nil
	}
}
