// Package response writes the uniform {success, data, error, message} envelope.
package response

import (
	"errors"

	"backend-navi/internal/apperr"
	"backend-navi/internal/logging"

	"github.com/gofiber/fiber/v2"
)

type Envelope struct {
	Success bool                `json:"success"`
	Data    any                 `json:"data,omitempty"`
	Error   string              `json:"error,omitempty"`
	Message string              `json:"message,omitempty"`
	Details []apperr.FieldError `json:"details,omitempty"`
}

func OK(c *fiber.Ctx, data any) error {
	return c.JSON(Envelope{Success: true, Data: data})
}

func Created(c *fiber.Ctx, data any) error {
	return c.Status(fiber.StatusCreated).JSON(Envelope{Success: true, Data: data})
}

func Message(c *fiber.Ctx, msg string) error {
	return c.JSON(Envelope{Success: true, Message: msg})
}

// ErrorHandler is installed as the fiber app's error handler. Only apperr
// messages reach the client; anything else becomes a generic 500.
func ErrorHandler(c *fiber.Ctx, err error) error {
	var fe *fiber.Error
	if errors.As(err, &fe) {
		return c.Status(fe.Code).JSON(Envelope{Success: false, Error: fe.Message})
	}

	status := apperr.Status(err)
	body := Envelope{Success: false}

	var appErr *apperr.Error
	switch {
	case status == fiber.StatusInternalServerError:
		logging.Ctx(c.UserContext()).Error().Err(err).Str("path", c.Path()).Msg("unhandled error")
		body.Error = "internal server error"
	case errors.As(err, &appErr):
		body.Error = appErr.Message
		body.Details = appErr.Fields
		if appErr.Err != nil {
			logging.Ctx(c.UserContext()).Warn().Err(appErr.Err).Str("path", c.Path()).Msg(appErr.Message)
		}
	default:
		body.Error = err.Error()
	}
	return c.Status(status).JSON(body)
}
