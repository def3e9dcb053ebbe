package user

import (
	"backend-navi/internal/shared/identity"
	"backend-navi/internal/shared/response"

	"github.com/gofiber/fiber/v2"
)

func RegisterRoutes(r fiber.Router, svc *Service, authMiddleware fiber.Handler) {
	r.Use(authMiddleware)

	r.Get("/profile", func(c *fiber.Ctx) error {
		userID, err := identity.UserID(c)
		if err != nil {
			return err
		}
		p, err := svc.Profile(c.UserContext(), userID)
		if err != nil {
			return err
		}
		return response.OK(c, fiber.Map{"user": p})
	})

	r.Put("/profile", func(c *fiber.Ctx) error {
		userID, err := identity.UserID(c)
		if err != nil {
			return err
		}
		var req UpdateProfileRequest
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid payload")
		}
		p, err := svc.UpdateProfile(c.UserContext(), userID, req)
		if err != nil {
			return err
		}
		return response.OK(c, fiber.Map{"user": p})
	})

	r.Put("/preferences", func(c *fiber.Ctx) error {
		userID, err := identity.UserID(c)
		if err != nil {
			return err
		}
		var req UpdatePreferencesRequest
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid payload")
		}
		prefs, err := svc.UpdatePreferences(c.UserContext(), userID, req)
		if err != nil {
			return err
		}
		return response.OK(c, fiber.Map{"preferences": prefs})
	})

	r.Get("/stats", func(c *fiber.Ctx) error {
		userID, err := identity.UserID(c)
		if err != nil {
			return err
		}
		st, err := svc.Stats(c.UserContext(), userID)
		if err != nil {
			return err
		}
		return response.OK(c, fiber.Map{"stats": st})
	})
}
