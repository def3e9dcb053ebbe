package auth

import (
	"backend-navi/internal/shared/identity"
	"backend-navi/internal/shared/response"
	"backend-navi/internal/shared/validate"

	"github.com/gofiber/fiber/v2"
)

func RegisterRoutes(r fiber.Router, svc *Service, authMiddleware fiber.Handler) {
	r.Post("/signup", func(c *fiber.Ctx) error {
		var req SignupRequest
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid payload")
		}
		user, tokens, err := svc.Signup(c.UserContext(), req)
		if err != nil {
			return err
		}
		return response.Created(c, AuthResponse{User: user, Tokens: tokens})
	})

	r.Post("/login", func(c *fiber.Ctx) error {
		var req LoginRequest
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid payload")
		}
		user, tokens, err := svc.Login(c.UserContext(), req)
		if err != nil {
			return err
		}
		return response.OK(c, AuthResponse{User: user, Tokens: tokens})
	})

	r.Post("/refresh", func(c *fiber.Ctx) error {
		var req RefreshRequest
		if err := validate.Body(c, &req); err != nil {
			return err
		}
		tokens, err := svc.Refresh(c.UserContext(), req.RefreshToken)
		if err != nil {
			return err
		}
		return response.OK(c, tokens)
	})

	r.Post("/logout", authMiddleware, func(c *fiber.Ctx) error {
		claims, err := claimsFrom(c)
		if err != nil {
			return err
		}
		var req LogoutRequest
		if len(c.Body()) > 0 {
			if err := c.BodyParser(&req); err != nil {
				return fiber.NewError(fiber.StatusBadRequest, "invalid payload")
			}
		}
		if err := svc.Logout(c.UserContext(), claims, req.RefreshToken); err != nil {
			return err
		}
		return response.Message(c, "logged out")
	})

	r.Post("/verify-email", func(c *fiber.Ctx) error {
		var req TokenRequest
		if err := validate.Body(c, &req); err != nil {
			return err
		}
		if err := svc.VerifyEmail(c.UserContext(), req.Token); err != nil {
			return err
		}
		return response.Message(c, "email verified")
	})

	r.Post("/forgot-password", func(c *fiber.Ctx) error {
		var req ForgotPasswordRequest
		if err := validate.Body(c, &req); err != nil {
			return err
		}
		if err := svc.ForgotPassword(c.UserContext(), req.Email); err != nil {
			return err
		}
		return response.Message(c, "if the email exists, a reset link has been sent")
	})

	r.Post("/reset-password", func(c *fiber.Ctx) error {
		var req ResetPasswordRequest
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid payload")
		}
		if err := svc.ResetPassword(c.UserContext(), req); err != nil {
			return err
		}
		return response.Message(c, "password updated")
	})

	r.Get("/me", authMiddleware, func(c *fiber.Ctx) error {
		userID, err := identity.UserID(c)
		if err != nil {
			return err
		}
		user, err := svc.Me(c.UserContext(), userID)
		if err != nil {
			return err
		}
		return response.OK(c, user)
	})
}
