package social

import (
	"backend-navi/internal/shared/identity"
	"backend-navi/internal/shared/pagination"
	"backend-navi/internal/shared/response"
	"backend-navi/internal/shared/validate"

	"github.com/gofiber/fiber/v2"
)

func RegisterRoutes(r fiber.Router, svc *Service, authMiddleware fiber.Handler) {
	r.Use(authMiddleware)

	r.Get("/friends", func(c *fiber.Ctx) error {
		userID, err := identity.UserID(c)
		if err != nil {
			return err
		}
		friends, err := svc.Friends(c.UserContext(), userID)
		if err != nil {
			return err
		}
		return response.OK(c, fiber.Map{"friends": friends})
	})

	r.Post("/friends/request", func(c *fiber.Ctx) error {
		userID, err := identity.UserID(c)
		if err != nil {
			return err
		}
		var in FriendRequestInput
		if err := validate.Body(c, &in); err != nil {
			return err
		}
		request, err := svc.SendRequest(c.UserContext(), userID, in)
		if err != nil {
			return err
		}
		return response.Created(c, fiber.Map{"request": request})
	})

	r.Post("/friends/accept/:id", func(c *fiber.Ctx) error {
		userID, err := identity.UserID(c)
		if err != nil {
			return err
		}
		request, err := svc.Accept(c.UserContext(), userID, c.Params("id"))
		if err != nil {
			return err
		}
		return response.OK(c, fiber.Map{"request": request})
	})

	r.Delete("/friends/:id", func(c *fiber.Ctx) error {
		userID, err := identity.UserID(c)
		if err != nil {
			return err
		}
		if err := svc.Remove(c.UserContext(), userID, c.Params("id")); err != nil {
			return err
		}
		return response.Message(c, "friend removed")
	})

	r.Get("/messages", func(c *fiber.Ctx) error {
		userID, err := identity.UserID(c)
		if err != nil {
			return err
		}
		messages, meta, err := svc.Messages(c.UserContext(), userID, pagination.FromQuery(c), MessageFilter{
			With:    c.Query("with"),
			GroupID: c.Query("group_id"),
		})
		if err != nil {
			return err
		}
		return response.OK(c, fiber.Map{"messages": messages, "pagination": meta})
	})

	r.Post("/messages", func(c *fiber.Ctx) error {
		userID, err := identity.UserID(c)
		if err != nil {
			return err
		}
		var req SendMessageRequest
		if err := validate.Body(c, &req); err != nil {
			return err
		}
		message, err := svc.Send(c.UserContext(), userID, req)
		if err != nil {
			return err
		}
		return response.Created(c, fiber.Map{"message": message})
	})

	r.Get("/groups", func(c *fiber.Ctx) error {
		userID, err := identity.UserID(c)
		if err != nil {
			return err
		}
		groups, err := svc.Groups(c.UserContext(), userID)
		if err != nil {
			return err
		}
		return response.OK(c, fiber.Map{"groups": groups})
	})

	r.Post("/groups", func(c *fiber.Ctx) error {
		userID, err := identity.UserID(c)
		if err != nil {
			return err
		}
		var req CreateGroupRequest
		if err := validate.Body(c, &req); err != nil {
			return err
		}
		group, err := svc.CreateGroup(c.UserContext(), userID, req)
		if err != nil {
			return err
		}
		return response.Created(c, fiber.Map{"group": group})
	})
}
