package notification

import (
	"backend-navi/internal/shared/identity"
	"backend-navi/internal/shared/pagination"
	"backend-navi/internal/shared/response"

	"github.com/gofiber/fiber/v2"
)

func RegisterRoutes(r fiber.Router, svc *Service, authMiddleware fiber.Handler) {
	r.Use(authMiddleware)

	r.Get("/", func(c *fiber.Ctx) error {
		userID, err := identity.UserID(c)
		if err != nil {
			return err
		}
		items, meta, err := svc.List(c.UserContext(), userID, pagination.FromQuery(c), c.QueryBool("unread"))
		if err != nil {
			return err
		}
		return response.OK(c, fiber.Map{"notifications": items, "pagination": meta})
	})

	r.Put("/:id/read", func(c *fiber.Ctx) error {
		userID, err := identity.UserID(c)
		if err != nil {
			return err
		}
		n, err := svc.MarkRead(c.UserContext(), userID, c.Params("id"))
		if err != nil {
			return err
		}
		return response.OK(c, fiber.Map{"notification": n})
	})
}
