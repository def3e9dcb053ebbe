package trip

import (
	"backend-navi/internal/shared/identity"
	"backend-navi/internal/shared/pagination"
	"backend-navi/internal/shared/response"
	"backend-navi/internal/shared/validate"

	"github.com/gofiber/fiber/v2"
)

func RegisterRoutes(r fiber.Router, svc *Service, authMiddleware fiber.Handler) {
	r.Use(authMiddleware)

	r.Post("/", func(c *fiber.Ctx) error {
		userID, err := identity.UserID(c)
		if err != nil {
			return err
		}
		var req CreateRequest
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid payload")
		}
		trip, err := svc.Create(c.UserContext(), userID, req)
		if err != nil {
			return err
		}
		return response.Created(c, fiber.Map{"trip": trip})
	})

	r.Get("/", func(c *fiber.Ctx) error {
		userID, err := identity.UserID(c)
		if err != nil {
			return err
		}
		var f ListFilter
		if v := c.Query("completed"); v != "" {
			done := v == "true"
			f.Completed = &done
		}
		trips, meta, err := svc.List(c.UserContext(), userID, pagination.FromQuery(c), f)
		if err != nil {
			return err
		}
		return response.OK(c, fiber.Map{"trips": trips, "pagination": meta})
	})

	r.Get("/:id", func(c *fiber.Ctx) error {
		userID, err := identity.UserID(c)
		if err != nil {
			return err
		}
		trip, err := svc.Get(c.UserContext(), userID, c.Params("id"))
		if err != nil {
			return err
		}
		return response.OK(c, fiber.Map{"trip": trip})
	})

	r.Put("/:id", func(c *fiber.Ctx) error {
		userID, err := identity.UserID(c)
		if err != nil {
			return err
		}
		var req UpdateRequest
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid payload")
		}
		trip, err := svc.Update(c.UserContext(), userID, c.Params("id"), req)
		if err != nil {
			return err
		}
		return response.OK(c, fiber.Map{"trip": trip})
	})

	r.Delete("/:id", func(c *fiber.Ctx) error {
		userID, err := identity.UserID(c)
		if err != nil {
			return err
		}
		if err := svc.Delete(c.UserContext(), userID, c.Params("id")); err != nil {
			return err
		}
		return response.Message(c, "trip deleted")
	})

	r.Post("/:id/points", func(c *fiber.Ctx) error {
		userID, err := identity.UserID(c)
		if err != nil {
			return err
		}
		var req PointsRequest
		if err := validate.Body(c, &req); err != nil {
			return err
		}
		trip, err := svc.AddPoints(c.UserContext(), userID, c.Params("id"), req)
		if err != nil {
			return err
		}
		return response.OK(c, fiber.Map{"trip": trip})
	})

	r.Post("/:id/export", func(c *fiber.Ctx) error {
		userID, err := identity.UserID(c)
		if err != nil {
			return err
		}
		var req ExportRequest
		if err := validate.Body(c, &req); err != nil {
			return err
		}
		export, err := svc.Export(c.UserContext(), userID, c.Params("id"), req)
		if err != nil {
			return err
		}
		return response.OK(c, fiber.Map{"export": export})
	})
}
