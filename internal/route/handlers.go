package route

import (
	"backend-navi/internal/mapbox"
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
		route, err := svc.Create(c.UserContext(), userID, req)
		if err != nil {
			return err
		}
		return response.Created(c, fiber.Map{"route": route})
	})

	r.Get("/", func(c *fiber.Ctx) error {
		userID, err := identity.UserID(c)
		if err != nil {
			return err
		}
		var f ListFilter
		if v := c.Query("saved"); v != "" {
			saved := v == "true"
			f.Saved = &saved
		}
		routes, meta, err := svc.List(c.UserContext(), userID, pagination.FromQuery(c), f)
		if err != nil {
			return err
		}
		return response.OK(c, fiber.Map{"routes": routes, "pagination": meta})
	})

	r.Post("/optimize", func(c *fiber.Ctx) error {
		var req mapbox.OptimizeRequest
		if err := validate.Body(c, &req); err != nil {
			return err
		}
		res, err := svc.Optimize(c.UserContext(), req)
		if err != nil {
			return err
		}
		return response.OK(c, fiber.Map{"optimized_route": res})
	})

	r.Post("/directions", func(c *fiber.Ctx) error {
		var req mapbox.DirectionsRequest
		if err := validate.Body(c, &req); err != nil {
			return err
		}
		res, err := svc.Directions(c.UserContext(), req)
		if err != nil {
			return err
		}
		return response.OK(c, fiber.Map{"directions": res})
	})

	r.Post("/matrix", func(c *fiber.Ctx) error {
		var req MatrixRequest
		if err := validate.Body(c, &req); err != nil {
			return err
		}
		res, err := svc.Matrix(c.UserContext(), req)
		if err != nil {
			return err
		}
		return response.OK(c, res)
	})

	r.Get("/:id", func(c *fiber.Ctx) error {
		userID, err := identity.UserID(c)
		if err != nil {
			return err
		}
		route, err := svc.Get(c.UserContext(), userID, c.Params("id"))
		if err != nil {
			return err
		}
		return response.OK(c, fiber.Map{"route": route})
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
		route, err := svc.Update(c.UserContext(), userID, c.Params("id"), req)
		if err != nil {
			return err
		}
		return response.OK(c, fiber.Map{"route": route})
	})

	r.Delete("/:id", func(c *fiber.Ctx) error {
		userID, err := identity.UserID(c)
		if err != nil {
			return err
		}
		if err := svc.Delete(c.UserContext(), userID, c.Params("id")); err != nil {
			return err
		}
		return response.Message(c, "route deleted")
	})

	r.Post("/:id/share", func(c *fiber.Ctx) error {
		userID, err := identity.UserID(c)
		if err != nil {
			return err
		}
		var req ShareRequest
		if err := validate.Body(c, &req); err != nil {
			return err
		}
		n, err := svc.Share(c.UserContext(), userID, c.Params("id"), req)
		if err != nil {
			return err
		}
		return response.OK(c, fiber.Map{"shared_with": n})
	})
}
