package place

import (
	"backend-navi/internal/shared/geo"
	"backend-navi/internal/shared/identity"
	"backend-navi/internal/shared/pagination"
	"backend-navi/internal/shared/response"
	"backend-navi/internal/shared/validate"

	"github.com/gofiber/fiber/v2"
)

// RegisterRoutes mounts the place endpoints. Lookups are public; writes and
// the saved list require authMiddleware.
func RegisterRoutes(r fiber.Router, svc *Service, authMiddleware fiber.Handler) {
	r.Get("/search", func(c *fiber.Ctx) error {
		places, err := svc.Search(c.UserContext(), SearchQuery{
			Q:        c.Query("q"),
			Category: c.Query("category"),
			Limit:    c.QueryInt("limit", DefaultSearchLimit),
		})
		if err != nil {
			return err
		}
		return response.OK(c, fiber.Map{"places": places})
	})

	r.Get("/nearby", func(c *fiber.Ctx) error {
		near, err := geo.ParseNearQuery(c, DefaultNearbyRadius)
		if err != nil {
			return err
		}
		places, err := svc.Nearby(c.UserContext(), NearbyQuery{Near: near, Category: c.Query("category")})
		if err != nil {
			return err
		}
		return response.OK(c, fiber.Map{"places": places})
	})

	r.Get("/saved", authMiddleware, func(c *fiber.Ctx) error {
		userID, err := identity.UserID(c)
		if err != nil {
			return err
		}
		places, meta, err := svc.Saved(c.UserContext(), userID, pagination.FromQuery(c))
		if err != nil {
			return err
		}
		return response.OK(c, fiber.Map{"places": places, "pagination": meta})
	})

	r.Post("/", authMiddleware, func(c *fiber.Ctx) error {
		userID, err := identity.UserID(c)
		if err != nil {
			return err
		}
		var req CreateRequest
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid payload")
		}
		place, err := svc.Create(c.UserContext(), userID, req)
		if err != nil {
			return err
		}
		return response.Created(c, fiber.Map{"place": place})
	})

	r.Get("/:id", func(c *fiber.Ctx) error {
		place, err := svc.Get(c.UserContext(), c.Params("id"))
		if err != nil {
			return err
		}
		return response.OK(c, fiber.Map{"place": place})
	})

	r.Get("/:id/reviews", func(c *fiber.Ctx) error {
		reviews, meta, err := svc.Reviews(c.UserContext(), c.Params("id"), pagination.FromQuery(c))
		if err != nil {
			return err
		}
		return response.OK(c, fiber.Map{"reviews": reviews, "pagination": meta})
	})

	r.Post("/:id/reviews", authMiddleware, func(c *fiber.Ctx) error {
		userID, err := identity.UserID(c)
		if err != nil {
			return err
		}
		var req ReviewRequest
		if err := validate.Body(c, &req); err != nil {
			return err
		}
		review, rating, err := svc.AddReview(c.UserContext(), userID, c.Params("id"), req)
		if err != nil {
			return err
		}
		return response.Created(c, fiber.Map{"review": review, "rating": rating})
	})

	r.Post("/:id/save", authMiddleware, func(c *fiber.Ctx) error {
		userID, err := identity.UserID(c)
		if err != nil {
			return err
		}
		if err := svc.Save(c.UserContext(), userID, c.Params("id")); err != nil {
			return err
		}
		return response.Message(c, "place saved")
	})
}
