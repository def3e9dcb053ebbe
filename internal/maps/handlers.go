package maps

import (
	"backend-navi/internal/shared/geo"
	"backend-navi/internal/shared/identity"
	"backend-navi/internal/shared/response"
	"backend-navi/internal/shared/validate"

	"github.com/gofiber/fiber/v2"
)

func RegisterRoutes(r fiber.Router, svc *Service, authMiddleware fiber.Handler) {
	r.Use(authMiddleware)

	r.Get("/offline", func(c *fiber.Ctx) error {
		userID, err := identity.UserID(c)
		if err != nil {
			return err
		}
		maps, err := svc.OfflineMaps(c.UserContext(), userID)
		if err != nil {
			return err
		}
		return response.OK(c, fiber.Map{"maps": maps})
	})

	createOffline := func(c *fiber.Ctx) error {
		userID, err := identity.UserID(c)
		if err != nil {
			return err
		}
		var req OfflineMapRequest
		if err := validate.Body(c, &req); err != nil {
			return err
		}
		m, err := svc.CreateOfflineMap(c.UserContext(), userID, req)
		if err != nil {
			return err
		}
		return response.Created(c, fiber.Map{"map": m})
	}
	r.Post("/offline", createOffline)
	r.Post("/offline/download", createOffline)

	r.Put("/offline/:id/status", func(c *fiber.Ctx) error {
		userID, err := identity.UserID(c)
		if err != nil {
			return err
		}
		var req StatusRequest
		if err := validate.Body(c, &req); err != nil {
			return err
		}
		m, err := svc.SetOfflineStatus(c.UserContext(), userID, c.Params("id"), req)
		if err != nil {
			return err
		}
		return response.OK(c, fiber.Map{"map": m})
	})

	r.Delete("/offline/:id", func(c *fiber.Ctx) error {
		userID, err := identity.UserID(c)
		if err != nil {
			return err
		}
		if err := svc.DeleteOfflineMap(c.UserContext(), userID, c.Params("id")); err != nil {
			return err
		}
		return response.Message(c, "offline map deleted")
	})

	r.Get("/safety-alerts", func(c *fiber.Ctx) error {
		near, err := geo.ParseNearQuery(c, DefaultAlertRadius)
		if err != nil {
			return err
		}
		alerts, err := svc.NearbyAlerts(c.UserContext(), AlertQuery{Near: near, Type: c.Query("type")})
		if err != nil {
			return err
		}
		return response.OK(c, fiber.Map{"alerts": alerts})
	})

	r.Post("/safety-alerts", func(c *fiber.Ctx) error {
		userID, err := identity.UserID(c)
		if err != nil {
			return err
		}
		var req AlertRequest
		if err := validate.Body(c, &req); err != nil {
			return err
		}
		alert, err := svc.ReportAlert(c.UserContext(), userID, req)
		if err != nil {
			return err
		}
		return response.Created(c, fiber.Map{"alert": alert})
	})

	r.Post("/safety-alerts/:id/confirm", func(c *fiber.Ctx) error {
		alert, err := svc.ConfirmAlert(c.UserContext(), c.Params("id"))
		if err != nil {
			return err
		}
		return response.OK(c, fiber.Map{"alert": alert})
	})

	r.Put("/safety-alerts/:id/expire", func(c *fiber.Ctx) error {
		userID, err := identity.UserID(c)
		if err != nil {
			return err
		}
		alert, err := svc.ExpireAlert(c.UserContext(), userID, c.Params("id"))
		if err != nil {
			return err
		}
		return response.OK(c, fiber.Map{"alert": alert})
	})
}
