package maps

import (
	"context"
	"math"

	"backend-navi/internal/apperr"
	"backend-navi/internal/mapbox"
	"backend-navi/internal/shared/geo"
	"backend-navi/internal/shared/response"

	"github.com/gofiber/fiber/v2"
)

// Geocoder resolves addresses and coordinates. *mapbox.Client implements it.
type Geocoder interface {
	Geocode(ctx context.Context, address string) (mapbox.GeocodeResult, error)
	ReverseGeocode(ctx context.Context, p geo.Point) (mapbox.ReverseResult, error)
	SearchPlaces(ctx context.Context, query string, proximity *geo.Point, limit int) ([]mapbox.PlaceResult, error)
}

// RegisterGeocodeRoutes mounts the geocoding pass-through endpoints.
func RegisterGeocodeRoutes(r fiber.Router, geocoder Geocoder, authMiddleware fiber.Handler) {
	r.Use(authMiddleware)

	r.Get("/", func(c *fiber.Ctx) error {
		q := c.Query("q")
		if q == "" {
			return apperr.Validation("q is required", apperr.FieldError{Field: "q", Message: "q is required"})
		}
		result, err := geocoder.Geocode(c.UserContext(), q)
		if err != nil {
			return err
		}
		return response.OK(c, fiber.Map{"result": result})
	})

	r.Get("/reverse", func(c *fiber.Ctx) error {
		near, err := geo.ParseNearQuery(c, 1)
		if err != nil {
			return err
		}
		result, err := geocoder.ReverseGeocode(c.UserContext(), near.Point)
		if err != nil {
			return err
		}
		return response.OK(c, fiber.Map{"result": result})
	})

	r.Get("/search", func(c *fiber.Ctx) error {
		q := c.Query("q")
		if q == "" {
			return apperr.Validation("q is required", apperr.FieldError{Field: "q", Message: "q is required"})
		}
		var proximity *geo.Point
		lng, lat := c.QueryFloat("lng", math.NaN()), c.QueryFloat("lat", math.NaN())
		if !math.IsNaN(lng) && !math.IsNaN(lat) {
			proximity = &geo.Point{Lng: lng, Lat: lat}
		}
		results, err := geocoder.SearchPlaces(c.UserContext(), q, proximity, c.QueryInt("limit", 5))
		if err != nil {
			return err
		}
		return response.OK(c, fiber.Map{"results": results})
	})
}
