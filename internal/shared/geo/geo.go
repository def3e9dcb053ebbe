// Package geo holds coordinate types and great-circle helpers.
package geo

import (
	"math"

	"backend-navi/internal/apperr"

	"github.com/gofiber/fiber/v2"
)

const earthRadiusKm = 6371.0

// Point is a WGS84 position. Paths and geometries use [lng, lat] pairs.
type Point struct {
	Lng float64 `json:"lng" validate:"longitude"`
	Lat float64 `json:"lat" validate:"latitude"`
}

func HaversineKm(lat1, lng1, lat2, lng2 float64) float64 {
	dLat := toRad(lat2 - lat1)
	dLng := toRad(lng2 - lng1)
	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(toRad(lat1))*math.Cos(toRad(lat2))*math.Sin(dLng/2)*math.Sin(dLng/2)
	return earthRadiusKm * 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
}

// DistanceM returns the distance in meters between two points.
func DistanceM(a, b Point) float64 {
	return HaversineKm(a.Lat, a.Lng, b.Lat, b.Lng) * 1000
}

// PathLengthM sums consecutive segment lengths of a [lng, lat] path.
// Malformed entries are skipped.
func PathLengthM(path [][]float64) float64 {
	var total float64
	var prev *Point
	for _, c := range path {
		if len(c) < 2 {
			continue
		}
		p := Point{Lng: c[0], Lat: c[1]}
		if prev != nil {
			total += DistanceM(*prev, p)
		}
		prev = &p
	}
	return total
}

// ValidPath reports whether every entry is an in-range [lng, lat] pair.
func ValidPath(path [][]float64) bool {
	for _, c := range path {
		if len(c) < 2 || c[0] < -180 || c[0] > 180 || c[1] < -90 || c[1] > 90 {
			return false
		}
	}
	return true
}

// MaxRadius caps proximity searches, in meters.
const MaxRadius = 100_000.0

// Near is a parsed proximity query.
type Near struct {
	Point
	Radius float64
}

// ParseNearQuery reads lng, lat and an optional radius (meters) from the
// query string. lng and lat are required.
func ParseNearQuery(c *fiber.Ctx, defaultRadius float64) (Near, error) {
	if c.Query("lng") == "" || c.Query("lat") == "" {
		return Near{}, apperr.Validation("lng and lat are required",
			apperr.FieldError{Field: "lng", Message: "lng is required"},
			apperr.FieldError{Field: "lat", Message: "lat is required"})
	}
	lng := c.QueryFloat("lng", math.NaN())
	lat := c.QueryFloat("lat", math.NaN())
	if math.IsNaN(lng) || lng < -180 || lng > 180 {
		return Near{}, apperr.Validation("invalid coordinates", apperr.FieldError{Field: "lng", Message: "lng must be a valid longitude"})
	}
	if math.IsNaN(lat) || lat < -90 || lat > 90 {
		return Near{}, apperr.Validation("invalid coordinates", apperr.FieldError{Field: "lat", Message: "lat must be a valid latitude"})
	}
	radius := c.QueryFloat("radius", defaultRadius)
	if math.IsNaN(radius) || math.IsInf(radius, 0) {
		return Near{}, apperr.Validation("invalid radius", apperr.FieldError{Field: "radius", Message: "radius must be a finite number of meters"})
	}
	if radius <= 0 {
		radius = defaultRadius
	}
	radius = min(radius, MaxRadius)
	return Near{Point: Point{Lng: lng, Lat: lat}, Radius: radius}, nil
}

func toRad(deg float64) float64 { return deg * math.Pi / 180 }
