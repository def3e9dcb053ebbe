package route

import (
	"time"

	"backend-navi/internal/shared/geo"
)

type Type string

const (
	TypeFastest       Type = "fastest"
	TypeShortest      Type = "shortest"
	TypeEco           Type = "eco"
	TypeAvoidHighways Type = "avoid-highways"
)

const (
	ModeDriving = "driving"
	ModeWalking = "walking"
	ModeCycling = "cycling"
	ModeTransit = "transit"
)

// Stop is a labelled point on a route. Waypoints are kept sorted by Order.
type Stop struct {
	Location geo.Point `json:"location"`
	Address  string    `json:"address,omitempty" validate:"max=500"`
	Name     string    `json:"name,omitempty" validate:"max=200"`
	Order    int       `json:"order" validate:"gte=0"`
}

type Route struct {
	ID             string      `json:"id"`
	UserID         string      `json:"user_id"`
	Name           string      `json:"name"`
	Origin         Stop        `json:"origin"`
	Destination    Stop        `json:"destination"`
	Waypoints      []Stop      `json:"waypoints"`
	Distance       float64     `json:"distance"`
	Duration       float64     `json:"duration"`
	Geometry       [][]float64 `json:"geometry"`
	RouteType      Type        `json:"route_type"`
	TransportMode  string      `json:"transport_mode"`
	TrafficEnabled bool        `json:"traffic_enabled"`
	IsSaved        bool        `json:"is_saved"`
	IsCompleted    bool        `json:"is_completed"`
	CompletedAt    *time.Time  `json:"completed_at,omitempty"`
	CreatedAt      time.Time   `json:"created_at"`
	UpdatedAt      time.Time   `json:"updated_at"`
}

type CreateRequest struct {
	Name           string      `json:"name" validate:"max=200"`
	Origin         *Stop       `json:"origin" validate:"required"`
	Destination    *Stop       `json:"destination" validate:"required"`
	Waypoints      []Stop      `json:"waypoints" validate:"max=25,dive"`
	Distance       float64     `json:"distance" validate:"gte=0"`
	Duration       float64     `json:"duration" validate:"gte=0"`
	Geometry       [][]float64 `json:"geometry"`
	RouteType      string      `json:"route_type" validate:"omitempty,oneof=fastest shortest eco avoid-highways"`
	TransportMode  string      `json:"transport_mode" validate:"omitempty,oneof=driving walking cycling transit"`
	TrafficEnabled *bool       `json:"traffic_enabled"`
	IsSaved        bool        `json:"is_saved"`
}

type UpdateRequest struct {
	Name           *string      `json:"name" validate:"omitempty,max=200"`
	Origin         *Stop        `json:"origin"`
	Destination    *Stop        `json:"destination"`
	Waypoints      *[]Stop      `json:"waypoints" validate:"omitempty,max=25,dive"`
	Distance       *float64     `json:"distance" validate:"omitempty,gte=0"`
	Duration       *float64     `json:"duration" validate:"omitempty,gte=0"`
	Geometry       *[][]float64 `json:"geometry"`
	RouteType      *string      `json:"route_type" validate:"omitempty,oneof=fastest shortest eco avoid-highways"`
	TransportMode  *string      `json:"transport_mode" validate:"omitempty,oneof=driving walking cycling transit"`
	TrafficEnabled *bool        `json:"traffic_enabled"`
	IsSaved        *bool        `json:"is_saved"`
	IsCompleted    *bool        `json:"is_completed"`
}

type ShareRequest struct {
	UserIDs []string `json:"user_ids" validate:"required,min=1,max=50,dive,uuid"`
}

type MatrixRequest struct {
	Origins      []geo.Point `json:"origins" validate:"required,min=1,max=10,dive"`
	Destinations []geo.Point `json:"destinations" validate:"required,min=1,max=10,dive"`
}

// ListFilter narrows List. A nil Saved returns every route.
type ListFilter struct {
	Saved *bool
}
