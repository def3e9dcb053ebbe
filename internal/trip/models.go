package trip

import (
	"time"

	"backend-navi/internal/shared/geo"
)

const (
	FormatGPX = "gpx"
	FormatCSV = "csv"
)

type Stats struct {
	Stops      int     `json:"stops" validate:"gte=0"`
	IdleTime   float64 `json:"idle_time" validate:"gte=0"`
	MovingTime float64 `json:"moving_time" validate:"gte=0"`
	Calories   float64 `json:"calories" validate:"gte=0"`
}

type Incident struct {
	Type        string     `json:"type" validate:"oneof=traffic accident construction hazard police"`
	Location    *geo.Point `json:"location,omitempty"`
	Timestamp   *time.Time `json:"timestamp,omitempty"`
	Description string     `json:"description,omitempty" validate:"max=500"`
}

type Photo struct {
	URL       string     `json:"url" validate:"required,url"`
	Location  *geo.Point `json:"location,omitempty"`
	Timestamp *time.Time `json:"timestamp,omitempty"`
}

// Trip is a recorded journey. Distance (m), Duration (s) and
// AverageSpeed (km/h) are derived from Path and the start/end times.
type Trip struct {
	ID              string      `json:"id"`
	UserID          string      `json:"user_id"`
	RouteID         *string     `json:"route_id,omitempty"`
	Name            string      `json:"name"`
	StartTime       time.Time   `json:"start_time"`
	EndTime         *time.Time  `json:"end_time,omitempty"`
	Duration        float64     `json:"duration"`
	Distance        float64     `json:"distance"`
	AverageSpeed    float64     `json:"average_speed"`
	MaxSpeed        float64     `json:"max_speed"`
	FuelUsed        float64     `json:"fuel_used"`
	CarbonFootprint float64     `json:"carbon_footprint"`
	Path            [][]float64 `json:"path"`
	Stats           Stats       `json:"stats"`
	Incidents       []Incident  `json:"incidents"`
	Photos          []Photo     `json:"photos"`
	IsCompleted     bool        `json:"is_completed"`
	SharedWith      []string    `json:"shared_with"`
	CreatedAt       time.Time   `json:"created_at"`
	UpdatedAt       time.Time   `json:"updated_at"`
}

type CreateRequest struct {
	RouteID         *string     `json:"route_id" validate:"omitempty,uuid"`
	Name            string      `json:"name" validate:"max=200"`
	StartTime       *time.Time  `json:"start_time" validate:"required"`
	EndTime         *time.Time  `json:"end_time"`
	Path            [][]float64 `json:"path"`
	MaxSpeed        float64     `json:"max_speed" validate:"gte=0"`
	FuelUsed        float64     `json:"fuel_used" validate:"gte=0"`
	CarbonFootprint float64     `json:"carbon_footprint" validate:"gte=0"`
	Stats           *Stats      `json:"stats"`
	Incidents       []Incident  `json:"incidents" validate:"max=100,dive"`
	Photos          []Photo     `json:"photos" validate:"max=100,dive"`
	IsCompleted     bool        `json:"is_completed"`
	SharedWith      []string    `json:"shared_with" validate:"max=50,dive,uuid"`
}

type UpdateRequest struct {
	Name            *string      `json:"name" validate:"omitempty,max=200"`
	StartTime       *time.Time   `json:"start_time"`
	EndTime         *time.Time   `json:"end_time"`
	Path            *[][]float64 `json:"path"`
	MaxSpeed        *float64     `json:"max_speed" validate:"omitempty,gte=0"`
	FuelUsed        *float64     `json:"fuel_used" validate:"omitempty,gte=0"`
	CarbonFootprint *float64     `json:"carbon_footprint" validate:"omitempty,gte=0"`
	Stats           *Stats       `json:"stats"`
	Incidents       *[]Incident  `json:"incidents" validate:"omitempty,max=100,dive"`
	Photos          *[]Photo     `json:"photos" validate:"omitempty,max=100,dive"`
	IsCompleted     *bool        `json:"is_completed"`
	SharedWith      *[]string    `json:"shared_with" validate:"omitempty,max=50,dive,uuid"`
}

// PointsRequest appends positions to the path. Timestamp, when set, becomes
// the trip's end time.
type PointsRequest struct {
	Points    []geo.Point `json:"points" validate:"required,min=1,max=1000,dive"`
	Timestamp *time.Time  `json:"timestamp"`
}

type ExportRequest struct {
	Format string `json:"format" validate:"required,oneof=gpx csv"`
}

type Export struct {
	Format    string    `json:"format"`
	URL       string    `json:"url"`
	ExpiresAt time.Time `json:"expires_at"`
}

type ListFilter struct {
	Completed *bool
}
