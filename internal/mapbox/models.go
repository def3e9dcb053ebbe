package mapbox

import "backend-navi/internal/shared/geo"

const (
	ProfileDriving        = "driving"
	ProfileDrivingTraffic = "driving-traffic"
	ProfileWalking        = "walking"
	ProfileCycling        = "cycling"
)

type DirectionsRequest struct {
	Origin       geo.Point   `json:"origin" validate:"required"`
	Destination  geo.Point   `json:"destination" validate:"required"`
	Waypoints    []geo.Point `json:"waypoints" validate:"max=23,dive"`
	Profile      string      `json:"profile" validate:"omitempty,oneof=driving driving-traffic walking cycling"`
	Alternatives bool        `json:"alternatives"`
	Traffic      bool        `json:"traffic"`
}

type OptimizeRequest struct {
	Waypoints   []geo.Point `json:"waypoints" validate:"min=2,max=12,dive"`
	Profile     string      `json:"profile" validate:"omitempty,oneof=driving driving-traffic walking cycling"`
	Roundtrip   bool        `json:"roundtrip"`
	Source      string      `json:"source" validate:"omitempty,oneof=any first"`
	Destination string      `json:"destination" validate:"omitempty,oneof=any last"`
}

type LineString struct {
	Type        string      `json:"type"`
	Coordinates [][]float64 `json:"coordinates"`
}

type Maneuver struct {
	Type        string    `json:"type"`
	Modifier    string    `json:"modifier,omitempty"`
	Instruction string    `json:"instruction"`
	Location    []float64 `json:"location"`
}

type Step struct {
	Distance float64  `json:"distance"`
	Duration float64  `json:"duration"`
	Name     string   `json:"name"`
	Maneuver Maneuver `json:"maneuver"`
}

type Leg struct {
	Distance float64 `json:"distance"`
	Duration float64 `json:"duration"`
	Summary  string  `json:"summary"`
	Steps    []Step  `json:"steps"`
}

type Route struct {
	Distance float64    `json:"distance"`
	Duration float64    `json:"duration"`
	Weight   float64    `json:"weight,omitempty"`
	Geometry LineString `json:"geometry"`
	Legs     []Leg      `json:"legs"`
}

type Waypoint struct {
	Name          string    `json:"name"`
	Location      []float64 `json:"location"`
	WaypointIndex int       `json:"waypoint_index,omitempty"`
	TripsIndex    int       `json:"trips_index,omitempty"`
}

type DirectionsResult struct {
	Code      string     `json:"code"`
	Routes    []Route    `json:"routes"`
	Waypoints []Waypoint `json:"waypoints"`
}

type OptimizationResult struct {
	Code      string     `json:"code"`
	Trips     []Route    `json:"trips"`
	Waypoints []Waypoint `json:"waypoints"`
}

type MatrixCell struct {
	Distance float64 `json:"distance"`
	Duration float64 `json:"duration"`
}

type Matrix struct {
	Matrix [][]MatrixCell `json:"matrix"`
}

type ContextEntry struct {
	ID   string `json:"id"`
	Text string `json:"text"`
}

type feature struct {
	ID        string         `json:"id"`
	Text      string         `json:"text"`
	PlaceName string         `json:"place_name"`
	PlaceType []string       `json:"place_type"`
	Relevance float64        `json:"relevance"`
	Center    []float64      `json:"center"`
	Context   []ContextEntry `json:"context"`
	Geometry  struct {
		Coordinates []float64 `json:"coordinates"`
	} `json:"geometry"`
}

type featureCollection struct {
	Features []feature `json:"features"`
}

type GeocodeResult struct {
	Coordinates []float64      `json:"coordinates"`
	PlaceName   string         `json:"place_name"`
	PlaceType   []string       `json:"place_type"`
	Context     []ContextEntry `json:"context,omitempty"`
}

type ReverseResult struct {
	Address   string         `json:"address"`
	PlaceType []string       `json:"place_type"`
	Context   []ContextEntry `json:"context,omitempty"`
}

type PlaceResult struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	PlaceName   string    `json:"place_name"`
	Coordinates []float64 `json:"coordinates"`
	PlaceType   []string  `json:"place_type"`
	Relevance   float64   `json:"relevance"`
}
