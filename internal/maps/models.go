package maps

import (
	"time"

	"backend-navi/internal/shared/geo"
)

const (
	StatusDownloading = "downloading"
	StatusCompleted   = "completed"
	StatusFailed      = "failed"
	StatusOutdated    = "outdated"
)

const (
	AlertSpeedCamera  = "speed_camera"
	AlertPolice       = "police"
	AlertAccident     = "accident"
	AlertHazard       = "hazard"
	AlertConstruction = "construction"
	AlertTraffic      = "traffic"
)

const (
	SeverityLow    = "low"
	SeverityMedium = "medium"
	SeverityHigh   = "high"
)

type Bounds struct {
	Northeast geo.Point `json:"northeast"`
	Southwest geo.Point `json:"southwest"`
}

type OfflineMap struct {
	ID           string     `json:"id"`
	UserID       string     `json:"user_id"`
	Name         string     `json:"name"`
	Region       string     `json:"region"`
	Bounds       Bounds     `json:"bounds"`
	Size         int64      `json:"size"`
	DownloadedAt *time.Time `json:"downloaded_at,omitempty"`
	LastUpdated  *time.Time `json:"last_updated,omitempty"`
	Version      string     `json:"version"`
	Status       string     `json:"status"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

type OfflineMapRequest struct {
	Name    string  `json:"name" validate:"required,max=100"`
	Region  string  `json:"region" validate:"required,max=100"`
	Bounds  *Bounds `json:"bounds" validate:"required"`
	Size    int64   `json:"size" validate:"min=0"`
	Version string  `json:"version" validate:"max=32"`
	Status  string  `json:"status" validate:"omitempty,oneof=downloading completed"`
}

type StatusRequest struct {
	Status string `json:"status" validate:"required,oneof=downloading completed failed outdated"`
}

type SafetyAlert struct {
	ID          string     `json:"id"`
	Type        string     `json:"type"`
	Location    geo.Point  `json:"location"`
	Description string     `json:"description"`
	Severity    string     `json:"severity"`
	ReportedBy  string     `json:"reported_by"`
	Confirmed   int        `json:"confirmed"`
	Expired     bool       `json:"expired"`
	ExpiresAt   *time.Time `json:"expires_at,omitempty"`
	// Distance in meters, set by nearby queries only.
	Distance  *float64  `json:"distance,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type AlertRequest struct {
	Type        string     `json:"type" validate:"required,oneof=speed_camera police accident hazard construction traffic"`
	Location    *geo.Point `json:"location" validate:"required"`
	Description string     `json:"description" validate:"max=500"`
	Severity    string     `json:"severity" validate:"omitempty,oneof=low medium high"`
	ExpiresAt   *time.Time `json:"expires_at"`
}

type AlertQuery struct {
	geo.Near
	Type string
}
