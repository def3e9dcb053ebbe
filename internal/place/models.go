package place

import (
	"time"

	"backend-navi/internal/shared/geo"
)

const (
	CategoryRestaurant = "restaurant"
	CategoryGasStation = "gas-station"
	CategoryParking    = "parking"
	CategoryHotel      = "hotel"
	CategoryAttraction = "attraction"
	CategoryShopping   = "shopping"
	CategoryHospital   = "hospital"
	CategoryOther      = "other"
)

type Address struct {
	Street     string `json:"street,omitempty"`
	City       string `json:"city,omitempty"`
	State      string `json:"state,omitempty"`
	Country    string `json:"country,omitempty"`
	PostalCode string `json:"postal_code,omitempty"`
	Formatted  string `json:"formatted,omitempty"`
}

// Hours is the opening window for one weekday, e.g. "08:00"-"22:00".
type Hours struct {
	Open  string `json:"open"`
	Close string `json:"close"`
}

type Rating struct {
	Average float64 `json:"average"`
	Count   int     `json:"count"`
}

type Place struct {
	ID         string           `json:"id"`
	Name       string           `json:"name"`
	Location   geo.Point        `json:"location"`
	Address    Address          `json:"address"`
	Category   string           `json:"category"`
	Phone      string           `json:"phone"`
	Website    string           `json:"website"`
	Hours      map[string]Hours `json:"hours"`
	Rating     Rating           `json:"rating"`
	Photos     []string         `json:"photos"`
	Amenities  []string         `json:"amenities"`
	PriceLevel *int             `json:"price_level,omitempty"`
	Verified   bool             `json:"verified"`
	AddedBy    *string          `json:"added_by,omitempty"`
	// Distance in meters, set by nearby queries only.
	Distance  *float64  `json:"distance,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type CreateRequest struct {
	Name       string           `json:"name" validate:"required,max=200"`
	Location   *geo.Point       `json:"location" validate:"required"`
	Address    Address          `json:"address"`
	Category   string           `json:"category" validate:"omitempty,oneof=restaurant gas-station parking hotel attraction shopping hospital other"`
	Phone      string           `json:"phone" validate:"max=32"`
	Website    string           `json:"website" validate:"omitempty,url"`
	Hours      map[string]Hours `json:"hours" validate:"omitempty,dive,keys,oneof=monday tuesday wednesday thursday friday saturday sunday,endkeys"`
	Photos     []string         `json:"photos" validate:"max=20,dive,url"`
	Amenities  []string         `json:"amenities" validate:"max=50"`
	PriceLevel *int             `json:"price_level" validate:"omitempty,min=1,max=4"`
}

// Author is the public part of a reviewer's profile.
type Author struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Avatar string `json:"avatar"`
}

type Review struct {
	ID           string    `json:"id"`
	PlaceID      string    `json:"place_id"`
	User         Author    `json:"user"`
	Rating       int       `json:"rating"`
	Title        string    `json:"title"`
	Comment      string    `json:"comment"`
	Photos       []string  `json:"photos"`
	HelpfulCount int       `json:"helpful_count"`
	Verified     bool      `json:"verified"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

type ReviewRequest struct {
	Rating  int      `json:"rating" validate:"required,min=1,max=5"`
	Title   string   `json:"title" validate:"max=100"`
	Comment string   `json:"comment" validate:"required,max=1000"`
	Photos  []string `json:"photos" validate:"max=10,dive,url"`
}

type SearchQuery struct {
	Q        string
	Category string
	Limit    int
}

type NearbyQuery struct {
	geo.Near
	Category string
}
