package maps

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"backend-navi/internal/apperr"
	"backend-navi/internal/mapbox"
	"backend-navi/internal/shared/geo"
	"backend-navi/internal/shared/identity"
	"backend-navi/internal/shared/response"

	"github.com/gofiber/fiber/v2"
	"github.com/pashagolub/pgxmock/v3"
)

func fakeAuth(userID string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		identity.Set(c, userID)
		return c.Next()
	}
}

func jsonRequest(method, target string, body any) *http.Request {
	raw, _ := json.Marshal(body)
	req := httptest.NewRequest(method, target, bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	return req
}

type fakeGeocoder struct {
	proximity *geo.Point
}

func (f *fakeGeocoder) Geocode(_ context.Context, address string) (mapbox.GeocodeResult, error) {
	if address == "nowhere" {
		return mapbox.GeocodeResult{}, apperr.NotFound("address not found")
	}
	return mapbox.GeocodeResult{Coordinates: []float64{2.35, 48.85}, PlaceName: address}, nil
}

func (f *fakeGeocoder) ReverseGeocode(_ context.Context, p geo.Point) (mapbox.ReverseResult, error) {
	return mapbox.ReverseResult{Address: "Paris, France"}, nil
}

func (f *fakeGeocoder) SearchPlaces(_ context.Context, query string, proximity *geo.Point, _ int) ([]mapbox.PlaceResult, error) {
	f.proximity = proximity
	return []mapbox.PlaceResult{{ID: "poi.1", Name: query}}, nil
}

func TestMapsHandlers(t *testing.T) {
	mock := newMock(t)
	app := fiber.New(fiber.Config{ErrorHandler: response.ErrorHandler})
	RegisterRoutes(app.Group("/maps"), NewService(mock, nil), fakeAuth("user-1"))

	now := time.Now()
	mock.ExpectQuery(`INSERT INTO offline_maps`).
		WillReturnRows(pgxmock.NewRows([]string{"created_at", "updated_at"}).AddRow(now, now))
	resp, _ := app.Test(jsonRequest(http.MethodPost, "/maps/offline/download", map[string]any{
		"name":   "Paris",
		"region": "FR",
		"bounds": paris,
		"size":   2048,
	}))
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("download status: %d", resp.StatusCode)
	}

	resp, _ = app.Test(jsonRequest(http.MethodPost, "/maps/offline", map[string]any{"name": "No bounds", "region": "FR"}))
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}

	resp, _ = app.Test(jsonRequest(http.MethodPut, "/maps/offline/map-1/status", map[string]string{"status": "deleted"}))
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown status, got %d", resp.StatusCode)
	}

	resp, _ = app.Test(httptest.NewRequest(http.MethodGet, "/maps/safety-alerts", nil))
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 without coordinates, got %d", resp.StatusCode)
	}

	cols := append(append([]string{}, alertCols...), "distance")
	mock.ExpectQuery(`FROM safety_alerts`).
		WithArgs(2.35, 48.85, 2.35, 48.85, 500.0, false).
		WillReturnRows(pgxmock.NewRows(cols).AddRow(append(alertRow("alert-1", "user-2"), 10.0)...))
	resp, _ = app.Test(httptest.NewRequest(http.MethodGet, "/maps/safety-alerts?lng=2.35&lat=48.85&radius=500", nil))
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("alerts status: %d", resp.StatusCode)
	}
	var alerts struct {
		Data struct {
			Alerts []SafetyAlert `json:"alerts"`
		} `json:"data"`
	}
	_ = json.NewDecoder(resp.Body).Decode(&alerts)
	if len(alerts.Data.Alerts) != 1 || alerts.Data.Alerts[0].ID != "alert-1" {
		t.Fatalf("unexpected alerts: %+v", alerts)
	}

	mock.ExpectQuery(`UPDATE safety_alerts SET expired=TRUE`).
		WithArgs("alert-1", "user-1").
		WillReturnRows(pgxmock.NewRows(alertCols))
	mock.ExpectQuery(`SELECT EXISTS`).
		WithArgs("alert-1").
		WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(true))
	resp, _ = app.Test(httptest.NewRequest(http.MethodPut, "/maps/safety-alerts/alert-1/expire", nil))
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", resp.StatusCode)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestGeocodeHandlers(t *testing.T) {
	geocoder := &fakeGeocoder{}
	app := fiber.New(fiber.Config{ErrorHandler: response.ErrorHandler})
	RegisterGeocodeRoutes(app.Group("/geocode"), geocoder, fakeAuth("user-1"))

	resp, _ := app.Test(httptest.NewRequest(http.MethodGet, "/geocode?q=Paris", nil))
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("geocode status: %d", resp.StatusCode)
	}

	resp, _ = app.Test(httptest.NewRequest(http.MethodGet, "/geocode", nil))
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 without q, got %d", resp.StatusCode)
	}

	resp, _ = app.Test(httptest.NewRequest(http.MethodGet, "/geocode?q=nowhere", nil))
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.StatusCode)
	}

	resp, _ = app.Test(httptest.NewRequest(http.MethodGet, "/geocode/reverse?lng=2.35&lat=48.85", nil))
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("reverse status: %d", resp.StatusCode)
	}

	resp, _ = app.Test(httptest.NewRequest(http.MethodGet, "/geocode/reverse?lng=2.35&lat=120", nil))
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 for bad latitude, got %d", resp.StatusCode)
	}

	resp, _ = app.Test(httptest.NewRequest(http.MethodGet, "/geocode/search?q=cafe&lng=2.35&lat=48.85", nil))
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("search status: %d", resp.StatusCode)
	}
	if geocoder.proximity == nil || geocoder.proximity.Lat != 48.85 {
		t.Fatalf("expected proximity bias, got %+v", geocoder.proximity)
	}
}
