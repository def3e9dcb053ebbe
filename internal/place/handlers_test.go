package place

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"backend-navi/internal/apperr"
	"backend-navi/internal/shared/identity"
	"backend-navi/internal/shared/response"

	"github.com/gofiber/fiber/v2"
	"github.com/pashagolub/pgxmock/v3"
)

// headerAuth authenticates requests carrying X-User and rejects the rest.
func headerAuth(c *fiber.Ctx) error {
	id := c.Get("X-User")
	if id == "" {
		return apperr.Unauthorized("missing token")
	}
	identity.Set(c, id)
	return c.Next()
}

func jsonRequest(method, target string, body any) *http.Request {
	raw, _ := json.Marshal(body)
	req := httptest.NewRequest(method, target, bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func TestPlaceHandlers(t *testing.T) {
	mock := newMock(t)
	app := fiber.New(fiber.Config{ErrorHandler: response.ErrorHandler})
	RegisterRoutes(app.Group("/places"), NewService(mock), headerAuth)

	mock.ExpectQuery(`plainto_tsquery`).
		WithArgs("pizza").
		WillReturnRows(pgxmock.NewRows(placeCols).AddRow(placeRow("place-1", "Pizzeria")...))
	resp, _ := app.Test(httptest.NewRequest(http.MethodGet, "/places/search?q=pizza", nil))
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("search status: %d", resp.StatusCode)
	}
	var search struct {
		Data struct {
			Places []Place `json:"places"`
		} `json:"data"`
	}
	_ = json.NewDecoder(resp.Body).Decode(&search)
	if len(search.Data.Places) != 1 || search.Data.Places[0].Name != "Pizzeria" {
		t.Fatalf("unexpected search result: %+v", search)
	}

	resp, _ = app.Test(httptest.NewRequest(http.MethodGet, "/places/nearby?lng=-122.4", nil))
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 without lat, got %d", resp.StatusCode)
	}

	resp, _ = app.Test(jsonRequest(http.MethodPost, "/places", map[string]any{"name": "Anonymous"}))
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 for anonymous create, got %d", resp.StatusCode)
	}

	resp, _ = app.Test(jsonRequest(http.MethodPost, "/places/place-1/reviews", map[string]any{"rating": 5, "comment": "ok"}))
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 for anonymous review, got %d", resp.StatusCode)
	}

	now := time.Now()
	mock.ExpectQuery(`(?s)INSERT INTO places`).
		WillReturnRows(pgxmock.NewRows([]string{"created_at", "updated_at"}).AddRow(now, now))
	req := jsonRequest(http.MethodPost, "/places", map[string]any{
		"name":     "Garage",
		"location": map[string]float64{"lng": -122.4, "lat": 37.8},
		"category": "parking",
	})
	req.Header.Set("X-User", "user-1")
	resp, _ = app.Test(req)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create status: %d", resp.StatusCode)
	}

	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM saved_places WHERE user_id=\$1`).
		WithArgs("user-1").
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(int64(0)))
	mock.ExpectQuery(`FROM saved_places s JOIN places p`).
		WithArgs("user-1", 20, uint64(0)).
		WillReturnRows(pgxmock.NewRows(placeCols))
	req = httptest.NewRequest(http.MethodGet, "/places/saved", nil)
	req.Header.Set("X-User", "user-1")
	resp, _ = app.Test(req)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("saved status: %d", resp.StatusCode)
	}

	mock.ExpectQuery(`FROM places p WHERE p.id=\$1`).
		WithArgs("place-9").
		WillReturnRows(pgxmock.NewRows(placeCols))
	resp, _ = app.Test(httptest.NewRequest(http.MethodGet, "/places/place-9", nil))
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.StatusCode)
	}

	mock.ExpectExec(`INSERT INTO saved_places`).
		WithArgs("user-1", "place-1").
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	req = httptest.NewRequest(http.MethodPost, "/places/place-1/save", nil)
	req.Header.Set("X-User", "user-1")
	resp, _ = app.Test(req)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("save status: %d", resp.StatusCode)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}
