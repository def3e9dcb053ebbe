package pagination

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
)

func TestNewMetaPagesIsCeil(t *testing.T) {
	cases := []struct {
		limit int
		total int64
		pages int
	}{
		{20, 0, 0},
		{20, 1, 1},
		{20, 20, 1},
		{20, 21, 2},
		{7, 50, 8},
	}
	for _, tc := range cases {
		meta := NewMeta(New(1, tc.limit), tc.total)
		if meta.Pages != tc.pages {
			t.Fatalf("limit=%d total=%d: got %d pages want %d", tc.limit, tc.total, meta.Pages, tc.pages)
		}
	}
}

func TestNewClamps(t *testing.T) {
	p := New(0, 0)
	if p.Page != 1 || p.Limit != DefaultLimit {
		t.Fatalf("unexpected defaults: %+v", p)
	}
	if New(1, 1000).Limit != MaxLimit {
		t.Fatalf("expected max limit")
	}
	if New(3, 10).Offset() != 20 {
		t.Fatalf("unexpected offset")
	}
}

func TestFromQuery(t *testing.T) {
	app := fiber.New()
	var got Params
	app.Get("/", func(c *fiber.Ctx) error {
		got = FromQuery(c)
		return nil
	})

	_, _ = app.Test(httptest.NewRequest(http.MethodGet, "/?page=2&limit=5", nil))
	if got.Page != 2 || got.Limit != 5 {
		t.Fatalf("unexpected params: %+v", got)
	}
	_, _ = app.Test(httptest.NewRequest(http.MethodGet, "/?page=abc", nil))
	if got.Page != 1 || got.Limit != DefaultLimit {
		t.Fatalf("expected defaults for bad input: %+v", got)
	}
}
