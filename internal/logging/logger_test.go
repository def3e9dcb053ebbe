package logging

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/requestid"
)

func TestCtxAddsRequestID(t *testing.T) {
	var buf bytes.Buffer
	Init(Config{Level: "debug", Output: &buf})
	defer Init(Config{})

	ctx := ContextWithRequestID(context.Background(), "req-1")
	Ctx(ctx).Info().Msg("hello")

	if !strings.Contains(buf.String(), `"request_id":"req-1"`) {
		t.Fatalf("expected request id in log line, got %s", buf.String())
	}
}

func TestParseLevel(t *testing.T) {
	if parseLevel("bogus").String() != "info" {
		t.Fatalf("expected info fallback")
	}
	if parseLevel("WARN").String() != "warn" {
		t.Fatalf("expected warn")
	}
}

func TestMiddlewareLogsErrorStatus(t *testing.T) {
	var buf bytes.Buffer
	Init(Config{Output: &buf})
	defer Init(Config{})

	app := fiber.New()
	app.Use(requestid.New())
	app.Use(Middleware())
	app.Get("/boom", func(c *fiber.Ctx) error {
		return fiber.NewError(fiber.StatusTeapot, "nope")
	})

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/boom", nil))
	if err != nil || resp.StatusCode != fiber.StatusTeapot {
		t.Fatalf("expected teapot status: %v", err)
	}
	if !strings.Contains(buf.String(), `"status":418`) {
		t.Fatalf("expected status in log line, got %s", buf.String())
	}
}
