package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg := Load()
	if cfg.ServerPort == "" {
		t.Fatalf("expected default server port")
	}
	if cfg.PostgresURL == "" {
		t.Fatalf("expected default postgres url")
	}
	if cfg.MapboxTimeout != 10*time.Second {
		t.Fatalf("expected default mapbox timeout, got %v", cfg.MapboxTimeout)
	}
	if cfg.MaxFileSize != 10*1024*1024 {
		t.Fatalf("expected default max file size, got %d", cfg.MaxFileSize)
	}
	if len(cfg.AllowedFileTypes) != 4 {
		t.Fatalf("expected default allowed file types, got %v", cfg.AllowedFileTypes)
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("SERVER_PORT", ":9000")
	t.Setenv("POSTGRES_URL", "postgres://example")
	t.Setenv("REDIS_ADDR", "redis:6379")
	t.Setenv("JWT_SECRET", "secret")
	t.Setenv("MAPBOX_TIMEOUT", "3s")
	t.Setenv("MAPBOX_MATRIX_CONCURRENCY", "2")
	t.Setenv("S3_BUCKET_NAME", "navi-uploads")

	cfg := Load()
	if cfg.ServerPort != ":9000" {
		t.Fatalf("expected override port")
	}
	if cfg.PostgresURL != "postgres://example" {
		t.Fatalf("expected override postgres")
	}
	if cfg.RedisAddr != "redis:6379" {
		t.Fatalf("expected override redis")
	}
	if cfg.JWTSecret != "secret" {
		t.Fatalf("expected override secret")
	}
	if cfg.MapboxTimeout != 3*time.Second {
		t.Fatalf("expected override mapbox timeout, got %v", cfg.MapboxTimeout)
	}
	if cfg.MapboxMatrixConcurrency != 2 {
		t.Fatalf("expected override matrix concurrency")
	}
	if cfg.S3Bucket != "navi-uploads" {
		t.Fatalf("expected override bucket")
	}
}
