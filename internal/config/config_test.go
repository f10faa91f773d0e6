package config

import (
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Port != "8080" {
		t.Errorf("Port = %q", cfg.Port)
	}
	if cfg.GinMode != "release" {
		t.Errorf("GinMode = %q", cfg.GinMode)
	}
	if cfg.LogLevel != "info" {
		t.Errorf("LogLevel = %q", cfg.LogLevel)
	}
	if cfg.APIBasePath != "/api/v1" {
		t.Errorf("APIBasePath = %q", cfg.APIBasePath)
	}
	if cfg.DBDriver != "sqlite" || cfg.DBPath != "recovery.db" {
		t.Errorf("db defaults: driver=%q path=%q", cfg.DBDriver, cfg.DBPath)
	}
	if cfg.StreakWindowDays != 30 {
		t.Errorf("StreakWindowDays = %d", cfg.StreakWindowDays)
	}
	if cfg.RateRPS != 5.0 || cfg.RateBurst != 10 {
		t.Errorf("rate defaults: rps=%v burst=%d", cfg.RateRPS, cfg.RateBurst)
	}
	if cfg.IdempotencyTTL != 24*time.Hour {
		t.Errorf("IdempotencyTTL = %v", cfg.IdempotencyTTL)
	}
	if cfg.OTEL.Enabled || cfg.OTEL.ServiceName != "go-recovery-backend" {
		t.Errorf("otel defaults: %+v", cfg.OTEL)
	}
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("LOG_LEVEL", "WARNING") // normalized to warn
	t.Setenv("GIN_MODE", "bogus")    // coerced to release
	t.Setenv("STREAK_WINDOW_DAYS", "7")
	t.Setenv("RATE_RPS", "2.5")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://a.example, https://b.example ,")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Port != "9090" {
		t.Errorf("Port = %q", cfg.Port)
	}
	if cfg.LogLevel != "warn" {
		t.Errorf("LogLevel = %q", cfg.LogLevel)
	}
	if cfg.GinMode != "release" {
		t.Errorf("GinMode = %q", cfg.GinMode)
	}
	if cfg.StreakWindowDays != 7 {
		t.Errorf("StreakWindowDays = %d", cfg.StreakWindowDays)
	}
	if cfg.RateRPS != 2.5 {
		t.Errorf("RateRPS = %v", cfg.RateRPS)
	}
	if len(cfg.CORS.AllowedOrigins) != 2 || cfg.CORS.AllowedOrigins[1] != "https://b.example" {
		t.Errorf("origins = %v", cfg.CORS.AllowedOrigins)
	}
}

func TestLoad_Validation(t *testing.T) {
	cases := []struct {
		name string
		key  string
		val  string
	}{
		{"bad log level", "LOG_LEVEL", "verbose"},
		{"bad driver", "DB_DRIVER", "mysql"},
		{"zero streak window", "STREAK_WINDOW_DAYS", "0"},
		{"zero burst", "RATE_BURST", "0"},
		{"bad sample ratio", "OTEL_TRACES_SAMPLER_ARG", "1.5"},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			t.Setenv(c.key, c.val)
			if _, err := Load(); err == nil {
				t.Fatalf("expected validation error for %s=%s", c.key, c.val)
			}
		})
	}
}

func TestLoad_PostgresRequiresDSN(t *testing.T) {
	t.Setenv("DB_DRIVER", "postgres")
	if _, err := Load(); err == nil {
		t.Fatalf("expected error without DB_DSN")
	}

	t.Setenv("DB_DSN", "host=localhost user=app dbname=recovery")
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.DBDriver != "postgres" {
		t.Fatalf("driver = %q", cfg.DBDriver)
	}
}

func TestNormalizeBasePath(t *testing.T) {
	cases := map[string]string{
		"":         "/",
		"/":        "/",
		"api":      "/api",
		"/api/v1/": "/api/v1",
		" /x ":     "/x",
	}
	for in, want := range cases {
		if got := normalizeBasePath(in); got != want {
			t.Errorf("normalizeBasePath(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestGetBool(t *testing.T) {
	t.Setenv("FLAG", "Yes")
	if !getbool("FLAG", false) {
		t.Errorf("Yes should be true")
	}
	t.Setenv("FLAG", "off")
	if getbool("FLAG", true) {
		t.Errorf("off should be false")
	}
	t.Setenv("FLAG", "maybe")
	if !getbool("FLAG", true) {
		t.Errorf("unparseable keeps the default")
	}
}
