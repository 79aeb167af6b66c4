package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	for _, k := range []string{"PORT", "DB_PATH", "INITIAL_CASH", "COMMISSION", "JWT_SECRET", "CACHE_TTL_SECONDS", "CORS_ORIGINS"} {
		t.Setenv(k, "")
	}
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Port != "8080" || cfg.InitialCash != 1000 || cfg.Commission != 0.001 {
		t.Fatalf("cfg=%+v", cfg)
	}
	if cfg.JWTSecret != "" {
		t.Fatalf("JWTSecret=%q, expected empty", cfg.JWTSecret)
	}
	if cfg.CacheTTL != 5*time.Minute {
		t.Fatalf("CacheTTL=%v, expected 5m", cfg.CacheTTL)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("PORT", "9999")
	t.Setenv("INITIAL_CASH", "2500.5")
	t.Setenv("SWEEP_WORKERS", "3")
	t.Setenv("LOG_LEVEL", "DEBUG")
	t.Setenv("CORS_ORIGINS", " http://a , ,http://b")
	t.Setenv("COMMISSION", "not-a-number")

	cfg, _ := Load()
	if cfg.Port != "9999" || cfg.InitialCash != 2500.5 || cfg.SweepWorkers != 3 {
		t.Fatalf("cfg=%+v", cfg)
	}
	if cfg.LogLevel != "debug" {
		t.Fatalf("LogLevel=%q, expected debug", cfg.LogLevel)
	}
	if cfg.Commission != 0.001 {
		t.Fatalf("Commission=%v, expected fallback 0.001", cfg.Commission)
	}
	if len(cfg.CORSOrigins) != 2 || cfg.CORSOrigins[1] != "http://b" {
		t.Fatalf("CORSOrigins=%v", cfg.CORSOrigins)
	}
}
