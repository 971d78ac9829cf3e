package config

import (
	"testing"
	"time"
)

func TestLoadDoesNotInjectWeakAuthDefaults(t *testing.T) {
	t.Setenv("AUTH_SECRET", "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.AuthSecret != "" {
		t.Fatalf("expected empty AUTH_SECRET when unset, got %q", cfg.AuthSecret)
	}
}

func TestLoadDefaultsAndOverrides(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("STATS_CACHE_TTL", "45s")
	t.Setenv("REPORT_TIMEZONE", "UTC")
	t.Setenv("MINIO_ENDPOINT", "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Address() != ":9090" {
		t.Fatalf("expected :9090, got %s", cfg.Address())
	}
	if cfg.StatsCacheTTL != 45*time.Second {
		t.Fatalf("expected 45s stats ttl, got %v", cfg.StatsCacheTTL)
	}
	if cfg.CommitLockTimeout != 3*time.Second {
		t.Fatalf("expected default lock timeout 3s, got %v", cfg.CommitLockTimeout)
	}
	if cfg.ObjectStorageEnabled() {
		t.Fatalf("expected object storage disabled without endpoint")
	}
	loc, err := cfg.Location()
	if err != nil || loc != time.UTC {
		t.Fatalf("expected UTC location, got %v (err %v)", loc, err)
	}
}

func TestLoadRejectsMalformedDuration(t *testing.T) {
	t.Setenv("ACCESS_TOKEN_TTL", "eight hours")

	if _, err := Load(); err == nil {
		t.Fatalf("expected malformed duration to fail")
	}
}

func TestLocationRejectsUnknownZone(t *testing.T) {
	cfg := Config{ReportTimezone: "Mars/Olympus_Mons"}
	if _, err := cfg.Location(); err == nil {
		t.Fatalf("expected unknown timezone to fail")
	}
}
