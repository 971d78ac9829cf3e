package main

import (
	"context"
	"testing"

	"tokokasir/backend/internal/cache"
	"tokokasir/backend/internal/config"
	"tokokasir/backend/internal/objectstore"
	"tokokasir/backend/internal/store/memory"
)

func TestValidateSecurityConfigRejectsWeakValues(t *testing.T) {
	err := validateSecurityConfig(config.Config{AuthSecret: "short"})
	if err == nil {
		t.Fatalf("expected weak security config to be rejected")
	}
}

func TestValidateSecurityConfigRejectsWildcardOriginInProduction(t *testing.T) {
	err := validateSecurityConfig(config.Config{
		AuthSecret:    "0123456789abcdef0123456789abcdef",
		AllowedOrigin: "*",
		LogMode:       "production",
	})
	if err == nil {
		t.Fatalf("expected wildcard origin to be rejected in production")
	}
}

func TestValidateSecurityConfigAcceptsStrongValues(t *testing.T) {
	err := validateSecurityConfig(config.Config{
		AuthSecret:    "0123456789abcdef0123456789abcdef",
		AllowedOrigin: "https://kasir.example.com",
		LogMode:       "production",
	})
	if err != nil {
		t.Fatalf("expected strong config to pass, got %v", err)
	}
}

func TestOptionalBackendsFallBack(t *testing.T) {
	ctx := context.Background()
	cfg := config.Config{}

	repo, closeRepo, err := openRepository(ctx, cfg)
	if err != nil {
		t.Fatalf("expected in-memory repository, got %v", err)
	}
	if _, ok := repo.(*memory.Store); !ok || closeRepo != nil {
		t.Fatalf("expected seeded memory store without closer, got %T", repo)
	}

	statsCache, closeCache := openStatsCache(ctx, cfg)
	if _, ok := statsCache.(cache.NoopStatsCache); !ok || closeCache != nil {
		t.Fatalf("expected noop stats cache, got %T", statsCache)
	}

	if _, ok := openImageStore(ctx, cfg).(objectstore.Unavailable); !ok {
		t.Fatalf("expected object storage to be unavailable without credentials")
	}
}
