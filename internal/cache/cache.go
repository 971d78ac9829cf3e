package cache

import (
	"context"
	"time"
)

// StatsCache holds computed report payloads keyed per actor and period.
type StatsCache interface {
	Get(ctx context.Context, key string, dest any) (bool, error)
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	// InvalidatePrefix drops every key that starts with prefix.
	InvalidatePrefix(ctx context.Context, prefix string) error
}

type NoopStatsCache struct{}

func (NoopStatsCache) Get(_ context.Context, _ string, _ any) (bool, error) {
	return false, nil
}

func (NoopStatsCache) Set(_ context.Context, _ string, _ any, _ time.Duration) error {
	return nil
}

func (NoopStatsCache) InvalidatePrefix(_ context.Context, _ string) error {
	return nil
}
