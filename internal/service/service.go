package service

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"tokokasir/backend/internal/cache"
	"tokokasir/backend/internal/domain"
	"tokokasir/backend/internal/objectstore"
	"tokokasir/backend/internal/store"
)

var (
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")
)

type actorContextKey struct{}

func WithActor(ctx context.Context, actor domain.Actor) context.Context {
	return context.WithValue(ctx, actorContextKey{}, actor)
}

func ActorFromContext(ctx context.Context) (domain.Actor, bool) {
	actor, ok := ctx.Value(actorContextKey{}).(domain.Actor)
	return actor, ok
}

type Options struct {
	// Location decides calendar day and month boundaries for reports.
	Location *time.Location
	StatsTTL time.Duration
	Now      func() time.Time
}

type Service struct {
	repo     store.Repository
	stats    cache.StatsCache
	images   objectstore.ImageStore
	loc      *time.Location
	statsTTL time.Duration
	now      func() time.Time
}

func New(repo store.Repository, stats cache.StatsCache, images objectstore.ImageStore, opts Options) *Service {
	if stats == nil {
		stats = cache.NoopStatsCache{}
	}
	if images == nil {
		images = objectstore.Unavailable{}
	}
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	if opts.StatsTTL <= 0 {
		opts.StatsTTL = 30 * time.Second
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	return &Service{
		repo:     repo,
		stats:    stats,
		images:   images,
		loc:      opts.Location,
		statsTTL: opts.StatsTTL,
		now:      opts.Now,
	}
}

// Location is the zone report days and receipt timestamps are rendered in.
func (s *Service) Location() *time.Location {
	return s.loc
}

func (s *Service) requireActor(ctx context.Context) (domain.Actor, error) {
	actor, ok := ActorFromContext(ctx)
	if !ok || actor.UserID == "" {
		return domain.Actor{}, ErrUnauthorized
	}
	return actor, nil
}

func statsKeyPrefix(actorID string) string {
	return "stats:" + actorID + ":"
}

// cachedStats serves key from the stats cache or computes and stores it.
// Cache failures only cost a recomputation.
func cachedStats[T any](ctx context.Context, s *Service, key string, compute func() (T, error)) (T, error) {
	var cached T
	found, err := s.stats.Get(ctx, key, &cached)
	if err != nil {
		zap.S().Warnw("[service] stats cache read failed", "key", key, "error", err)
	}
	if found {
		return cached, nil
	}

	value, err := compute()
	if err != nil {
		return value, err
	}
	if err := s.stats.Set(ctx, key, value, s.statsTTL); err != nil {
		zap.S().Warnw("[service] stats cache write failed", "key", key, "error", err)
	}
	return value, nil
}

func (s *Service) invalidateStats(ctx context.Context, actorID string) {
	if err := s.stats.InvalidatePrefix(ctx, statsKeyPrefix(actorID)); err != nil {
		zap.S().Warnw("[service] stats cache invalidation failed", "actor", actorID, "error", err)
	}
}
