package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"tokokasir/backend/internal/cache"
	"tokokasir/backend/internal/config"
	"tokokasir/backend/internal/httpapi"
	"tokokasir/backend/internal/logging"
	"tokokasir/backend/internal/objectstore"
	"tokokasir/backend/internal/service"
	"tokokasir/backend/internal/store"
	"tokokasir/backend/internal/store/memory"
	pgstore "tokokasir/backend/internal/store/postgres"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("invalid configuration: %v", err)
	}
	logger, err := logging.Setup(cfg.LogMode, cfg.LogFile)
	if err != nil {
		log.Fatalf("logger setup failed: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	if err := validateSecurityConfig(cfg); err != nil {
		zap.S().Fatalf("invalid security configuration: %v", err)
	}
	loc, err := cfg.Location()
	if err != nil {
		zap.S().Fatalf("invalid report timezone: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	closers := make([]func() error, 0, 2)

	repo, closeRepo, err := openRepository(ctx, cfg)
	if err != nil {
		zap.S().Fatalf("postgres unavailable (%v) and DATABASE_URL is set; refusing to start with in-memory fallback", err)
	}
	if closeRepo != nil {
		closers = append(closers, closeRepo)
	}

	statsCache, closeCache := openStatsCache(ctx, cfg)
	if closeCache != nil {
		closers = append(closers, closeCache)
	}

	images := openImageStore(ctx, cfg)

	svc := service.New(repo, statsCache, images, service.Options{
		Location: loc,
		StatsTTL: cfg.StatsCacheTTL,
	})
	auth := httpapi.NewAuthManager(cfg.AuthSecret, cfg.AccessTokenTTL, repo)
	api := httpapi.New(svc, auth, cfg.AllowedOrigin)

	server := &http.Server{
		Addr:              cfg.Address(),
		Handler:           api.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		zap.S().Infof("POS backend listening on %s (report timezone %s)", cfg.Address(), loc)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			zap.S().Fatalf("server error: %v", err)
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 8*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		zap.S().Errorf("shutdown error: %v", err)
	}

	for _, closeFn := range closers {
		if err := closeFn(); err != nil {
			zap.S().Errorf("close error: %v", err)
		}
	}

	zap.S().Info("server stopped")
}

// openRepository uses postgres when DATABASE_URL is set and the seeded
// in-memory store otherwise.
func openRepository(ctx context.Context, cfg config.Config) (store.Repository, func() error, error) {
	if cfg.DatabaseURL == "" {
		zap.S().Info("repository: in-memory")
		return memory.NewSeeded(), nil, nil
	}
	if err := pgstore.Migrate(cfg.DatabaseURL); err != nil {
		return nil, nil, err
	}
	pg, err := pgstore.New(ctx, cfg.DatabaseURL, cfg.CommitLockTimeout)
	if err != nil {
		return nil, nil, err
	}
	zap.S().Info("repository: postgres")
	return pg, pg.Close, nil
}

func openStatsCache(ctx context.Context, cfg config.Config) (cache.StatsCache, func() error) {
	if cfg.RedisAddr == "" {
		zap.S().Info("stats cache: noop")
		return cache.NoopStatsCache{}, nil
	}
	redisCache := cache.NewRedisStatsCache(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	if err := redisCache.Ping(ctx); err != nil {
		zap.S().Warnf("redis unavailable (%v), using noop stats cache", err)
		_ = redisCache.Close()
		return cache.NoopStatsCache{}, nil
	}
	zap.S().Info("stats cache: redis")
	return redisCache, redisCache.Close
}

func openImageStore(ctx context.Context, cfg config.Config) objectstore.ImageStore {
	if !cfg.ObjectStorageEnabled() {
		zap.S().Info("object storage: disabled")
		return objectstore.Unavailable{}
	}
	minioStore, err := objectstore.NewMinioStore(objectstore.MinioConfig{
		Endpoint:  cfg.MinioEndpoint,
		AccessKey: cfg.MinioAccessKey,
		SecretKey: cfg.MinioSecretKey,
		Bucket:    cfg.MinioBucket,
		UseSSL:    cfg.MinioUseSSL,
		Region:    cfg.MinioRegion,
		URLTTL:    cfg.UploadURLTTL,
	})
	if err != nil {
		zap.S().Warnf("object storage misconfigured (%v), QR uploads disabled", err)
		return objectstore.Unavailable{}
	}
	if err := minioStore.EnsureBucket(ctx); err != nil {
		zap.S().Warnf("bucket %s unavailable (%v), QR uploads disabled", cfg.MinioBucket, err)
		return objectstore.Unavailable{}
	}
	zap.S().Infof("object storage: minio bucket %s", cfg.MinioBucket)
	return minioStore
}

func validateSecurityConfig(cfg config.Config) error {
	if len(cfg.AuthSecret) < 32 {
		return fmt.Errorf("AUTH_SECRET must be set and at least 32 characters")
	}
	if cfg.AllowedOrigin == "*" && cfg.LogMode == "production" {
		return fmt.Errorf("ALLOWED_ORIGIN must name a concrete origin in production")
	}
	return nil
}
