package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ourresearch/openalex-api-analytics/internal/app/migrate"
	"github.com/ourresearch/openalex-api-analytics/internal/cache"
	"github.com/ourresearch/openalex-api-analytics/internal/geo"
	httpx "github.com/ourresearch/openalex-api-analytics/internal/http"
	"github.com/ourresearch/openalex-api-analytics/internal/repository/postgres"
	"github.com/ourresearch/openalex-api-analytics/internal/service/usage"
	"github.com/ourresearch/openalex-api-analytics/internal/store"
	"github.com/ourresearch/openalex-api-analytics/internal/ws"
	"github.com/ourresearch/openalex-api-analytics/pkg/config"
	"github.com/ourresearch/openalex-api-analytics/pkg/logger"
	"github.com/ourresearch/openalex-api-analytics/pkg/token"
)

func main() {
	mintSubject := flag.String("mint-token", "", "print a dashboard token for the given subject and exit")
	flag.Parse()

	cfg := config.LoadAPIConfig()
	log := logger.New("api", logger.ParseLevel(cfg.LogLevel))

	if *mintSubject != "" {
		signed, err := token.Generate(*mintSubject, cfg.TokenSecret, cfg.TokenTTL)
		if err != nil {
			log.Error("failed to mint token", "error", err)
			os.Exit(1)
		}
		fmt.Println(signed)
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}

	runner, err := migrate.New(pool, cfg.DatabaseURL, cfg.MigrationsDir, log)
	if err != nil {
		log.Error("failed to configure migrations", "error", err)
		os.Exit(1)
	}
	defer runner.Close()
	if err := runner.Ping(ctx); err != nil {
		log.Error("database ping failed", "error", err)
		os.Exit(1)
	}
	if err := runner.Ensure(ctx); err != nil {
		log.Error("migrations failed", "error", err)
		os.Exit(1)
	}

	telemetry, err := store.New(cfg.StoreBaseURL, cfg.StoreDataset,
		store.WithToken(cfg.StoreToken),
		store.WithTimeout(cfg.StoreTimeout),
		store.WithRowCaps(cfg.StoreMaxGroups, cfg.StoreMaxSamples),
	)
	if err != nil {
		log.Error("failed to configure telemetry store client", "error", err)
		os.Exit(1)
	}

	var sharedCache cache.Cache = cache.NewMemoryCache(nil)
	if addr := strings.TrimSpace(cfg.CacheRedisAddr); addr != "" {
		redisCache, err := cache.NewRedisCache(addr, cfg.CacheRedisPass, cfg.CacheRedisDB, log)
		if err != nil {
			log.Warn("redis cache unavailable, using in-process cache", "error", err)
		} else {
			sharedCache = redisCache
		}
	}
	defer sharedCache.Close()

	resolver := geo.NewNop()
	if path := strings.TrimSpace(cfg.GeoDatabasePath); path != "" {
		maxmind, err := geo.NewMaxMind(path)
		if err != nil {
			log.Warn("geoip database unavailable, origin annotation disabled", "error", err, "path", path)
		} else {
			resolver = geo.NewCached(maxmind, sharedCache, cfg.GeoCacheTTL)
		}
	}
	defer resolver.Close()

	repo := postgres.New(pool)
	usageSvc := usage.New(telemetry, repo, sharedCache, resolver, log, cfg.IdentityCacheTTL)

	hub := ws.NewHub()
	live := usage.NewBroadcaster(usageSvc, hub, cfg.LiveRefreshEvery, log)
	go live.Run(ctx)

	limiter := httpx.NewMemoryRateLimiter()
	if addr := strings.TrimSpace(cfg.RateLimitRedisAddr); addr != "" {
		redisLimiter, err := httpx.NewRedisRateLimiter(addr, cfg.RateLimitRedisPass, cfg.RateLimitRedisDB, log)
		if err != nil {
			log.Warn("redis rate limiter unavailable", "error", err)
		} else {
			limiter = redisLimiter
		}
	}

	router := httpx.NewRouter(log, usageSvc, live, limiter, cfg.TokenSecret, pool.Ping, telemetry.Ping)
	defer router.Close()

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errorCh := make(chan error, 1)
	go func() {
		log.Info("analytics api starting", "addr", cfg.Addr, "env", cfg.Environment)
		errorCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error("graceful shutdown failed", "error", err)
		}
		log.Info("analytics api stopped")
	case err := <-errorCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server error", "error", err)
			os.Exit(1)
		}
	}
}
