package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/robfig/cron/v3"

	"github.com/openmandi/price-engine/internal/api"
	"github.com/openmandi/price-engine/internal/confidence"
	"github.com/openmandi/price-engine/internal/config"
	"github.com/openmandi/price-engine/internal/ethics"
	"github.com/openmandi/price-engine/internal/fairness"
	"github.com/openmandi/price-engine/internal/metrics"
	"github.com/openmandi/price-engine/internal/pricing"
	"github.com/openmandi/price-engine/internal/repo"
	"github.com/openmandi/price-engine/internal/snapshot"
)

func main() {
	configPath := flag.String("config", "", "path to TOML configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "invalid config: %v\n", err)
		os.Exit(1)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel(cfg.LogLevel),
	}))
	slog.SetDefault(logger)

	// --- Repository ---
	var repository repo.Repository
	var cleanup []func()

	if cfg.Postgres.DSN != "" {
		pool, err := pgxpool.New(context.Background(), cfg.Postgres.DSN)
		if err != nil {
			slog.Error("database connection failed", "err", err)
			os.Exit(1)
		}
		cleanup = append(cleanup, pool.Close)
		repository = repo.NewPostgresRepository(pool)
		slog.Info("connected to PostgreSQL")

		// Wrap with Redis read-through cache if configured.
		if cfg.Redis.Addr != "" {
			rdb := redis.NewClient(&redis.Options{
				Addr:     cfg.Redis.Addr,
				Password: cfg.Redis.Password,
				DB:       cfg.Redis.DB,
			})
			cleanup = append(cleanup, func() { rdb.Close() })
			repository = repo.NewCachedRepository(repository, rdb, cfg.Redis.TTL.Duration)
			slog.Info("Redis cache enabled", "addr", cfg.Redis.Addr)
		}
	} else {
		slog.Warn("postgres.dsn not set, using seeded in-memory repository (data will not persist)")
		repository = repo.NewSeededMemoryRepository(time.Now().UTC())
	}

	defer func() {
		for _, fn := range cleanup {
			fn()
		}
	}()

	// --- WebSocket hub ---
	wsHub := api.NewWSHub()
	go wsHub.Run()

	// --- Snapshot cache ---
	cache := snapshot.NewCache(repository, cfg.Cache.Window.Duration)
	refresh := func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := cache.Refresh(ctx); err != nil {
			metrics.CacheRefreshesTotal.WithLabelValues("error").Inc()
			slog.Error("snapshot refresh failed", "err", err)
			return
		}
		metrics.CacheRefreshesTotal.WithLabelValues("ok").Inc()
		metrics.CachedSeries.Set(float64(cache.Size()))
		slog.Info("snapshot cache refreshed", "series", cache.Size())
		wsHub.Broadcast(api.WSMessage{Type: "snapshot_refreshed", Series: cache.Size()})
	}
	refresh()

	scheduler := cron.New()
	if _, err := scheduler.AddFunc(cfg.Cache.RefreshSchedule, refresh); err != nil {
		slog.Error("invalid refresh schedule", "schedule", cfg.Cache.RefreshSchedule, "err", err)
		os.Exit(1)
	}
	scheduler.Start()
	defer scheduler.Stop()

	// --- API service ---
	svc := api.NewService(cache, repository,
		pricing.NewModel(pricing.DefaultParams()),
		confidence.NewEstimator(cfg.ConfidenceParams()),
		fairness.NewScorer(cfg.FairnessParams()),
		ethics.NewGuard(cfg.EthicsParams()),
		cfg.Ethics.OfferHistoryWindow.Duration,
		wsHub)

	limiter := api.NewRateLimiter(cfg.Server.RateLimitRPS, cfg.Server.RateLimitBurst)

	// --- HTTP router ---
	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Timeout(cfg.Server.RequestTimeout.Duration))
	r.Use(metrics.Middleware)
	r.Use(limiter.Middleware)

	// CORS middleware for frontend cross-origin requests.
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Access-Control-Allow-Origin", "*")
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
			if r.Method == "OPTIONS" {
				w.WriteHeader(http.StatusNoContent)
				return
			}
			next.ServeHTTP(w, r)
		})
	})

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"status":"ok","service":"price-engine","cache_refreshed_at":%q}`,
			cache.LastRefresh().Format(time.RFC3339))
	})

	// Prometheus metrics endpoint.
	r.Handle("/metrics", metrics.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		// WebSocket endpoint for real-time assessment events.
		r.Get("/ws", wsHub.HandleWS)

		// Price discovery.
		r.Get("/products", svc.ListProducts)
		r.Get("/price/{product}", svc.GetPrice)
		r.Post("/explain", svc.Explain)

		// Offer assessment.
		r.Post("/assess", svc.Assess)
		r.Post("/negotiate/assess", svc.NegotiateAssess)

		// Cache management.
		r.Post("/snapshots/refresh", svc.RefreshSnapshots)
	})

	// --- Server ---
	srv := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      r,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		slog.Info("price-engine listening", "addr", cfg.Server.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "err", err)
			os.Exit(1)
		}
	}()

	// Graceful shutdown.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	slog.Info("shutting down price-engine...")
	if err := srv.Shutdown(ctx); err != nil {
		slog.Error("shutdown error", "err", err)
	}
	fmt.Println("price-engine stopped")
}

func logLevel(s string) slog.Level {
	switch s {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
