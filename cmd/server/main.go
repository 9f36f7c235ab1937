package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/HammerMeetNail/socialreact/internal/auth"
	"github.com/HammerMeetNail/socialreact/internal/config"
	"github.com/HammerMeetNail/socialreact/internal/database"
	"github.com/HammerMeetNail/socialreact/internal/handlers"
	"github.com/HammerMeetNail/socialreact/internal/logging"
	"github.com/HammerMeetNail/socialreact/internal/metrics"
	"github.com/HammerMeetNail/socialreact/internal/middleware"
	"github.com/HammerMeetNail/socialreact/internal/models"
	"github.com/HammerMeetNail/socialreact/internal/services"
)

func main() {
	if err := run(); err != nil {
		logging.Error("Application error", map[string]interface{}{"error": err.Error()})
		os.Exit(1)
	}
}

func run() error {
	// Initialize logger
	logger := logging.New()
	defer func() { _ = logger.Sync() }()

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	if cfg.Server.Debug {
		logger.SetLevel(logging.LevelDebug)
		logging.SetDefaultLevel(logging.LevelDebug)
		logger.Debug("Debug logging enabled", map[string]interface{}{
			"env": cfg.Server.Environment,
		})
	}

	logger.Info("Starting reaction server...")

	// Connect to PostgreSQL
	logger.Info("Connecting to PostgreSQL", map[string]interface{}{
		"host": cfg.Database.Host,
		"port": cfg.Database.Port,
	})
	db, err := database.NewPostgresDB(cfg.Database.DSN(), database.PoolOptions{
		MaxConns: int32(cfg.Database.MaxConns),
		MinConns: int32(cfg.Database.MinConns),
	})
	if err != nil {
		return fmt.Errorf("connecting to postgres: %w", err)
	}
	defer db.Close()
	logger.Info("Connected to PostgreSQL")

	// Run migrations
	logger.Info("Running database migrations...")
	migrator, err := database.NewMigrator(cfg.Database.DSN(), cfg.Server.MigrationsDir)
	if err != nil {
		return fmt.Errorf("creating migrator: %w", err)
	}
	if err := migrator.Up(); err != nil {
		_ = migrator.Close()
		return fmt.Errorf("running migrations: %w", err)
	}
	_ = migrator.Close()
	logger.Info("Migrations completed")

	// Connect to Redis
	logger.Info("Connecting to Redis", map[string]interface{}{
		"addr": cfg.Redis.Addr(),
	})
	redisDB, err := database.NewRedisDB(database.RedisOptions{
		Addr:     cfg.Redis.Addr(),
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
		PoolSize: cfg.Redis.PoolSize,
	})
	if err != nil {
		return fmt.Errorf("connecting to redis: %w", err)
	}
	defer func() { _ = redisDB.Close() }()
	logger.Info("Connected to Redis")

	var m *metrics.Metrics
	if cfg.Metrics.Enabled {
		m = metrics.New()
		m.ObservePool("postgres", db.Stats)
		m.ObservePool("redis", redisDB.Stats)
	}

	// Initialize services
	dbAdapter := services.NewPoolAdapter(db.Pool)
	reactionCfg := services.ReactionServicesConfig{LockTimeout: cfg.Reactions.LockTimeout}
	if m != nil {
		reactionCfg.Observer = m
	}
	reactionServices := services.NewReactionServices(dbAdapter, reactionCfg)
	tokens := auth.NewTokenService(cfg.Auth.JWTSecret, cfg.Auth.JWTIssuer, cfg.Auth.TokenTTL)

	// Initialize middleware
	rateLimit := resolveReactionRateLimit(cfg, logger, os.LookupEnv)
	limiter := middleware.NewRateLimiter(redisDB.Client, rateLimit, cfg.Reactions.RateWindow, "ratelimit:reactions:", func(r *http.Request) string {
		if user := handlers.GetUserFromContext(r.Context()); user != nil {
			return strconv.FormatInt(user.ID, 10)
		}
		return ""
	}, cfg.Reactions.RateLimitFailOpen)
	if m != nil {
		limiter.SetObserver(m)
	}

	handler := newRouter(routerDeps{
		reactions:   reactionServices,
		health:      handlers.NewHealthHandler(db, redisDB),
		auth:        middleware.NewAuthMiddleware(tokens),
		limiter:     limiter,
		metrics:     m,
		metricsPath: cfg.Metrics.Path,
		logger:      logger,
	})

	// Create server
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	server := &http.Server{
		Addr:         addr,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown
	done := make(chan bool, 1)
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-quit
		logger.Info("Server is shutting down...")

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		server.SetKeepAlivesEnabled(false)
		if err := server.Shutdown(ctx); err != nil {
			logger.Error("Could not gracefully shutdown the server", map[string]interface{}{
				"error": err.Error(),
			})
		}
		close(done)
	}()

	logger.Info("Server listening", map[string]interface{}{
		"addr": addr,
	})
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server error: %w", err)
	}

	<-done
	logger.Info("Server stopped")
	return nil
}

type routerDeps struct {
	reactions   services.ReactionServices
	health      *handlers.HealthHandler
	auth        *middleware.AuthMiddleware
	limiter     *middleware.RateLimiter
	metrics     *metrics.Metrics
	metricsPath string
	logger      *logging.Logger
}

func newRouter(d routerDeps) http.Handler {
	mux := http.NewServeMux()

	// Health endpoints (no auth, no rate limit)
	mux.HandleFunc("GET /health", d.health.Health)
	mux.HandleFunc("GET /ready", d.health.Ready)
	mux.HandleFunc("GET /live", d.health.Live)
	if d.metrics != nil {
		mux.Handle("GET "+d.metricsPath, d.metrics.Handler())
	}

	// Reaction endpoints
	mux.HandleFunc("GET /api/reactions/kinds", handlers.ListReactionKinds)
	for target, prefix := range map[models.TargetKind]string{
		models.TargetPost:    "/api/posts/{id}/reactions",
		models.TargetComment: "/api/comments/{id}/reactions",
	} {
		svc, ok := d.reactions[target]
		if !ok {
			continue
		}
		mountReactionRoutes(mux, prefix, handlers.NewReactionHandler(svc), d.auth, d.limiter)
	}

	// Build middleware chain (order matters: outermost last)
	var handler http.Handler = mux
	if d.metrics != nil {
		handler = middleware.NewHTTPMetrics(d.metrics).Apply(handler)
	}
	handler = d.auth.Authenticate(handler)
	handler = middleware.NewRequestLogger(d.logger).Apply(handler)
	return handler
}

func mountReactionRoutes(mux *http.ServeMux, prefix string, h *handlers.ReactionHandler, authMiddleware *middleware.AuthMiddleware, limiter *middleware.RateLimiter) {
	requireUser := authMiddleware.RequireUser
	write := func(fn http.HandlerFunc) http.Handler {
		if limiter == nil {
			return requireUser(fn)
		}
		return requireUser(limiter.Middleware(fn))
	}

	mux.Handle("POST "+prefix, write(h.React))
	mux.Handle("DELETE "+prefix, write(h.Remove))
	mux.HandleFunc("GET "+prefix, h.Counters)
	mux.Handle("GET "+prefix+"/me", requireUser(http.HandlerFunc(h.Mine)))
	mux.HandleFunc("GET "+prefix+"/top", h.Top)
}

func resolveReactionRateLimit(cfg *config.Config, logger *logging.Logger, lookupEnv func(string) (string, bool)) int64 {
	limit := cfg.Reactions.RateLimit
	if _, ok := lookupEnv("REACTION_RATE_LIMIT"); !ok && cfg.Server.Environment == "development" {
		limit = 1000
		logger.Info("Using development reaction rate limit", map[string]interface{}{"limit": limit})
	}
	if limit <= 0 {
		logger.Warn("Reaction rate limiting disabled", map[string]interface{}{"limit": limit})
		return 0
	}
	return limit
}
