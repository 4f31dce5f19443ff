package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/quizmaker-app/backend/internal/auth"
	"github.com/quizmaker-app/backend/internal/config"
	"github.com/quizmaker-app/backend/internal/health"
	"github.com/quizmaker-app/backend/internal/logger"
	"github.com/quizmaker-app/backend/internal/metrics"
	authmw "github.com/quizmaker-app/backend/internal/middleware"
	"github.com/quizmaker-app/backend/internal/repository"
)

// Version is set at build time
var Version = "dev"

func main() {
	cfg := config.Load()
	log := logger.New(logger.DefaultConfig())
	slog.SetDefault(log)

	if err := cfg.Validate(); err != nil {
		log.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	// Select the store driver. Core logic never branches on it again.
	var (
		userRepo    repository.UserRepository
		sessionRepo repository.SessionRepository
		dbPool      *pgxpool.Pool
	)

	switch cfg.Store.Driver {
	case config.StoreMemory:
		log.Warn("using in-memory store; sessions will not survive a restart")
		userRepo = repository.NewMemoryUserRepository()
		sessionRepo = repository.NewMemorySessionRepository()
	default:
		pool, err := setupDatabase(cfg, log)
		if err != nil {
			log.Error("failed to connect to database", "error", err)
			os.Exit(1)
		}
		defer pool.Close()
		dbPool = pool
		userRepo = repository.NewUserRepository(pool)
		sessionRepo = repository.NewSessionRepository(pool)
	}

	tokenService := auth.NewTokenService(auth.TokenServiceConfig{
		SigningSecret: cfg.Auth.SigningSecret,
		SessionTTL:    cfg.Auth.SessionTTL,
		Issuer:        cfg.Auth.Issuer,
	})

	cookieCfg := auth.CookieConfig{
		Name:   cfg.Auth.CookieName,
		Secure: cfg.Auth.CookieSecure,
		MaxAge: cfg.Auth.SessionTTL,
	}

	passwordValidator := auth.NewPasswordValidator()
	authService := auth.NewAuthService(userRepo, sessionRepo, tokenService, passwordValidator, log)
	authHandler := auth.NewAuthHandler(authService, cookieCfg)
	authMiddleware := authmw.NewAuthMiddleware(tokenService, cookieCfg)

	requestGate := authmw.NewRequestGate(tokenService, cookieCfg, authmw.RequestGateConfig{
		ProtectedPrefixes: []string{"/dashboard", "/quizzes", "/settings"},
		AuthOnlyPaths:     []string{"/login", "/signup"},
		LoginPath:         "/login",
		LandingPath:       "/dashboard",
	})

	healthHandler := health.NewHandler(health.Config{
		DBPool:  dbPool,
		Version: Version,
	})

	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(authmw.StructuredLogger(log))
	r.Use(chimw.Recoverer)
	r.Use(chimw.Timeout(60 * time.Second))
	r.Use(metrics.Middleware)
	r.Use(requestGate.Handler)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"https://quizmaker.app", "http://localhost:3000"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", "X-CSRF-Token"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/health", healthHandler.Health)
	r.Get("/health/ready", healthHandler.Ready)
	r.Get("/health/live", healthHandler.Live)
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		auth.RegisterRoutes(r, authHandler, authMiddleware.Authenticate)
	})

	if dbPool != nil {
		collector := metrics.NewDBStatsCollector(dbPool, log)
		collector.Start(30 * time.Second)
		defer collector.Stop()
	}

	// Background reaper: one bulk statement per tick, no coordination with
	// request handlers needed.
	reaperCtx, stopReaper := context.WithCancel(context.Background())
	defer stopReaper()
	go runSessionReaper(reaperCtx, sessionRepo, cfg.Auth.ReaperInterval, log)

	addr := cfg.Server.Host + ":" + cfg.Server.Port
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info("starting server", "addr", addr, "store", cfg.Store.Driver)
		healthHandler.SetReady(true)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("server failed", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down server")
	healthHandler.SetReady(false)
	stopReaper()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}

	log.Info("server exited")
}

// runSessionReaper periodically deactivates expired sessions
func runSessionReaper(ctx context.Context, sessions repository.SessionRepository, interval time.Duration, log *slog.Logger) {
	if interval <= 0 {
		interval = time.Hour
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			reapCtx, cancel := context.WithTimeout(ctx, time.Minute)
			count, err := sessions.DeactivateExpired(reapCtx)
			cancel()
			if err != nil {
				log.Warn("session reaper failed", "error", err)
				continue
			}
			if count > 0 {
				metrics.SessionsReaped.Add(float64(count))
				log.Info("deactivated expired sessions", "count", count)
			}
		}
	}
}

// setupDatabase creates and configures the database connection pool
func setupDatabase(cfg *config.Config, log *slog.Logger) (*pgxpool.Pool, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	poolConfig, err := pgxpool.ParseConfig(cfg.Database.DSN())
	if err != nil {
		return nil, fmt.Errorf("failed to parse database config: %w", err)
	}

	poolConfig.MaxConns = 50
	poolConfig.MinConns = 5
	poolConfig.MaxConnLifetime = 5 * time.Minute
	poolConfig.MaxConnIdleTime = 1 * time.Minute
	poolConfig.HealthCheckPeriod = 30 * time.Second

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create database pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	log.Info("connected to database", "name", cfg.Database.DBName, "host", cfg.Database.Host)
	return pool, nil
}
