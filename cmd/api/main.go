package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/qnachat/authcore/internal/background"
	"github.com/qnachat/authcore/internal/config"
	"github.com/qnachat/authcore/internal/database"
	"github.com/qnachat/authcore/internal/handlers"
	middlewareCustom "github.com/qnachat/authcore/internal/middleware"
	"github.com/qnachat/authcore/internal/repositories"
	"github.com/qnachat/authcore/internal/routes"
	"github.com/qnachat/authcore/internal/services"
	pkghttp "github.com/qnachat/authcore/pkg/http"
	pkglogger "github.com/qnachat/authcore/pkg/logger"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load configuration", slog.Any("error", err))
		os.Exit(1)
	}

	logger.Info("configuration loaded",
		slog.String("env", cfg.Server.Env),
		slog.String("db_type", cfg.Database.Type))

	// Open storage, run migrations, and wire the repositories
	accountRepo, activityRepo, healthCheck, closeDB, err := openStorage(cfg, logger)
	if err != nil {
		logger.Error("failed to initialize storage", slog.Any("error", err))
		os.Exit(1)
	}
	defer closeDB()

	// Initialize services
	reporter := pkglogger.NewReporter(logger)
	sessions := services.NewSessionRegistry(cfg.Auth.SessionTTL, cfg.Auth.SlidingExpiry)
	creds := services.NewCredentialService(accountRepo, sessions, cfg.Auth.MinPasswordLength, logger)
	accountTracker := services.NewAttemptTracker(cfg.Auth.MaxLoginAttempts, cfg.Auth.AccountLockoutDuration)
	addressTracker := services.NewAttemptTracker(cfg.Auth.MaxLoginAttempts, cfg.Auth.AddressLockoutDuration)
	activity := services.NewActivityLog(activityRepo, reporter)
	gateway := services.NewAuthGateway(creds, accountTracker, addressTracker, sessions, activity, logger)

	// Bootstrap the first admin account if configured
	bootCtx, bootCancel := context.WithTimeout(context.Background(), 10*time.Second)
	if err := creds.Bootstrap(bootCtx, cfg.Auth.AdminUsername, cfg.Auth.AdminPassword); err != nil {
		logger.Error("failed to bootstrap admin account", slog.Any("error", err))
	}
	bootCancel()

	// Initialize handlers
	ipConfig := &pkghttp.IPConfig{TrustedProxies: cfg.Server.TrustedProxies}
	authHandler := handlers.NewAuthHandler(gateway, ipConfig)
	adminHandler := handlers.NewAdminHandler(gateway, ipConfig)

	// Setup router
	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(middlewareCustom.SecureLogger(logger))
	router.Use(middleware.Recoverer)
	router.Use(middleware.Timeout(60 * time.Second))

	loginRateLimit := middlewareCustom.RateLimitConfig{
		RequestsPerMinute: cfg.Auth.LoginRequestsPerMinute,
	}
	routes.RegisterRoutes(router, gateway, authHandler, adminHandler, loginRateLimit)

	// Health check with database
	router.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		if err := healthCheck(ctx); err != nil {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte(`{"status":"unhealthy","database":"down"}`))
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"healthy","database":"up"}`))
	})

	// Create server
	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start background sweeper
	sweepCtx, sweepCancel := context.WithCancel(context.Background())
	defer sweepCancel()

	var sweeper *background.Sweeper
	if cfg.Auth.SweepInterval > 0 {
		sweeper = background.NewSweeper(sessions, accountTracker, addressTracker, activity, logger, cfg.Auth.SweepInterval)
		go sweeper.Start(sweepCtx)
	}

	// Start server
	go func() {
		logger.Info("starting server", slog.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", slog.Any("error", err))
			os.Exit(1)
		}
	}()

	// Graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	logger.Info("shutdown signal received")

	sweepCancel()
	if sweeper != nil {
		sweeper.Stop()
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", slog.Any("error", err))
		os.Exit(1)
	}

	// Last chance to land parked activity records
	flushCtx, flushCancel := context.WithTimeout(context.Background(), 5*time.Second)
	if flushed := activity.Flush(flushCtx); flushed > 0 {
		logger.Info("flushed parked activity records", slog.Int("count", flushed))
	}
	flushCancel()

	logger.Info("server stopped gracefully")
}

// openStorage connects to the configured backend, runs migrations, and
// returns the wired repositories plus a health check and close function.
func openStorage(cfg *config.Config, logger *slog.Logger) (
	services.AccountRepository,
	services.ActivityRepository,
	func(ctx context.Context) error,
	func(),
	error,
) {
	switch cfg.Database.Type {
	case "postgres":
		pg, err := database.NewPostgres(&cfg.Database, logger)
		if err != nil {
			return nil, nil, nil, nil, fmt.Errorf("connect postgres: %w", err)
		}

		// goose runs over database/sql, so migrations use the stdlib driver
		// on the same DSN as the pool
		migrateDB, err := sql.Open("pgx", cfg.Database.DSN())
		if err != nil {
			pg.Close()
			return nil, nil, nil, nil, fmt.Errorf("open migration connection: %w", err)
		}
		if err := database.Migrate(migrateDB, "postgres"); err != nil {
			migrateDB.Close()
			pg.Close()
			return nil, nil, nil, nil, fmt.Errorf("run migrations: %w", err)
		}
		migrateDB.Close()

		accountRepo := repositories.NewAccountRepository(pg)
		activityRepo := repositories.NewActivityRepository(pg)
		return accountRepo, activityRepo, pg.HealthCheck, pg.Close, nil

	case "sqlite":
		db, err := database.OpenSQLite(cfg.Database.SQLitePath)
		if err != nil {
			return nil, nil, nil, nil, fmt.Errorf("open sqlite: %w", err)
		}
		if err := database.Migrate(db, "sqlite"); err != nil {
			db.Close()
			return nil, nil, nil, nil, fmt.Errorf("run migrations: %w", err)
		}

		accountRepo := repositories.NewSQLiteAccountRepository(db)
		activityRepo := repositories.NewSQLiteActivityRepository(db)
		return accountRepo, activityRepo, db.PingContext, func() { db.Close() }, nil

	default:
		return nil, nil, nil, nil, fmt.Errorf("unsupported DB_TYPE: %s", cfg.Database.Type)
	}
}
