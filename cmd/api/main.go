// Copyright (c) 2026 Arcadia. All rights reserved.

// Command api is the entry point for the Arcadia HTTP API server.
//
// # Startup Sequence
//
//  1. Initialize structured logger.
//  2. Load configuration from environment variables.
//  3. Connect to PostgreSQL (pgxpool).
//  4. Connect to Redis.
//  5. Run database migrations (idempotent).
//  6. Wire domain services and HTTP handlers.
//  7. Start background maintenance and the permission-cache sweeper.
//  8. Start HTTP server with graceful shutdown.
//
// No business logic lives here. All wiring is explicit constructor injection.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/darkraise/arcadia/internal/api"
	"github.com/darkraise/arcadia/internal/platform/config"
	"github.com/darkraise/arcadia/internal/platform/constants"
	"github.com/darkraise/arcadia/internal/platform/migration"
	pgstore "github.com/darkraise/arcadia/internal/platform/postgres"
	redisstore "github.com/darkraise/arcadia/internal/platform/redis"
	"github.com/darkraise/arcadia/internal/platform/sec"
	"github.com/darkraise/arcadia/internal/users/account"
	"github.com/darkraise/arcadia/internal/users/auth"
	"github.com/darkraise/arcadia/internal/users/rbac"
)

func main() {
	// ── 1. Logger ──────────────────────────────────────────────────────────
	// Initialize first so that subsequent startup errors are structured JSON.
	rawLog := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))

	// Add global context to all log entries.
	log := rawLog.With(slog.String("app", constants.AppName))
	slog.SetDefault(log)

	log.Info("[Arcadia] service_initializing")

	// ── 2. Configuration ──────────────────────────────────────────────────
	cfg, err := config.Load()
	must(log, err, "load configuration")

	if cfg.Debug {
		debugLog := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level: slog.LevelDebug,
		}))
		log = debugLog.With(slog.String("app", constants.AppName))
		slog.SetDefault(log)
		log.Debug("debug_logging_enabled")
	}

	log.Info("configuration_loaded",
		slog.String("environment", cfg.Environment),
		slog.String("port", cfg.ServerPort),
	)

	// Root context for startup. Use a 30s deadline so misconfiguration is
	// caught quickly rather than hanging indefinitely.
	startupCtx, startupCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer startupCancel()

	// ── 3. PostgreSQL ─────────────────────────────────────────────────────
	pool, err := pgstore.NewPool(startupCtx, cfg.DatabaseURL, log)
	must(log, err, "connect to postgres")
	defer func() {
		log.Info("closing postgres pool")
		pool.Close()
	}()

	// ── 4. Redis ──────────────────────────────────────────────────────────
	rdb, err := redisstore.NewClient(startupCtx, cfg.RedisURL, log)
	must(log, err, "connect to redis")
	defer func() {
		log.Info("closing redis client")
		if cerr := rdb.Close(); cerr != nil {
			log.Error("redis close error", slog.Any("error", cerr))
		}
	}()

	// ── 5. Migrations ─────────────────────────────────────────────────────
	must(log, migration.RunUp(cfg.DatabaseURL, cfg.MigrationPath, log), "run migrations")

	// ── 6. Security Primitives ────────────────────────────────────────────
	hasher := sec.NewPasswordHasher(cfg.BcryptCost)
	signer, err := sec.NewTokenSigner(cfg.JWTSecret, constants.AuthIssuer)
	must(log, err, "initialize token signer")

	// ── 7. Health handlers (wired with real dependency checkers) ──────────
	liveness, readiness := api.NewHealthHandlers(api.HealthDependencies{
		CheckDatabase: func() error {
			return pgstore.Ping(context.Background(), pool)
		},
		CheckCache: func() error {
			return redisstore.Ping(context.Background(), rdb)
		},
	}, log)

	// ── 8. RBAC Domain ────────────────────────────────────────────────────
	permissionCache := rbac.NewPermissionCache(rbac.CacheOptions{Logger: log})
	permissionCache.Start()
	defer permissionCache.Stop()

	rbacService := rbac.NewService(
		rbac.NewRoleRepository(pool),
		rbac.NewPermissionRepository(pool),
		rbac.NewResolver(pool),
		permissionCache,
		log,
	)
	rbacHandler := rbac.NewHandler(rbacService)

	// ── 9. Auth Domain ────────────────────────────────────────────────────
	userRepository := auth.NewUserRepository(pool)

	authService := auth.NewService(
		auth.NewCredentialStore(userRepository, hasher),
		auth.NewLoginAttemptLedger(auth.NewLoginAttemptRepository(pool), cfg.MaxLoginAttempts, cfg.LockoutDuration, log),
		auth.NewTokenService(signer, auth.NewRefreshTokenRepository(pool), cfg.AccessTokenTTL, cfg.RefreshTokenTTL),
		userRepository,
		auth.NewResetTokenRepository(rdb),
		auth.NewVerificationTokenRepository(rdb),
		rbacService,
		&auth.StaticSettings{
			Registration: cfg.UserRegistrationEnabled,
			Guest:        cfg.GuestAccessEnabled,
		},
		log,
	)
	authHandler := auth.NewHandler(authService)

	// ── 10. Account Domain ────────────────────────────────────────────────
	accountService := account.NewService(
		account.NewAccountRepository(pool),
		account.NewSessionRepository(pool),
		rbacService,
		rbacService,
		log,
	)
	accountHandler := account.NewHandler(accountService)

	// ── 11. Background Maintenance ────────────────────────────────────────
	maintenanceCtx, maintenanceCancel := context.WithCancel(context.Background())
	defer maintenanceCancel()
	go runMaintenance(maintenanceCtx, authService, log)

	// ── 12. HTTP Server ───────────────────────────────────────────────────
	handlers := api.Handlers{
		Liveness:  liveness,
		Readiness: readiness,
		Auth:      authHandler,
		Account:   accountHandler,
		RBAC:      rbacHandler,
	}

	server := api.NewServer(maintenanceCtx, cfg, log, authService, handlers)

	// ── 13. Graceful Shutdown ─────────────────────────────────────────────
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGTERM, syscall.SIGINT)

	serverErr := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	// Block until OS signal or server error.
	select {
	case sig := <-quit:
		log.Info("shutdown signal received", slog.String("signal", sig.String()))
	case err := <-serverErr:
		log.Error("server startup error", slog.Any("error", err))
	}

	// Give in-flight requests enough time to complete.
	shutdownTimeout := constants.ShutdownTimeout
	log.Info("shutting down server", slog.Duration("timeout", shutdownTimeout))

	if err := server.Shutdown(shutdownTimeout); err != nil {
		log.Error("shutdown error", slog.Any("error", err))
		os.Exit(1)
	}

	log.Info("server stopped cleanly")
}

// runMaintenance periodically purges expired refresh tokens and trims the
// login-attempt audit ledger. Failures are logged inside RunMaintenance and
// never abort the loop.
func runMaintenance(ctx context.Context, authService *auth.Service, log *slog.Logger) {
	ticker := time.NewTicker(constants.MaintenanceInterval)
	defer ticker.Stop()

	log.Info("maintenance_loop_started", slog.Duration("interval", constants.MaintenanceInterval))

	for {
		select {
		case <-ctx.Done():
			log.Info("maintenance_loop_stopped")
			return
		case <-ticker.C:
			authService.RunMaintenance(ctx, constants.LoginAttemptRetention)
		}
	}
}

// must logs a structured fatal error and terminates the process if err is non-nil.
//
// It is intentionally limited to startup wiring. After startup, all errors
// must be returned and handled explicitly (never panic).
func must(log *slog.Logger, err error, context string) {
	if err != nil {
		log.Error("startup failure",
			slog.String("context", context),
			slog.Any("error", err),
		)
		os.Exit(1)
	}
}
