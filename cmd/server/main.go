package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/HammerMeetNail/friendsync/internal/config"
	"github.com/HammerMeetNail/friendsync/internal/database"
	"github.com/HammerMeetNail/friendsync/internal/handlers"
	"github.com/HammerMeetNail/friendsync/internal/logging"
	"github.com/HammerMeetNail/friendsync/internal/middleware"
	"github.com/HammerMeetNail/friendsync/internal/services"
	"github.com/HammerMeetNail/friendsync/internal/sms"
	"github.com/HammerMeetNail/friendsync/migrations"
)

func main() {
	if err := run(); err != nil {
		logging.Error("Application error", map[string]interface{}{"error": err.Error()})
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logger := newLogger(cfg.Log)
	defer func() { _ = logger.Sync() }()

	logger.Info("Starting friendsync directory service", map[string]interface{}{"env": cfg.Server.Environment})

	logger.Info("Connecting to PostgreSQL", map[string]interface{}{
		"host": cfg.Database.Host,
		"port": cfg.Database.Port,
	})
	db, err := database.NewPostgresDB(cfg.Database)
	if err != nil {
		return fmt.Errorf("connecting to postgres: %w", err)
	}
	defer db.Close()

	if err := migrate(cfg.Database.DSN(), logger); err != nil {
		return err
	}

	logger.Info("Connecting to Redis", map[string]interface{}{"addr": cfg.Redis.Addr()})
	redisDB, err := database.NewRedisDB(cfg.Redis)
	if err != nil {
		return fmt.Errorf("connecting to redis: %w", err)
	}
	defer func() { _ = redisDB.Close() }()

	sender, err := sms.New(&cfg.SMS, logger)
	if err != nil {
		return fmt.Errorf("creating sms sender: %w", err)
	}

	dbAdapter := services.NewPoolAdapter(db.Pool)
	authService := services.NewAuthService(dbAdapter, redisDB.Client)
	directoryService := services.NewDirectoryService(dbAdapter)
	friendService := services.NewFriendService(dbAdapter)
	inviteService := services.NewInviteService(dbAdapter, redisDB.Client, sender)

	metrics := middleware.NewMetrics()
	router := newRouter(routerDeps{
		health:    handlers.NewHealthHandler(db, redisDB),
		directory: handlers.NewDirectoryHandler(directoryService),
		friends:   handlers.NewFriendHandler(friendService),
		invites:   handlers.NewInviteHandler(inviteService),
		auth:      middleware.NewAuthMiddleware(authService),
		apiLimit: middleware.NewRateLimiter(redisDB.Client, cfg.RateLimit.APIRequests, cfg.RateLimit.Window,
			"ratelimit:api:", middleware.UserKey, cfg.RateLimit.FailClosed),
		matchLimit: middleware.NewRateLimiter(redisDB.Client, cfg.RateLimit.MatchRequests, cfg.RateLimit.Window,
			"ratelimit:match:", middleware.UserKey, cfg.RateLimit.FailClosed),
		metrics:  metrics,
		security: middleware.NewSecurityHeaders(cfg.Server.Secure),
		logger:   middleware.NewRequestLogger(logger),
	})

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	server := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("Server listening", map[string]interface{}{"addr": addr})
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
	case <-ctx.Done():
	}

	logger.Info("Server is shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	server.SetKeepAlivesEnabled(false)
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown: %w", err)
	}
	logger.Info("Server stopped")
	return nil
}

func newLogger(cfg config.LogConfig) *logging.Logger {
	level := logging.ParseLevel(cfg.Level)
	logging.SetDefaultLevel(level)

	return logging.NewWithFile(logging.FileConfig{
		Path:       cfg.FilePath,
		MaxSizeMB:  cfg.MaxSizeMB,
		MaxBackups: cfg.MaxBackups,
		MaxAgeDays: cfg.MaxAgeDays,
	}).SetLevel(level)
}

func migrate(dsn string, logger *logging.Logger) error {
	logger.Info("Running database migrations...")
	migrator, err := database.NewMigrator(dsn, migrations.FS)
	if err != nil {
		return fmt.Errorf("creating migrator: %w", err)
	}
	defer func() { _ = migrator.Close() }()

	if err := migrator.Up(); err != nil {
		return err
	}
	version, dirty, err := migrator.Version()
	if err != nil {
		return fmt.Errorf("reading migration version: %w", err)
	}
	logger.Info("Migrations completed", map[string]interface{}{"version": version, "dirty": dirty})
	return nil
}
