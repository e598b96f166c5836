package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/skycast-dev/skycast/internal/api"
	"github.com/skycast-dev/skycast/internal/config"
	"github.com/skycast-dev/skycast/internal/dashboard"
	"github.com/skycast-dev/skycast/internal/storage"
	"github.com/skycast-dev/skycast/internal/store"
	"github.com/skycast-dev/skycast/internal/weather"
	"github.com/skycast-dev/skycast/migrations"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("loading config failed", "err", err)
		os.Exit(1)
	}

	log := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: parseLevel(cfg.LogLevel),
	})).With("service", cfg.ServiceName)

	if err := run(cfg, log); err != nil {
		log.Error("server exited with error", "err", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, log *slog.Logger) error {
	ctx := context.Background()

	// Connect to Redis — the recent/favorite lists live there.
	visitorStore, err := store.Connect(ctx, cfg.RedisURL, log)
	if err != nil {
		return fmt.Errorf("connecting to redis: %w", err)
	}
	defer func() { _ = visitorStore.Close() }()

	// Postgres is optional: without it the search-history audit trail is
	// simply disabled and the dashboard still comes up.
	var history api.SearchHistory
	var dbPing api.Pinger
	if cfg.DatabaseURL != "" {
		pool, err := storage.Connect(ctx, cfg.DatabaseURL)
		if err != nil {
			return fmt.Errorf("connecting to database: %w", err)
		}
		defer pool.Close()

		if err := storage.RunMigrations(ctx, pool, migrations.Files); err != nil {
			return fmt.Errorf("running migrations: %w", err)
		}
		log.Info("migrations applied")

		history = storage.NewRepository(pool)
		dbPing = &pgxPoolPinger{pool: pool}
	} else {
		log.Info("DATABASE_URL not set, search history disabled")
	}

	// Wire dependencies.
	client := weather.NewClient(
		cfg.OpenWeatherAPIKey,
		cfg.GeoURL,
		cfg.OneCallURL,
		cfg.AirURL,
		cfg.UpstreamTimeout,
		cfg.UpstreamRPS,
		cfg.UpstreamBurst,
		log,
	)
	sessions := dashboard.NewSessions(client)
	handlers := api.NewHandlers(client, sessions, visitorStore, history, cfg.TileAPIKey, log)
	shell := api.NewShell(cfg.WebRoot, log)

	router := api.NewRouter(handlers, shell, visitorStore, dbPing, log)

	srv := &http.Server{
		Addr:         cfg.ServerAddress,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown on SIGINT / SIGTERM.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	errCh := make(chan error, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				log.Error("server goroutine panicked", "recover", r)
				errCh <- fmt.Errorf("server panicked: %v", r)
			}
		}()
		log.Info("server starting", "addr", cfg.ServerAddress)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- fmt.Errorf("listening: %w", err)
		}
	}()

	select {
	case sig := <-quit:
		log.Info("shutdown signal received", "signal", sig)
	case err := <-errCh:
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown: %w", err)
	}

	log.Info("server shut down cleanly")
	return nil
}

func parseLevel(level string) slog.Leveler {
	switch strings.ToLower(level) {
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

// pgxPoolPinger adapts pgxpool.Pool to the api.Pinger interface.
type pgxPoolPinger struct {
	pool interface {
		Ping(ctx context.Context) error
	}
}

func (p *pgxPoolPinger) Ping(ctx context.Context) error {
	return p.pool.Ping(ctx)
}
