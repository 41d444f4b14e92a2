package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/jengzang/sites-backend-go/internal/api"
	"github.com/jengzang/sites-backend-go/internal/config"
	"github.com/jengzang/sites-backend-go/internal/database"
	"github.com/jengzang/sites-backend-go/internal/loader"
	"github.com/jengzang/sites-backend-go/internal/metrics"
	"github.com/jengzang/sites-backend-go/internal/middleware"
	"github.com/jengzang/sites-backend-go/internal/prefetch"
	"github.com/jengzang/sites-backend-go/internal/repository"
	"github.com/jengzang/sites-backend-go/internal/service"
)

const shutdownTimeout = 10 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API and the map loader",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe(cmd.Context())
	},
}

// openDatabase opens SQLite and applies pending migrations
func openDatabase(ctx context.Context, cfg *config.Config) (*sql.DB, error) {
	db, err := database.Open(database.Config{Path: cfg.DBPath}, slog.Default())
	if err != nil {
		return nil, err
	}
	if err := database.NewMigrationManager(db, slog.Default()).RunMigrations(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

func runServe(parent context.Context) error {
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	log := slog.Default()

	// 初始化数据库
	db, err := openDatabase(ctx, cfg)
	if err != nil {
		return err
	}
	defer db.Close()
	repo := repository.NewSiteRepository(db)

	rec := metrics.New()
	opts := []loader.Option{loader.WithLogger(log), loader.WithObserver(rec)}

	if cfg.Prefetch.Enabled {
		popts := prefetch.Options{
			Concurrency: cfg.Prefetch.Concurrency,
			Timeout:     cfg.Prefetch.Timeout,
			DedupTTL:    cfg.Prefetch.DedupTTL,
		}
		if cfg.Prefetch.RedisAddr != "" {
			rdb := redis.NewClient(&redis.Options{Addr: cfg.Prefetch.RedisAddr})
			defer rdb.Close()
			if err := rdb.Ping(ctx).Err(); err != nil {
				log.Warn("redis unavailable, prefetch dedup disabled until it recovers", "addr", cfg.Prefetch.RedisAddr, "error", err)
			}
			popts.Redis = rdb
		}
		opts = append(opts, loader.WithPrefetcher(prefetch.NewHTTPPrefetcher(popts, log)))
	}

	controller, err := loader.NewController(repo, cfg.Loader, cfg.SafeMode, opts...)
	if err != nil {
		return fmt.Errorf("failed to create loader: %w", err)
	}
	defer controller.Close()

	modes := service.NewModeService(cfg.SafeMode, log)
	modes.Register(controller)
	escalations, unsubscribe := controller.SubscribeEscalations()
	defer unsubscribe()
	go modes.Run(ctx, escalations)

	// A failed cold start is not fatal; POST /api/v1/map/bootstrap retries it
	if _, err := controller.Bootstrap(ctx); err != nil {
		log.Error("initial bootstrap failed", "error", err)
	}

	limiter := middleware.NewRateLimiter(cfg.RateLimit.Requests, cfg.RateLimit.Window)
	go limiter.Run(ctx)

	if cfg.LogLevel != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := api.SetupRouter(api.Deps{
		Config:     cfg,
		Controller: controller,
		Modes:      modes,
		Metrics:    rec,
		Logger:     log,
		Stats:      service.NewStatsService(repo),
		Limiter:    limiter,
	})

	srv := &http.Server{
		Addr:              cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("server starting", "addr", cfg.Port, "safeMode", cfg.SafeMode)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
