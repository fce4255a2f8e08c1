package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"github.com/maltedev/listing-report/internal/browser"
	"github.com/maltedev/listing-report/internal/config"
	"github.com/maltedev/listing-report/internal/database"
	"github.com/maltedev/listing-report/internal/events"
	"github.com/maltedev/listing-report/internal/logger"
	"github.com/maltedev/listing-report/internal/metrics"
	"github.com/maltedev/listing-report/internal/runs"
	"github.com/maltedev/listing-report/internal/scrape"
	"github.com/maltedev/listing-report/internal/sites"
)

// app holds the wired services shared by serve and run.
type app struct {
	cfg      *config.Config
	logger   *slog.Logger
	registry *sites.Registry
	metrics  *metrics.Metrics
	store    runs.Store
	runner   *runs.Runner

	closers []func()
}

func loadConfig() (*config.Config, *slog.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, nil, fmt.Errorf("invalid config: %w", err)
	}

	log := logger.New(cfg.Logging.Level, cfg.Logging.Format)
	slog.SetDefault(log)
	return cfg, log, nil
}

func newApp(ctx context.Context) (*app, error) {
	cfg, log, err := loadConfig()
	if err != nil {
		return nil, err
	}

	a := &app{
		cfg:     cfg,
		logger:  log,
		metrics: metrics.New(),
		store:   runs.NopStore{},
	}

	a.registry, err = sites.Load(cfg.Scrape.SitesFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load sites: %w", err)
	}

	driver, err := browser.Open(cfg.Browser.Engine, cfg.BrowserOptions())
	if err != nil {
		return nil, fmt.Errorf("failed to initialize browser: %w", err)
	}
	a.onClose(func() {
		if err := driver.Close(); err != nil {
			log.Error("failed to close browser", "error", err)
		}
	})

	if cfg.Database.Enabled {
		db, err := database.New(ctx, database.Config{
			Host:     cfg.Database.Host,
			Port:     cfg.Database.Port,
			User:     cfg.Database.User,
			Password: cfg.Database.Password,
			Database: cfg.Database.DBName,
			SSLMode:  cfg.Database.SSLMode,
			MaxConns: cfg.Database.MaxConns,
		})
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("failed to connect to database: %w", err)
		}
		a.onClose(db.Close)

		store := runs.NewPostgresStore(db)
		if err := store.Migrate(ctx); err != nil {
			a.Close()
			return nil, err
		}
		a.store = store
	}

	var notifier runs.Notifier
	if cfg.Redis.Addr != "" {
		redisClient := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := redisClient.Ping(ctx).Err(); err != nil {
			redisClient.Close()
			a.Close()
			return nil, fmt.Errorf("failed to connect to Redis: %w", err)
		}
		publisher := events.NewPublisher(redisClient, cfg.Redis.Stream, log)
		a.onClose(func() { publisher.Close() })
		notifier = publisher
	}

	svc := scrape.NewService(driver, log, a.metrics, scrape.Options{
		NavigationTimeout: cfg.Browser.Timeout,
		Concurrency:       cfg.Scrape.Concurrency,
	})
	a.runner = runs.NewRunner(svc, a.store, notifier, a.metrics, log, cfg.Scrape.RunTimeout)

	return a, nil
}

func (a *app) onClose(fn func()) {
	a.closers = append(a.closers, fn)
}

// Close releases resources in reverse order of acquisition.
func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}
