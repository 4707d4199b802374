// Package loader assembles a ready-to-run coordinator and its dependencies
// from a project configuration. The CLI and the Lambda entrypoint share it.
package loader

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/dwsmith1983/oacload/internal/alert"
	"github.com/dwsmith1983/oacload/internal/artifact"
	"github.com/dwsmith1983/oacload/internal/config"
	"github.com/dwsmith1983/oacload/internal/engine"
	"github.com/dwsmith1983/oacload/internal/fetcher"
	"github.com/dwsmith1983/oacload/internal/metrics"
	"github.com/dwsmith1983/oacload/internal/provider/postgres"
	"github.com/dwsmith1983/oacload/internal/schedule"
	"github.com/dwsmith1983/oacload/internal/telemetry"
	"github.com/dwsmith1983/oacload/pkg/types"
)

// Options tune Open.
type Options struct {
	Logger  *slog.Logger
	Version string
	// Secrets overrides the Secrets Manager client used when
	// database.passwordSecretArn is set.
	Secrets config.SecretsAPI
}

// Loader holds everything one run needs.
type Loader struct {
	Config      *types.ProjectConfig
	Store       *postgres.Store
	Artifacts   *artifact.Store
	Fetcher     *fetcher.HTTPFetcher
	Alerts      *alert.Dispatcher
	Telemetry   *telemetry.Providers
	Coordinator *engine.Coordinator
	Logger      *slog.Logger

	runTimeout time.Duration
}

// OpenStore resolves database credentials, connects, and creates the table
// when database.autoMigrate is set.
func OpenStore(ctx context.Context, cfg *types.ProjectConfig, secrets config.SecretsAPI) (*postgres.Store, error) {
	if cfg.Database.PasswordSecretARN != "" {
		if secrets == nil {
			client, err := config.NewSecretsClient(ctx)
			if err != nil {
				return nil, err
			}
			secrets = client
		}
		if err := config.ResolveDatabaseSecret(ctx, cfg, secrets); err != nil {
			return nil, err
		}
	}

	store, err := postgres.New(ctx, cfg.Database.DSN, cfg.Database.Table)
	if err != nil {
		return nil, fmt.Errorf("connecting to store: %w", err)
	}
	if cfg.Database.AutoMigrate {
		if err := store.Migrate(ctx); err != nil {
			store.Close()
			return nil, fmt.Errorf("migrating store: %w", err)
		}
	}
	return store, nil
}

// Open builds a Loader. Close must be called to release the pool and flush
// telemetry.
func Open(ctx context.Context, cfg *types.ProjectConfig, opts Options) (*Loader, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	requestTimeout, err := config.ParseDuration(cfg.RequestTimeout, config.DefaultRequestTimeout)
	if err != nil {
		return nil, fmt.Errorf("requestTimeout: %w", err)
	}
	runTimeout, err := config.ParseDuration(cfg.RunTimeout, config.DefaultRunTimeout)
	if err != nil {
		return nil, fmt.Errorf("runTimeout: %w", err)
	}
	cooldown, err := config.ParseDuration(cfg.Breaker.Cooldown, 0)
	if err != nil {
		return nil, fmt.Errorf("breaker.cooldown: %w", err)
	}
	loc, err := schedule.LoadLocation(cfg.Timezone)
	if err != nil {
		return nil, err
	}

	artifacts, err := artifact.New(cfg.ArtifactDir)
	if err != nil {
		return nil, err
	}
	f, err := fetcher.New(cfg.Endpoint, artifacts,
		fetcher.WithHTTPClient(&http.Client{Timeout: requestTimeout}),
		fetcher.WithLogger(logger),
		fetcher.WithArtifactReuse(cfg.ReuseArtifactsEnabled()),
		fetcher.WithBreaker(cfg.Breaker.FailThreshold, cooldown),
	)
	if err != nil {
		return nil, err
	}

	dispatcher, err := alert.NewDispatcher(cfg.Alerts, logger)
	if err != nil {
		return nil, fmt.Errorf("creating alert dispatcher: %w", err)
	}
	alertFn := dispatcher.AlertFunc()
	if dispatcher.Len() == 0 {
		alertFn = func(_ context.Context, a types.Alert) {
			logger.Info("alert", "level", a.Level, "asset", a.Asset, "message", a.Message)
		}
	}

	providers, err := telemetry.Setup(ctx, cfg.Telemetry, opts.Version)
	if err != nil {
		return nil, err
	}
	recorder, err := metrics.New(providers.MeterProvider)
	if err != nil {
		_ = providers.Shutdown(ctx)
		return nil, fmt.Errorf("creating metrics: %w", err)
	}

	store, err := OpenStore(ctx, cfg, opts.Secrets)
	if err != nil {
		_ = providers.Shutdown(ctx)
		return nil, err
	}

	coord := engine.New(store, f, artifacts, engine.Config{
		Asset:      cfg.Asset,
		WindowDays: cfg.WindowDays,
		Location:   loc,
		Workers:    cfg.Workers,
		Retry:      cfg.Retry,
	},
		engine.WithLogger(logger),
		engine.WithTracer(providers.TracerProvider.Tracer(metrics.MeterName)),
		engine.WithMetrics(recorder),
		engine.WithAlertFunc(alertFn),
	)

	return &Loader{
		Config:      cfg,
		Store:       store,
		Artifacts:   artifacts,
		Fetcher:     f,
		Alerts:      dispatcher,
		Telemetry:   providers,
		Coordinator: coord,
		Logger:      logger,
		runTimeout:  runTimeout,
	}, nil
}

// Run performs one coordinator pass for the window ending at now, bounded by
// the configured run timeout.
func (l *Loader) Run(ctx context.Context, now time.Time) (*types.RunSummary, error) {
	ctx, cancel := context.WithTimeout(ctx, l.runTimeout)
	defer cancel()
	return l.Coordinator.Run(ctx, now)
}

// Close releases the connection pool and flushes telemetry.
func (l *Loader) Close(ctx context.Context) error {
	l.Store.Close()
	if err := l.Telemetry.Shutdown(ctx); err != nil {
		return fmt.Errorf("telemetry shutdown: %w", err)
	}
	return nil
}
