// Package lambda provides initialization and the scheduled-run handler for
// the Lambda entrypoint.
package lambda

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/dwsmith1983/oacload/internal/config"
	"github.com/dwsmith1983/oacload/internal/loader"
	"github.com/dwsmith1983/oacload/internal/schedule"
	"github.com/dwsmith1983/oacload/pkg/types"
)

// Runner executes one load pass for the window ending at now.
type Runner interface {
	Run(ctx context.Context, now time.Time) (*types.RunSummary, error)
}

// Deps holds shared dependencies for the handler. They live for the
// lifetime of the execution environment.
type Deps struct {
	Runner   Runner
	Location *time.Location
	Logger   *slog.Logger
}

// Init creates shared dependencies from OACLOAD_* environment variables.
func Init(ctx context.Context, version string) (*Deps, error) {
	cfg, err := config.LoadFromEnv()
	if err != nil {
		return nil, fmt.Errorf("loading config from environment: %w", err)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: config.SlogLevel(cfg.LogLevel),
	}))

	loc, err := schedule.LoadLocation(cfg.Timezone)
	if err != nil {
		return nil, err
	}

	l, err := loader.Open(ctx, cfg, loader.Options{Logger: logger, Version: version})
	if err != nil {
		return nil, err
	}

	logger.Info("loader initialized", "asset", cfg.Asset, "table", l.Store.Table(), "windowDays", cfg.WindowDays)
	return &Deps{Runner: l, Location: loc, Logger: logger}, nil
}
