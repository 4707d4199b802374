package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/dwsmith1983/oacload/internal/loader"
	"github.com/dwsmith1983/oacload/internal/schedule"
)

type runOptions struct {
	dir        string
	asOf       string
	windowDays int
	workers    int
	jsonOut    bool
}

// NewRunCmd creates the run command.
func NewRunCmd() *cobra.Command {
	var opts runOptions

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Load the trailing window of capacity reports",
		Long: `Fetches every (gas day, cycle) report in the trailing window that is not
yet in the table, validates it, and appends all accepted rows in one transaction.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLoad(cmd.Context(), cmd.OutOrStdout(), cmd.Root().Version, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.dir, "dir", "d", ".", "Directory containing oacload.yaml")
	cmd.Flags().StringVar(&opts.asOf, "as-of", "", "Treat this MM/DD/YYYY date as today")
	cmd.Flags().IntVar(&opts.windowDays, "window-days", 0, "Override the number of gas days loaded")
	cmd.Flags().IntVar(&opts.workers, "workers", 0, "Override the number of parallel fetch workers")
	cmd.Flags().BoolVar(&opts.jsonOut, "json", false, "Print the run summary as JSON")
	return cmd
}

func runLoad(ctx context.Context, out io.Writer, version string, opts runOptions) error {
	cfg, err := loadConfig(opts.dir)
	if err != nil {
		return err
	}
	if opts.windowDays > 0 {
		cfg.WindowDays = opts.windowDays
	}
	if opts.workers > 0 {
		cfg.Workers = opts.workers
	}

	now := time.Now()
	if opts.asOf != "" {
		loc, err := schedule.LoadLocation(cfg.Timezone)
		if err != nil {
			return err
		}
		if now, err = parseAsOf(opts.asOf, loc); err != nil {
			return err
		}
	}

	logger := newLogger(cfg.LogLevel)
	l, err := loader.Open(ctx, cfg, loader.Options{Logger: logger, Version: version})
	if err != nil {
		return err
	}
	defer func() {
		if err := l.Close(context.Background()); err != nil {
			logger.Warn("closing loader", "error", err)
		}
	}()

	summary, runErr := l.Run(ctx, now)
	if summary != nil {
		if opts.jsonOut {
			enc := json.NewEncoder(out)
			enc.SetIndent("", "  ")
			if err := enc.Encode(summary); err != nil {
				return fmt.Errorf("encoding summary: %w", err)
			}
		} else {
			printSummary(out, summary)
		}
	}
	return runErr
}
