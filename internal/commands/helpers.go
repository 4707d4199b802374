package commands

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"sort"
	"time"

	"github.com/fatih/color"

	"github.com/dwsmith1983/oacload/internal/config"
	"github.com/dwsmith1983/oacload/pkg/types"
)

// loadConfig reads oacload.yaml from dir.
func loadConfig(dir string) (*types.ProjectConfig, error) {
	cfg, err := config.Load(dir)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	return cfg, nil
}

func newLogger(level string) *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: config.SlogLevel(level),
	}))
}

// parseAsOf interprets an MM/DD/YYYY date as noon in loc so the window ends
// on that calendar day.
func parseAsOf(value string, loc *time.Location) (time.Time, error) {
	d, err := time.ParseInLocation(types.GasDayLayout, value, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("--as-of must be MM/DD/YYYY: %w", err)
	}
	return d.Add(12 * time.Hour), nil
}

func stateColor(state types.WorkState) func(format string, a ...interface{}) string {
	switch state {
	case types.WorkLoaded:
		return color.GreenString
	case types.WorkSkipped:
		return color.CyanString
	case types.WorkFailed, types.WorkRejected:
		return color.RedString
	default:
		return color.YellowString
	}
}

// printSummary renders a run summary as a per-item table plus totals.
func printSummary(w io.Writer, s *types.RunSummary) {
	bold := color.New(color.Bold)
	_, _ = bold.Fprintf(w, "Run %s (%s, today %s)\n", s.RunID, s.Asset, s.Today)
	fmt.Fprintln(w)

	for _, item := range s.Items {
		line := fmt.Sprintf("  %-10s %-11s %s", item.GasDay, item.Cycle, stateColor(item.State)("%-10s", item.State))
		if item.Rows > 0 {
			line += fmt.Sprintf(" rows=%d", item.Rows)
		}
		if item.Reused {
			line += " (reused)"
		}
		if item.Reason != "" {
			line += " " + item.Reason
		}
		fmt.Fprintln(w, line)
	}

	fmt.Fprintln(w)
	states := make([]string, 0, len(s.Counts))
	for state := range s.Counts {
		states = append(states, string(state))
	}
	sort.Strings(states)
	for _, state := range states {
		fmt.Fprintf(w, "  %s: %d\n", state, s.Counts[types.WorkState(state)])
	}
	fmt.Fprintf(w, "  rows loaded: %d\n", s.RowsLoaded)
	fmt.Fprintf(w, "  duration: %s\n", s.FinishedAt.Sub(s.StartedAt).Round(time.Millisecond))

	if s.Error != "" {
		fmt.Fprintln(w, color.RedString("  ✗ %s", s.Error))
	}
}
