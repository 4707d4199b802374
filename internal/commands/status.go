package commands

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/dwsmith1983/oacload/internal/artifact"
	"github.com/dwsmith1983/oacload/internal/loader"
)

const statusTimeout = 10 * time.Second

// NewStatusCmd creates the status command.
func NewStatusCmd() *cobra.Command {
	var (
		dir   string
		limit int
	)

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show loaded reports and artifacts waiting on disk",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStatus(cmd.Context(), cmd.OutOrStdout(), dir, limit)
		},
	}
	cmd.Flags().StringVarP(&dir, "dir", "d", ".", "Directory containing oacload.yaml")
	cmd.Flags().IntVarP(&limit, "limit", "n", 18, "Number of recent loads to show")
	return cmd
}

func runStatus(ctx context.Context, out io.Writer, dir string, limit int) error {
	cfg, err := loadConfig(dir)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, statusTimeout)
	defer cancel()

	store, err := loader.OpenStore(ctx, cfg, nil)
	if err != nil {
		return err
	}
	defer store.Close()

	total, err := store.CountRows(ctx)
	if err != nil {
		return fmt.Errorf("counting rows: %w", err)
	}
	loads, err := store.RecentLoads(ctx, limit)
	if err != nil {
		return fmt.Errorf("listing loads: %w", err)
	}

	bold := color.New(color.Bold)
	_, _ = bold.Fprintf(out, "Table %s: %d rows\n", store.Table(), total)
	fmt.Fprintln(out)
	if len(loads) == 0 {
		fmt.Fprintln(out, "  No reports loaded.")
	}
	for _, l := range loads {
		fmt.Fprintf(out, "  %-10s %-11s rows=%d\n", l.Date, l.Cycle, l.Rows)
	}

	artifacts, err := artifact.New(cfg.ArtifactDir)
	if err != nil {
		return err
	}
	return printArtifacts(out, artifacts)
}

func printArtifacts(out io.Writer, artifacts *artifact.Store) error {
	pending, err := artifacts.List()
	if err != nil {
		return fmt.Errorf("listing artifacts: %w", err)
	}
	rejected, err := artifacts.ListQuarantined()
	if err != nil {
		return fmt.Errorf("listing rejected artifacts: %w", err)
	}

	fmt.Fprintln(out)
	if len(pending) == 0 && len(rejected) == 0 {
		fmt.Fprintln(out, color.GreenString("  ✓ no artifacts waiting in %s", artifacts.Dir()))
		return nil
	}
	for _, p := range pending {
		fmt.Fprintln(out, color.YellowString("  ○ pending  %s", filepath.Base(p)))
	}
	for _, p := range rejected {
		fmt.Fprintln(out, color.RedString("  ✗ rejected %s", filepath.Base(p)))
	}
	return nil
}
