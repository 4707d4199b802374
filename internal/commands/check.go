package commands

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/dwsmith1983/oacload/internal/artifact"
	"github.com/dwsmith1983/oacload/internal/loader"
)

const checkTimeout = 30 * time.Second

// NewCheckCmd creates the check command.
func NewCheckCmd() *cobra.Command {
	var dir string

	cmd := &cobra.Command{
		Use:   "check",
		Short: "Verify the database table and artifact directory are usable",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCheck(cmd.Context(), cmd.OutOrStdout(), dir)
		},
	}
	cmd.Flags().StringVarP(&dir, "dir", "d", ".", "Directory containing oacload.yaml")
	return cmd
}

func runCheck(ctx context.Context, out io.Writer, dir string) error {
	cfg, err := loadConfig(dir)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, checkTimeout)
	defer cancel()

	store, err := loader.OpenStore(ctx, cfg, nil)
	if err != nil {
		fmt.Fprintln(out, color.RedString("  ✗ database: %v", err))
		return err
	}
	defer store.Close()

	if err := store.HealthCheck(ctx); err != nil {
		fmt.Fprintln(out, color.RedString("  ✗ table %s: %v", store.Table(), err))
		return err
	}
	fmt.Fprintln(out, color.GreenString("  ✓ table %s reachable", store.Table()))

	artifacts, err := artifact.New(cfg.ArtifactDir)
	if err != nil {
		fmt.Fprintln(out, color.RedString("  ✗ artifacts: %v", err))
		return err
	}
	fmt.Fprintln(out, color.GreenString("  ✓ artifact directory %s", artifacts.Dir()))
	return nil
}
