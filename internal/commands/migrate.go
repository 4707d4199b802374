package commands

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/dwsmith1983/oacload/internal/loader"
)

const migrateTimeout = time.Minute

// NewMigrateCmd creates the migrate command.
func NewMigrateCmd() *cobra.Command {
	var dir string

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Create the capacity table and its index if absent",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMigrate(cmd.Context(), cmd.OutOrStdout(), dir)
		},
	}
	cmd.Flags().StringVarP(&dir, "dir", "d", ".", "Directory containing oacload.yaml")
	return cmd
}

func runMigrate(ctx context.Context, out io.Writer, dir string) error {
	cfg, err := loadConfig(dir)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, migrateTimeout)
	defer cancel()

	store, err := loader.OpenStore(ctx, cfg, nil)
	if err != nil {
		return err
	}
	defer store.Close()

	if err := store.Migrate(ctx); err != nil {
		return fmt.Errorf("migrating %s: %w", store.Table(), err)
	}
	fmt.Fprintln(out, color.GreenString("  ✓ table %s ready", store.Table()))
	return nil
}
