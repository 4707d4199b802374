package commands

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/dwsmith1983/oacload/internal/config"
)

const starterConfig = `asset: TW
endpoint: https://twtransfer.energytransfer.com/ipost/capacity/operationally-available
windowDays: 3
timezone: EST
artifactDir: ./data
workers: 1
requestTimeout: 60s
runTimeout: 15m
logLevel: info
retry:
  maxAttempts: 3
  backoffSeconds: 2
  backoffMultiplier: 2
  maxBackoffSeconds: 60
breaker:
  failThreshold: 5
  cooldown: 1m
database:
  dsn: postgres://oacload@localhost:5432/oacload?sslmode=disable
  table: tw_data
  autoMigrate: true
alerts:
  - type: console
`

// NewInitCmd creates the init command.
func NewInitCmd() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "init [directory]",
		Short: "Scaffold an oacload.yaml and artifact directory",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := "."
			if len(args) > 0 {
				dir = args[0]
			}
			return runInit(cmd.OutOrStdout(), dir, force)
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "Overwrite an existing oacload.yaml")
	return cmd
}

func runInit(out io.Writer, dir string, force bool) error {
	bold := color.New(color.Bold)
	_, _ = bold.Fprintf(out, "Initializing oacload project in %s\n", dir)

	if err := os.MkdirAll(filepath.Join(dir, "data"), 0o755); err != nil {
		return fmt.Errorf("creating artifact directory: %w", err)
	}

	path := filepath.Join(dir, config.FileName)
	if !force {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("%s already exists (use --force to overwrite)", path)
		} else if !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("checking %s: %w", path, err)
		}
	}
	if err := os.WriteFile(path, []byte(starterConfig), 0o644); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}
	fmt.Fprintln(out, color.GreenString("  ✓ %s written", config.FileName))

	fmt.Fprintln(out)
	_, _ = bold.Fprintln(out, "Next steps:")
	fmt.Fprintf(out, "  edit %s and set database.dsn\n", path)
	fmt.Fprintln(out, "  oacload check")
	fmt.Fprintln(out, "  oacload run")
	return nil
}
