package main

import (
	"fmt"
	"os"
	_ "time/tzdata"

	"github.com/spf13/cobra"

	"github.com/dwsmith1983/oacload/internal/commands"
)

var version = "dev"

func main() {
	root := &cobra.Command{
		Use:   "oacload",
		Short: "Load operationally available capacity reports into Postgres",
		Long: `oacload fetches the OAC capacity report for every cycle of a trailing
window of gas days, rejects reports that do not match the expected layout,
and appends the rest to a Postgres table in a single transaction. Reports
already present in the table are skipped, so repeated runs are idempotent.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(
		commands.NewInitCmd(),
		commands.NewCheckCmd(),
		commands.NewMigrateCmd(),
		commands.NewRunCmd(),
		commands.NewStatusCmd(),
	)

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
