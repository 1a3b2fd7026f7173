package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/zulandar/obras/internal/config"
	"github.com/zulandar/obras/internal/models"
)

// Version info set via ldflags at build time.
var (
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"
)

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "obras",
		Short: "Obras: public works contract records",
		Long:  "Obras keeps the contract records of a public works office in one JSON document and tracks the document lifecycle of each contract.",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := models.ValidateSchema(); err != nil {
				return err
			}
			return config.LoadEnv(".env")
		},
	}

	cmd.AddCommand(newVersionCmd())
	cmd.AddCommand(newInitCmd())
	cmd.AddCommand(newObraCmd())
	cmd.AddCommand(newFaseCmd())
	cmd.AddCommand(newFirmantesCmd())
	cmd.AddCommand(newBackupCmd())
	cmd.AddCommand(newDashboardCmd())
	return cmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "obras %s (commit: %s, built: %s)\n", Version, Commit, Date)
		},
	}
}

func execute(cmd *cobra.Command) int {
	if err := cmd.Execute(); err != nil {
		return 1
	}
	return 0
}

func main() {
	os.Exit(execute(newRootCmd()))
}
