package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"rmasync/internal/logger"
)

var version = "1.0.0"

var rootCmd = &cobra.Command{
	Use:   "rmasync",
	Short: "Synchronize shop orders with Run my Accounts",
	Long: `rmasync submits shop orders and customers to the Run my Accounts
accounting service, plans and confirms collective invoices, and keeps
invoice payment statuses in sync.

Every command prints the activity log of its run when it finishes.

Required environment variables:
  RMA_MODE            - test or live (default: test)
  RMA_TEST_MANDANT    - mandant of the test environment
  RMA_TEST_API_KEY    - API key of the test environment
  RMA_LIVE_MANDANT    - mandant of the live environment
  RMA_LIVE_API_KEY    - API key of the live environment
  DATABASE_URL        - PostgreSQL DSN of the order store`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func Execute() {
	log := logger.WithComponent("cmd")

	if err := rootCmd.Execute(); err != nil {
		log.Error().
			Err(err).
			Msg("Command execution failed")
		fmt.Fprintf(os.Stderr, "Error executing command: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().Int("timeout", 300, "Timeout in seconds")
	rootCmd.PersistentFlags().Bool("no-color", false, "Print the activity log without colors")
}
