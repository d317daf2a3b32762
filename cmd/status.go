package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"rmasync/internal/reconciliation"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Synchronize invoice statuses",
}

var statusSyncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Copy the Run my Accounts invoice statuses onto the orders",
	Long: `Fetch the status of every invoice from Run my Accounts and store it on the
orders carrying the invoice number. Orders whose invoice became PAID are listed.

The worker runs this hourly.`,
	Args: cobra.NoArgs,
	RunE: runStatusSync,
}

func init() {
	rootCmd.AddCommand(statusCmd)
	statusCmd.AddCommand(statusSyncCmd)
}

func (a *app) statusSyncer() *reconciliation.StatusSyncer {
	return reconciliation.NewStatusSyncer(a.client, a.repo, a.activity, time.Now)
}

func runStatusSync(cmd *cobra.Command, args []string) error {
	a, err := newApp("status", true)
	if err != nil {
		return err
	}
	defer a.finish(cmd)

	ctx, cancel := commandContext(cmd, a.log)
	defer cancel()

	report, err := a.statusSyncer().Sync(ctx)
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "%d invoices, %d orders updated, %d paid, %d unmatched\n",
		report.Invoices, len(report.Updated), len(report.Paid), len(report.Unmatched))
	if report.Failed > 0 {
		return fmt.Errorf("%d orders could not be updated", report.Failed)
	}
	return nil
}
