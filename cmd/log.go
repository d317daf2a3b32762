package cmd

import (
	"github.com/spf13/cobra"
	"rmasync/internal/activitylog"
)

var logCmd = &cobra.Command{
	Use:   "log",
	Short: "Show the persisted activity log",
	Example: `  # The last 50 entries
  rmasync log

  # Only errors
  rmasync log --status error --limit 200`,
	Args: cobra.NoArgs,
	RunE: runLog,
}

func init() {
	rootCmd.AddCommand(logCmd)

	logCmd.Flags().String("status", "", "Only show entries with this status")
	logCmd.Flags().Int("limit", 50, "Maximum number of entries, 0 for all")
}

func runLog(cmd *cobra.Command, args []string) error {
	status, _ := cmd.Flags().GetString("status")
	limit, _ := cmd.Flags().GetInt("limit")
	noColor, _ := cmd.Flags().GetBool("no-color")

	a, err := newApp("log", true)
	if err != nil {
		return err
	}

	ctx, cancel := commandContext(cmd, a.log)
	defer cancel()

	entries, err := a.repo.RecentActivity(ctx, activitylog.Status(status), limit)
	if err != nil {
		return err
	}
	return activitylog.RenderTable(cmd.OutOrStdout(), entries, !noColor)
}
