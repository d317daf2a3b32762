package cmd

import (
	"context"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"rmasync/internal/booking"
	"rmasync/internal/sheets"
)

var bookingsCmd = &cobra.Command{
	Use:   "bookings",
	Short: "Report receivable and payable bookings per project",
	Long: `Collect all invoice lines and expense entries that carry a project number,
from BOOKINGS_START up to the start of last month. The report is cached for
three days.

With --sheet the report replaces the contents of the worksheet
GOOGLE_SHEET_WORKSHEET in the spreadsheet GOOGLE_SHEET_URL.

Required environment variables for --sheet:
  GOOGLE_APPLICATION_CREDENTIALS - Path to service account JSON file, OR
  GOOGLE_CREDENTIALS - Inline JSON credentials string
  GOOGLE_SHEET_URL - Google Sheets URL`,
	Example: `  # Print the cached report
  rmasync bookings

  # Rebuild the report and export it to Google Sheets
  rmasync bookings --refresh --sheet`,
	Args: cobra.NoArgs,
	RunE: runBookings,
}

func init() {
	rootCmd.AddCommand(bookingsCmd)

	bookingsCmd.Flags().Bool("refresh", false, "Rebuild the report instead of using the cache")
	bookingsCmd.Flags().Bool("sheet", false, "Export the report to Google Sheets")
}

func (a *app) bookingReporter() *booking.Reporter {
	return booking.NewReporter(a.cfg, a.client, a.cache, time.Now)
}

func (a *app) sheetsService(ctx context.Context) (*sheets.Service, error) {
	if a.cfg.GoogleSheetURL == "" {
		return nil, fmt.Errorf("GOOGLE_SHEET_URL environment variable is required")
	}
	return sheets.NewSheetsService(ctx, a.cfg.GoogleSheetURL)
}

func runBookings(cmd *cobra.Command, args []string) error {
	refresh, _ := cmd.Flags().GetBool("refresh")
	toSheet, _ := cmd.Flags().GetBool("sheet")

	a, err := newApp("bookings", false)
	if err != nil {
		return err
	}
	defer a.finish(cmd)

	ctx, cancel := commandContext(cmd, a.log)
	defer cancel()

	bookings, err := a.bookingReporter().ProjectBookings(ctx, refresh)
	if err != nil {
		return err
	}

	if toSheet {
		service, err := a.sheetsService(ctx)
		if err != nil {
			return err
		}
		if err := service.WriteBookings(ctx, bookings, a.cfg.GoogleSheetWorksheet); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%d bookings written to %s\n", len(bookings), a.cfg.GoogleSheetWorksheet)
		return nil
	}

	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(tw, "DATE\tTYPE\tPROJECT\tACCOUNT\tVALUE\t")
	for _, b := range bookings {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t\n",
			b.Date.Format(sheets.DateLayout), b.Type, b.ProjectNumber, b.AccountName, b.Value.StringFixed(2))
	}
	return tw.Flush()
}
