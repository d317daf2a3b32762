package cmd

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"rmasync/internal/collective"
	"rmasync/internal/export"
)

var collectiveCmd = &cobra.Command{
	Use:   "collective",
	Short: "Plan and confirm collective invoices",
	Long: `Collective invoicing merges all not yet invoiced orders of a customer into one
invoice. "plan" shows the grouping without changing anything; "confirm" submits
the selected groups.`,
}

var collectivePlanCmd = &cobra.Command{
	Use:   "plan",
	Short: "Show the collective invoices that would be created",
	Example: `  # All open bank transfer orders of March
  rmasync collective plan --payment-method bacs --from 2024-03-01 --to 2024-03-31

  # Export the plan to a spreadsheet
  rmasync collective plan --xlsx plan.xlsx`,
	Args: cobra.NoArgs,
	RunE: runCollectivePlan,
}

var collectiveConfirmCmd = &cobra.Command{
	Use:   "confirm",
	Short: "Submit selected collective invoices",
	Long: `Submit the selected groups of the plan built from the same filters.

Each --select names a planned invoice number, optionally followed by the order ids
to include. Lines of orders left out stay open for a later run.`,
	Example: `  # Submit two planned invoices completely
  rmasync collective confirm --select INV000001 --select INV000003

  # Submit only orders 1 and 2 of INV000001
  rmasync collective confirm --select INV000001=1,2`,
	Args: cobra.NoArgs,
	RunE: runCollectiveConfirm,
}

func init() {
	rootCmd.AddCommand(collectiveCmd)
	collectiveCmd.AddCommand(collectivePlanCmd, collectiveConfirmCmd)

	for _, c := range []*cobra.Command{collectivePlanCmd, collectiveConfirmCmd} {
		c.Flags().StringSlice("payment-method", nil, "Payment methods to include (default: all)")
		c.Flags().String("from", "", "First order date (format: YYYY-MM-DD)")
		c.Flags().String("to", "", "Last order date (format: YYYY-MM-DD)")
		c.Flags().StringSlice("customer", nil, "Customer numbers to include (default: all)")
		c.Flags().String("title", "", "Invoice description (default: RMA_INVOICE_DESCRIPTION)")
	}

	collectivePlanCmd.Flags().Bool("refresh", false, "Ignore a cached plan")
	collectivePlanCmd.Flags().String("search", "", "Only show groups matching the customer, name or email")
	collectivePlanCmd.Flags().String("xlsx", "", "Write the plan to an XLSX file")

	collectiveConfirmCmd.Flags().StringArray("select", nil, "Invoice to submit, as INVOICE or INVOICE=order,order")
	_ = collectiveConfirmCmd.MarkFlagRequired("select")
}

func criteriaFromFlags(cmd *cobra.Command) (collective.Criteria, error) {
	methods, _ := cmd.Flags().GetStringSlice("payment-method")
	customers, _ := cmd.Flags().GetStringSlice("customer")
	title, _ := cmd.Flags().GetString("title")
	fromStr, _ := cmd.Flags().GetString("from")
	toStr, _ := cmd.Flags().GetString("to")

	from, err := parseDate(fromStr)
	if err != nil {
		return collective.Criteria{}, err
	}
	to, err := parseDate(toStr)
	if err != nil {
		return collective.Criteria{}, err
	}
	if to != nil {
		// inclusive end of day
		end := to.Add(24*time.Hour - time.Nanosecond)
		to = &end
	}

	return collective.Criteria{
		PaymentMethods: methods,
		From:           from,
		To:             to,
		Customers:      customers,
		Title:          title,
	}, nil
}

// parseSelection parses "INV000001" or "INV000001=1,2,3".
func parseSelection(value string) (collective.Selection, error) {
	number, ids, found := strings.Cut(value, "=")
	sel := collective.Selection{InvoiceNumber: strings.TrimSpace(number)}
	if sel.InvoiceNumber == "" {
		return sel, fmt.Errorf("invalid selection %q: missing invoice number", value)
	}
	if !found {
		return sel, nil
	}
	for _, part := range strings.Split(ids, ",") {
		id, err := strconv.ParseInt(strings.TrimSpace(part), 10, 64)
		if err != nil {
			return sel, fmt.Errorf("invalid selection %q: %w", value, err)
		}
		sel.OrderIDs = append(sel.OrderIDs, id)
	}
	return sel, nil
}

func (a *app) aggregator() *collective.Aggregator {
	engine := a.engine()
	return collective.NewAggregator(a.cfg, collective.Deps{
		Orders:    a.repo,
		Profiles:  a.repo,
		Builder:   a.invoiceBuilder(nil),
		Submitter: engine,
		Cache:     a.cache,
		Activity:  a.activity,
	})
}

func runCollectivePlan(cmd *cobra.Command, args []string) error {
	criteria, err := criteriaFromFlags(cmd)
	if err != nil {
		return err
	}
	refresh, _ := cmd.Flags().GetBool("refresh")
	search, _ := cmd.Flags().GetString("search")
	xlsxPath, _ := cmd.Flags().GetString("xlsx")

	a, err := newApp("collective", true)
	if err != nil {
		return err
	}
	defer a.finish(cmd)

	ctx, cancel := commandContext(cmd, a.log)
	defer cancel()

	plan, err := a.aggregator().Plan(ctx, criteria, collective.PlanOptions{Refresh: refresh})
	if err != nil {
		return err
	}

	groups := plan.Groups
	if search != "" {
		groups = plan.Search(search)
	}

	out := cmd.OutOrStdout()
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "INVOICE\tCUSTOMER\tEMAIL\tORDERS\tTOTAL")
	for _, g := range groups {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
			g.InvoiceNumber, g.Label(), g.UserEmail, joinOrderIDs(g.OrderIDs), g.Total().StringFixed(2))
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	fmt.Fprintf(out, "\n%d invoices, total %s", len(plan.Groups), plan.Total().StringFixed(2))
	if plan.Cached {
		fmt.Fprint(out, " (cached, use --refresh to rebuild)")
	}
	fmt.Fprintln(out)

	for _, g := range plan.Errors {
		fmt.Fprintf(out, "No customer number for %s (orders %s)\n", g.Label(), joinOrderIDs(g.OrderIDs))
	}
	for _, d := range plan.Defects {
		fmt.Fprintf(out, "Order %d: %s\n", d.OrderID, d.Entry.Message)
	}

	if xlsxPath != "" {
		f, err := os.Create(xlsxPath)
		if err != nil {
			return fmt.Errorf("failed to create %s: %w", xlsxPath, err)
		}
		defer f.Close()
		if err := export.WritePlan(f, plan); err != nil {
			return err
		}
		a.log.Info().Str("output", xlsxPath).Msg("Plan exported")
	}
	return nil
}

func runCollectiveConfirm(cmd *cobra.Command, args []string) error {
	criteria, err := criteriaFromFlags(cmd)
	if err != nil {
		return err
	}
	values, _ := cmd.Flags().GetStringArray("select")
	selections := make([]collective.Selection, 0, len(values))
	for _, v := range values {
		sel, err := parseSelection(v)
		if err != nil {
			return err
		}
		selections = append(selections, sel)
	}

	a, err := newApp("collective", true)
	if err != nil {
		return err
	}
	defer a.finish(cmd)

	ctx, cancel := commandContext(cmd, a.log)
	defer cancel()

	report, err := a.aggregator().Confirm(ctx, criteria, selections)
	if err != nil {
		return err
	}

	for _, number := range report.Invoiced() {
		fmt.Fprintf(cmd.OutOrStdout(), "%s submitted (%s)\n", number, report.Totals[number].StringFixed(2))
	}
	if failed := report.Failed(); len(failed) > 0 {
		return fmt.Errorf("%d collective invoices failed: %s", len(failed), strings.Join(failed, ", "))
	}
	return nil
}

func joinOrderIDs(ids []int64) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = strconv.FormatInt(id, 10)
	}
	return strings.Join(parts, ",")
}
