package cmd

import (
	"errors"
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"
	"rmasync/internal/rma"
	"rmasync/internal/submission"
)

var invoiceCmd = &cobra.Command{
	Use:   "invoice",
	Short: "Create invoices and download invoice PDFs",
}

var invoiceCreateCmd = &cobra.Command{
	Use:   "create [order-id...]",
	Short: "Build and submit the invoice of one or more orders",
	Long: `Build the invoice document of each order from the order store and submit it
to Run my Accounts. Orders that already carry an invoice are rejected.

On success the order is marked with the invoice number and the status NEW.
Guest customers are created in Run my Accounts first when
RMA_CREATE_GUEST_CUSTOMER is enabled.`,
	Example: `  # Invoice order 42
  rmasync invoice create 42

  # Invoice several orders, one invoice each
  rmasync invoice create 42 43 44`,
	Args: cobra.MinimumNArgs(1),
	RunE: runInvoiceCreate,
}

var invoicePDFCmd = &cobra.Command{
	Use:   "pdf [invoice-number]",
	Short: "Download the PDF of an invoice",
	Long: `Download the PDF of an invoice after checking that it belongs to the given
customer number. Nothing is written when the ownership check fails.`,
	Example: `  rmasync invoice pdf INV000042 --customer C17 -o INV000042.pdf`,
	Args:    cobra.ExactArgs(1),
	RunE:    runInvoicePDF,
}

func init() {
	rootCmd.AddCommand(invoiceCmd)
	invoiceCmd.AddCommand(invoiceCreateCmd, invoicePDFCmd)

	invoicePDFCmd.Flags().String("customer", "", "Customer number the invoice must belong to")
	invoicePDFCmd.Flags().StringP("output", "o", "", "Output file path (default: <invoice-number>.pdf)")
	_ = invoicePDFCmd.MarkFlagRequired("customer")
}

func runInvoiceCreate(cmd *cobra.Command, args []string) error {
	ids := make([]int64, 0, len(args))
	for _, arg := range args {
		id, err := strconv.ParseInt(arg, 10, 64)
		if err != nil {
			return fmt.Errorf("invalid order id %q: %w", arg, err)
		}
		ids = append(ids, id)
	}

	a, err := newApp("invoice", true)
	if err != nil {
		return err
	}
	defer a.finish(cmd)

	ctx, cancel := commandContext(cmd, a.log)
	defer cancel()

	engine := a.engine()
	builder := a.invoiceBuilder(engine)

	var failed int
	for _, id := range ids {
		order, err := a.repo.Order(ctx, id)
		if err != nil {
			return err
		}

		doc, err := builder.Build(ctx, order)
		if err != nil {
			a.log.Error().Err(err).Int64("order_id", id).Msg("Invoice could not be built")
			failed++
			continue
		}

		res, err := engine.SubmitInvoice(ctx, doc, []int64{id}, submission.KindSingle)
		if err != nil {
			a.log.Error().Err(err).Int64("order_id", id).Msg("Invoice was not submitted")
			failed++
			continue
		}
		if !res.Acked() {
			failed++
			continue
		}

		fmt.Fprintf(cmd.OutOrStdout(), "Order %d invoiced as %s (%s %s)\n",
			id, res.InvoiceNumber, doc.Currency, doc.Total().StringFixed(2))
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d invoices failed", failed, len(ids))
	}
	return nil
}

func runInvoicePDF(cmd *cobra.Command, args []string) error {
	number := args[0]
	customerNumber, _ := cmd.Flags().GetString("customer")
	outputPath, _ := cmd.Flags().GetString("output")
	if outputPath == "" {
		outputPath = number + ".pdf"
	}

	a, err := newApp("invoice", false)
	if err != nil {
		return err
	}
	defer a.finish(cmd)

	ctx, cancel := commandContext(cmd, a.log)
	defer cancel()

	pdf, err := a.client.FetchInvoicePDF(ctx, number, customerNumber)
	if err != nil {
		if errors.Is(err, rma.ErrOwnershipMismatch) {
			return fmt.Errorf("invoice %s does not belong to customer %s", number, customerNumber)
		}
		return err
	}

	if err := os.WriteFile(outputPath, pdf, 0o644); err != nil {
		a.log.Error().
			Err(err).
			Str("output", outputPath).
			Msg("Failed to write PDF")
		return fmt.Errorf("failed to write PDF: %w", err)
	}

	a.log.Info().
		Str("invoice", number).
		Str("output", outputPath).
		Int("size", len(pdf)).
		Msg("Invoice PDF saved")
	fmt.Fprintf(cmd.OutOrStdout(), "Saved %s\n", outputPath)
	return nil
}
