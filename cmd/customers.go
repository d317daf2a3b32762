package cmd

import (
	"errors"
	"fmt"
	"sort"

	"github.com/spf13/cobra"
	"rmasync/internal/customer"
	"rmasync/internal/submission"
)

var customersCmd = &cobra.Command{
	Use:   "customers",
	Short: "List and create Run my Accounts customers",
}

var customersListCmd = &cobra.Command{
	Use:   "list",
	Short: "List all Run my Accounts customers",
	Long:  `List all customers of the mandant as "name ( number )", sorted by customer number.`,
	Args:  cobra.NoArgs,
	RunE:  runCustomersList,
}

var customersCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create or update the customer of a shop account or guest order",
	Long: `Build the customer document of a registered shop account (--user) or of a
guest order (--order) and submit it to Run my Accounts.

A new customer is only created for accounts and orders that are not linked to a
customer number yet. Use --update to resend the data of a linked customer.`,
	Example: `  # Create the customer of shop account 17
  rmasync customers create --user 17

  # Create a dedicated customer for guest order 42
  rmasync customers create --order 42

  # Update the linked customer of account 17
  rmasync customers create --user 17 --update`,
	Args: cobra.NoArgs,
	RunE: runCustomersCreate,
}

func init() {
	rootCmd.AddCommand(customersCmd)
	customersCmd.AddCommand(customersListCmd, customersCreateCmd)

	customersCreateCmd.Flags().Int64("user", 0, "Shop account id")
	customersCreateCmd.Flags().Int64("order", 0, "Guest order id")
	customersCreateCmd.Flags().Bool("update", false, "Update an already linked customer")
	customersCreateCmd.MarkFlagsMutuallyExclusive("user", "order")
	customersCreateCmd.MarkFlagsOneRequired("user", "order")
}

func runCustomersList(cmd *cobra.Command, args []string) error {
	a, err := newApp("customers", false)
	if err != nil {
		return err
	}
	defer a.finish(cmd)

	ctx, cancel := commandContext(cmd, a.log)
	defer cancel()

	customers, err := a.client.FetchCustomers(ctx)
	if err != nil {
		return err
	}

	numbers := make([]string, 0, len(customers))
	for number := range customers {
		numbers = append(numbers, number)
	}
	sort.Strings(numbers)

	for _, number := range numbers {
		fmt.Fprintln(cmd.OutOrStdout(), customers[number].Label())
	}

	a.log.Info().Int("customers", len(numbers)).Msg("Customers listed")
	return nil
}

func runCustomersCreate(cmd *cobra.Command, args []string) error {
	userID, _ := cmd.Flags().GetInt64("user")
	orderID, _ := cmd.Flags().GetInt64("order")
	update, _ := cmd.Flags().GetBool("update")

	src := customer.ByUser(userID)
	if cmd.Flags().Changed("order") {
		src = customer.ByGuestOrder(orderID)
	}
	action := submission.ActionNew
	if update {
		action = submission.ActionUpdate
	}

	a, err := newApp("customers", true)
	if err != nil {
		return err
	}
	defer a.finish(cmd)

	ctx, cancel := commandContext(cmd, a.log)
	defer cancel()

	res, err := a.engine().CreateCustomer(ctx, src, action)
	if errors.Is(err, submission.ErrCustomerLinked) {
		return fmt.Errorf("%s is already linked to a customer, use --update", src)
	}
	if errors.Is(err, submission.ErrCustomerCreationDisabled) {
		return fmt.Errorf("customer creation is disabled, set RMA_CREATE_CUSTOMER=true: %w", err)
	}
	if err != nil {
		return err
	}
	if !res.Acked() {
		return fmt.Errorf("customer %s was rejected: %w", res.CustomerNumber, submission.ErrRejected)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Customer %s linked to %s\n", res.CustomerNumber, src)
	return nil
}
