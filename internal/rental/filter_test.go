package rental_test

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"rmasync/internal/config"
	"rmasync/internal/invoice"
	"rmasync/internal/rental"
	"rmasync/internal/testutil"
	"rmasync/pkg/models"
)

func rentalOrder() *models.Order {
	o := testutil.Order(7, 5)
	o.CustomerNote = "Please leave the keys\nat the desk"
	o.Items[0] = models.OrderItem{
		ID:        700,
		Name:      "Sailboat Laser",
		SKU:       "BOAT-1",
		ProductID: 42,
		Quantity:  1,
		Price:     decimal.RequireFromString("100"),
		Total:     decimal.RequireFromString("100"),
		Tax:       decimal.RequireFromString("7.7"),
		Rental: &models.RentalBooking{
			PickupAt:  time.Date(2024, 3, 20, 9, 0, 0, 0, time.UTC),
			DropoffAt: time.Date(2024, 3, 20, 17, 30, 0, 0, time.UTC),
		},
	}
	return o
}

func newFilter(store *testutil.MemoryStore, taxEnabled bool) *rental.Filter {
	cfg := config.RentalConfig{Article: "RENT", CancellationArticle: "CANCEL", TaxEnabled: taxEnabled}
	return rental.NewFilter(cfg, store, testutil.Activity())
}

func itemID(id int64) *int64 { return &id }

func TestFilterRewritesRentalLine(t *testing.T) {
	store := testutil.NewMemoryStore()
	store.AddOrder(rentalOrder())

	line := newFilter(store, true).FilterLine(context.Background(),
		models.LineItem{PartNumber: "BOAT-1", Description: "Sailboat Laser", Quantity: 1}, itemID(700))

	assert.Equal(t, "RENT", line.PartNumber)
	assert.Equal(t, "BOAT-1", line.ProjectNumber)
	assert.Equal(t, "#7: Reservation\nSailboat Laser\n20.03.2024 09:00 - 20.03.2024 17:30\n(01.03.2024 12:00)", line.Description)
	assert.Equal(t, "107.7", line.SellPrice.String())
	assert.Equal(t, "Please leave the keys\nat the desk", line.ItemNote)
}

func TestFilterWithoutTax(t *testing.T) {
	store := testutil.NewMemoryStore()
	store.AddOrder(rentalOrder())

	line := newFilter(store, false).FilterLine(context.Background(), models.LineItem{}, itemID(700))
	assert.True(t, decimal.RequireFromString("100").Equal(line.SellPrice))
}

func TestFilterCancellation(t *testing.T) {
	store := testutil.NewMemoryStore()
	o := rentalOrder()
	o.Items[0].Rental.Cancellation = true
	o.Items[0].Rental.OriginalOrderID = 3
	store.AddOrder(o)

	line := newFilter(store, true).FilterLine(context.Background(), models.LineItem{}, itemID(700))
	assert.Equal(t, "CANCEL", line.PartNumber)
	assert.Equal(t, "#7: Cancellation of original order #3\nSailboat Laser\n(01.03.2024 12:00)", line.Description)
}

func TestFilterLeavesOtherLinesAlone(t *testing.T) {
	store := testutil.NewMemoryStore()
	store.AddOrder(rentalOrder())
	store.AddOrder(testutil.Order(8, 5))
	f := newFilter(store, true)

	shipping := models.LineItem{PartNumber: "SHIP", Description: "Shipping"}
	assert.Equal(t, shipping, f.FilterLine(context.Background(), shipping, nil))

	plain := models.LineItem{PartNumber: "ABC", Description: "Widget"}
	assert.Equal(t, plain, f.FilterLine(context.Background(), plain, itemID(800)))
	assert.Equal(t, plain, f.FilterLine(context.Background(), plain, itemID(999)))
}

func TestFilterMissingSKUIsLogged(t *testing.T) {
	store := testutil.NewMemoryStore()
	o := rentalOrder()
	o.Items[0].SKU = ""
	store.AddOrder(o)

	activity := testutil.Activity()
	f := rental.NewFilter(config.RentalConfig{Article: "RENT"}, store, activity)

	line := f.FilterLine(context.Background(), models.LineItem{}, itemID(700))
	assert.Equal(t, "RENT", line.PartNumber)
	assert.Empty(t, line.ProjectNumber)

	entries := activity.Entries()
	require.Len(t, entries, 1)
	assert.Equal(t, "Product Sailboat Laser does not have a valid SKU.", entries[0].Message)
}

func TestFilterInBuilderChain(t *testing.T) {
	store := testutil.NewMemoryStore()
	store.AddOrder(rentalOrder())
	store.AddProfile(&models.CustomerProfile{UserID: 5, CustomerNumber: "C5"})

	cfg := testutil.Config()
	cfg.Rental = config.RentalConfig{Article: "RENT", TaxEnabled: true}
	activity := testutil.Activity()

	builder := invoice.NewBuilder(cfg, invoice.Deps{
		Customers: customerNumber("C5"),
		Activity:  activity,
		Filters:   []invoice.LineFilter{rental.NewFilter(cfg.Rental, store, activity)},
		Now:       testutil.Clock,
	})

	order, err := store.Order(context.Background(), 7)
	require.NoError(t, err)
	doc, err := builder.Build(context.Background(), order)
	require.NoError(t, err)

	require.Len(t, doc.LineItems, 1)
	assert.Equal(t, "RENT", doc.LineItems[0].PartNumber)
	assert.Equal(t, "BOAT-1", doc.LineItems[0].ProjectNumber)
}

type customerNumber string

func (c customerNumber) ResolveCustomerNumber(ctx context.Context, order *models.Order) (string, error) {
	return string(c), nil
}
