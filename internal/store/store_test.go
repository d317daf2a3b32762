package store

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"rmasync/internal/activitylog"
	"rmasync/internal/testutil"
	"rmasync/pkg/models"
	"rmasync/pkg/services"
)

func TestOrderRowKeepsRentalBooking(t *testing.T) {
	o := testutil.Order(7, 3)
	o.Items[0].Rental = &models.RentalBooking{
		PickupAt:        time.Date(2024, 4, 1, 10, 0, 0, 0, time.UTC),
		DropoffAt:       time.Date(2024, 4, 3, 18, 0, 0, 0, time.UTC),
		Cancellation:    true,
		OriginalOrderID: 5,
	}
	o.Meta[models.MetaInvoiceNumber] = "INV000007"

	row := rowFromOrder(o)
	require.Len(t, row.Items, 1)
	assert.Equal(t, int64(7), row.Items[0].OrderID)
	require.NotNil(t, row.Items[0].RentalPickupAt)
	assert.Equal(t, []OrderMetaRow{{OrderID: 7, Key: models.MetaInvoiceNumber, Value: "INV000007"}}, row.Meta)

	back := orderFromRow(row)
	assert.Equal(t, o.Items[0].Rental, back.Items[0].Rental)
	assert.Equal(t, "INV000007", back.InvoiceNumber())
	assert.True(t, back.Items[0].Price.Equal(o.Items[0].Price))
}

func TestOrderRowWithoutRental(t *testing.T) {
	row := rowFromOrder(testutil.Order(1, 0))
	assert.Nil(t, row.Items[0].RentalPickupAt)
	assert.Nil(t, orderFromRow(row).Items[0].Rental)
}

// newTestRepository connects to the database named by RMA_TEST_DATABASE_URL.
func newTestRepository(t *testing.T) *Repository {
	t.Helper()

	dsn := os.Getenv("RMA_TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("RMA_TEST_DATABASE_URL not set")
	}
	db, err := Connect(dsn)
	require.NoError(t, err)

	for _, table := range []string{"order_items", "order_meta", "order_notes", "orders", "customer_profiles", "rma_log"} {
		require.NoError(t, db.Exec("DELETE FROM "+table).Error)
	}
	return NewRepository(db)
}

func TestRepositoryOrders(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	require.NoError(t, repo.SaveOrder(ctx, testutil.Order(1, 5)))
	require.NoError(t, repo.SaveOrder(ctx, testutil.Order(2, 5)))

	got, err := repo.OrderByItemID(ctx, 200)
	require.NoError(t, err)
	assert.Equal(t, int64(2), got.ID)

	_, err = repo.Order(ctx, 99)
	assert.ErrorIs(t, err, services.ErrNotFound)

	require.NoError(t, repo.SetOrderMeta(ctx, 1, map[string]string{models.MetaInvoiceNumber: "INV000001"}))
	require.NoError(t, repo.SetOrderMeta(ctx, 1, map[string]string{models.MetaInvoiceStatus: "NEW"}))
	assert.ErrorIs(t, repo.SetOrderMeta(ctx, 99, map[string]string{"k": "v"}), services.ErrNotFound)

	open, err := repo.ListUninvoicedOrders(ctx, services.OrderQuery{PaymentMethods: []string{"bacs"}})
	require.NoError(t, err)
	require.Len(t, open, 1)
	assert.Equal(t, int64(2), open[0].ID)

	ids, err := repo.OrdersByInvoiceNumber(ctx, "INV000001")
	require.NoError(t, err)
	assert.Equal(t, []int64{1}, ids)

	require.NoError(t, repo.AddOrderNote(ctx, 1, "first"))
	require.NoError(t, repo.AddOrderNote(ctx, 1, "second"))
	notes, err := repo.OrderNotes(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, []string{"first", "second"}, notes)
}

func TestRepositoryProfilesAndActivity(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	require.NoError(t, repo.SaveProfile(ctx, &models.CustomerProfile{UserID: 5, DisplayName: "Jane"}))
	require.NoError(t, repo.SetCustomerNumber(ctx, 5, "C5"))
	assert.ErrorIs(t, repo.SetCustomerNumber(ctx, 6, "C6"), services.ErrNotFound)

	p, err := repo.Profile(ctx, 5)
	require.NoError(t, err)
	assert.Equal(t, "C5", p.CustomerNumber)

	linked, err := repo.LinkedProfiles(ctx)
	require.NoError(t, err)
	assert.Len(t, linked, 1)

	require.NoError(t, repo.Append(ctx, activitylog.Entry{Time: testutil.Now, RunID: "r1", Status: activitylog.StatusError, Message: "boom"}))
	require.NoError(t, repo.Append(ctx, activitylog.Entry{Time: testutil.Now.Add(time.Minute), RunID: "r1", Status: activitylog.StatusSuccess}))

	errorsOnly, err := repo.RecentActivity(ctx, activitylog.StatusError, 10)
	require.NoError(t, err)
	require.Len(t, errorsOnly, 1)
	assert.Equal(t, "boom", errorsOnly[0].Message)

	all, err := repo.RecentActivity(ctx, "", 0)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, activitylog.StatusSuccess, all[0].Status)
}
