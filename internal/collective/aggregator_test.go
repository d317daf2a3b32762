package collective_test

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"rmasync/internal/activitylog"
	"rmasync/internal/cache"
	"rmasync/internal/collective"
	"rmasync/internal/customer"
	"rmasync/internal/invoice"
	"rmasync/internal/rma"
	"rmasync/internal/submission"
	"rmasync/internal/testutil"
	"rmasync/pkg/models"
)

type partsFunc func(ctx context.Context) (rma.PartSet, error)

func (f partsFunc) FetchParts(ctx context.Context) (rma.PartSet, error) { return f(ctx) }

type okClient struct{ calls int }

func (c *okClient) SubmitDocument(ctx context.Context, payload []byte, resource string) (*rma.Response, error) {
	c.calls++
	return &rma.Response{StatusCode: http.StatusOK}, nil
}

type recordingSubmitter struct {
	next     collective.InvoiceSubmitter
	docs     []*models.Invoice
	orderIDs [][]int64
}

func (r *recordingSubmitter) SubmitInvoice(ctx context.Context, doc *models.Invoice, orderIDs []int64, kind submission.Kind) (*submission.Result, error) {
	r.docs = append(r.docs, doc)
	r.orderIDs = append(r.orderIDs, orderIDs)
	return r.next.SubmitInvoice(ctx, doc, orderIDs, kind)
}

type fixture struct {
	store     *testutil.MemoryStore
	client    *okClient
	submitter *recordingSubmitter
	agg       *collective.Aggregator
}

func newFixture(t *testing.T, c cache.Cache) *fixture {
	t.Helper()

	cfg := testutil.Config()
	cfg.PlanCacheTTL = 15 * time.Minute
	activity := testutil.Activity()
	store := testutil.NewMemoryStore()

	store.AddProfile(&models.CustomerProfile{UserID: 5, DisplayName: "Jane Doe", CustomerNumber: "C5",
		Billing: models.Address{Email: "jane@example.com"}})
	store.AddProfile(&models.CustomerProfile{UserID: 6, DisplayName: "Max Muster", CustomerNumber: "C6"})
	store.AddProfile(&models.CustomerProfile{UserID: 8, DisplayName: "Nobody"})

	store.AddOrder(testutil.Order(1, 5))
	store.AddOrder(testutil.Order(2, 5))
	store.AddOrder(testutil.Order(3, 6))
	store.AddOrder(testutil.Order(4, models.GuestCustomerID))
	store.AddOrder(testutil.Order(8, 8))

	client := &okClient{}
	engine := submission.NewEngine(cfg, submission.Deps{
		Client:   client,
		Orders:   store,
		Profiles: store,
		Activity: activity,
		Now:      testutil.Clock,
	})
	builder := invoice.NewBuilder(cfg, invoice.Deps{
		Customers: customer.NewResolver(cfg, store, nil, activity).ReadOnly(),
		Profiles:  store,
		Activity:  activity,
		Now:       testutil.Clock,
	})

	f := &fixture{store: store, client: client, submitter: &recordingSubmitter{next: engine}}
	f.agg = collective.NewAggregator(cfg, collective.Deps{
		Orders:    store,
		Profiles:  store,
		Builder:   builder,
		Submitter: f.submitter,
		Cache:     c,
		Activity:  activity,
		Now:       testutil.Clock,
	})
	return f
}

func invoiceNumbers(groups []*collective.Group) []string {
	var out []string
	for _, g := range groups {
		out = append(out, g.InvoiceNumber)
	}
	return out
}

func TestPlanGroupsOrdersPerCustomer(t *testing.T) {
	f := newFixture(t, nil)

	plan, err := f.agg.Plan(context.Background(), collective.Criteria{}, collective.PlanOptions{})
	require.NoError(t, err)

	require.Len(t, plan.Groups, 3)
	assert.Equal(t, []string{"INV001", "INV003", "INV004"}, invoiceNumbers(plan.Groups))

	first := plan.Groups[0]
	assert.Equal(t, "C5", first.CustomerNumber)
	assert.Equal(t, []int64{1, 2}, first.OrderIDs)
	assert.Len(t, first.Invoice.LineItems, 2)
	assert.Equal(t, []int64{1, 2}, first.Invoice.OrderIDs())
	assert.True(t, decimal.RequireFromString("20").Equal(first.Total()))
	assert.Equal(t, "Jane Doe", first.UserName)

	assert.Equal(t, "GUEST", plan.Groups[2].CustomerNumber)

	require.Len(t, plan.Errors, 1)
	assert.Equal(t, "INV008", plan.Errors[0].InvoiceNumber)
	assert.Empty(t, plan.Errors[0].CustomerNumber)
	assert.Zero(t, f.client.calls)
}

func TestPlanIsIdempotent(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	first, err := f.agg.Plan(ctx, collective.Criteria{}, collective.PlanOptions{})
	require.NoError(t, err)
	second, err := f.agg.Plan(ctx, collective.Criteria{}, collective.PlanOptions{})
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestPlanCustomerAllowList(t *testing.T) {
	f := newFixture(t, nil)

	plan, err := f.agg.Plan(context.Background(), collective.Criteria{Customers: []string{"C6", "8"}}, collective.PlanOptions{})
	require.NoError(t, err)

	assert.Equal(t, []string{"INV003"}, invoiceNumbers(plan.Groups))
	assert.Equal(t, []string{"INV008"}, invoiceNumbers(plan.Errors))
}

func TestPlanTitleReplacesDescription(t *testing.T) {
	f := newFixture(t, nil)

	plan, err := f.agg.Plan(context.Background(), collective.Criteria{Title: "March 2024"}, collective.PlanOptions{})
	require.NoError(t, err)
	assert.Equal(t, "March 2024", plan.Groups[0].Invoice.Description)
}

func TestConfirmExcludesInvoicedOrdersFromNextPlan(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	report, err := f.agg.Confirm(ctx, collective.Criteria{}, []collective.Selection{{InvoiceNumber: "INV001"}})
	require.NoError(t, err)
	assert.Equal(t, []string{"INV001"}, report.Invoiced())
	assert.Equal(t, [][]int64{{1, 2}}, f.submitter.orderIDs)
	assert.Equal(t, "INV001", f.store.Meta(1, models.MetaInvoiceNumber))
	assert.Equal(t, "INV001", f.store.Meta(2, models.MetaInvoiceNumber))

	plan, err := f.agg.Plan(ctx, collective.Criteria{}, collective.PlanOptions{})
	require.NoError(t, err)
	assert.Equal(t, []string{"INV003", "INV004"}, invoiceNumbers(plan.Groups))

	// Confirming the same group again finds nothing to submit.
	_, err = f.agg.Confirm(ctx, collective.Criteria{}, []collective.Selection{{InvoiceNumber: "INV001"}})
	assert.ErrorIs(t, err, collective.ErrUnknownInvoice)
	assert.Equal(t, 1, f.client.calls)
}

func TestConfirmPartialSelection(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	report, err := f.agg.Confirm(ctx, collective.Criteria{}, []collective.Selection{{InvoiceNumber: "INV001", OrderIDs: []int64{2}}})
	require.NoError(t, err)

	require.Len(t, f.submitter.docs, 1)
	doc := f.submitter.docs[0]
	assert.Equal(t, "INV002", doc.InvoiceNumber)
	require.Len(t, doc.LineItems, 1)
	assert.Equal(t, int64(2), *doc.LineItems[0].OriginatingOrderID)
	assert.True(t, decimal.RequireFromString("10").Equal(report.Totals["INV002"]))

	assert.Empty(t, f.store.Meta(1, models.MetaInvoiceNumber))
	assert.Equal(t, "INV002", f.store.Meta(2, models.MetaInvoiceNumber))

	plan, err := f.agg.Plan(ctx, collective.Criteria{}, collective.PlanOptions{})
	require.NoError(t, err)
	assert.Equal(t, []int64{1}, plan.Groups[0].OrderIDs)
}

func TestConfirmRejectsInvalidSelections(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	_, err := f.agg.Confirm(ctx, collective.Criteria{}, []collective.Selection{
		{InvoiceNumber: "INV003"},
		{InvoiceNumber: "INV999"},
	})
	assert.ErrorIs(t, err, collective.ErrUnknownInvoice)

	_, err = f.agg.Confirm(ctx, collective.Criteria{}, []collective.Selection{{InvoiceNumber: "INV008"}})
	assert.ErrorIs(t, err, collective.ErrUnresolvedCustomer)

	_, err = f.agg.Confirm(ctx, collective.Criteria{}, []collective.Selection{{InvoiceNumber: "INV001", OrderIDs: []int64{3}}})
	assert.ErrorIs(t, err, collective.ErrOrderNotInGroup)

	assert.Empty(t, f.submitter.docs)
	assert.Empty(t, f.store.Meta(3, models.MetaInvoiceNumber))
}

func TestPlanCache(t *testing.T) {
	f := newFixture(t, cache.NewMemory(testutil.Clock))
	ctx := context.Background()

	plan, err := f.agg.Plan(ctx, collective.Criteria{}, collective.PlanOptions{})
	require.NoError(t, err)
	assert.False(t, plan.Cached)

	f.store.AddOrder(testutil.Order(9, 6))

	cached, err := f.agg.Plan(ctx, collective.Criteria{}, collective.PlanOptions{})
	require.NoError(t, err)
	assert.True(t, cached.Cached)
	assert.Equal(t, []int64{3}, cached.Groups[1].OrderIDs)

	fresh, err := f.agg.Plan(ctx, collective.Criteria{}, collective.PlanOptions{Refresh: true})
	require.NoError(t, err)
	assert.False(t, fresh.Cached)
	assert.Equal(t, []int64{3, 9}, fresh.Groups[1].OrderIDs)

	_, err = f.agg.Confirm(ctx, collective.Criteria{}, []collective.Selection{{InvoiceNumber: "INV003"}})
	require.NoError(t, err)

	after, err := f.agg.Plan(ctx, collective.Criteria{}, collective.PlanOptions{})
	require.NoError(t, err)
	assert.False(t, after.Cached)
	assert.Equal(t, []string{"INV001", "INV004"}, invoiceNumbers(after.Groups))
}

func TestPlanHoldsBackBuildErrorsUntilConfirm(t *testing.T) {
	cfg := testutil.Config()
	cfg.FallbackSKU = "MISC"
	cfg.ShippingSKU = ""

	alerter := &testutil.RecordingAlerter{}
	activity := testutil.AlertingActivity(alerter)
	store := testutil.NewMemoryStore()
	store.AddProfile(&models.CustomerProfile{UserID: 5, DisplayName: "Jane Doe", CustomerNumber: "C5"})
	store.AddProfile(&models.CustomerProfile{UserID: 6, DisplayName: "Max Muster", CustomerNumber: "C6"})
	for id := int64(1); id <= 5; id++ {
		customerID := int64(5)
		if id > 3 {
			customerID = 6
		}
		order := testutil.Order(id, customerID)
		order.ShippingTotal = decimal.NewFromInt(4)
		store.AddOrder(order)
	}

	fetches := 0
	parts := partsFunc(func(ctx context.Context) (rma.PartSet, error) {
		fetches++
		return rma.PartSet{"ABC": {}}, nil
	})
	builder := invoice.NewBuilder(cfg, invoice.Deps{
		Parts:     parts,
		Customers: customer.NewResolver(cfg, store, nil, activity).ReadOnly(),
		Profiles:  store,
		Activity:  activity,
		Now:       testutil.Clock,
	})
	engine := submission.NewEngine(cfg, submission.Deps{
		Client:   &okClient{},
		Orders:   store,
		Profiles: store,
		Activity: activity,
		Now:      testutil.Clock,
	})
	agg := collective.NewAggregator(cfg, collective.Deps{
		Orders:    store,
		Profiles:  store,
		Builder:   builder,
		Submitter: engine,
		Activity:  activity,
		Now:       testutil.Clock,
	})
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		plan, err := agg.Plan(ctx, collective.Criteria{}, collective.PlanOptions{})
		require.NoError(t, err)
		require.Len(t, plan.Defects, 5)
		assert.Equal(t, int64(1), plan.Defects[0].OrderID)
		assert.Equal(t, activitylog.StatusError, plan.Defects[0].Entry.Status)
	}
	assert.Empty(t, alerter.Alerts())
	assert.Empty(t, activity.Entries())
	assert.Equal(t, 1, fetches)

	_, err := agg.Confirm(ctx, collective.Criteria{}, []collective.Selection{{InvoiceNumber: "INV004"}})
	require.NoError(t, err)

	var errorIDs []string
	for _, e := range activity.Entries() {
		if e.Status == activitylog.StatusError {
			errorIDs = append(errorIDs, e.SectionID)
		}
	}
	assert.Equal(t, []string{"4", "5"}, errorIDs)
	assert.Len(t, alerter.Alerts(), 2)
}

func TestMatchesSearch(t *testing.T) {
	registered := &collective.Group{CustomerNumber: "C5", UserID: 5, UserName: "Jane Doe", UserEmail: "jane@example.com"}
	guest := &collective.Group{CustomerNumber: "GUEST", UserID: models.GuestCustomerID, UserName: "Jane Doe"}

	tests := []struct {
		group *collective.Group
		term  string
		want  bool
	}{
		{registered, "", true},
		{registered, "c5", true},
		{registered, "jane", true},
		{registered, "EXAMPLE.COM", true},
		{registered, "max", false},
		{guest, "guest", true},
		{guest, "jane", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, collective.MatchesSearch(tt.group, tt.term), "term %q", tt.term)
	}
}
