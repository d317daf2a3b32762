package submission_test

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"rmasync/internal/activitylog"
	"rmasync/internal/config"
	"rmasync/internal/customer"
	"rmasync/internal/rma"
	"rmasync/internal/submission"
	"rmasync/internal/testutil"
	"rmasync/pkg/models"
)

type fakeSubmitter struct {
	calls     []string
	payloads  [][]byte
	responses []*rma.Response
	err       error
}

func (f *fakeSubmitter) SubmitDocument(ctx context.Context, payload []byte, resource string) (*rma.Response, error) {
	f.calls = append(f.calls, resource)
	f.payloads = append(f.payloads, payload)
	if f.err != nil {
		return nil, f.err
	}
	if len(f.responses) == 0 {
		return &rma.Response{StatusCode: http.StatusOK}, nil
	}
	resp := f.responses[0]
	f.responses = f.responses[1:]
	return resp, nil
}

type engineFixture struct {
	cfg      *config.Config
	store    *testutil.MemoryStore
	client   *fakeSubmitter
	activity *activitylog.Logger
	engine   *submission.Engine
}

func newEngine(t *testing.T, client *fakeSubmitter) *engineFixture {
	t.Helper()

	f := &engineFixture{
		cfg:      testutil.Config(),
		store:    testutil.NewMemoryStore(),
		client:   client,
		activity: testutil.Activity(),
	}
	f.engine = submission.NewEngine(f.cfg, submission.Deps{
		Client:    client,
		Orders:    f.store,
		Profiles:  f.store,
		Customers: customer.NewBuilder(f.cfg.CustomerPrefix, f.cfg.GuestCustomerPrefix, f.store, f.store, testutil.Clock),
		Activity:  f.activity,
		Now:       testutil.Clock,
	})
	return f
}

func TestClassify(t *testing.T) {
	tests := []struct {
		code int
		want submission.State
	}{
		{200, submission.StateAcked},
		{204, submission.StateAcked},
		{201, submission.StateFailed},
		{400, submission.StateFailed},
		{404, submission.StateFailed},
		{500, submission.StateFailed},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, submission.Classify(tt.code), "status %d", tt.code)
	}
}

func TestSubmitInvoiceAck(t *testing.T) {
	f := newEngine(t, &fakeSubmitter{})
	f.store.AddOrder(testutil.Order(7, 5))

	res, err := f.engine.SubmitInvoice(context.Background(), sampleInvoice(), []int64{7}, submission.KindSingle)
	require.NoError(t, err)

	assert.Equal(t, submission.StateAcked, res.State)
	assert.True(t, res.Acked())
	assert.Equal(t, []string{"invoices"}, f.client.calls)

	assert.Equal(t, "INV007", f.store.Meta(7, models.MetaInvoiceNumber))
	assert.Equal(t, "NEW", f.store.Meta(7, models.MetaInvoiceStatus))
	assert.Equal(t, "2024-03-15T09:30:00Z", f.store.Meta(7, models.MetaInvoiceStatusTimestamp))
	assert.Equal(t, []string{"Invoice INV007 created in Run my Accounts"}, f.store.Notes(7))

	entries := f.activity.Entries()
	require.Len(t, entries, 1)
	assert.Equal(t, activitylog.StatusInvoiced, entries[0].Status)
	assert.Equal(t, "7", entries[0].SectionID)
}

func TestSubmitCollectiveInvoiceNotesEveryOrder(t *testing.T) {
	f := newEngine(t, &fakeSubmitter{responses: []*rma.Response{{StatusCode: http.StatusNoContent}}})
	f.store.AddOrder(testutil.Order(1, 5))
	f.store.AddOrder(testutil.Order(2, 5))

	res, err := f.engine.SubmitInvoice(context.Background(), sampleInvoice(), []int64{1, 2}, submission.KindCollective)
	require.NoError(t, err)
	require.True(t, res.Acked())

	for _, id := range []int64{1, 2} {
		assert.Equal(t, "INV007", f.store.Meta(id, models.MetaInvoiceNumber))
		assert.Equal(t, []string{"Collective invoice INV007 created in Run my Accounts"}, f.store.Notes(id))
	}
}

func TestSubmitInvoiceRejected(t *testing.T) {
	f := newEngine(t, &fakeSubmitter{responses: []*rma.Response{{StatusCode: 400, Body: []byte("bad part")}}})
	f.store.AddOrder(testutil.Order(7, 5))

	res, err := f.engine.SubmitInvoice(context.Background(), sampleInvoice(), []int64{7}, submission.KindSingle)
	require.NoError(t, err)

	assert.Equal(t, submission.StateFailed, res.State)
	assert.Equal(t, 400, res.StatusCode)
	assert.Empty(t, f.store.Meta(7, models.MetaInvoiceNumber))
	assert.Equal(t, []string{"Invoice creation failed: [400] bad part"}, f.store.Notes(7))

	entries := f.activity.Entries()
	require.Len(t, entries, 1)
	assert.Equal(t, activitylog.StatusError, entries[0].Status)
	assert.Contains(t, entries[0].Message, "Invoice creation failed: [400] bad part\n<?xml")
	assert.Contains(t, entries[0].Message, "<invnumber>INV007</invnumber>")
}

func TestSubmitInvoiceRejectedAlerts(t *testing.T) {
	client := &fakeSubmitter{responses: []*rma.Response{{StatusCode: 500, Body: []byte("down")}}}
	alerter := &testutil.RecordingAlerter{}
	store := testutil.NewMemoryStore()
	store.AddOrder(testutil.Order(7, 5))
	cfg := testutil.Config()

	engine := submission.NewEngine(cfg, submission.Deps{
		Client:    client,
		Orders:    store,
		Profiles:  store,
		Customers: customer.NewBuilder(cfg.CustomerPrefix, cfg.GuestCustomerPrefix, store, store, testutil.Clock),
		Activity:  testutil.AlertingActivity(alerter),
		Now:       testutil.Clock,
	})

	res, err := engine.SubmitInvoice(context.Background(), sampleInvoice(), []int64{7}, submission.KindSingle)
	require.NoError(t, err)
	assert.False(t, res.Acked())

	alerts := alerter.Alerts()
	require.Len(t, alerts, 1)
	assert.Equal(t, "Invoice", alerts[0].Section)
	assert.Equal(t, "7", alerts[0].SectionID)
	assert.Contains(t, alerts[0].Message, "[500] down")
}

func TestSubmitInvoiceTransportError(t *testing.T) {
	f := newEngine(t, &fakeSubmitter{err: errors.New("connection refused")})
	f.store.AddOrder(testutil.Order(7, 5))

	res, err := f.engine.SubmitInvoice(context.Background(), sampleInvoice(), []int64{7}, submission.KindSingle)
	require.NoError(t, err)

	assert.Equal(t, submission.StateFailed, res.State)
	assert.Equal(t, 0, res.StatusCode)
	assert.Empty(t, f.store.Meta(7, models.MetaInvoiceNumber))
	assert.True(t, f.activity.HasErrors())
}

func TestSubmitInvoiceRejectsInvoicedOrder(t *testing.T) {
	f := newEngine(t, &fakeSubmitter{})
	order := testutil.Order(7, 5)
	order.Meta[models.MetaInvoiceNumber] = "INV006"
	f.store.AddOrder(order)

	res, err := f.engine.SubmitInvoice(context.Background(), sampleInvoice(), []int64{7}, submission.KindSingle)
	require.NoError(t, err)

	assert.Equal(t, submission.StateFailed, res.State)
	assert.Empty(t, f.client.calls)
	assert.Equal(t, "INV006", f.store.Meta(7, models.MetaInvoiceNumber))
}

func TestSubmitInvoiceMissingData(t *testing.T) {
	f := newEngine(t, &fakeSubmitter{})

	_, err := f.engine.SubmitInvoice(context.Background(), nil, []int64{7}, submission.KindSingle)
	assert.ErrorIs(t, err, submission.ErrMissingInvoiceData)

	_, err = f.engine.SubmitInvoice(context.Background(), sampleInvoice(), nil, submission.KindSingle)
	assert.ErrorIs(t, err, submission.ErrMissingInvoiceData)
	assert.Empty(t, f.client.calls)
}

func TestSubmitInvoiceDeactivated(t *testing.T) {
	f := newEngine(t, &fakeSubmitter{})
	f.cfg.Active = false
	f.store.AddOrder(testutil.Order(7, 5))

	_, err := f.engine.SubmitInvoice(context.Background(), sampleInvoice(), []int64{7}, submission.KindSingle)
	require.ErrorIs(t, err, submission.ErrDeactivated)
	assert.Empty(t, f.client.calls)

	entries := f.activity.Entries()
	require.Len(t, entries, 1)
	assert.Equal(t, activitylog.StatusDeactivated, entries[0].Status)
}

func TestCreateCustomerLinksProfile(t *testing.T) {
	f := newEngine(t, &fakeSubmitter{})
	f.store.AddProfile(&models.CustomerProfile{UserID: 12, Billing: models.Address{FirstName: "John", LastName: "Smith"}})

	res, err := f.engine.CreateCustomer(context.Background(), customer.ByUser(12), submission.ActionNew)
	require.NoError(t, err)
	require.True(t, res.Acked())
	assert.Equal(t, "C12", res.CustomerNumber)
	assert.Equal(t, []string{"customers"}, f.client.calls)

	profile, err := f.store.Profile(context.Background(), 12)
	require.NoError(t, err)
	assert.Equal(t, "C12", profile.CustomerNumber)

	entries := f.activity.Entries()
	require.Len(t, entries, 1)
	assert.Equal(t, activitylog.StatusCreated, entries[0].Status)
}

func TestCreateCustomerAlreadyLinked(t *testing.T) {
	f := newEngine(t, &fakeSubmitter{})
	f.store.AddProfile(&models.CustomerProfile{UserID: 12, CustomerNumber: "C12"})

	_, err := f.engine.CreateCustomer(context.Background(), customer.ByUser(12), submission.ActionNew)
	require.ErrorIs(t, err, submission.ErrCustomerLinked)
	assert.Empty(t, f.client.calls)

	res, err := f.engine.CreateCustomer(context.Background(), customer.ByUser(12), submission.ActionUpdate)
	require.NoError(t, err)
	assert.True(t, res.Acked())
	assert.Contains(t, res.Message, "updated")
}

func TestCreateCustomerRejected(t *testing.T) {
	f := newEngine(t, &fakeSubmitter{responses: []*rma.Response{{StatusCode: 500, Body: []byte("boom")}}})
	f.store.AddProfile(&models.CustomerProfile{UserID: 12})

	res, err := f.engine.CreateCustomer(context.Background(), customer.ByUser(12), submission.ActionNew)
	require.NoError(t, err)
	assert.Equal(t, submission.StateFailed, res.State)

	profile, err := f.store.Profile(context.Background(), 12)
	require.NoError(t, err)
	assert.Empty(t, profile.CustomerNumber)
	assert.True(t, f.activity.HasErrors())
}

func TestCreateCustomerDisabled(t *testing.T) {
	f := newEngine(t, &fakeSubmitter{})
	f.cfg.CreateCustomer = false
	f.store.AddProfile(&models.CustomerProfile{UserID: 12, CustomerNumber: "C12"})
	f.store.AddProfile(&models.CustomerProfile{UserID: 13})
	f.store.AddOrder(testutil.Order(7, models.GuestCustomerID))
	ctx := context.Background()

	res, err := f.engine.CreateCustomer(ctx, customer.ByUser(13), submission.ActionNew)
	require.ErrorIs(t, err, submission.ErrCustomerCreationDisabled)
	assert.Nil(t, res)

	_, err = f.engine.CreateGuestCustomer(ctx, 7)
	require.ErrorIs(t, err, submission.ErrCustomerCreationDisabled)
	assert.Empty(t, f.client.calls)

	profile, err := f.store.Profile(ctx, 13)
	require.NoError(t, err)
	assert.Empty(t, profile.CustomerNumber)
	assert.Empty(t, f.store.Meta(7, models.MetaCustomerNumber))

	entries := f.activity.Entries()
	require.Len(t, entries, 2)
	assert.Equal(t, activitylog.StatusDeactivated, entries[0].Status)
	assert.Equal(t, "user 13", entries[0].SectionID)

	// Linked customers can still be updated.
	res, err = f.engine.CreateCustomer(ctx, customer.ByUser(12), submission.ActionUpdate)
	require.NoError(t, err)
	assert.True(t, res.Acked())
}

func TestCreateGuestCustomer(t *testing.T) {
	f := newEngine(t, &fakeSubmitter{})
	f.store.AddOrder(testutil.Order(7, models.GuestCustomerID))

	number, err := f.engine.CreateGuestCustomer(context.Background(), 7)
	require.NoError(t, err)
	assert.Equal(t, "G7", number)
	assert.Equal(t, "G7", f.store.Meta(7, models.MetaCustomerNumber))

	// A second call reuses the stored number.
	number, err = f.engine.CreateGuestCustomer(context.Background(), 7)
	require.NoError(t, err)
	assert.Equal(t, "G7", number)
	assert.Len(t, f.client.calls, 1)
}

func TestCreateGuestCustomerRejected(t *testing.T) {
	f := newEngine(t, &fakeSubmitter{responses: []*rma.Response{{StatusCode: 400}}})
	f.store.AddOrder(testutil.Order(7, models.GuestCustomerID))

	_, err := f.engine.CreateGuestCustomer(context.Background(), 7)
	assert.ErrorIs(t, err, submission.ErrRejected)
	assert.Empty(t, f.store.Meta(7, models.MetaCustomerNumber))
}

func TestSubmitInvoiceThroughClient(t *testing.T) {
	var body string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/acme/invoices", r.URL.Path)
		b, _ := io.ReadAll(r.Body)
		body = string(b)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	cfg := testutil.Config()
	cfg.BaseURLOverride = srv.URL
	activity := testutil.Activity()
	store := testutil.NewMemoryStore()
	store.AddOrder(testutil.Order(7, 5))

	engine := submission.NewEngine(cfg, submission.Deps{
		Client:   rma.New(cfg, activity),
		Orders:   store,
		Profiles: store,
		Activity: activity,
		Now:      testutil.Clock,
	})

	res, err := engine.SubmitInvoice(context.Background(), sampleInvoice(), []int64{7}, submission.KindSingle)
	require.NoError(t, err)
	assert.True(t, res.Acked())
	assert.Contains(t, body, "<invnumber>INV007</invnumber>")
	assert.Equal(t, "INV007", store.Meta(7, models.MetaInvoiceNumber))
}
