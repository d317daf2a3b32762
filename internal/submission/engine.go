// Package submission serializes documents, submits them to Run my Accounts and
// records the outcome on the originating orders.
package submission

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"rmasync/internal/activitylog"
	"rmasync/internal/config"
	"rmasync/internal/customer"
	"rmasync/internal/logger"
	"rmasync/internal/rma"
	"rmasync/pkg/models"
	"rmasync/pkg/services"
)

// State is the lifecycle position of one submission.
type State string

const (
	StateBuilt      State = "BUILT"
	StateSerialized State = "SERIALIZED"
	StateSubmitted  State = "SUBMITTED"
	StateAcked      State = "ACKED"
	StateFailed     State = "FAILED"
)

// StatusNew is the invoice status stored on an order right after submission.
const StatusNew = "NEW"

// Kind distinguishes single-order invoices from collective invoices.
type Kind int

const (
	KindSingle Kind = iota
	KindCollective
)

func (k Kind) label() string {
	if k == KindCollective {
		return "Collective invoice"
	}
	return "Invoice"
}

// Action selects between creating and updating a customer.
type Action int

const (
	ActionNew Action = iota
	ActionUpdate
)

// Submitter posts XML documents. *rma.Client implements it.
type Submitter interface {
	SubmitDocument(ctx context.Context, payload []byte, resource string) (*rma.Response, error)
}

// OrderState reads orders and writes their integration metadata.
type OrderState interface {
	services.OrderReader
	services.OrderWriter
}

// Result is the outcome of one submission.
type Result struct {
	State          State
	InvoiceNumber  string
	CustomerNumber string
	OrderIDs       []int64
	StatusCode     int
	Message        string
	Payload        []byte
}

// Acked reports whether the document was accepted.
func (r *Result) Acked() bool {
	return r.State == StateAcked
}

// Classify maps an HTTP status code to the final submission state.
func Classify(statusCode int) State {
	switch statusCode {
	case http.StatusOK, http.StatusNoContent:
		return StateAcked
	}
	return StateFailed
}

// Deps are the collaborators of an Engine.
type Deps struct {
	Client    Submitter
	Orders    OrderState
	Profiles  services.ProfileStore
	Customers *customer.Builder
	Activity  *activitylog.Logger
	Now       func() time.Time
}

// Engine submits invoice and customer documents.
type Engine struct {
	cfg       *config.Config
	client    Submitter
	orders    OrderState
	profiles  services.ProfileStore
	customers *customer.Builder
	activity  *activitylog.Logger
	now       func() time.Time
	log       zerolog.Logger
}

// NewEngine creates an Engine.
func NewEngine(cfg *config.Config, deps Deps) *Engine {
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	return &Engine{
		cfg:       cfg,
		client:    deps.Client,
		orders:    deps.Orders,
		profiles:  deps.Profiles,
		customers: deps.Customers,
		activity:  deps.Activity,
		now:       now,
		log:       logger.WithComponent("submission"),
	}
}

// SubmitInvoice serializes and submits an invoice for the given orders.
//
// Remote rejections and transport failures are reported through the Result and the
// activity log. The returned error is reserved for caller mistakes and local store failures.
func (e *Engine) SubmitInvoice(ctx context.Context, doc *models.Invoice, orderIDs []int64, kind Kind) (*Result, error) {
	const op = "SubmitInvoice"

	if doc == nil || doc.InvoiceNumber == "" || len(orderIDs) == 0 {
		return nil, fmt.Errorf("%s: %w", op, ErrMissingInvoiceData)
	}
	if !e.cfg.Active {
		e.deactivated(ctx, "Invoice", joinIDs(orderIDs))
		return nil, fmt.Errorf("%s: %w", op, ErrDeactivated)
	}

	res := &Result{
		State:          StateBuilt,
		InvoiceNumber:  doc.InvoiceNumber,
		CustomerNumber: doc.CustomerNumber,
		OrderIDs:       orderIDs,
	}

	for _, id := range orderIDs {
		order, err := e.orders.Order(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("%s: failed to read order %d: %w", op, id, err)
		}
		if existing := order.InvoiceNumber(); existing != "" {
			res.State = StateFailed
			res.Message = fmt.Sprintf("Order %d is already invoiced as %s", id, existing)
			e.activity.Error(ctx, "Invoice", strconv.FormatInt(id, 10), res.Message)
			return res, nil
		}
	}

	payload, err := MarshalInvoice(doc)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	res.State = StateSerialized
	res.Payload = payload

	e.log.Info().
		Str("invoice", doc.InvoiceNumber).
		Str("customer", doc.CustomerNumber).
		Int("orders", len(orderIDs)).
		Msg("Submitting invoice")

	resp, err := e.client.SubmitDocument(ctx, payload, "invoices")
	res.State = StateSubmitted
	if err != nil {
		e.invoiceFailed(ctx, res, failureMessage("Invoice creation failed", 0, err.Error()))
		return res, nil
	}

	res.StatusCode = resp.StatusCode
	if Classify(resp.StatusCode) != StateAcked {
		e.invoiceFailed(ctx, res, failureMessage("Invoice creation failed", resp.StatusCode, string(resp.Body)))
		return res, nil
	}

	e.invoiceAcked(ctx, res, kind)
	return res, nil
}

func (e *Engine) invoiceAcked(ctx context.Context, res *Result, kind Kind) {
	res.State = StateAcked
	res.Message = fmt.Sprintf("%s %s created in Run my Accounts", kind.label(), res.InvoiceNumber)

	meta := map[string]string{
		models.MetaInvoiceNumber:          res.InvoiceNumber,
		models.MetaInvoiceStatus:          StatusNew,
		models.MetaInvoiceStatusTimestamp: e.now().Format(time.RFC3339),
	}
	for _, id := range res.OrderIDs {
		if err := e.orders.SetOrderMeta(ctx, id, meta); err != nil {
			e.activity.Error(ctx, "Invoice", strconv.FormatInt(id, 10),
				fmt.Sprintf("Invoice %s created but order could not be updated: %v", res.InvoiceNumber, err))
			continue
		}
		if err := e.orders.AddOrderNote(ctx, id, res.Message); err != nil {
			e.log.Warn().Err(err).Int64("order_id", id).Msg("Failed to add order note")
		}
	}

	e.activity.Record(ctx, activitylog.Entry{
		Status:    activitylog.StatusInvoiced,
		Section:   "Invoice",
		SectionID: joinIDs(res.OrderIDs),
		Message:   res.Message,
	})
}

func (e *Engine) invoiceFailed(ctx context.Context, res *Result, message string) {
	res.State = StateFailed
	res.Message = message

	for _, id := range res.OrderIDs {
		if err := e.orders.AddOrderNote(ctx, id, message); err != nil {
			e.log.Warn().Err(err).Int64("order_id", id).Msg("Failed to add order note")
		}
	}

	e.activity.Error(ctx, "Invoice", joinIDs(res.OrderIDs), message+"\n"+string(res.Payload))
}

// CreateCustomer builds, serializes and submits the customer document of src.
// New customers are only created while customer creation is enabled.
func (e *Engine) CreateCustomer(ctx context.Context, src customer.Source, action Action) (*Result, error) {
	const op = "CreateCustomer"

	if !e.cfg.Active {
		e.deactivated(ctx, "Customer", src.String())
		return nil, fmt.Errorf("%s: %w", op, ErrDeactivated)
	}

	if action == ActionNew && !e.cfg.CreateCustomer {
		e.activity.Record(ctx, activitylog.Entry{
			Status:    activitylog.StatusDeactivated,
			Section:   "Customer",
			SectionID: src.String(),
			Message:   "Customer creation in Run my Accounts is disabled",
		})
		return nil, fmt.Errorf("%s: %s: %w", op, src, ErrCustomerCreationDisabled)
	}

	if action == ActionNew {
		linked, err := e.linkedNumber(ctx, src)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		if linked != "" {
			return nil, fmt.Errorf("%s: %s has customer number %s: %w", op, src, linked, ErrCustomerLinked)
		}
	}

	doc, err := e.customers.Build(ctx, src)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	payload, err := MarshalCustomer(doc)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	res := &Result{State: StateSerialized, CustomerNumber: doc.CustomerNumber, Payload: payload}
	if src.Kind == customer.KindGuestOrder {
		res.OrderIDs = []int64{src.ID}
	}

	e.log.Info().Str("customer", doc.CustomerNumber).Str("source", src.String()).Msg("Submitting customer")

	resp, err := e.client.SubmitDocument(ctx, payload, "customers")
	res.State = StateSubmitted
	if err != nil {
		e.customerFailed(ctx, res, src, failureMessage("Customer creation failed", 0, err.Error()))
		return res, nil
	}
	res.StatusCode = resp.StatusCode
	if Classify(resp.StatusCode) != StateAcked {
		e.customerFailed(ctx, res, src, failureMessage("Customer creation failed", resp.StatusCode, string(resp.Body)))
		return res, nil
	}

	res.State = StateAcked
	if err := e.linkCustomer(ctx, src, doc.CustomerNumber); err != nil {
		e.activity.Error(ctx, "Customer", src.String(),
			fmt.Sprintf("Customer %s created but could not be linked: %v", doc.CustomerNumber, err))
	}

	verb := "created"
	if action == ActionUpdate {
		verb = "updated"
	}
	res.Message = fmt.Sprintf("Customer %s %s in Run my Accounts", doc.CustomerNumber, verb)
	e.activity.Record(ctx, activitylog.Entry{
		Status:    activitylog.StatusCreated,
		Section:   "Customer",
		SectionID: src.String(),
		Message:   res.Message,
	})
	return res, nil
}

// CreateGuestCustomer implements customer.GuestCreator.
func (e *Engine) CreateGuestCustomer(ctx context.Context, orderID int64) (string, error) {
	src := customer.ByGuestOrder(orderID)

	res, err := e.CreateCustomer(ctx, src, ActionNew)
	if errors.Is(err, ErrCustomerLinked) {
		return e.linkedNumber(ctx, src)
	}
	if err != nil {
		return "", err
	}
	if !res.Acked() {
		return "", fmt.Errorf("CreateGuestCustomer: %w: %s", ErrRejected, res.Message)
	}
	return res.CustomerNumber, nil
}

func (e *Engine) customerFailed(ctx context.Context, res *Result, src customer.Source, message string) {
	res.State = StateFailed
	res.Message = message
	e.activity.Error(ctx, "Customer", src.String(), message+"\n"+string(res.Payload))
}

func (e *Engine) linkedNumber(ctx context.Context, src customer.Source) (string, error) {
	switch src.Kind {
	case customer.KindUser:
		profile, err := e.profiles.Profile(ctx, src.ID)
		if err != nil {
			return "", fmt.Errorf("failed to read %s: %w", src, err)
		}
		return profile.CustomerNumber, nil
	case customer.KindGuestOrder:
		order, err := e.orders.Order(ctx, src.ID)
		if err != nil {
			return "", fmt.Errorf("failed to read %s: %w", src, err)
		}
		return order.Meta[models.MetaCustomerNumber], nil
	}
	return "", customer.ErrUnknownSource
}

func (e *Engine) linkCustomer(ctx context.Context, src customer.Source, number string) error {
	if src.Kind == customer.KindGuestOrder {
		return e.orders.SetOrderMeta(ctx, src.ID, map[string]string{models.MetaCustomerNumber: number})
	}
	return e.profiles.SetCustomerNumber(ctx, src.ID, number)
}

func (e *Engine) deactivated(ctx context.Context, section, sectionID string) {
	e.activity.Record(ctx, activitylog.Entry{
		Status:    activitylog.StatusDeactivated,
		Section:   section,
		SectionID: sectionID,
		Message:   "Run my Accounts integration is deactivated",
	})
}

func failureMessage(prefix string, statusCode int, body string) string {
	if statusCode == 0 {
		return fmt.Sprintf("%s: [transport error] %s", prefix, body)
	}
	return fmt.Sprintf("%s: [%d] %s", prefix, statusCode, body)
}

func joinIDs(ids []int64) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = strconv.FormatInt(id, 10)
	}
	return strings.Join(parts, ",")
}
