// Package collective groups not-yet-invoiced orders per customer into collective invoices.
//
// Billing runs have two phases. Plan builds the grouping from the current order state
// without writing anything. Confirm re-plans, narrows the selected groups to the selected
// orders and submits one invoice per group.
package collective

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"rmasync/internal/activitylog"
	"rmasync/internal/cache"
	"rmasync/internal/config"
	"rmasync/internal/invoice"
	"rmasync/internal/logger"
	"rmasync/internal/submission"
	"rmasync/pkg/models"
	"rmasync/pkg/services"
)

// CachePrefix namespaces cached plans.
const CachePrefix = "collective:plan:"

// DocumentBuilder builds the invoice document of one order.
type DocumentBuilder interface {
	BuildWithDescription(ctx context.Context, order *models.Order, description string) (*models.Invoice, error)
}

// InvoiceSubmitter submits a finished invoice. *submission.Engine implements it.
type InvoiceSubmitter interface {
	SubmitInvoice(ctx context.Context, doc *models.Invoice, orderIDs []int64, kind submission.Kind) (*submission.Result, error)
}

// Deps are the collaborators of an Aggregator.
type Deps struct {
	Orders    services.EligibleOrderLister
	Profiles  services.ProfileStore // optional, for operator search
	Builder   DocumentBuilder
	Submitter InvoiceSubmitter
	Cache     cache.Cache // optional
	Activity  *activitylog.Logger
	Now       func() time.Time
}

// Aggregator plans and confirms collective invoices.
type Aggregator struct {
	cfg  *config.Config
	deps Deps
	log  zerolog.Logger
}

// NewAggregator creates an Aggregator. The builder must resolve customers read-only.
func NewAggregator(cfg *config.Config, deps Deps) *Aggregator {
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.Activity == nil {
		deps.Activity = activitylog.New(activitylog.Options{Mode: cfg.ModeLabel()})
	}
	return &Aggregator{
		cfg:  cfg,
		deps: deps,
		log:  logger.WithComponent("collective"),
	}
}

// Plan returns the grouping of all eligible orders matching c. A cached plan for the same
// criteria is returned unless opts.Refresh is set.
func (a *Aggregator) Plan(ctx context.Context, c Criteria, opts PlanOptions) (*Plan, error) {
	const op = "Plan"

	c = c.normalized()
	key, err := cacheKey(c)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if a.deps.Cache != nil && !opts.Refresh {
		var cached Plan
		err := cache.GetJSON(ctx, a.deps.Cache, key, &cached)
		if err == nil {
			cached.Cached = true
			a.log.Debug().Str("key", key).Msg("Using cached collective invoice plan")
			return &cached, nil
		}
		if !errors.Is(err, cache.ErrMiss) {
			a.log.Warn().Err(err).Msg("Could not read cached plan")
		}
	}

	plan, err := a.plan(ctx, c)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if a.deps.Cache != nil {
		if err := cache.SetJSON(ctx, a.deps.Cache, key, plan, a.cfg.PlanCacheTTL); err != nil {
			a.log.Warn().Err(err).Msg("Could not cache plan")
		}
	}
	return plan, nil
}

// ConfirmReport is the outcome of a confirmation.
type ConfirmReport struct {
	Results []*submission.Result
	Totals  map[string]decimal.Decimal
}

// Invoiced returns the invoice numbers that were acknowledged.
func (r *ConfirmReport) Invoiced() []string {
	var out []string
	for _, res := range r.Results {
		if res.Acked() {
			out = append(out, res.InvoiceNumber)
		}
	}
	return out
}

// Failed returns the invoice numbers that were not acknowledged.
func (r *ConfirmReport) Failed() []string {
	var out []string
	for _, res := range r.Results {
		if !res.Acked() {
			out = append(out, res.InvoiceNumber)
		}
	}
	return out
}

// Confirm submits the selected groups. Every selection is validated against a fresh plan
// before anything is submitted. Lines of deselected orders are dropped.
func (a *Aggregator) Confirm(ctx context.Context, c Criteria, selections []Selection) (*ConfirmReport, error) {
	const op = "Confirm"

	plan, err := a.plan(ctx, c.normalized())
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	docs := make([]*models.Invoice, 0, len(selections))
	orderSets := make([][]int64, 0, len(selections))

	for _, sel := range selections {
		group, unresolved := plan.Find(sel.InvoiceNumber)
		if group == nil {
			return nil, fmt.Errorf("%s: %w: %s", op, ErrUnknownInvoice, sel.InvoiceNumber)
		}
		if unresolved {
			return nil, fmt.Errorf("%s: %w: %s", op, ErrUnresolvedCustomer, sel.InvoiceNumber)
		}

		orderIDs := sel.OrderIDs
		if len(orderIDs) == 0 {
			orderIDs = group.OrderIDs
		}
		for _, id := range orderIDs {
			if !group.hasOrder(id) {
				return nil, fmt.Errorf("%s: %w: order %d in %s", op, ErrOrderNotInGroup, id, group.InvoiceNumber)
			}
		}

		docs = append(docs, a.narrow(group, orderIDs))
		orderSets = append(orderSets, sortedIDs(orderIDs))
	}

	a.writeDefects(ctx, plan, orderSets)

	report := &ConfirmReport{Totals: make(map[string]decimal.Decimal)}
	defer a.invalidate(ctx)

	for i, doc := range docs {
		if len(doc.LineItems) == 0 {
			a.deps.Activity.Error(ctx, "Collective Invoice", doc.InvoiceNumber, "Selected orders have no invoice lines")
			continue
		}

		report.Totals[doc.InvoiceNumber] = doc.Total()

		res, err := a.deps.Submitter.SubmitInvoice(ctx, doc, orderSets[i], submission.KindCollective)
		if err != nil {
			return report, fmt.Errorf("%s: %w", op, err)
		}
		report.Results = append(report.Results, res)
	}

	a.log.Info().
		Int("submitted", len(report.Results)).
		Int("invoiced", len(report.Invoiced())).
		Msg("Collective invoices confirmed")

	return report, nil
}

// narrow keeps the lines of the selected orders. The invoice is numbered after the
// lowest selected order so that deselected orders keep their own number for later runs.
func (a *Aggregator) narrow(group *Group, orderIDs []int64) *models.Invoice {
	selected := make(map[int64]bool, len(orderIDs))
	for _, id := range orderIDs {
		selected[id] = true
	}

	doc := group.Invoice.Clone()
	lines := doc.LineItems[:0]
	for _, line := range doc.LineItems {
		if line.BelongsTo(selected) {
			lines = append(lines, line)
		}
	}
	doc.LineItems = lines

	first := sortedIDs(orderIDs)[0]
	doc.InvoiceNumber = invoice.InvoiceNumber(a.cfg.InvoicePrefix, a.cfg.InvoiceDigits, first)
	doc.OrderNumber = strconv.FormatInt(first, 10)
	return doc
}

// writeDefects records the build errors of the orders about to be submitted.
func (a *Aggregator) writeDefects(ctx context.Context, plan *Plan, orderSets [][]int64) {
	selected := make(map[int64]bool)
	for _, ids := range orderSets {
		for _, id := range ids {
			selected[id] = true
		}
	}
	for _, d := range plan.Defects {
		if selected[d.OrderID] {
			a.deps.Activity.Write(ctx, d.Entry)
		}
	}
}

func (a *Aggregator) invalidate(ctx context.Context) {
	if a.deps.Cache == nil {
		return
	}
	if err := a.deps.Cache.DeletePrefix(ctx, CachePrefix); err != nil {
		a.log.Warn().Err(err).Msg("Could not invalidate cached plans")
	}
}

func (a *Aggregator) plan(ctx context.Context, c Criteria) (*Plan, error) {
	orders, err := a.deps.Orders.ListUninvoicedOrders(ctx, services.OrderQuery{
		PaymentMethods: c.PaymentMethods,
		From:           c.From,
		To:             c.To,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list orders: %w", err)
	}
	sort.Slice(orders, func(i, j int) bool { return orders[i].ID < orders[j].ID })

	plan := &Plan{Criteria: c, GeneratedAt: a.deps.Now()}
	byCustomer := make(map[string]*Group)

	for _, order := range orders {
		if order.InvoiceNumber() != "" {
			continue
		}

		buildCtx, held := activitylog.WithCapture(ctx)
		doc, err := a.deps.Builder.BuildWithDescription(buildCtx, order, c.Title)
		if err != nil {
			return nil, fmt.Errorf("failed to build invoice of order %d: %w", order.ID, err)
		}
		tagLines(doc, order.ID)

		if !c.allows(doc.CustomerNumber, order.CustomerID) {
			continue
		}
		for _, entry := range held.Entries() {
			plan.Defects = append(plan.Defects, Defect{OrderID: order.ID, Entry: entry})
		}

		if doc.CustomerNumber == "" {
			plan.Errors = append(plan.Errors, a.newGroup(ctx, order, doc))
			continue
		}

		if group, ok := byCustomer[doc.CustomerNumber]; ok {
			group.OrderIDs = append(group.OrderIDs, order.ID)
			group.Invoice.LineItems = append(group.Invoice.LineItems, doc.LineItems...)
			continue
		}

		group := a.newGroup(ctx, order, doc)
		byCustomer[doc.CustomerNumber] = group
		plan.Groups = append(plan.Groups, group)
	}

	sort.SliceStable(plan.Groups, func(i, j int) bool {
		return plan.Groups[i].CustomerNumber < plan.Groups[j].CustomerNumber
	})

	a.log.Debug().
		Int("orders", len(orders)).
		Int("groups", len(plan.Groups)).
		Int("errors", len(plan.Errors)).
		Int("defects", len(plan.Defects)).
		Msg("Collective invoice plan built")

	return plan, nil
}

func (a *Aggregator) newGroup(ctx context.Context, order *models.Order, doc *models.Invoice) *Group {
	g := &Group{
		InvoiceNumber:  doc.InvoiceNumber,
		CustomerNumber: doc.CustomerNumber,
		UserID:         order.CustomerID,
		OrderIDs:       []int64{order.ID},
		Invoice:        doc,
	}

	if order.IsGuest() {
		g.UserName = order.Billing.FullName()
		g.UserEmail = order.Billing.Email
		return g
	}
	if a.deps.Profiles == nil {
		return g
	}
	profile, err := a.deps.Profiles.Profile(ctx, order.CustomerID)
	if err != nil {
		a.log.Debug().Err(err).Int64("customer_id", order.CustomerID).Msg("Customer profile unavailable")
		return g
	}
	g.UserName = profile.DisplayName
	g.UserEmail = profile.Billing.Email
	return g
}

// tagLines attributes every line, synthetic ones included, to its order.
func tagLines(doc *models.Invoice, orderID int64) {
	for i := range doc.LineItems {
		id := orderID
		doc.LineItems[i].OriginatingOrderID = &id
	}
}

func cacheKey(c Criteria) (string, error) {
	data, err := json.Marshal(c)
	if err != nil {
		return "", fmt.Errorf("failed to encode criteria: %w", err)
	}
	sum := sha256.Sum256(data)
	return CachePrefix + hex.EncodeToString(sum[:8]), nil
}

func sortedIDs(ids []int64) []int64 {
	out := append([]int64(nil), ids...)
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
