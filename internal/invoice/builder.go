// Package invoice assembles Run my Accounts invoice documents from shop orders.
package invoice

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"rmasync/internal/activitylog"
	"rmasync/internal/config"
	"rmasync/internal/logger"
	"rmasync/internal/rma"
	"rmasync/pkg/models"
	"rmasync/pkg/services"
)

const section = "Invoice"

// PartCatalog lists the part numbers known to Run my Accounts.
type PartCatalog interface {
	FetchParts(ctx context.Context) (rma.PartSet, error)
}

// CustomerResolver returns the Run my Accounts customer number an order is billed to.
// An empty number without error means the customer could not be resolved.
type CustomerResolver interface {
	ResolveCustomerNumber(ctx context.Context, order *models.Order) (string, error)
}

// Deps are the collaborators of a Builder.
type Deps struct {
	Parts     PartCatalog
	Customers CustomerResolver
	Profiles  services.ProfileStore // optional, for per-customer payment periods
	Activity  *activitylog.Logger
	Filters   []LineFilter
	Now       func() time.Time
}

// Builder turns orders into invoice documents. A Builder serves one run: the part
// catalog is fetched at most once per Builder.
type Builder struct {
	cfg  *config.Config
	deps Deps
	log  zerolog.Logger

	partsOnce sync.Once
	parts     rma.PartSet
}

// NewBuilder creates a Builder. Filters are applied in the given order.
func NewBuilder(cfg *config.Config, deps Deps) *Builder {
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.Activity == nil {
		deps.Activity = activitylog.New(activitylog.Options{Mode: cfg.ModeLabel()})
	}
	return &Builder{
		cfg:  cfg,
		deps: deps,
		log:  logger.WithComponent("invoice"),
	}
}

// Build assembles the invoice of one order using the configured description.
func (b *Builder) Build(ctx context.Context, order *models.Order) (*models.Invoice, error) {
	return b.build(ctx, order, "")
}

// BuildWithDescription assembles the invoice of one order with an explicit description.
// An empty description falls back to the configured one.
func (b *Builder) BuildWithDescription(ctx context.Context, order *models.Order, description string) (*models.Invoice, error) {
	return b.build(ctx, order, description)
}

func (b *Builder) build(ctx context.Context, order *models.Order, description string) (*models.Invoice, error) {
	const op = "Build"

	if order == nil {
		return nil, fmt.Errorf("%s: %w", op, ErrNilOrder)
	}
	if b.deps.Customers == nil {
		return nil, fmt.Errorf("%s: %w", op, ErrNoCustomerResolver)
	}

	customerNumber, err := b.deps.Customers.ResolveCustomerNumber(ctx, order)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to resolve customer of order %d: %w", op, order.ID, err)
	}

	if description == "" {
		description = ExpandDescription(b.cfg.InvoiceDescription, order.CreatedAt)
	}

	var internalNotes string
	if order.NeedsShipping {
		internalNotes = plainAddress(order.ShippingAddress)
	}

	accounts := b.cfg.AccountsFor(order.PaymentMethod)
	now := b.deps.Now()

	doc := &models.Invoice{
		InvoiceNumber:     InvoiceNumber(b.cfg.InvoicePrefix, b.cfg.InvoiceDigits, order.ID),
		OrderNumber:       order.OrderNumber(),
		Status:            models.InvoiceStatusOpen,
		Currency:          order.Currency,
		ReceivableAccount: accounts.ReceivableAccount,
		TransactionDate:   now,
		DueDate:           DueDate(now, b.paymentPeriod(ctx, order)),
		Description:       description,
		InternalNotes:     internalNotes,
		TaxIncluded:       order.PricesIncludeTax,
		CustomerNumber:    customerNumber,
		PaymentMethod:     order.PaymentMethod,
		PaymentAccount:    accounts.PaymentAccount,
	}

	catalog := b.catalog(ctx, order)

	for _, item := range order.Items {
		partNumber := ResolvePartNumber(item.SKU, catalog, b.cfg.FallbackSKU)
		if partNumber == "" {
			b.defect(ctx, order, NewValidationError("partnumber", item.Name, "line item has no SKU and no fallback SKU is configured"))
		}

		line := models.LineItem{
			PartNumber:  partNumber,
			Description: item.Name,
			Quantity:    item.Quantity,
			SellPrice:   item.Price.Round(2),
			Discount:    decimal.Zero,
		}
		itemID := item.ID
		doc.LineItems = append(doc.LineItems, applyFilters(ctx, b.deps.Filters, line, &itemID))
	}

	if line, ok := b.shippingLine(ctx, order); ok {
		doc.LineItems = append(doc.LineItems, applyFilters(ctx, b.deps.Filters, line, nil))
	}

	b.log.Debug().
		Int64("order_id", order.ID).
		Str("invoice_number", doc.InvoiceNumber).
		Str("customer_number", customerNumber).
		Int("lines", len(doc.LineItems)).
		Msg("Invoice document built")

	return doc, nil
}

func (b *Builder) paymentPeriod(ctx context.Context, order *models.Order) int {
	if order.IsGuest() || b.deps.Profiles == nil {
		return b.cfg.PaymentPeriodDays
	}

	profile, err := b.deps.Profiles.Profile(ctx, order.CustomerID)
	if err != nil {
		b.log.Warn().Err(err).Int64("customer_id", order.CustomerID).Msg("Could not read customer payment period, using default")
		return b.cfg.PaymentPeriodDays
	}
	if profile.PaymentPeriodDays != nil && *profile.PaymentPeriodDays > 0 {
		return *profile.PaymentPeriodDays
	}
	return b.cfg.PaymentPeriodDays
}

// catalog is only fetched when a fallback SKU is configured. A failed fetch is not
// retried within the run.
func (b *Builder) catalog(ctx context.Context, order *models.Order) rma.PartSet {
	if b.cfg.FallbackSKU == "" || b.deps.Parts == nil {
		return nil
	}

	b.partsOnce.Do(func() {
		parts, err := b.deps.Parts.FetchParts(ctx)
		if err != nil {
			b.log.Warn().Err(err).Int64("order_id", order.ID).Msg("Part catalog unavailable, only empty SKUs get the fallback")
			return
		}
		b.parts = parts
	})
	return b.parts
}

func (b *Builder) shippingLine(ctx context.Context, order *models.Order) (models.LineItem, bool) {
	total := order.ShippingTotal
	if order.PricesIncludeTax {
		total = total.Add(order.ShippingTax)
	}
	if !total.IsPositive() {
		return models.LineItem{}, false
	}

	if b.cfg.ShippingSKU == "" {
		b.defect(ctx, order, NewValidationError("shipping", total.StringFixed(2),
			"Could not add shipping costs to invoice because of missing shipping costs product sku"))
		return models.LineItem{}, false
	}

	text := b.cfg.ShippingText
	if text == "" {
		text = order.ShippingMethod
	}

	return models.LineItem{
		PartNumber:  b.cfg.ShippingSKU,
		Description: text,
		Quantity:    1,
		SellPrice:   total.Round(2),
		Discount:    decimal.Zero,
	}, true
}

func (b *Builder) defect(ctx context.Context, order *models.Order, verr *ValidationError) {
	b.deps.Activity.Error(ctx, section, strconv.FormatInt(order.ID, 10), verr.Error())
}
