package services

import (
	"context"
	"errors"
	"time"

	"rmasync/pkg/models"
)

// ErrNotFound is returned by stores when a requested record does not exist.
var ErrNotFound = errors.New("record not found")

// OrderQuery narrows the set of not-yet-invoiced orders.
type OrderQuery struct {
	PaymentMethods []string
	From           *time.Time
	To             *time.Time
}

// OrderReader reads order snapshots.
type OrderReader interface {
	// Order returns the order with the given id.
	Order(ctx context.Context, id int64) (*models.Order, error)

	// OrderByItemID returns the order that owns the given order item.
	OrderByItemID(ctx context.Context, itemID int64) (*models.Order, error)
}

// EligibleOrderLister lists orders that do not carry an invoice reference yet.
type EligibleOrderLister interface {
	ListUninvoicedOrders(ctx context.Context, query OrderQuery) ([]*models.Order, error)
}

// OrderWriter writes the small set of values the integration keeps per order.
// Writes are scoped to one order and follow last-writer-wins semantics.
type OrderWriter interface {
	SetOrderMeta(ctx context.Context, orderID int64, values map[string]string) error
	AddOrderNote(ctx context.Context, orderID int64, note string) error
}

// InvoiceOrderFinder maps an invoice number back to the orders carrying it.
type InvoiceOrderFinder interface {
	OrdersByInvoiceNumber(ctx context.Context, invoiceNumber string) ([]int64, error)
}

// OrderStore is the full order-state contract of the hosting shop.
type OrderStore interface {
	OrderReader
	EligibleOrderLister
	OrderWriter
	InvoiceOrderFinder
}

// ProfileStore reads and links customer accounts.
type ProfileStore interface {
	Profile(ctx context.Context, userID int64) (*models.CustomerProfile, error)
	SetCustomerNumber(ctx context.Context, userID int64, customerNumber string) error
}
