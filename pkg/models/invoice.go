package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// InvoiceStatus is the remote lifecycle state carried in the invoice header.
type InvoiceStatus string

const (
	InvoiceStatusOpen     InvoiceStatus = "OPEN"
	InvoiceStatusInvoiced InvoiceStatus = "INVOICED"
	InvoiceStatusError    InvoiceStatus = "ERROR"
)

// Invoice is the canonical invoice document submitted to Run my Accounts.
type Invoice struct {
	// Header
	InvoiceNumber     string        `json:"invoice_number"`
	OrderNumber       string        `json:"order_number"`
	Status            InvoiceStatus `json:"status"`
	Currency          string        `json:"currency"`
	ReceivableAccount string        `json:"receivable_account"` // ar_accno
	TransactionDate   time.Time     `json:"transaction_date"`
	DueDate           time.Time     `json:"due_date"`
	Description       string        `json:"description"`
	Notes             string        `json:"notes"`
	InternalNotes     string        `json:"internal_notes"` // shipping address, if any
	TaxIncluded       bool          `json:"tax_included"`
	DCN               string        `json:"dcn"`
	CustomerNumber    string        `json:"customer_number"`
	PaymentMethod     string        `json:"payment_method"`
	PaymentAccount    string        `json:"payment_account"` // payment_accno

	LineItems []LineItem `json:"line_items"`
}

// LineItem is one <part> of an invoice.
type LineItem struct {
	PartNumber    string          `json:"part_number"`
	Description   string          `json:"description"`
	Unit          string          `json:"unit"`
	Quantity      int             `json:"quantity"`
	SellPrice     decimal.Decimal `json:"sell_price"`
	Discount      decimal.Decimal `json:"discount"`
	ItemNote      string          `json:"item_note"`
	ProjectNumber string          `json:"project_number,omitempty"`

	// OriginatingOrderID is set on lines merged into a collective invoice.
	OriginatingOrderID *int64 `json:"originating_order_id,omitempty"`
}

// BelongsTo reports whether the line originates from one of the given orders.
func (l LineItem) BelongsTo(orderIDs map[int64]bool) bool {
	return l.OriginatingOrderID != nil && orderIDs[*l.OriginatingOrderID]
}

// Total sums the sell price of all line items.
func (i *Invoice) Total() decimal.Decimal {
	total := decimal.Zero
	for _, line := range i.LineItems {
		total = total.Add(line.SellPrice)
	}
	return total
}

// OrderIDs returns the distinct originating order ids in line order.
func (i *Invoice) OrderIDs() []int64 {
	seen := make(map[int64]bool)
	var ids []int64
	for _, line := range i.LineItems {
		if line.OriginatingOrderID == nil || seen[*line.OriginatingOrderID] {
			continue
		}
		seen[*line.OriginatingOrderID] = true
		ids = append(ids, *line.OriginatingOrderID)
	}
	return ids
}

// Clone returns a deep copy of the invoice.
func (i *Invoice) Clone() *Invoice {
	c := *i
	c.LineItems = make([]LineItem, len(i.LineItems))
	for idx, line := range i.LineItems {
		if line.OriginatingOrderID != nil {
			id := *line.OriginatingOrderID
			line.OriginatingOrderID = &id
		}
		c.LineItems[idx] = line
	}
	return &c
}
