package models

import (
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Order metadata keys written by the integration.
const (
	MetaInvoiceNumber          = "_rma_invoice"
	MetaInvoiceStatus          = "_rma_invoice_status"
	MetaInvoiceStatusTimestamp = "_rma_invoice_status_timestamp"
	MetaCustomerNumber         = "_rma_customer"
	MetaOriginalOrder          = "_rma_original_order"
)

// GuestCustomerID is the customer id of orders placed without an account.
const GuestCustomerID int64 = 0

// Address holds billing contact data.
type Address struct {
	Title     int    `json:"title"` // 1 = Mr.
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Company   string `json:"company"`
	Address1  string `json:"address1"`
	Address2  string `json:"address2"`
	Postcode  string `json:"postcode"`
	City      string `json:"city"`
	State     string `json:"state"`
	Country   string `json:"country"` // ISO 3166-1 alpha-2
	Phone     string `json:"phone"`
	Email     string `json:"email"`
}

// FullName returns "first last" without dangling spaces.
func (a Address) FullName() string {
	return strings.TrimSpace(a.FirstName + " " + a.LastName)
}

// Order is the snapshot of a shop order the integration reads.
type Order struct {
	ID               int64           `json:"id"`
	Number           string          `json:"number"`
	CustomerID       int64           `json:"customer_id"`
	Currency         string          `json:"currency"`
	CreatedAt        time.Time       `json:"created_at"`
	PricesIncludeTax bool            `json:"prices_include_tax"`
	PaymentMethod    string          `json:"payment_method"`
	Billing          Address         `json:"billing"`
	NeedsShipping    bool            `json:"needs_shipping"`
	ShippingAddress  string          `json:"shipping_address"` // formatted, may contain <br>
	ShippingMethod   string          `json:"shipping_method"`
	ShippingTotal    decimal.Decimal `json:"shipping_total"` // net
	ShippingTax      decimal.Decimal `json:"shipping_tax"`
	CustomerNote     string          `json:"customer_note"`
	Items            []OrderItem     `json:"items"`

	Meta map[string]string `json:"meta"`
}

// OrderItem is one product line of an order.
type OrderItem struct {
	ID          int64           `json:"id"`
	Name        string          `json:"name"`
	SKU         string          `json:"sku"`
	ProductID   int64           `json:"product_id"`
	ProductType string          `json:"product_type"`
	Quantity    int             `json:"quantity"`
	Price       decimal.Decimal `json:"price"` // unit price
	Total       decimal.Decimal `json:"total"` // line total, net
	Tax         decimal.Decimal `json:"tax"`
	Rental      *RentalBooking  `json:"rental,omitempty"`
}

// RentalBooking is the booking data attached to rental products.
type RentalBooking struct {
	PickupAt        time.Time `json:"pickup_at"`
	DropoffAt       time.Time `json:"dropoff_at"`
	Cancellation    bool      `json:"cancellation"`
	OriginalOrderID int64     `json:"original_order_id,omitempty"`
}

// OrderNumber returns the shop order number, falling back to the id.
func (o *Order) OrderNumber() string {
	if o.Number != "" {
		return o.Number
	}
	return strconv.FormatInt(o.ID, 10)
}

// IsGuest reports whether the order was placed without a customer account.
func (o *Order) IsGuest() bool {
	return o.CustomerID == GuestCustomerID
}

// InvoiceNumber returns the Run my Accounts invoice attached to the order, if any.
func (o *Order) InvoiceNumber() string {
	return o.Meta[MetaInvoiceNumber]
}

// Item returns the order item with the given id.
func (o *Order) Item(id int64) (*OrderItem, bool) {
	for i := range o.Items {
		if o.Items[i].ID == id {
			return &o.Items[i], true
		}
	}
	return nil, false
}
