package collective

import (
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"rmasync/internal/activitylog"
	"rmasync/pkg/models"
)

// Criteria select the orders of a billing run.
type Criteria struct {
	PaymentMethods []string   `json:"payment_methods,omitempty"`
	From           *time.Time `json:"from,omitempty"`
	To             *time.Time `json:"to,omitempty"`
	// Customers restricts the run to these customer numbers or user ids.
	Customers []string `json:"customers,omitempty"`
	// Title replaces the configured invoice description.
	Title string `json:"title,omitempty"`
}

func (c Criteria) normalized() Criteria {
	n := c
	n.PaymentMethods = sortedCopy(c.PaymentMethods)
	n.Customers = sortedCopy(c.Customers)
	return n
}

func (c Criteria) allows(customerNumber string, userID int64) bool {
	if len(c.Customers) == 0 {
		return true
	}
	uid := strconv.FormatInt(userID, 10)
	for _, want := range c.Customers {
		if want == customerNumber || want == uid {
			return true
		}
	}
	return false
}

// PlanOptions control caching of a plan.
type PlanOptions struct {
	// Refresh bypasses and replaces a cached plan.
	Refresh bool
}

// Group is one collective invoice: all eligible orders of a customer.
type Group struct {
	InvoiceNumber  string          `json:"invoice_number"`
	CustomerNumber string          `json:"customer_number"`
	UserID         int64           `json:"user_id"`
	UserName       string          `json:"user_name"`
	UserEmail      string          `json:"user_email"`
	OrderIDs       []int64         `json:"order_ids"`
	Invoice        *models.Invoice `json:"invoice"`
}

// Total is the sum of the sell prices of all lines.
func (g *Group) Total() decimal.Decimal {
	if g.Invoice == nil {
		return decimal.Zero
	}
	return g.Invoice.Total()
}

// Label is the customer as shown to operators.
func (g *Group) Label() string {
	if g.UserID == models.GuestCustomerID {
		return g.CustomerNumber + " (guest)"
	}
	if g.UserName == "" {
		return g.CustomerNumber
	}
	return g.CustomerNumber + " ( " + g.UserName + " )"
}

func (g *Group) hasOrder(id int64) bool {
	for _, o := range g.OrderIDs {
		if o == id {
			return true
		}
	}
	return false
}

// Plan is the grouped view of a billing run.
type Plan struct {
	Criteria    Criteria  `json:"criteria"`
	GeneratedAt time.Time `json:"generated_at"`
	Groups      []*Group  `json:"groups"`
	// Errors holds one group per order whose customer number could not be resolved.
	Errors []*Group `json:"errors"`
	// Defects are the activity log errors raised while building, written on confirmation.
	Defects []Defect `json:"defects,omitempty"`
	Cached bool     `json:"-"`
}

// Defect is an activity log entry held back while planning an order.
type Defect struct {
	OrderID int64             `json:"order_id"`
	Entry   activitylog.Entry `json:"entry"`
}

// Find returns the group with the given invoice number and whether it is in the error bucket.
func (p *Plan) Find(invoiceNumber string) (*Group, bool) {
	for _, g := range p.Groups {
		if strings.EqualFold(g.InvoiceNumber, invoiceNumber) {
			return g, false
		}
	}
	for _, g := range p.Errors {
		if strings.EqualFold(g.InvoiceNumber, invoiceNumber) {
			return g, true
		}
	}
	return nil, false
}

// Total sums the totals of all resolved groups.
func (p *Plan) Total() decimal.Decimal {
	total := decimal.Zero
	for _, g := range p.Groups {
		total = total.Add(g.Total())
	}
	return total
}

// Search returns the resolved groups matching term.
func (p *Plan) Search(term string) []*Group {
	var out []*Group
	for _, g := range p.Groups {
		if MatchesSearch(g, term) {
			out = append(out, g)
		}
	}
	return out
}

// MatchesSearch reports whether a group matches an operator search term. Guest groups
// match "guest"; other groups match on customer number, user name, user id or email.
// The comparison ignores case and an empty term matches everything.
func MatchesSearch(g *Group, term string) bool {
	if term == "" {
		return true
	}

	var haystack string
	if g.UserID == models.GuestCustomerID {
		haystack = "guest"
	} else {
		haystack = g.CustomerNumber + g.UserName + strconv.FormatInt(g.UserID, 10) + g.UserEmail
	}
	return strings.Contains(strings.ToUpper(haystack), strings.ToUpper(term))
}

// Selection picks orders of one planned group for confirmation. No order ids selects all.
type Selection struct {
	InvoiceNumber string  `json:"invoice_number"`
	OrderIDs      []int64 `json:"order_ids,omitempty"`
}

func sortedCopy(in []string) []string {
	if len(in) == 0 {
		return nil
	}
	out := append([]string(nil), in...)
	sort.Strings(out)
	return out
}
