package rma

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Amount is a decimal that decodes empty XML elements as zero.
type Amount struct {
	decimal.Decimal
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (a *Amount) UnmarshalText(text []byte) error {
	s := strings.TrimSpace(string(text))
	if s == "" {
		a.Decimal = decimal.Zero
		return nil
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return err
	}
	a.Decimal = d
	return nil
}

// Date is a remote date, either plain (2006-01-02) or RFC 3339.
type Date string

// Time parses the date. Empty dates yield the zero time.
func (d Date) Time() (time.Time, error) {
	s := strings.TrimSpace(string(d))
	if s == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02", s)
}

// CustomerSummary is one entry of the customer list.
type CustomerSummary struct {
	ID        string `xml:"id"`
	Number    string `xml:"customernumber"`
	Name      string `xml:"name"`
	FirstName string `xml:"firstname"`
	LastName  string `xml:"lastname"`
}

// DisplayName returns the name, or "first last" when the record carries no name.
func (c CustomerSummary) DisplayName() string {
	if strings.TrimSpace(c.Name) != "" {
		return c.Name
	}
	return strings.TrimSpace(c.FirstName + " " + c.LastName)
}

// Label is the customer as shown in selection lists: "name ( number )".
func (c CustomerSummary) Label() string {
	return c.DisplayName() + " ( " + c.Number + " )"
}

// CustomerRecord is a full customer as returned by customers/{id}.
type CustomerRecord struct {
	CustomerSummary
	Created       Date   `xml:"created"`
	Salutation    string `xml:"salutation"`
	Address1      string `xml:"address1"`
	Address2      string `xml:"address2"`
	Zipcode       string `xml:"zipcode"`
	City          string `xml:"city"`
	State         string `xml:"state"`
	Country       string `xml:"country"`
	Phone         string `xml:"phone"`
	Email         string `xml:"email"`
	TypeOfContact string `xml:"typeofcontact"`
	Gender        string `xml:"gender"`
	ARAPAccount   string `xml:"arap_accno"`
	PaymentAcct   string `xml:"payment_accno"`
}

// PartRecord is one line of a remote invoice.
type PartRecord struct {
	PartNumber    string `xml:"partnumber"`
	Description   string `xml:"description"`
	Quantity      Amount `xml:"quantity"`
	SellPrice     Amount `xml:"sellprice"`
	IncomeAccount string `xml:"income_accno"`
	ProjectNumber string `xml:"projectnumber"`
}

// InvoiceRecord is a remote invoice.
type InvoiceRecord struct {
	Number          string          `xml:"invnumber"`
	OrderNumber     string          `xml:"ordnumber"`
	Status          string          `xml:"status"`
	Currency        string          `xml:"currency"`
	TransactionDate Date            `xml:"transdate"`
	DueDate         Date            `xml:"duedate"`
	Description     string          `xml:"description"`
	Amount          Amount          `xml:"amount"`
	NetAmount       Amount          `xml:"netamount"`
	Paid            Amount          `xml:"paid"`
	Customer        CustomerSummary `xml:"customer"`
	Parts           []PartRecord    `xml:"parts>part"`
}

// ExpenseEntry is one booking line of a payable.
type ExpenseEntry struct {
	Amount         Amount `xml:"amount"`
	ExpenseAccount string `xml:"expense_accno"`
	ProjectNumber  string `xml:"projectNumber"`
}

// PayableRecord is a vendor invoice.
type PayableRecord struct {
	Number          string         `xml:"invnumber"`
	TransactionDate Date           `xml:"transdate"`
	Description     string         `xml:"description"`
	Amount          Amount         `xml:"amount"`
	ExpenseEntries  []ExpenseEntry `xml:"expenseentries>expenseentry"`
}

// PartSet is the set of part numbers known to the remote catalog.
type PartSet map[string]struct{}

// Contains reports whether the catalog holds the part number.
func (p PartSet) Contains(partNumber string) bool {
	_, ok := p[partNumber]
	return ok
}

type customerList struct {
	Customers []CustomerSummary `xml:"customer"`
}

type invoiceList struct {
	Invoices []InvoiceRecord `xml:"invoice"`
}

type payableList struct {
	Payables []PayableRecord `xml:"payable"`
}

type partList struct {
	Parts []struct {
		PartNumber string `xml:"partnumber"`
	} `xml:"part"`
}

type chartList struct {
	Charts []struct {
		Account     string `xml:"accno,attr"`
		Description string `xml:"description,attr"`
	} `xml:"chart"`
}
