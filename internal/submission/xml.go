package submission

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
	"rmasync/pkg/models"
)

// createdSuffix is appended to the creation date of customers.
const createdSuffix = "T00:00:00+01:00"

type field struct {
	name  string
	value string
}

// MarshalInvoice serializes an invoice as <invoice> with one element per header field,
// followed by a <parts> container holding one <part> per line item in document order.
// Line breaks inside values are written as &#xA;.
func MarshalInvoice(doc *models.Invoice) ([]byte, error) {
	const op = "MarshalInvoice"

	var buf bytes.Buffer
	buf.WriteString(xml.Header)
	enc := xml.NewEncoder(&buf)
	enc.Indent("", "  ")

	root := xml.StartElement{Name: xml.Name{Local: "invoice"}}
	parts := xml.StartElement{Name: xml.Name{Local: "parts"}}
	part := xml.StartElement{Name: xml.Name{Local: "part"}}

	if err := enc.EncodeToken(root); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if err := writeFields(enc, invoiceFields(doc)); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if err := enc.EncodeToken(parts); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	for _, line := range doc.LineItems {
		if err := enc.EncodeToken(part); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		if err := writeFields(enc, partFields(line)); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		if err := enc.EncodeToken(part.End()); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
	}
	if err := enc.EncodeToken(parts.End()); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if err := enc.EncodeToken(root.End()); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if err := enc.Flush(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return buf.Bytes(), nil
}

// MarshalCustomer serializes a customer as a flat <customer> element.
func MarshalCustomer(doc *models.Customer) ([]byte, error) {
	const op = "MarshalCustomer"

	var buf bytes.Buffer
	buf.WriteString(xml.Header)
	enc := xml.NewEncoder(&buf)
	enc.Indent("", "  ")

	root := xml.StartElement{Name: xml.Name{Local: "customer"}}
	if err := enc.EncodeToken(root); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if err := writeFields(enc, customerFields(doc)); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if err := enc.EncodeToken(root.End()); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if err := enc.Flush(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return buf.Bytes(), nil
}

// writeFields writes one element per field. Fields without a name are skipped.
func writeFields(enc *xml.Encoder, fields []field) error {
	for _, f := range fields {
		if f.name == "" {
			continue
		}
		if err := enc.EncodeElement(f.value, xml.StartElement{Name: xml.Name{Local: f.name}}); err != nil {
			return fmt.Errorf("element %s: %w", f.name, err)
		}
	}
	return nil
}

func invoiceFields(doc *models.Invoice) []field {
	return []field{
		{"invnumber", doc.InvoiceNumber},
		{"ordnumber", doc.OrderNumber},
		{"status", string(doc.Status)},
		{"currency", doc.Currency},
		{"ar_accno", doc.ReceivableAccount},
		{"transdate", formatTime(doc.TransactionDate)},
		{"duedate", formatTime(doc.DueDate)},
		{"description", doc.Description},
		{"notes", doc.Notes},
		{"intnotes", doc.InternalNotes},
		{"taxincluded", strconv.FormatBool(doc.TaxIncluded)},
		{"dcn", doc.DCN},
		{"customernumber", doc.CustomerNumber},
		{"paymentmethod", doc.PaymentMethod},
		{"payment_accno", doc.PaymentAccount},
	}
}

func partFields(line models.LineItem) []field {
	fields := []field{
		{"partnumber", line.PartNumber},
		{"description", line.Description},
		{"unit", line.Unit},
		{"quantity", strconv.Itoa(line.Quantity)},
		{"sellprice", line.SellPrice.StringFixed(2)},
		{"discount", formatDiscount(line.Discount)},
		{"itemnote", line.ItemNote},
		{"price_update", ""},
	}
	if line.ProjectNumber != "" {
		fields = append(fields, field{"projectnumber", line.ProjectNumber})
	}
	return fields
}

func customerFields(doc *models.Customer) []field {
	var created string
	if !doc.Created.IsZero() {
		created = doc.Created.Format("2006-01-02") + createdSuffix
	}
	return []field{
		{"customernumber", doc.CustomerNumber},
		{"name", doc.Name},
		{"created", created},
		{"salutation", doc.Salutation},
		{"firstname", doc.FirstName},
		{"lastname", doc.LastName},
		{"address1", doc.Address1},
		{"address2", doc.Address2},
		{"zipcode", doc.Zip},
		{"city", doc.City},
		{"state", doc.State},
		{"country", doc.Country},
		{"phone", doc.Phone},
		{"fax", ""},
		{"mobile", ""},
		{"email", doc.Email},
		{"cc", ""},
		{"bcc", ""},
		{"language_code", ""},
		{"remittancevoucher", strconv.FormatBool(doc.RemittanceVoucher)},
		{"arap_accno", doc.ReceivableAccount},
		{"payment_accno", doc.PaymentAccount},
		{"notes", ""},
		{"terms", strconv.Itoa(doc.Terms)},
		{"typeofcontact", string(doc.TypeOfContact)},
		{"gender", doc.Gender},
	}
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(time.RFC3339)
}

func formatDiscount(d decimal.Decimal) string {
	if d.IsZero() {
		return "0.0"
	}
	return d.String()
}
