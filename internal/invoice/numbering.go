package invoice

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"rmasync/internal/rma"
)

// DescriptionDateLayout is the order date format used for the [orderdate] placeholder.
const DescriptionDateLayout = "02.01.2006"

var lineBreakTag = regexp.MustCompile(`(?i)<br\s*/?>`)

// InvoiceNumber returns prefix followed by the order id, zero-padded so that the whole
// number is digits characters wide. A prefix longer than digits disables padding.
func InvoiceNumber(prefix string, digits int, orderID int64) string {
	width := digits - len(prefix)
	if width < 0 {
		width = 0
	}
	return fmt.Sprintf("%s%0*d", prefix, width, orderID)
}

// DueDate returns now plus the payment period in whole days.
func DueDate(now time.Time, days int) time.Time {
	return now.Add(time.Duration(days) * 86400 * time.Second)
}

// ResolvePartNumber applies the fallback SKU. Without a fallback the SKU is kept as is.
// A nil catalog means the catalog could not be fetched; only empty SKUs are replaced then.
func ResolvePartNumber(sku string, catalog rma.PartSet, fallback string) string {
	if fallback == "" {
		return sku
	}
	if sku == "" {
		return fallback
	}
	if catalog != nil && !catalog.Contains(sku) {
		return fallback
	}
	return sku
}

// ExpandDescription replaces [orderdate] in the configured description.
func ExpandDescription(template string, orderDate time.Time) string {
	return strings.ReplaceAll(template, "[orderdate]", orderDate.Format(DescriptionDateLayout))
}

// plainAddress turns a formatted shipping address into plain text lines.
func plainAddress(formatted string) string {
	return lineBreakTag.ReplaceAllString(formatted, "\n")
}
