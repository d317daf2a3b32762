package invoice_test

import (
	"fmt"
	"time"

	"rmasync/internal/invoice"
	"rmasync/internal/rma"
)

func ExampleInvoiceNumber() {
	fmt.Println(invoice.InvoiceNumber("INV", 8, 42))
	fmt.Println(invoice.InvoiceNumber("INV", 2, 42))
	// Output:
	// INV00042
	// INV42
}

func ExampleExpandDescription() {
	created := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	fmt.Println(invoice.ExpandDescription("Order of [orderdate]", created))
	// Output: Order of 01.03.2024
}

func ExampleResolvePartNumber() {
	catalog := rma.PartSet{"ABC": {}}

	fmt.Println(invoice.ResolvePartNumber("ABC", catalog, "MISC"))
	fmt.Println(invoice.ResolvePartNumber("XYZ", catalog, "MISC"))
	fmt.Println(invoice.ResolvePartNumber("XYZ", catalog, ""))
	// Output:
	// ABC
	// MISC
	// XYZ
}
