package submission

import "errors"

var (
	// ErrMissingInvoiceData is returned when a document has no invoice number or no orders.
	ErrMissingInvoiceData = errors.New("missing invoice data")

	// ErrCustomerLinked is returned when a new customer is requested for a source that
	// already carries a customer number.
	ErrCustomerLinked = errors.New("customer already linked")

	// ErrCustomerCreationDisabled is returned for new customers while customer creation is off.
	ErrCustomerCreationDisabled = errors.New("customer creation is disabled")

	// ErrDeactivated is returned while the integration is switched off.
	ErrDeactivated = errors.New("run my accounts integration is deactivated")

	// ErrRejected is returned by CreateGuestCustomer when the document was not acknowledged.
	ErrRejected = errors.New("document rejected")
)
