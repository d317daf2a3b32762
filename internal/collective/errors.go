package collective

import "errors"

var (
	// ErrUnknownInvoice is returned when a selection names an invoice the plan does not contain.
	ErrUnknownInvoice = errors.New("unknown collective invoice")

	// ErrUnresolvedCustomer is returned when a selection names a group without customer number.
	ErrUnresolvedCustomer = errors.New("collective invoice has no customer number")

	// ErrOrderNotInGroup is returned when a selection names an order outside its group.
	ErrOrderNotInGroup = errors.New("order is not part of the collective invoice")
)
