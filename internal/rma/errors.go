package rma

import (
	"errors"
	"fmt"
)

// Client errors. Every failed call also leaves an error entry in the activity log.
var (
	// ErrMissingCredentials is returned when the mandant or API key of the active mode is empty.
	// No request is made.
	ErrMissingCredentials = errors.New("missing Run my Accounts API credentials")

	// ErrTransport is returned when the request could not be completed.
	ErrTransport = errors.New("transport error")

	// ErrUnexpectedStatus is returned when the service answers with a non-200 status.
	ErrUnexpectedStatus = errors.New("unexpected response status")

	// ErrParse is returned when the response body is not well-formed XML.
	ErrParse = errors.New("malformed XML response")

	// ErrNotFound is returned for 404 answers.
	ErrNotFound = errors.New("not found")

	// ErrOwnershipMismatch is returned when a PDF is requested for an invoice of another customer.
	ErrOwnershipMismatch = errors.New("invoice does not belong to the requesting customer")

	// ErrWrongContentType is returned when the PDF endpoint answers with anything but application/pdf.
	ErrWrongContentType = errors.New("unexpected content type")
)

// APIError describes a failed call to the Run my Accounts API.
type APIError struct {
	// Op is the client operation (e.g. "FetchCustomers").
	Op string

	// StatusCode and Status are set when the service answered.
	StatusCode int
	Status     string

	// URL is the request URL with the API key redacted.
	URL string

	// Err is the underlying error, matching one of the package sentinels.
	Err error
}

// Error implements the error interface.
func (e *APIError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("rma: %s failed (%s): %v", e.Op, e.Status, e.Err)
	}
	return fmt.Sprintf("rma: %s failed: %v", e.Op, e.Err)
}

// Unwrap returns the underlying error.
func (e *APIError) Unwrap() error {
	return e.Err
}

// Is reports whether the underlying error matches target.
func (e *APIError) Is(target error) bool {
	return errors.Is(e.Err, target)
}
