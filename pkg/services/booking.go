package services

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// BookingType tells whether a project booking is income or expense.
type BookingType string

const (
	BookingReceivable BookingType = "receivable"
	BookingPayable    BookingType = "payable"
)

// BookingReporter lists all Run my Accounts transactions linked to a project.
type BookingReporter interface {
	// ProjectBookings returns the bookings sorted by date. refresh bypasses any cached report.
	ProjectBookings(ctx context.Context, refresh bool) ([]ProjectBooking, error)
}

// ProjectBooking is one income or expense line booked on a project.
type ProjectBooking struct {
	Type          BookingType     `json:"type"`
	AccountNumber string          `json:"account_number"`
	AccountName   string          `json:"account_name"`
	ProjectNumber string          `json:"project_number"`
	Date          time.Time       `json:"date"`
	Description   string          `json:"description"`
	Value         decimal.Decimal `json:"value"`
}
