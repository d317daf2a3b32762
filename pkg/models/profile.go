package models

import "time"

// CustomerProfile is the shop account of a registered customer.
type CustomerProfile struct {
	UserID       int64     `json:"user_id"`
	DisplayName  string    `json:"display_name"`
	RegisteredAt time.Time `json:"registered_at"`
	Billing      Address   `json:"billing"`

	// CustomerNumber links the account to its Run my Accounts customer.
	CustomerNumber string `json:"customer_number"`
	// PaymentPeriodDays overrides the global payment period when set.
	PaymentPeriodDays *int `json:"payment_period_days,omitempty"`
	// BillingAccount is the receivable account used for the customer.
	BillingAccount string `json:"billing_account"`
}
