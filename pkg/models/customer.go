package models

import "time"

// ContactType distinguishes companies from private persons.
type ContactType string

const (
	ContactCompany ContactType = "company"
	ContactPerson  ContactType = "person"
)

// Customer is the canonical customer document submitted to Run my Accounts.
type Customer struct {
	CustomerNumber    string      `json:"customer_number"`
	Name              string      `json:"name"`
	Created           time.Time   `json:"created"`
	Salutation        string      `json:"salutation"`
	FirstName         string      `json:"first_name"`
	LastName          string      `json:"last_name"`
	Address1          string      `json:"address1"`
	Address2          string      `json:"address2"`
	Zip               string      `json:"zip"`
	City              string      `json:"city"`
	State             string      `json:"state"`
	Country           string      `json:"country"`
	Phone             string      `json:"phone"`
	Email             string      `json:"email"`
	TypeOfContact     ContactType `json:"type_of_contact"`
	Gender            string      `json:"gender"`
	ReceivableAccount string      `json:"receivable_account"` // arap_accno
	PaymentAccount    string      `json:"payment_account"`
	RemittanceVoucher bool        `json:"remittance_voucher"`
	Terms             int         `json:"terms"`
}
