// Package customer assembles Run my Accounts customer documents and resolves the
// customer number an order is invoiced to.
package customer

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"golang.org/x/text/language"
	"golang.org/x/text/language/display"
	"rmasync/pkg/models"
	"rmasync/pkg/services"
)

// ErrUnknownSource is returned for a Source that is neither a user nor a guest order.
var ErrUnknownSource = errors.New("unknown customer source")

// SourceKind tells where customer data is read from.
type SourceKind int

const (
	KindUser SourceKind = iota + 1
	KindGuestOrder
)

// Source identifies a registered user or a guest order.
type Source struct {
	Kind SourceKind
	ID   int64
}

// ByUser reads customer data from a registered user's billing profile.
func ByUser(userID int64) Source {
	return Source{Kind: KindUser, ID: userID}
}

// ByGuestOrder reads customer data from the billing fields of a guest order.
func ByGuestOrder(orderID int64) Source {
	return Source{Kind: KindGuestOrder, ID: orderID}
}

// String names the source in log entries, e.g. "user 12".
func (s Source) String() string {
	switch s.Kind {
	case KindUser:
		return "user " + strconv.FormatInt(s.ID, 10)
	case KindGuestOrder:
		return "guest order " + strconv.FormatInt(s.ID, 10)
	}
	return "unknown " + strconv.FormatInt(s.ID, 10)
}

// Builder builds customer documents.
type Builder struct {
	userPrefix  string
	guestPrefix string
	profiles    services.ProfileStore
	orders      services.OrderReader
	now         func() time.Time
}

// NewBuilder creates a Builder. now defaults to time.Now.
func NewBuilder(userPrefix, guestPrefix string, profiles services.ProfileStore, orders services.OrderReader, now func() time.Time) *Builder {
	if now == nil {
		now = time.Now
	}
	return &Builder{
		userPrefix:  userPrefix,
		guestPrefix: guestPrefix,
		profiles:    profiles,
		orders:      orders,
		now:         now,
	}
}

// Number returns the customer number this system assigns to the source.
func (b *Builder) Number(src Source) string {
	if src.Kind == KindGuestOrder {
		return CustomerNumber(b.guestPrefix, src.ID)
	}
	return CustomerNumber(b.userPrefix, src.ID)
}

// Build reads the source and returns its customer document.
func (b *Builder) Build(ctx context.Context, src Source) (*models.Customer, error) {
	const op = "Build"

	switch src.Kind {
	case KindUser:
		profile, err := b.profiles.Profile(ctx, src.ID)
		if err != nil {
			return nil, fmt.Errorf("%s: failed to read %s: %w", op, src, err)
		}
		doc := fromAddress(b.Number(src), profile.Billing, b.now())
		doc.ReceivableAccount = profile.BillingAccount
		return doc, nil

	case KindGuestOrder:
		order, err := b.orders.Order(ctx, src.ID)
		if err != nil {
			return nil, fmt.Errorf("%s: failed to read %s: %w", op, src, err)
		}
		return fromAddress(b.Number(src), order.Billing, b.now()), nil
	}

	return nil, fmt.Errorf("%s: %w: %d", op, ErrUnknownSource, src.Kind)
}

func fromAddress(number string, a models.Address, now time.Time) *models.Customer {
	isCompany := strings.TrimSpace(a.Company) != ""

	name := a.FirstName + " " + a.LastName
	contact := models.ContactPerson
	if isCompany {
		name = a.Company
		contact = models.ContactCompany
	}

	salutation, gender := Salutation(a.Title)

	return &models.Customer{
		CustomerNumber: number,
		Name:           name,
		Created:        time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC),
		Salutation:     salutation,
		FirstName:      a.FirstName,
		LastName:       a.LastName,
		Address1:       a.Address1,
		Address2:       a.Address2,
		Zip:            a.Postcode,
		City:           a.City,
		State:          a.State,
		Country:        CountryName(a.Country),
		Phone:          a.Phone,
		Email:          a.Email,
		TypeOfContact:  contact,
		Gender:         gender,
	}
}

// CustomerNumber is prefix followed by the local id.
func CustomerNumber(prefix string, id int64) string {
	return prefix + strconv.FormatInt(id, 10)
}

// Salutation maps the stored title flag. Only 1 means Mr./M; every other value,
// including an unset one, yields Ms./F.
func Salutation(title int) (salutation, gender string) {
	if title == 1 {
		return "Mr.", "M"
	}
	return "Ms.", "F"
}

// CountryName returns the English name of an ISO 3166 region code, or the code itself
// when it is unknown.
func CountryName(code string) string {
	code = strings.TrimSpace(code)
	if code == "" {
		return ""
	}
	region, err := language.ParseRegion(code)
	if err != nil {
		return code
	}
	if name := display.Regions(language.English).Name(region); name != "" {
		return name
	}
	return code
}
