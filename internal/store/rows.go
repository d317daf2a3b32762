package store

import (
	"time"

	"github.com/shopspring/decimal"
	"rmasync/internal/activitylog"
	"rmasync/pkg/models"
)

// OrderRow is a shop order.
type OrderRow struct {
	ID               int64 `gorm:"primaryKey;autoIncrement:false"`
	Number           string
	CustomerID       int64 `gorm:"index"`
	Currency         string
	CreatedAt        time.Time `gorm:"index"`
	PricesIncludeTax bool
	PaymentMethod    string         `gorm:"index"`
	Billing          models.Address `gorm:"embedded;embeddedPrefix:billing_"`
	NeedsShipping    bool
	ShippingAddress  string
	ShippingMethod   string
	ShippingTotal    decimal.Decimal `gorm:"type:numeric(20,4)"`
	ShippingTax      decimal.Decimal `gorm:"type:numeric(20,4)"`
	CustomerNote     string

	Items []OrderItemRow `gorm:"foreignKey:OrderID"`
	Meta  []OrderMetaRow `gorm:"foreignKey:OrderID"`
}

func (OrderRow) TableName() string { return "orders" }

// OrderItemRow is one product line.
type OrderItemRow struct {
	ID          int64 `gorm:"primaryKey;autoIncrement:false"`
	OrderID     int64 `gorm:"index"`
	Name        string
	SKU         string
	ProductID   int64
	ProductType string
	Quantity    int
	Price       decimal.Decimal `gorm:"type:numeric(20,4)"`
	Total       decimal.Decimal `gorm:"type:numeric(20,4)"`
	Tax         decimal.Decimal `gorm:"type:numeric(20,4)"`

	// rental booking, set when RentalPickupAt is not nil
	RentalPickupAt        *time.Time
	RentalDropoffAt       *time.Time
	RentalCancellation    bool
	RentalOriginalOrderID int64
}

func (OrderItemRow) TableName() string { return "order_items" }

// OrderMetaRow is one integration value stored on an order.
type OrderMetaRow struct {
	OrderID int64  `gorm:"primaryKey;autoIncrement:false"`
	Key     string `gorm:"primaryKey;size:64"`
	Value   string `gorm:"index"`
}

func (OrderMetaRow) TableName() string { return "order_meta" }

// OrderNoteRow is a note appended to an order.
type OrderNoteRow struct {
	ID        uint  `gorm:"primaryKey"`
	OrderID   int64 `gorm:"index"`
	Note      string
	CreatedAt time.Time
}

func (OrderNoteRow) TableName() string { return "order_notes" }

// ProfileRow is a registered customer account.
type ProfileRow struct {
	UserID            int64 `gorm:"primaryKey;autoIncrement:false"`
	DisplayName       string
	RegisteredAt      time.Time
	Billing           models.Address `gorm:"embedded;embeddedPrefix:billing_"`
	CustomerNumber    string         `gorm:"index"`
	PaymentPeriodDays *int
	BillingAccount    string
}

func (ProfileRow) TableName() string { return "customer_profiles" }

// ActivityRow is a persisted activity log entry.
type ActivityRow struct {
	ID        uint      `gorm:"primaryKey"`
	Time      time.Time `gorm:"column:logged_at;index"`
	RunID     string    `gorm:"index;size:36"`
	Status    string    `gorm:"size:16"`
	SectionID string
	Section   string
	Mode      string `gorm:"size:8"`
	Message   string `gorm:"type:text"`
}

func (ActivityRow) TableName() string { return "rma_log" }

func orderFromRow(r *OrderRow) *models.Order {
	o := &models.Order{
		ID:               r.ID,
		Number:           r.Number,
		CustomerID:       r.CustomerID,
		Currency:         r.Currency,
		CreatedAt:        r.CreatedAt,
		PricesIncludeTax: r.PricesIncludeTax,
		PaymentMethod:    r.PaymentMethod,
		Billing:          r.Billing,
		NeedsShipping:    r.NeedsShipping,
		ShippingAddress:  r.ShippingAddress,
		ShippingMethod:   r.ShippingMethod,
		ShippingTotal:    r.ShippingTotal,
		ShippingTax:      r.ShippingTax,
		CustomerNote:     r.CustomerNote,
		Meta:             make(map[string]string, len(r.Meta)),
	}
	for _, m := range r.Meta {
		o.Meta[m.Key] = m.Value
	}
	for _, it := range r.Items {
		item := models.OrderItem{
			ID:          it.ID,
			Name:        it.Name,
			SKU:         it.SKU,
			ProductID:   it.ProductID,
			ProductType: it.ProductType,
			Quantity:    it.Quantity,
			Price:       it.Price,
			Total:       it.Total,
			Tax:         it.Tax,
		}
		if it.RentalPickupAt != nil {
			item.Rental = &models.RentalBooking{
				PickupAt:        *it.RentalPickupAt,
				Cancellation:    it.RentalCancellation,
				OriginalOrderID: it.RentalOriginalOrderID,
			}
			if it.RentalDropoffAt != nil {
				item.Rental.DropoffAt = *it.RentalDropoffAt
			}
		}
		o.Items = append(o.Items, item)
	}
	return o
}

func rowFromOrder(o *models.Order) *OrderRow {
	r := &OrderRow{
		ID:               o.ID,
		Number:           o.Number,
		CustomerID:       o.CustomerID,
		Currency:         o.Currency,
		CreatedAt:        o.CreatedAt,
		PricesIncludeTax: o.PricesIncludeTax,
		PaymentMethod:    o.PaymentMethod,
		Billing:          o.Billing,
		NeedsShipping:    o.NeedsShipping,
		ShippingAddress:  o.ShippingAddress,
		ShippingMethod:   o.ShippingMethod,
		ShippingTotal:    o.ShippingTotal,
		ShippingTax:      o.ShippingTax,
		CustomerNote:     o.CustomerNote,
	}
	for _, it := range o.Items {
		item := OrderItemRow{
			ID:          it.ID,
			OrderID:     o.ID,
			Name:        it.Name,
			SKU:         it.SKU,
			ProductID:   it.ProductID,
			ProductType: it.ProductType,
			Quantity:    it.Quantity,
			Price:       it.Price,
			Total:       it.Total,
			Tax:         it.Tax,
		}
		if it.Rental != nil {
			pickup, dropoff := it.Rental.PickupAt, it.Rental.DropoffAt
			item.RentalPickupAt = &pickup
			item.RentalDropoffAt = &dropoff
			item.RentalCancellation = it.Rental.Cancellation
			item.RentalOriginalOrderID = it.Rental.OriginalOrderID
		}
		r.Items = append(r.Items, item)
	}
	for k, v := range o.Meta {
		r.Meta = append(r.Meta, OrderMetaRow{OrderID: o.ID, Key: k, Value: v})
	}
	return r
}

func profileFromRow(r *ProfileRow) *models.CustomerProfile {
	return &models.CustomerProfile{
		UserID:            r.UserID,
		DisplayName:       r.DisplayName,
		RegisteredAt:      r.RegisteredAt,
		Billing:           r.Billing,
		CustomerNumber:    r.CustomerNumber,
		PaymentPeriodDays: r.PaymentPeriodDays,
		BillingAccount:    r.BillingAccount,
	}
}

func rowFromProfile(p *models.CustomerProfile) *ProfileRow {
	return &ProfileRow{
		UserID:            p.UserID,
		DisplayName:       p.DisplayName,
		RegisteredAt:      p.RegisteredAt,
		Billing:           p.Billing,
		CustomerNumber:    p.CustomerNumber,
		PaymentPeriodDays: p.PaymentPeriodDays,
		BillingAccount:    p.BillingAccount,
	}
}

func activityFromRow(r *ActivityRow) activitylog.Entry {
	return activitylog.Entry{
		Time:      r.Time,
		RunID:     r.RunID,
		Status:    activitylog.Status(r.Status),
		SectionID: r.SectionID,
		Section:   r.Section,
		Mode:      r.Mode,
		Message:   r.Message,
	}
}

func rowFromActivity(e activitylog.Entry) *ActivityRow {
	return &ActivityRow{
		Time:      e.Time,
		RunID:     e.RunID,
		Status:    string(e.Status),
		SectionID: e.SectionID,
		Section:   e.Section,
		Mode:      e.Mode,
		Message:   e.Message,
	}
}
