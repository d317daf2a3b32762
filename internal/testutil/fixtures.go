package testutil

import (
	"time"

	"github.com/shopspring/decimal"
	"rmasync/internal/activitylog"
	"rmasync/internal/config"
	"rmasync/pkg/models"
)

// Now is the fixed clock used by tests.
var Now = time.Date(2024, 3, 15, 9, 30, 0, 0, time.UTC)

// Clock returns Now.
func Clock() time.Time { return Now }

// Config returns a test-mode configuration with credentials and a small account mapping.
func Config() *config.Config {
	return &config.Config{
		Mode:                config.ModeTest,
		TestMandant:         "acme",
		TestAPIKey:          "secret",
		Active:              true,
		InvoicePrefix:       "INV",
		InvoiceDigits:       6,
		InvoiceDescription:  "Order of [orderdate]",
		CustomerPrefix:      "C",
		GuestCustomerPrefix: "G",
		GuestCatchAll:       "GUEST",
		CreateCustomer:      true,
		ActivityLevel:       config.ActivityLevelComplete,
		PaymentMethods: map[string]config.PaymentAccounts{
			"bacs": {ReceivableAccount: "1100", PaymentAccount: "1020"},
		},
	}
}

// Activity returns a complete-level activity logger on the fixed clock.
func Activity() *activitylog.Logger {
	return activitylog.New(activitylog.Options{
		Level: activitylog.LevelComplete,
		Mode:  "Test",
		RunID: "test-run",
		Now:   Clock,
	})
}

// Order returns a registered customer's order with one line item.
func Order(id, customerID int64) *models.Order {
	return &models.Order{
		ID:            id,
		CustomerID:    customerID,
		Currency:      "CHF",
		CreatedAt:     time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC),
		PaymentMethod: "bacs",
		Billing: models.Address{
			FirstName: "Jane",
			LastName:  "Doe",
			Email:     "jane@example.com",
			Country:   "CH",
		},
		Items: []models.OrderItem{
			{
				ID:       id * 100,
				Name:     "Widget",
				SKU:      "ABC",
				Quantity: 2,
				Price:    decimal.RequireFromString("10.00"),
				Total:    decimal.RequireFromString("20.00"),
			},
		},
		Meta: map[string]string{},
	}
}
