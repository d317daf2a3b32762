package export_test

import (
	"bytes"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
	"rmasync/internal/collective"
	"rmasync/internal/export"
	"rmasync/pkg/models"
)

func orderID(id int64) *int64 { return &id }

func TestWritePlan(t *testing.T) {
	plan := &collective.Plan{
		Groups: []*collective.Group{
			{
				InvoiceNumber:  "INV000001",
				CustomerNumber: "C5",
				UserName:       "Jane Doe",
				UserEmail:      "jane@example.com",
				OrderIDs:       []int64{1, 2},
				Invoice: &models.Invoice{
					InvoiceNumber: "INV000001",
					LineItems: []models.LineItem{
						{PartNumber: "ABC", Description: "Widget", Quantity: 2, SellPrice: decimal.RequireFromString("20.00"), OriginatingOrderID: orderID(1)},
						{PartNumber: "ABC", Description: "Widget", Quantity: 1, SellPrice: decimal.RequireFromString("10.00"), OriginatingOrderID: orderID(2)},
					},
				},
			},
		},
		Errors: []*collective.Group{
			{InvoiceNumber: "INV000008", UserName: "No Number", OrderIDs: []int64{8}},
		},
	}

	var buf bytes.Buffer
	require.NoError(t, export.WritePlan(&buf, plan))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{export.PlanSheet, export.ErrorsSheet}, f.GetSheetList())

	rows, err := f.GetRows(export.PlanSheet, excelize.Options{RawCellValue: true})
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, export.PlanHeaders, rows[0])
	assert.Equal(t, []string{"INV000001", "C5", "Jane Doe", "jane@example.com", "1", "ABC", "Widget", "2", "20", "30"}, rows[1])
	assert.Equal(t, "2", rows[2][4])

	errRows, err := f.GetRows(export.ErrorsSheet)
	require.NoError(t, err)
	require.Len(t, errRows, 2)
	assert.Equal(t, "INV000008", errRows[1][0])
	assert.Equal(t, "No Number", errRows[1][2])
}

func TestWritePlanWithoutErrors(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, export.WritePlan(&buf, &collective.Plan{}))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{export.PlanSheet}, f.GetSheetList())
}
