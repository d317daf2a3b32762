// Package export writes collective invoicing plans to spreadsheets.
package export

import (
	"fmt"
	"io"
	"strconv"

	"github.com/xuri/excelize/v2"
	"rmasync/internal/collective"
	"rmasync/pkg/models"
)

// Sheet names of the workbook.
const (
	PlanSheet   = "Plan"
	ErrorsSheet = "Errors"
)

// PlanHeaders are the columns of both sheets.
var PlanHeaders = []string{
	"Invoice", "Customer", "Name", "Email", "Order", "Part number", "Description", "Quantity", "Sell price", "Invoice total",
}

// WritePlan writes one row per line item of the plan. Groups that cannot be invoiced
// go to a second sheet.
func WritePlan(w io.Writer, plan *collective.Plan) error {
	const op = "WritePlan"

	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", PlanSheet); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if err := writeGroups(f, PlanSheet, plan.Groups); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if len(plan.Errors) > 0 {
		if _, err := f.NewSheet(ErrorsSheet); err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}
		if err := writeGroups(f, ErrorsSheet, plan.Errors); err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("%s: failed to write workbook: %w", op, err)
	}
	return nil
}

func writeGroups(f *excelize.File, sheet string, groups []*collective.Group) error {
	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return err
	}
	money, err := f.NewStyle(&excelize.Style{NumFmt: 2}) // 0.00
	if err != nil {
		return err
	}

	header := make([]interface{}, len(PlanHeaders))
	for i, h := range PlanHeaders {
		header[i] = h
	}
	if err := f.SetSheetRow(sheet, "A1", &header); err != nil {
		return err
	}
	if err := f.SetRowStyle(sheet, 1, 1, bold); err != nil {
		return err
	}

	row := 2
	for _, g := range groups {
		total := g.Total().InexactFloat64()
		for _, line := range lines(g) {
			cell, err := excelize.CoordinatesToCellName(1, row)
			if err != nil {
				return err
			}
			values := []interface{}{
				g.InvoiceNumber,
				g.CustomerNumber,
				g.UserName,
				g.UserEmail,
				originatingOrder(line),
				line.PartNumber,
				line.Description,
				line.Quantity,
				line.SellPrice.InexactFloat64(),
				total,
			}
			if err := f.SetSheetRow(sheet, cell, &values); err != nil {
				return err
			}
			row++
		}
	}

	if row > 2 {
		if err := f.SetCellStyle(sheet, "I2", fmt.Sprintf("J%d", row-1), money); err != nil {
			return err
		}
	}
	if err := f.SetColWidth(sheet, "G", "G", 48); err != nil {
		return err
	}
	return f.AutoFilter(sheet, fmt.Sprintf("A1:J%d", max(row-1, 1)), nil)
}

// lines returns the invoice lines of a group, or one empty line for groups without a
// document so that error groups still show up.
func lines(g *collective.Group) []models.LineItem {
	if g.Invoice == nil || len(g.Invoice.LineItems) == 0 {
		return []models.LineItem{{}}
	}
	return g.Invoice.LineItems
}

func originatingOrder(line models.LineItem) string {
	if line.OriginatingOrderID == nil {
		return ""
	}
	return strconv.FormatInt(*line.OriginatingOrderID, 10)
}
