package reporter

import (
	"fmt"
	"io"

	"invoice-normalizer/internal/engine"
	"invoice-normalizer/internal/models"

	"github.com/xuri/excelize/v2"
)

// Sheet names of the XLSX report
const (
	SheetInvoices  = "Invoices"
	SheetItems     = "Items"
	SheetProducts  = "Products"
	SheetCustomers = "Customers"
)

// generateXLSXReport writes a workbook with one sheet per entity list
func (rg *ReportGenerator) generateXLSXReport(result *engine.Result, writer io.Writer) error {
	f := excelize.NewFile()
	defer f.Close()

	// the default sheet is renamed rather than left empty
	if err := f.SetSheetName(f.GetSheetName(0), SheetInvoices); err != nil {
		return fmt.Errorf("rename default sheet: %w", err)
	}
	for _, sheet := range []string{SheetItems, SheetProducts, SheetCustomers} {
		if _, err := f.NewSheet(sheet); err != nil {
			return fmt.Errorf("create sheet %s: %w", sheet, err)
		}
	}

	invoiceRows := make([][]interface{}, 0, len(result.Invoices))
	for _, inv := range result.Invoices {
		date, _ := inv.Fields.String("date")
		invoiceRows = append(invoiceRows, []interface{}{
			inv.ID, inv.Serial(), date, inv.CustomerName(), idCell(inv.CustomerID), len(inv.Items),
			inv.Totals.TaxableAmount, inv.Totals.TaxTotal, inv.Totals.ChargesTotal, inv.Totals.Total,
		})
	}
	if err := writeSheet(f, SheetInvoices, []string{
		"ID", "Serial", "Date", "Customer", "Customer ID", "Lines",
		"Taxable Amount", "Tax Total", "Charges Total", "Total",
	}, invoiceRows); err != nil {
		return err
	}

	var itemCells [][]interface{}
	for _, row := range itemRows(result.Invoices) {
		cells := make([]interface{}, len(row))
		for i, v := range row {
			cells[i] = v
		}
		itemCells = append(itemCells, cells)
	}
	if err := writeSheet(f, SheetItems, itemHeaders, itemCells); err != nil {
		return err
	}

	productRows := make([][]interface{}, 0, len(result.Products))
	for _, p := range result.Products {
		productRows = append(productRows, []interface{}{
			p.ID, p.Name, textCell(p.Description), p.Quantity, numberCell(p.UnitPrice), p.Tax.String(), numberCell(p.PriceWithTax),
		})
	}
	if err := writeSheet(f, SheetProducts, []string{
		"ID", "Name", "Description", "Quantity", "Unit Price", "Tax", "Price With Tax",
	}, productRows); err != nil {
		return err
	}

	customerRows := make([][]interface{}, 0, len(result.Customers))
	for _, c := range result.Customers {
		customerRows = append(customerRows, []interface{}{
			c.ID, c.Name, textCell(c.Address), textCell(c.Phone), c.TotalPurchase,
		})
	}
	if err := writeSheet(f, SheetCustomers, []string{
		"ID", "Name", "Address", "Phone", "Total Purchase",
	}, customerRows); err != nil {
		return err
	}

	_ = f.SetColWidth(SheetInvoices, "B", "D", 22)
	_ = f.SetColWidth(SheetItems, "F", "F", 36)
	_ = f.SetColWidth(SheetProducts, "B", "C", 32)
	_ = f.SetColWidth(SheetCustomers, "B", "C", 32)

	f.SetActiveSheet(0)
	if _, err := f.WriteTo(writer); err != nil {
		return fmt.Errorf("xlsx write: %w", err)
	}
	return nil
}

func writeSheet(f *excelize.File, sheet string, headers []string, rows [][]interface{}) error {
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		if err := f.SetCellValue(sheet, cell, h); err != nil {
			return fmt.Errorf("write %s header: %w", sheet, err)
		}
	}

	for r, row := range rows {
		cell, _ := excelize.CoordinatesToCellName(1, r+2)
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return fmt.Errorf("write %s row %d: %w", sheet, r+1, err)
		}
	}

	if err := f.SetPanes(sheet, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	}); err != nil {
		return fmt.Errorf("freeze %s header: %w", sheet, err)
	}
	return nil
}

func idCell(id *int) interface{} {
	if id == nil {
		return nil
	}
	return *id
}

func numberCell(v *float64) interface{} {
	if v == nil {
		return nil
	}
	return models.Round6(*v)
}

func textCell(s *string) interface{} {
	if s == nil {
		return nil
	}
	return *s
}
