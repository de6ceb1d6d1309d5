// Package reporter renders normalization results for people and for other
// programs.
//
// Supported output formats:
//   - Console: sectioned plain text for terminal display
//   - JSON: the output contract (invoices, products, customers and
//     extraDetails) plus summary and warnings
//   - CSV: one row per invoice line for spreadsheet applications
//   - XLSX: a workbook with Invoices, Items, Products and Customers sheets
//
// Example usage:
//
//	generator, err := reporter.NewReportGenerator(&reporter.ReportConfig{Format: reporter.FormatJSON})
//	err = generator.GenerateReport(result, os.Stdout)
package reporter

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"invoice-normalizer/internal/engine"
	"invoice-normalizer/internal/models"
)

// OutputFormat represents the supported report output formats
type OutputFormat string

const (
	FormatConsole OutputFormat = "console"
	FormatJSON    OutputFormat = "json"
	FormatCSV     OutputFormat = "csv"
	FormatXLSX    OutputFormat = "xlsx"
)

// IsValid checks if the output format is supported
func (f OutputFormat) IsValid() bool {
	switch f {
	case FormatConsole, FormatJSON, FormatCSV, FormatXLSX:
		return true
	default:
		return false
	}
}

// IsBinary reports whether the format should not be written to a terminal
func (f OutputFormat) IsBinary() bool {
	return f == FormatXLSX
}

// ReportConfig holds configuration options for report generation
type ReportConfig struct {
	// Output format
	Format OutputFormat `json:"format"`

	// Section options
	IncludeSummary      bool `json:"include_summary"`
	IncludeWarnings     bool `json:"include_warnings"`
	IncludeExtraDetails bool `json:"include_extra_details"`
	IncludeAmbiguity    bool `json:"include_ambiguity"`

	// Console formatting options
	MaxListItems  int `json:"max_list_items"`
	TableMaxWidth int `json:"table_max_width"`

	// CSV options
	CSVDelimiter rune `json:"csv_delimiter"`
	CSVHeaders   bool `json:"csv_headers"`
}

// DefaultReportConfig returns a default report configuration
func DefaultReportConfig() *ReportConfig {
	return &ReportConfig{
		Format:              FormatConsole,
		IncludeSummary:      true,
		IncludeWarnings:     true,
		IncludeExtraDetails: true,
		IncludeAmbiguity:    true,
		MaxListItems:        50,
		TableMaxWidth:       120,
		CSVDelimiter:        ',',
		CSVHeaders:          true,
	}
}

// Validate validates the report configuration
func (c *ReportConfig) Validate() error {
	if !c.Format.IsValid() {
		return fmt.Errorf("invalid output format: %s", c.Format)
	}

	if c.TableMaxWidth < 50 {
		return fmt.Errorf("table max width must be at least 50 characters, got %d", c.TableMaxWidth)
	}

	if c.MaxListItems < 0 {
		return fmt.Errorf("max list items cannot be negative, got %d", c.MaxListItems)
	}

	return nil
}

// ReportGenerator generates normalization reports in various formats
type ReportGenerator struct {
	config *ReportConfig
}

// NewReportGenerator creates a new report generator with the specified configuration
func NewReportGenerator(config *ReportConfig) (*ReportGenerator, error) {
	if config == nil {
		config = DefaultReportConfig()
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid report configuration: %w", err)
	}

	return &ReportGenerator{
		config: config,
	}, nil
}

// GenerateReport writes a report of result to writer
func (rg *ReportGenerator) GenerateReport(result *engine.Result, writer io.Writer) error {
	if result == nil {
		return fmt.Errorf("normalization result cannot be nil")
	}

	switch rg.config.Format {
	case FormatConsole:
		return rg.generateConsoleReport(result, writer)
	case FormatJSON:
		return rg.generateJSONReport(result, writer)
	case FormatCSV:
		return rg.generateCSVReport(result, writer)
	case FormatXLSX:
		return rg.generateXLSXReport(result, writer)
	default:
		return fmt.Errorf("unsupported output format: %s", rg.config.Format)
	}
}

// generateConsoleReport generates a human-readable console report
func (rg *ReportGenerator) generateConsoleReport(result *engine.Result, writer io.Writer) error {
	w := &errWriter{w: writer}

	w.printf("NORMALIZATION REPORT\n")
	if result.BatchID != "" {
		w.printf("Batch: %s\n", result.BatchID)
	}
	if result.Summary != nil {
		w.printf("Generated: %s\n", result.Summary.StartedAt.Format(time.RFC3339))
		w.printf("Processing Duration: %v\n", result.Summary.Duration)
	}
	w.printf("\n")

	if rg.config.IncludeSummary && result.Summary != nil {
		w.printf("=== SUMMARY ===\n")
		rg.printSummary(w, result)
		w.printf("\n")
	}

	w.printf("=== INVOICES ===\n")
	rg.printInvoices(w, result.Invoices)
	w.printf("\n")

	w.printf("=== PRODUCTS ===\n")
	rg.printProducts(w, result.Products)
	w.printf("\n")

	w.printf("=== CUSTOMERS ===\n")
	rg.printCustomers(w, result.Customers)

	if rg.config.IncludeAmbiguity && result.Ambiguity.Count() > 0 {
		w.printf("\n=== AMBIGUOUS NAMES ===\n")
		rg.printAmbiguity(w, result.Ambiguity)
	}

	if rg.config.IncludeWarnings && len(result.Warnings) > 0 {
		w.printf("\n=== WARNINGS ===\n")
		rg.printWarnings(w, result.Warnings)
	}

	if rg.config.IncludeExtraDetails && result.ExtraDetails != "" {
		w.printf("\n=== EXTRA DETAILS ===\n")
		w.printf("%s\n", result.ExtraDetails)
	}

	return w.err
}

// jsonReport is the JSON report layout. The first four fields are the
// output contract consumed by the UI.
type jsonReport struct {
	BatchID      string                       `json:"batchId,omitempty"`
	Invoices     []*models.NormalizedInvoice  `json:"invoices"`
	Products     []*models.NormalizedProduct  `json:"products"`
	Customers    []*models.NormalizedCustomer `json:"customers"`
	ExtraDetails string                       `json:"extraDetails"`
	Summary      *engine.Summary              `json:"summary,omitempty"`
	Warnings     []engine.Warning             `json:"warnings,omitempty"`
	Files        []engine.FileStatus          `json:"files,omitempty"`
	Ambiguity    *engine.AmbiguityAnalysis    `json:"ambiguity,omitempty"`
}

// generateJSONReport generates a structured JSON report
func (rg *ReportGenerator) generateJSONReport(result *engine.Result, writer io.Writer) error {
	report := jsonReport{
		BatchID:   result.BatchID,
		Invoices:  nonNil(result.Invoices),
		Products:  nonNil(result.Products),
		Customers: nonNil(result.Customers),
		Files:     result.Files,
	}
	if rg.config.IncludeExtraDetails {
		report.ExtraDetails = result.ExtraDetails
	}
	if rg.config.IncludeSummary {
		report.Summary = result.Summary
	}
	if rg.config.IncludeWarnings {
		report.Warnings = result.Warnings
	}
	if rg.config.IncludeAmbiguity {
		report.Ambiguity = result.Ambiguity
	}

	encoder := json.NewEncoder(writer)
	encoder.SetIndent("", "  ")
	encoder.SetEscapeHTML(false)

	return encoder.Encode(report)
}

// itemHeaders are the columns of the per-line CSV report and Items sheet
var itemHeaders = []string{
	"Invoice_ID",
	"Serial",
	"Date",
	"Customer",
	"Customer_ID",
	"Item",
	"Product_ID",
	"Qty",
	"Unit_Ex",
	"Unit_Incl",
	"Tax_Percent",
	"Line_Taxable",
	"Line_Tax",
	"Line_Gross",
	"Invoice_Total",
}

// generateCSVReport generates a CSV report with one row per invoice line.
// Invoices without lines get a single row so that their totals are kept.
func (rg *ReportGenerator) generateCSVReport(result *engine.Result, writer io.Writer) error {
	csvWriter := csv.NewWriter(writer)
	csvWriter.Comma = rg.config.CSVDelimiter

	if rg.config.CSVHeaders {
		if err := csvWriter.Write(itemHeaders); err != nil {
			return fmt.Errorf("failed to write CSV headers: %w", err)
		}
	}

	for _, row := range itemRows(result.Invoices) {
		if err := csvWriter.Write(row); err != nil {
			return fmt.Errorf("failed to write invoice line record: %w", err)
		}
	}

	csvWriter.Flush()
	return csvWriter.Error()
}

// itemRows flattens invoices into rows matching itemHeaders
func itemRows(invoices []*models.NormalizedInvoice) [][]string {
	var rows [][]string
	for _, inv := range invoices {
		date, _ := inv.Fields.String("date")
		prefix := []string{
			fmt.Sprintf("%d", inv.ID),
			inv.Serial(),
			date,
			inv.CustomerName(),
			optionalID(inv.CustomerID),
		}
		total := models.FormatNumber(inv.Totals.Total)

		if len(inv.Items) == 0 {
			row := append(append([]string{}, prefix...), "", "", "", "", "", "", "", "", "", total)
			rows = append(rows, row)
			continue
		}

		for _, item := range inv.Items {
			b := item.Breakdown
			row := append(append([]string{}, prefix...),
				item.Name(),
				optionalID(item.ProductID),
				models.FormatNumber(b.Qty),
				optionalNumber(b.UnitEx),
				optionalNumber(b.UnitIncl),
				optionalNumber(b.TaxPercent),
				models.FormatNumber(b.LineTaxable),
				models.FormatNumber(b.LineTax),
				models.FormatNumber(b.LineGross),
				total,
			)
			rows = append(rows, row)
		}
	}
	return rows
}

// Helper methods for console output formatting

func (rg *ReportGenerator) printSummary(w *errWriter, result *engine.Result) {
	s := result.Summary
	w.printf("Invoices:  %d (%d linked to a customer, %.1f%%)\n",
		s.InvoiceCount, s.LinkedInvoices, calculatePercentage(s.LinkedInvoices, s.InvoiceCount))
	w.printf("Products:  %d\n", s.ProductCount)
	w.printf("Customers: %d\n", s.CustomerCount)

	items := s.LinkedItems + len(s.UnlinkedItems)
	w.printf("Lines:     %d (%d linked to a product, %.1f%%)\n",
		items, s.LinkedItems, calculatePercentage(s.LinkedItems, items))
	w.printf("Skipped:   %d\n", len(s.Skipped))
	w.printf("Grand Total: %s\n", formatMoney(s.GrandTotal))

	if len(s.DegradedPhases) > 0 {
		w.printf("Degraded Phases: %s\n", strings.Join(s.DegradedPhases, ", "))
	}

	if len(result.Files) > 0 {
		failed := 0
		for _, f := range result.Files {
			if f.Status == engine.FileStatusError {
				failed++
			}
		}
		w.printf("Files:     %d (%d failed)\n", len(result.Files), failed)
	}

	if len(s.UnlinkedInvoices) > 0 {
		w.printf("\nInvoices without a customer:\n")
		rg.printList(w, s.UnlinkedInvoices)
	}

	if len(s.UnlinkedItems) > 0 {
		w.printf("\nLines without a product:\n")
		lines := make([]string, len(s.UnlinkedItems))
		for i, u := range s.UnlinkedItems {
			lines[i] = fmt.Sprintf("invoice %d: %s", u.InvoiceID, orDash(u.Name))
		}
		rg.printList(w, lines)
	}
}

func (rg *ReportGenerator) printInvoices(w *errWriter, invoices []*models.NormalizedInvoice) {
	w.printf("Total Invoices: %d\n\n", len(invoices))

	for i, inv := range invoices {
		if rg.limitReached(w, i, len(invoices)) {
			break
		}
		w.printf("  %d. %s  customer: %s (%s)\n", inv.ID, inv.Label(), orDash(inv.CustomerName()), optionalID(inv.CustomerID))
		for _, item := range inv.Items {
			w.printf("       - %s x %s  product: %s  gross: %s\n",
				truncate(orDash(item.Name()), rg.config.TableMaxWidth/3),
				models.FormatNumber(item.Breakdown.Qty),
				orDash(optionalID(item.ProductID)),
				formatMoney(item.Breakdown.LineGross))
		}
		w.printf("       taxable: %s  tax: %s  charges: %s  total: %s\n",
			formatMoney(inv.Totals.TaxableAmount),
			formatMoney(inv.Totals.TaxTotal),
			formatMoney(inv.Totals.ChargesTotal),
			formatMoney(inv.Totals.Total))
	}
}

func (rg *ReportGenerator) printProducts(w *errWriter, products []*models.NormalizedProduct) {
	w.printf("Total Products: %d\n\n", len(products))

	for i, p := range products {
		if rg.limitReached(w, i, len(products)) {
			break
		}
		w.printf("  %d. %s  qty: %s  unit: %s  tax: %s  with tax: %s\n",
			p.ID,
			truncate(p.Name, rg.config.TableMaxWidth/3),
			models.FormatNumber(p.Quantity),
			orDash(optionalNumber(p.UnitPrice)),
			orDash(p.Tax.String()),
			orDash(optionalNumber(p.PriceWithTax)))
	}
}

func (rg *ReportGenerator) printCustomers(w *errWriter, customers []*models.NormalizedCustomer) {
	w.printf("Total Customers: %d\n\n", len(customers))

	for i, c := range customers {
		if rg.limitReached(w, i, len(customers)) {
			break
		}
		phone := ""
		if c.Phone != nil {
			phone = *c.Phone
		}
		w.printf("  %d. %s  phone: %s  total purchase: %s\n",
			c.ID, truncate(c.Name, rg.config.TableMaxWidth/3), orDash(phone), formatMoney(c.TotalPurchase))
	}
}

func (rg *ReportGenerator) printAmbiguity(w *errWriter, analysis *engine.AmbiguityAnalysis) {
	lines := append(analysis.Customers.Lines(), analysis.Products.Lines()...)
	for _, q := range analysis.Queries {
		lines = append(lines, fmt.Sprintf("invoice %d: %q matched %s ids %v, linked to %d",
			q.InvoiceID, q.Query, q.Entity, q.CandidateIDs, q.ChosenID))
	}
	rg.printList(w, lines)
}

func (rg *ReportGenerator) printWarnings(w *errWriter, warnings []engine.Warning) {
	lines := make([]string, len(warnings))
	for i, warning := range warnings {
		line := fmt.Sprintf("[%s] %s: %s", warning.Phase, warning.Code, warning.Message)
		if warning.Source != "" {
			line += fmt.Sprintf(" (%s)", warning.Source)
		}
		lines[i] = line
	}
	rg.printList(w, lines)
}

func (rg *ReportGenerator) printList(w *errWriter, lines []string) {
	for i, line := range lines {
		if rg.limitReached(w, i, len(lines)) {
			break
		}
		w.printf("  - %s\n", truncate(line, rg.config.TableMaxWidth))
	}
}

// limitReached prints the overflow notice once index i reaches the limit
func (rg *ReportGenerator) limitReached(w *errWriter, i, total int) bool {
	limit := rg.config.MaxListItems
	if limit <= 0 || i < limit {
		return false
	}
	w.printf("  ... and %d more\n", total-limit)
	return true
}

// UpdateConfiguration updates the report generator configuration
func (rg *ReportGenerator) UpdateConfiguration(config *ReportConfig) error {
	if err := config.Validate(); err != nil {
		return fmt.Errorf("invalid report configuration: %w", err)
	}

	rg.config = config
	return nil
}

// GetConfiguration returns the current configuration
func (rg *ReportGenerator) GetConfiguration() *ReportConfig {
	return rg.config
}

// errWriter keeps the first write error so that console output can be
// written without checking every line
type errWriter struct {
	w   io.Writer
	err error
}

func (ew *errWriter) printf(format string, args ...interface{}) {
	if ew.err != nil {
		return
	}
	_, ew.err = fmt.Fprintf(ew.w, format, args...)
}

func calculatePercentage(part, total int) float64 {
	if total == 0 {
		return 0.0
	}
	return float64(part) / float64(total) * 100.0
}

func formatMoney(v float64) string {
	return fmt.Sprintf("%.2f", v)
}

func optionalID(id *int) string {
	if id == nil {
		return ""
	}
	return fmt.Sprintf("%d", *id)
}

func optionalNumber(v *float64) string {
	if v == nil {
		return ""
	}
	return models.FormatNumber(*v)
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func truncate(s string, n int) string {
	r := []rune(s)
	if n <= 0 || len(r) <= n {
		return s
	}
	if n <= 3 {
		return string(r[:n])
	}
	return string(r[:n-3]) + "..."
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
