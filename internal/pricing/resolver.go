// Package pricing reconciles the tax and price figures of extracted invoices.
//
// Extracted invoices state tax in several overlapping ways: an invoice-level
// taxes block (CGST/SGST/IGST/GST, each a percent, an amount or a formatted
// string), per-line percents, per-line tax amounts and inclusive or exclusive
// unit prices. The functions here pick whichever figures are present, derive
// the missing ones algebraically and produce line and invoice totals.
//
// Example usage:
//
//	pct := pricing.ResolveInvoiceTaxPercent(raw)
//	line := pricing.ResolveLineBreakdown(item, pct)
//	totals := pricing.ComputeInvoiceTotals(raw, items)
//
// None of the functions fail; unusable fields simply leave the
// corresponding value unknown.
package pricing

import (
	"invoice-normalizer/internal/models"
)

// Tax kinds read from an invoice's taxes block
const (
	TaxCGST = "CGST"
	TaxSGST = "SGST"
	TaxIGST = "IGST"
	TaxGST  = "GST"
)

// ResolveInvoiceTaxPercent returns the aggregate invoice-level tax rate.
// CGST, SGST and IGST are summed without checking that they are mutually
// exclusive; a plain GST rate is used only when that sum is zero. It returns
// nil when no rate is known.
func ResolveInvoiceTaxPercent(invoice *models.Record) *float64 {
	container := taxContainer(invoice)
	if container == nil {
		return nil
	}

	sum := models.PercentFrom(container, TaxCGST) +
		models.PercentFrom(container, TaxSGST) +
		models.PercentFrom(container, TaxIGST)
	if sum > 0 {
		return &sum
	}

	if gst := models.PercentFrom(container, TaxGST); gst > 0 {
		return &gst
	}
	return nil
}

// taxContainer returns the taxes block, falling back to the legacy tax key
func taxContainer(invoice *models.Record) *models.Record {
	container, _ := invoice.Coalesce("taxes", "tax").(*models.Record)
	return container
}
