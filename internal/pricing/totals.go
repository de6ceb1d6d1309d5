package pricing

import (
	"invoice-normalizer/internal/models"

	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// ComputeInvoiceTotals sums the line breakdowns of an invoice and its extra
// charges. When no line carries any tax but an invoice-level rate is known,
// the rate is applied once to the taxable sum.
func ComputeInvoiceTotals(invoice *models.Record, items []*models.Record) models.InvoiceTotals {
	pct := ResolveInvoiceTaxPercent(invoice)

	lines := make([]models.LineBreakdown, 0, len(items))
	for _, item := range items {
		lines = append(lines, ResolveLineBreakdown(item, pct))
	}
	return TotalsFromLines(lines, pct, SumCharges(invoice.Get("charges")))
}

// TotalsFromLines aggregates already resolved lines
func TotalsFromLines(lines []models.LineBreakdown, invoiceTaxPercent *float64, chargesTotal float64) models.InvoiceTotals {
	taxable := decimal.Zero
	tax := decimal.Zero
	gross := decimal.Zero

	for _, line := range lines {
		taxable = taxable.Add(decimal.NewFromFloat(line.LineTaxable))
		tax = tax.Add(decimal.NewFromFloat(line.LineTax))
		gross = gross.Add(decimal.NewFromFloat(line.LineGross))
	}

	if tax.IsZero() && invoiceTaxPercent != nil && taxable.IsPositive() {
		tax = taxable.Mul(decimal.NewFromFloat(*invoiceTaxPercent)).Div(hundred).Round(2)
		gross = taxable.Add(tax).Round(2)
	}

	charges := decimal.NewFromFloat(chargesTotal)
	return models.InvoiceTotals{
		TaxableAmount: taxable.Round(2).InexactFloat64(),
		TaxTotal:      tax.Round(2).InexactFloat64(),
		ChargesTotal:  charges.Round(2).InexactFloat64(),
		Total:         gross.Add(charges).Round(2).InexactFloat64(),
	}
}

// SumCharges totals an invoice's additional charges. Entries may be bare
// numbers, numeric strings or objects carrying amount, price or value.
// Anything that is not an array sums to zero.
func SumCharges(charges interface{}) float64 {
	list, ok := charges.([]interface{})
	if !ok {
		return 0
	}

	total := decimal.Zero
	for _, c := range list {
		var amount float64
		switch v := c.(type) {
		case nil, bool:
			continue
		case string:
			amount = models.ToNumber(v, 0)
		case *models.Record:
			amount = models.ToNumber(v.Coalesce("amount", "price", "value"), 0)
		case []interface{}:
			continue
		default:
			amount = models.ToNumber(v, 0)
		}
		total = total.Add(decimal.NewFromFloat(amount))
	}
	return total.Round(2).InexactFloat64()
}

// PriceInvoice fills the breakdown of every line of a normalized invoice and
// its totals, using the invoice-level rate resolved at ingestion
func PriceInvoice(inv *models.NormalizedInvoice) {
	lines := make([]models.LineBreakdown, 0, len(inv.Items))
	for _, item := range inv.Items {
		item.Breakdown = BreakdownFromView(item.View(), inv.TaxPercent)
		lines = append(lines, item.Breakdown)
	}
	inv.Totals = TotalsFromLines(lines, inv.TaxPercent, SumCharges(inv.Fields.Get("charges")))
}
