package pricing

import (
	"invoice-normalizer/internal/models"
)

// ResolveLineBreakdown reconciles one line item. Missing unit figures are
// derived in a fixed order:
//
//  1. exclusive price from inclusive price and rate
//  2. inclusive price from exclusive price and rate
//  3. per-unit tax from exclusive price and rate
//  4. per-unit tax from the inclusive/exclusive difference
//  5. with only an inclusive price, retry 1 and 4 using the invoice rate
//
// Derived unit values are rounded to 6 places, line totals to 2.
func ResolveLineBreakdown(item *models.Record, invoiceTaxPercent *float64) models.LineBreakdown {
	return BreakdownFromView(models.ViewItem(item), invoiceTaxPercent)
}

// BreakdownFromView is ResolveLineBreakdown over an already resolved item
func BreakdownFromView(view models.ItemView, invoiceTaxPercent *float64) models.LineBreakdown {
	qty := view.Qty
	unitEx := copyFloat(view.UnitEx)
	unitIncl := copyFloat(view.UnitIncl)
	unitTaxAmt := copyFloat(view.TaxAmountPerUnit)
	taxPercent := lineTaxPercent(view, invoiceTaxPercent)

	deriveUnitEx := func() {
		if unitEx == nil && unitIncl != nil && taxPercent != nil {
			unitEx = round6(*unitIncl / (1 + *taxPercent/100))
		}
	}
	deriveTaxFromDelta := func() {
		if unitTaxAmt == nil && unitEx != nil && unitIncl != nil {
			unitTaxAmt = round6(*unitIncl - *unitEx)
		}
	}

	deriveUnitEx()
	if unitIncl == nil && unitEx != nil && taxPercent != nil {
		unitIncl = round6(*unitEx * (1 + *taxPercent/100))
	}
	if unitTaxAmt == nil && unitEx != nil && taxPercent != nil {
		unitTaxAmt = round6(*unitEx * (*taxPercent / 100))
	}
	deriveTaxFromDelta()

	if unitEx == nil && unitIncl != nil && invoiceTaxPercent != nil {
		taxPercent = copyFloat(invoiceTaxPercent)
		deriveUnitEx()
		deriveTaxFromDelta()
	}

	b := models.LineBreakdown{
		Qty:        qty,
		UnitEx:     unitEx,
		UnitIncl:   unitIncl,
		TaxPercent: taxPercent,
		UnitTaxAmt: unitTaxAmt,
	}

	if unitEx != nil {
		b.LineTaxable = models.Round2(*unitEx * qty)
	}
	if unitTaxAmt != nil {
		b.LineTax = models.Round2(*unitTaxAmt * qty)
	}
	switch {
	case unitIncl != nil:
		b.LineGross = models.Round2(*unitIncl * qty)
	case unitEx != nil:
		tax := 0.0
		if unitTaxAmt != nil {
			tax = *unitTaxAmt
		}
		b.LineGross = models.Round2((*unitEx + tax) * qty)
	}

	return b
}

// lineTaxPercent picks the line rate: explicit taxPercent, then a percent
// written in the legacy tax string, then the invoice rate. An explicit
// taxPercent that is not a number leaves the rate unknown.
func lineTaxPercent(view models.ItemView, invoiceTaxPercent *float64) *float64 {
	switch {
	case view.TaxPercentSet:
		return copyFloat(view.TaxPercent)
	case view.LegacyTaxText != nil:
		return copyFloat(view.LegacyTaxText)
	default:
		return copyFloat(invoiceTaxPercent)
	}
}

func round6(v float64) *float64 {
	r := models.Round6(v)
	return &r
}

func copyFloat(v *float64) *float64 {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}
