package models

// ItemView is a raw invoice line resolved into typed fields. Each field keeps
// the nullish fallback order of the extraction schema; nothing is derived here.
type ItemView struct {
	Name             string
	Qty              float64
	// AggregateQty is the quantity rolled into products: missing or
	// unreadable counts add nothing
	AggregateQty     float64
	UnitEx           *float64
	UnitIncl         *float64
	TaxPercent       *float64
	// TaxPercentSet reports an explicit taxPercent key, even one that does
	// not coerce to a number. It ends the line rate lookup.
	TaxPercentSet    bool
	TaxAmountPerUnit *float64
	ListPrice        *float64

	// LegacyTax is the old free-form "tax" field
	LegacyTax TaxValue
	// LegacyTaxText is the percent written literally in a legacy tax string
	LegacyTaxText *float64
}

// ViewItem reads a raw line item. It never fails; a nil record yields a
// view with quantity 1 and every other field unknown.
func ViewItem(item *Record) ItemView {
	qty := item.Coalesce("qty", "quantity")
	view := ItemView{
		Qty:              ToNumber(qty, 1),
		AggregateQty:     ToNumber(qty, 0),
		UnitEx:           OptionalNumber(item.Coalesce("unitPrice", "unitPriceExclTax")),
		UnitIncl:         OptionalNumber(item.Get("unitPriceWithTax")),
		TaxPercent:       OptionalNumber(item.Get("taxPercent")),
		TaxAmountPerUnit: OptionalNumber(item.Get("taxAmountPerUnit")),
		ListPrice:        OptionalNumber(item.Get("price")),
		LegacyTax:        ParseItemTax(item.Get("tax")),
	}

	if view.Qty < 0 {
		view.Qty = 1
	}
	if view.AggregateQty < 0 {
		view.AggregateQty = 0
	}
	view.TaxPercentSet = item.Get("taxPercent") != nil

	if name, ok := item.String("name"); ok {
		view.Name = name
	}

	if s, ok := item.String("tax"); ok {
		if p, found := PercentInText(s); found {
			view.LegacyTaxText = &p
		}
	}

	return view
}

// UnitForAggregation is the exclusive unit price used when rolling items up
// into products: unitPrice, then unitPriceExclTax, then price.
func (v ItemView) UnitForAggregation() *float64 {
	if v.UnitEx != nil {
		return v.UnitEx
	}
	return v.ListPrice
}
