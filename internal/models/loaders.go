package models

// The loaders below read objects that were previously written by the Record
// projections, e.g. a saved result that is being edited. They trust the
// normalized field names and apply no fallbacks beyond type coercion.

// InvoiceFromRecord rebuilds a normalized invoice from its output object
func InvoiceFromRecord(rec *Record) *NormalizedInvoice {
	inv := &NormalizedInvoice{
		ID:         int(ToNumber(rec.Get("id"), 0)),
		Fields:     rec.Clone(),
		CustomerID: optionalID(rec.Get("customerId")),
		Totals: InvoiceTotals{
			TaxableAmount: ToNumber(rec.Get("taxableAmount"), 0),
			TaxTotal:      ToNumber(rec.Get("taxTotal"), 0),
			ChargesTotal:  ToNumber(rec.Get("chargesTotal"), 0),
			Total:         ToNumber(rec.Get("total"), 0),
		},
	}

	if items, ok := rec.Get("items").([]interface{}); ok {
		for _, raw := range items {
			fields, ok := raw.(*Record)
			if !ok {
				continue
			}
			item := NewLineItem(fields.Clone())
			item.ProductID = optionalID(fields.Get("productId"))
			item.Fields.Delete("productId")
			inv.Items = append(inv.Items, item)
		}
	}
	return inv
}

// ProductFromRecord rebuilds a normalized product from its output object
func ProductFromRecord(rec *Record) *NormalizedProduct {
	p := &NormalizedProduct{
		ID:           int(ToNumber(rec.Get("id"), 0)),
		Description:  OptionalText(rec, "description"),
		Quantity:     ToNumber(rec.Get("quantity"), 0),
		UnitPrice:    OptionalNumber(rec.Get("unitPrice")),
		Tax:          ParseProductTax(rec.Get("tax")),
		PriceWithTax: OptionalNumber(rec.Get("priceWithTax")),
		Extra:        withoutKeys(rec, productKeys),
	}
	p.Name, _ = rec.String("name")
	return p
}

// CustomerFromRecord rebuilds a normalized customer from its output object
func CustomerFromRecord(rec *Record) *NormalizedCustomer {
	c := &NormalizedCustomer{
		ID:            int(ToNumber(rec.Get("id"), 0)),
		Address:       OptionalText(rec, "address"),
		Phone:         OptionalText(rec, "phone"),
		TotalPurchase: ToNumber(rec.Get("totalPurchase"), 0),
		Extra:         withoutKeys(rec, customerKeys),
	}
	c.Name, _ = rec.String("name")
	return c
}

func optionalID(v interface{}) *int {
	f := OptionalNumber(v)
	if f == nil || *f <= 0 {
		return nil
	}
	id := int(*f)
	return &id
}

func withoutKeys(rec *Record, keys []string) *Record {
	out := rec.Clone()
	if out == nil {
		return NewRecord()
	}
	for _, k := range keys {
		out.Delete(k)
	}
	return out
}
