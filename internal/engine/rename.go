package engine

import (
	"invoice-normalizer/internal/models"
)

// RenameProduct renames a product and every line item linked to it. The
// input is left untouched; the returned count includes the product itself.
func RenameProduct(result *Result, id int, name string) (*Result, int) {
	out := result.Clone()
	changed := 0

	if p, ok := out.FindProduct(id); ok {
		p.Name = name
		changed++
	}

	for _, inv := range out.Invoices {
		for _, item := range inv.Items {
			if item.ProductID == nil || *item.ProductID != id {
				continue
			}
			item.Fields.Set("name", name)
			changed++
		}
	}

	return out, changed
}

// RenameCustomer renames a customer and the customer field of every invoice
// linked to it. A customer object keeps its other keys; any other value is
// replaced by the new name.
func RenameCustomer(result *Result, id int, name string) (*Result, int) {
	out := result.Clone()
	changed := 0

	if c, ok := out.FindCustomer(id); ok {
		c.Name = name
		changed++
	}

	for _, inv := range out.Invoices {
		if inv.CustomerID == nil || *inv.CustomerID != id {
			continue
		}
		if obj, ok := inv.Fields.Get("customer").(*models.Record); ok {
			obj.Set("name", name)
		} else {
			inv.Fields.Set("customer", name)
		}
		changed++
	}

	return out, changed
}
