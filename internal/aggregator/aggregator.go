// Package aggregator rolls linked invoice lines up into product and
// customer figures.
//
// Aggregation never mutates its inputs. Entities are cloned, updated from
// every linked invoice, and returned in the order of the input slice, so the
// pass can be re-run over a growing invoice set (as the streaming mode does)
// without double counting.
package aggregator

import (
	"invoice-normalizer/internal/models"
	"invoice-normalizer/pkg/logger"

	"github.com/samber/lo"
)

// ProjectOrdered returns the entities of byID in the order given by order.
// Ids with no entry are left out.
func ProjectOrdered[T any](order []int, byID map[int]*T) []*T {
	out := make([]*T, 0, len(order))
	for _, id := range order {
		if v, ok := byID[id]; ok {
			out = append(out, v)
		}
	}
	return out
}

// AggregateProducts accumulates quantity, unit price, tax and price with
// tax onto each product from the invoice lines linked to it
func AggregateProducts(products []*models.NormalizedProduct, invoices []*models.NormalizedInvoice) []*models.NormalizedProduct {
	byID := lo.SliceToMap(products, func(p *models.NormalizedProduct) (int, *models.NormalizedProduct) {
		return p.ID, p.Clone()
	})
	order := lo.Map(products, func(p *models.NormalizedProduct, _ int) int { return p.ID })

	lines := 0
	for _, inv := range invoices {
		for _, item := range inv.Items {
			if item.ProductID == nil {
				continue
			}
			prod, ok := byID[*item.ProductID]
			if !ok {
				continue
			}
			applyLine(prod, item, inv.TaxPercent)
			lines++
		}
	}

	logger.WithComponent("aggregator").WithFields(logger.Fields{
		"products": len(order),
		"lines":    lines,
	}).Debug("Aggregated products")

	return ProjectOrdered(order, byID)
}

// AggregateCustomers adds the total of every linked invoice to its
// customer's totalPurchase
func AggregateCustomers(customers []*models.NormalizedCustomer, invoices []*models.NormalizedInvoice) []*models.NormalizedCustomer {
	byID := lo.SliceToMap(customers, func(c *models.NormalizedCustomer) (int, *models.NormalizedCustomer) {
		return c.ID, c.Clone()
	})
	order := lo.Map(customers, func(c *models.NormalizedCustomer, _ int) int { return c.ID })

	linked := 0
	for _, inv := range invoices {
		if inv.CustomerID == nil {
			continue
		}
		cust, ok := byID[*inv.CustomerID]
		if !ok {
			continue
		}
		cust.TotalPurchase += inv.Totals.Total
		linked++
	}

	logger.WithComponent("aggregator").WithFields(logger.Fields{
		"customers": len(order),
		"invoices":  linked,
	}).Debug("Aggregated customers")

	return ProjectOrdered(order, byID)
}

// applyLine folds one invoice line into a product. The per-unit tax is taken
// from the first source that applies: explicit percent, explicit amount,
// inclusive/exclusive difference, invoice rate, legacy tax field.
func applyLine(prod *models.NormalizedProduct, item *models.LineItem, invoiceTaxPercent *float64) {
	view := item.View()
	unit := view.UnitForAggregation()

	prod.Quantity += view.AggregateQty
	if prod.UnitPrice == nil && unit != nil {
		prod.UnitPrice = models.Float(*unit)
	}

	pct, amt := unitTax(prod.UnitPrice, unit, view, item.Fields.Get("tax"), invoiceTaxPercent)

	switch {
	case pct != nil:
		prod.Tax = models.Percent(*pct)
	case amt != nil:
		prod.Tax = models.Amount(models.Round2(*amt))
	}

	switch {
	case view.UnitIncl != nil:
		prod.PriceWithTax = models.Float(*view.UnitIncl)
	case prod.UnitPrice != nil:
		perUnit := 0.0
		if amt != nil {
			perUnit = *amt
		}
		prod.PriceWithTax = models.Float(models.Round2(*prod.UnitPrice + perUnit))
	}
}

func unitTax(prodUnit, itemUnit *float64, view models.ItemView, legacy interface{}, invoiceTaxPercent *float64) (pct, amt *float64) {
	amountAt := func(p float64) *float64 {
		if prodUnit == nil {
			return nil
		}
		return models.Float(models.Round6(*prodUnit * p / 100))
	}
	percentOf := func(a float64) *float64 {
		if prodUnit == nil || *prodUnit <= 0 || a < 0 {
			return nil
		}
		return models.Float(models.Round6(a / *prodUnit * 100))
	}

	switch {
	case view.TaxPercent != nil:
		return models.Float(*view.TaxPercent), amountAt(*view.TaxPercent)

	case view.TaxAmountPerUnit != nil:
		a := *view.TaxAmountPerUnit
		return percentOf(a), models.Float(a)

	case view.UnitIncl != nil && itemUnit != nil:
		delta := models.Round6(*view.UnitIncl - *itemUnit)
		if delta < 0 {
			return nil, nil
		}
		if *itemUnit > 0 {
			pct = models.Float(models.Round6(delta / *itemUnit * 100))
		}
		return pct, models.Float(delta)

	case invoiceTaxPercent != nil && itemUnit != nil:
		p := *invoiceTaxPercent
		return models.Float(p), models.Float(models.Round6(*itemUnit * p / 100))

	case legacy != nil:
		tax := view.LegacyTax
		if v, ok := tax.PercentValue(); ok {
			return models.Float(v), amountAt(v)
		}
		if v, ok := tax.AmountValue(); ok {
			// only a numeric amount implies a rate; "Rs 5" stays an amount
			if _, isText := legacy.(string); isText {
				return nil, models.Float(v)
			}
			return percentOf(v), models.Float(v)
		}
	}

	return nil, nil
}
