package normalizer

import (
	"invoice-normalizer/internal/models"
	"invoice-normalizer/pkg/logger"
)

const (
	defaultProductName  = "Item"
	defaultCustomerName = "Customer"
)

// NormalizeProducts assigns ids to raw products and resolves their typed
// fields. Records that are not objects are skipped without consuming an id.
func (s *Session) NormalizeProducts(raws []interface{}) ([]*models.NormalizedProduct, []Skipped) {
	products := make([]*models.NormalizedProduct, 0, len(raws))
	var skipped []Skipped

	for i, v := range raws {
		rec, ok := v.(*models.Record)
		if !ok {
			skipped = append(skipped, s.Skip(EntityProduct, i, 0, v))
			continue
		}
		products = append(products, NormalizeProduct(s.NextProductID(), rec))
	}

	s.logger.WithFields(logger.Fields{
		"products": len(products),
		"skipped":  len(skipped),
	}).Debug("Normalized products")
	return products, skipped
}

// NormalizeProduct builds a product from one raw record
func NormalizeProduct(id int, rec *models.Record) *models.NormalizedProduct {
	name, ok := models.FirstText(rec, "name", "productName")
	if !ok {
		name = defaultProductName
	}

	quantity, isNumber := rec.Get("quantity").(float64)
	if !isNumber {
		quantity = models.ToNumber(rec.Get("qty"), 0)
	}

	return &models.NormalizedProduct{
		ID:           id,
		Name:         name,
		Description:  models.OptionalText(rec, "description"),
		Quantity:     quantity,
		UnitPrice:    models.OptionalNumber(rec.Coalesce("unitPrice", "price")),
		Tax:          models.ParseProductTax(rec.Get("tax")),
		PriceWithTax: models.OptionalNumber(rec.Coalesce("priceWithTax", "unitPrice", "price")),
		Extra:        rec.Clone(),
	}
}

// NormalizeCustomers assigns ids to raw customers and resolves their typed
// fields. Records that are not objects are skipped without consuming an id.
func (s *Session) NormalizeCustomers(raws []interface{}) ([]*models.NormalizedCustomer, []Skipped) {
	customers := make([]*models.NormalizedCustomer, 0, len(raws))
	var skipped []Skipped

	for i, v := range raws {
		rec, ok := v.(*models.Record)
		if !ok {
			skipped = append(skipped, s.Skip(EntityCustomer, i, 0, v))
			continue
		}
		customers = append(customers, NormalizeCustomer(s.NextCustomerID(), rec))
	}

	s.logger.WithFields(logger.Fields{
		"customers": len(customers),
		"skipped":   len(skipped),
	}).Debug("Normalized customers")
	return customers, skipped
}

// NormalizeCustomer builds a customer from one raw record
func NormalizeCustomer(id int, rec *models.Record) *models.NormalizedCustomer {
	name, ok := models.FirstText(rec, "name", "customerName", "fullName")
	if !ok {
		name = defaultCustomerName
	}

	total, isNumber := rec.Get("totalPurchase").(float64)
	if !isNumber {
		total = models.ToNumber(rec.Get("total"), 0)
	}

	return &models.NormalizedCustomer{
		ID:            id,
		Name:          name,
		Address:       models.OptionalText(rec, "address"),
		Phone:         models.OptionalText(rec, "phone", "contact", "mobile"),
		TotalPurchase: total,
		Extra:         rec.Clone(),
	}
}
