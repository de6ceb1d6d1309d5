package models

import (
	"encoding/json"
	"fmt"
)

// LineBreakdown is the reconciled economics of one invoice line
type LineBreakdown struct {
	Qty         float64  `json:"qty"`
	UnitEx      *float64 `json:"unitEx"`
	UnitIncl    *float64 `json:"unitIncl"`
	TaxPercent  *float64 `json:"taxPercent"`
	UnitTaxAmt  *float64 `json:"unitTaxAmt"`
	LineTaxable float64  `json:"lineTaxable"`
	LineTax     float64  `json:"lineTax"`
	LineGross   float64  `json:"lineGross"`
}

// InvoiceTotals holds the computed invoice-level amounts, each rounded to cents
type InvoiceTotals struct {
	TaxableAmount float64 `json:"taxableAmount"`
	TaxTotal      float64 `json:"taxTotal"`
	ChargesTotal  float64 `json:"chargesTotal"`
	Total         float64 `json:"total"`
}

// LineItem is an invoice line with its raw fields and resolved product link
type LineItem struct {
	Fields    *Record
	ProductID *int
	Breakdown LineBreakdown
}

// NewLineItem wraps raw line fields
func NewLineItem(fields *Record) *LineItem {
	if fields == nil {
		fields = NewRecord()
	}
	return &LineItem{Fields: fields}
}

// Name returns the item's display name, or "" when it has none
func (li *LineItem) Name() string {
	name, _ := li.Fields.String("name")
	return name
}

// View resolves the raw fields of the line
func (li *LineItem) View() ItemView {
	return ViewItem(li.Fields)
}

// Record projects the line back into a JSON object: raw fields followed by productId
func (li *LineItem) Record() *Record {
	out := NewRecord()
	for _, k := range li.Fields.Keys() {
		out.Set(k, li.Fields.Get(k))
	}
	out.Set("productId", optionalInt(li.ProductID))
	return out
}

// MarshalJSON implements json.Marshaler
func (li *LineItem) MarshalJSON() ([]byte, error) {
	return li.Record().MarshalJSON()
}

// Clone returns a deep copy of the line
func (li *LineItem) Clone() *LineItem {
	out := *li
	out.Fields = li.Fields.Clone()
	out.ProductID = cloneInt(li.ProductID)
	return &out
}

// NormalizedInvoice is an extracted invoice with an assigned id, linked
// customer and products, and verified totals. Raw fields pass through.
type NormalizedInvoice struct {
	ID         int
	Fields     *Record
	CustomerID *int
	Items      []*LineItem
	Totals     InvoiceTotals

	// TaxPercent is the invoice-level rate found in the taxes block, if any
	TaxPercent *float64
}

// CustomerName returns the customer as written on the invoice: the string
// itself, or the name of a customer object.
func (inv *NormalizedInvoice) CustomerName() string {
	return CustomerNameOf(inv.Fields)
}

// CustomerNameOf reads the customer display name from a raw invoice
func CustomerNameOf(fields *Record) string {
	switch c := fields.Get("customer").(type) {
	case string:
		return c
	case *Record:
		name, _ := c.String("name")
		return name
	default:
		return ""
	}
}

// Serial returns the invoice's serial number, if it has one
func (inv *NormalizedInvoice) Serial() string {
	switch s := inv.Fields.Get("serial").(type) {
	case string:
		return s
	case float64:
		if s != 0 {
			return FormatNumber(s)
		}
	}
	return ""
}

// Label identifies the invoice in summaries: serial, then id, then "unknown"
func (inv *NormalizedInvoice) Label() string {
	if s := inv.Serial(); s != "" {
		return s
	}
	if inv.ID != 0 {
		return fmt.Sprintf("%d", inv.ID)
	}
	return "unknown"
}

// Record projects the invoice into its output object: id, the raw fields in
// their original order, then customerId, items and the totals. Computed
// fields overwrite raw fields of the same name in place.
func (inv *NormalizedInvoice) Record() *Record {
	out := NewRecord()
	out.Set("id", inv.ID)
	for _, k := range inv.Fields.Keys() {
		if k == "id" {
			continue
		}
		out.Set(k, inv.Fields.Get(k))
	}

	items := make([]interface{}, 0, len(inv.Items))
	for _, item := range inv.Items {
		items = append(items, item.Record())
	}

	out.Set("customerId", optionalInt(inv.CustomerID))
	out.Set("items", items)
	out.Set("taxableAmount", inv.Totals.TaxableAmount)
	out.Set("taxTotal", inv.Totals.TaxTotal)
	out.Set("chargesTotal", inv.Totals.ChargesTotal)
	out.Set("total", inv.Totals.Total)
	return out
}

// MarshalJSON implements json.Marshaler
func (inv *NormalizedInvoice) MarshalJSON() ([]byte, error) {
	return inv.Record().MarshalJSON()
}

// Clone returns a deep copy of the invoice
func (inv *NormalizedInvoice) Clone() *NormalizedInvoice {
	out := *inv
	out.Fields = inv.Fields.Clone()
	out.CustomerID = cloneInt(inv.CustomerID)
	out.TaxPercent = cloneFloat(inv.TaxPercent)
	out.Items = make([]*LineItem, len(inv.Items))
	for i, item := range inv.Items {
		out.Items[i] = item.Clone()
	}
	return &out
}

var productKeys = []string{"id", "name", "description", "quantity", "unitPrice", "tax", "priceWithTax"}

// NormalizedProduct is a deduplicated product with aggregated unit economics
type NormalizedProduct struct {
	ID           int
	Name         string
	Description  *string
	Quantity     float64
	UnitPrice    *float64
	Tax          TaxValue
	PriceWithTax *float64

	// Extra holds the raw fields the product was built from
	Extra *Record
}

// Record projects the product into its output object. Normalized fields come
// first and win over raw fields of the same name.
func (p *NormalizedProduct) Record() *Record {
	out := NewRecord()
	out.Set("id", p.ID)
	out.Set("name", p.Name)
	out.Set("description", optionalString(p.Description))
	out.Set("quantity", p.Quantity)
	out.Set("unitPrice", optionalFloat(p.UnitPrice))
	out.Set("tax", p.Tax)
	out.Set("priceWithTax", optionalFloat(p.PriceWithTax))
	copyExtra(out, p.Extra)
	return out
}

// MarshalJSON implements json.Marshaler
func (p *NormalizedProduct) MarshalJSON() ([]byte, error) {
	return p.Record().MarshalJSON()
}

// Clone returns a deep copy of the product
func (p *NormalizedProduct) Clone() *NormalizedProduct {
	out := *p
	out.Description = cloneString(p.Description)
	out.UnitPrice = cloneFloat(p.UnitPrice)
	out.PriceWithTax = cloneFloat(p.PriceWithTax)
	out.Extra = p.Extra.Clone()
	return &out
}

// String returns a string representation of the product
func (p *NormalizedProduct) String() string {
	return fmt.Sprintf("Product{ID: %d, Name: %s, Quantity: %s, Tax: %s}",
		p.ID, p.Name, FormatNumber(p.Quantity), p.Tax)
}

var customerKeys = []string{"id", "name", "address", "phone", "totalPurchase"}

// NormalizedCustomer is a deduplicated customer with aggregated spend
type NormalizedCustomer struct {
	ID            int
	Name          string
	Address       *string
	Phone         *string
	TotalPurchase float64

	Extra *Record
}

// Record projects the customer into its output object
func (c *NormalizedCustomer) Record() *Record {
	out := NewRecord()
	out.Set("id", c.ID)
	out.Set("name", c.Name)
	out.Set("address", optionalString(c.Address))
	out.Set("phone", optionalString(c.Phone))
	out.Set("totalPurchase", c.TotalPurchase)
	copyExtra(out, c.Extra)
	return out
}

// MarshalJSON implements json.Marshaler
func (c *NormalizedCustomer) MarshalJSON() ([]byte, error) {
	return c.Record().MarshalJSON()
}

// Clone returns a deep copy of the customer
func (c *NormalizedCustomer) Clone() *NormalizedCustomer {
	out := *c
	out.Address = cloneString(c.Address)
	out.Phone = cloneString(c.Phone)
	out.Extra = c.Extra.Clone()
	return &out
}

// String returns a string representation of the customer
func (c *NormalizedCustomer) String() string {
	return fmt.Sprintf("Customer{ID: %d, Name: %s, TotalPurchase: %s}",
		c.ID, c.Name, FormatNumber(c.TotalPurchase))
}

// FirstText returns the first truthy value among keys rendered as text.
// Empty strings, zero, false and null are skipped.
func FirstText(rec *Record, keys ...string) (string, bool) {
	for _, k := range keys {
		switch v := rec.Get(k).(type) {
		case string:
			if v != "" {
				return v, true
			}
		case float64:
			if v != 0 {
				return FormatNumber(v), true
			}
		case bool:
			if v {
				return "true", true
			}
		case *Record, []interface{}:
			if data, err := json.Marshal(v); err == nil {
				return string(data), true
			}
		}
	}
	return "", false
}

// OptionalText is FirstText returning nil when nothing is found
func OptionalText(rec *Record, keys ...string) *string {
	if s, ok := FirstText(rec, keys...); ok {
		return &s
	}
	return nil
}

func copyExtra(out, extra *Record) {
	for _, k := range extra.Keys() {
		if out.Has(k) {
			continue
		}
		out.Set(k, extra.Get(k))
	}
}

func optionalInt(v *int) interface{} {
	if v == nil {
		return nil
	}
	return *v
}

func optionalFloat(v *float64) interface{} {
	if v == nil {
		return nil
	}
	return *v
}

func optionalString(v *string) interface{} {
	if v == nil {
		return nil
	}
	return *v
}

func cloneInt(v *int) *int {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}

func cloneFloat(v *float64) *float64 {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}

func cloneString(v *string) *string {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}
