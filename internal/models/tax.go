package models

import (
	"encoding/json"
	"fmt"
	"strings"
)

// TaxKind tells how a TaxValue should be read
type TaxKind int

const (
	// TaxUnknown means no usable tax figure was present
	TaxUnknown TaxKind = iota
	// TaxPercent is a rate, e.g. 18 for 18%
	TaxPercent
	// TaxAmount is an absolute tax amount per unit
	TaxAmount
)

// String returns the string representation of TaxKind
func (k TaxKind) String() string {
	switch k {
	case TaxPercent:
		return "Percent"
	case TaxAmount:
		return "Amount"
	default:
		return "Unknown"
	}
}

// TaxValue is the canonical form of a loosely-typed tax field. Extracted
// data states tax as a bare number, a "18%" string or not at all; the shape
// is resolved once when the record is ingested.
type TaxValue struct {
	Kind  TaxKind
	Value float64
}

// Percent creates a rate tax value
func Percent(v float64) TaxValue {
	return TaxValue{Kind: TaxPercent, Value: v}
}

// Amount creates an absolute per-unit tax value
func Amount(v float64) TaxValue {
	return TaxValue{Kind: TaxAmount, Value: v}
}

// UnknownTax is the empty tax value
func UnknownTax() TaxValue {
	return TaxValue{}
}

// IsKnown reports whether the value carries a figure
func (t TaxValue) IsKnown() bool {
	return t.Kind != TaxUnknown
}

// PercentValue returns the rate when the value is a percent
func (t TaxValue) PercentValue() (float64, bool) {
	return t.Value, t.Kind == TaxPercent
}

// AmountValue returns the amount when the value is an amount
func (t TaxValue) AmountValue() (float64, bool) {
	return t.Value, t.Kind == TaxAmount
}

// String renders percents as "18%" and amounts as a plain number
func (t TaxValue) String() string {
	switch t.Kind {
	case TaxPercent:
		return FormatNumber(t.Value) + "%"
	case TaxAmount:
		return FormatNumber(Round2(t.Value))
	default:
		return ""
	}
}

// MarshalJSON writes percents as strings, amounts as numbers and unknown as null
func (t TaxValue) MarshalJSON() ([]byte, error) {
	switch t.Kind {
	case TaxPercent:
		return json.Marshal(t.String())
	case TaxAmount:
		return json.Marshal(Round2(t.Value))
	default:
		return []byte("null"), nil
	}
}

// UnmarshalJSON reads the product tax forms back
func (t *TaxValue) UnmarshalJSON(data []byte) error {
	v, err := DecodeJSONBytes(data)
	if err != nil {
		return fmt.Errorf("invalid tax value: %w", err)
	}
	*t = ParseProductTax(v)
	return nil
}

// ParseItemTax resolves the legacy per-item tax field: numbers above 1 are
// amounts per unit and numbers up to 1 are percents; strings are percents
// when they contain "<n>%" and amounts otherwise.
func ParseItemTax(v interface{}) TaxValue {
	switch t := v.(type) {
	case nil, bool, *Record, []interface{}:
		return UnknownTax()
	case string:
		if p, ok := PercentInText(t); ok {
			return Percent(p)
		}
		if f, ok := toFloat(t); ok {
			return Amount(f)
		}
		return UnknownTax()
	default:
		f, ok := toFloat(v)
		if !ok {
			return UnknownTax()
		}
		if f > 1 {
			return Amount(f)
		}
		return Percent(f)
	}
}

// ParseProductTax resolves the tax field of a product record: "<n>%" strings
// are percents, numbers and numeric strings are amounts.
func ParseProductTax(v interface{}) TaxValue {
	switch t := v.(type) {
	case nil, bool, *Record, []interface{}:
		return UnknownTax()
	case string:
		if p, ok := PercentInText(t); ok {
			return Percent(p)
		}
		if nonNumericChars.ReplaceAllString(t, "") == "" || strings.TrimSpace(t) == "" {
			return UnknownTax()
		}
		if f, ok := toFloat(t); ok {
			return Amount(f)
		}
		return UnknownTax()
	default:
		if f, ok := toFloat(v); ok {
			return Amount(f)
		}
		return UnknownTax()
	}
}
