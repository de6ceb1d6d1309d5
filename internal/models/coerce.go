package models

import (
	"encoding/json"
	"math"
	"regexp"
	"strconv"

	"github.com/shopspring/decimal"
)

var (
	nonNumericChars = regexp.MustCompile(`[^0-9.\-]`)
	percentPattern  = regexp.MustCompile(`([0-9]+(?:\.[0-9]+)?)\s*%`)
)

// ToNumber coerces v to a finite number, returning def when it cannot.
// Strings are stripped of everything except digits, '.' and '-' before
// parsing, so "₹1,250.50" reads as 1250.5 and a string with no digits at
// all reads as 0.
func ToNumber(v interface{}, def float64) float64 {
	if f, ok := toFloat(v); ok {
		return f
	}
	return def
}

// OptionalNumber is ToNumber with a null default
func OptionalNumber(v interface{}) *float64 {
	if f, ok := toFloat(v); ok {
		return &f
	}
	return nil
}

// Float returns a pointer to v
func Float(v float64) *float64 {
	return &v
}

// Int returns a pointer to v
func Int(v int) *int {
	return &v
}

func toFloat(v interface{}) (float64, bool) {
	var f float64

	switch n := v.(type) {
	case nil:
		return 0, false
	case string:
		s := nonNumericChars.ReplaceAllString(n, "")
		if s == "" {
			return 0, true
		}
		parsed, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, false
		}
		f = parsed
	case float64:
		f = n
	case float32:
		f = float64(n)
	case int:
		f = float64(n)
	case int8:
		f = float64(n)
	case int16:
		f = float64(n)
	case int32:
		f = float64(n)
	case int64:
		f = float64(n)
	case uint:
		f = float64(n)
	case uint8:
		f = float64(n)
	case uint16:
		f = float64(n)
	case uint32:
		f = float64(n)
	case uint64:
		f = float64(n)
	case json.Number:
		parsed, err := n.Float64()
		if err != nil {
			return 0, false
		}
		f = parsed
	case decimal.Decimal:
		f = n.InexactFloat64()
	case bool:
		if n {
			return 1, true
		}
		return 0, true
	default:
		return 0, false
	}

	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

// PercentFrom reads a percentage stored under key. Absent keys read as 0,
// numbers are taken as already being a percent, strings are searched for a
// "<number>%" pattern before falling back to ToNumber, and nested
// {percent, amount} objects are read through their percent (or rate) key.
func PercentFrom(container *Record, key string) float64 {
	return percentOf(container.Get(key), true)
}

func percentOf(v interface{}, allowNested bool) float64 {
	switch t := v.(type) {
	case nil:
		return 0
	case bool:
		return 0
	case string:
		if p, ok := PercentInText(t); ok {
			return p
		}
		return ToNumber(t, 0)
	case *Record:
		if !allowNested {
			return 0
		}
		return percentOf(t.Coalesce("percent", "rate"), false)
	default:
		return ToNumber(v, 0)
	}
}

// PercentInText extracts the first "<number>%" figure from s
func PercentInText(s string) (float64, bool) {
	m := percentPattern.FindStringSubmatch(s)
	if m == nil {
		return 0, false
	}
	p, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return 0, false
	}
	return p, true
}

// Round2 rounds to cents
func Round2(v float64) float64 {
	return RoundTo(v, 2)
}

// Round6 rounds derived unit values to limit floating-point drift
func Round6(v float64) float64 {
	return RoundTo(v, 6)
}

// RoundTo rounds half away from zero on the shortest decimal representation of v
func RoundTo(v float64, places int32) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return decimal.NewFromFloat(v).Round(places).InexactFloat64()
}

// FormatNumber renders v the way a JSON encoder would, without trailing zeros
func FormatNumber(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
