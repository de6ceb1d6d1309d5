package engine

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"invoice-normalizer/internal/models"
)

// keys already shown elsewhere in the UI and left out of the summary
var extraDetailsSkip = map[string]bool{
	"id":         true,
	"serial":     true,
	"date":       true,
	"customer":   true,
	"items":      true,
	"total":      true,
	"customerId": true,
}

// BuildExtraDetails renders a plain-text listing of every invoice field not
// covered by the standard columns:
//
//	Invoice: A-17
//	  gstin: 29ABCDE1234F1Z5
//	  taxes: {"CGST":{"percent":9}}
//
// Fields appear in the order of the normalized invoice object and null
// fields are omitted.
func BuildExtraDetails(invoices []*models.NormalizedInvoice) string {
	var lines []string

	for _, inv := range invoices {
		lines = append(lines, "Invoice: "+inv.Label())

		rec := inv.Record()
		for _, key := range rec.Keys() {
			if extraDetailsSkip[key] {
				continue
			}
			v := rec.Get(key)
			if v == nil {
				continue
			}
			lines = append(lines, fmt.Sprintf("  %s: %s", key, detailValue(v)))
		}
	}

	return strings.Join(lines, "\n")
}

func detailValue(v interface{}) string {
	switch t := v.(type) {
	case string:
		return t
	case bool:
		if t {
			return "true"
		}
		return "false"
	case float64:
		return models.FormatNumber(t)
	case int:
		return fmt.Sprintf("%d", t)
	default:
		data, err := marshalCompact(t)
		if err != nil {
			return "[complex]"
		}
		return data
	}
}

func marshalCompact(v interface{}) (string, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return "", err
	}
	return strings.TrimSuffix(buf.String(), "\n"), nil
}
