package engine

import (
	"invoice-normalizer/internal/models"
	"invoice-normalizer/pkg/errors"
)

// RawBatch is one extraction result waiting to be normalized. Each list holds
// decoded JSON values; elements that are not objects are skipped during
// processing rather than rejected here.
type RawBatch struct {
	// Source names where the batch came from, e.g. a file path
	Source string

	Invoices  []interface{}
	Products  []interface{}
	Customers []interface{}
}

// NewRawBatch validates the three top-level lists of a batch. A nil list is
// treated as empty; any other value that is not an array is rejected.
func NewRawBatch(invoices, products, customers interface{}) (*RawBatch, error) {
	batch := &RawBatch{}

	fields := []struct {
		name  string
		value interface{}
		dest  *[]interface{}
	}{
		{"invoices", invoices, &batch.Invoices},
		{"products", products, &batch.Products},
		{"customers", customers, &batch.Customers},
	}

	for _, f := range fields {
		list, err := asArray(f.name, f.value)
		if err != nil {
			return nil, err
		}
		*f.dest = list
	}

	return batch, nil
}

// BatchFromRecord reads the invoices, products and customers keys of a
// decoded batch object
func BatchFromRecord(source string, rec *models.Record) (*RawBatch, error) {
	batch, err := NewRawBatch(rec.Get("invoices"), rec.Get("products"), rec.Get("customers"))
	if err != nil {
		if appErr, ok := errors.AsAppError(err); ok {
			appErr.WithContext("source", source)
		}
		return nil, err
	}
	batch.Source = source
	return batch, nil
}

// Len returns the total number of raw records in the batch
func (b *RawBatch) Len() int {
	return len(b.Invoices) + len(b.Products) + len(b.Customers)
}

func asArray(name string, v interface{}) ([]interface{}, error) {
	switch list := v.(type) {
	case nil:
		return []interface{}{}, nil
	case []interface{}:
		return list, nil
	case []*models.Record:
		out := make([]interface{}, len(list))
		for i, rec := range list {
			out[i] = rec
		}
		return out, nil
	default:
		return nil, errors.ValidationError(errors.CodeBatchNotArray, name, models.TypeName(v), nil)
	}
}
