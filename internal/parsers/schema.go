package parsers

import (
	stderrors "errors"
	"strings"

	"invoice-normalizer/internal/models"
	"invoice-normalizer/pkg/errors"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

const envelopeSchemaURL = "batch-envelope.json"

// Only the collections are constrained. Unknown keys pass through and
// elements of the arrays are checked later, one record at a time.
const envelopeSchema = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "object",
  "properties": {
    "invoices":  {"type": ["array", "null"]},
    "products":  {"type": ["array", "null"]},
    "customers": {"type": ["array", "null"]}
  }
}`

type envelopeValidator struct {
	schema *jsonschema.Schema
}

func compileEnvelope() (*envelopeValidator, error) {
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource(envelopeSchemaURL, strings.NewReader(envelopeSchema)); err != nil {
		return nil, err
	}
	schema, err := compiler.Compile(envelopeSchemaURL)
	if err != nil {
		return nil, err
	}
	return &envelopeValidator{schema: schema}, nil
}

// validate checks the top level of a decoded batch object
func (ev *envelopeValidator) validate(name string, rec *models.Record) error {
	if err := ev.schema.Validate(shallow(rec)); err != nil {
		pointer, detail := violation(err)
		return errors.SchemaViolationError(name, pointer, detail)
	}
	return nil
}

// shallow converts the top level of rec into the generic form the validator
// expects. Nested values are replaced by empty values of the same JSON type.
func shallow(rec *models.Record) map[string]interface{} {
	out := make(map[string]interface{}, rec.Len())
	for _, key := range rec.Keys() {
		switch v := rec.Get(key).(type) {
		case *models.Record:
			out[key] = map[string]interface{}{}
		case []interface{}:
			out[key] = []interface{}{}
		case int:
			out[key] = float64(v)
		default:
			out[key] = v
		}
	}
	return out
}

// violation returns the location and message of the most specific cause
func violation(err error) (string, string) {
	var ve *jsonschema.ValidationError
	if !stderrors.As(err, &ve) {
		return "", err.Error()
	}
	for len(ve.Causes) > 0 {
		ve = ve.Causes[0]
	}
	return ve.InstanceLocation, ve.Message
}
