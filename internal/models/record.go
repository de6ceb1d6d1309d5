package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// Record is a JSON object that remembers the order its keys were first set in.
// Raw extraction output is held as Records so that passthrough fields can be
// re-emitted, and summarized, in the order the extractor produced them.
//
// A nil *Record behaves as an empty object for every read accessor.
type Record struct {
	keys   []string
	values map[string]interface{}
}

// NewRecord creates an empty record
func NewRecord() *Record {
	return &Record{values: make(map[string]interface{})}
}

// RecordOf builds a record from alternating key/value arguments.
// Entries whose key is not a string are ignored.
func RecordOf(kv ...interface{}) *Record {
	r := NewRecord()
	for i := 0; i+1 < len(kv); i += 2 {
		key, ok := kv[i].(string)
		if !ok {
			continue
		}
		r.Set(key, kv[i+1])
	}
	return r
}

// Get returns the value stored under key, or nil if absent
func (r *Record) Get(key string) interface{} {
	if r == nil {
		return nil
	}
	return r.values[key]
}

// Lookup returns the value stored under key and whether the key is present
func (r *Record) Lookup(key string) (interface{}, bool) {
	if r == nil {
		return nil, false
	}
	v, ok := r.values[key]
	return v, ok
}

// Has reports whether key is present, even with a null value
func (r *Record) Has(key string) bool {
	_, ok := r.Lookup(key)
	return ok
}

// Set stores value under key. A new key is appended; an existing key keeps
// its position.
func (r *Record) Set(key string, value interface{}) {
	if r.values == nil {
		r.values = make(map[string]interface{})
	}
	if _, exists := r.values[key]; !exists {
		r.keys = append(r.keys, key)
	}
	r.values[key] = value
}

// Delete removes key from the record
func (r *Record) Delete(key string) {
	if r == nil {
		return
	}
	if _, exists := r.values[key]; !exists {
		return
	}
	delete(r.values, key)
	for i, k := range r.keys {
		if k == key {
			r.keys = append(r.keys[:i], r.keys[i+1:]...)
			break
		}
	}
}

// Keys returns the keys in insertion order
func (r *Record) Keys() []string {
	if r == nil {
		return nil
	}
	out := make([]string, len(r.keys))
	copy(out, r.keys)
	return out
}

// Len returns the number of keys
func (r *Record) Len() int {
	if r == nil {
		return 0
	}
	return len(r.keys)
}

// Coalesce returns the first non-nil value among keys, mirroring a chain of
// nullish fallbacks.
func (r *Record) Coalesce(keys ...string) interface{} {
	for _, k := range keys {
		if v := r.Get(k); v != nil {
			return v
		}
	}
	return nil
}

// String returns the value under key when it is a string
func (r *Record) String(key string) (string, bool) {
	s, ok := r.Get(key).(string)
	return s, ok
}

// Record returns the nested object under key, if any
func (r *Record) Record(key string) (*Record, bool) {
	nested, ok := r.Get(key).(*Record)
	return nested, ok && nested != nil
}

// Clone returns a deep copy. Nested records and arrays are copied; scalar
// values are shared.
func (r *Record) Clone() *Record {
	if r == nil {
		return nil
	}
	out := &Record{
		keys:   make([]string, len(r.keys)),
		values: make(map[string]interface{}, len(r.values)),
	}
	copy(out.keys, r.keys)
	for k, v := range r.values {
		out.values[k] = CloneValue(v)
	}
	return out
}

// CloneValue deep-copies records and arrays inside v
func CloneValue(v interface{}) interface{} {
	switch t := v.(type) {
	case *Record:
		return t.Clone()
	case []interface{}:
		out := make([]interface{}, len(t))
		for i, e := range t {
			out[i] = CloneValue(e)
		}
		return out
	default:
		return v
	}
}

// MarshalJSON writes the record with its keys in insertion order
func (r *Record) MarshalJSON() ([]byte, error) {
	if r == nil {
		return []byte("null"), nil
	}

	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range r.keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')

		val, err := json.Marshal(r.values[k])
		if err != nil {
			return nil, fmt.Errorf("field %q: %w", k, err)
		}
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON decodes a JSON object, preserving key order
func (r *Record) UnmarshalJSON(data []byte) error {
	v, err := DecodeJSONBytes(data)
	if err != nil {
		return err
	}
	decoded, ok := v.(*Record)
	if !ok {
		return fmt.Errorf("expected JSON object, got %s", TypeName(v))
	}
	*r = *decoded
	return nil
}

// GoString renders the record for debugging
func (r *Record) GoString() string {
	if r == nil {
		return "Record(nil)"
	}
	parts := make([]string, 0, len(r.keys))
	for _, k := range r.keys {
		parts = append(parts, fmt.Sprintf("%s: %#v", k, r.values[k]))
	}
	return "Record{" + strings.Join(parts, ", ") + "}"
}

// FromNative converts plain Go values (maps, slices, ints) into the shapes
// produced by DecodeJSON. Map keys are sorted since Go maps carry no order.
func FromNative(v interface{}) interface{} {
	switch t := v.(type) {
	case *Record:
		return t
	case map[string]interface{}:
		keys := make([]string, 0, len(t))
		for k := range t {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		r := NewRecord()
		for _, k := range keys {
			r.Set(k, FromNative(t[k]))
		}
		return r
	case []interface{}:
		out := make([]interface{}, len(t))
		for i, e := range t {
			out[i] = FromNative(e)
		}
		return out
	case []map[string]interface{}:
		out := make([]interface{}, len(t))
		for i, e := range t {
			out[i] = FromNative(e)
		}
		return out
	case []*Record:
		out := make([]interface{}, len(t))
		for i, e := range t {
			out[i] = e
		}
		return out
	case int:
		return float64(t)
	case int32:
		return float64(t)
	case int64:
		return float64(t)
	case float32:
		return float64(t)
	default:
		return v
	}
}

// TypeName describes the JSON shape of v for log and error messages
func TypeName(v interface{}) string {
	switch v.(type) {
	case nil:
		return "null"
	case *Record, map[string]interface{}:
		return "object"
	case []interface{}:
		return "array"
	case string:
		return "string"
	case bool:
		return "boolean"
	case float64, float32, int, int64, int32, json.Number:
		return "number"
	default:
		return fmt.Sprintf("%T", v)
	}
}
