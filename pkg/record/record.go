// Package record provides the insertion-ordered key/value record that flows
// through fetching, schema inference and storage.
//
// Field order matters: schema inference uses the key order of the first
// record it sees, so every JSON object decoded by this package keeps the
// order in which its keys appeared in the document.
package record

import (
	"encoding/json"
	"sort"

	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// Record is an insertion-ordered mapping from field name to value.
//
// Values are strings, json.Number, Go numeric types, bool, time.Time, nil,
// []any or nested *Record. The zero value is an empty record ready to use.
type Record struct {
	fields *orderedmap.OrderedMap[string, any]
}

// New returns an empty record.
func New() *Record {
	return &Record{fields: orderedmap.New[string, any]()}
}

// FromPairs builds a record from alternating key/value arguments.
// A trailing key without value is stored as nil.
func FromPairs(kv ...any) *Record {
	r := New()
	for i := 0; i < len(kv); i += 2 {
		key, ok := kv[i].(string)
		if !ok {
			continue
		}
		var value any
		if i+1 < len(kv) {
			value = kv[i+1]
		}
		r.Set(key, value)
	}
	return r
}

// FromMap builds a record from a plain map. Go maps carry no order, so keys
// are added in sorted order. Nested maps are converted as well.
func FromMap(m map[string]any) *Record {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	r := New()
	for _, k := range keys {
		r.Set(k, fromPlain(m[k]))
	}
	return r
}

func fromPlain(v any) any {
	switch val := v.(type) {
	case map[string]any:
		return FromMap(val)
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = fromPlain(item)
		}
		return out
	default:
		return v
	}
}

func (r *Record) init() {
	if r.fields == nil {
		r.fields = orderedmap.New[string, any]()
	}
}

// Get returns the value stored under key.
func (r *Record) Get(key string) (any, bool) {
	if r == nil || r.fields == nil {
		return nil, false
	}
	return r.fields.Get(key)
}

// Value returns the value stored under key, or nil.
func (r *Record) Value(key string) any {
	v, _ := r.Get(key)
	return v
}

// String returns the value under key when it is a string.
func (r *Record) String(key string) string {
	s, _ := r.Value(key).(string)
	return s
}

// Has reports whether key is present, even with a nil value.
func (r *Record) Has(key string) bool {
	_, ok := r.Get(key)
	return ok
}

// Set stores value under key. Overwriting keeps the key's original position.
func (r *Record) Set(key string, value any) {
	r.init()
	r.fields.Set(key, value)
}

// Delete removes key and reports whether it was present.
func (r *Record) Delete(key string) bool {
	if r == nil || r.fields == nil {
		return false
	}
	_, ok := r.fields.Delete(key)
	return ok
}

// Len returns the number of fields.
func (r *Record) Len() int {
	if r == nil || r.fields == nil {
		return 0
	}
	return r.fields.Len()
}

// Keys returns the field names in insertion order.
func (r *Record) Keys() []string {
	keys := make([]string, 0, r.Len())
	r.Range(func(key string, _ any) bool {
		keys = append(keys, key)
		return true
	})
	return keys
}

// Range calls fn for every field in insertion order until fn returns false.
func (r *Record) Range(fn func(key string, value any) bool) {
	if r == nil || r.fields == nil {
		return
	}
	for pair := r.fields.Oldest(); pair != nil; pair = pair.Next() {
		if !fn(pair.Key, pair.Value) {
			return
		}
	}
}

// Clone returns a deep copy of nested records and slices. Scalar values are
// shared.
func (r *Record) Clone() *Record {
	out := New()
	r.Range(func(key string, value any) bool {
		out.Set(key, cloneValue(value))
		return true
	})
	return out
}

func cloneValue(v any) any {
	switch val := v.(type) {
	case *Record:
		return val.Clone()
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = cloneValue(item)
		}
		return out
	default:
		return v
	}
}

// MarshalJSON encodes the record as a JSON object in field order.
func (r *Record) MarshalJSON() ([]byte, error) {
	if r == nil {
		return []byte("null"), nil
	}
	r.init()
	return r.fields.MarshalJSON()
}

// UnmarshalJSON decodes a JSON object, keeping key order at every level.
func (r *Record) UnmarshalJSON(data []byte) error {
	parsed, err := ParseRecord(data)
	if err != nil {
		return err
	}
	r.fields = parsed.fields
	return nil
}

// Plain converts a value tree into plain Go values: records become
// map[string]any and json.Number becomes int or float64.
func Plain(v any) any {
	switch val := v.(type) {
	case *Record:
		m := make(map[string]any, val.Len())
		val.Range(func(key string, value any) bool {
			m[key] = Plain(value)
			return true
		})
		return m
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = Plain(item)
		}
		return out
	case json.Number:
		if i, err := val.Int64(); err == nil {
			return int(i)
		}
		if f, err := val.Float64(); err == nil {
			return f
		}
		return val.String()
	default:
		return v
	}
}
