package record

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/tidwall/gjson"
)

var (
	// ErrInvalidJSON is returned when the input is not valid JSON.
	ErrInvalidJSON = errors.New("invalid JSON")

	// ErrNotObject is returned by ParseRecord when the document is not an object.
	ErrNotObject = errors.New("JSON document is not an object")
)

// Parse decodes a JSON document. Objects become *Record with keys in
// document order, arrays become []any and numbers become json.Number so
// integer and floating-point literals stay distinguishable.
func Parse(raw []byte) (any, error) {
	if !gjson.ValidBytes(raw) {
		return nil, ErrInvalidJSON
	}
	return FromResult(gjson.ParseBytes(raw)), nil
}

// ParseRecord decodes a JSON object into a record.
func ParseRecord(raw []byte) (*Record, error) {
	v, err := Parse(raw)
	if err != nil {
		return nil, err
	}
	r, ok := v.(*Record)
	if !ok {
		return nil, fmt.Errorf("%w: got %T", ErrNotObject, v)
	}
	return r, nil
}

// FromResult converts a gjson result into record values.
func FromResult(res gjson.Result) any {
	switch res.Type {
	case gjson.Null:
		return nil
	case gjson.False:
		return false
	case gjson.True:
		return true
	case gjson.Number:
		return json.Number(res.Raw)
	case gjson.String:
		return res.Str
	case gjson.JSON:
		if res.IsArray() {
			out := make([]any, 0)
			res.ForEach(func(_, value gjson.Result) bool {
				out = append(out, FromResult(value))
				return true
			})
			return out
		}
		r := New()
		res.ForEach(func(key, value gjson.Result) bool {
			r.Set(key.String(), FromResult(value))
			return true
		})
		return r
	default:
		return nil
	}
}
