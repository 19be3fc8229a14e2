package schema

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/Sternrassler/gqlfetch/pkg/record"
	"github.com/spf13/cast"
)

// Matcher is one typed predicate of the inference precedence list.
//
// Accepts reports whether a value can be stored as Type. Matches reports
// whether the value is natively of Type; a field only resolves to a type
// that at least one of its values matches.
type Matcher struct {
	Type    Type
	Accepts func(v any) bool
	Matches func(v any) bool
}

// DefaultMatchers returns the matchers in precedence order: datetime,
// boolean, double, integer, string.
func DefaultMatchers() []Matcher {
	return []Matcher{
		{Type: TypeDatetime, Accepts: isDatetime, Matches: isDatetime},
		{Type: TypeBoolean, Accepts: isBoolean, Matches: isBoolean},
		{Type: TypeDouble, Accepts: isNumeric, Matches: isFloating},
		{Type: TypeInteger, Accepts: isIntegral, Matches: isIntegral},
		{Type: TypeString, Accepts: isText, Matches: isText},
	}
}

func isDatetime(v any) bool {
	switch val := v.(type) {
	case time.Time, *time.Time:
		return true
	case string:
		if strings.TrimSpace(val) == "" {
			return false
		}
		_, err := cast.StringToDate(val)
		return err == nil
	}
	return false
}

func isBoolean(v any) bool {
	switch val := v.(type) {
	case bool:
		return true
	case string:
		return strings.EqualFold(val, "true") || strings.EqualFold(val, "false")
	}
	if i, ok := integerValue(v); ok {
		return i == 0 || i == 1
	}
	return false
}

func isNumeric(v any) bool {
	switch val := v.(type) {
	case string:
		_, err := strconv.ParseFloat(strings.TrimSpace(val), 64)
		return err == nil
	case json.Number:
		_, err := val.Float64()
		return err == nil
	case float32, float64:
		return true
	}
	_, ok := integerValue(v)
	return ok
}

func isFloating(v any) bool {
	switch val := v.(type) {
	case float32, float64:
		return true
	case json.Number:
		if _, err := val.Int64(); err == nil {
			return false
		}
		_, err := val.Float64()
		return err == nil
	case string:
		s := strings.TrimSpace(val)
		if _, err := strconv.ParseInt(s, 10, 64); err == nil {
			return false
		}
		_, err := strconv.ParseFloat(s, 64)
		return err == nil
	}
	return false
}

func isIntegral(v any) bool {
	if _, ok := integerValue(v); ok {
		return true
	}
	switch val := v.(type) {
	case string:
		_, err := strconv.ParseInt(strings.TrimSpace(val), 10, 64)
		return err == nil
	case float64:
		return val == math.Trunc(val) && !math.IsInf(val, 0)
	case float32:
		f := float64(val)
		return f == math.Trunc(f) && !math.IsInf(f, 0)
	}
	return false
}

func isText(v any) bool {
	switch v.(type) {
	case string, *record.Record, map[string]any, []any:
		return true
	}
	return false
}

// integerValue returns v as int64 when v is a Go integer or an integer
// json.Number literal.
func integerValue(v any) (int64, bool) {
	switch val := v.(type) {
	case int:
		return int64(val), true
	case int8:
		return int64(val), true
	case int16:
		return int64(val), true
	case int32:
		return int64(val), true
	case int64:
		return val, true
	case uint:
		return int64(val), true
	case uint8:
		return int64(val), true
	case uint16:
		return int64(val), true
	case uint32:
		return int64(val), true
	case uint64:
		if val > math.MaxInt64 {
			return 0, false
		}
		return int64(val), true
	case json.Number:
		i, err := val.Int64()
		return i, err == nil
	}
	return 0, false
}
