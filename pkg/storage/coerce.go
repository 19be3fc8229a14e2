package storage

import (
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"github.com/Sternrassler/gqlfetch/pkg/record"
	"github.com/go-faster/errors"
	"github.com/spf13/cast"
)

// ErrCoerce is returned when a value cannot be stored in its column.
var ErrCoerce = errors.New("cannot coerce value")

// coerce converts v to the Go value stored for a column of type t. Nested
// values are stored as JSON text.
func coerce(v any, t ColumnType) (any, error) {
	if v == nil {
		return nil, nil
	}

	switch t {
	case ColumnText:
		switch val := v.(type) {
		case *record.Record, []any, map[string]any:
			raw, err := json.Marshal(val)
			if err != nil {
				return nil, errors.Wrap(err, "encode nested value")
			}
			return string(raw), nil
		case time.Time:
			return val.UTC().Format(time.RFC3339Nano), nil
		}
		s, err := cast.ToStringE(v)
		if err != nil {
			return nil, errors.Wrapf(ErrCoerce, "%v to text", v)
		}
		return s, nil

	case ColumnInteger:
		switch val := v.(type) {
		case json.Number:
			return parseInt(string(val))
		case string:
			return parseInt(val)
		case float64:
			if val != float64(int64(val)) {
				return nil, errors.Wrapf(ErrCoerce, "%v to integer", v)
			}
		case bool:
			if val {
				return int64(1), nil
			}
			return int64(0), nil
		}
		n, err := cast.ToInt64E(v)
		if err != nil {
			return nil, errors.Wrapf(ErrCoerce, "%v to integer", v)
		}
		return n, nil

	case ColumnFloat:
		switch val := v.(type) {
		case json.Number:
			f, err := val.Float64()
			if err != nil {
				return nil, errors.Wrapf(ErrCoerce, "%v to float", v)
			}
			return f, nil
		case string:
			f, err := strconv.ParseFloat(strings.TrimSpace(val), 64)
			if err != nil {
				return nil, errors.Wrapf(ErrCoerce, "%q to float", val)
			}
			return f, nil
		}
		f, err := cast.ToFloat64E(v)
		if err != nil {
			return nil, errors.Wrapf(ErrCoerce, "%v to float", v)
		}
		return f, nil

	case ColumnBoolean:
		switch val := v.(type) {
		case json.Number:
			n, err := val.Float64()
			if err != nil {
				return nil, errors.Wrapf(ErrCoerce, "%v to boolean", v)
			}
			return n != 0, nil
		case string:
			b, err := strconv.ParseBool(strings.ToLower(strings.TrimSpace(val)))
			if err != nil {
				return nil, errors.Wrapf(ErrCoerce, "%q to boolean", val)
			}
			return b, nil
		}
		b, err := cast.ToBoolE(v)
		if err != nil {
			return nil, errors.Wrapf(ErrCoerce, "%v to boolean", v)
		}
		return b, nil

	case ColumnTimestamp:
		ts, err := cast.ToTimeE(v)
		if err != nil {
			return nil, errors.Wrapf(ErrCoerce, "%v to timestamp", v)
		}
		return ts.UTC(), nil
	}

	return nil, errors.Wrapf(ErrUnknownType, "%q", t)
}

func parseInt(s string) (any, error) {
	n, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil {
		return nil, errors.Wrapf(ErrCoerce, "%q to integer", s)
	}
	return n, nil
}
