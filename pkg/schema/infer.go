package schema

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/Sternrassler/gqlfetch/pkg/record"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog/log"
)

var (
	inferDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "gqlfetch_schema_inference_duration_seconds",
		Help:    "Duration of schema inference runs",
		Buckets: prometheus.DefBuckets,
	})

	inferFailuresTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "gqlfetch_schema_inference_failures_total",
		Help: "Schema inference runs rejected by the consistency check",
	})
)

// ErrInconsistent is matched by every *ConsistencyError.
var ErrInconsistent = errors.New("inconsistent field values")

// ConsistencyError reports a field whose values cannot share one type.
type ConsistencyError struct {
	Field string
	// Record is the index of the offending record in the sample.
	Record int
	Value  any
	// Allowed lists the types the earlier values of the field left open.
	Allowed []Type
}

// Error implements the error interface.
func (e *ConsistencyError) Error() string {
	return fmt.Sprintf("field %q: value %#v in record %d is incompatible with types %v allowed by earlier values",
		e.Field, e.Value, e.Record, e.Allowed)
}

// Is makes errors.Is(err, ErrInconsistent) hold.
func (e *ConsistencyError) Is(target error) bool {
	return target == ErrInconsistent
}

// Option configures an Inferencer.
type Option func(*Inferencer)

// WithUnique marks the named fields unique.
func WithUnique(names ...string) Option {
	return func(in *Inferencer) { addAll(in.unique, names) }
}

// WithNotNull marks the named fields not-null.
func WithNotNull(names ...string) Option {
	return func(in *Inferencer) { addAll(in.notNull, names) }
}

// WithRequired marks the named fields required.
func WithRequired(names ...string) Option {
	return func(in *Inferencer) { addAll(in.required, names) }
}

// WithDefault sets a field's default value.
func WithDefault(name string, value any) Option {
	return func(in *Inferencer) { in.defaults[name] = value }
}

// WithComment sets a field's comment.
func WithComment(name, comment string) Option {
	return func(in *Inferencer) { in.comments[name] = comment }
}

// WithMatchers replaces the matcher precedence list.
func WithMatchers(matchers ...Matcher) Option {
	return func(in *Inferencer) { in.matchers = matchers }
}

func addAll(set map[string]bool, names []string) {
	for _, n := range names {
		set[n] = true
	}
}

// Inferencer derives schemas from record samples. It is safe for
// concurrent use once constructed.
type Inferencer struct {
	matchers []Matcher
	unique   map[string]bool
	notNull  map[string]bool
	required map[string]bool
	defaults map[string]any
	comments map[string]string
}

// NewInferencer returns an inferencer using DefaultMatchers.
func NewInferencer(opts ...Option) *Inferencer {
	in := &Inferencer{
		matchers: DefaultMatchers(),
		unique:   map[string]bool{},
		notNull:  map[string]bool{},
		required: map[string]bool{},
		defaults: map[string]any{},
		comments: map[string]string{},
	}
	for _, opt := range opts {
		opt(in)
	}
	return in
}

// Infer derives a schema from records with the default matchers.
func Infer(records []*record.Record, opts ...Option) (*Schema, error) {
	return NewInferencer(opts...).Infer(records)
}

// Infer derives one type per field from the whole sample.
//
// Every non-nil value narrows the set of types the field may take to the
// types that value is accepted by. The field resolves to the first type in
// precedence order that is still allowed and matched by at least one value.
// A value that leaves no type allowed fails inference with a
// *ConsistencyError. Fields without values are strings.
//
// Fields are ordered by the first record's key order, followed by fields
// seen only in later records in sorted name order.
func (in *Inferencer) Infer(records []*record.Record) (*Schema, error) {
	start := time.Now()
	defer func() { inferDuration.Observe(time.Since(start).Seconds()) }()

	all := typeSet(1<<len(in.matchers) - 1)
	allowed := map[string]typeSet{}
	matched := map[string]typeSet{}

	for idx, rec := range records {
		var fieldErr error
		rec.Range(func(name string, value any) bool {
			if _, seen := allowed[name]; !seen {
				allowed[name] = all
			}
			if value == nil {
				return true
			}

			accepts, matches := in.classify(value)
			if allowed[name]&accepts == 0 {
				fieldErr = &ConsistencyError{
					Field:   name,
					Record:  idx,
					Value:   value,
					Allowed: in.types(allowed[name]),
				}
				return false
			}
			allowed[name] &= accepts
			matched[name] |= matches
			return true
		})
		if fieldErr != nil {
			inferFailuresTotal.Inc()
			return nil, fieldErr
		}
	}

	names := fieldOrder(records, allowed)
	schema := &Schema{Fields: make([]Field, 0, len(names))}
	for _, name := range names {
		field := Field{
			Name:     name,
			Type:     in.resolve(allowed[name], matched[name]),
			Unique:   in.unique[name],
			NotNull:  in.notNull[name],
			Required: in.required[name],
			Default:  in.defaults[name],
			Comment:  in.comments[name],
		}
		schema.Fields = append(schema.Fields, field)
	}

	log.Debug().
		Int("records", len(records)).
		Int("fields", schema.Len()).
		Str("schema", schema.String()).
		Msg("Schema inferred")

	return schema, nil
}

func (in *Inferencer) classify(v any) (accepts, matches typeSet) {
	for i, m := range in.matchers {
		bit := typeSet(1 << i)
		if m.Accepts(v) {
			accepts |= bit
			if m.Matches(v) {
				matches |= bit
			}
		}
	}
	return accepts, matches
}

func (in *Inferencer) resolve(allowed, matched typeSet) Type {
	if matched == 0 {
		return TypeString
	}
	for i, m := range in.matchers {
		bit := typeSet(1 << i)
		if allowed.has(bit) && matched.has(bit) {
			return m.Type
		}
	}
	for i, m := range in.matchers {
		if allowed.has(typeSet(1 << i)) {
			return m.Type
		}
	}
	return TypeString
}

func (in *Inferencer) types(set typeSet) []Type {
	out := make([]Type, 0, len(in.matchers))
	for i, m := range in.matchers {
		if set.has(typeSet(1 << i)) {
			out = append(out, m.Type)
		}
	}
	return out
}

func fieldOrder(records []*record.Record, discovered map[string]typeSet) []string {
	names := make([]string, 0, len(discovered))
	placed := make(map[string]bool, len(discovered))

	if len(records) > 0 {
		for _, name := range records[0].Keys() {
			if _, ok := discovered[name]; ok && !placed[name] {
				names = append(names, name)
				placed[name] = true
			}
		}
	}

	rest := make([]string, 0, len(discovered)-len(names))
	for name := range discovered {
		if !placed[name] {
			rest = append(rest, name)
		}
	}
	sort.Strings(rest)

	return append(names, rest...)
}
