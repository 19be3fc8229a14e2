// Package schema infers an ordered, typed field list from a sample of
// irregular records.
package schema

import (
	"fmt"
	"strings"
)

// Type is the inferred storage type of a field.
type Type string

const (
	TypeString   Type = "string"
	TypeInteger  Type = "integer"
	TypeDouble   Type = "double"
	TypeBoolean  Type = "boolean"
	TypeDatetime Type = "datetime"
)

// Valid reports whether t is one of the known types.
func (t Type) Valid() bool {
	switch t {
	case TypeString, TypeInteger, TypeDouble, TypeBoolean, TypeDatetime:
		return true
	}
	return false
}

// Field describes one column of an inferred schema.
type Field struct {
	Name     string `json:"name" yaml:"name"`
	Type     Type   `json:"type" yaml:"type"`
	Required bool   `json:"required,omitempty" yaml:"required,omitempty"`
	Unique   bool   `json:"unique,omitempty" yaml:"unique,omitempty"`
	NotNull  bool   `json:"not_null,omitempty" yaml:"not_null,omitempty"`
	Default  any    `json:"default,omitempty" yaml:"default,omitempty"`
	Comment  string `json:"comment,omitempty" yaml:"comment,omitempty"`
}

// Schema is an ordered list of fields with unique names.
type Schema struct {
	Fields []Field `json:"fields" yaml:"fields"`
}

// Len returns the number of fields.
func (s *Schema) Len() int {
	if s == nil {
		return 0
	}
	return len(s.Fields)
}

// Names returns the field names in schema order.
func (s *Schema) Names() []string {
	names := make([]string, 0, s.Len())
	if s == nil {
		return names
	}
	for _, f := range s.Fields {
		names = append(names, f.Name)
	}
	return names
}

// Field returns the field with the given name.
func (s *Schema) Field(name string) (Field, bool) {
	if s == nil {
		return Field{}, false
	}
	for _, f := range s.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return Field{}, false
}

// String renders the schema as "name:type" pairs.
func (s *Schema) String() string {
	parts := make([]string, 0, s.Len())
	if s != nil {
		for _, f := range s.Fields {
			parts = append(parts, fmt.Sprintf("%s:%s", f.Name, f.Type))
		}
	}
	return strings.Join(parts, ", ")
}

// typeSet is a bit set of types.
type typeSet uint32

func (s typeSet) has(bit typeSet) bool { return s&bit != 0 }
