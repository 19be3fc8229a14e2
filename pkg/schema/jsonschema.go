package schema

import (
	"github.com/invopop/jsonschema"
)

// JSONSchema renders the schema as a JSON Schema object document.
// Required and not-null fields are listed as required properties.
func (s *Schema) JSONSchema() *jsonschema.Schema {
	out := &jsonschema.Schema{
		Version:    jsonschema.Version,
		Type:       "object",
		Properties: jsonschema.NewProperties(),
	}
	if s == nil {
		return out
	}

	for _, f := range s.Fields {
		prop := &jsonschema.Schema{
			Description: f.Comment,
			Default:     f.Default,
		}
		switch f.Type {
		case TypeInteger:
			prop.Type = "integer"
		case TypeDouble:
			prop.Type = "number"
		case TypeBoolean:
			prop.Type = "boolean"
		case TypeDatetime:
			prop.Type = "string"
			prop.Format = "date-time"
		default:
			prop.Type = "string"
		}
		out.Properties.Set(f.Name, prop)

		if f.Required || f.NotNull {
			out.Required = append(out.Required, f.Name)
		}
	}
	return out
}
