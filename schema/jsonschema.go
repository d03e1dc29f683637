package schema

import (
	"strings"

	"github.com/goccy/go-json"
)

// JSONSchemaType represents JSON Schema types.
type JSONSchemaType string

const (
	JSONString  JSONSchemaType = "string"
	JSONNumber  JSONSchemaType = "number"
	JSONInteger JSONSchemaType = "integer"
	JSONBoolean JSONSchemaType = "boolean"
	JSONObject  JSONSchemaType = "object"
	JSONArray   JSONSchemaType = "array"
)

// JSONSchema is the JSON Schema rendering of a Node, used in prompts.
type JSONSchema struct {
	Title       string         `json:"title,omitempty"`
	Description string         `json:"description,omitempty"`
	Type        JSONSchemaType `json:"type,omitempty"`

	Properties map[string]*JSONSchema `json:"properties,omitempty"`
	Required   []string               `json:"required,omitempty"`
	Items      *JSONSchema            `json:"items,omitempty"`
	OneOf      []*JSONSchema          `json:"oneOf,omitempty"`

	Const  any    `json:"const,omitempty"`
	Format string `json:"format,omitempty"`

	// Validators lists the validator IDs attached to the node.
	Validators []string `json:"x-validators,omitempty"`
}

// ToJSON serializes the schema.
func (s *JSONSchema) ToJSON() ([]byte, error) {
	return json.Marshal(s)
}

// ToJSONIndent serializes the schema with indentation.
func (s *JSONSchema) ToJSONIndent() ([]byte, error) {
	return json.MarshalIndent(s, "", "  ")
}

// JSONSchema renders the whole tree.
func (t *Tree) JSONSchema() *JSONSchema {
	return ToJSONSchema(t.root)
}

// ToJSONSchema renders n as JSON Schema.
func ToJSONSchema(n *Node) *JSONSchema {
	if n == nil {
		return nil
	}
	s := &JSONSchema{Description: n.Description}
	for _, ref := range n.Validators {
		s.Validators = append(s.Validators, ref.ID)
	}

	switch n.Kind {
	case KindScalar:
		s.Type, s.Format = scalarJSONType(n)
	case KindObject:
		s.Type = JSONObject
		s.Properties = make(map[string]*JSONSchema, len(n.Fields))
		for _, f := range n.Fields {
			s.Properties[f.Name] = ToJSONSchema(f)
			if !f.Optional {
				s.Required = append(s.Required, f.Name)
			}
		}
	case KindList:
		s.Type = JSONArray
		s.Items = ToJSONSchema(n.Elem)
	case KindChoice:
		for _, c := range n.Cases {
			cs := ToJSONSchema(c)
			cs.Title = c.Name
			if cs.Properties == nil {
				cs.Properties = make(map[string]*JSONSchema, 1)
			}
			cs.Properties[n.Discriminator] = &JSONSchema{Type: JSONString, Const: c.Name}
			cs.Required = append([]string{n.Discriminator}, cs.Required...)
			s.OneOf = append(s.OneOf, cs)
		}
	}
	return s
}

func scalarJSONType(n *Node) (JSONSchemaType, string) {
	switch n.Type {
	case TypeInteger:
		return JSONInteger, n.Format
	case TypeFloat:
		return JSONNumber, n.Format
	case TypeBool:
		return JSONBoolean, n.Format
	case TypeDate:
		return JSONString, formatOr(n.Format, "date")
	case TypeTime:
		return JSONString, formatOr(n.Format, "time")
	case TypeDateTime:
		return JSONString, formatOr(n.Format, "date-time")
	default:
		return JSONString, n.Format
	}
}

func formatOr(format, def string) string {
	if strings.TrimSpace(format) == "" {
		return def
	}
	return format
}
