// Package parser turns raw backend text into a value tree shaped like a schema tree.
package parser

import (
	"fmt"
	"strings"

	"github.com/goccy/go-json"

	"github.com/BaSui01/guardflow/schema"
	"github.com/BaSui01/guardflow/types"
	"github.com/BaSui01/guardflow/value"
)

// ParseError is a node-level parse problem.
type ParseError struct {
	Path    string `json:"path"`
	Message string `json:"message"`
}

// Error implements the error interface.
func (e *ParseError) Error() string {
	if e.Path == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Path, e.Message)
}

// Parse decodes raw against tree. The returned value tree always mirrors the
// schema's declared shape. Node-level problems are recorded on the nodes; the
// error is non-nil only when the document as a whole could not be decoded, in
// which case the root is flagged unparseable.
func Parse(raw string, tree *schema.Tree) (*value.Node, error) {
	return ParseNode(raw, tree.Root())
}

// ParseNode is Parse for a bare schema node.
func ParseNode(raw string, root *schema.Node) (*value.Node, error) {
	path := schema.RootPath

	if root.Kind == schema.KindScalar {
		text := StripFences(raw)
		if text == "" {
			n := missing(root, path)
			n.ParseError = "empty output"
			return n, nil
		}
		if root.Type == schema.TypeString {
			return &value.Node{Path: path, Schema: root, Value: text, Raw: text, Status: value.StatusUnvalidated}, nil
		}
		decoded, err := decode(text)
		if err != nil {
			decoded = text
		}
		return build(root, path, decoded, true), nil
	}

	decoded, err := decode(ExtractJSON(raw))
	if err != nil {
		n := placeholder(root, path)
		n.Unparseable = true
		n.Raw = raw
		n.ParseError = fmt.Sprintf("output is not valid JSON: %v", err)
		return n, types.NewError(types.ErrParse, "could not decode output").WithCause(err).WithPath(path)
	}
	return build(root, path, decoded, true), nil
}

// Errors collects every node-level parse problem in walk order.
func Errors(root *value.Node) []ParseError {
	var out []ParseError
	root.Walk(func(n *value.Node) bool {
		if n.ParseError != "" {
			out = append(out, ParseError{Path: n.Path, Message: n.ParseError})
			return false
		}
		return true
	})
	return out
}

func decode(payload string) (any, error) {
	v, err := decodeOnce(payload)
	if err == nil {
		return v, nil
	}
	if fixed := fixInvalidJSONEscapes(payload); fixed != payload {
		if v2, err2 := decodeOnce(fixed); err2 == nil {
			return v2, nil
		}
	}
	return nil, err
}

func decodeOnce(payload string) (any, error) {
	dec := json.NewDecoder(strings.NewReader(payload))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}
	return v, nil
}

func build(s *schema.Node, path string, raw any, present bool) *value.Node {
	if !present || raw == nil {
		return missing(s, path)
	}

	n := &value.Node{Path: path, Schema: s, Raw: raw, Status: value.StatusUnvalidated}
	switch s.Kind {
	case schema.KindScalar:
		v, err := coerce(s, raw)
		if err != nil {
			n.Unparseable = true
			n.ParseError = err.Error()
			return n
		}
		n.Value = v

	case schema.KindObject:
		m, ok := asObject(raw)
		if !ok {
			return unparseable(s, path, raw, fmt.Sprintf("expected object, got %s", jsonTypeName(raw)))
		}
		n.Raw = m
		n.Fields = buildFields(s.Fields, path, m)

	case schema.KindList:
		items, ok := asList(raw)
		if !ok {
			return unparseable(s, path, raw, fmt.Sprintf("expected array, got %s", jsonTypeName(raw)))
		}
		n.Raw = items
		n.Items = make([]*value.Node, len(items))
		for i, it := range items {
			n.Items[i] = build(s.Elem, schema.IndexPath(path, i), it, true)
		}

	case schema.KindChoice:
		m, ok := asObject(raw)
		if !ok {
			return unparseable(s, path, raw, fmt.Sprintf("expected object, got %s", jsonTypeName(raw)))
		}
		n.Raw = m
		disc, ok := m[s.Discriminator].(string)
		if !ok {
			return unparseable(s, path, m, fmt.Sprintf("missing discriminator %q", s.Discriminator))
		}
		c := s.CaseFor(disc)
		if c == nil {
			names := make([]string, len(s.Cases))
			for i, cs := range s.Cases {
				names[i] = cs.Name
			}
			return unparseable(s, path, m, fmt.Sprintf("unknown %s %q, expected one of: %s",
				s.Discriminator, disc, strings.Join(names, ", ")))
		}
		n.Case = disc
		n.Fields = buildFields(c.Fields, path, m)
	}
	return n
}

func buildFields(fields []*schema.Node, path string, m map[string]any) []*value.Node {
	out := make([]*value.Node, len(fields))
	for i, f := range fields {
		rv, present := m[f.Name]
		out[i] = build(f, schema.FieldPath(path, f.Name), rv, present)
	}
	return out
}

// asObject accepts an object, or an object encoded as a JSON string.
func asObject(raw any) (map[string]any, bool) {
	switch v := raw.(type) {
	case map[string]any:
		return v, true
	case string:
		if decoded, err := decode(strings.TrimSpace(v)); err == nil {
			m, ok := decoded.(map[string]any)
			return m, ok
		}
	}
	return nil, false
}

// asList accepts an array, or an array encoded as a JSON string.
func asList(raw any) ([]any, bool) {
	switch v := raw.(type) {
	case []any:
		return v, true
	case string:
		if decoded, err := decode(strings.TrimSpace(v)); err == nil {
			l, ok := decoded.([]any)
			return l, ok
		}
	}
	return nil, false
}

func unparseable(s *schema.Node, path string, raw any, reason string) *value.Node {
	n := placeholder(s, path)
	n.Unparseable = true
	n.Raw = raw
	n.ParseError = reason
	return n
}

func missing(s *schema.Node, path string) *value.Node {
	n := placeholder(s, path)
	n.Missing = true
	if !s.Optional {
		n.ParseError = "required field is missing"
	}
	return n
}

// placeholder builds an empty node whose object fields are present but missing,
// keeping the declared shape without reporting each child separately.
func placeholder(s *schema.Node, path string) *value.Node {
	n := &value.Node{Path: path, Schema: s, Status: value.StatusUnvalidated}
	if s.Kind == schema.KindObject {
		n.Fields = make([]*value.Node, len(s.Fields))
		for i, f := range s.Fields {
			c := placeholder(f, schema.FieldPath(path, f.Name))
			c.Missing = true
			n.Fields[i] = c
		}
	}
	return n
}

// Placeholder builds an unvalidated node for s at path with the declared
// object shape and no value.
func Placeholder(s *schema.Node, path string) *value.Node {
	return placeholder(s, path)
}

// FromValue builds a value node for s from an in-memory value, coercing scalars
// exactly as Parse does. It is used to materialize validator fix values.
func FromValue(s *schema.Node, path string, v any) *value.Node {
	return build(s, path, v, true)
}
