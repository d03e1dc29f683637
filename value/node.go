// Package value holds the parsed counterpart of a schema tree for one turn.
package value

import (
	"github.com/BaSui01/guardflow/schema"
)

// Status is the per-node validation status.
type Status string

const (
	StatusUnvalidated Status = "unvalidated"
	StatusPass        Status = "pass"
	StatusFail        Status = "fail"
)

// Node is one parsed node. Its shape always mirrors Schema: object fields follow
// the schema's field order, and absent or unparseable parts are present but flagged.
type Node struct {
	Path   string
	Schema *schema.Node

	// Value is the coerced scalar value.
	Value any
	// Fields holds object fields, or the selected case's fields for a choice.
	Fields []*Node
	Items  []*Node
	Case   string

	// Raw is the decoded input the node was built from.
	Raw         any
	Missing     bool
	Unparseable bool
	ParseError  string

	Status   Status
	Reason   string
	FixValue any
	Filtered bool
}

// Field returns the child with the given name.
func (n *Node) Field(name string) *Node {
	for _, f := range n.Fields {
		if f.Schema != nil && f.Schema.Name == name {
			return f
		}
	}
	return nil
}

// Failed reports whether the node failed validation.
func (n *Node) Failed() bool {
	return n.Status == StatusFail
}

// Usable reports whether the node carries a value that parsed.
func (n *Node) Usable() bool {
	return !n.Missing && !n.Unparseable
}

// Children returns the direct children in order.
func (n *Node) Children() []*Node {
	if n.Schema != nil && n.Schema.Kind == schema.KindList {
		return n.Items
	}
	return n.Fields
}

// Walk visits n and its descendants in pre-order until fn returns false.
func (n *Node) Walk(fn func(*Node) bool) bool {
	if n == nil {
		return true
	}
	if !fn(n) {
		return false
	}
	for _, c := range n.Children() {
		if !c.Walk(fn) {
			return false
		}
	}
	return true
}

// Find returns the node at path.
func (n *Node) Find(path string) *Node {
	var found *Node
	n.Walk(func(c *Node) bool {
		if c.Path == path {
			found = c
			return false
		}
		return true
	})
	return found
}

// Clone deep-copies the node tree. Schema pointers are shared.
func (n *Node) Clone() *Node {
	if n == nil {
		return nil
	}
	c := *n
	c.Fields = cloneAll(n.Fields)
	c.Items = cloneAll(n.Items)
	return &c
}

// ShallowCopy copies n without its children slices being duplicated.
func (n *Node) ShallowCopy() *Node {
	c := *n
	return &c
}

func cloneAll(nodes []*Node) []*Node {
	if nodes == nil {
		return nil
	}
	out := make([]*Node, len(nodes))
	for i, c := range nodes {
		out[i] = c.Clone()
	}
	return out
}

// Export converts the tree into plain Go values: map[string]any, []any and
// scalars. Filtered and missing nodes are omitted; unparseable scalars export
// their raw input.
func (n *Node) Export() any {
	if n == nil || n.Missing || n.Filtered {
		return nil
	}
	if n.Unparseable {
		return n.Raw
	}
	switch n.Schema.Kind {
	case schema.KindObject, schema.KindChoice:
		out := make(map[string]any, len(n.Fields)+1)
		if n.Schema.Kind == schema.KindChoice {
			out[n.Schema.Discriminator] = n.Case
		}
		for _, f := range n.Fields {
			if f.Filtered || f.Missing {
				continue
			}
			out[f.Schema.Name] = f.Export()
		}
		return out
	case schema.KindList:
		out := make([]any, 0, len(n.Items))
		for _, it := range n.Items {
			if it.Filtered || it.Missing {
				continue
			}
			out = append(out, it.Export())
		}
		return out
	default:
		return n.Value
	}
}
