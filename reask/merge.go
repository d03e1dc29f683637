package reask

import (
	"github.com/BaSui01/guardflow/parser"
	"github.com/BaSui01/guardflow/value"
)

// Merge replaces the subtrees of prev at paths with their counterparts in
// patch, the tree parsed from the reask response against the reduced schema.
// prev is not modified. A part that patch lacks ends up missing, and a patch
// whose document failed to parse marks every reasked part unparseable with
// the document error, so the next validation pass reports them again. Such
// parts keep their declared shape and carry the previous value as Raw.
func Merge(prev, patch *value.Node, paths []string) *value.Node {
	repl := make(map[string]*value.Node, len(paths))
	for _, p := range paths {
		repl[p] = replacement(prev, patch, p)
	}
	return replace(prev, repl)
}

func replacement(prev, patch *value.Node, path string) *value.Node {
	if patch != nil && patch.Path == path {
		return patch.Clone()
	}
	old := prev.Find(path)
	if old == nil {
		return nil
	}
	if patch == nil || patch.Unparseable {
		n := parser.Placeholder(old.Schema, path)
		n.Unparseable = true
		n.Raw = previousValue(old)
		if patch != nil {
			n.ParseError = patch.ParseError
		}
		return n
	}
	if found := patch.Find(path); found != nil {
		return found.Clone()
	}
	n := parser.Placeholder(old.Schema, path)
	n.Missing = true
	n.Raw = previousValue(old)
	if !old.Schema.Optional {
		n.ParseError = "required field is missing"
	}
	return n
}

func previousValue(old *value.Node) any {
	if old.Raw != nil {
		return old.Raw
	}
	if old.Usable() {
		return old.Export()
	}
	return nil
}

func replace(n *value.Node, repl map[string]*value.Node) *value.Node {
	if r, ok := repl[n.Path]; ok && r != nil {
		return r
	}
	out := n.ShallowCopy()
	if n.Fields != nil {
		out.Fields = make([]*value.Node, len(n.Fields))
		for i, c := range n.Fields {
			out.Fields[i] = replace(c, repl)
		}
	}
	if n.Items != nil {
		out.Items = make([]*value.Node, len(n.Items))
		for i, c := range n.Items {
			out.Items[i] = replace(c, repl)
		}
	}
	return out
}
