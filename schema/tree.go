package schema

import (
	"fmt"
	"strings"

	"github.com/BaSui01/guardflow/types"
	"github.com/BaSui01/guardflow/validator"
)

// RootPath is the path of the root node.
const RootPath = "$"

// FieldPath returns the path of an object field below parent.
func FieldPath(parent, name string) string {
	return parent + "." + name
}

// IndexPath returns the path of a list item below parent.
func IndexPath(parent string, i int) string {
	return fmt.Sprintf("%s[%d]", parent, i)
}

// Tree is a built, immutable schema tree. It is safe for concurrent readers.
type Tree struct {
	root *Node
	keys []string
}

// Build validates the invariants of root, resolves every validator reference
// through reg and returns an immutable copy. All problems are reported in one
// configuration error.
func Build(root *Node, reg *validator.Registry) (*Tree, error) {
	if root == nil {
		return nil, types.NewConfigurationError("malformed schema: root is nil")
	}
	if reg == nil {
		reg = validator.Default()
	}

	var problems []string
	checkAcyclic(root, RootPath, map[*Node]bool{}, &problems)
	if len(problems) > 0 {
		return nil, malformed(problems)
	}

	cp := root.clone()
	check(cp, RootPath, reg, &problems)
	if len(problems) > 0 {
		return nil, malformed(problems)
	}
	return newTree(cp), nil
}

// MustBuild is like Build but panics on error.
func MustBuild(root *Node, reg *validator.Registry) *Tree {
	t, err := Build(root, reg)
	if err != nil {
		panic(err)
	}
	return t
}

func newTree(root *Node) *Tree {
	set := make(map[string]struct{})
	walk(root, func(n *Node) {
		for _, k := range n.RequiredMetadataKeys() {
			set[k] = struct{}{}
		}
	})
	return &Tree{root: root, keys: sortedKeys(set)}
}

func malformed(problems []string) error {
	return types.NewConfigurationError("malformed schema: " + strings.Join(problems, "; "))
}

func checkAcyclic(n *Node, path string, onStack map[*Node]bool, problems *[]string) {
	if n == nil {
		return
	}
	if onStack[n] {
		*problems = append(*problems, fmt.Sprintf("%s: cycle detected", path))
		return
	}
	onStack[n] = true
	defer delete(onStack, n)
	for _, c := range n.Children() {
		if c == nil {
			continue
		}
		checkAcyclic(c, FieldPath(path, c.Name), onStack, problems)
	}
}

func check(n *Node, path string, reg *validator.Registry, problems *[]string) {
	add := func(format string, args ...any) {
		*problems = append(*problems, path+": "+fmt.Sprintf(format, args...))
	}

	for i := range n.Validators {
		ref := &n.Validators[i]
		if _, err := validator.ParseOnFail(string(ref.OnFail)); err != nil {
			add("%v", err)
		}
		if ref.instance != nil {
			continue
		}
		v, err := reg.Resolve(ref.ID, ref.Args)
		if err != nil {
			add("%v", err)
			continue
		}
		ref.instance = v
	}

	switch n.Kind {
	case KindScalar:
		if !n.Type.valid() {
			add("unknown scalar type %q", n.Type)
		}
	case KindObject:
		seen := make(map[string]bool, len(n.Fields))
		for i, f := range n.Fields {
			if f == nil {
				add("field %d is nil", i)
				continue
			}
			if f.Name == "" {
				add("field %d has no name", i)
			} else if seen[f.Name] {
				add("duplicate field %q", f.Name)
			}
			seen[f.Name] = true
			check(f, FieldPath(path, f.Name), reg, problems)
		}
	case KindList:
		if n.Elem == nil {
			add("list has no element schema")
			return
		}
		check(n.Elem, path+"[*]", reg, problems)
	case KindChoice:
		if n.Discriminator == "" {
			add("choice has no discriminator")
		}
		if len(n.Cases) == 0 {
			add("choice has no cases")
		}
		seen := make(map[string]bool, len(n.Cases))
		for i, c := range n.Cases {
			if c == nil {
				add("case %d is nil", i)
				continue
			}
			if c.Name == "" {
				add("case %d has no discriminator value", i)
			} else if seen[c.Name] {
				add("duplicate discriminator value %q", c.Name)
			}
			seen[c.Name] = true
			if c.Kind != KindObject {
				add("case %q must be an object", c.Name)
				continue
			}
			if c.Field(n.Discriminator) != nil {
				add("case %q redeclares discriminator %q", c.Name, n.Discriminator)
			}
			check(c, fmt.Sprintf("%s{%s}", path, c.Name), reg, problems)
		}
	default:
		add("unknown kind %q", n.Kind)
	}
}

func walk(n *Node, fn func(*Node)) {
	if n == nil {
		return
	}
	fn(n)
	for _, c := range n.Children() {
		walk(c, fn)
	}
}

// Root returns the root node. Callers must treat it as read-only.
func (t *Tree) Root() *Node {
	return t.root
}

// RequiredMetadataKeys returns every metadata key required anywhere in the tree.
func (t *Tree) RequiredMetadataKeys() []string {
	return append([]string(nil), t.keys...)
}

// MissingMetadataKeys returns the required keys absent from metadata, sorted.
func (t *Tree) MissingMetadataKeys(metadata map[string]any) []string {
	var missing []string
	for _, k := range t.keys {
		if _, ok := metadata[k]; !ok {
			missing = append(missing, k)
		}
	}
	return missing
}

// Selection tells Project how to treat a node.
type Selection int

const (
	// Drop removes the node.
	Drop Selection = iota
	// Whole keeps the node and its entire subtree.
	Whole
	// Partial keeps an object node but asks the selector about each field.
	Partial
)

// Project returns a reduced tree. sel is called with the value path of every
// visited node; Partial is only honoured for object nodes and is treated as
// Whole otherwise. It returns nil when the root is dropped or nothing remains.
func (t *Tree) Project(sel func(path string, n *Node) Selection) *Tree {
	root := project(t.root, RootPath, sel)
	if root == nil {
		return nil
	}
	return newTree(root)
}

func project(n *Node, path string, sel func(string, *Node) Selection) *Node {
	switch sel(path, n) {
	case Drop:
		return nil
	case Partial:
		if n.Kind != KindObject {
			return n
		}
	default:
		return n
	}

	cp := *n
	cp.Fields = nil
	for _, f := range n.Fields {
		if pf := project(f, FieldPath(path, f.Name), sel); pf != nil {
			cp.Fields = append(cp.Fields, pf)
		}
	}
	if len(cp.Fields) == 0 {
		return nil
	}
	return &cp
}
