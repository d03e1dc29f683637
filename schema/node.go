package schema

import (
	"sort"

	"github.com/BaSui01/guardflow/validator"
)

// Kind is the closed set of node kinds.
type Kind string

const (
	KindScalar Kind = "scalar"
	KindObject Kind = "object"
	KindList   Kind = "list"
	KindChoice Kind = "choice"
)

// ScalarType is the primitive type a scalar node is coerced to.
type ScalarType string

const (
	TypeString   ScalarType = "string"
	TypeInteger  ScalarType = "integer"
	TypeFloat    ScalarType = "float"
	TypeBool     ScalarType = "bool"
	TypeDate     ScalarType = "date"
	TypeTime     ScalarType = "time"
	TypeDateTime ScalarType = "datetime"
)

func (t ScalarType) valid() bool {
	switch t {
	case TypeString, TypeInteger, TypeFloat, TypeBool, TypeDate, TypeTime, TypeDateTime:
		return true
	}
	return false
}

// ValidatorRef binds a validator to a node together with its on-fail policy.
type ValidatorRef struct {
	ID     string
	Args   map[string]any
	OnFail validator.OnFail

	instance validator.Validator
}

// Validator returns the resolved implementation. It is nil until the tree is built,
// unless the ref was created from an instance.
func (r ValidatorRef) Validator() validator.Validator {
	return r.instance
}

// Node is one field's expected shape.
type Node struct {
	Name        string
	Kind        Kind
	Type        ScalarType
	Format      string
	Description string
	Optional    bool

	// object
	Fields []*Node
	// list
	Elem *Node
	// choice; each case is an object node named after its discriminator value
	Discriminator string
	Cases         []*Node

	Validators   []ValidatorRef
	MetadataKeys []string
}

func scalar(name string, t ScalarType) *Node {
	return &Node{Name: name, Kind: KindScalar, Type: t}
}

// String creates a text scalar.
func String(name string) *Node { return scalar(name, TypeString) }

// Integer creates an integer scalar.
func Integer(name string) *Node { return scalar(name, TypeInteger) }

// Float creates a float scalar.
func Float(name string) *Node { return scalar(name, TypeFloat) }

// Bool creates a boolean scalar.
func Bool(name string) *Node { return scalar(name, TypeBool) }

// Date creates a date scalar (layout 2006-01-02 unless Format overrides it).
func Date(name string) *Node { return scalar(name, TypeDate) }

// Time creates a time-of-day scalar (layout 15:04:05 unless Format overrides it).
func Time(name string) *Node { return scalar(name, TypeTime) }

// DateTime creates a timestamp scalar (RFC 3339 unless Format overrides it).
func DateTime(name string) *Node { return scalar(name, TypeDateTime) }

// Object creates an object node with ordered fields.
func Object(name string, fields ...*Node) *Node {
	return &Node{Name: name, Kind: KindObject, Fields: fields}
}

// List creates a list node.
func List(name string, elem *Node) *Node {
	return &Node{Name: name, Kind: KindList, Elem: elem}
}

// Choice creates a tagged union selected by the discriminator field.
func Choice(name, discriminator string, cases ...*Node) *Node {
	return &Node{Name: name, Kind: KindChoice, Discriminator: discriminator, Cases: cases}
}

// Case creates one branch of a Choice.
func Case(value string, fields ...*Node) *Node {
	return Object(value, fields...)
}

// WithFormat sets the format-spec.
func (n *Node) WithFormat(format string) *Node {
	n.Format = format
	return n
}

// WithDescription sets the description used in prompts.
func (n *Node) WithDescription(desc string) *Node {
	n.Description = desc
	return n
}

// AsOptional marks the node as not required by its parent.
func (n *Node) AsOptional() *Node {
	n.Optional = true
	return n
}

// WithValidator attaches a registry validator by ID.
func (n *Node) WithValidator(id string, onFail validator.OnFail, args map[string]any) *Node {
	n.Validators = append(n.Validators, ValidatorRef{ID: id, Args: args, OnFail: onFail})
	return n
}

// Use attaches an already constructed validator.
func (n *Node) Use(v validator.Validator, onFail validator.OnFail) *Node {
	n.Validators = append(n.Validators, ValidatorRef{ID: v.Name(), OnFail: onFail, instance: v})
	return n
}

// RequireMetadata declares metadata keys this node needs regardless of its validators.
func (n *Node) RequireMetadata(keys ...string) *Node {
	n.MetadataKeys = append(n.MetadataKeys, keys...)
	return n
}

// Field returns the object field with the given name.
func (n *Node) Field(name string) *Node {
	for _, f := range n.Fields {
		if f.Name == name {
			return f
		}
	}
	return nil
}

// CaseFor returns the choice case for a discriminator value.
func (n *Node) CaseFor(value string) *Node {
	for _, c := range n.Cases {
		if c.Name == value {
			return c
		}
	}
	return nil
}

// RequiredMetadataKeys returns the node's own keys merged with those of its
// validators, sorted and deduplicated.
func (n *Node) RequiredMetadataKeys() []string {
	set := make(map[string]struct{})
	for _, k := range n.MetadataKeys {
		set[k] = struct{}{}
	}
	for _, ref := range n.Validators {
		if ref.instance == nil {
			continue
		}
		for _, k := range ref.instance.RequiredMetadataKeys() {
			set[k] = struct{}{}
		}
	}
	return sortedKeys(set)
}

// Children returns the nodes directly below n, in declaration order.
func (n *Node) Children() []*Node {
	switch n.Kind {
	case KindObject:
		return n.Fields
	case KindList:
		if n.Elem != nil {
			return []*Node{n.Elem}
		}
	case KindChoice:
		return n.Cases
	}
	return nil
}

func sortedKeys(set map[string]struct{}) []string {
	if len(set) == 0 {
		return nil
	}
	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// clone deep-copies the node structure. Validator instances are shared.
func (n *Node) clone() *Node {
	if n == nil {
		return nil
	}
	c := *n
	if n.Fields != nil {
		c.Fields = make([]*Node, len(n.Fields))
		for i, f := range n.Fields {
			c.Fields[i] = f.clone()
		}
	}
	c.Elem = n.Elem.clone()
	if n.Cases != nil {
		c.Cases = make([]*Node, len(n.Cases))
		for i, cs := range n.Cases {
			c.Cases[i] = cs.clone()
		}
	}
	if n.Validators != nil {
		c.Validators = make([]ValidatorRef, len(n.Validators))
		for i, ref := range n.Validators {
			c.Validators[i] = ref
			if ref.Args != nil {
				args := make(map[string]any, len(ref.Args))
				for k, v := range ref.Args {
					args[k] = v
				}
				c.Validators[i].Args = args
			}
		}
	}
	c.MetadataKeys = append([]string(nil), n.MetadataKeys...)
	return &c
}
