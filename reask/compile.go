// Package reask turns a failed turn into the next request: a schema reduced to
// the failing parts, an instruction that enumerates every failure, and the
// merge of the corrected parts back into the previous value tree.
package reask

import (
	"fmt"
	"sort"
	"strings"

	"github.com/goccy/go-json"

	"github.com/BaSui01/guardflow/llm"
	"github.com/BaSui01/guardflow/schema"
	"github.com/BaSui01/guardflow/types"
	"github.com/BaSui01/guardflow/validation"
	"github.com/BaSui01/guardflow/value"
)

// JSONSystemPrompt is used when a self-contained reask has no instructions of its own.
const JSONSystemPrompt = "You are a helpful assistant only capable of communicating with valid JSON, and no other text."

// Input is everything Compile needs from the failed turn.
type Input struct {
	Failures []validation.Failure
	Schema   *schema.Tree
	// Previous is the validated tree of the failed turn.
	Previous *value.Node
	// RawOutput is the backend text of the failed turn.
	RawOutput string
	// Base is the request of the failed turn, nil when the turn used a
	// caller-supplied output.
	Base *llm.Request
}

// Reask is the compiled corrective turn.
type Reask struct {
	// Schema is the reduced tree the next output is parsed against.
	Schema *schema.Tree
	// Paths are the value paths of the reasked subtrees, sorted.
	Paths       []string
	Failures    []validation.Failure
	Instruction string
	Request     *llm.Request
}

// Compile builds the reask for in. It fails only when in carries no failures
// or the reduced schema would be empty.
func Compile(in Input) (*Reask, error) {
	if len(in.Failures) == 0 {
		return nil, types.NewError(types.ErrInternalError, "reask requested without failures")
	}

	paths := Roots(in.Failures, in.Previous)
	reduced := Reduce(in.Schema, paths)
	if reduced == nil {
		return nil, types.NewError(types.ErrInternalError,
			fmt.Sprintf("reduced schema is empty for paths %s", strings.Join(paths, ", ")))
	}

	instruction, err := renderInstruction(in, reduced, paths)
	if err != nil {
		return nil, err
	}
	return &Reask{
		Schema:      reduced,
		Paths:       paths,
		Failures:    in.Failures,
		Instruction: instruction,
		Request:     nextRequest(in, instruction),
	}, nil
}

// Roots returns the smallest subtrees to reask, one per failure, deduplicated
// and with nested paths folded into their ancestors. Objects are descended
// into; the first list or choice on the way down is reasked as a unit, and so
// is the failing node itself.
func Roots(failures []validation.Failure, prev *value.Node) []string {
	set := make(map[string]struct{}, len(failures))
	for _, f := range failures {
		set[unitFor(f.Path, prev)] = struct{}{}
	}

	paths := make([]string, 0, len(set))
	for p := range set {
		paths = append(paths, p)
	}
	sort.Strings(paths)

	out := paths[:0]
	for _, p := range paths {
		covered := false
		for _, q := range out {
			if isAncestor(q, p) {
				covered = true
				break
			}
		}
		if !covered {
			out = append(out, p)
		}
	}
	return out
}

func unitFor(path string, prev *value.Node) string {
	for _, n := range chain(prev, path) {
		if k := n.Schema.Kind; k == schema.KindList || k == schema.KindChoice {
			return n.Path
		}
	}
	return path
}

// chain returns the nodes from root to the node at path, inclusive.
func chain(root *value.Node, path string) []*value.Node {
	if root == nil {
		return nil
	}
	if root.Path == path {
		return []*value.Node{root}
	}
	if !isAncestor(root.Path, path) {
		return nil
	}
	for _, c := range root.Children() {
		if rest := chain(c, path); rest != nil {
			return append([]*value.Node{root}, rest...)
		}
	}
	return nil
}

// isAncestor reports whether a is a strict ancestor of b.
func isAncestor(a, b string) bool {
	if len(b) <= len(a) || !strings.HasPrefix(b, a) {
		return false
	}
	next := b[len(a)]
	return next == '.' || next == '['
}

// Reduce projects st onto the given reask roots. Ancestors of a root are kept
// with only the fields leading to it.
func Reduce(st *schema.Tree, paths []string) *schema.Tree {
	return st.Project(func(path string, _ *schema.Node) schema.Selection {
		for _, p := range paths {
			if p == path {
				return schema.Whole
			}
		}
		for _, p := range paths {
			if isAncestor(path, p) {
				return schema.Partial
			}
		}
		return schema.Drop
	})
}

func renderInstruction(in Input, reduced *schema.Tree, paths []string) (string, error) {
	var b strings.Builder
	b.WriteString("I was given the following response, which had problems with some of its values:\n\n")

	for _, f := range in.Failures {
		fmt.Fprintf(&b, "- path: %s\n", f.Path)
		fmt.Fprintf(&b, "  previous value: %s\n", renderValue(f.Value))
		fmt.Fprintf(&b, "  error: %s\n", f.Reason)
		if f.FixValue != nil {
			fmt.Fprintf(&b, "  suggested fix: %s\n", renderValue(f.FixValue))
		}
	}

	if isPlainText(in.Schema) {
		b.WriteString("\nHelp me correct the response. Reply with the corrected value only, as plain text.")
		return b.String(), nil
	}

	prev, err := json.MarshalIndent(pruneExport(in.Previous, paths), "", "  ")
	if err != nil {
		return "", fmt.Errorf("render previous values: %w", err)
	}
	sch, err := reduced.JSONSchema().ToJSONIndent()
	if err != nil {
		return "", fmt.Errorf("render reduced schema: %w", err)
	}

	b.WriteString("\nThe affected part of the previous response was:\n\n")
	b.Write(prev)
	b.WriteString("\n\nHelp me correct the incorrect values. Return only a JSON object with the corrected ")
	b.WriteString("fields, matching this JSON schema:\n\n")
	b.Write(sch)
	b.WriteString("\n\nReply with valid JSON only, without any other text.")
	return b.String(), nil
}

func isPlainText(st *schema.Tree) bool {
	r := st.Root()
	return r.Kind == schema.KindScalar && r.Type == schema.TypeString
}

func renderValue(v any) string {
	if v == nil {
		return "(missing)"
	}
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(data)
}

// pruneExport exports prev restricted to the reask roots and their ancestors.
func pruneExport(prev *value.Node, paths []string) any {
	if prev == nil {
		return nil
	}
	for _, p := range paths {
		if p == prev.Path {
			if !prev.Usable() {
				return prev.Raw
			}
			return prev.Export()
		}
	}
	if prev.Schema.Kind != schema.KindObject || !prev.Usable() {
		return nil
	}
	out := make(map[string]any)
	for _, f := range prev.Fields {
		for _, p := range paths {
			if p == f.Path || isAncestor(f.Path, p) {
				out[f.Schema.Name] = pruneExport(f, paths)
				break
			}
		}
	}
	return out
}

func nextRequest(in Input, instruction string) *llm.Request {
	base := in.Base
	if base == nil {
		base = &llm.Request{}
	}
	next := base.Clone()

	if base.HasHistory() {
		msgs := next.Messages
		if base.Prompt != "" {
			msgs = append(msgs, types.Message{Role: types.RoleUser, Content: base.Prompt})
		}
		msgs = append(msgs,
			types.Message{Role: types.RoleAssistant, Content: in.RawOutput},
			types.Message{Role: types.RoleUser, Content: instruction},
		)
		next.Messages = msgs
		next.Prompt = ""
		return next
	}

	next.Prompt = instruction
	if next.Instructions == "" && !isPlainText(in.Schema) {
		next.Instructions = JSONSystemPrompt
	}
	return next
}
