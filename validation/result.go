package validation

import (
	"fmt"
	"strings"

	"github.com/BaSui01/guardflow/validator"
	"github.com/BaSui01/guardflow/value"
)

// FailureKind distinguishes parse problems from validator failures.
type FailureKind string

const (
	FailureParse      FailureKind = "parse"
	FailureValidation FailureKind = "validation"
)

// Failure is one node-level problem.
type Failure struct {
	Path      string           `json:"path"`
	Kind      FailureKind      `json:"kind"`
	Validator string           `json:"validator,omitempty"`
	Action    validator.Action `json:"action,omitempty"`
	Reason    string           `json:"reason"`
	Value     any              `json:"value,omitempty"`
	FixValue  any              `json:"fix_value,omitempty"`
}

// String implements fmt.Stringer.
func (f Failure) String() string {
	if f.Validator != "" {
		return fmt.Sprintf("%s: %s (%s)", f.Path, f.Reason, f.Validator)
	}
	return fmt.Sprintf("%s: %s", f.Path, f.Reason)
}

// Result is the outcome of one validation pass.
type Result struct {
	Tree      *value.Node `json:"-"`
	Failures  []Failure   `json:"failures,omitempty"`
	Warnings  []Failure   `json:"warnings,omitempty"`
	Refrained bool        `json:"refrained,omitempty"`
}

// Passed reports whether the pass produced a usable output without failures.
func (r *Result) Passed() bool {
	return len(r.Failures) == 0 && !r.Refrained
}

// Output returns the validated output as plain values, nil when refrained.
func (r *Result) Output() any {
	if r.Refrained || r.Tree == nil {
		return nil
	}
	return r.Tree.Export()
}

// Paths returns the failing paths in order.
func (r *Result) Paths() []string {
	paths := make([]string, len(r.Failures))
	for i, f := range r.Failures {
		paths[i] = f.Path
	}
	return paths
}

// Summary joins all failures into one message.
func Summary(failures []Failure) string {
	msgs := make([]string, len(failures))
	for i, f := range failures {
		msgs[i] = f.String()
	}
	if len(msgs) == 1 {
		return msgs[0]
	}
	return fmt.Sprintf("validation failed with %d errors: %s", len(msgs), strings.Join(msgs, "; "))
}
