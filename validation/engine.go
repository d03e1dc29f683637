// Package validation walks a parsed value tree against its schema, runs every
// node's validators and collects the per-node failures that drive reasks.
package validation

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/BaSui01/guardflow/parser"
	"github.com/BaSui01/guardflow/schema"
	"github.com/BaSui01/guardflow/types"
	"github.com/BaSui01/guardflow/validator"
	"github.com/BaSui01/guardflow/value"
)

// Observer receives every validator outcome, e.g. for metrics.
type Observer interface {
	ObserveValidator(validatorID string, action validator.Action)
}

// Option configures an Engine.
type Option func(*Engine)

// WithObserver registers an outcome observer.
func WithObserver(o Observer) Option {
	return func(e *Engine) { e.observer = o }
}

// Engine validates value trees. It holds no per-session state and is safe for
// concurrent use.
type Engine struct {
	logger   *zap.Logger
	observer Observer
}

// NewEngine creates an Engine.
func NewEngine(logger *zap.Logger, opts ...Option) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	e := &Engine{logger: logger.With(zap.String("component", "validation"))}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// CheckMetadata reports every required metadata key missing from metadata in
// one configuration error.
func CheckMetadata(st *schema.Tree, metadata map[string]any) error {
	if missing := st.MissingMetadataKeys(metadata); len(missing) > 0 {
		return types.NewMissingMetadataError(missing)
	}
	return nil
}

// Validate runs a post-order walk over tree. The input tree is not modified;
// fixes produce new nodes in the returned tree. A fatal validator outcome
// returns a VALIDATION_FATAL error and no result.
func (e *Engine) Validate(ctx context.Context, tree *value.Node, st *schema.Tree, metadata map[string]any) (*Result, error) {
	if err := CheckMetadata(st, metadata); err != nil {
		return nil, err
	}

	w := &walk{ctx: ctx, engine: e, metadata: metadata}
	out, err := w.visit(tree)
	if err != nil {
		return nil, err
	}
	if out.Filtered {
		w.refrained = true
	}

	if len(w.failures) > 0 {
		e.logger.Debug("validation failed",
			zap.Int("failures", len(w.failures)),
			zap.Strings("paths", pathsOf(w.failures)),
		)
	}
	return &Result{
		Tree:      out,
		Failures:  w.failures,
		Warnings:  w.warnings,
		Refrained: w.refrained,
	}, nil
}

type walk struct {
	ctx       context.Context
	engine    *Engine
	metadata  map[string]any
	failures  []Failure
	warnings  []Failure
	refrained bool
}

func (w *walk) visit(n *value.Node) (*value.Node, error) {
	out := n.ShallowCopy()
	out.Status = value.StatusUnvalidated
	out.Reason = ""
	out.FixValue = nil
	out.Filtered = false

	if n.Missing {
		if n.Schema.Optional {
			out.Status = value.StatusPass
			return out, nil
		}
		w.parseFailure(out, n.Raw)
		return out, nil
	}
	if n.Unparseable {
		w.parseFailure(out, n.Raw)
		return out, nil
	}

	// a fix on this node supersedes whatever its subtree reported
	nf, nw, refrained := len(w.failures), len(w.warnings), w.refrained

	childFailed := false
	switch n.Schema.Kind {
	case schema.KindObject, schema.KindChoice:
		out.Fields = make([]*value.Node, len(n.Fields))
		for i, c := range n.Fields {
			vc, err := w.visit(c)
			if err != nil {
				return nil, err
			}
			out.Fields[i] = vc
			if vc.Failed() && !vc.Schema.Optional {
				childFailed = true
			}
		}
	case schema.KindList:
		out.Items = make([]*value.Node, len(n.Items))
		for i, c := range n.Items {
			vc, err := w.visit(c)
			if err != nil {
				return nil, err
			}
			out.Items[i] = vc
			if vc.Failed() {
				childFailed = true
			}
		}
	}

	out, fixed, err := w.runValidators(out)
	if err != nil {
		return nil, err
	}
	if fixed {
		w.failures = w.failures[:nf]
		w.warnings = w.warnings[:nw]
		w.refrained = refrained
		w.settleFix(out)
		return out, nil
	}
	if childFailed && out.Status != value.StatusFail {
		out.Status = value.StatusFail
		out.Reason = "one or more children failed"
	}
	if out.Status == value.StatusUnvalidated {
		out.Status = value.StatusPass
	}
	return out, nil
}

func (w *walk) parseFailure(out *value.Node, raw any) {
	out.Status = value.StatusFail
	out.Reason = out.ParseError
	w.failures = append(w.failures, Failure{
		Path:   out.Path,
		Kind:   FailureParse,
		Action: validator.ActionReask,
		Reason: out.ParseError,
		Value:  raw,
	})
}

// settleFix marks a fixed subtree pass. Parts the fix value could not fill
// are reported as parse failures and fail their ancestors.
func (w *walk) settleFix(n *value.Node) bool {
	n.FixValue = nil
	n.Reason = ""
	if n.Missing && n.Schema.Optional {
		n.Status = value.StatusPass
		return false
	}
	if !n.Usable() {
		if n.ParseError == "" {
			n.ParseError = "fix value does not match the declared shape"
		}
		w.parseFailure(n, n.Raw)
		return true
	}

	failed := false
	for _, c := range n.Children() {
		if w.settleFix(c) && (n.Schema.Kind == schema.KindList || !c.Schema.Optional) {
			failed = true
		}
	}
	if failed {
		n.Status = value.StatusFail
		n.Reason = "one or more children failed"
		return true
	}
	n.Status = value.StatusPass
	return false
}

// runValidators applies the node's validators in order and stops at the first
// non-pass outcome. The bool reports that the node was replaced by a fix value.
func (w *walk) runValidators(out *value.Node) (*value.Node, bool, error) {
	current := currentValue(out)

	for _, ref := range out.Schema.Validators {
		v := ref.Validator()
		if v == nil {
			return nil, false, types.NewConfigurationError(fmt.Sprintf("validator %q is not resolved", ref.ID)).WithPath(out.Path)
		}

		res := v.Validate(w.ctx, current, w.metadata)
		action := validator.Resolve(ref.OnFail, res)
		if w.engine.observer != nil {
			w.engine.observer.ObserveValidator(ref.ID, action)
		}

		failure := Failure{
			Path:      out.Path,
			Kind:      FailureValidation,
			Validator: ref.ID,
			Action:    action,
			Reason:    res.Reason,
			Value:     current,
			FixValue:  res.FixValue,
		}

		switch action {
		case validator.ActionPass:
			if out.Schema.Kind == schema.KindScalar && res.Value != nil {
				out.Value = res.Value
				current = res.Value
			}
			continue

		case validator.ActionFix:
			w.engine.logger.Debug("applied fix",
				zap.String("path", out.Path),
				zap.String("validator", ref.ID),
			)
			return applyFix(out, res.FixValue), true, nil

		case validator.ActionReask:
			out.Status = value.StatusFail
			out.Reason = res.Reason
			out.FixValue = res.FixValue
			w.failures = append(w.failures, failure)

		case validator.ActionFilter:
			out.Filtered = true
			out.Status = value.StatusPass
			w.warnings = append(w.warnings, failure)

		case validator.ActionRefrain:
			w.refrained = true
			out.Status = value.StatusFail
			out.Reason = res.Reason
			w.failures = append(w.failures, failure)

		case validator.ActionWarn:
			out.Status = value.StatusPass
			w.warnings = append(w.warnings, failure)

		case validator.ActionFatal:
			w.engine.logger.Warn("fatal validation outcome",
				zap.String("path", out.Path),
				zap.String("validator", ref.ID),
				zap.String("reason", res.Reason),
			)
			return nil, false, types.NewError(types.ErrValidationFatal,
				fmt.Sprintf("validator %s failed at %s: %s", ref.ID, out.Path, res.Reason)).
				WithPath(out.Path)
		}
		return out, false, nil
	}
	return out, false, nil
}

func currentValue(n *value.Node) any {
	if n.Schema.Kind == schema.KindScalar {
		return n.Value
	}
	return n.Export()
}

// applyFix returns a new node carrying fix. Container fixes are re-materialized
// through the parser so the node keeps its declared shape.
func applyFix(n *value.Node, fix any) *value.Node {
	if n.Schema.Kind == schema.KindScalar {
		fixed := n.ShallowCopy()
		fixed.Value = fix
		return fixed
	}
	return parser.FromValue(n.Schema, n.Path, fix)
}

func pathsOf(failures []Failure) []string {
	out := make([]string, len(failures))
	for i, f := range failures {
		out[i] = f.Path
	}
	return out
}
