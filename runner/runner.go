package runner

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/BaSui01/guardflow/internal/metrics"
	"github.com/BaSui01/guardflow/llm"
	"github.com/BaSui01/guardflow/parser"
	"github.com/BaSui01/guardflow/schema"
	"github.com/BaSui01/guardflow/types"
	"github.com/BaSui01/guardflow/validation"
	"github.com/BaSui01/guardflow/value"
)

// Option configures a Runner or AsyncRunner.
type Option func(*options)

type options struct {
	engine    *validation.Engine
	collector *metrics.Collector
}

// WithEngine sets the validation engine. The default engine reports validator
// outcomes to the metrics collector when one is set.
func WithEngine(e *validation.Engine) Option {
	return func(o *options) { o.engine = e }
}

// WithMetrics records session, turn and backend metrics.
func WithMetrics(c *metrics.Collector) Option {
	return func(o *options) { o.collector = c }
}

func newCore(logger *zap.Logger, hasBackend bool, opts []Option) core {
	if logger == nil {
		logger = zap.NewNop()
	}
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	logger = logger.With(zap.String("component", "runner"))
	if o.engine == nil {
		var eopts []validation.Option
		if o.collector != nil {
			eopts = append(eopts, validation.WithObserver(o.collector))
		}
		o.engine = validation.NewEngine(logger, eopts...)
	}
	return core{
		engine:     o.engine,
		logger:     logger,
		inst:       newInstruments(o.collector, logger),
		hasBackend: hasBackend,
	}
}

// Runner drives sessions against a blocking backend. It is safe for
// concurrent use; each session owns its own state.
type Runner struct {
	core
	backend llm.Backend
}

// New creates a Runner. backend may be nil when every session is prefilled
// and reasks are not wanted.
func New(backend llm.Backend, logger *zap.Logger, opts ...Option) *Runner {
	return &Runner{
		core:    newCore(logger, backend != nil, opts),
		backend: backend,
	}
}

// Call sends req to the backend. Every failure is returned as a *types.Error;
// anything that is not one already becomes a TRANSPORT_ERROR.
func (r *Runner) Call(ctx context.Context, req *llm.Request) (string, error) {
	if r.backend == nil {
		return "", types.NewError(types.ErrBackendNotSet, "no backend configured")
	}
	name := llm.NameOf(r.backend)
	start := time.Now()
	text, err := r.backend.Send(ctx, req)
	r.inst.recordBackend(ctx, name, time.Since(start), err)
	if err != nil {
		return "", llm.ClassifyError(name, 0, err)
	}
	return text, nil
}

// Parse decodes raw against st.
func (r *Runner) Parse(raw string, st *schema.Tree) (*value.Node, error) {
	return parser.Parse(raw, st)
}

// Validate runs the validation engine.
func (r *Runner) Validate(ctx context.Context, tree *value.Node, st *schema.Tree, metadata map[string]any) (*validation.Result, error) {
	return r.engine.Validate(ctx, tree, st, metadata)
}

// Step runs one turn of s and reports whether the session is done.
func (r *Runner) Step(ctx context.Context, s *Session) (bool, error) {
	return r.turn(ctx, s, r.Call)
}

// Run drives a session to completion. The returned Result is nil only when in
// is invalid; otherwise it carries the history even when err is set.
func (r *Runner) Run(ctx context.Context, in Input) (*Result, error) {
	s, err := r.NewSession(ctx, in)
	if s == nil {
		return nil, err
	}
	for !s.Done() {
		if _, err := r.Step(ctx, s); err != nil {
			break
		}
	}
	return s.Result(), s.Err()
}
