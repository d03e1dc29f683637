package runner

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/BaSui01/guardflow/history"
	"github.com/BaSui01/guardflow/llm"
	"github.com/BaSui01/guardflow/parser"
	"github.com/BaSui01/guardflow/reask"
	"github.com/BaSui01/guardflow/schema"
	"github.com/BaSui01/guardflow/types"
	"github.com/BaSui01/guardflow/validation"
	"github.com/BaSui01/guardflow/value"
)

// Input starts a session.
type Input struct {
	Schema *schema.Tree
	// Request is the first request. Reasks build on it.
	Request  *llm.Request
	Metadata map[string]any
	// NumReasks bounds the corrective turns; 0 means a single turn.
	NumReasks int
	// Prefilled, when set, is used as the raw output of the first turn
	// instead of calling the backend.
	Prefilled *string
}

// Result is the caller-facing view of a finished session.
type Result struct {
	Call      *history.Call
	Status    history.Status
	RawOutput string
	// Tree is the merged value tree of the last turn.
	Tree     *value.Node
	Output   any
	Failures []validation.Failure
	Warnings []validation.Failure
	Err      error
}

// Passed reports whether the session ended with a passing output.
func (r *Result) Passed() bool {
	return r.Status == history.StatusPassed
}

// Session is the mutable state of one validation session. A session must
// not be stepped from more than one goroutine at a time.
type Session struct {
	in    Input
	call  *history.Call
	state State
	turn  int

	// next turn
	req       *llm.Request
	prefilled *string
	schema    *schema.Tree
	paths     []string
	prev      *value.Node

	// last completed turn
	raw    string
	result *validation.Result
	err    error

	started time.Time
	span    trace.Span
	logger  *zap.Logger
}

// ID returns the call ID.
func (s *Session) ID() string { return s.call.ID }

// State returns the current state.
func (s *Session) State() State { return s.state }

// Done reports whether the session has terminated.
func (s *Session) Done() bool { return s.state == StateTerminated }

// Call returns the session history. It is complete once Done reports true.
func (s *Session) Call() *history.Call { return s.call }

// Err returns the session-fatal error, if any.
func (s *Session) Err() error { return s.err }

// Result returns the outcome so far.
func (s *Session) Result() *Result {
	r := &Result{
		Call:      s.call,
		Status:    s.call.Status,
		RawOutput: s.raw,
		Err:       s.err,
	}
	if s.result != nil && s.err == nil {
		r.Tree = s.result.Tree
		r.Output = s.result.Output()
		r.Failures = s.result.Failures
		r.Warnings = s.result.Warnings
	}
	return r
}

// fetchFunc obtains the raw output for a request. It is the only thing the
// sync and async drivers do differently.
type fetchFunc func(ctx context.Context, req *llm.Request) (string, error)

// core is the driver-independent part of a runner.
type core struct {
	engine     *validation.Engine
	logger     *zap.Logger
	inst       *instruments
	hasBackend bool
}

// NewSession validates in and opens a session. Missing metadata keys fail the
// session before any backend call; the closed session is returned alongside
// the configuration error so its history stays available.
func (c *core) NewSession(ctx context.Context, in Input) (*Session, error) {
	if in.Schema == nil {
		return nil, types.NewConfigurationError("schema is required")
	}
	if in.NumReasks < 0 {
		return nil, types.NewConfigurationError("num_reasks must not be negative")
	}
	if in.Prefilled == nil {
		if in.Request == nil {
			return nil, types.NewConfigurationError("either a request or a prefilled output is required")
		}
		if !c.hasBackend {
			return nil, types.NewError(types.ErrBackendNotSet, "no backend configured")
		}
	}

	call := history.NewCall(in.NumReasks)
	s := &Session{
		in:        in,
		call:      call,
		state:     StateInit,
		prefilled: in.Prefilled,
		schema:    in.Schema,
		started:   time.Now(),
		logger:    c.logger.With(zap.String("call_id", call.ID)),
	}
	if in.Prefilled == nil {
		s.req = in.Request.Clone()
	}
	s.span = c.inst.startSession(ctx, call.ID, in.NumReasks)

	if err := validation.CheckMetadata(in.Schema, in.Metadata); err != nil {
		c.finish(s, Decide(Turn{Err: err}), err)
		return s, err
	}
	return s, nil
}

// turn runs one call-parse-validate cycle and reports whether the session is
// done. Cancellation is only observed here, between turns.
func (c *core) turn(ctx context.Context, s *Session, fetch fetchFunc) (bool, error) {
	if s.Done() {
		return true, s.err
	}
	if err := ctx.Err(); err != nil {
		cerr := types.NewError(types.ErrSessionCancelled, "session cancelled").WithCause(err)
		c.finish(s, Decide(Turn{Err: cerr}), cerr)
		return true, s.err
	}

	ctx = types.WithCallID(trace.ContextWithSpan(ctx, s.span), s.ID())
	ctx, span := c.inst.startTurn(ctx, s.turn)
	defer span.End()

	it := &history.Iteration{Request: s.req, StartedAt: time.Now()}

	s.state = StateCalling
	var raw string
	if s.req == nil {
		raw = *s.prefilled
		s.prefilled = nil
	} else {
		var err error
		raw, err = fetch(ctx, s.req)
		if err != nil {
			c.inst.recordTurn(ctx, "error")
			span.RecordError(err)
			c.finish(s, Decide(Turn{Index: s.turn, Err: err}), err)
			return true, s.err
		}
		it.BackendCalled = true
	}
	it.RawOutput = raw
	s.raw = raw

	s.state = StateParsing
	patch, perr := parser.Parse(raw, s.schema)
	if perr != nil {
		it.ParseError = perr.Error()
	}
	it.ParsedOutput = patch.Export()
	tree := patch
	if s.paths != nil {
		tree = reask.Merge(s.prev, patch, s.paths)
	}

	s.state = StateValidating
	res, err := c.engine.Validate(ctx, tree, s.in.Schema, s.in.Metadata)
	if err != nil {
		c.complete(s, it)
		c.inst.recordTurn(ctx, "error")
		c.finish(s, Decide(Turn{Index: s.turn, Err: err}), err)
		return true, s.err
	}
	s.result = res
	it.ValidatedOutput = res.Output()
	it.Failures = res.Failures
	it.Warnings = res.Warnings
	if res.Passed() {
		c.inst.recordTurn(ctx, "pass")
	} else {
		c.inst.recordTurn(ctx, "fail")
	}

	d := Decide(Turn{
		Index:     s.turn,
		NumReasks: s.in.NumReasks,
		Result:    res,
		CanCall:   c.hasBackend,
	})
	if d.Next != StateReasking {
		c.complete(s, it)
		c.finish(s, d, nil)
		return true, nil
	}

	s.state = StateReasking
	base := s.req
	if base == nil {
		base = s.in.Request
	}
	rk, err := reask.Compile(reask.Input{
		Failures:  res.Failures,
		Schema:    s.in.Schema,
		Previous:  res.Tree,
		RawOutput: raw,
		Base:      base,
	})
	if err != nil {
		c.complete(s, it)
		c.finish(s, Decide(Turn{Index: s.turn, Err: err}), err)
		return true, s.err
	}
	it.ReaskRequest = rk.Request
	it.ReaskPaths = rk.Paths
	c.complete(s, it)
	c.inst.recordReask(ctx)

	s.logger.Debug("reasking",
		zap.Int("turn", s.turn),
		zap.Strings("paths", rk.Paths),
		zap.Int("failures", len(res.Failures)),
	)

	s.req = rk.Request
	s.schema = rk.Schema
	s.paths = rk.Paths
	s.prev = res.Tree
	s.turn++
	return false, nil
}

func (c *core) complete(s *Session, it *history.Iteration) {
	it.FinishedAt = time.Now()
	it.Duration = it.FinishedAt.Sub(it.StartedAt)
	if err := s.call.Append(it); err != nil {
		s.logger.Error("failed to record turn", zap.Error(err))
	}
}

func (c *core) finish(s *Session, d Decision, err error) {
	s.err = err
	var output any
	if err == nil && s.result != nil {
		output = s.result.Output()
	}
	if cerr := s.call.Close(d.Status, output, err); cerr != nil {
		s.logger.Error("failed to close call", zap.Error(cerr))
	}
	s.state = StateTerminated
	c.inst.endSession(s.span, d.Status, time.Since(s.started), err)

	fields := []zap.Field{
		zap.String("status", string(d.Status)),
		zap.Int("turns", len(s.call.Iterations)),
		zap.Int("backend_calls", s.call.BackendCalls()),
	}
	if err != nil {
		s.logger.Warn("session failed", append(fields, zap.Error(err))...)
		return
	}
	s.logger.Info("session finished", fields...)
}
