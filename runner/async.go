package runner

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/BaSui01/guardflow/llm"
	"github.com/BaSui01/guardflow/types"
)

// StepResult is delivered by StepAsync.
type StepResult struct {
	Done bool
	Err  error
}

// Completion is delivered by Start.
type Completion struct {
	Result *Result
	Err    error
}

// AsyncRunner drives sessions against an asynchronous backend. A session runs
// on a single goroutine and only waits on the backend's response channel;
// parsing, validation and reask compilation never suspend.
type AsyncRunner struct {
	core
	backend llm.AsyncBackend
}

// NewAsync creates an AsyncRunner. A blocking backend can be adapted with
// llm.Async.
func NewAsync(backend llm.AsyncBackend, logger *zap.Logger, opts ...Option) *AsyncRunner {
	return &AsyncRunner{
		core:    newCore(logger, backend != nil, opts),
		backend: backend,
	}
}

// CallAsync sends req and delivers exactly one Response. Errors are
// classified the same way as Runner.Call. Like a blocking Send, the response
// is awaited even after ctx ends; the backend owns call timeouts.
func (r *AsyncRunner) CallAsync(ctx context.Context, req *llm.Request) <-chan llm.Response {
	out := make(chan llm.Response, 1)
	if r.backend == nil {
		out <- llm.Response{Err: types.NewError(types.ErrBackendNotSet, "no backend configured")}
		close(out)
		return out
	}
	name := llm.NameOf(r.backend)
	start := time.Now()
	in := r.backend.SendAsync(ctx, req)
	go func() {
		defer close(out)
		text, err := llm.Await(context.WithoutCancel(ctx), in)
		r.inst.recordBackend(ctx, name, time.Since(start), err)
		if err != nil {
			out <- llm.Response{Err: llm.ClassifyError(name, 0, err)}
			return
		}
		out <- llm.Response{Text: text}
	}()
	return out
}

func (r *AsyncRunner) fetch(ctx context.Context, req *llm.Request) (string, error) {
	text, err := llm.Await(context.WithoutCancel(ctx), r.CallAsync(ctx, req))
	if err != nil {
		return "", llm.ClassifyError(llm.NameOf(r.backend), 0, err)
	}
	return text, nil
}

// StepAsync runs one turn of s and delivers its StepResult. The caller must
// wait for the result before stepping s again.
func (r *AsyncRunner) StepAsync(ctx context.Context, s *Session) <-chan StepResult {
	out := make(chan StepResult, 1)
	go func() {
		defer close(out)
		done, err := r.turn(ctx, s, r.fetch)
		out <- StepResult{Done: done, Err: err}
	}()
	return out
}

// Start opens a session and drives it to completion on one goroutine.
func (r *AsyncRunner) Start(ctx context.Context, in Input) <-chan Completion {
	out := make(chan Completion, 1)
	go func() {
		defer close(out)
		s, err := r.NewSession(ctx, in)
		if s == nil {
			out <- Completion{Err: err}
			return
		}
		for !s.Done() {
			if _, err := r.turn(ctx, s, r.fetch); err != nil {
				break
			}
		}
		r.logger.Debug("async session completed", zap.String("call_id", s.ID()))
		out <- Completion{Result: s.Result(), Err: s.Err()}
	}()
	return out
}

// Run is Start followed by a wait for its completion.
func (r *AsyncRunner) Run(ctx context.Context, in Input) (*Result, error) {
	c := <-r.Start(ctx, in)
	return c.Result, c.Err
}
