package guard

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/BaSui01/guardflow/history"
	"github.com/BaSui01/guardflow/llm"
	"github.com/BaSui01/guardflow/runner"
	"github.com/BaSui01/guardflow/schema"
	"github.com/BaSui01/guardflow/types"
)

const storeTimeout = 5 * time.Second

// Guard validates LLM output against a schema and reasks on failure.
type Guard struct {
	tree *schema.Tree

	mu sync.RWMutex
	st *state
}

// state is rebuilt by Configure and never mutated afterwards.
type state struct {
	opts   options
	runner *runner.Runner
	async  *runner.AsyncRunner
	logger *zap.Logger

	hasBackend bool
}

// New creates a Guard for tree.
func New(tree *schema.Tree, opts ...Option) (*Guard, error) {
	if tree == nil {
		return nil, types.NewConfigurationError("schema is required")
	}
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	st, err := build(o)
	if err != nil {
		return nil, err
	}
	st.logger.Info("guard created",
		zap.Int("num_reasks", o.numReasks),
		zap.Bool("backend", st.hasBackend),
	)
	return &Guard{tree: tree, st: st}, nil
}

// FromDocument creates a Guard from a loaded YAML document. The document's
// instructions, prompt and reask budget become defaults that opts can
// override.
func FromDocument(doc *schema.Document, opts ...Option) (*Guard, error) {
	if doc == nil {
		return nil, types.NewConfigurationError("document is required")
	}
	base := []Option{WithInstructions(doc.Instructions), WithPrompt(doc.Prompt)}
	if doc.NumReasks != nil {
		base = append(base, WithNumReasks(*doc.NumReasks))
	}
	return New(doc.Tree, append(base, opts...)...)
}

func build(o options) (*state, error) {
	if err := o.validate(); err != nil {
		return nil, err
	}
	if o.logger == nil {
		o.logger = zap.NewNop()
	}
	logger := o.logger.With(zap.String("component", "guard"))

	backend := o.backend
	if backend == nil && o.providerName != "" {
		resolved := o
		if err := resolved.resolveBackend(); err != nil {
			return nil, err
		}
		backend = resolved.backend
	}
	async := o.asyncBackend
	if async == nil && backend != nil {
		async = llm.Async(backend)
	}

	var ropts []runner.Option
	if o.engine != nil {
		ropts = append(ropts, runner.WithEngine(o.engine))
	}
	if o.collector != nil {
		ropts = append(ropts, runner.WithMetrics(o.collector))
	}

	return &state{
		opts:       o,
		runner:     runner.New(backend, o.logger, ropts...),
		async:      runner.NewAsync(async, o.logger, ropts...),
		logger:     logger,
		hasBackend: backend != nil,
	}, nil
}

// Configure applies opts on top of the current settings. Calling it without
// options keeps everything as it is. Sessions already running keep the
// settings they started with.
func (g *Guard) Configure(opts ...Option) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	o := g.st.opts
	for _, opt := range opts {
		opt(&o)
	}
	st, err := build(o)
	if err != nil {
		return err
	}
	g.st = st
	return nil
}

func (g *Guard) state() *state {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.st
}

// NumReasks returns the configured reask budget.
func (g *Guard) NumReasks() int {
	return g.state().opts.numReasks
}

// Schema returns the schema tree.
func (g *Guard) Schema() *schema.Tree {
	return g.tree
}

// Call prompts the backend and validates its output. The returned Outcome is
// nil only when the call could not start; otherwise it carries the history
// and the error, if any, is also in Outcome.Error.
func (g *Guard) Call(ctx context.Context, opts ...CallOption) (*Outcome, error) {
	st := g.state()
	in, err := g.input(st, nil, opts)
	if err != nil {
		return nil, err
	}
	res, err := st.runner.Run(ctx, in)
	return g.complete(ctx, st, res, err)
}

// Parse validates an output the caller already has. Reasks, when needed and
// within budget, are sent to the backend; without one the session ends with
// the partial result.
func (g *Guard) Parse(ctx context.Context, raw string, opts ...CallOption) (*Outcome, error) {
	st := g.state()
	in, err := g.input(st, &raw, opts)
	if err != nil {
		return nil, err
	}
	res, err := st.runner.Run(ctx, in)
	return g.complete(ctx, st, res, err)
}

// Completion is delivered by the async methods.
type Completion struct {
	Outcome *Outcome
	Err     error
}

// CallAsync is Call on the async runner. Exactly one Completion is delivered.
func (g *Guard) CallAsync(ctx context.Context, opts ...CallOption) <-chan Completion {
	return g.startAsync(ctx, nil, opts)
}

// ParseAsync is Parse on the async runner.
func (g *Guard) ParseAsync(ctx context.Context, raw string, opts ...CallOption) <-chan Completion {
	return g.startAsync(ctx, &raw, opts)
}

func (g *Guard) startAsync(ctx context.Context, raw *string, opts []CallOption) <-chan Completion {
	out := make(chan Completion, 1)
	st := g.state()
	in, err := g.input(st, raw, opts)
	if err != nil {
		out <- Completion{Err: err}
		close(out)
		return out
	}
	done := st.async.Start(ctx, in)
	go func() {
		defer close(out)
		c := <-done
		outcome, err := g.complete(ctx, st, c.Result, c.Err)
		out <- Completion{Outcome: outcome, Err: err}
	}()
	return out
}

// ParseAll runs Parse for every raw output concurrently, at most
// WithConcurrency sessions at a time. Outcomes are in input order. Session
// errors stay in each Outcome; the returned error is the first one that kept
// a session from starting, which also cancels the sessions not yet finished.
func (g *Guard) ParseAll(ctx context.Context, raws []string, opts ...CallOption) ([]*Outcome, error) {
	st := g.state()
	outcomes := make([]*Outcome, len(raws))

	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(st.opts.concurrency)
	for i, raw := range raws {
		eg.Go(func() error {
			in, err := g.input(st, &raw, opts)
			if err != nil {
				return err
			}
			res, err := st.runner.Run(egCtx, in)
			outcome, err := g.complete(egCtx, st, res, err)
			if outcome == nil {
				return err
			}
			outcomes[i] = outcome
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return outcomes, err
	}
	return outcomes, nil
}

func (g *Guard) input(st *state, raw *string, opts []CallOption) (runner.Input, error) {
	var co callOptions
	for _, opt := range opts {
		opt(&co)
	}
	in := runner.Input{
		Schema:    g.tree,
		Metadata:  co.metadata,
		NumReasks: st.opts.numReasks,
		Prefilled: raw,
	}
	if co.numReasks != nil {
		in.NumReasks = *co.numReasks
	}

	req := &llm.Request{
		Instructions: st.opts.instructions,
		Prompt:       st.opts.prompt,
		Messages:     co.messages,
		Config:       st.opts.llmConfig,
	}
	if co.instructions != nil {
		req.Instructions = *co.instructions
	}
	if co.prompt != nil {
		req.Prompt = *co.prompt
	}
	if co.llmConfig != nil {
		req.Config = *co.llmConfig
	}
	if raw == nil && req.Prompt == "" && len(req.Messages) == 0 {
		return in, types.NewConfigurationError("a prompt or messages are required to call the backend")
	}
	in.Request = req
	return in, nil
}

// complete persists the call and builds the Outcome.
func (g *Guard) complete(ctx context.Context, st *state, res *runner.Result, err error) (*Outcome, error) {
	if res == nil {
		return nil, err
	}
	g.persist(ctx, st, res.Call)
	return newOutcome(res), err
}

func (g *Guard) persist(ctx context.Context, st *state, call *history.Call) {
	store := st.opts.store
	if store == nil || call == nil {
		return
	}
	sctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), storeTimeout)
	defer cancel()

	start := time.Now()
	err := store.Save(sctx, call)
	st.recordStoreOp("save", time.Since(start), err)
	if err != nil {
		st.logger.Warn("failed to persist call",
			zap.String("call_id", call.ID),
			zap.Error(err),
		)
	}
}

// History returns a persisted call.
func (g *Guard) History(ctx context.Context, id string) (*history.Call, error) {
	st := g.state()
	if st.opts.store == nil {
		return nil, types.NewConfigurationError("no history store configured")
	}
	start := time.Now()
	call, err := st.opts.store.Get(ctx, id)
	st.recordStoreOp("get", time.Since(start), err)
	return call, err
}

// ListHistory lists persisted calls, newest first.
func (g *Guard) ListHistory(ctx context.Context, opts history.ListOptions) ([]*history.Call, error) {
	st := g.state()
	if st.opts.store == nil {
		return nil, types.NewConfigurationError("no history store configured")
	}
	start := time.Now()
	calls, err := st.opts.store.List(ctx, opts)
	st.recordStoreOp("list", time.Since(start), err)
	return calls, err
}

func (st *state) recordStoreOp(op string, d time.Duration, err error) {
	if st.opts.collector == nil {
		return
	}
	// not found is an answer, not a store failure
	if history.IsNotFound(err) {
		err = nil
	}
	st.opts.collector.RecordStoreOp(storeName(st.opts.store), op, d, err)
}

func storeName(s history.Store) string {
	switch s.(type) {
	case *history.MemoryStore:
		return string(history.StoreTypeMemory)
	case *history.FileStore:
		return string(history.StoreTypeFile)
	case *history.RedisStore:
		return string(history.StoreTypeRedis)
	case *history.SQLStore:
		return string(history.StoreTypeSQL)
	default:
		return "custom"
	}
}
