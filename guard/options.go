package guard

import (
	"go.uber.org/zap"

	"github.com/BaSui01/guardflow/history"
	"github.com/BaSui01/guardflow/internal/metrics"
	"github.com/BaSui01/guardflow/llm"
	"github.com/BaSui01/guardflow/llm/factory"
	"github.com/BaSui01/guardflow/llm/providers"
	"github.com/BaSui01/guardflow/types"
	"github.com/BaSui01/guardflow/validation"
)

// DefaultNumReasks is used when no budget is configured.
const DefaultNumReasks = 1

// Option configures a Guard. Options are applied by New and again, on top of
// the current settings, by Configure.
type Option func(*options)

type options struct {
	backend      llm.Backend
	asyncBackend llm.AsyncBackend
	store        history.Store
	collector    *metrics.Collector
	engine       *validation.Engine
	logger       *zap.Logger

	numReasks    int
	instructions string
	prompt       string
	llmConfig    llm.Config
	concurrency  int

	// Provider shortcut fields, used when backend is nil.
	providerName string
	providerCfg  providers.Config
	factoryOpts  factory.Options
}

func defaultOptions() options {
	return options{
		numReasks:   DefaultNumReasks,
		concurrency: 4,
	}
}

// WithBackend sets a blocking backend. Async calls adapt it with llm.Async
// unless WithAsyncBackend is also given.
func WithBackend(b llm.Backend) Option {
	return func(o *options) { o.backend = b }
}

// WithAsyncBackend sets the backend used by the async methods.
func WithAsyncBackend(b llm.AsyncBackend) Option {
	return func(o *options) { o.asyncBackend = b }
}

// WithProvider builds the backend with llm/factory when no backend is set.
func WithProvider(name string, cfg providers.Config, fo factory.Options) Option {
	return func(o *options) {
		o.providerName = name
		o.providerCfg = cfg
		o.factoryOpts = fo
	}
}

// WithOpenAI uses the OpenAI provider with the given model.
// The API key is read from OPENAI_API_KEY.
func WithOpenAI(model string) Option {
	return providerShortcut("openai", model)
}

// WithAnthropic uses the Anthropic provider with the given model.
// The API key is read from ANTHROPIC_API_KEY.
func WithAnthropic(model string) Option {
	return providerShortcut("anthropic", model)
}

// WithGemini uses the Gemini provider with the given model.
// The API key is read from GOOGLE_API_KEY.
func WithGemini(model string) Option {
	return providerShortcut("gemini", model)
}

func providerShortcut(name, model string) Option {
	return func(o *options) {
		o.providerName = name
		o.providerCfg.Model = model
	}
}

// WithAPIKey overrides the API key for provider shortcuts.
func WithAPIKey(key string) Option {
	return func(o *options) { o.providerCfg.APIKey = key }
}

// WithStore persists every finished call.
func WithStore(s history.Store) Option {
	return func(o *options) { o.store = s }
}

// WithMetrics records Prometheus metrics for sessions, backend requests and
// store operations.
func WithMetrics(c *metrics.Collector) Option {
	return func(o *options) { o.collector = c }
}

// WithEngine sets the validation engine.
func WithEngine(e *validation.Engine) Option {
	return func(o *options) { o.engine = e }
}

// WithLogger sets a custom zap logger. Defaults to zap.NewNop().
func WithLogger(logger *zap.Logger) Option {
	return func(o *options) { o.logger = logger }
}

// WithNumReasks sets the reask budget. 0 means a single turn.
func WithNumReasks(n int) Option {
	return func(o *options) { o.numReasks = n }
}

// WithInstructions sets the default system instructions.
func WithInstructions(s string) Option {
	return func(o *options) { o.instructions = s }
}

// WithPrompt sets the default prompt.
func WithPrompt(s string) Option {
	return func(o *options) { o.prompt = s }
}

// WithLLMConfig sets the default generation parameters.
func WithLLMConfig(c llm.Config) Option {
	return func(o *options) { o.llmConfig = c }
}

// WithConcurrency bounds the sessions ParseAll runs at once.
func WithConcurrency(n int) Option {
	return func(o *options) { o.concurrency = n }
}

func (o *options) validate() error {
	if o.numReasks < 0 {
		return types.NewConfigurationError("num_reasks must not be negative")
	}
	if o.concurrency < 1 {
		return types.NewConfigurationError("concurrency must be at least 1")
	}
	return nil
}

// resolveBackend builds the provider backend for shortcut options.
func (o *options) resolveBackend() error {
	if o.backend != nil || o.providerName == "" {
		return nil
	}
	b, err := factory.NewBackend(o.providerName, o.providerCfg, o.factoryOpts, o.logger)
	if err != nil {
		return err
	}
	o.backend = b
	return nil
}

// CallOption adjusts a single Call or Parse.
type CallOption func(*callOptions)

type callOptions struct {
	metadata     map[string]any
	instructions *string
	prompt       *string
	messages     []types.Message
	llmConfig    *llm.Config
	numReasks    *int
}

// Metadata supplies the values validators read at validation time.
func Metadata(m map[string]any) CallOption {
	return func(c *callOptions) { c.metadata = m }
}

// Instructions overrides the default instructions.
func Instructions(s string) CallOption {
	return func(c *callOptions) { c.instructions = &s }
}

// Prompt overrides the default prompt.
func Prompt(s string) CallOption {
	return func(c *callOptions) { c.prompt = &s }
}

// Messages switches the call to message-history mode.
func Messages(msgs ...types.Message) CallOption {
	return func(c *callOptions) { c.messages = types.CloneMessages(msgs) }
}

// LLMConfig overrides the default generation parameters.
func LLMConfig(cfg llm.Config) CallOption {
	return func(c *callOptions) { c.llmConfig = &cfg }
}

// NumReasks overrides the reask budget for one call.
func NumReasks(n int) CallOption {
	return func(c *callOptions) { c.numReasks = &n }
}
