// Package factory builds llm.Backend instances by provider name. It imports
// every provider sub-package, breaking the import cycle that would occur if
// this logic lived in the llm package directly.
package factory

import (
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/BaSui01/guardflow/llm"
	"github.com/BaSui01/guardflow/llm/circuitbreaker"
	"github.com/BaSui01/guardflow/llm/providers"
	"github.com/BaSui01/guardflow/llm/providers/anthropic"
	"github.com/BaSui01/guardflow/llm/providers/gemini"
	"github.com/BaSui01/guardflow/llm/providers/openai"
	"github.com/BaSui01/guardflow/llm/retry"
	"github.com/BaSui01/guardflow/types"
)

// Options wraps the provider backend. Zero values disable each wrapper.
type Options struct {
	// Retry enables llm/retry around the backend.
	Retry *retry.Policy
	// RequestsPerSecond and Burst enable token-bucket rate limiting.
	RequestsPerSecond float64
	Burst             int
	// CircuitBreaker stops calling the provider after repeated transport
	// failures.
	CircuitBreaker *circuitbreaker.Config
}

type constructor func(providers.Config, *zap.Logger) (llm.Backend, error)

var constructors = map[string]constructor{
	"anthropic": func(c providers.Config, l *zap.Logger) (llm.Backend, error) { return anthropic.New(c, l) },
	"claude":    func(c providers.Config, l *zap.Logger) (llm.Backend, error) { return anthropic.New(c, l) },
	"openai":    func(c providers.Config, l *zap.Logger) (llm.Backend, error) { return openai.New(c, l) },
	"gemini":    func(c providers.Config, l *zap.Logger) (llm.Backend, error) { return gemini.New(c, l) },
	"google":    func(c providers.Config, l *zap.Logger) (llm.Backend, error) { return gemini.New(c, l) },
}

// Names lists the supported provider names.
func Names() []string {
	names := make([]string, 0, len(constructors))
	for n := range constructors {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// NewBackend creates the named backend and applies the wrappers in opts.
// The order is retry(breaker(ratelimit(provider))): every attempt takes a
// token and counts toward the breaker, and an open breaker ends retrying.
func NewBackend(name string, cfg providers.Config, opts Options, logger *zap.Logger) (llm.Backend, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	ctor, ok := constructors[strings.ToLower(name)]
	if !ok {
		return nil, types.NewConfigurationError(
			fmt.Sprintf("unknown provider %q, expected one of: %s", name, strings.Join(Names(), ", ")))
	}

	b, err := ctor(cfg, logger)
	if err != nil {
		return nil, err
	}
	if opts.RequestsPerSecond > 0 {
		b = llm.NewRateLimitedBackend(b, opts.RequestsPerSecond, opts.Burst, logger)
	}
	if opts.CircuitBreaker != nil {
		b = circuitbreaker.NewBackend(b, opts.CircuitBreaker, logger)
	}
	if opts.Retry != nil {
		b = retry.NewRetryingBackend(b, opts.Retry, logger)
	}
	return b, nil
}
