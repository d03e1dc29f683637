// Package guardflow provides a top-level convenience entry point for
// validating LLM output against a schema.
//
// Usage:
//
//	import "github.com/BaSui01/guardflow"
//
//	g, err := guardflow.New(tree, guardflow.WithOpenAI("gpt-4o-mini"))
//	g, err := guardflow.NewFromYAML(doc, guardflow.WithAnthropic("claude-sonnet-4-20250514"))
//	out, err := g.Call(ctx, guardflow.Prompt("Name a pizza."))
//
// This is a thin wrapper around [guard.New]; both produce identical results.
// Use this package when you prefer the shorter import path.
package guardflow

import (
	"github.com/BaSui01/guardflow/guard"
	"github.com/BaSui01/guardflow/schema"
	"github.com/BaSui01/guardflow/validator"
)

// Guard validates LLM output and reasks on failure.
type Guard = guard.Guard

// Option configures a [Guard].
type Option = guard.Option

// CallOption adjusts a single call.
type CallOption = guard.CallOption

// Outcome is the result of a guarded call.
type Outcome = guard.Outcome

// New creates a [Guard] for tree.
func New(tree *schema.Tree, opts ...Option) (*Guard, error) {
	return guard.New(tree, opts...)
}

// NewFromYAML builds the schema from a YAML document using the built-in
// validators and creates a [Guard] for it.
func NewFromYAML(data []byte, opts ...Option) (*Guard, error) {
	doc, err := schema.LoadDocument(data, validator.Default())
	if err != nil {
		return nil, err
	}
	return guard.FromDocument(doc, opts...)
}

// Re-export options so callers never need to import guard/.

// WithBackend sets a blocking backend.
var WithBackend = guard.WithBackend

// WithAsyncBackend sets the backend used by async calls.
var WithAsyncBackend = guard.WithAsyncBackend

// WithOpenAI uses OpenAI. API key from OPENAI_API_KEY env.
var WithOpenAI = guard.WithOpenAI

// WithAnthropic uses Anthropic Claude. API key from ANTHROPIC_API_KEY env.
var WithAnthropic = guard.WithAnthropic

// WithGemini uses Gemini. API key from GOOGLE_API_KEY env.
var WithGemini = guard.WithGemini

// WithAPIKey overrides the API key for provider shortcuts.
var WithAPIKey = guard.WithAPIKey

// WithNumReasks sets the reask budget.
var WithNumReasks = guard.WithNumReasks

// WithStore persists finished calls.
var WithStore = guard.WithStore

// WithLogger sets a custom zap logger.
var WithLogger = guard.WithLogger

// Prompt sets the prompt of a call.
var Prompt = guard.Prompt

// Metadata supplies validator metadata for a call.
var Metadata = guard.Metadata
