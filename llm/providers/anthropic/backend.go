// Package anthropic implements llm.Backend on the Anthropic Messages API.
package anthropic

import (
	"context"
	"errors"
	"fmt"
	"strings"

	anthropic "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"go.uber.org/zap"

	"github.com/BaSui01/guardflow/llm"
	"github.com/BaSui01/guardflow/llm/providers"
	"github.com/BaSui01/guardflow/types"
)

const (
	name         = "anthropic"
	defaultModel = "claude-sonnet-4-5"
)

// Backend sends requests through the Anthropic SDK.
// anthropic.Client is a value type; NewClient returns it by value.
type Backend struct {
	client anthropic.Client
	cfg    providers.Config
	logger *zap.Logger
}

// New creates a Backend. The API key falls back to ANTHROPIC_API_KEY.
func New(cfg providers.Config, logger *zap.Logger) (*Backend, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	key, err := cfg.ResolveAPIKey(name)
	if err != nil {
		return nil, err
	}
	opts := []option.RequestOption{
		option.WithAPIKey(key),
		option.WithMaxRetries(0),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	if cfg.Timeout > 0 {
		opts = append(opts, option.WithRequestTimeout(cfg.Timeout))
	}
	return &Backend{
		client: anthropic.NewClient(opts...),
		cfg:    cfg,
		logger: logger.With(zap.String("component", "backend"), zap.String("provider", name)),
	}, nil
}

// Name implements llm.Namer.
func (b *Backend) Name() string { return name }

// Send implements llm.Backend.
func (b *Backend) Send(ctx context.Context, req *llm.Request) (string, error) {
	params := b.params(req)
	msg, err := b.client.Messages.New(ctx, params)
	if err != nil {
		return "", classify(err)
	}

	var parts []string
	for _, block := range msg.Content {
		if block.Type == "text" {
			parts = append(parts, block.Text)
		}
	}
	if len(parts) == 0 {
		return "", types.NewError(types.ErrTransport, "anthropic: response contained no text content blocks").
			WithProvider(name)
	}
	b.logger.Debug("completion received",
		zap.String("model", string(msg.Model)),
		zap.Int64("output_tokens", msg.Usage.OutputTokens),
	)
	return strings.Join(parts, ""), nil
}

func (b *Backend) params(req *llm.Request) anthropic.MessageNewParams {
	system, turns := providers.SplitConversation(req)

	msgs := make([]anthropic.MessageParam, 0, len(turns))
	for _, t := range turns {
		block := anthropic.NewTextBlock(t.Content)
		if t.Role == types.RoleAssistant {
			msgs = append(msgs, anthropic.NewAssistantMessage(block))
		} else {
			msgs = append(msgs, anthropic.NewUserMessage(block))
		}
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(providers.ChooseModel(req, b.cfg.Model, defaultModel)),
		MaxTokens: int64(providers.ChooseMaxTokens(req, b.cfg.MaxTokens)),
		Messages:  msgs,
	}
	if system != "" {
		params.System = []anthropic.TextBlockParam{{Text: system}}
	}
	if t := providers.ChooseTemperature(req, b.cfg.Temperature); t != nil {
		params.Temperature = anthropic.Float(*t)
	}
	if len(req.Config.Stop) > 0 {
		params.StopSequences = req.Config.Stop
	}
	return params
}

func classify(err error) error {
	var apiErr *anthropic.Error
	if errors.As(err, &apiErr) {
		return llm.ClassifyError(name, apiErr.StatusCode, fmt.Errorf("anthropic: messages.new: %w", err))
	}
	return llm.ClassifyError(name, 0, err)
}
