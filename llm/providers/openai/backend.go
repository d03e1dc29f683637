// Package openai implements llm.Backend on the OpenAI Chat Completions API.
package openai

import (
	"context"
	"errors"
	"fmt"

	openai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/shared"
	"go.uber.org/zap"

	"github.com/BaSui01/guardflow/llm"
	"github.com/BaSui01/guardflow/llm/providers"
	"github.com/BaSui01/guardflow/types"
)

const (
	name         = "openai"
	defaultModel = "gpt-4o"
)

// Backend sends requests through the OpenAI SDK.
type Backend struct {
	client openai.Client
	cfg    providers.Config
	logger *zap.Logger
}

// New creates a Backend. The API key falls back to OPENAI_API_KEY. BaseURL
// may point at any OpenAI-compatible endpoint.
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
		client: openai.NewClient(opts...),
		cfg:    cfg,
		logger: logger.With(zap.String("component", "backend"), zap.String("provider", name)),
	}, nil
}

// Name implements llm.Namer.
func (b *Backend) Name() string { return name }

// Send implements llm.Backend. Stop sequences are not forwarded.
func (b *Backend) Send(ctx context.Context, req *llm.Request) (string, error) {
	resp, err := b.client.Chat.Completions.New(ctx, b.params(req))
	if err != nil {
		var apiErr *openai.Error
		if errors.As(err, &apiErr) {
			return "", llm.ClassifyError(name, apiErr.StatusCode, fmt.Errorf("openai: chat.completions.new: %w", err))
		}
		return "", llm.ClassifyError(name, 0, err)
	}

	if len(resp.Choices) == 0 {
		return "", types.NewError(types.ErrTransport, "openai: response contained no choices").WithProvider(name)
	}
	content := resp.Choices[0].Message.Content
	if content == "" {
		return "", types.NewError(types.ErrTransport, "openai: response contained no content").WithProvider(name)
	}
	b.logger.Debug("completion received",
		zap.String("model", resp.Model),
		zap.Int64("completion_tokens", resp.Usage.CompletionTokens),
	)
	return content, nil
}

func (b *Backend) params(req *llm.Request) openai.ChatCompletionNewParams {
	system, turns := providers.SplitConversation(req)

	msgs := make([]openai.ChatCompletionMessageParamUnion, 0, len(turns)+1)
	if system != "" {
		msgs = append(msgs, openai.SystemMessage(system))
	}
	for _, t := range turns {
		if t.Role == types.RoleAssistant {
			msgs = append(msgs, openai.AssistantMessage(t.Content))
		} else {
			msgs = append(msgs, openai.UserMessage(t.Content))
		}
	}

	params := openai.ChatCompletionNewParams{
		Model:     shared.ChatModel(providers.ChooseModel(req, b.cfg.Model, defaultModel)),
		MaxTokens: openai.Int(int64(providers.ChooseMaxTokens(req, b.cfg.MaxTokens))),
		Messages:  msgs,
	}
	if t := providers.ChooseTemperature(req, b.cfg.Temperature); t != nil {
		params.Temperature = openai.Float(*t)
	}
	return params
}
