// Package gemini implements llm.Backend on the Google Generative AI SDK.
package gemini

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"go.uber.org/zap"
	googleoption "google.golang.org/api/option"

	"github.com/BaSui01/guardflow/llm"
	"github.com/BaSui01/guardflow/llm/providers"
	"github.com/BaSui01/guardflow/types"
)

const (
	name         = "gemini"
	defaultModel = "gemini-2.0-flash"
)

// Backend keeps the API key and creates a genai.Client per Send so the
// caller's context governs the connection and the client is always closed.
type Backend struct {
	apiKey string
	cfg    providers.Config
	logger *zap.Logger
}

// New creates a Backend. The API key falls back to GOOGLE_API_KEY.
func New(cfg providers.Config, logger *zap.Logger) (*Backend, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	key, err := cfg.ResolveAPIKey(name)
	if err != nil {
		return nil, err
	}
	return &Backend{
		apiKey: key,
		cfg:    cfg,
		logger: logger.With(zap.String("component", "backend"), zap.String("provider", name)),
	}, nil
}

// Name implements llm.Namer.
func (b *Backend) Name() string { return name }

// Send implements llm.Backend. Earlier turns become chat history and the
// last user turn is sent as the new message.
func (b *Backend) Send(ctx context.Context, req *llm.Request) (string, error) {
	system, turns := providers.SplitConversation(req)
	history, last, err := splitLast(turns)
	if err != nil {
		return "", err
	}

	opts := []googleoption.ClientOption{googleoption.WithAPIKey(b.apiKey)}
	if b.cfg.BaseURL != "" {
		opts = append(opts, googleoption.WithEndpoint(b.cfg.BaseURL))
	}
	client, err := genai.NewClient(ctx, opts...)
	if err != nil {
		return "", llm.ClassifyError(name, 0, fmt.Errorf("gemini: genai client: %w", err))
	}
	defer client.Close()

	m := client.GenerativeModel(providers.ChooseModel(req, b.cfg.Model, defaultModel))
	b.configure(m, req, system)

	cs := m.StartChat()
	cs.History = history
	resp, err := cs.SendMessage(ctx, genai.Text(last))
	if err != nil {
		return "", llm.ClassifyError(name, 0, fmt.Errorf("gemini: generate content: %w", err))
	}

	text := responseText(resp)
	if text == "" {
		return "", types.NewError(types.ErrTransport, "gemini: response contained no text content").WithProvider(name)
	}
	return text, nil
}

func (b *Backend) configure(m *genai.GenerativeModel, req *llm.Request, system string) {
	if system != "" {
		m.SystemInstruction = &genai.Content{Parts: []genai.Part{genai.Text(system)}}
	}
	maxOut := int32(providers.ChooseMaxTokens(req, b.cfg.MaxTokens))
	m.MaxOutputTokens = &maxOut
	if t := providers.ChooseTemperature(req, b.cfg.Temperature); t != nil {
		temp32 := float32(*t)
		m.Temperature = &temp32
	}
	if len(req.Config.Stop) > 0 {
		m.StopSequences = req.Config.Stop
	}
	if b.cfg.JSONMode {
		m.ResponseMIMEType = "application/json"
	}
}

// splitLast turns all but the final user turn into genai history.
func splitLast(turns []providers.Turn) ([]*genai.Content, string, error) {
	if len(turns) == 0 || turns[len(turns)-1].Role != types.RoleUser {
		return nil, "", types.NewConfigurationError("gemini: conversation must end with a user message").WithProvider(name)
	}
	history := make([]*genai.Content, 0, len(turns)-1)
	for _, t := range turns[:len(turns)-1] {
		role := "user"
		if t.Role == types.RoleAssistant {
			role = "model"
		}
		history = append(history, &genai.Content{Role: role, Parts: []genai.Part{genai.Text(t.Content)}})
	}
	return history, turns[len(turns)-1].Content, nil
}

func responseText(resp *genai.GenerateContentResponse) string {
	if resp == nil {
		return ""
	}
	var parts []string
	for _, cand := range resp.Candidates {
		if cand.Content == nil {
			continue
		}
		for _, part := range cand.Content.Parts {
			if t, ok := part.(genai.Text); ok {
				parts = append(parts, string(t))
			}
		}
	}
	return strings.Join(parts, "")
}
