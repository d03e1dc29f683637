package openai

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/BaSui01/guardflow/llm"
	"github.com/BaSui01/guardflow/llm/providers"
	"github.com/BaSui01/guardflow/types"
)

func newTestServer(t *testing.T, status int, body string, captured *map[string]any) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		if captured != nil {
			data, _ := io.ReadAll(r.Body)
			require.NoError(t, json.Unmarshal(data, captured))
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestBackend_Send(t *testing.T) {
	var got map[string]any
	srv := newTestServer(t, http.StatusOK, `{
		"id": "chatcmpl-1", "object": "chat.completion", "created": 1, "model": "gpt-test",
		"choices": [{"index": 0, "message": {"role": "assistant", "content": "Tomato Pizza"}, "finish_reason": "stop"}],
		"usage": {"prompt_tokens": 3, "completion_tokens": 2, "total_tokens": 5}
	}`, &got)

	temp := 0.0
	b, err := New(providers.Config{APIKey: "test-key", BaseURL: srv.URL + "/", Temperature: &temp}, zap.NewNop())
	require.NoError(t, err)

	out, err := b.Send(context.Background(), &llm.Request{
		Instructions: "Answer in two words.",
		Prompt:       "name a pizza",
		Config:       llm.Config{Model: "gpt-test", MaxTokens: 64},
	})
	require.NoError(t, err)
	assert.Equal(t, "Tomato Pizza", out)

	assert.Equal(t, "gpt-test", got["model"])
	assert.EqualValues(t, 64, got["max_tokens"])
	assert.EqualValues(t, 0, got["temperature"])
	msgs := got["messages"].([]any)
	require.Len(t, msgs, 2)
	assert.Equal(t, "system", msgs[0].(map[string]any)["role"])
	assert.Equal(t, "name a pizza", msgs[1].(map[string]any)["content"])
}

func TestBackend_SendErrors(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		body      string
		code      types.ErrorCode
		retryable bool
	}{
		{"rate limited", http.StatusTooManyRequests, `{"error":{"message":"slow down","type":"rate_limit"}}`, types.ErrRateLimit, true},
		{"server error", http.StatusInternalServerError, `{"error":{"message":"oops","type":"server_error"}}`, types.ErrTransport, true},
		{"bad gateway", http.StatusBadGateway, `{"error":{"message":"bad gateway"}}`, types.ErrServiceUnavailable, true},
		{"no choices", http.StatusOK, `{"id":"c","object":"chat.completion","created":1,"model":"x","choices":[]}`, types.ErrTransport, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newTestServer(t, tt.status, tt.body, nil)
			b, err := New(providers.Config{APIKey: "test-key", BaseURL: srv.URL + "/"}, nil)
			require.NoError(t, err)

			_, err = b.Send(context.Background(), &llm.Request{Prompt: "hi"})
			require.Error(t, err)
			assert.Equal(t, tt.code, types.GetErrorCode(err))
			assert.Equal(t, tt.retryable, types.IsRetryable(err))
		})
	}
}

func TestNew_MissingKey(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "")
	_, err := New(providers.Config{}, nil)
	assert.True(t, types.IsConfigurationError(err))
}
