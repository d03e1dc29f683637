package gemini

import (
	"os"
	"testing"
	"time"

	"github.com/google/generative-ai-go/genai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BaSui01/guardflow/llm"
	"github.com/BaSui01/guardflow/llm/providers"
	"github.com/BaSui01/guardflow/types"
)

func TestSplitLast(t *testing.T) {
	history, last, err := splitLast([]providers.Turn{
		{Role: types.RoleUser, Content: "q"},
		{Role: types.RoleAssistant, Content: "a"},
		{Role: types.RoleUser, Content: "again"},
	})
	require.NoError(t, err)
	assert.Equal(t, "again", last)
	require.Len(t, history, 2)
	assert.Equal(t, "user", history[0].Role)
	assert.Equal(t, "model", history[1].Role)
	assert.Equal(t, genai.Text("a"), history[1].Parts[0])

	_, _, err = splitLast([]providers.Turn{{Role: types.RoleAssistant, Content: "a"}})
	assert.True(t, types.IsConfigurationError(err))
	_, _, err = splitLast(nil)
	assert.Error(t, err)
}

func TestConfigure(t *testing.T) {
	temp := 0.3
	b := &Backend{cfg: providers.Config{MaxTokens: 256, Temperature: &temp, JSONMode: true}}
	m := &genai.GenerativeModel{}

	b.configure(m, &llm.Request{Config: llm.Config{Stop: []string{"END"}}}, "be terse")

	require.NotNil(t, m.SystemInstruction)
	assert.Equal(t, genai.Text("be terse"), m.SystemInstruction.Parts[0])
	assert.Equal(t, int32(256), *m.MaxOutputTokens)
	assert.InDelta(t, 0.3, float64(*m.Temperature), 1e-6)
	assert.Equal(t, []string{"END"}, m.StopSequences)
	assert.Equal(t, "application/json", m.ResponseMIMEType)
}

func TestResponseText(t *testing.T) {
	resp := &genai.GenerateContentResponse{Candidates: []*genai.Candidate{
		{Content: &genai.Content{Parts: []genai.Part{genai.Text("Tomato "), genai.Text("Pizza")}}},
		{Content: nil},
	}}
	assert.Equal(t, "Tomato Pizza", responseText(resp))
	assert.Empty(t, responseText(nil))
}

func TestNew_MissingKey(t *testing.T) {
	t.Setenv("GOOGLE_API_KEY", "")
	_, err := New(providers.Config{}, nil)
	assert.True(t, types.IsConfigurationError(err))
}

func TestBackend_Integration(t *testing.T) {
	if os.Getenv("GOOGLE_API_KEY") == "" {
		t.Skip("GOOGLE_API_KEY not set, skipping integration test")
	}
	b, err := New(providers.Config{Timeout: 30 * time.Second}, nil)
	require.NoError(t, err)
	out, err := b.Send(t.Context(), &llm.Request{Prompt: "Reply with the single word: pong"})
	require.NoError(t, err)
	assert.NotEmpty(t, out)
}
