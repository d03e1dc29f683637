package guard

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/BaSui01/guardflow/history"
	"github.com/BaSui01/guardflow/internal/metrics"
	"github.com/BaSui01/guardflow/llm"
	"github.com/BaSui01/guardflow/llm/factory"
	"github.com/BaSui01/guardflow/llm/providers"
	"github.com/BaSui01/guardflow/schema"
	helpers "github.com/BaSui01/guardflow/testutil"
	"github.com/BaSui01/guardflow/testutil/fixtures"
	"github.com/BaSui01/guardflow/testutil/mocks"
	"github.com/BaSui01/guardflow/types"
	"github.com/BaSui01/guardflow/validator"
)

const pizzaPrompt = "Name a pizza in exactly two words."

func TestNew_RequiresSchema(t *testing.T) {
	_, err := New(nil)
	helpers.AssertErrorCode(t, err, types.ErrConfiguration)
}

func TestNew_RejectsNegativeBudget(t *testing.T) {
	_, err := New(fixtures.PizzaTree(), WithNumReasks(-1))
	helpers.AssertErrorCode(t, err, types.ErrConfiguration)
}

func TestConfigure(t *testing.T) {
	g, err := New(fixtures.PizzaTree())
	require.NoError(t, err)
	assert.Equal(t, DefaultNumReasks, g.NumReasks())

	require.NoError(t, g.Configure())
	assert.Equal(t, 1, g.NumReasks(), "configure without options keeps the budget")

	require.NoError(t, g.Configure(WithNumReasks(3)))
	assert.Equal(t, 3, g.NumReasks())

	err = g.Configure(WithNumReasks(-2))
	helpers.AssertErrorCode(t, err, types.ErrConfiguration)
	assert.Equal(t, 3, g.NumReasks(), "a rejected configuration is not applied")
}

func TestConfigure_ReplacesBackend(t *testing.T) {
	first := mocks.NewScriptedBackend(fixtures.PizzaTwoWords)
	second := mocks.NewScriptedBackend(fixtures.PizzaTwoWords)
	g, err := New(fixtures.PizzaTree(), WithBackend(first))
	require.NoError(t, err)

	require.NoError(t, g.Configure(WithBackend(second)))
	out, err := g.Call(helpers.TestContext(t), Prompt(pizzaPrompt))
	require.NoError(t, err)
	assert.True(t, out.Passed)
	assert.Equal(t, 0, first.CallCount())
	assert.Equal(t, 1, second.CallCount())
}

func TestNew_ProviderShortcuts(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "")

	_, err := New(fixtures.PizzaTree(), WithOpenAI("gpt-4o-mini"))
	helpers.AssertErrorCode(t, err, types.ErrConfiguration)

	g, err := New(fixtures.PizzaTree(), WithOpenAI("gpt-4o-mini"), WithAPIKey("sk-test"))
	require.NoError(t, err)
	assert.True(t, g.state().hasBackend)

	_, err = New(fixtures.PizzaTree(), WithProvider("nope", providers.Config{APIKey: "k"}, factory.Options{}))
	helpers.AssertErrorCode(t, err, types.ErrConfiguration)
}

func TestParse_MissingMetadataFailsBeforeAnyCall(t *testing.T) {
	backend := mocks.NewScriptedBackend()
	g, err := New(fixtures.MetadataTree(), WithBackend(backend))
	require.NoError(t, err)

	out, err := g.Parse(helpers.TestContext(t), "{}")
	require.Error(t, err)
	te, ok := types.AsError(err)
	require.True(t, ok)
	assert.Equal(t, "Missing required metadata keys: allowed_toppings, pizza_styles", te.Message)

	require.NotNil(t, out)
	assert.Equal(t, err, out.Error)
	assert.Equal(t, history.StatusFailed, out.Status)
	assert.Empty(t, out.History.Iterations)
	assert.Equal(t, 0, backend.CallCount())
}

func TestParse_WithMetadataAndNoReasks(t *testing.T) {
	g, err := New(fixtures.MetadataTree(), WithNumReasks(0))
	require.NoError(t, err)

	out, err := g.Parse(helpers.TestContext(t), fixtures.MetadataValid, Metadata(fixtures.FullMetadata()))
	require.NoError(t, err)
	assert.NoError(t, out.Error)
	assert.True(t, out.Passed)
	assert.Equal(t, map[string]any{
		"order": map[string]any{"style": "roman", "topping": "basil"},
	}, out.Output)
}

func TestParse_ReasksThroughBackend(t *testing.T) {
	backend := mocks.NewScriptedBackend(fixtures.PizzaTwoWords)
	g, err := New(fixtures.PizzaTree(), WithBackend(backend), WithPrompt(pizzaPrompt))
	require.NoError(t, err)

	out, err := g.Parse(helpers.TestContext(t), fixtures.PizzaThreeWords)
	require.NoError(t, err)
	assert.True(t, out.Passed)
	assert.Equal(t, fixtures.PizzaTwoWords, out.Output)
	assert.Equal(t, 1, out.ReasksUsed())
	assert.Equal(t, 1, backend.CallCount())

	require.Len(t, out.History.Iterations, 2)
	assert.False(t, out.History.Iterations[0].BackendCalled)
	assert.True(t, out.History.Iterations[1].BackendCalled)
}

func TestParse_WithoutBackendEndsPartial(t *testing.T) {
	g, err := New(fixtures.PizzaTree())
	require.NoError(t, err)

	out, err := g.Parse(helpers.TestContext(t), fixtures.PizzaThreeWords)
	require.NoError(t, err)
	assert.Equal(t, history.StatusPartial, out.Status)
	assert.False(t, out.Passed)
	helpers.AssertFailurePaths(t, out.Failures, "$")
	assert.Equal(t, fixtures.PizzaThreeWords, out.Output)
}

func TestCall_RequiresPrompt(t *testing.T) {
	backend := mocks.NewScriptedBackend(fixtures.PizzaTwoWords)
	g, err := New(fixtures.PizzaTree(), WithBackend(backend))
	require.NoError(t, err)

	out, err := g.Call(helpers.TestContext(t))
	assert.Nil(t, out)
	helpers.AssertErrorCode(t, err, types.ErrConfiguration)
	assert.Equal(t, 0, backend.CallCount())
}

func TestCall_WithoutBackend(t *testing.T) {
	g, err := New(fixtures.PizzaTree())
	require.NoError(t, err)

	_, err = g.Call(helpers.TestContext(t), Prompt(pizzaPrompt))
	helpers.AssertErrorCode(t, err, types.ErrBackendNotSet)
}

func TestCall_CallOptionsOverrideDefaults(t *testing.T) {
	backend := mocks.NewScriptedBackend(fixtures.PizzaThreeWords, fixtures.PizzaTwoWords)
	temp := 0.2
	g, err := New(fixtures.PizzaTree(),
		WithBackend(backend),
		WithInstructions("Answer briefly."),
		WithPrompt("default prompt"),
		WithLLMConfig(llm.Config{Model: "default"}),
		WithNumReasks(3),
	)
	require.NoError(t, err)

	out, err := g.Call(helpers.TestContext(t),
		Instructions("You name pizzas."),
		Prompt(pizzaPrompt),
		LLMConfig(llm.Config{Model: "override", Temperature: &temp}),
		NumReasks(0),
	)
	require.NoError(t, err)
	assert.Equal(t, history.StatusPartial, out.Status)
	assert.Equal(t, 1, backend.CallCount())

	req := backend.LastCall()
	assert.Equal(t, "You name pizzas.", req.Instructions)
	assert.Equal(t, pizzaPrompt, req.Prompt)
	assert.Equal(t, "override", req.Config.Model)
	assert.Equal(t, 3, g.NumReasks(), "per-call budget does not change the guard")
}

func TestCall_MessageHistory(t *testing.T) {
	backend := mocks.NewScriptedBackend(fixtures.PizzaTwoWords)
	g, err := New(fixtures.PizzaTree(), WithBackend(backend))
	require.NoError(t, err)

	msgs := []types.Message{
		types.NewUserMessage("Suggest a pizza."),
		types.NewAssistantMessage("Margherita?"),
		types.NewUserMessage(pizzaPrompt),
	}
	out, err := g.Call(helpers.TestContext(t), Messages(msgs...))
	require.NoError(t, err)
	assert.True(t, out.Passed)
	helpers.AssertMessagesEqual(t, msgs, backend.LastCall().Messages)
}

func TestCall_PersistsHistory(t *testing.T) {
	store := history.NewMemoryStore()
	backend := mocks.NewScriptedBackend(fixtures.PizzaThreeWords, fixtures.PizzaTwoWords)
	g, err := New(fixtures.PizzaTree(), WithBackend(backend), WithStore(store))
	require.NoError(t, err)
	ctx := helpers.TestContext(t)

	out, err := g.Call(ctx, Prompt(pizzaPrompt))
	require.NoError(t, err)
	require.True(t, out.Passed)

	saved, err := g.History(ctx, out.CallID)
	require.NoError(t, err)
	assert.Equal(t, history.StatusPassed, saved.Status)
	assert.Len(t, saved.Iterations, 2)
	assert.Equal(t, 1, saved.ReasksUsed)

	calls, err := g.ListHistory(ctx, history.ListOptions{})
	require.NoError(t, err)
	require.Len(t, calls, 1)
	assert.Equal(t, out.CallID, calls[0].ID)

	_, err = g.History(ctx, "missing")
	assert.True(t, history.IsNotFound(err))
}

func TestCall_PersistsCancelledCalls(t *testing.T) {
	store := history.NewMemoryStore()
	g, err := New(fixtures.PizzaTree(), WithBackend(mocks.NewScriptedBackend()), WithStore(store))
	require.NoError(t, err)

	out, err := g.Call(helpers.CancelledContext(), Prompt(pizzaPrompt))
	helpers.AssertErrorCode(t, err, types.ErrSessionCancelled)
	require.NotNil(t, out)
	assert.Equal(t, history.StatusCancelled, out.Status)

	saved, err := store.Get(helpers.TestContext(t), out.CallID)
	require.NoError(t, err)
	assert.Equal(t, history.StatusCancelled, saved.Status)
}

func TestHistory_WithoutStore(t *testing.T) {
	g, err := New(fixtures.PizzaTree())
	require.NoError(t, err)

	_, err = g.History(helpers.TestContext(t), "id")
	helpers.AssertErrorCode(t, err, types.ErrConfiguration)
	_, err = g.ListHistory(helpers.TestContext(t), history.ListOptions{})
	helpers.AssertErrorCode(t, err, types.ErrConfiguration)
}

func TestFromDocument(t *testing.T) {
	doc, err := schema.LoadDocument([]byte(`
instructions: You name pizzas.
prompt: Name a pizza in exactly two words.
num_reasks: 2
output:
  type: string
  validators:
    - id: two-words
      on_fail: reask
`), validator.Default())
	require.NoError(t, err)

	backend := mocks.NewScriptedBackend(fixtures.PizzaTwoWords)
	g, err := FromDocument(doc, WithBackend(backend))
	require.NoError(t, err)
	assert.Equal(t, 2, g.NumReasks())

	out, err := g.Call(helpers.TestContext(t))
	require.NoError(t, err)
	assert.True(t, out.Passed)
	assert.Equal(t, "You name pizzas.", backend.LastCall().Instructions)
	assert.Equal(t, pizzaPrompt, backend.LastCall().Prompt)

	g, err = FromDocument(doc, WithNumReasks(0))
	require.NoError(t, err)
	assert.Equal(t, 0, g.NumReasks(), "options override the document")

	_, err = FromDocument(nil)
	helpers.AssertErrorCode(t, err, types.ErrConfiguration)
}

func TestCallAsync_MatchesCall(t *testing.T) {
	ctx := helpers.TestContext(t)
	syncGuard, err := New(fixtures.OrderTree(),
		WithBackend(mocks.NewScriptedBackend(fixtures.OrderBadSizeAndQuantity, fixtures.OrderSizeAndQuantityPatch)),
		WithNumReasks(2))
	require.NoError(t, err)
	asyncGuard, err := New(fixtures.OrderTree(),
		WithAsyncBackend(mocks.NewScriptedBackend(fixtures.OrderBadSizeAndQuantity, fixtures.OrderSizeAndQuantityPatch)),
		WithNumReasks(2))
	require.NoError(t, err)

	want, err := syncGuard.Call(ctx, Prompt("Order a pizza as JSON."))
	require.NoError(t, err)

	c, ok := helpers.WaitForChannel(asyncGuard.CallAsync(ctx, Prompt("Order a pizza as JSON.")), 5*time.Second)
	require.True(t, ok)
	require.NoError(t, c.Err)
	got := c.Outcome

	assert.Equal(t, want.Status, got.Status)
	assert.Equal(t, want.Output, got.Output)
	assert.Equal(t, want.RawOutput, got.RawOutput)
	assert.Equal(t, want.ReasksUsed(), got.ReasksUsed())
	assert.Len(t, got.History.Iterations, len(want.History.Iterations))
}

func TestParseAsync(t *testing.T) {
	g, err := New(fixtures.PizzaTree(), WithBackend(mocks.NewScriptedBackend(fixtures.PizzaTwoWords)))
	require.NoError(t, err)

	c, ok := helpers.WaitForChannel(g.ParseAsync(helpers.TestContext(t), fixtures.PizzaThreeWords), 5*time.Second)
	require.True(t, ok)
	require.NoError(t, c.Err)
	assert.True(t, c.Outcome.Passed)
	assert.Equal(t, fixtures.PizzaTwoWords, c.Outcome.Output)

	c, ok = helpers.WaitForChannel(g.ParseAsync(helpers.TestContext(t), "x", NumReasks(-1)), time.Second)
	require.True(t, ok)
	assert.Nil(t, c.Outcome)
	helpers.AssertErrorCode(t, c.Err, types.ErrConfiguration)
}

func TestParseAll(t *testing.T) {
	g, err := New(fixtures.PizzaTree(), WithNumReasks(0), WithConcurrency(2))
	require.NoError(t, err)

	raws := []string{
		fixtures.PizzaTwoWords,
		fixtures.PizzaThreeWords,
		"Margherita Pizza",
		"Just one",
		"Four Cheese Pizza Deluxe",
	}
	outs, err := g.ParseAll(helpers.TestContext(t), raws)
	require.NoError(t, err)
	require.Len(t, outs, len(raws))

	passed := []bool{true, false, true, true, false}
	ids := map[string]bool{}
	for i, out := range outs {
		require.NotNil(t, out, "outcome %d", i)
		assert.Equal(t, raws[i], out.RawOutput)
		assert.Equal(t, passed[i], out.Passed, raws[i])
		ids[out.CallID] = true
	}
	assert.Len(t, ids, len(raws), "every session has its own call")
}

func TestParseAll_InvalidInput(t *testing.T) {
	g, err := New(fixtures.PizzaTree())
	require.NoError(t, err)

	_, err = g.ParseAll(helpers.TestContext(t), []string{"a b", "c d"}, NumReasks(-1))
	helpers.AssertErrorCode(t, err, types.ErrConfiguration)
}

func TestGuard_RecordsStoreMetrics(t *testing.T) {
	collector := metrics.NewCollector("guard_test", zap.NewNop())
	store := history.NewMemoryStore()
	g, err := New(fixtures.PizzaTree(),
		WithBackend(mocks.NewScriptedBackend(fixtures.PizzaTwoWords)),
		WithStore(store),
		WithMetrics(collector),
	)
	require.NoError(t, err)
	ctx := helpers.TestContext(t)

	out, err := g.Call(ctx, Prompt(pizzaPrompt))
	require.NoError(t, err)
	_, err = g.History(ctx, out.CallID)
	require.NoError(t, err)
	_, err = g.History(ctx, "missing")
	require.Error(t, err)

	assert.Equal(t, uint64(1), storeSamples(t, "save"))
	assert.Equal(t, uint64(2), storeSamples(t, "get"))
	assert.Zero(t, storeErrors(t), "not found is not a store error")
}

func storeSamples(t *testing.T, op string) uint64 {
	t.Helper()
	for _, m := range family(t, "guard_test_history_store_operation_duration_seconds") {
		for _, lp := range m.GetLabel() {
			if lp.GetName() == "operation" && lp.GetValue() == op {
				return m.GetHistogram().GetSampleCount()
			}
		}
	}
	return 0
}

func storeErrors(t *testing.T) float64 {
	t.Helper()
	var total float64
	for _, m := range family(t, "guard_test_history_store_errors_total") {
		total += m.GetCounter().GetValue()
	}
	return total
}

func family(t *testing.T, name string) []*dto.Metric {
	t.Helper()
	families, err := prometheus.DefaultGatherer.Gather()
	require.NoError(t, err)
	for _, mf := range families {
		if mf.GetName() == name {
			return mf.GetMetric()
		}
	}
	return nil
}

func TestGuard_ConcurrentCallsAndConfigure(t *testing.T) {
	g, err := New(fixtures.PizzaTree(), WithBackend(llm.BackendFunc(func(context.Context, *llm.Request) (string, error) {
		return fixtures.PizzaTwoWords, nil
	})))
	require.NoError(t, err)
	ctx := helpers.TestContext(t)

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 20; i++ {
			assert.NoError(t, g.Configure(WithNumReasks(i%3)))
		}
	}()
	for i := 0; i < 20; i++ {
		out, err := g.Call(ctx, Prompt(pizzaPrompt))
		require.NoError(t, err)
		assert.True(t, out.Passed)
	}
	<-done
}
