package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/BaSui01/guardflow/history"
	"github.com/BaSui01/guardflow/testutil/fixtures"
	"github.com/BaSui01/guardflow/testutil/mocks"
)

const pizzaDocument = `
prompt: Name a pizza in exactly two words.
output:
  type: string
  validators:
    - id: two-words
      on_fail: reask
`

const metadataDocument = `
output:
  type: object
  fields:
    - name: style
      type: string
      validators:
        - id: metadata-choices
          on_fail: reask
          args:
            key: pizza_styles
`

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

// fileStore points the history store at a temp dir so calls survive across
// command runs.
func fileStore(t *testing.T) {
	t.Setenv("GUARDFLOW_STORE_TYPE", "file")
	t.Setenv("GUARDFLOW_STORE_BASE_DIR", t.TempDir())
}

func execute(t *testing.T, opts *rootOptions, stdin string, args ...string) (string, error) {
	t.Helper()
	if opts.logger == nil {
		opts.logger = zap.NewNop()
	}
	cmd := newRootCmdWith(opts)
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func decodeReport(t *testing.T, out string) report {
	t.Helper()
	var r report
	require.NoError(t, json.Unmarshal([]byte(out), &r), out)
	return r
}

func TestVersionCmd(t *testing.T) {
	out, err := execute(t, &rootOptions{}, "", "version")
	require.NoError(t, err)
	assert.Contains(t, out, "GuardFlow dev")
	assert.Contains(t, out, "Git Commit: unknown")
}

func TestValidateCmd_Passes(t *testing.T) {
	schemaPath := writeFile(t, "pizza.yaml", pizzaDocument)
	outputPath := writeFile(t, "out.txt", fixtures.PizzaTwoWords)

	out, err := execute(t, &rootOptions{}, "", "validate", "--schema", schemaPath, "--output", outputPath)
	require.NoError(t, err)

	r := decodeReport(t, out)
	assert.True(t, r.Passed)
	assert.Equal(t, history.StatusPassed, r.Status)
	assert.Equal(t, fixtures.PizzaTwoWords, r.Output)
	assert.NotEmpty(t, r.CallID)
}

func TestValidateCmd_FailsWithoutReask(t *testing.T) {
	schemaPath := writeFile(t, "pizza.yaml", pizzaDocument)

	out, err := execute(t, &rootOptions{}, fixtures.PizzaThreeWords, "validate", "--schema", schemaPath)
	assert.ErrorIs(t, err, errNotPassed)

	r := decodeReport(t, out)
	assert.False(t, r.Passed)
	assert.Equal(t, history.StatusPartial, r.Status)
	require.Len(t, r.Failures, 1)
	assert.Equal(t, "$", r.Failures[0].Path)
	assert.Empty(t, r.Error)
}

func TestValidateCmd_ReaskUsesBackend(t *testing.T) {
	schemaPath := writeFile(t, "pizza.yaml", pizzaDocument)
	backend := mocks.NewScriptedBackend(fixtures.PizzaTwoWords)

	out, err := execute(t, &rootOptions{backend: backend}, fixtures.PizzaThreeWords,
		"validate", "--schema", schemaPath, "--reask")
	require.NoError(t, err)

	r := decodeReport(t, out)
	assert.True(t, r.Passed)
	assert.Equal(t, 1, r.ReasksUsed)
	assert.Equal(t, 1, backend.CallCount())
}

func TestValidateCmd_NumReasksFlag(t *testing.T) {
	schemaPath := writeFile(t, "pizza.yaml", pizzaDocument)
	backend := mocks.NewScriptedBackend(fixtures.PizzaTwoWords)

	out, err := execute(t, &rootOptions{backend: backend}, fixtures.PizzaThreeWords,
		"validate", "--schema", schemaPath, "--reask", "--num-reasks", "0")
	assert.ErrorIs(t, err, errNotPassed)
	assert.Equal(t, history.StatusPartial, decodeReport(t, out).Status)
	assert.Equal(t, 0, backend.CallCount())
}

func TestValidateCmd_Metadata(t *testing.T) {
	schemaPath := writeFile(t, "styles.yaml", metadataDocument)
	raw := `{"style": "roman"}`

	out, err := execute(t, &rootOptions{}, raw, "validate", "--schema", schemaPath)
	assert.ErrorIs(t, err, errNotPassed)
	r := decodeReport(t, out)
	assert.Equal(t, history.StatusFailed, r.Status)
	assert.Contains(t, r.Error, "Missing required metadata keys: pizza_styles")

	metadataPath := writeFile(t, "meta.json", `{"pizza_styles": ["roman", "neapolitan"]}`)
	out, err = execute(t, &rootOptions{}, raw, "validate", "--schema", schemaPath, "--metadata", metadataPath)
	require.NoError(t, err)
	assert.True(t, decodeReport(t, out).Passed)
}

func TestValidateCmd_Errors(t *testing.T) {
	schemaPath := writeFile(t, "pizza.yaml", pizzaDocument)

	_, err := execute(t, &rootOptions{}, "", "validate")
	assert.ErrorContains(t, err, "schema")

	_, err = execute(t, &rootOptions{}, "", "validate", "--schema", filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	_, err = execute(t, &rootOptions{}, "", "validate", "--schema", schemaPath, "--output", filepath.Join(t.TempDir(), "none.txt"))
	assert.Error(t, err)

	badMeta := writeFile(t, "meta.json", "[1, 2")
	_, err = execute(t, &rootOptions{}, "x y", "validate", "--schema", schemaPath, "--metadata", badMeta)
	assert.ErrorContains(t, err, "decode metadata")
}

func TestRunCmd(t *testing.T) {
	schemaPath := writeFile(t, "pizza.yaml", pizzaDocument)
	backend := mocks.NewScriptedBackend(fixtures.PizzaThreeWords, fixtures.PizzaTwoWords)

	out, err := execute(t, &rootOptions{backend: backend}, "",
		"run", "--schema", schemaPath, "--prompt", "Two words, please.", "--instructions", "Be brief.")
	require.NoError(t, err)

	r := decodeReport(t, out)
	assert.True(t, r.Passed)
	assert.Equal(t, 1, r.ReasksUsed)
	require.Equal(t, 2, backend.CallCount())
	first := backend.Calls()[0]
	assert.Equal(t, "Two words, please.", first.Prompt)
	assert.Equal(t, "Be brief.", first.Instructions)
}

func TestRunCmd_InvalidConfig(t *testing.T) {
	schemaPath := writeFile(t, "pizza.yaml", pizzaDocument)
	t.Setenv("GUARDFLOW_RUNNER_CONCURRENCY", "0")

	_, err := execute(t, &rootOptions{backend: mocks.NewScriptedBackend()}, "", "run", "--schema", schemaPath)
	assert.ErrorContains(t, err, "concurrency")
}

func TestRunCmd_ConfigFile(t *testing.T) {
	schemaPath := writeFile(t, "pizza.yaml", pizzaDocument)
	configPath := writeFile(t, "guardflow.yaml", `
runner:
  num_reasks: 0
llm:
  model: from-config
`)
	// The document sets no budget, so the config's applies.
	backend := mocks.NewScriptedBackend(fixtures.PizzaThreeWords)

	out, err := execute(t, &rootOptions{backend: backend}, "",
		"--config", configPath, "run", "--schema", schemaPath)
	assert.ErrorIs(t, err, errNotPassed)
	assert.Equal(t, history.StatusPartial, decodeReport(t, out).Status)
	assert.Equal(t, 1, backend.CallCount())
	assert.Equal(t, "from-config", backend.LastCall().Config.Model)
}

func TestHistoryCmds(t *testing.T) {
	fileStore(t)
	schemaPath := writeFile(t, "pizza.yaml", pizzaDocument)

	out, err := execute(t, &rootOptions{}, fixtures.PizzaTwoWords, "validate", "--schema", schemaPath)
	require.NoError(t, err)
	passedID := decodeReport(t, out).CallID

	out, err = execute(t, &rootOptions{}, fixtures.PizzaThreeWords, "validate", "--schema", schemaPath)
	require.ErrorIs(t, err, errNotPassed)
	partialID := decodeReport(t, out).CallID

	out, err = execute(t, &rootOptions{}, "", "history", "list")
	require.NoError(t, err)
	var all []callSummary
	require.NoError(t, json.Unmarshal([]byte(out), &all))
	require.Len(t, all, 2)

	out, err = execute(t, &rootOptions{}, "", "history", "list", "--status", "partial")
	require.NoError(t, err)
	var partial []callSummary
	require.NoError(t, json.Unmarshal([]byte(out), &partial))
	require.Len(t, partial, 1)
	assert.Equal(t, partialID, partial[0].ID)
	assert.Equal(t, 1, partial[0].Turns)

	out, err = execute(t, &rootOptions{}, "", "history", "get", passedID)
	require.NoError(t, err)
	var call history.Call
	require.NoError(t, json.Unmarshal([]byte(out), &call))
	assert.Equal(t, passedID, call.ID)
	assert.Equal(t, history.StatusPassed, call.Status)
	require.Len(t, call.Iterations, 1)
	assert.Equal(t, fixtures.PizzaTwoWords, call.Iterations[0].RawOutput)

	_, err = execute(t, &rootOptions{}, "", "history", "get", "00000000-0000-0000-0000-000000000000")
	assert.True(t, history.IsNotFound(err))

	_, err = execute(t, &rootOptions{}, "", "history", "get")
	assert.Error(t, err)
}
