package validator

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolve(t *testing.T) {
	fix := FailFix("bad", "good")
	reask := FailReask("bad")
	fatal := FailFatal("broken")

	tests := []struct {
		policy OnFail
		result Result
		want   Action
	}{
		{OnFailDefault, Pass("x"), ActionPass},
		{OnFailDefault, fix, ActionFix},
		{OnFailDefault, reask, ActionReask},
		{OnFailDefault, fatal, ActionFatal},
		{OnFailFix, fix, ActionFix},
		{OnFailFix, reask, ActionReask},
		{OnFailReask, fix, ActionReask},
		{OnFailReask, reask, ActionReask},
		{OnFailFilter, fix, ActionFilter},
		{OnFailFilter, reask, ActionFilter},
		{OnFailRefrain, reask, ActionRefrain},
		{OnFailException, fix, ActionFatal},
		{OnFailException, reask, ActionFatal},
		{OnFailNoop, reask, ActionWarn},
		{OnFailNoop, fix, ActionWarn},
		{OnFailNoop, fatal, ActionFatal},
		{OnFailNoop, Pass(1), ActionPass},
	}

	for _, tt := range tests {
		t.Run(string(tt.policy)+"/"+string(tt.result.Kind), func(t *testing.T) {
			assert.Equal(t, tt.want, Resolve(tt.policy, tt.result))
		})
	}
}

func TestParseOnFail(t *testing.T) {
	for _, s := range []string{"", "reask", "fix", "filter", "refrain", "exception", "noop"} {
		p, err := ParseOnFail(s)
		require.NoError(t, err)
		assert.Equal(t, OnFail(s), p)
	}

	_, err := ParseOnFail("explode")
	assert.Error(t, err)
}

func TestResult_String(t *testing.T) {
	assert.Equal(t, "pass", Pass(1).String())
	assert.Equal(t, "fail_reask: nope", FailReask("nope").String())
	assert.True(t, Pass(nil).Passed())
	assert.False(t, FailFix("x", 1).Passed())
}
