package parser

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/BaSui01/guardflow/schema"
)

// Feature: parser, Property 1: a malformed sibling never disturbs a well-formed one
func TestProperty_PartialParseIsolation(t *testing.T) {
	tree := schema.MustBuild(schema.Object("",
		schema.Object("good",
			schema.String("name"),
			schema.Integer("count"),
		),
		schema.Object("bad",
			schema.Integer("count"),
		),
	), nil)

	rapid.Check(t, func(rt *rapid.T) {
		name := rapid.StringMatching(`[A-Za-z ]{0,20}`).Draw(rt, "name")
		count := rapid.Int64Range(-1000, 1000).Draw(rt, "count")
		malformed := rapid.SampledFrom([]string{
			`"oops"`, `42`, `[1,2]`, `{"count": "many"}`, `{"count": true}`, `{}`,
		}).Draw(rt, "malformed")

		raw := fmt.Sprintf(`{"good": {"name": %q, "count": %d}, "bad": %s}`, name, count, malformed)
		n, err := Parse(raw, tree)
		require.NoError(rt, err)

		good := n.Field("good")
		assert.True(rt, good.Usable())
		assert.Equal(rt, name, good.Field("name").Value)
		assert.Equal(rt, count, good.Field("count").Value)
		for _, e := range Errors(n) {
			assert.True(rt, strings.HasPrefix(e.Path, "$.bad"), "unexpected error at %s", e.Path)
		}
		assert.NotEmpty(rt, Errors(n))
	})
}
