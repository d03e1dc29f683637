package value

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BaSui01/guardflow/schema"
)

func sampleTree(t *testing.T) (*schema.Tree, *Node) {
	t.Helper()
	tree := schema.MustBuild(schema.Object("",
		schema.String("name"),
		schema.List("tags", schema.String("tag")),
		schema.Choice("pay", "method", schema.Case("card", schema.String("last4"))),
		schema.String("note").AsOptional(),
	), nil)

	root := tree.Root()
	tags := root.Field("tags")
	pay := root.Field("pay")
	n := &Node{
		Path:   schema.RootPath,
		Schema: root,
		Fields: []*Node{
			{Path: "$.name", Schema: root.Field("name"), Value: "Ada"},
			{Path: "$.tags", Schema: tags, Items: []*Node{
				{Path: "$.tags[0]", Schema: tags.Elem, Value: "a"},
				{Path: "$.tags[1]", Schema: tags.Elem, Value: "b", Filtered: true},
				{Path: "$.tags[2]", Schema: tags.Elem, Value: "c"},
			}},
			{Path: "$.pay", Schema: pay, Case: "card", Fields: []*Node{
				{Path: "$.pay.last4", Schema: pay.CaseFor("card").Field("last4"), Raw: 1234, Unparseable: true},
			}},
			{Path: "$.note", Schema: root.Field("note"), Missing: true},
		},
	}
	return tree, n
}

func TestExport(t *testing.T) {
	_, n := sampleTree(t)

	want := map[string]any{
		"name": "Ada",
		"tags": []any{"a", "c"},
		"pay":  map[string]any{"method": "card", "last4": 1234},
	}
	if diff := cmp.Diff(want, n.Export()); diff != "" {
		t.Fatalf("export mismatch (-want +got):\n%s", diff)
	}

	var nilNode *Node
	assert.Nil(t, nilNode.Export())
}

func TestFindAndWalk(t *testing.T) {
	_, n := sampleTree(t)

	found := n.Find("$.tags[2]")
	require.NotNil(t, found)
	assert.Equal(t, "c", found.Value)
	assert.Nil(t, n.Find("$.nope"))

	var paths []string
	n.Walk(func(c *Node) bool {
		paths = append(paths, c.Path)
		return c.Path != "$.tags"
	})
	assert.Equal(t, []string{"$", "$.name", "$.tags"}, paths)

	assert.Equal(t, "Ada", n.Field("name").Value)
	assert.Nil(t, n.Field("missing"))
}

func TestClone_IsDeep(t *testing.T) {
	_, n := sampleTree(t)
	c := n.Clone()

	c.Field("name").Value = "Grace"
	c.Field("tags").Items[0].Value = "z"

	assert.Equal(t, "Ada", n.Field("name").Value)
	assert.Equal(t, "a", n.Field("tags").Items[0].Value)
	assert.Same(t, n.Schema, c.Schema)

	s := n.ShallowCopy()
	assert.Same(t, n.Fields[0], s.Fields[0])
}

func TestStatusHelpers(t *testing.T) {
	n := &Node{Status: StatusFail}
	assert.True(t, n.Failed())
	assert.True(t, n.Usable())
	n.Missing = true
	assert.False(t, n.Usable())
}
