package parser

import (
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"

	"github.com/BaSui01/guardflow/schema"
)

func TestCoerce(t *testing.T) {
	tests := []struct {
		name    string
		node    *schema.Node
		raw     any
		want    any
		wantErr bool
	}{
		{"string", schema.String("s"), "x", "x", false},
		{"string from number", schema.String("s"), json.Number("3.5"), "3.5", false},
		{"string from bool", schema.String("s"), true, "true", false},
		{"string from object", schema.String("s"), map[string]any{}, nil, true},
		{"int", schema.Integer("i"), json.Number("7"), int64(7), false},
		{"int from integral float", schema.Integer("i"), json.Number("7.0"), int64(7), false},
		{"int from string", schema.Integer("i"), " 12 ", int64(12), false},
		{"int rejects fraction", schema.Integer("i"), json.Number("7.5"), nil, true},
		{"int rejects bool", schema.Integer("i"), true, nil, true},
		{"float", schema.Float("f"), json.Number("1e3"), 1000.0, false},
		{"float from string", schema.Float("f"), "2.25", 2.25, false},
		{"float rejects text", schema.Float("f"), "cheap", nil, true},
		{"bool", schema.Bool("b"), false, false, false},
		{"bool from yes", schema.Bool("b"), "Yes", true, false},
		{"bool rejects number", schema.Bool("b"), json.Number("1"), nil, true},
		{"date", schema.Date("d"), "2024-02-29", time.Date(2024, 2, 29, 0, 0, 0, 0, time.UTC), false},
		{"date custom layout", schema.Date("d").WithFormat("02/01/2006"), "29/02/2024", time.Date(2024, 2, 29, 0, 0, 0, 0, time.UTC), false},
		{"date invalid", schema.Date("d"), "2024-13-01", nil, true},
		{"time short", schema.Time("t"), "09:30", time.Date(0, 1, 1, 9, 30, 0, 0, time.UTC), false},
		{"datetime", schema.DateTime("dt"), "2024-01-15T10:30:00Z", time.Date(2024, 1, 15, 10, 30, 0, 0, time.UTC), false},
		{"datetime rejects number", schema.DateTime("dt"), json.Number("1"), nil, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := coerce(tt.node, tt.raw)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			assert.NoError(t, err)
			if want, ok := tt.want.(time.Time); ok {
				assert.True(t, want.Equal(got.(time.Time)), "got %v", got)
				return
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestJSONTypeName(t *testing.T) {
	assert.Equal(t, "null", jsonTypeName(nil))
	assert.Equal(t, "array", jsonTypeName([]any{}))
	assert.Equal(t, "object", jsonTypeName(map[string]any{}))
	assert.Equal(t, "number", jsonTypeName(json.Number("1")))
	assert.Equal(t, "boolean", jsonTypeName(true))
}
