package parser

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"github.com/BaSui01/guardflow/schema"
)

const (
	defaultDateLayout = "2006-01-02"
	defaultTimeLayout = "15:04:05"
)

// coerce converts a decoded JSON value to the node's primitive type.
func coerce(n *schema.Node, raw any) (any, error) {
	switch n.Type {
	case schema.TypeString:
		return coerceString(raw)
	case schema.TypeInteger:
		return coerceInteger(raw)
	case schema.TypeFloat:
		return coerceFloat(raw)
	case schema.TypeBool:
		return coerceBool(raw)
	case schema.TypeDate:
		return coerceTime(raw, layouts(n.Format, defaultDateLayout))
	case schema.TypeTime:
		return coerceTime(raw, layouts(n.Format, defaultTimeLayout, "15:04"))
	case schema.TypeDateTime:
		return coerceTime(raw, layouts(n.Format, time.RFC3339Nano, time.RFC3339, "2006-01-02T15:04:05"))
	default:
		return nil, fmt.Errorf("unsupported scalar type %q", n.Type)
	}
}

func layouts(format string, defaults ...string) []string {
	if format != "" {
		return []string{format}
	}
	return defaults
}

func coerceString(raw any) (any, error) {
	switch v := raw.(type) {
	case string:
		return v, nil
	case json.Number:
		return v.String(), nil
	case bool:
		return strconv.FormatBool(v), nil
	default:
		return nil, fmt.Errorf("expected text, got %s", jsonTypeName(raw))
	}
}

func coerceInteger(raw any) (any, error) {
	var text string
	switch v := raw.(type) {
	case json.Number:
		text = v.String()
	case string:
		text = strings.TrimSpace(v)
	case float64:
		text = strconv.FormatFloat(v, 'f', -1, 64)
	case int64:
		return v, nil
	case int:
		return int64(v), nil
	default:
		return nil, fmt.Errorf("expected integer, got %s", jsonTypeName(raw))
	}

	if i, err := strconv.ParseInt(text, 10, 64); err == nil {
		return i, nil
	}
	f, err := strconv.ParseFloat(text, 64)
	if err != nil || math.IsInf(f, 0) || f != math.Trunc(f) {
		return nil, fmt.Errorf("cannot convert %q to integer", text)
	}
	return int64(f), nil
}

func coerceFloat(raw any) (any, error) {
	var text string
	switch v := raw.(type) {
	case json.Number:
		text = v.String()
	case string:
		text = strings.TrimSpace(v)
	case float64:
		return v, nil
	case int64:
		return float64(v), nil
	case int:
		return float64(v), nil
	default:
		return nil, fmt.Errorf("expected number, got %s", jsonTypeName(raw))
	}
	f, err := strconv.ParseFloat(text, 64)
	if err != nil {
		return nil, fmt.Errorf("cannot convert %q to number", text)
	}
	return f, nil
}

func coerceBool(raw any) (any, error) {
	switch v := raw.(type) {
	case bool:
		return v, nil
	case string:
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "true", "yes":
			return true, nil
		case "false", "no":
			return false, nil
		}
		return nil, fmt.Errorf("cannot convert %q to boolean", v)
	default:
		return nil, fmt.Errorf("expected boolean, got %s", jsonTypeName(raw))
	}
}

func coerceTime(raw any, layouts []string) (any, error) {
	s, ok := raw.(string)
	if !ok {
		return nil, fmt.Errorf("expected date/time text, got %s", jsonTypeName(raw))
	}
	s = strings.TrimSpace(s)
	for _, layout := range layouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return nil, fmt.Errorf("cannot parse %q with layout %s", s, strings.Join(layouts, " or "))
}

func jsonTypeName(v any) string {
	switch v.(type) {
	case nil:
		return "null"
	case map[string]any:
		return "object"
	case []any:
		return "array"
	case string:
		return "string"
	case json.Number, float64, int, int64:
		return "number"
	case bool:
		return "boolean"
	default:
		return fmt.Sprintf("%T", v)
	}
}
