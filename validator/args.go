package validator

import (
	"fmt"
	"math"
	"strconv"
)

func intArg(args map[string]any, key string, def int) (int, error) {
	raw, ok := args[key]
	if !ok || raw == nil {
		return def, nil
	}
	f, ok := toFloat(raw)
	if !ok || f != math.Trunc(f) {
		return 0, fmt.Errorf("arg %q: expected integer, got %T", key, raw)
	}
	return int(f), nil
}

func floatArg(args map[string]any, key string) (float64, bool, error) {
	raw, ok := args[key]
	if !ok || raw == nil {
		return 0, false, nil
	}
	f, ok := toFloat(raw)
	if !ok {
		return 0, false, fmt.Errorf("arg %q: expected number, got %T", key, raw)
	}
	return f, true, nil
}

func stringArg(args map[string]any, key string, required bool) (string, error) {
	raw, ok := args[key]
	if !ok || raw == nil {
		if required {
			return "", fmt.Errorf("arg %q is required", key)
		}
		return "", nil
	}
	s, ok := raw.(string)
	if !ok {
		return "", fmt.Errorf("arg %q: expected string, got %T", key, raw)
	}
	return s, nil
}

func listArg(args map[string]any, key string) ([]any, error) {
	raw, ok := args[key]
	if !ok || raw == nil {
		return nil, fmt.Errorf("arg %q is required", key)
	}
	switch v := raw.(type) {
	case []any:
		return v, nil
	case []string:
		out := make([]any, len(v))
		for i, s := range v {
			out[i] = s
		}
		return out, nil
	default:
		return nil, fmt.Errorf("arg %q: expected list, got %T", key, raw)
	}
}

// toFloat 将常见数值类型统一为 float64
func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int8:
		return float64(n), true
	case int16:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	case interface{ String() string }:
		// json.Number 等
		f, err := strconv.ParseFloat(n.String(), 64)
		return f, err == nil
	}
	return 0, false
}
