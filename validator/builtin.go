package validator

import (
	"context"
	"fmt"
	"math"
	"reflect"
	"regexp"
	"strings"
)

// 内置验证器标识符
const (
	IDTwoWords        = "two-words"
	IDLength          = "length"
	IDRegexMatch      = "regex-match"
	IDValidChoices    = "valid-choices"
	IDValidRange      = "valid-range"
	IDLowerCase       = "lower-case"
	IDUpperCase       = "upper-case"
	IDOneLine         = "one-line"
	IDEndsWith        = "ends-with"
	IDFormat          = "format"
	IDMetadataChoices = "metadata-choices"
)

func registerBuiltins(r *Registry) {
	r.MustRegister(IDTwoWords, func(map[string]any) (Validator, error) { return TwoWords{}, nil })
	r.MustRegister(IDLength, newLength)
	r.MustRegister(IDRegexMatch, newRegexMatch)
	r.MustRegister(IDValidChoices, newValidChoices)
	r.MustRegister(IDValidRange, newValidRange)
	r.MustRegister(IDLowerCase, func(map[string]any) (Validator, error) { return caseValidator{lower: true}, nil })
	r.MustRegister(IDUpperCase, func(map[string]any) (Validator, error) { return caseValidator{lower: false}, nil })
	r.MustRegister(IDOneLine, func(map[string]any) (Validator, error) { return OneLine{}, nil })
	r.MustRegister(IDEndsWith, newEndsWith)
	r.MustRegister(IDFormat, newFormat)
	r.MustRegister(IDMetadataChoices, newMetadataChoices)
}

func textValue(value any) (string, Result, bool) {
	s, ok := value.(string)
	if !ok {
		return "", FailReask(fmt.Sprintf("expected text, got %T", value)), false
	}
	return s, Result{}, true
}

// ============================================================================
// two-words
// ============================================================================

// TwoWords 要求值恰好由两个单词组成；多于两个时给出前两个单词作为修正值
type TwoWords struct{}

// Name 返回验证器名称
func (TwoWords) Name() string { return IDTwoWords }

// RequiredMetadataKeys 无需元数据
func (TwoWords) RequiredMetadataKeys() []string { return nil }

// Validate 执行验证
func (TwoWords) Validate(_ context.Context, value any, _ map[string]any) Result {
	s, fail, ok := textValue(value)
	if !ok {
		return fail
	}
	words := strings.Fields(s)
	switch {
	case len(words) == 2:
		return Pass(s)
	case len(words) > 2:
		return FailFix(fmt.Sprintf("must be exactly two words, got %d", len(words)), strings.Join(words[:2], " "))
	default:
		return FailReask(fmt.Sprintf("must be exactly two words, got %d", len(words)))
	}
}

// ============================================================================
// length
// ============================================================================

// Length 长度验证器，作用于文本（按字符）或列表
// 超长文本给出截断后的修正值，过短只能重新请求
type Length struct {
	Min int
	Max int // 0 表示不限
}

func newLength(args map[string]any) (Validator, error) {
	minLen, err := intArg(args, "min", 0)
	if err != nil {
		return nil, err
	}
	maxLen, err := intArg(args, "max", 0)
	if err != nil {
		return nil, err
	}
	if minLen < 0 || maxLen < 0 || (maxLen > 0 && minLen > maxLen) {
		return nil, fmt.Errorf("invalid bounds min=%d max=%d", minLen, maxLen)
	}
	return Length{Min: minLen, Max: maxLen}, nil
}

// Name 返回验证器名称
func (Length) Name() string { return IDLength }

// RequiredMetadataKeys 无需元数据
func (Length) RequiredMetadataKeys() []string { return nil }

// Validate 执行验证
func (v Length) Validate(_ context.Context, value any, _ map[string]any) Result {
	var n int
	switch val := value.(type) {
	case string:
		n = len([]rune(val)) // 使用 rune 计算字符数，支持中文
	case []any:
		n = len(val)
	default:
		return FailReask(fmt.Sprintf("length is undefined for %T", value))
	}

	if n < v.Min {
		return FailReask(fmt.Sprintf("length %d is below minimum %d", n, v.Min))
	}
	if v.Max > 0 && n > v.Max {
		reason := fmt.Sprintf("length %d exceeds maximum %d", n, v.Max)
		switch val := value.(type) {
		case string:
			return FailFix(reason, string([]rune(val)[:v.Max]))
		case []any:
			return FailFix(reason, append([]any(nil), val[:v.Max]...))
		}
	}
	return Pass(value)
}

// ============================================================================
// regex-match
// ============================================================================

// RegexMatch 正则匹配验证器
type RegexMatch struct {
	re        *regexp.Regexp
	fullMatch bool
}

func newRegexMatch(args map[string]any) (Validator, error) {
	pattern, err := stringArg(args, "regex", true)
	if err != nil {
		return nil, err
	}
	mode, err := stringArg(args, "match_type", false)
	if err != nil {
		return nil, err
	}
	full := false
	switch mode {
	case "", "search":
	case "fullmatch":
		full = true
		pattern = `^(?:` + pattern + `)$`
	default:
		return nil, fmt.Errorf("unknown match_type %q", mode)
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("invalid regex: %w", err)
	}
	return &RegexMatch{re: re, fullMatch: full}, nil
}

// Name 返回验证器名称
func (*RegexMatch) Name() string { return IDRegexMatch }

// RequiredMetadataKeys 无需元数据
func (*RegexMatch) RequiredMetadataKeys() []string { return nil }

// Validate 执行验证
func (v *RegexMatch) Validate(_ context.Context, value any, _ map[string]any) Result {
	s, fail, ok := textValue(value)
	if !ok {
		return fail
	}
	if !v.re.MatchString(s) {
		return FailReask(fmt.Sprintf("value %q does not match pattern %q", s, v.re.String()))
	}
	return Pass(s)
}

// ============================================================================
// valid-choices / metadata-choices
// ============================================================================

// ValidChoices 枚举验证器
type ValidChoices struct {
	Choices []any
}

func newValidChoices(args map[string]any) (Validator, error) {
	choices, err := listArg(args, "choices")
	if err != nil {
		return nil, err
	}
	if len(choices) == 0 {
		return nil, fmt.Errorf("choices is empty")
	}
	return ValidChoices{Choices: choices}, nil
}

// Name 返回验证器名称
func (ValidChoices) Name() string { return IDValidChoices }

// RequiredMetadataKeys 无需元数据
func (ValidChoices) RequiredMetadataKeys() []string { return nil }

// Validate 执行验证
func (v ValidChoices) Validate(_ context.Context, value any, _ map[string]any) Result {
	if containsValue(v.Choices, value) {
		return Pass(value)
	}
	return FailReask(fmt.Sprintf("value %v is not in choices %v", value, v.Choices))
}

// MetadataChoices 取值必须属于元数据中指定键对应的列表
type MetadataChoices struct {
	Key string
}

func newMetadataChoices(args map[string]any) (Validator, error) {
	key, err := stringArg(args, "key", true)
	if err != nil {
		return nil, err
	}
	return MetadataChoices{Key: key}, nil
}

// Name 返回验证器名称
func (MetadataChoices) Name() string { return IDMetadataChoices }

// RequiredMetadataKeys 返回所需的元数据键
func (v MetadataChoices) RequiredMetadataKeys() []string { return []string{v.Key} }

// Validate 执行验证
func (v MetadataChoices) Validate(_ context.Context, value any, metadata map[string]any) Result {
	raw := metadata[v.Key]
	var choices []any
	switch c := raw.(type) {
	case []any:
		choices = c
	case []string:
		for _, s := range c {
			choices = append(choices, s)
		}
	default:
		return FailFatal(fmt.Sprintf("metadata %q must be a list, got %T", v.Key, raw))
	}
	if containsValue(choices, value) {
		return Pass(value)
	}
	return FailReask(fmt.Sprintf("value %v is not one of %v", value, choices))
}

func containsValue(choices []any, value any) bool {
	for _, c := range choices {
		if cf, ok := toFloat(c); ok {
			if vf, ok := toFloat(value); ok && cf == vf {
				return true
			}
			continue
		}
		if reflect.DeepEqual(c, value) {
			return true
		}
	}
	return false
}

// ============================================================================
// valid-range
// ============================================================================

// ValidRange 数值范围验证器，越界时给出边界值作为修正值
type ValidRange struct {
	Min, Max       float64
	HasMin, HasMax bool
}

func newValidRange(args map[string]any) (Validator, error) {
	minV, hasMin, err := floatArg(args, "min")
	if err != nil {
		return nil, err
	}
	maxV, hasMax, err := floatArg(args, "max")
	if err != nil {
		return nil, err
	}
	if !hasMin && !hasMax {
		return nil, fmt.Errorf("at least one of min/max is required")
	}
	if hasMin && hasMax && minV > maxV {
		return nil, fmt.Errorf("min %v greater than max %v", minV, maxV)
	}
	return ValidRange{Min: minV, Max: maxV, HasMin: hasMin, HasMax: hasMax}, nil
}

// Name 返回验证器名称
func (ValidRange) Name() string { return IDValidRange }

// RequiredMetadataKeys 无需元数据
func (ValidRange) RequiredMetadataKeys() []string { return nil }

// Validate 执行验证
func (v ValidRange) Validate(_ context.Context, value any, _ map[string]any) Result {
	f, ok := toFloat(value)
	if !ok || math.IsNaN(f) {
		return FailReask(fmt.Sprintf("expected number, got %T", value))
	}
	if v.HasMin && f < v.Min {
		return FailFix(fmt.Sprintf("value %v is below minimum %v", value, v.Min), sameNumberType(value, v.Min))
	}
	if v.HasMax && f > v.Max {
		return FailFix(fmt.Sprintf("value %v exceeds maximum %v", value, v.Max), sameNumberType(value, v.Max))
	}
	return Pass(value)
}

// sameNumberType 保持修正值与原值的数值类型一致
func sameNumberType(orig any, f float64) any {
	switch orig.(type) {
	case int:
		return int(f)
	case int64:
		return int64(f)
	default:
		return f
	}
}

// ============================================================================
// lower-case / upper-case / one-line / ends-with
// ============================================================================

type caseValidator struct {
	lower bool
}

func (c caseValidator) Name() string {
	if c.lower {
		return IDLowerCase
	}
	return IDUpperCase
}

func (caseValidator) RequiredMetadataKeys() []string { return nil }

func (c caseValidator) Validate(_ context.Context, value any, _ map[string]any) Result {
	s, fail, ok := textValue(value)
	if !ok {
		return fail
	}
	want := strings.ToUpper(s)
	if c.lower {
		want = strings.ToLower(s)
	}
	if s == want {
		return Pass(s)
	}
	return FailFix(fmt.Sprintf("value %q must be %s", s, strings.TrimSuffix(c.Name(), "-case")+" case"), want)
}

// OneLine 要求值不含换行，修正值为第一行
type OneLine struct{}

// Name 返回验证器名称
func (OneLine) Name() string { return IDOneLine }

// RequiredMetadataKeys 无需元数据
func (OneLine) RequiredMetadataKeys() []string { return nil }

// Validate 执行验证
func (OneLine) Validate(_ context.Context, value any, _ map[string]any) Result {
	s, fail, ok := textValue(value)
	if !ok {
		return fail
	}
	lines := strings.Split(strings.TrimSpace(s), "\n")
	if len(lines) <= 1 {
		return Pass(s)
	}
	return FailFix(fmt.Sprintf("value spans %d lines", len(lines)), strings.TrimSpace(lines[0]))
}

// EndsWith 要求值以指定后缀结尾，修正值为追加后缀
type EndsWith struct {
	Suffix string
}

func newEndsWith(args map[string]any) (Validator, error) {
	suffix, err := stringArg(args, "end", true)
	if err != nil {
		return nil, err
	}
	return EndsWith{Suffix: suffix}, nil
}

// Name 返回验证器名称
func (EndsWith) Name() string { return IDEndsWith }

// RequiredMetadataKeys 无需元数据
func (EndsWith) RequiredMetadataKeys() []string { return nil }

// Validate 执行验证
func (v EndsWith) Validate(_ context.Context, value any, _ map[string]any) Result {
	s, fail, ok := textValue(value)
	if !ok {
		return fail
	}
	if strings.HasSuffix(s, v.Suffix) {
		return Pass(s)
	}
	return FailFix(fmt.Sprintf("value must end with %q", v.Suffix), s+v.Suffix)
}
