package validator

import (
	"context"
	"fmt"
)

// Validator 字段验证器接口
// 对单个节点的值进行校验，返回四种结果之一
type Validator interface {
	// Name 返回验证器名称（注册表中的标识符）
	Name() string
	// RequiredMetadataKeys 返回运行前必须存在的元数据键
	RequiredMetadataKeys() []string
	// Validate 执行验证；必须无状态且可并发调用
	Validate(ctx context.Context, value any, metadata map[string]any) Result
}

// Kind 验证结果类型
type Kind string

const (
	// KindPass 通过
	KindPass Kind = "pass"
	// KindFailFix 失败但给出修正值
	KindFailFix Kind = "fail_fix"
	// KindFailReask 失败，需要重新请求
	KindFailReask Kind = "fail_reask"
	// KindFailFatal 失败且不可恢复
	KindFailFatal Kind = "fail_fatal"
)

// Result 验证结果
type Result struct {
	Kind     Kind   `json:"kind"`
	Value    any    `json:"value,omitempty"`
	Reason   string `json:"reason,omitempty"`
	FixValue any    `json:"fix_value,omitempty"`
}

// Pass 创建通过结果
func Pass(value any) Result {
	return Result{Kind: KindPass, Value: value}
}

// FailFix 创建带修正值的失败结果
func FailFix(reason string, fix any) Result {
	return Result{Kind: KindFailFix, Reason: reason, FixValue: fix}
}

// FailReask 创建需要重新请求的失败结果
func FailReask(reason string) Result {
	return Result{Kind: KindFailReask, Reason: reason}
}

// FailFatal 创建致命失败结果
func FailFatal(reason string) Result {
	return Result{Kind: KindFailFatal, Reason: reason}
}

// Passed 是否通过
func (r Result) Passed() bool {
	return r.Kind == KindPass
}

// String 实现 fmt.Stringer
func (r Result) String() string {
	if r.Passed() {
		return string(r.Kind)
	}
	return fmt.Sprintf("%s: %s", r.Kind, r.Reason)
}

// FuncValidator 基于函数的验证器，便于临时定义校验规则
type FuncValidator struct {
	name string
	keys []string
	fn   func(ctx context.Context, value any, metadata map[string]any) Result
}

// NewFunc 创建函数验证器
func NewFunc(name string, fn func(ctx context.Context, value any, metadata map[string]any) Result, requiredKeys ...string) *FuncValidator {
	return &FuncValidator{name: name, keys: requiredKeys, fn: fn}
}

// Name 返回验证器名称
func (f *FuncValidator) Name() string { return f.name }

// RequiredMetadataKeys 返回必需的元数据键
func (f *FuncValidator) RequiredMetadataKeys() []string { return f.keys }

// Validate 执行验证
func (f *FuncValidator) Validate(ctx context.Context, value any, metadata map[string]any) Result {
	return f.fn(ctx, value, metadata)
}
