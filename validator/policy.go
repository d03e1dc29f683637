package validator

import "fmt"

// OnFail 失败处理策略
type OnFail string

const (
	// OnFailDefault 未指定策略，遵循验证器自身的结果
	OnFailDefault OnFail = ""
	// OnFailReask 重新请求
	OnFailReask OnFail = "reask"
	// OnFailFix 使用修正值
	OnFailFix OnFail = "fix"
	// OnFailFilter 从输出中删除该字段
	OnFailFilter OnFail = "filter"
	// OnFailRefrain 整个输出置空
	OnFailRefrain OnFail = "refrain"
	// OnFailException 中断整个会话
	OnFailException OnFail = "exception"
	// OnFailNoop 保留原值，仅记录警告
	OnFailNoop OnFail = "noop"
)

// ParseOnFail 解析策略字符串
func ParseOnFail(s string) (OnFail, error) {
	switch p := OnFail(s); p {
	case OnFailDefault, OnFailReask, OnFailFix, OnFailFilter, OnFailRefrain, OnFailException, OnFailNoop:
		return p, nil
	default:
		return "", fmt.Errorf("unknown on-fail policy %q", s)
	}
}

// Action 引擎对单个节点采取的动作
type Action string

const (
	ActionPass    Action = "pass"
	ActionFix     Action = "fix"
	ActionReask   Action = "reask"
	ActionFilter  Action = "filter"
	ActionRefrain Action = "refrain"
	ActionFatal   Action = "fatal"
	ActionWarn    Action = "warn"
)

// Resolve 将验证结果与策略组合为动作
//
//	policy     | FailFix   | FailReask | FailFatal
//	default    | fix       | reask     | fatal
//	fix        | fix       | reask     | fatal
//	reask      | reask     | reask     | fatal
//	filter     | filter    | filter    | fatal
//	refrain    | refrain   | refrain   | fatal
//	exception  | fatal     | fatal     | fatal
//	noop       | warn      | warn      | fatal
func Resolve(policy OnFail, r Result) Action {
	switch r.Kind {
	case KindPass:
		return ActionPass
	case KindFailFatal:
		return ActionFatal
	}

	switch policy {
	case OnFailReask:
		return ActionReask
	case OnFailFilter:
		return ActionFilter
	case OnFailRefrain:
		return ActionRefrain
	case OnFailException:
		return ActionFatal
	case OnFailNoop:
		return ActionWarn
	}

	// default 与 fix 策略：有修正值则修正，否则重新请求
	if r.Kind == KindFailFix {
		return ActionFix
	}
	return ActionReask
}
