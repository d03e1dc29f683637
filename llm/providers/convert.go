package providers

import (
	"strings"

	"github.com/BaSui01/guardflow/llm"
	"github.com/BaSui01/guardflow/types"
)

// Turn 去掉系统消息后的单条对话
type Turn struct {
	Role    types.Role
	Content string
}

// SplitConversation 将请求展开为系统提示与对话轮次。
// 多条系统消息按顺序以空行拼接，相邻同角色消息合并为一条。
func SplitConversation(req *llm.Request) (string, []Turn) {
	var system []string
	var turns []Turn
	for _, m := range req.Conversation() {
		if m.Role == types.RoleSystem {
			system = append(system, m.Content)
			continue
		}
		if n := len(turns); n > 0 && turns[n-1].Role == m.Role {
			turns[n-1].Content += "\n\n" + m.Content
			continue
		}
		turns = append(turns, Turn{Role: m.Role, Content: m.Content})
	}
	return strings.Join(system, "\n\n"), turns
}

// ChooseModel 按请求 > 配置 > 兜底的顺序选择模型
func ChooseModel(req *llm.Request, configured, fallback string) string {
	if req != nil && req.Config.Model != "" {
		return req.Config.Model
	}
	if configured != "" {
		return configured
	}
	return fallback
}

// ChooseMaxTokens 按请求 > 配置 > DefaultMaxTokens 的顺序选择输出上限
func ChooseMaxTokens(req *llm.Request, configured int) int {
	if req != nil && req.Config.MaxTokens > 0 {
		return req.Config.MaxTokens
	}
	if configured > 0 {
		return configured
	}
	return DefaultMaxTokens
}

// ChooseTemperature 请求优先，其次配置；都为空时返回 nil
func ChooseTemperature(req *llm.Request, configured *float64) *float64 {
	if req != nil && req.Config.Temperature != nil {
		return req.Config.Temperature
	}
	return configured
}
