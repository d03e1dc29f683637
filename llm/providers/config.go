package providers

import (
	"fmt"
	"os"
	"time"

	"github.com/BaSui01/guardflow/types"
)

// Config 所有后端适配器共享的配置
type Config struct {
	APIKey      string        `json:"api_key" yaml:"api_key"`
	BaseURL     string        `json:"base_url,omitempty" yaml:"base_url,omitempty"`
	Model       string        `json:"model,omitempty" yaml:"model,omitempty"`
	MaxTokens   int           `json:"max_tokens,omitempty" yaml:"max_tokens,omitempty"`
	Temperature *float64      `json:"temperature,omitempty" yaml:"temperature,omitempty"`
	Timeout     time.Duration `json:"timeout,omitempty" yaml:"timeout,omitempty"`
	// JSONMode 要求服务端直接输出 JSON（仅部分服务商支持）
	JSONMode bool `json:"json_mode,omitempty" yaml:"json_mode,omitempty"`
}

// DefaultMaxTokens 未配置时的输出上限
const DefaultMaxTokens = 4096

// APIKeyEnv 各服务商的 API Key 环境变量
var APIKeyEnv = map[string]string{
	"anthropic": "ANTHROPIC_API_KEY",
	"openai":    "OPENAI_API_KEY",
	"gemini":    "GOOGLE_API_KEY",
}

// ResolveAPIKey 配置为空时从环境变量读取
func (c Config) ResolveAPIKey(provider string) (string, error) {
	if c.APIKey != "" {
		return c.APIKey, nil
	}
	env := APIKeyEnv[provider]
	if env != "" {
		if key := os.Getenv(env); key != "" {
			return key, nil
		}
	}
	return "", types.NewConfigurationError(fmt.Sprintf("%s: api key not configured (set %s)", provider, env)).
		WithProvider(provider)
}
