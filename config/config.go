// =============================================================================
// 📦 GuardFlow 配置结构
// =============================================================================
// 会话、后端、历史存储、指标、日志与遥测的完整配置
// =============================================================================
package config

import (
	"fmt"
	"time"

	"github.com/BaSui01/guardflow/history"
	"github.com/BaSui01/guardflow/llm"
	"github.com/BaSui01/guardflow/llm/circuitbreaker"
	"github.com/BaSui01/guardflow/llm/factory"
	"github.com/BaSui01/guardflow/llm/providers"
	"github.com/BaSui01/guardflow/llm/retry"
)

// =============================================================================
// 🎯 核心配置结构
// =============================================================================

// Config 是 GuardFlow 的完整配置结构
type Config struct {
	// Runner 会话配置
	Runner RunnerConfig `yaml:"runner" env:"RUNNER"`

	// LLM 后端配置
	LLM LLMConfig `yaml:"llm" env:"LLM"`

	// Store 历史存储配置
	Store StoreConfig `yaml:"store" env:"STORE"`

	// Metrics Prometheus 指标配置
	Metrics MetricsConfig `yaml:"metrics" env:"METRICS"`

	// Log 日志配置
	Log LogConfig `yaml:"log" env:"LOG"`

	// Telemetry 遥测配置
	Telemetry TelemetryConfig `yaml:"telemetry" env:"TELEMETRY"`
}

// RunnerConfig 会话配置
type RunnerConfig struct {
	// 重问预算，0 表示只调用一次
	NumReasks int `yaml:"num_reasks" env:"NUM_REASKS"`
	// 批量解析时的最大并发会话数
	Concurrency int `yaml:"concurrency" env:"CONCURRENCY"`
}

// LLMConfig 后端配置
type LLMConfig struct {
	// 服务商: openai, anthropic, gemini
	Provider string `yaml:"provider" env:"PROVIDER"`
	// API Key，为空时读取服务商的环境变量
	APIKey string `yaml:"api_key" env:"API_KEY"`
	// 基础 URL（可选）
	BaseURL string `yaml:"base_url" env:"BASE_URL"`
	// 模型名称
	Model string `yaml:"model" env:"MODEL"`
	// 最大输出 Token 数
	MaxTokens int `yaml:"max_tokens" env:"MAX_TOKENS"`
	// 温度参数，为空时使用服务端默认值
	Temperature *float64 `yaml:"temperature" env:"TEMPERATURE"`
	// 请求超时
	Timeout time.Duration `yaml:"timeout" env:"TIMEOUT"`
	// 是否要求服务端输出 JSON
	JSONMode bool `yaml:"json_mode" env:"JSON_MODE"`
	// 最大重试次数，0 表示不重试
	MaxRetries int `yaml:"max_retries" env:"MAX_RETRIES"`
	// 每秒请求数上限，0 表示不限流
	RequestsPerSecond float64 `yaml:"requests_per_second" env:"REQUESTS_PER_SECOND"`
	// 令牌桶容量
	Burst int `yaml:"burst" env:"BURST"`
	// 连续失败多少次后熔断，0 表示不启用熔断
	BreakerThreshold int `yaml:"breaker_threshold" env:"BREAKER_THRESHOLD"`
	// 熔断后多久放行试探请求
	BreakerResetTimeout time.Duration `yaml:"breaker_reset_timeout" env:"BREAKER_RESET_TIMEOUT"`
}

// StoreConfig 历史存储配置
type StoreConfig struct {
	// 类型: memory, file, redis, sql
	Type string `yaml:"type" env:"TYPE"`
	// 文件存储目录
	BaseDir string `yaml:"base_dir" env:"BASE_DIR"`
	// Redis 配置
	Redis RedisConfig `yaml:"redis" env:"REDIS"`
	// 数据库配置
	Database DatabaseConfig `yaml:"database" env:"DATABASE"`
}

// RedisConfig Redis 配置
type RedisConfig struct {
	// 地址
	Addr string `yaml:"addr" env:"ADDR"`
	// 密码
	Password string `yaml:"password" env:"PASSWORD"`
	// 数据库编号
	DB int `yaml:"db" env:"DB"`
	// 连接池大小
	PoolSize int `yaml:"pool_size" env:"POOL_SIZE"`
	// 键前缀
	KeyPrefix string `yaml:"key_prefix" env:"KEY_PREFIX"`
	// 过期时间，0 表示不过期
	TTL time.Duration `yaml:"ttl" env:"TTL"`
}

// DatabaseConfig 数据库配置
type DatabaseConfig struct {
	// 驱动类型: postgres, mysql, sqlite
	Driver string `yaml:"driver" env:"DRIVER"`
	// 主机
	Host string `yaml:"host" env:"HOST"`
	// 端口
	Port int `yaml:"port" env:"PORT"`
	// 用户名
	User string `yaml:"user" env:"USER"`
	// 密码
	Password string `yaml:"password" env:"PASSWORD"`
	// 数据库名，sqlite 时为文件路径
	Name string `yaml:"name" env:"NAME"`
	// SSL 模式
	SSLMode string `yaml:"ssl_mode" env:"SSL_MODE"`
	// 最大连接数
	MaxOpenConns int `yaml:"max_open_conns" env:"MAX_OPEN_CONNS"`
	// 最大空闲连接
	MaxIdleConns int `yaml:"max_idle_conns" env:"MAX_IDLE_CONNS"`
	// 连接最大生命周期
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime" env:"CONN_MAX_LIFETIME"`
}

// MetricsConfig 指标配置
type MetricsConfig struct {
	// 是否启用
	Enabled bool `yaml:"enabled" env:"ENABLED"`
	// 指标命名空间
	Namespace string `yaml:"namespace" env:"NAMESPACE"`
	// Pushgateway 地址，命令结束时推送指标；为空时不推送
	PushGateway string `yaml:"push_gateway" env:"PUSH_GATEWAY"`
}

// LogConfig 日志配置
type LogConfig struct {
	// 日志级别: debug, info, warn, error
	Level string `yaml:"level" env:"LEVEL"`
	// 输出格式: json, console
	Format string `yaml:"format" env:"FORMAT"`
	// 输出路径
	OutputPaths []string `yaml:"output_paths" env:"OUTPUT_PATHS"`
	// 是否启用调用者信息
	EnableCaller bool `yaml:"enable_caller" env:"ENABLE_CALLER"`
	// 是否启用堆栈跟踪
	EnableStacktrace bool `yaml:"enable_stacktrace" env:"ENABLE_STACKTRACE"`
}

// TelemetryConfig 遥测配置
type TelemetryConfig struct {
	// 是否启用
	Enabled bool `yaml:"enabled" env:"ENABLED"`
	// OTLP 端点
	OTLPEndpoint string `yaml:"otlp_endpoint" env:"OTLP_ENDPOINT"`
	// 服务名称
	ServiceName string `yaml:"service_name" env:"SERVICE_NAME"`
	// 采样率
	SampleRate float64 `yaml:"sample_rate" env:"SAMPLE_RATE"`
}

// =============================================================================
// 🔄 转换为各组件配置
// =============================================================================

// ProviderConfig 转换为后端适配器配置
func (c LLMConfig) ProviderConfig() providers.Config {
	return providers.Config{
		APIKey:      c.APIKey,
		BaseURL:     c.BaseURL,
		Model:       c.Model,
		MaxTokens:   c.MaxTokens,
		Temperature: c.Temperature,
		Timeout:     c.Timeout,
		JSONMode:    c.JSONMode,
	}
}

// FactoryOptions 转换为重试与限流包装选项
func (c LLMConfig) FactoryOptions() factory.Options {
	opts := factory.Options{
		RequestsPerSecond: c.RequestsPerSecond,
		Burst:             c.Burst,
	}
	if c.MaxRetries > 0 {
		p := retry.DefaultPolicy()
		p.MaxRetries = c.MaxRetries
		opts.Retry = p
	}
	if c.BreakerThreshold > 0 {
		opts.CircuitBreaker = &circuitbreaker.Config{
			Threshold:    c.BreakerThreshold,
			ResetTimeout: c.BreakerResetTimeout,
		}
	}
	return opts
}

// RequestConfig 转换为单次请求的生成参数
func (c LLMConfig) RequestConfig() llm.Config {
	return llm.Config{
		Model:       c.Model,
		Temperature: c.Temperature,
		MaxTokens:   c.MaxTokens,
	}
}

// HistoryConfig 转换为历史存储配置
func (c StoreConfig) HistoryConfig() history.StoreConfig {
	return history.StoreConfig{
		Type:    history.StoreType(c.Type),
		BaseDir: c.BaseDir,
		Redis: history.RedisStoreConfig{
			Addr:      c.Redis.Addr,
			Password:  c.Redis.Password,
			DB:        c.Redis.DB,
			PoolSize:  c.Redis.PoolSize,
			KeyPrefix: c.Redis.KeyPrefix,
			TTL:       c.Redis.TTL,
		},
		SQL: history.SQLStoreConfig{
			Driver:       c.Database.Driver,
			DSN:          c.Database.DSN(),
			MaxOpenConns: c.Database.MaxOpenConns,
			MaxIdleConns: c.Database.MaxIdleConns,
			ConnMaxLife:  c.Database.ConnMaxLifetime,
		},
	}
}

// DSN 返回数据库连接字符串
func (d *DatabaseConfig) DSN() string {
	switch d.Driver {
	case "postgres":
		return fmt.Sprintf(
			"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
			d.Host, d.Port, d.User, d.Password, d.Name, d.SSLMode,
		)
	case "mysql":
		return fmt.Sprintf(
			"%s:%s@tcp(%s:%d)/%s?parseTime=true",
			d.User, d.Password, d.Host, d.Port, d.Name,
		)
	case "sqlite":
		return d.Name
	default:
		return ""
	}
}
