// =============================================================================
// 📦 GuardFlow 默认配置
// =============================================================================
// 默认使用内存历史存储、关闭遥测，后端需显式配置
// =============================================================================
package config

import "time"

// DefaultConfig 返回默认配置
func DefaultConfig() *Config {
	return &Config{
		Runner:    DefaultRunnerConfig(),
		LLM:       DefaultLLMConfig(),
		Store:     DefaultStoreConfig(),
		Metrics:   DefaultMetricsConfig(),
		Log:       DefaultLogConfig(),
		Telemetry: DefaultTelemetryConfig(),
	}
}

// DefaultRunnerConfig 返回默认会话配置
func DefaultRunnerConfig() RunnerConfig {
	return RunnerConfig{
		NumReasks:   1,
		Concurrency: 4,
	}
}

// DefaultLLMConfig 返回默认后端配置
func DefaultLLMConfig() LLMConfig {
	return LLMConfig{
		Provider:   "openai",
		Model:      "gpt-4o-mini",
		MaxTokens:  4096,
		Timeout:    2 * time.Minute,
		MaxRetries: 3,
	}
}

// DefaultStoreConfig 返回默认历史存储配置
func DefaultStoreConfig() StoreConfig {
	return StoreConfig{
		Type:    "memory",
		BaseDir: "./data/history",
		Redis: RedisConfig{
			Addr:      "localhost:6379",
			PoolSize:  10,
			KeyPrefix: "guardflow:",
		},
		Database: DatabaseConfig{
			Driver:          "sqlite",
			Host:            "localhost",
			Name:            "guardflow.db",
			SSLMode:         "disable",
			MaxOpenConns:    10,
			MaxIdleConns:    5,
			ConnMaxLifetime: time.Hour,
		},
	}
}

// DefaultMetricsConfig 返回默认指标配置
func DefaultMetricsConfig() MetricsConfig {
	return MetricsConfig{
		Enabled:   false,
		Namespace: "guardflow",
	}
}

// DefaultLogConfig 返回默认日志配置
func DefaultLogConfig() LogConfig {
	return LogConfig{
		Level:            "info",
		Format:           "json",
		OutputPaths:      []string{"stderr"},
		EnableCaller:     true,
		EnableStacktrace: false,
	}
}

// DefaultTelemetryConfig 返回默认遥测配置
func DefaultTelemetryConfig() TelemetryConfig {
	return TelemetryConfig{
		Enabled:      false,
		OTLPEndpoint: "localhost:4317",
		ServiceName:  "guardflow",
		SampleRate:   0.1,
	}
}
