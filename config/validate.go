package config

import (
	"fmt"
	"strings"

	"go.uber.org/zap/zapcore"

	"github.com/BaSui01/guardflow/history"
	"github.com/BaSui01/guardflow/llm/factory"
	"github.com/BaSui01/guardflow/types"
)

// Validate 验证配置，所有问题合并为一个 CONFIGURATION_ERROR
func (c *Config) Validate() error {
	var errs []string

	if c.Runner.NumReasks < 0 {
		errs = append(errs, "runner.num_reasks must not be negative")
	}
	if c.Runner.Concurrency < 1 {
		errs = append(errs, "runner.concurrency must be at least 1")
	}

	if c.LLM.Provider != "" && !knownProvider(c.LLM.Provider) {
		errs = append(errs, fmt.Sprintf("llm.provider %q is not one of: %s",
			c.LLM.Provider, strings.Join(factory.Names(), ", ")))
	}
	if t := c.LLM.Temperature; t != nil && (*t < 0 || *t > 2) {
		errs = append(errs, "llm.temperature must be between 0 and 2")
	}
	if c.LLM.MaxRetries < 0 {
		errs = append(errs, "llm.max_retries must not be negative")
	}
	if c.LLM.BreakerThreshold < 0 {
		errs = append(errs, "llm.breaker_threshold must not be negative")
	}
	if c.LLM.RequestsPerSecond < 0 {
		errs = append(errs, "llm.requests_per_second must not be negative")
	}

	switch history.StoreType(c.Store.Type) {
	case history.StoreTypeMemory, history.StoreTypeFile, history.StoreTypeRedis, "":
	case history.StoreTypeSQL:
		if c.Store.Database.DSN() == "" {
			errs = append(errs, fmt.Sprintf("store.database.driver %q is not supported", c.Store.Database.Driver))
		}
	default:
		errs = append(errs, fmt.Sprintf("store.type %q is not supported", c.Store.Type))
	}

	if _, err := zapcore.ParseLevel(c.Log.Level); err != nil {
		errs = append(errs, fmt.Sprintf("log.level %q is invalid", c.Log.Level))
	}
	if c.Log.Format != "json" && c.Log.Format != "console" {
		errs = append(errs, "log.format must be json or console")
	}

	if c.Telemetry.SampleRate < 0 || c.Telemetry.SampleRate > 1 {
		errs = append(errs, "telemetry.sample_rate must be between 0 and 1")
	}

	if len(errs) > 0 {
		return types.NewConfigurationError("config validation errors: " + strings.Join(errs, "; "))
	}
	return nil
}

func knownProvider(name string) bool {
	for _, n := range factory.Names() {
		if strings.EqualFold(n, name) {
			return true
		}
	}
	return false
}
