package circuitbreaker

import (
	"context"

	"go.uber.org/zap"

	"github.com/BaSui01/guardflow/llm"
)

// Backend 在熔断打开时直接拒绝请求，不再打到上游
type Backend struct {
	backend llm.Backend
	breaker *Breaker
}

// NewBackend 用熔断器包装 b
func NewBackend(b llm.Backend, config *Config, logger *zap.Logger) *Backend {
	return &Backend{backend: b, breaker: New(config, logger)}
}

// Name 实现 llm.Namer
func (c *Backend) Name() string { return llm.NameOf(c.backend) }

// Breaker 返回内部熔断器
func (c *Backend) Breaker() *Breaker { return c.breaker }

// Send 实现 llm.Backend
func (c *Backend) Send(ctx context.Context, req *llm.Request) (string, error) {
	if c.breaker.Allow() != nil {
		return "", errOpen().WithProvider(c.Name())
	}
	text, err := c.backend.Send(ctx, req)
	c.breaker.Done(err)
	return text, err
}
