package retry

import (
	"context"

	"go.uber.org/zap"

	"github.com/BaSui01/guardflow/llm"
)

// Backend 为 llm.Backend 加上重试。重试对运行器透明：
// 一次 Send 无论内部重试多少次都只算一次后端调用。
type Backend struct {
	backend llm.Backend
	retryer Retryer
}

// NewRetryingBackend 用 policy 包装 b
func NewRetryingBackend(b llm.Backend, policy *Policy, logger *zap.Logger) *Backend {
	return &Backend{backend: b, retryer: NewBackoffRetryer(policy, logger)}
}

// Name 实现 llm.Namer
func (b *Backend) Name() string { return llm.NameOf(b.backend) }

// Send 实现 llm.Backend
func (b *Backend) Send(ctx context.Context, req *llm.Request) (string, error) {
	return DoTyped(b.retryer, ctx, func() (string, error) {
		return b.backend.Send(ctx, req)
	})
}
