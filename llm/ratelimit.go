package llm

import (
	"context"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/BaSui01/guardflow/types"
)

// RateLimitedBackend 在发送前按令牌桶等待
type RateLimitedBackend struct {
	backend Backend
	limiter *rate.Limiter
	logger  *zap.Logger
}

// NewRateLimitedBackend 以 rps/burst 限制对 b 的调用。rps <= 0 表示不限。
func NewRateLimitedBackend(b Backend, rps float64, burst int, logger *zap.Logger) *RateLimitedBackend {
	if logger == nil {
		logger = zap.NewNop()
	}
	limit := rate.Inf
	if rps > 0 {
		limit = rate.Limit(rps)
	}
	if burst <= 0 {
		burst = 1
	}
	return &RateLimitedBackend{
		backend: b,
		limiter: rate.NewLimiter(limit, burst),
		logger:  logger.With(zap.String("component", "rate_limiter")),
	}
}

// Name 实现 Namer
func (r *RateLimitedBackend) Name() string { return NameOf(r.backend) }

// Send 实现 Backend
func (r *RateLimitedBackend) Send(ctx context.Context, req *Request) (string, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		r.logger.Debug("rate limit wait aborted", zap.Error(err))
		return "", types.NewError(types.ErrRateLimit, "rate limit wait aborted").
			WithProvider(r.Name()).
			WithCause(err)
	}
	return r.backend.Send(ctx, req)
}
