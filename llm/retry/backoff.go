package retry

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"time"

	"go.uber.org/zap"

	"github.com/BaSui01/guardflow/types"
)

// Policy 后端调用的重试策略
type Policy struct {
	MaxRetries   int                                               // 最大重试次数（0 表示不重试）
	InitialDelay time.Duration                                     // 首次重试前的延迟
	MaxDelay     time.Duration                                     // 延迟上限
	Multiplier   float64                                           // 指数退避倍数
	Jitter       bool                                              // ±25% 随机抖动
	ShouldRetry  func(err error) bool                              // 为空时使用 Retryable
	OnRetry      func(attempt int, err error, delay time.Duration) // 重试回调
}

// DefaultPolicy 默认策略：最多重试 3 次，1s 起步，30s 封顶
func DefaultPolicy() *Policy {
	return &Policy{
		MaxRetries:   3,
		InitialDelay: time.Second,
		MaxDelay:     30 * time.Second,
		Multiplier:   2.0,
		Jitter:       true,
	}
}

// Retryable 默认重试判定：types.Error 标记为可重试，或被 WrapRetryable 包装
func Retryable(err error) bool {
	return types.IsRetryable(err) || IsRetryableError(err)
}

// Retryer 重试器
type Retryer interface {
	// Do 执行 fn，失败时按策略重试
	Do(ctx context.Context, fn func() error) error

	// DoWithResult 执行 fn 并返回结果
	DoWithResult(ctx context.Context, fn func() (any, error)) (any, error)
}

type backoffRetryer struct {
	policy Policy
	logger *zap.Logger
}

// NewBackoffRetryer 创建指数退避重试器。policy 会被复制并补全非法字段。
func NewBackoffRetryer(policy *Policy, logger *zap.Logger) Retryer {
	if policy == nil {
		policy = DefaultPolicy()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	p := *policy
	if p.MaxRetries < 0 {
		p.MaxRetries = 0
	}
	if p.InitialDelay <= 0 {
		p.InitialDelay = time.Second
	}
	if p.MaxDelay <= 0 {
		p.MaxDelay = 30 * time.Second
	}
	if p.Multiplier < 1.0 {
		p.Multiplier = 2.0
	}
	if p.ShouldRetry == nil {
		p.ShouldRetry = Retryable
	}
	return &backoffRetryer{policy: p, logger: logger.With(zap.String("component", "retry"))}
}

// Do 实现 Retryer
func (r *backoffRetryer) Do(ctx context.Context, fn func() error) error {
	_, err := r.DoWithResult(ctx, func() (any, error) {
		return nil, fn()
	})
	return err
}

// DoWithResult 实现 Retryer
func (r *backoffRetryer) DoWithResult(ctx context.Context, fn func() (any, error)) (any, error) {
	var lastErr error
	logger := r.logger
	if id, ok := types.CallID(ctx); ok {
		logger = logger.With(zap.String("call_id", id))
	}

	for attempt := 0; attempt <= r.policy.MaxRetries; attempt++ {
		if attempt > 0 {
			delay := r.calculateDelay(attempt)
			logger.Debug("retrying",
				zap.Int("attempt", attempt),
				zap.Int("max_retries", r.policy.MaxRetries),
				zap.Duration("delay", delay),
				zap.Error(lastErr),
			)
			if r.policy.OnRetry != nil {
				r.policy.OnRetry(attempt, lastErr, delay)
			}

			timer := time.NewTimer(delay)
			select {
			case <-ctx.Done():
				timer.Stop()
				return nil, fmt.Errorf("retry cancelled: %w", ctx.Err())
			case <-timer.C:
			}
		}

		result, err := fn()
		if err == nil {
			if attempt > 0 {
				logger.Info("retry succeeded", zap.Int("attempt", attempt))
			}
			return result, nil
		}
		lastErr = err

		if !r.policy.ShouldRetry(err) {
			return nil, err
		}
	}

	logger.Warn("retries exhausted",
		zap.Int("attempts", r.policy.MaxRetries+1),
		zap.Error(lastErr),
	)
	if r.policy.MaxRetries == 0 {
		return nil, lastErr
	}
	return nil, fmt.Errorf("failed after %d retries: %w", r.policy.MaxRetries, lastErr)
}

// calculateDelay initial * multiplier^(attempt-1)，封顶 MaxDelay，可选抖动
func (r *backoffRetryer) calculateDelay(attempt int) time.Duration {
	delay := float64(r.policy.InitialDelay) * math.Pow(r.policy.Multiplier, float64(attempt-1))
	if delay > float64(r.policy.MaxDelay) {
		delay = float64(r.policy.MaxDelay)
	}
	if r.policy.Jitter {
		jitter := delay * 0.25
		delay += (rand.Float64()*2 - 1) * jitter
	}
	if delay < float64(r.policy.InitialDelay) {
		delay = float64(r.policy.InitialDelay)
	}
	return time.Duration(delay)
}

// RetryableError 将任意错误标记为可重试
type RetryableError struct {
	Err error
}

func (e *RetryableError) Error() string { return e.Err.Error() }

func (e *RetryableError) Unwrap() error { return e.Err }

// IsRetryableError 是否被 WrapRetryable 包装过
func IsRetryableError(err error) bool {
	var re *RetryableError
	return errors.As(err, &re)
}

// WrapRetryable 将 err 标记为可重试，nil 原样返回
func WrapRetryable(err error) error {
	if err == nil {
		return nil
	}
	return &RetryableError{Err: err}
}
