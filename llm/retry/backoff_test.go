package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/BaSui01/guardflow/llm"
	"github.com/BaSui01/guardflow/types"
)

func fastPolicy(maxRetries int) *Policy {
	return &Policy{
		MaxRetries:   maxRetries,
		InitialDelay: 5 * time.Millisecond,
		MaxDelay:     20 * time.Millisecond,
		Multiplier:   2.0,
	}
}

func transient() error {
	return types.NewError(types.ErrServiceUnavailable, "down").WithRetryable(true)
}

func TestBackoffRetryer_Success(t *testing.T) {
	retryer := NewBackoffRetryer(fastPolicy(3), zap.NewNop())

	callCount := 0
	err := retryer.Do(context.Background(), func() error {
		callCount++
		return nil
	})

	assert.NoError(t, err)
	assert.Equal(t, 1, callCount)
}

func TestBackoffRetryer_RetryAndSuccess(t *testing.T) {
	retryer := NewBackoffRetryer(fastPolicy(3), zap.NewNop())

	callCount := 0
	err := retryer.Do(context.Background(), func() error {
		callCount++
		if callCount < 3 {
			return transient()
		}
		return nil
	})

	assert.NoError(t, err)
	assert.Equal(t, 3, callCount)
}

func TestBackoffRetryer_MaxRetriesExceeded(t *testing.T) {
	retryer := NewBackoffRetryer(fastPolicy(2), zap.NewNop())

	callCount := 0
	err := retryer.Do(context.Background(), func() error {
		callCount++
		return transient()
	})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed after 2 retries")
	assert.Equal(t, types.ErrServiceUnavailable, types.GetErrorCode(err))
	assert.Equal(t, 3, callCount, "initial attempt plus two retries")
}

func TestBackoffRetryer_NonRetryableStopsImmediately(t *testing.T) {
	retryer := NewBackoffRetryer(fastPolicy(3), zap.NewNop())

	callCount := 0
	permanent := types.NewError(types.ErrTransport, "bad key")
	err := retryer.Do(context.Background(), func() error {
		callCount++
		return permanent
	})

	assert.Same(t, permanent, err)
	assert.Equal(t, 1, callCount)
}

func TestBackoffRetryer_WrapRetryable(t *testing.T) {
	retryer := NewBackoffRetryer(fastPolicy(1), nil)

	callCount := 0
	err := retryer.Do(context.Background(), func() error {
		callCount++
		if callCount == 1 {
			return WrapRetryable(errors.New("flaky"))
		}
		return nil
	})
	assert.NoError(t, err)
	assert.Equal(t, 2, callCount)

	assert.True(t, IsRetryableError(WrapRetryable(errors.New("x"))))
	assert.False(t, IsRetryableError(errors.New("x")))
	assert.Nil(t, WrapRetryable(nil))
}

func TestBackoffRetryer_ContextCanceled(t *testing.T) {
	retryer := NewBackoffRetryer(&Policy{
		MaxRetries:   5,
		InitialDelay: 100 * time.Millisecond,
		MaxDelay:     time.Second,
		Multiplier:   2.0,
	}, zap.NewNop())
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	callCount := 0
	err := retryer.Do(ctx, func() error {
		callCount++
		return transient()
	})

	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, 1, callCount)
}

func TestBackoffRetryer_ShouldRetry(t *testing.T) {
	retryableErr := errors.New("retryable")
	retryer := NewBackoffRetryer(&Policy{
		MaxRetries:   3,
		InitialDelay: time.Millisecond,
		ShouldRetry:  func(err error) bool { return errors.Is(err, retryableErr) },
	}, zap.NewNop())

	callCount := 0
	err := retryer.Do(context.Background(), func() error {
		callCount++
		if callCount < 3 {
			return retryableErr
		}
		return nil
	})
	assert.NoError(t, err)
	assert.Equal(t, 3, callCount)
}

func TestBackoffRetryer_DelayCalculation(t *testing.T) {
	retryer := NewBackoffRetryer(&Policy{
		MaxRetries:   5,
		InitialDelay: 100 * time.Millisecond,
		MaxDelay:     time.Second,
		Multiplier:   2.0,
	}, zap.NewNop()).(*backoffRetryer)

	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{1, 100 * time.Millisecond},
		{2, 200 * time.Millisecond},
		{3, 400 * time.Millisecond},
		{4, 800 * time.Millisecond},
		{5, time.Second},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, retryer.calculateDelay(tt.attempt), "attempt %d", tt.attempt)
	}

	jittered := NewBackoffRetryer(&Policy{
		InitialDelay: 100 * time.Millisecond,
		MaxDelay:     time.Second,
		Multiplier:   2.0,
		Jitter:       true,
	}, nil).(*backoffRetryer)
	for i := 0; i < 20; i++ {
		d := jittered.calculateDelay(3)
		assert.GreaterOrEqual(t, d, 300*time.Millisecond)
		assert.LessOrEqual(t, d, 500*time.Millisecond)
	}
}

func TestBackoffRetryer_OnRetryCallback(t *testing.T) {
	var attempts []int
	policy := fastPolicy(2)
	policy.OnRetry = func(attempt int, _ error, delay time.Duration) {
		attempts = append(attempts, attempt)
		assert.Greater(t, delay, time.Duration(0))
	}
	retryer := NewBackoffRetryer(policy, zap.NewNop())

	callCount := 0
	_ = retryer.Do(context.Background(), func() error {
		callCount++
		if callCount < 3 {
			return transient()
		}
		return nil
	})
	assert.Equal(t, []int{1, 2}, attempts)
}

func TestDoTyped(t *testing.T) {
	r := NewBackoffRetryer(fastPolicy(3), zap.NewNop())

	callCount := 0
	val, err := DoTyped(r, context.Background(), func() (string, error) {
		callCount++
		if callCount < 2 {
			return "", transient()
		}
		return "done", nil
	})
	assert.NoError(t, err)
	assert.Equal(t, "done", val)

	n, err := DoTyped(NewBackoffRetryer(fastPolicy(0), nil), context.Background(), func() (int, error) {
		return 7, errors.New("fail")
	})
	assert.Error(t, err)
	assert.Zero(t, n)
}

func TestRetryingBackend(t *testing.T) {
	calls := 0
	inner := llm.BackendFunc(func(context.Context, *llm.Request) (string, error) {
		calls++
		if calls == 1 {
			return "", llm.MapHTTPError(503, "unavailable", "test")
		}
		return "ok", nil
	})

	b := NewRetryingBackend(inner, fastPolicy(2), zap.NewNop())
	out, err := b.Send(context.Background(), &llm.Request{Prompt: "x"})
	require.NoError(t, err)
	assert.Equal(t, "ok", out)
	assert.Equal(t, 2, calls)
	assert.Equal(t, "custom", b.Name())
}
