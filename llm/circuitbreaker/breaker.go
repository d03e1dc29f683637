package circuitbreaker

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/BaSui01/guardflow/types"
)

// State 熔断器状态
type State int

const (
	// StateClosed 关闭状态（正常工作）
	StateClosed State = iota
	// StateOpen 打开状态（熔断中）
	StateOpen
	// StateHalfOpen 半开状态（试探性恢复）
	StateHalfOpen
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "Closed"
	case StateOpen:
		return "Open"
	case StateHalfOpen:
		return "HalfOpen"
	default:
		return "Unknown"
	}
}

// Config 熔断器配置
type Config struct {
	// Threshold 连续失败次数阈值（触发熔断）
	Threshold int

	// ResetTimeout 熔断恢复等待时间（从 Open -> HalfOpen）
	ResetTimeout time.Duration

	// HalfOpenMaxCalls 半开状态下允许的最大并发试探数
	HalfOpenMaxCalls int

	// OnStateChange 状态变更回调，在持锁外同步调用
	OnStateChange func(from State, to State)
}

// DefaultConfig 返回默认配置
func DefaultConfig() *Config {
	return &Config{
		Threshold:        5,
		ResetTimeout:     60 * time.Second,
		HalfOpenMaxCalls: 1,
	}
}

// Breaker 按连续的后端故障熔断。只有传输类故障计数，
// 配置错误与调用方取消不影响状态。
type Breaker struct {
	config Config
	logger *zap.Logger
	now    func() time.Time

	mu              sync.Mutex
	state           State
	failureCount    int
	openedAt        time.Time
	halfOpenPending int
}

// New 创建熔断器，非法参数回退到默认值
func New(config *Config, logger *zap.Logger) *Breaker {
	if logger == nil {
		logger = zap.NewNop()
	}
	cfg := *DefaultConfig()
	if config != nil {
		cfg.OnStateChange = config.OnStateChange
		if config.Threshold > 0 {
			cfg.Threshold = config.Threshold
		}
		if config.ResetTimeout > 0 {
			cfg.ResetTimeout = config.ResetTimeout
		}
		if config.HalfOpenMaxCalls > 0 {
			cfg.HalfOpenMaxCalls = config.HalfOpenMaxCalls
		}
	}
	return &Breaker{
		config: cfg,
		logger: logger.With(zap.String("component", "circuit_breaker")),
		now:    time.Now,
		state:  StateClosed,
	}
}

// Allow 在调用前检查，返回 CIRCUIT_OPEN 错误表示拒绝。
// 允许的调用必须以 Done 结束。
func (b *Breaker) Allow() error {
	b.mu.Lock()
	var change func()
	defer func() {
		b.mu.Unlock()
		if change != nil {
			change()
		}
	}()

	switch b.state {
	case StateOpen:
		if b.now().Sub(b.openedAt) < b.config.ResetTimeout {
			return errOpen()
		}
		change = b.setState(StateHalfOpen)
		b.halfOpenPending = 1
		b.logger.Info("circuit half-open, probing backend")
		return nil
	case StateHalfOpen:
		if b.halfOpenPending >= b.config.HalfOpenMaxCalls {
			return errOpen()
		}
		b.halfOpenPending++
		return nil
	default:
		return nil
	}
}

// Done 记录一次已允许调用的结果
func (b *Breaker) Done(err error) {
	b.mu.Lock()
	var change func()
	defer func() {
		b.mu.Unlock()
		if change != nil {
			change()
		}
	}()

	if b.state == StateHalfOpen && b.halfOpenPending > 0 {
		b.halfOpenPending--
	}
	if !countsAsFailure(err) {
		if err == nil && b.state == StateHalfOpen {
			b.logger.Info("circuit closed, backend recovered")
			change = b.setState(StateClosed)
		}
		if err == nil {
			b.failureCount = 0
		}
		return
	}

	b.failureCount++
	switch b.state {
	case StateClosed:
		if b.failureCount >= b.config.Threshold {
			b.logger.Warn("circuit opened",
				zap.Int("failure_count", b.failureCount),
				zap.Int("threshold", b.config.Threshold),
				zap.Error(err),
			)
			b.openedAt = b.now()
			change = b.setState(StateOpen)
		}
	case StateHalfOpen:
		b.logger.Warn("probe failed, circuit reopened", zap.Error(err))
		b.openedAt = b.now()
		b.halfOpenPending = 0
		change = b.setState(StateOpen)
	}
}

// State 获取当前状态
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Reset 手动恢复到关闭状态
func (b *Breaker) Reset() {
	b.mu.Lock()
	change := b.setState(StateClosed)
	b.failureCount = 0
	b.halfOpenPending = 0
	b.mu.Unlock()
	if change != nil {
		change()
	}
}

// setState 更新状态并返回待执行的回调，调用方需持锁
func (b *Breaker) setState(to State) func() {
	from := b.state
	b.state = to
	if from == to || b.config.OnStateChange == nil {
		return nil
	}
	cb := b.config.OnStateChange
	return func() { cb(from, to) }
}

// countsAsFailure 传输、超时、服务不可用、限流计为故障
func countsAsFailure(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) {
		return false
	}
	switch types.GetErrorCode(err) {
	case types.ErrConfiguration, types.ErrSessionCancelled, types.ErrCircuitOpen:
		return false
	case "":
		return true
	default:
		return types.IsRetryable(err) || types.IsErrorCode(err, types.ErrTransport)
	}
}

func errOpen() *types.Error {
	return types.NewError(types.ErrCircuitOpen, "circuit breaker is open")
}
