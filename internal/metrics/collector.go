// Package metrics provides internal metrics collection.
// This package is internal and should not be imported by external projects.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"

	"github.com/BaSui01/guardflow/validator"
)

// =============================================================================
// 📊 指标收集器
// =============================================================================

// Collector 指标收集器
type Collector struct {
	// 会话指标
	sessionsTotal   *prometheus.CounterVec
	sessionDuration *prometheus.HistogramVec
	turnsTotal      *prometheus.CounterVec
	reasksTotal     prometheus.Counter

	// 校验指标
	validatorOutcomes *prometheus.CounterVec

	// 后端指标
	backendRequestsTotal   *prometheus.CounterVec
	backendRequestDuration *prometheus.HistogramVec

	// 历史存储指标
	storeOpDuration *prometheus.HistogramVec
	storeErrors     *prometheus.CounterVec

	logger *zap.Logger
}

// NewCollector 创建指标收集器
func NewCollector(namespace string, logger *zap.Logger) *Collector {
	if logger == nil {
		logger = zap.NewNop()
	}
	c := &Collector{
		logger: logger.With(zap.String("component", "metrics")),
	}

	// 会话指标
	c.sessionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_total",
			Help:      "Total number of validation sessions by final status",
		},
		[]string{"status"},
	)

	c.sessionDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "session_duration_seconds",
			Help:      "Validation session duration in seconds",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120},
		},
		[]string{"status"},
	)

	c.turnsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "turns_total",
			Help:      "Total number of turns by outcome",
		},
		[]string{"outcome"}, // outcome: pass, fail, error
	)

	c.reasksTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reasks_total",
			Help:      "Total number of reask requests compiled",
		},
	)

	// 校验指标
	c.validatorOutcomes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "validator_outcomes_total",
			Help:      "Total number of validator outcomes",
		},
		[]string{"validator", "action"},
	)

	// 后端指标
	c.backendRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "backend_requests_total",
			Help:      "Total number of backend requests",
		},
		[]string{"backend", "status"},
	)

	c.backendRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "backend_request_duration_seconds",
			Help:      "Backend request duration in seconds",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
		},
		[]string{"backend"},
	)

	// 历史存储指标
	c.storeOpDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "history_store_operation_duration_seconds",
			Help:      "History store operation duration in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"store", "operation"},
	)

	c.storeErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "history_store_errors_total",
			Help:      "Total number of failed history store operations",
		},
		[]string{"store", "operation"},
	)

	c.logger.Info("metrics collector initialized", zap.String("namespace", namespace))

	return c
}

// =============================================================================
// 🔁 会话指标记录
// =============================================================================

// RecordSession 记录一次结束的会话
func (c *Collector) RecordSession(status string, duration time.Duration) {
	c.sessionsTotal.WithLabelValues(status).Inc()
	c.sessionDuration.WithLabelValues(status).Observe(duration.Seconds())
}

// RecordTurn 记录一次轮次结果
func (c *Collector) RecordTurn(outcome string) {
	c.turnsTotal.WithLabelValues(outcome).Inc()
}

// RecordReask 记录一次重问
func (c *Collector) RecordReask() {
	c.reasksTotal.Inc()
}

// ObserveValidator 实现 validation.Observer
func (c *Collector) ObserveValidator(validatorID string, action validator.Action) {
	c.validatorOutcomes.WithLabelValues(validatorID, string(action)).Inc()
}

// =============================================================================
// 🤖 后端指标记录
// =============================================================================

// RecordBackendRequest 记录后端请求
func (c *Collector) RecordBackendRequest(backend, status string, duration time.Duration) {
	c.backendRequestsTotal.WithLabelValues(backend, status).Inc()
	c.backendRequestDuration.WithLabelValues(backend).Observe(duration.Seconds())
}

// =============================================================================
// 🗄️ 存储指标记录
// =============================================================================

// RecordStoreOp 记录历史存储操作
func (c *Collector) RecordStoreOp(store, operation string, duration time.Duration, err error) {
	c.storeOpDuration.WithLabelValues(store, operation).Observe(duration.Seconds())
	if err != nil {
		c.storeErrors.WithLabelValues(store, operation).Inc()
	}
}
