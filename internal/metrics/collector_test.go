package metrics

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"

	"github.com/BaSui01/guardflow/validation"
	"github.com/BaSui01/guardflow/validator"
)

var collectorNamespaceSeq uint64

func nextTestNamespace() string {
	seq := atomic.AddUint64(&collectorNamespaceSeq, 1)
	return fmt.Sprintf("test_%d", seq)
}

// =============================================================================
// 🧪 Collector 测试
// =============================================================================

func TestNewCollector(t *testing.T) {
	collector := NewCollector(nextTestNamespace(), zap.NewNop())

	assert.NotNil(t, collector)
	assert.NotNil(t, collector.sessionsTotal)
	assert.NotNil(t, collector.turnsTotal)
	assert.NotNil(t, collector.validatorOutcomes)
	assert.NotNil(t, collector.backendRequestsTotal)
}

func TestCollector_NilLogger(t *testing.T) {
	assert.NotPanics(t, func() { NewCollector(nextTestNamespace(), nil) })
}

func TestCollector_RecordSession(t *testing.T) {
	collector := NewCollector(nextTestNamespace(), zap.NewNop())

	collector.RecordSession("passed", 200*time.Millisecond)
	collector.RecordSession("passed", 100*time.Millisecond)
	collector.RecordSession("partial", time.Second)

	assert.Equal(t, 2.0, testutil.ToFloat64(collector.sessionsTotal.WithLabelValues("passed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(collector.sessionsTotal.WithLabelValues("partial")))
	assert.Equal(t, 2, testutil.CollectAndCount(collector.sessionDuration))
}

func TestCollector_RecordTurnAndReask(t *testing.T) {
	collector := NewCollector(nextTestNamespace(), zap.NewNop())

	collector.RecordTurn("fail")
	collector.RecordReask()
	collector.RecordTurn("pass")

	assert.Equal(t, 1.0, testutil.ToFloat64(collector.turnsTotal.WithLabelValues("fail")))
	assert.Equal(t, 1.0, testutil.ToFloat64(collector.turnsTotal.WithLabelValues("pass")))
	assert.Equal(t, 1.0, testutil.ToFloat64(collector.reasksTotal))
}

func TestCollector_ImplementsObserver(t *testing.T) {
	collector := NewCollector(nextTestNamespace(), zap.NewNop())
	var obs validation.Observer = collector

	obs.ObserveValidator(validator.IDTwoWords, validator.ActionReask)
	obs.ObserveValidator(validator.IDTwoWords, validator.ActionPass)
	obs.ObserveValidator(validator.IDTwoWords, validator.ActionPass)

	assert.Equal(t, 2.0, testutil.ToFloat64(collector.validatorOutcomes.WithLabelValues(validator.IDTwoWords, "pass")))
	assert.Equal(t, 1.0, testutil.ToFloat64(collector.validatorOutcomes.WithLabelValues(validator.IDTwoWords, "reask")))
}

func TestCollector_RecordBackendRequest(t *testing.T) {
	collector := NewCollector(nextTestNamespace(), zap.NewNop())

	collector.RecordBackendRequest("openai", "success", 500*time.Millisecond)
	collector.RecordBackendRequest("openai", "error", 50*time.Millisecond)

	assert.Equal(t, 2, testutil.CollectAndCount(collector.backendRequestsTotal))
	assert.Equal(t, 1, testutil.CollectAndCount(collector.backendRequestDuration))
}

func TestCollector_RecordStoreOp(t *testing.T) {
	collector := NewCollector(nextTestNamespace(), zap.NewNop())

	collector.RecordStoreOp("redis", "save", 2*time.Millisecond, nil)
	collector.RecordStoreOp("redis", "save", 3*time.Millisecond, errors.New("down"))

	assert.Equal(t, 1, testutil.CollectAndCount(collector.storeOpDuration))
	assert.Equal(t, 1.0, testutil.ToFloat64(collector.storeErrors.WithLabelValues("redis", "save")))
}

func TestCollector_ConcurrentRecording(t *testing.T) {
	collector := NewCollector(nextTestNamespace(), zap.NewNop())

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			collector.RecordTurn("pass")
			collector.RecordBackendRequest("anthropic", "success", 100*time.Millisecond)
			collector.ObserveValidator(validator.IDTwoWords, validator.ActionPass)
		}()
	}
	wg.Wait()

	assert.Equal(t, 10.0, testutil.ToFloat64(collector.turnsTotal.WithLabelValues("pass")))
	assert.Equal(t, 10.0, testutil.ToFloat64(collector.backendRequestsTotal.WithLabelValues("anthropic", "success")))
}
