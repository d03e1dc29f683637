package runner

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/BaSui01/guardflow/history"
	"github.com/BaSui01/guardflow/internal/metrics"
)

const instrumentationName = "github.com/BaSui01/guardflow/runner"

// instruments fans session events out to OpenTelemetry and, when configured,
// the Prometheus collector.
type instruments struct {
	tracer          trace.Tracer
	turns           metric.Int64Counter
	reasks          metric.Int64Counter
	backendDuration metric.Float64Histogram
	collector       *metrics.Collector
}

func newInstruments(collector *metrics.Collector, logger *zap.Logger) *instruments {
	in := &instruments{
		tracer:    otel.Tracer(instrumentationName),
		collector: collector,
	}
	if err := in.initMeter(otel.Meter(instrumentationName)); err != nil {
		logger.Warn("otel instruments unavailable, metrics disabled", zap.Error(err))
		_ = in.initMeter(noop.NewMeterProvider().Meter(instrumentationName))
	}
	return in
}

func (in *instruments) initMeter(meter metric.Meter) error {
	var err error
	in.turns, err = meter.Int64Counter("guardflow.turn.total",
		metric.WithDescription("Total number of turns"),
		metric.WithUnit("{turn}"))
	if err != nil {
		return err
	}
	in.reasks, err = meter.Int64Counter("guardflow.reask.total",
		metric.WithDescription("Total number of reasks"),
		metric.WithUnit("{reask}"))
	if err != nil {
		return err
	}
	in.backendDuration, err = meter.Float64Histogram("guardflow.backend.duration",
		metric.WithDescription("Backend call duration in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30))
	return err
}

func (in *instruments) startSession(ctx context.Context, callID string, numReasks int) trace.Span {
	_, span := in.tracer.Start(ctx, "guardflow.session",
		trace.WithAttributes(
			attribute.String("guardflow.call_id", callID),
			attribute.Int("guardflow.num_reasks", numReasks),
		))
	return span
}

func (in *instruments) endSession(span trace.Span, status history.Status, d time.Duration, err error) {
	span.SetAttributes(attribute.String("guardflow.status", string(status)))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
	if in.collector != nil {
		in.collector.RecordSession(string(status), d)
	}
}

func (in *instruments) startTurn(ctx context.Context, index int) (context.Context, trace.Span) {
	return in.tracer.Start(ctx, "guardflow.turn",
		trace.WithAttributes(attribute.Int("guardflow.turn", index)))
}

// recordTurn records outcome as pass, fail or error.
func (in *instruments) recordTurn(ctx context.Context, outcome string) {
	in.turns.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
	if in.collector != nil {
		in.collector.RecordTurn(outcome)
	}
}

func (in *instruments) recordReask(ctx context.Context) {
	in.reasks.Add(ctx, 1)
	if in.collector != nil {
		in.collector.RecordReask()
	}
}

func (in *instruments) recordBackend(ctx context.Context, backend string, d time.Duration, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	in.backendDuration.Record(ctx, d.Seconds(), metric.WithAttributes(
		attribute.String("backend", backend),
		attribute.String("status", status),
	))
	if in.collector != nil {
		in.collector.RecordBackendRequest(backend, status, d)
	}
}
