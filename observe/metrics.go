package observe

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// CacheOutcome classifies one cache interaction.
type CacheOutcome string

const (
	CacheHit            CacheOutcome = "hit"
	CacheMiss           CacheOutcome = "miss"
	CacheStale          CacheOutcome = "stale"
	CacheWrite          CacheOutcome = "write"
	CachePersistFailure CacheOutcome = "persist_failure"
)

// GatewayCall describes one generative service call.
type GatewayCall struct {
	Provider    string
	Duration    time.Duration
	InputUnits  int
	OutputUnits int
	Err         error
}

// Metrics records module, cache and gateway metrics.
//
// Contract:
// - Concurrency: implementations must be safe for concurrent use.
// - Errors: implementations must not panic.
type Metrics interface {
	// RecordRun records one module run with duration and error status.
	RecordRun(ctx context.Context, meta ModuleMeta, duration time.Duration, err error)

	// RecordCache records one cache interaction for a module.
	RecordCache(ctx context.Context, moduleID string, outcome CacheOutcome)

	// RecordGateway records one generative service call.
	RecordGateway(ctx context.Context, call GatewayCall)
}

type metricsImpl struct {
	runTotal     metric.Int64Counter
	runErrors    metric.Int64Counter
	runDuration  metric.Float64Histogram
	cacheEvents  metric.Int64Counter
	gwCalls      metric.Int64Counter
	gwErrors     metric.Int64Counter
	gwDuration   metric.Float64Histogram
	inputTokens  metric.Int64Counter
	outputTokens metric.Int64Counter
}

// NewMetrics creates the instruments on meter.
func NewMetrics(meter metric.Meter) (Metrics, error) {
	m := &metricsImpl{}
	var err error

	if m.runTotal, err = meter.Int64Counter("module.run.total",
		metric.WithDescription("Total number of module runs"),
		metric.WithUnit("{run}")); err != nil {
		return nil, err
	}
	if m.runErrors, err = meter.Int64Counter("module.run.errors",
		metric.WithDescription("Total number of failed module runs"),
		metric.WithUnit("{error}")); err != nil {
		return nil, err
	}
	if m.runDuration, err = meter.Float64Histogram("module.run.duration_ms",
		metric.WithDescription("Module run duration in milliseconds"),
		metric.WithUnit("ms")); err != nil {
		return nil, err
	}
	if m.cacheEvents, err = meter.Int64Counter("cache.events",
		metric.WithDescription("Cache interactions by outcome"),
		metric.WithUnit("{event}")); err != nil {
		return nil, err
	}
	if m.gwCalls, err = meter.Int64Counter("gateway.calls",
		metric.WithDescription("Total number of generative service calls"),
		metric.WithUnit("{call}")); err != nil {
		return nil, err
	}
	if m.gwErrors, err = meter.Int64Counter("gateway.errors",
		metric.WithDescription("Total number of failed generative service calls"),
		metric.WithUnit("{error}")); err != nil {
		return nil, err
	}
	if m.gwDuration, err = meter.Float64Histogram("gateway.duration_ms",
		metric.WithDescription("Generative service call duration in milliseconds"),
		metric.WithUnit("ms")); err != nil {
		return nil, err
	}
	if m.inputTokens, err = meter.Int64Counter("gateway.tokens.input",
		metric.WithDescription("Input units reported by the generative service"),
		metric.WithUnit("{token}")); err != nil {
		return nil, err
	}
	if m.outputTokens, err = meter.Int64Counter("gateway.tokens.output",
		metric.WithDescription("Output units reported by the generative service"),
		metric.WithUnit("{token}")); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *metricsImpl) RecordRun(ctx context.Context, meta ModuleMeta, duration time.Duration, err error) {
	opt := metric.WithAttributes(
		attribute.String("module.id", meta.ID),
		attribute.Bool("module.cached", meta.Cached),
	)
	m.runTotal.Add(ctx, 1, opt)
	if err != nil {
		m.runErrors.Add(ctx, 1, opt)
	}
	m.runDuration.Record(ctx, float64(duration.Milliseconds()), opt)
}

func (m *metricsImpl) RecordCache(ctx context.Context, moduleID string, outcome CacheOutcome) {
	m.cacheEvents.Add(ctx, 1, metric.WithAttributes(
		attribute.String("module.id", moduleID),
		attribute.String("cache.outcome", string(outcome)),
	))
}

func (m *metricsImpl) RecordGateway(ctx context.Context, call GatewayCall) {
	opt := metric.WithAttributes(attribute.String("gateway.provider", call.Provider))
	m.gwCalls.Add(ctx, 1, opt)
	if call.Err != nil {
		m.gwErrors.Add(ctx, 1, opt)
	}
	m.gwDuration.Record(ctx, float64(call.Duration.Milliseconds()), opt)
	if call.InputUnits > 0 {
		m.inputTokens.Add(ctx, int64(call.InputUnits), opt)
	}
	if call.OutputUnits > 0 {
		m.outputTokens.Add(ctx, int64(call.OutputUnits), opt)
	}
}

type noopMetrics struct{}

// NopMetrics returns a Metrics that records nothing.
func NopMetrics() Metrics { return noopMetrics{} }

func (noopMetrics) RecordRun(context.Context, ModuleMeta, time.Duration, error) {}
func (noopMetrics) RecordCache(context.Context, string, CacheOutcome)           {}
func (noopMetrics) RecordGateway(context.Context, GatewayCall)                  {}
