package gateway

import (
	"context"
	"time"

	"github.com/n2kfchd42b-glitch/researchflow-sub002/observe"
)

type instrumented struct {
	next     Gateway
	provider string
	metrics  observe.Metrics
	logger   observe.Logger
}

// Instrumented wraps next so every call records gateway metrics and one log line.
// Unparseable structured output is logged at debug with the text length only.
func Instrumented(next Gateway, provider string, metrics observe.Metrics, logger observe.Logger) Gateway {
	if metrics == nil {
		metrics = observe.NopMetrics()
	}
	if logger == nil {
		logger = observe.NopLogger()
	}
	return &instrumented{next: next, provider: provider, metrics: metrics, logger: logger}
}

func (g *instrumented) Call(ctx context.Context, req Request) (Response, error) {
	start := time.Now()
	resp, err := g.next.Call(ctx, req)
	duration := time.Since(start)

	g.metrics.RecordGateway(ctx, observe.GatewayCall{
		Provider:    g.provider,
		Duration:    duration,
		InputUnits:  resp.InputUnits,
		OutputUnits: resp.OutputUnits,
		Err:         err,
	})

	fields := []observe.Field{
		{Key: "provider", Value: g.provider},
		{Key: "duration_ms", Value: float64(duration.Milliseconds())},
	}
	if err != nil {
		fields = append(fields, observe.Field{Key: "error", Value: err.Error()})
		g.logger.Error(ctx, "gateway call failed", fields...)
		return resp, err
	}

	fields = append(fields,
		observe.Field{Key: "input_units", Value: resp.InputUnits},
		observe.Field{Key: "output_units", Value: resp.OutputUnits},
	)
	if req.ExpectStructured && !resp.HasParsed {
		g.logger.Debug(ctx, "structured output did not parse", observe.Field{Key: "text_length", Value: len(resp.Text)})
	}
	g.logger.Info(ctx, "gateway call completed", fields...)
	return resp, nil
}
