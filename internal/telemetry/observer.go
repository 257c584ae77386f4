package telemetry

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/BaSui01/tailorflow/workflow"
)

const instrumentationName = "github.com/BaSui01/tailorflow/workflow"

// Observer exports engine events as OTel metrics. It complements the
// Prometheus collector when an OTLP pipeline is configured.
type Observer struct {
	phases      metric.Int64Counter
	phaseTiming metric.Float64Histogram
	routes      metric.Int64Counter
	runs        metric.Int64Counter
	runTiming   metric.Float64Histogram
}

var _ workflow.Observer = (*Observer)(nil)

// NewObserver creates instruments on mp. A nil mp uses the global provider.
func NewObserver(mp metric.MeterProvider) (*Observer, error) {
	if mp == nil {
		mp = otel.GetMeterProvider()
	}
	meter := mp.Meter(instrumentationName)

	o := &Observer{}
	var err error
	if o.phases, err = meter.Int64Counter("workflow.phase.executions",
		metric.WithDescription("Phase executions by outcome")); err != nil {
		return nil, fmt.Errorf("create phase counter: %w", err)
	}
	if o.phaseTiming, err = meter.Float64Histogram("workflow.phase.duration",
		metric.WithDescription("Phase execution duration"), metric.WithUnit("s")); err != nil {
		return nil, fmt.Errorf("create phase histogram: %w", err)
	}
	if o.routes, err = meter.Int64Counter("workflow.routes",
		metric.WithDescription("Routing decisions")); err != nil {
		return nil, fmt.Errorf("create route counter: %w", err)
	}
	if o.runs, err = meter.Int64Counter("workflow.runs",
		metric.WithDescription("Finished runs by status")); err != nil {
		return nil, fmt.Errorf("create run counter: %w", err)
	}
	if o.runTiming, err = meter.Float64Histogram("workflow.run.duration",
		metric.WithDescription("Run duration"), metric.WithUnit("s")); err != nil {
		return nil, fmt.Errorf("create run histogram: %w", err)
	}
	return o, nil
}

// PhaseCompleted implements workflow.Observer.
func (o *Observer) PhaseCompleted(graph string, phase workflow.PhaseID, kind workflow.NodeKind, outcome workflow.Outcome, elapsed time.Duration) {
	ctx := context.Background()
	attrs := metric.WithAttributes(
		attribute.String("workflow.graph", graph),
		attribute.String("workflow.phase", string(phase)),
		attribute.String("workflow.node_kind", string(kind)),
		attribute.String("workflow.outcome", outcome.String()),
	)
	o.phases.Add(ctx, 1, attrs)
	o.phaseTiming.Record(ctx, elapsed.Seconds(), attrs)
}

// Routed implements workflow.Observer.
func (o *Observer) Routed(graph string, from, to workflow.PhaseID) {
	o.routes.Add(context.Background(), 1, metric.WithAttributes(
		attribute.String("workflow.graph", graph),
		attribute.String("workflow.from", string(from)),
		attribute.String("workflow.to", string(to)),
	))
}

// RunCompleted implements workflow.Observer.
func (o *Observer) RunCompleted(graph string, status workflow.ExecutionStatus, elapsed time.Duration) {
	ctx := context.Background()
	attrs := metric.WithAttributes(
		attribute.String("workflow.graph", graph),
		attribute.String("workflow.status", string(status)),
	)
	o.runs.Add(ctx, 1, attrs)
	o.runTiming.Record(ctx, elapsed.Seconds(), attrs)
}
