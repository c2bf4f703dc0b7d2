package runtime

import (
	"context"
	"time"

	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"

	"github.com/warriorguo/canvasflow/types"
)

const meterName = "github.com/warriorguo/canvasflow/runtime"

type metrics struct {
	workflows    metric.Int64Counter
	waits        metric.Int64Counter
	waitDuration metric.Float64Histogram
}

// newMetrics uses the global meter provider, a no-op unless the host installs one.
func newMetrics() *metrics {
	meter := otel.Meter(meterName)
	m := &metrics{}

	var err error
	if m.workflows, err = meter.Int64Counter("canvasflow.workflows",
		metric.WithDescription("executed workflows by type and final status")); err != nil {
		log.Warnf("failed to create workflow counter: %v", err)
		m.workflows = noop.Int64Counter{}
	}
	if m.waits, err = meter.Int64Counter("canvasflow.stage.waits",
		metric.WithDescription("settled stage waits by node role and outcome")); err != nil {
		log.Warnf("failed to create wait counter: %v", err)
		m.waits = noop.Int64Counter{}
	}
	if m.waitDuration, err = meter.Float64Histogram("canvasflow.stage.wait.duration",
		metric.WithDescription("time until a stage wait settled"),
		metric.WithUnit("s")); err != nil {
		log.Warnf("failed to create wait histogram: %v", err)
		m.waitDuration = noop.Float64Histogram{}
	}
	return m
}

func waitOutcome(err error) string {
	switch {
	case err == nil:
		return "resolved"
	case types.IsStageTimeout(err):
		return "timeout"
	default:
		return "rejected"
	}
}

func (m *metrics) waitDone(ctx context.Context, role string, err error, d time.Duration) {
	attrs := metric.WithAttributes(
		attribute.String("role", role),
		attribute.String("outcome", waitOutcome(err)),
	)
	m.waits.Add(ctx, 1, attrs)
	m.waitDuration.Record(ctx, d.Seconds(), attrs)
}

func (m *metrics) workflowDone(ctx context.Context, workflowType types.WorkflowType, status types.StatusType) {
	m.workflows.Add(ctx, 1, metric.WithAttributes(
		attribute.String("workflow_type", string(workflowType)),
		attribute.String("status", status.String()),
	))
}
