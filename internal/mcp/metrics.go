package mcp

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"

	"github.com/Madhan-mohan14/Self-Improving-Finance-Agent/internal/insights"
	"github.com/Madhan-mohan14/Self-Improving-Finance-Agent/internal/memory"
	"github.com/Madhan-mohan14/Self-Improving-Finance-Agent/internal/orchestrator"
)

const instrumentationName = "finagent/mcp"

// Tool call outcomes recorded on finagent.mcp.tool.calls.
const (
	outcomeOK    = "ok"
	outcomeError = "error"
)

// toolDurationBuckets spans memory reads (milliseconds) up to a full agent
// run, which makes several rate-limited LLM and search calls.
var toolDurationBuckets = []float64{0.005, 0.025, 0.1, 0.5, 2, 5, 15, 30, 60, 120, 300}

// Metrics records MCP tool calls.
type Metrics struct {
	logger   *zap.Logger
	calls    metric.Int64Counter
	duration metric.Float64Histogram
	failures metric.Int64Counter
	inFlight metric.Int64UpDownCounter
}

// NewMetrics creates instruments on the global meter provider.
func NewMetrics(logger *zap.Logger) *Metrics {
	return newMetrics(otel.Meter(instrumentationName), logger)
}

func newMetrics(meter metric.Meter, logger *zap.Logger) *Metrics {
	if logger == nil {
		logger = zap.NewNop()
	}
	m := &Metrics{logger: logger}

	var err error
	// Calls by tool and outcome
	if m.calls, err = meter.Int64Counter("finagent.mcp.tool.calls",
		metric.WithDescription("MCP tool calls by tool and outcome"),
		metric.WithUnit("{call}")); err != nil {
		m.warn("finagent.mcp.tool.calls", err)
	}
	// Latency, including the agent run for agent_run
	if m.duration, err = meter.Float64Histogram("finagent.mcp.tool.duration",
		metric.WithDescription("MCP tool call latency"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(toolDurationBuckets...)); err != nil {
		m.warn("finagent.mcp.tool.duration", err)
	}
	// Failures by tool and bounded reason
	if m.failures, err = meter.Int64Counter("finagent.mcp.tool.failures",
		metric.WithDescription("Failed MCP tool calls by reason"),
		metric.WithUnit("{call}")); err != nil {
		m.warn("finagent.mcp.tool.failures", err)
	}
	// Calls in progress; agent_run calls queue behind the run lock
	if m.inFlight, err = meter.Int64UpDownCounter("finagent.mcp.tool.in_flight",
		metric.WithDescription("MCP tool calls in progress"),
		metric.WithUnit("{call}")); err != nil {
		m.warn("finagent.mcp.tool.in_flight", err)
	}
	return m
}

func (m *Metrics) warn(instrument string, err error) {
	m.logger.Warn("failed to create instrument", zap.String("instrument", instrument), zap.Error(err))
}

// Begin marks a call to tool as in progress and returns the function that
// records its completion.
func (m *Metrics) Begin(ctx context.Context, tool string) func(err error) {
	toolAttr := attribute.String("tool", tool)
	if m.inFlight != nil {
		m.inFlight.Add(ctx, 1, metric.WithAttributes(toolAttr))
	}
	start := time.Now()

	return func(err error) {
		if m.inFlight != nil {
			m.inFlight.Add(ctx, -1, metric.WithAttributes(toolAttr))
		}
		outcome := outcomeOK
		if err != nil {
			outcome = outcomeError
		}
		if m.calls != nil {
			m.calls.Add(ctx, 1, metric.WithAttributes(toolAttr, attribute.String("outcome", outcome)))
		}
		if m.duration != nil {
			m.duration.Record(ctx, time.Since(start).Seconds(), metric.WithAttributes(toolAttr))
		}
		if err != nil && m.failures != nil {
			m.failures.Add(ctx, 1, metric.WithAttributes(toolAttr, attribute.String("reason", failureReason(err))))
		}
	}
}

// failureReason maps a tool error to a bounded label.
func failureReason(err error) string {
	var execErr *orchestrator.ExecutionError
	switch {
	case err == nil:
		return ""
	case errors.Is(err, context.Canceled):
		return "canceled"
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.As(err, &execErr):
		return "agent_failed"
	case errors.Is(err, memory.ErrStorageCorrupt):
		return "memory_corrupt"
	case errors.Is(err, memory.ErrStorageIO):
		return "memory_io"
	case errors.Is(err, memory.ErrStorageLocked):
		return "memory_locked"
	case errors.Is(err, errInvalidInput),
		errors.Is(err, orchestrator.ErrEmptyQuery),
		errors.Is(err, insights.ErrUnknownFormat):
		return "invalid_input"
	default:
		return "internal"
	}
}
