// Package observer provides OTEL-based instrumentation for tool
// executions and generation turns.
//
// It uses whatever tracer and meter providers are registered globally;
// with none registered everything is a no-op, so wrapping is always
// safe. Deployments export by installing real providers before
// NewInstruments is called.
package observer

import (
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

const scopeName = "github.com/lunasparkai/luna/observer"

// Instruments holds the instruments shared by the observer wrappers.
type Instruments struct {
	Tracer trace.Tracer
	Meter  metric.Meter

	// Counters
	ToolExecutions metric.Int64Counter
	Turns          metric.Int64Counter

	// Histograms
	ToolDuration metric.Float64Histogram
	TurnDuration metric.Float64Histogram
}

// NewInstruments creates the instruments against the global providers.
func NewInstruments() (*Instruments, error) {
	tracer := otel.Tracer(scopeName)
	meter := otel.Meter(scopeName)

	toolExecutions, err := meter.Int64Counter("tool.executions",
		metric.WithDescription("Tool execution count"),
		metric.WithUnit("{execution}"))
	if err != nil {
		return nil, err
	}

	turns, err := meter.Int64Counter("turn.generations",
		metric.WithDescription("Generation turn count"),
		metric.WithUnit("{turn}"))
	if err != nil {
		return nil, err
	}

	toolDuration, err := meter.Float64Histogram("tool.duration",
		metric.WithDescription("Tool execution duration"),
		metric.WithUnit("ms"))
	if err != nil {
		return nil, err
	}

	turnDuration, err := meter.Float64Histogram("turn.duration",
		metric.WithDescription("Generation turn duration"),
		metric.WithUnit("ms"))
	if err != nil {
		return nil, err
	}

	return &Instruments{
		Tracer:         tracer,
		Meter:          meter,
		ToolExecutions: toolExecutions,
		Turns:          turns,
		ToolDuration:   toolDuration,
		TurnDuration:   turnDuration,
	}, nil
}
