package observer

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	luna "github.com/lunasparkai/luna"
)

// ObservedGenerator wraps a generation path with a span per turn and
// turn count/duration metrics. The path label distinguishes text from
// vision.
type ObservedGenerator struct {
	inner luna.Generator
	inst  *Instruments
	path  string
}

// WrapGenerator returns an instrumented generation path.
func WrapGenerator(inner luna.Generator, inst *Instruments, path string) *ObservedGenerator {
	return &ObservedGenerator{inner: inner, inst: inst, path: path}
}

func (o *ObservedGenerator) Run(ctx context.Context) error {
	ctx, span := o.inst.Tracer.Start(ctx, "turn.generate", trace.WithAttributes(
		AttrTurnPath.String(o.path),
	))
	defer span.End()
	start := time.Now()

	err := o.inner.Run(ctx)

	durationMs := float64(time.Since(start).Milliseconds())
	status := "ok"
	if err != nil {
		status = "error"
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.SetAttributes(AttrTurnStatus.String(status))

	o.inst.Turns.Add(ctx, 1, metric.WithAttributes(
		AttrTurnPath.String(o.path),
		attribute.String("status", status),
	))
	o.inst.TurnDuration.Record(ctx, durationMs, metric.WithAttributes(
		AttrTurnPath.String(o.path),
	))

	return err
}
