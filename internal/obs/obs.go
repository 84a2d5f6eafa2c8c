// Package obs implements the observability contract: named
// spans with the documented attributes, and the six named metrics. It
// threads one explicit Ctx through the pipeline rather than relying on
// global tracer/meter singletons, and degrades to no-ops when OTEL/
// Prometheus wiring isn't configured.
package obs

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Ctx bundles everything a pipeline stage needs to record spans and
// metrics. A Ctx returned by New is fully functional and uses the
// global OTEL provider (a no-op unless the caller installs one) plus an
// in-process Metrics collector; a zero-value Ctx has no tracer.
type Ctx struct {
	Pipeline string
	tracer   trace.Tracer
	Metrics  *Metrics
}

// New builds an Ctx for the given pipeline name ("classifier",
// "acquire", "yellow_screen"). The OTEL tracer is named
// "dc-pipeline/<pipeline>"; the service name is whatever the OTEL SDK
// configured by the caller's main applies (e.g. OTEL_SERVICE_NAME).
func New(pipeline string) *Ctx {
	return &Ctx{
		Pipeline: pipeline,
		tracer:   otel.Tracer("dc-pipeline/" + pipeline),
		Metrics:  NewMetrics(),
	}
}

// SpanAttrs is the attribute set carried on every pipeline span.
type SpanAttrs struct {
	TargetID   string
	Strategy   string
	Bucket     string
	Bytes      int64
	DurationMS int64
	ErrorType  string
}

// StartSpan starts a span using the pipeline naming convention (e.g. "acquire.target",
// "http.download") and returns a finish function that stamps the given
// attributes and ends the span. Callers defer the returned func, then
// mutate attrs before the defer fires, e.g.:
//
//	ctx, done := o.StartSpan(ctx, "http.download")
//	defer func() { done(attrs) }()
func (o *Ctx) StartSpan(ctx context.Context, name string) (context.Context, func(SpanAttrs)) {
	start := time.Now()
	ctx, span := o.tracer.Start(ctx, name)
	return ctx, func(a SpanAttrs) {
		if a.DurationMS == 0 {
			a.DurationMS = time.Since(start).Milliseconds()
		}
		span.SetAttributes(
			attribute.String("pipeline", o.Pipeline),
			attribute.String("target_id", a.TargetID),
			attribute.String("strategy", a.Strategy),
			attribute.String("bucket", a.Bucket),
			attribute.Int64("bytes", a.Bytes),
			attribute.Int64("duration_ms", a.DurationMS),
		)
		if a.ErrorType != "" {
			span.SetAttributes(attribute.String("error_types", a.ErrorType))
		}
		span.End()
	}
}
