package workerpresentation

import (
	"context"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	domoutbox "github.com/Zhima-Mochi/sweetshop/internal/domain/outbox"
	"github.com/Zhima-Mochi/sweetshop/internal/observability"
	"github.com/Zhima-Mochi/sweetshop/internal/observability/logctx"
)

// WithEventContext injects a request-scoped logger for background/worker executions.
// Dynamic fields only: trace_id/span_id (if valid), event_id (generated if empty),
// plus caller-provided low-cardinality attributes (e.g. "event", "aggregate_id").
func WithEventContext(
	ctx context.Context,
	base observability.Logger,
	tel observability.Observability,
	traceID trace.TraceID,
	spanID trace.SpanID,
	attrs map[string]string,
) context.Context {
	if base == nil {
		base = tel.Logger()
	}
	if attrs == nil {
		attrs = make(map[string]string)
	}

	fields := make([]observability.Field, 0, len(attrs)+3)

	evtID := attrs["event_id"]
	if evtID == "" {
		evtID = uuid.NewString()
	}
	fields = append(fields, observability.F("event_id", evtID))

	if traceID.IsValid() {
		fields = append(fields, observability.F("trace_id", traceID.String()))
	}
	if spanID.IsValid() {
		fields = append(fields, observability.F("span_id", spanID.String()))
	}
	for k, v := range attrs {
		if k == "event_id" || v == "" {
			continue
		}
		fields = append(fields, observability.F(k, v))
	}

	return logctx.With(ctx, base.With(fields...))
}

// EventMiddleware opens one consumer span per handled event and binds the
// event-scoped logger, so worker use cases log with the same fields as HTTP ones.
func EventMiddleware(tel observability.Observability) domoutbox.Middleware {
	if tel == nil {
		tel = observability.Nop()
	}
	return func(next domoutbox.Handler) domoutbox.Handler {
		return func(ctx context.Context, e domoutbox.Event) error {
			name := e.EventName()
			aggregate := domoutbox.AggregateID(e)

			ctx, span := tel.Tracer().Start(ctx, "Event."+name,
				attribute.String("event", name),
				attribute.String("aggregate_id", aggregate),
			)
			defer span.End()

			sc := span.SpanContext()
			ctx = WithEventContext(ctx, logctx.From(ctx), tel, sc.TraceID(), sc.SpanID(), map[string]string{
				"event":        name,
				"aggregate_id": aggregate,
			})

			err := next(ctx, e)
			if err != nil {
				span.RecordError(err)
				span.SetStatus(codes.Error, err.Error())
			}
			return err
		}
	}
}
