// Package usecase holds the instrumentation every application use case shares:
// one span, one RED sample and one use_case_done log line per invocation.
package usecase

import (
	"context"
	"errors"
	"time"

	domoutbox "github.com/Zhima-Mochi/sweetshop/internal/domain/outbox"
	"github.com/Zhima-Mochi/sweetshop/internal/observability"
	"github.com/Zhima-Mochi/sweetshop/internal/observability/logctx"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	spanPrefix     = "UC."
	publishPeer    = "outbox"
	publishTimeout = 300 * time.Millisecond
)

// Instruments are resolved once per service from an Observability provider.
type Instruments struct {
	log          observability.Logger
	tracer       observability.Tracer
	reqCounter   observability.Counter   // usecase_requests_total{use_case,outcome}
	durHistogram observability.Histogram // usecase_duration_seconds{use_case}
	extCounter   observability.Counter   // external_requests_total{peer,endpoint,outcome}
	extHistogram observability.Histogram // external_request_duration_seconds{peer,endpoint}
	classify     func(error) string
}

// NewInstruments resolves the metric instruments. classify turns a returned error
// into the status text of the closing log line; nil falls back to Status.
func NewInstruments(tel observability.Observability, service string, classify func(error) string) Instruments {
	if classify == nil {
		classify = Status
	}
	if tel == nil {
		tel = observability.Nop()
	}
	m := tel.Metrics()
	return Instruments{
		log:          tel.Logger().With(observability.F("service", service)),
		tracer:       tel.Tracer(),
		reqCounter:   m.Counter(observability.MUsecaseRequests),
		durHistogram: m.Histogram(observability.MUsecaseDuration),
		extCounter:   m.Counter(observability.MExternalRequests),
		extHistogram: m.Histogram(observability.MExternalRequestDuration),
		classify:     classify,
	}
}

func (in Instruments) Logger() observability.Logger { return in.log }

// Scope tracks one use case invocation until End.
type Scope struct {
	in      Instruments
	useCase string
	span    trace.Span
	ctx     context.Context
	start   time.Time
	logger  observability.Logger
	status  string
	fields  []observability.Field
}

// Begin starts the span and binds use_case plus fields to the request logger.
func (in Instruments) Begin(ctx context.Context, useCase, spanName string, fields ...observability.Field) (context.Context, *Scope) {
	attrs := make([]attribute.KeyValue, 0, len(fields)+1)
	attrs = append(attrs, attribute.String("use_case", useCase))
	for _, f := range fields {
		if s, ok := f.Value.(string); ok {
			attrs = append(attrs, attribute.String(f.Key, s))
		}
	}
	ctx, span := in.tracer.Start(ctx, spanPrefix+spanName, attrs...)

	logger := logctx.FromOr(ctx, in.log).With(observability.F("use_case", useCase))
	if len(fields) > 0 {
		logger = logger.With(fields...)
	}
	return logctx.With(ctx, logger), &Scope{
		in:      in,
		useCase: useCase,
		span:    span,
		ctx:     ctx,
		start:   time.Now(),
		logger:  logger,
	}
}

func (s *Scope) Logger() observability.Logger { return s.logger }

// SetStatus overrides the status text derived from the returned error.
func (s *Scope) SetStatus(status string) { s.status = status }

// Note adds a field to the closing log line.
func (s *Scope) Note(key string, value any) {
	s.fields = append(s.fields, observability.F(key, value))
}

func (s *Scope) Event(name string, attrs ...attribute.KeyValue) {
	if s.span != nil {
		s.span.AddEvent(name, trace.WithAttributes(attrs...))
	}
}

// End records span status, RED metrics and the use_case_done line. Call it in a defer with the named error.
func (s *Scope) End(err error) {
	outcome, statusText := "success", s.status
	if err != nil {
		outcome = "error"
		if statusText == "" {
			statusText = s.in.classify(err)
		}
	} else if statusText == "" {
		statusText = "OK"
	}

	if s.span != nil {
		if err != nil {
			s.span.RecordError(err)
			s.span.SetStatus(codes.Error, statusText)
		} else {
			s.span.SetStatus(codes.Ok, statusText)
		}
		s.span.End()
	}

	latency := time.Since(s.start).Seconds()
	s.in.reqCounter.Add(1,
		observability.L("use_case", s.useCase),
		observability.L("outcome", outcome),
	)
	s.in.durHistogram.Observe(latency,
		observability.L("use_case", s.useCase),
	)

	fields := []observability.Field{
		observability.F("outcome", outcome),
		observability.F("status", statusText),
		observability.F("latency_seconds", latency),
	}
	if sc := trace.SpanContextFromContext(s.ctx); sc.IsValid() {
		fields = append(fields,
			observability.F("trace_id", sc.TraceID().String()),
			observability.F("span_id", sc.SpanID().String()),
		)
	}
	fields = append(fields, s.fields...)
	if err != nil {
		fields = append(fields, observability.F("error", err.Error()))
	}
	s.logger.Info("use_case_done", fields...)
}

// Publish enqueues e with a short timeout and records it as an external call.
// Failures are returned for logging only; callers never undo committed work.
func (in Instruments) Publish(ctx context.Context, pub domoutbox.Publisher, e domoutbox.Event) error {
	if pub == nil || e == nil {
		return nil
	}

	pubCtx, cancel := context.WithTimeout(ctx, publishTimeout)
	start := time.Now()
	err := pub.Publish(pubCtx, e)
	outcome := "success"
	if err != nil {
		outcome = "error"
	} else if pubCtx.Err() != nil {
		outcome = "canceled"
		err = pubCtx.Err()
	}
	cancel()

	in.extCounter.Add(1,
		observability.L("peer", publishPeer),
		observability.L("endpoint", e.EventName()),
		observability.L("outcome", outcome),
	)
	in.extHistogram.Observe(time.Since(start).Seconds(),
		observability.L("peer", publishPeer),
		observability.L("endpoint", e.EventName()),
	)
	return err
}

// External times a call to a third party under the external_* metrics.
func (in Instruments) External(peer, endpoint string, call func() error) error {
	start := time.Now()
	err := call()
	outcome := "success"
	if err != nil {
		outcome = "error"
	}
	in.extCounter.Add(1,
		observability.L("peer", peer),
		observability.L("endpoint", endpoint),
		observability.L("outcome", outcome),
	)
	in.extHistogram.Observe(time.Since(start).Seconds(),
		observability.L("peer", peer),
		observability.L("endpoint", endpoint),
	)
	return err
}

// Status is the fallback classification for errors no service recognises.
func Status(err error) string {
	switch {
	case err == nil:
		return "OK"
	case errors.Is(err, context.Canceled):
		return "CONTEXT_CANCELED"
	case errors.Is(err, context.DeadlineExceeded):
		return "DEADLINE_EXCEEDED"
	default:
		return "INTERNAL"
	}
}
