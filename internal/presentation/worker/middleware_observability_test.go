package workerpresentation_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace"

	domoutbox "github.com/Zhima-Mochi/sweetshop/internal/domain/outbox"
	"github.com/Zhima-Mochi/sweetshop/internal/observability"
	"github.com/Zhima-Mochi/sweetshop/internal/observability/logctx"
	workerpresentation "github.com/Zhima-Mochi/sweetshop/internal/presentation/worker"
)

type fieldLogger struct {
	mu     *sync.Mutex
	fields map[string]any
}

func (l fieldLogger) With(fields ...observability.Field) observability.Logger {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, f := range fields {
		l.fields[f.Key] = f.Value
	}
	return l
}
func (fieldLogger) Debug(string, ...observability.Field) {}
func (fieldLogger) Info(string, ...observability.Field)  {}
func (fieldLogger) Warn(string, ...observability.Field)  {}
func (fieldLogger) Error(string, ...observability.Field) {}

type restocked struct{}

func (restocked) EventName() string   { return "sweet.restocked" }
func (restocked) AggregateID() string { return "sweet-1" }

func TestWithEventContext(t *testing.T) {
	base := fieldLogger{mu: &sync.Mutex{}, fields: map[string]any{}}
	ctx := workerpresentation.WithEventContext(context.Background(), base, observability.Nop(),
		trace.TraceID{}, trace.SpanID{}, map[string]string{"event": "sweet.restocked", "event_id": "evt-1", "empty": ""})

	require.NotNil(t, logctx.From(ctx))
	assert.Equal(t, "evt-1", base.fields["event_id"])
	assert.Equal(t, "sweet.restocked", base.fields["event"])
	assert.NotContains(t, base.fields, "trace_id", "invalid trace ids are skipped")
	assert.NotContains(t, base.fields, "empty")
}

func TestEventMiddleware(t *testing.T) {
	var sawLogger bool
	wantErr := errors.New("handler failed")
	h := workerpresentation.EventMiddleware(observability.Nop())(func(ctx context.Context, e domoutbox.Event) error {
		sawLogger = logctx.From(ctx) != nil
		return wantErr
	})

	err := h(context.Background(), restocked{})
	assert.ErrorIs(t, err, wantErr)
	assert.True(t, sawLogger)
}
