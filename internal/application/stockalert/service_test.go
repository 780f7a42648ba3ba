package stockalert_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Zhima-Mochi/sweetshop/internal/application/stockalert"
	appsweet "github.com/Zhima-Mochi/sweetshop/internal/application/sweet"
	domsweet "github.com/Zhima-Mochi/sweetshop/internal/domain/sweet"
	"github.com/Zhima-Mochi/sweetshop/internal/infrastructure/memory"
	"github.com/Zhima-Mochi/sweetshop/internal/infrastructure/outbox"
	"github.com/Zhima-Mochi/sweetshop/internal/infrastructure/stockalert/worker"
	"github.com/Zhima-Mochi/sweetshop/internal/observability"
)

type counter struct {
	mu     sync.Mutex
	totals map[string]float64
}

func (c *counter) Add(delta float64, labels ...observability.Label) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, l := range labels {
		c.totals[l.Key+"="+l.Value] += delta
	}
}

func (c *counter) get(key string) float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.totals[key]
}

type logLine struct {
	level, msg string
}

type recordingLogger struct {
	mu    *sync.Mutex
	lines *[]logLine
}

func (l recordingLogger) With(...observability.Field) observability.Logger { return l }
func (l recordingLogger) Debug(msg string, _ ...observability.Field)       { l.add("debug", msg) }
func (l recordingLogger) Info(msg string, _ ...observability.Field)        { l.add("info", msg) }
func (l recordingLogger) Warn(msg string, _ ...observability.Field)        { l.add("warn", msg) }
func (l recordingLogger) Error(msg string, _ ...observability.Field)       { l.add("error", msg) }

func (l recordingLogger) add(level, msg string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	*l.lines = append(*l.lines, logLine{level, msg})
}

func (l recordingLogger) has(level, msg string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, ln := range *l.lines {
		if ln.level == level && ln.msg == msg {
			return true
		}
	}
	return false
}

type telemetry struct {
	log      recordingLogger
	depleted *counter
}

func (t telemetry) Tracer() observability.Tracer   { return observability.NopTracer() }
func (t telemetry) Logger() observability.Logger   { return t.log }
func (t telemetry) Metrics() observability.Metrics { return t }

func (t telemetry) Counter(name observability.MetricKey) observability.Counter {
	if name == observability.MStockDepleted {
		return t.depleted
	}
	return observability.NopCounter()
}

func (t telemetry) Histogram(observability.MetricKey) observability.Histogram {
	return observability.NopHistogram()
}

func newTelemetry() telemetry {
	return telemetry{
		log:      recordingLogger{mu: &sync.Mutex{}, lines: &[]logLine{}},
		depleted: &counter{totals: map[string]float64{}},
	}
}

func TestOnStockDepleted(t *testing.T) {
	tel := newTelemetry()
	svc := stockalert.NewService(tel)

	require.NoError(t, svc.OnStockDepleted(context.Background(), domsweet.StockDepletedEvent{SweetID: "1", Name: "Ladoo", Category: "Ladoo"}))
	require.NoError(t, svc.OnStockDepleted(context.Background(), domsweet.StockDepletedEvent{SweetID: "2", Name: "Mystery"}))

	assert.Equal(t, 1.0, tel.depleted.get("category=Ladoo"))
	assert.Equal(t, 1.0, tel.depleted.get("category=unknown"))
	assert.True(t, tel.log.has("warn", "sweet_out_of_stock"))
	assert.True(t, tel.log.has("info", "use_case_done"))
}

func TestOnRestocked(t *testing.T) {
	tel := newTelemetry()
	svc := stockalert.NewService(tel)

	require.NoError(t, svc.OnRestocked(context.Background(), domsweet.RestockedEvent{
		SweetID: "1", Added: decimal.NewFromInt(3), Quantity: decimal.NewFromInt(5),
	}))
	assert.False(t, tel.log.has("info", "sweet_back_in_stock"))

	require.NoError(t, svc.OnRestocked(context.Background(), domsweet.RestockedEvent{
		SweetID: "1", Added: decimal.NewFromInt(3), Quantity: decimal.NewFromInt(3),
	}))
	assert.True(t, tel.log.has("info", "sweet_back_in_stock"))
}

func TestWorkerCountsDepletionFromLedger(t *testing.T) {
	ctx := context.Background()
	tel := newTelemetry()
	bus := outbox.NewBus(observability.Nop())
	worker.New(bus, stockalert.NewService(tel)).Start()
	bus.Start(ctx)
	defer bus.Stop(ctx)

	ledger := appsweet.NewLedger(memory.NewSweetRepository(), bus, observability.Nop())
	s, err := ledger.Create(ctx, appsweet.CreateInput{
		Name: "Gulab Jamun", Category: "Syrup", Price: decimal.NewFromInt(2), Quantity: decimal.NewFromInt(2),
	})
	require.NoError(t, err)

	two := decimal.NewFromInt(2)
	_, err = ledger.Purchase(ctx, appsweet.PurchaseInput{ID: s.ID, Quantity: &two})
	require.NoError(t, err)

	assert.Eventually(t, func() bool { return tel.depleted.get("category=Syrup") == 1 }, time.Second, 5*time.Millisecond)
}
