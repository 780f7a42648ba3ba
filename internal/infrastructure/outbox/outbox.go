package outbox

import (
	"context"
	"errors"
	"runtime/debug"
	"sync"
	"time"

	domoutbox "github.com/Zhima-Mochi/sweetshop/internal/domain/outbox"
	"github.com/Zhima-Mochi/sweetshop/internal/observability"
	"github.com/Zhima-Mochi/sweetshop/internal/observability/logctx"
)

var ErrBusClosed = errors.New("outbox: bus closed")

const (
	componentOutbox       = "outbox"
	defaultQueueSize      = 1024
	defaultConcurrency    = 8
	defaultHandlerTimeout = 30 * time.Second
)

// Bus is an in-memory event bus with per-event handler fanout.
// It is not durable; events still queued when the process dies are lost.
type Bus struct {
	mu          sync.RWMutex
	subs        map[string][]domoutbox.Handler
	middlewares []domoutbox.Middleware

	// closeMu guards closed and the queue close; publishers hold it shared.
	closeMu sync.RWMutex
	closed  bool

	queue          chan domoutbox.Event
	done           chan struct{}
	startOnce      sync.Once
	stopOnce       sync.Once
	cancel         context.CancelFunc
	concurrency    int
	handlerTimeout time.Duration

	log      observability.Logger
	failures observability.Counter // event_handler_failed_total{event}
}

type Option func(*Bus)

func WithQueueSize(n int) Option {
	return func(b *Bus) {
		if n > 0 {
			b.queue = make(chan domoutbox.Event, n)
		}
	}
}

// WithConcurrency caps how many handlers of one event run at once.
func WithConcurrency(n int) Option {
	return func(b *Bus) {
		if n > 0 {
			b.concurrency = n
		}
	}
}

func WithHandlerTimeout(d time.Duration) Option {
	return func(b *Bus) {
		if d > 0 {
			b.handlerTimeout = d
		}
	}
}

// WithMiddleware wraps every handler subscribed after construction.
func WithMiddleware(mws ...domoutbox.Middleware) Option {
	return func(b *Bus) {
		b.middlewares = append(b.middlewares, mws...)
	}
}

func NewBus(tel observability.Observability, opts ...Option) *Bus {
	if tel == nil {
		tel = observability.Nop()
	}
	b := &Bus{
		subs:           make(map[string][]domoutbox.Handler),
		queue:          make(chan domoutbox.Event, defaultQueueSize),
		done:           make(chan struct{}),
		concurrency:    defaultConcurrency,
		handlerTimeout: defaultHandlerTimeout,
		log:            tel.Logger().With(observability.F("component", componentOutbox)),
		failures:       tel.Metrics().Counter(observability.MEventHandlerFailures),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

func (b *Bus) Subscribe(eventName string, h domoutbox.Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i := len(b.middlewares) - 1; i >= 0; i-- {
		h = b.middlewares[i](h)
	}
	b.subs[eventName] = append(b.subs[eventName], h)
}

func (b *Bus) Start(ctx context.Context) {
	b.startOnce.Do(func() {
		bg, cancel := context.WithCancel(context.WithoutCancel(ctx))
		b.cancel = cancel
		go b.dispatchLoop(bg)
		logctx.FromOr(ctx, b.log).Info("event_bus_started")
	})
}

// Stop refuses new events and waits for queued ones to be delivered, or for ctx to expire.
func (b *Bus) Stop(ctx context.Context) {
	b.stopOnce.Do(func() {
		b.closeMu.Lock()
		b.closed = true
		close(b.queue)
		b.closeMu.Unlock()

		logger := logctx.FromOr(ctx, b.log)
		if b.cancel == nil {
			logger.Info("event_bus_stopped")
			return
		}
		select {
		case <-b.done:
		case <-ctx.Done():
			logger.Warn("event_bus_drain_aborted",
				observability.F("pending", len(b.queue)),
				observability.F("error", ctx.Err()),
			)
		}
		b.cancel()
		logger.Info("event_bus_stopped")
	})
}

func (b *Bus) Publish(ctx context.Context, e domoutbox.Event) error {
	if e == nil {
		return nil
	}

	b.closeMu.RLock()
	defer b.closeMu.RUnlock()
	if b.closed {
		return ErrBusClosed
	}

	logger := logctx.FromOr(ctx, b.log).With(observability.F("event", e.EventName()))
	select {
	case b.queue <- e:
		logger.Debug("event_enqueued", observability.F("aggregate_id", domoutbox.AggregateID(e)))
		return nil
	case <-ctx.Done():
		logger.Warn("event_enqueue_aborted",
			observability.F("error", ctx.Err()),
		)
		return ctx.Err()
	}
}

func (b *Bus) dispatchLoop(ctx context.Context) {
	defer close(b.done)
	for {
		select {
		case <-ctx.Done():
			return
		case e, ok := <-b.queue:
			if !ok {
				return
			}
			b.fanout(ctx, e)
		}
	}
}

func (b *Bus) fanout(ctx context.Context, e domoutbox.Event) {
	name := e.EventName()

	b.mu.RLock()
	handlers := append([]domoutbox.Handler(nil), b.subs[name]...)
	b.mu.RUnlock()

	logger := b.log.With(
		observability.F("event", name),
		observability.F("aggregate_id", domoutbox.AggregateID(e)),
	)
	if len(handlers) == 0 {
		logger.Debug("event_dropped_no_subscriber")
		return
	}

	sem := make(chan struct{}, b.concurrency)
	var wg sync.WaitGroup

	for _, h := range handlers {
		h := h
		sem <- struct{}{}
		wg.Add(1)
		go func() {
			defer func() {
				if r := recover(); r != nil {
					b.failures.Add(1, observability.L("event", name))
					logger.Error("event_handler_panic",
						observability.F("panic", r),
						observability.F("stack", string(debug.Stack())),
					)
				}
				<-sem
				wg.Done()
			}()

			hctx, cancel := context.WithTimeout(ctx, b.handlerTimeout)
			defer cancel()
			hctx = logctx.With(hctx, logger)
			if err := h(hctx, e); err != nil {
				b.failures.Add(1, observability.L("event", name))
				logger.Warn("event_handler_error",
					observability.F("error", err),
				)
			}
		}()
	}

	wg.Wait()

	logger.Debug("event_fanned_out",
		observability.F("handlers", len(handlers)),
	)
}
