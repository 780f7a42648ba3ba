package worker

import (
	"context"

	appalert "github.com/Zhima-Mochi/sweetshop/internal/application/stockalert"
	domoutbox "github.com/Zhima-Mochi/sweetshop/internal/domain/outbox"
	domsweet "github.com/Zhima-Mochi/sweetshop/internal/domain/sweet"
	"github.com/Zhima-Mochi/sweetshop/internal/observability"
	"github.com/Zhima-Mochi/sweetshop/internal/observability/logctx"
)

type Worker struct {
	subscriber domoutbox.Subscriber
	service    *appalert.Service
}

func New(subscriber domoutbox.Subscriber, service *appalert.Service) *Worker {
	return &Worker{
		subscriber: subscriber,
		service:    service,
	}
}

func (w *Worker) Start() {
	w.subscriber.Subscribe(domsweet.StockDepletedEvent{}.EventName(), w.handleStockDepleted)
	w.subscriber.Subscribe(domsweet.RestockedEvent{}.EventName(), w.handleRestocked)
}

func (w *Worker) handleStockDepleted(ctx context.Context, e domoutbox.Event) error {
	evt, ok := e.(domsweet.StockDepletedEvent)
	if !ok {
		return nil
	}
	if err := w.service.OnStockDepleted(ctx, evt); err != nil {
		logctx.FromOr(ctx, observability.NopLogger()).With(observability.F("component", "stock_alert_worker")).
			Warn("stock_alert_failed", observability.F("sweet_id", evt.SweetID), observability.F("error", err.Error()))
		return err
	}
	return nil
}

func (w *Worker) handleRestocked(ctx context.Context, e domoutbox.Event) error {
	evt, ok := e.(domsweet.RestockedEvent)
	if !ok {
		return nil
	}
	return w.service.OnRestocked(ctx, evt)
}
