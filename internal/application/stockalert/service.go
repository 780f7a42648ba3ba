// Package stockalert reacts to stock movements that operators should hear about.
package stockalert

import (
	"context"
	"strings"

	"github.com/Zhima-Mochi/sweetshop/internal/application/usecase"
	domsweet "github.com/Zhima-Mochi/sweetshop/internal/domain/sweet"
	"github.com/Zhima-Mochi/sweetshop/internal/observability"
)

const (
	alertService       = "stock-alert"
	useCaseDepleted    = "stock_alert.depleted"
	useCaseReplenished = "stock_alert.replenished"
	unknownCategory    = "unknown"
)

type Service struct {
	in       usecase.Instruments
	depleted observability.Counter // sweet_stock_depleted_total{category}
}

func NewService(tel observability.Observability) *Service {
	if tel == nil {
		tel = observability.Nop()
	}
	return &Service{
		in:       usecase.NewInstruments(tel, alertService, nil),
		depleted: tel.Metrics().Counter(observability.MStockDepleted),
	}
}

func (s *Service) OnStockDepleted(ctx context.Context, evt domsweet.StockDepletedEvent) (err error) {
	ctx, scope := s.in.Begin(ctx, useCaseDepleted, "OnStockDepleted",
		observability.F("sweet_id", evt.SweetID),
	)
	defer func() { scope.End(err) }()

	category := strings.TrimSpace(evt.Category)
	if category == "" {
		category = unknownCategory
	}
	s.depleted.Add(1, observability.L("category", category))

	scope.Logger().Warn("sweet_out_of_stock",
		observability.F("sweet_name", evt.Name),
		observability.F("category", category),
	)
	return nil
}

// OnRestocked notes sweets that were sold out until this restock.
func (s *Service) OnRestocked(ctx context.Context, evt domsweet.RestockedEvent) (err error) {
	ctx, scope := s.in.Begin(ctx, useCaseReplenished, "OnRestocked",
		observability.F("sweet_id", evt.SweetID),
	)
	defer func() { scope.End(err) }()

	if !evt.Quantity.Equal(evt.Added) {
		scope.SetStatus("ALREADY_IN_STOCK")
		return nil
	}
	scope.Logger().Info("sweet_back_in_stock",
		observability.F("quantity", evt.Quantity.String()),
		observability.F("unit", string(evt.Unit)),
	)
	return nil
}
