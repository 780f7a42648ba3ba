package sweet

import (
	"time"

	"github.com/shopspring/decimal"
)

// PurchasedEvent is emitted after a paid purchase decremented stock.
type PurchasedEvent struct {
	SweetID    string
	Quantity   decimal.Decimal
	Remaining  decimal.Decimal
	Unit       Unit
	OccurredAt time.Time
}

func (PurchasedEvent) EventName() string     { return "sweet.purchased" }
func (e PurchasedEvent) AggregateID() string { return e.SweetID }

// ManualOrderedEvent is emitted when stock was reserved without a confirmed payment.
type ManualOrderedEvent struct {
	SweetID    string
	Quantity   decimal.Decimal
	Remaining  decimal.Decimal
	Unit       Unit
	OccurredAt time.Time
}

func (ManualOrderedEvent) EventName() string     { return "sweet.manual_ordered" }
func (e ManualOrderedEvent) AggregateID() string { return e.SweetID }

type RestockedEvent struct {
	SweetID    string
	Added      decimal.Decimal
	Quantity   decimal.Decimal
	Unit       Unit
	OccurredAt time.Time
}

func (RestockedEvent) EventName() string     { return "sweet.restocked" }
func (e RestockedEvent) AggregateID() string { return e.SweetID }

// StockDepletedEvent is emitted when a decrement leaves nothing on hand.
type StockDepletedEvent struct {
	SweetID    string
	Name       string
	Category   string
	OccurredAt time.Time
}

func (StockDepletedEvent) EventName() string     { return "sweet.stock_depleted" }
func (e StockDepletedEvent) AggregateID() string { return e.SweetID }

func NewPurchasedEvent(s *Sweet, qty decimal.Decimal) PurchasedEvent {
	return PurchasedEvent{
		SweetID:    s.ID,
		Quantity:   qty,
		Remaining:  s.Quantity,
		Unit:       s.QuantityUnit,
		OccurredAt: time.Now().UTC(),
	}
}

func NewManualOrderedEvent(s *Sweet, qty decimal.Decimal) ManualOrderedEvent {
	return ManualOrderedEvent{
		SweetID:    s.ID,
		Quantity:   qty,
		Remaining:  s.Quantity,
		Unit:       s.QuantityUnit,
		OccurredAt: time.Now().UTC(),
	}
}

func NewRestockedEvent(s *Sweet, added decimal.Decimal) RestockedEvent {
	return RestockedEvent{
		SweetID:    s.ID,
		Added:      added,
		Quantity:   s.Quantity,
		Unit:       s.QuantityUnit,
		OccurredAt: time.Now().UTC(),
	}
}

func NewStockDepletedEvent(s *Sweet) StockDepletedEvent {
	return StockDepletedEvent{
		SweetID:    s.ID,
		Name:       s.Name,
		Category:   s.Category,
		OccurredAt: time.Now().UTC(),
	}
}
