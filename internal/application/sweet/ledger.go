package sweet

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"

	"github.com/Zhima-Mochi/sweetshop/internal/application/usecase"
	domoutbox "github.com/Zhima-Mochi/sweetshop/internal/domain/outbox"
	domain "github.com/Zhima-Mochi/sweetshop/internal/domain/sweet"
	"github.com/Zhima-Mochi/sweetshop/internal/observability"
	"github.com/Zhima-Mochi/sweetshop/internal/observability/logctx"
)

const ledgerService = "sweet-ledger"

const (
	useCaseCreate      = "sweet.create"
	useCaseList        = "sweet.list"
	useCaseSearch      = "sweet.search"
	useCaseGet         = "sweet.get"
	useCaseUpdate      = "sweet.update"
	useCaseDelete      = "sweet.delete"
	useCasePurchase    = "sweet.purchase"
	useCaseRestock     = "sweet.restock"
	useCaseManualOrder = "sweet.manual_order"
)

// writeAttempts bounds how often a write is recomputed after the stored unit changed under it.
const writeAttempts = 3

// ManualOrderConfirmation is returned to customers whose order was accepted without payment.
const ManualOrderConfirmation = "Order confirmed. Payment pending."

// Ledger owns the stock of every sweet. It holds no locks; each stock change is
// one conditional write in the repository.
type Ledger struct {
	repo      domain.Repository
	publisher domoutbox.Publisher
	in        usecase.Instruments
}

func NewLedger(repo domain.Repository, publisher domoutbox.Publisher, tel observability.Observability) *Ledger {
	return &Ledger{
		repo:      repo,
		publisher: publisher,
		in:        usecase.NewInstruments(tel, ledgerService, statusOf),
	}
}

type CreateInput struct {
	Name         string
	Category     string
	Price        decimal.Decimal
	Quantity     decimal.Decimal
	QuantityUnit string
	Image        string
}

func (l *Ledger) Create(ctx context.Context, in CreateInput) (_ *domain.Sweet, err error) {
	ctx, scope := l.in.Begin(ctx, useCaseCreate, "CreateSweet", observability.F("sweet_name", in.Name))
	defer func() { scope.End(err) }()

	unit, err := domain.ParseUnit(in.QuantityUnit)
	if err != nil {
		return nil, err
	}
	draft, err := domain.NewSweet(domain.Draft{
		Name:         in.Name,
		Category:     in.Category,
		Price:        in.Price,
		Quantity:     in.Quantity,
		QuantityUnit: unit,
		Image:        in.Image,
	})
	if err != nil {
		return nil, err
	}

	created, err := l.repo.Insert(ctx, draft)
	if err != nil {
		return nil, err
	}
	scope.Note("sweet_id", created.ID)
	return created, nil
}

func (l *Ledger) List(ctx context.Context) (_ []*domain.Sweet, err error) {
	ctx, scope := l.in.Begin(ctx, useCaseList, "ListSweets")
	defer func() { scope.End(err) }()

	sweets, err := l.repo.List(ctx)
	if err != nil {
		return nil, err
	}
	scope.Note("results", len(sweets))
	return sweets, nil
}

type SearchInput struct {
	Name     string
	Category string
	MinPrice *decimal.Decimal
	MaxPrice *decimal.Decimal
}

func (l *Ledger) Search(ctx context.Context, in SearchInput) (_ []*domain.Sweet, err error) {
	ctx, scope := l.in.Begin(ctx, useCaseSearch, "SearchSweets")
	defer func() { scope.End(err) }()

	if in.MinPrice != nil && in.MaxPrice != nil && in.MinPrice.GreaterThan(*in.MaxPrice) {
		scope.SetStatus("EMPTY_PRICE_RANGE")
		return []*domain.Sweet{}, nil
	}

	sweets, err := l.repo.Search(ctx, domain.Filter{
		Name:     in.Name,
		Category: in.Category,
		MinPrice: in.MinPrice,
		MaxPrice: in.MaxPrice,
	})
	if err != nil {
		return nil, err
	}
	scope.Note("results", len(sweets))
	return sweets, nil
}

func (l *Ledger) Get(ctx context.Context, id string) (_ *domain.Sweet, err error) {
	ctx, scope := l.in.Begin(ctx, useCaseGet, "GetSweet", observability.F("sweet_id", id))
	defer func() { scope.End(err) }()

	return l.repo.Get(ctx, id)
}

type UpdateInput struct {
	ID           string
	Name         *string
	Category     *string
	Price        *decimal.Decimal
	Quantity     *decimal.Decimal
	QuantityUnit *string
	Image        *string
}

// Update changes only the supplied fields. The current record is read to resolve
// piece rounding; the write is guarded so it only lands while that read still holds.
func (l *Ledger) Update(ctx context.Context, in UpdateInput) (_ *domain.Sweet, err error) {
	ctx, scope := l.in.Begin(ctx, useCaseUpdate, "UpdateSweet", observability.F("sweet_id", in.ID))
	defer func() { scope.End(err) }()

	patch := domain.Patch{
		Name:     in.Name,
		Category: in.Category,
		Price:    in.Price,
		Quantity: in.Quantity,
		Image:    in.Image,
	}
	if in.QuantityUnit != nil {
		unit, perr := domain.ParseUnit(*in.QuantityUnit)
		if perr != nil {
			return nil, perr
		}
		patch.QuantityUnit = &unit
	}

	for attempt := 1; ; attempt++ {
		current, err := l.repo.Get(ctx, in.ID)
		if err != nil {
			return nil, err
		}
		if patch.Empty() {
			scope.SetStatus("NO_CHANGES")
			return current, nil
		}
		normalized, err := patch.Normalize(current)
		if err != nil {
			return nil, err
		}
		updated, err := l.repo.Update(ctx, in.ID, normalized, normalized.GuardFor(current))
		if errors.Is(err, domain.ErrConcurrentChange) && attempt < writeAttempts {
			scope.Note("retries", attempt)
			continue
		}
		return updated, err
	}
}

func (l *Ledger) Delete(ctx context.Context, id string) (err error) {
	ctx, scope := l.in.Begin(ctx, useCaseDelete, "DeleteSweet", observability.F("sweet_id", id))
	defer func() { scope.End(err) }()

	return l.repo.Delete(ctx, id)
}

type PurchaseInput struct {
	ID string
	// Quantity defaults to one when nil.
	Quantity *decimal.Decimal
}

// Purchase decrements stock for a confirmed sale.
func (l *Ledger) Purchase(ctx context.Context, in PurchaseInput) (_ *domain.Sweet, err error) {
	ctx, scope := l.in.Begin(ctx, useCasePurchase, "PurchaseSweet", observability.F("sweet_id", in.ID))
	defer func() { scope.End(err) }()

	qty := decimal.NewFromInt(1)
	if in.Quantity != nil {
		qty = *in.Quantity
	}
	if !qty.IsPositive() {
		return nil, &domain.ValidationError{Field: "quantity", Message: "must be greater than zero"}
	}
	updated, qty, err := l.applyStock(ctx, scope, in.ID, qty, false, l.repo.DecrementIfAvailable)
	if err != nil {
		return nil, err
	}
	scope.Event("sweet.purchased", attribute.String("sweet.remaining", updated.Quantity.String()))
	scope.Note("remaining", updated.Quantity.String())

	l.emit(ctx, domain.NewPurchasedEvent(updated, qty))
	if !updated.InStock() {
		l.emit(ctx, domain.NewStockDepletedEvent(updated))
	}
	return updated, nil
}

type RestockInput struct {
	ID       string
	Quantity decimal.Decimal
}

func (l *Ledger) Restock(ctx context.Context, in RestockInput) (_ *domain.Sweet, err error) {
	ctx, scope := l.in.Begin(ctx, useCaseRestock, "RestockSweet", observability.F("sweet_id", in.ID))
	defer func() { scope.End(err) }()

	if !in.Quantity.IsPositive() {
		return nil, &domain.ValidationError{Field: "quantity", Message: "must be greater than zero"}
	}
	updated, qty, err := l.applyStock(ctx, scope, in.ID, in.Quantity, false, l.repo.Increment)
	if err != nil {
		return nil, err
	}
	scope.Note("total", updated.Quantity.String())

	l.emit(ctx, domain.NewRestockedEvent(updated, qty))
	return updated, nil
}

type ManualOrderInput struct {
	ID string
	// Quantity falls back to one when nil or not positive.
	Quantity *decimal.Decimal
}

type ManualOrderResult struct {
	Confirmation string
	Quantity     decimal.Decimal
	Sweet        *domain.Sweet
}

// ManualOrder reserves stock for a customer whose online payment could not be taken.
func (l *Ledger) ManualOrder(ctx context.Context, in ManualOrderInput) (_ *ManualOrderResult, err error) {
	ctx, scope := l.in.Begin(ctx, useCaseManualOrder, "ManualOrder", observability.F("sweet_id", in.ID))
	defer func() { scope.End(err) }()

	qty := decimal.NewFromInt(1)
	if in.Quantity != nil && in.Quantity.IsPositive() {
		qty = *in.Quantity
	}
	updated, qty, err := l.applyStock(ctx, scope, in.ID, qty, true, l.repo.DecrementIfAvailable)
	if err != nil {
		return nil, err
	}
	scope.Note("remaining", updated.Quantity.String())

	l.emit(ctx, domain.NewManualOrderedEvent(updated, qty))
	if !updated.InStock() {
		l.emit(ctx, domain.NewStockDepletedEvent(updated))
	}
	return &ManualOrderResult{
		Confirmation: ManualOrderConfirmation,
		Quantity:     qty,
		Sweet:        updated,
	}, nil
}

type stockWrite func(ctx context.Context, id string, qty decimal.Decimal, unit domain.Unit) (*domain.Sweet, error)

// applyStock runs write with the requested quantity resolved against the stored
// unit. When the unit changed between the lookup and the write the store refuses
// it and the quantity is resolved again.
func (l *Ledger) applyStock(ctx context.Context, scope *usecase.Scope, id string, requested decimal.Decimal,
	atLeastOne bool, write stockWrite,
) (*domain.Sweet, decimal.Decimal, error) {
	for attempt := 1; ; attempt++ {
		qty, unit, err := l.resolveQuantity(ctx, id, requested, atLeastOne)
		if err != nil {
			return nil, decimal.Zero, err
		}
		updated, err := write(ctx, id, qty, unit)
		if errors.Is(err, domain.ErrConcurrentChange) && attempt < writeAttempts {
			scope.Note("retries", attempt)
			continue
		}
		if err != nil {
			return nil, decimal.Zero, err
		}
		scope.Note("quantity", qty.String())
		return updated, qty, nil
	}
}

// resolveQuantity applies piece rounding. Whole quantities are valid for every
// unit and skip the lookup; the returned unit is then empty and the write is
// unguarded. Fractional ones are rounded for the stored unit, which the write must match.
func (l *Ledger) resolveQuantity(ctx context.Context, id string, qty decimal.Decimal, atLeastOne bool) (decimal.Decimal, domain.Unit, error) {
	if qty.Equal(qty.Truncate(0)) {
		return qty, "", nil
	}
	current, err := l.repo.Get(ctx, id)
	if err != nil {
		return decimal.Zero, "", err
	}
	unit := current.QuantityUnit
	rounded := domain.NormalizeQuantity(qty, unit)
	if rounded.IsPositive() {
		return rounded, unit, nil
	}
	if atLeastOne {
		return decimal.NewFromInt(1), unit, nil
	}
	return decimal.Zero, "", &domain.ValidationError{Field: "quantity", Message: "rounds to zero pieces"}
}

// emit publishes best effort; the stock change is already committed.
func (l *Ledger) emit(ctx context.Context, e domoutbox.Event) {
	if err := l.in.Publish(ctx, l.publisher, e); err != nil {
		logctx.FromOr(ctx, l.in.Logger()).Warn("event_publish_failed",
			observability.F("event", e.EventName()),
			observability.F("error", err.Error()),
		)
	}
}

func statusOf(err error) string {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return "NOT_FOUND"
	case errors.Is(err, domain.ErrDuplicateName):
		return "DUPLICATE_NAME"
	case errors.Is(err, domain.ErrOutOfStock):
		return "OUT_OF_STOCK"
	case errors.Is(err, domain.ErrInsufficientStock):
		return "INSUFFICIENT_STOCK"
	case errors.Is(err, domain.ErrValidation):
		return "VALIDATION_FAILED"
	case errors.Is(err, domain.ErrStoreUnavailable):
		return "STORE_UNAVAILABLE"
	case errors.Is(err, domain.ErrConcurrentChange):
		return "CONCURRENT_CHANGE"
	default:
		return usecase.Status(err)
	}
}
