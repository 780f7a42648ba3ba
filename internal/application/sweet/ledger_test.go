package sweet_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appsweet "github.com/Zhima-Mochi/sweetshop/internal/application/sweet"
	domoutbox "github.com/Zhima-Mochi/sweetshop/internal/domain/outbox"
	"github.com/Zhima-Mochi/sweetshop/internal/domain/sweet"
	"github.com/Zhima-Mochi/sweetshop/internal/infrastructure/memory"
	"github.com/Zhima-Mochi/sweetshop/internal/observability"
)

type recordingPublisher struct {
	mu     sync.Mutex
	events []domoutbox.Event
	err    error
}

func (p *recordingPublisher) Publish(_ context.Context, e domoutbox.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	return p.err
}

func (p *recordingPublisher) names() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.events))
	for i, e := range p.events {
		out[i] = e.EventName()
	}
	return out
}

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func ptr[T any](v T) *T { return &v }

func setup(t *testing.T) (*appsweet.Ledger, *recordingPublisher) {
	t.Helper()
	pub := &recordingPublisher{}
	return appsweet.NewLedger(memory.NewSweetRepository(), pub, observability.Nop()), pub
}

func create(t *testing.T, l *appsweet.Ledger, name, category, price, qty, unit string) *sweet.Sweet {
	t.Helper()
	s, err := l.Create(context.Background(), appsweet.CreateInput{
		Name: name, Category: category, Price: dec(price), Quantity: dec(qty), QuantityUnit: unit,
	})
	require.NoError(t, err)
	return s
}

func TestLedgerCreate(t *testing.T) {
	ctx := context.Background()
	l, _ := setup(t)

	s := create(t, l, "Gulab Jamun", "Indian", "12.5", "4.5", "")
	assert.NotEmpty(t, s.ID)
	assert.Equal(t, sweet.UnitPiece, s.QuantityUnit)
	assert.True(t, s.Quantity.Equal(dec("5")), "piece quantities round half away from zero")
	assert.False(t, s.CreatedAt.IsZero())

	_, err := l.Create(ctx, appsweet.CreateInput{Name: "Gulab Jamun", Category: "Other", Price: dec("1")})
	assert.ErrorIs(t, err, sweet.ErrDuplicateName)
	kept, err := l.Get(ctx, s.ID)
	require.NoError(t, err)
	assert.Equal(t, "Gulab Jamun", kept.Name)
	assert.Equal(t, "Indian", kept.Category)
	assert.True(t, kept.Price.Equal(dec("12.5")))
	assert.True(t, kept.Quantity.Equal(dec("5")))

	_, err = l.Create(ctx, appsweet.CreateInput{Name: "Kaju Katli", Category: "Indian", Price: dec("-1")})
	assert.ErrorIs(t, err, sweet.ErrValidation)

	_, err = l.Create(ctx, appsweet.CreateInput{Name: "Kaju Katli", Category: "Indian", QuantityUnit: "box"})
	assert.ErrorIs(t, err, sweet.ErrValidation)
}

func TestLedgerPurchase(t *testing.T) {
	ctx := context.Background()
	l, pub := setup(t)
	s := create(t, l, "Ladoo", "Indian", "2", "10", "piece")

	got, err := l.Purchase(ctx, appsweet.PurchaseInput{ID: s.ID, Quantity: ptr(dec("3"))})
	require.NoError(t, err)
	assert.True(t, got.Quantity.Equal(dec("7")))

	_, err = l.Purchase(ctx, appsweet.PurchaseInput{ID: s.ID, Quantity: ptr(dec("8"))})
	require.ErrorIs(t, err, sweet.ErrInsufficientStock)
	var ins *sweet.InsufficientStockError
	require.True(t, errors.As(err, &ins))
	assert.True(t, ins.Available.Equal(dec("7")))
	assert.Equal(t, sweet.UnitPiece, ins.Unit)

	after, err := l.Get(ctx, s.ID)
	require.NoError(t, err)
	assert.True(t, after.Quantity.Equal(dec("7")), "a refused purchase leaves stock untouched")

	t.Run("defaults to one", func(t *testing.T) {
		got, err := l.Purchase(ctx, appsweet.PurchaseInput{ID: s.ID})
		require.NoError(t, err)
		assert.True(t, got.Quantity.Equal(dec("6")))
	})

	t.Run("rejects non-positive quantity", func(t *testing.T) {
		_, err := l.Purchase(ctx, appsweet.PurchaseInput{ID: s.ID, Quantity: ptr(dec("0"))})
		assert.ErrorIs(t, err, sweet.ErrValidation)
	})

	t.Run("rounds fractional pieces", func(t *testing.T) {
		got, err := l.Purchase(ctx, appsweet.PurchaseInput{ID: s.ID, Quantity: ptr(dec("1.6"))})
		require.NoError(t, err)
		assert.True(t, got.Quantity.Equal(dec("4")))

		_, err = l.Purchase(ctx, appsweet.PurchaseInput{ID: s.ID, Quantity: ptr(dec("0.4"))})
		assert.ErrorIs(t, err, sweet.ErrValidation)
	})

	t.Run("unknown sweet", func(t *testing.T) {
		_, err := l.Purchase(ctx, appsweet.PurchaseInput{ID: "missing"})
		assert.ErrorIs(t, err, sweet.ErrNotFound)
	})

	assert.Contains(t, pub.names(), "sweet.purchased")
}

func TestLedgerOutOfStockBoundary(t *testing.T) {
	ctx := context.Background()
	l, pub := setup(t)
	s := create(t, l, "Peda", "Indian", "1", "1", "piece")

	got, err := l.Purchase(ctx, appsweet.PurchaseInput{ID: s.ID})
	require.NoError(t, err)
	assert.True(t, got.Quantity.IsZero())
	assert.Equal(t, []string{"sweet.purchased", "sweet.stock_depleted"}, pub.names())

	_, err = l.Purchase(ctx, appsweet.PurchaseInput{ID: s.ID})
	assert.ErrorIs(t, err, sweet.ErrOutOfStock)
}

func TestLedgerFractionalWeights(t *testing.T) {
	ctx := context.Background()
	l, _ := setup(t)
	s := create(t, l, "Soan Papdi", "Indian", "8", "2.5", "kg")

	got, err := l.Purchase(ctx, appsweet.PurchaseInput{ID: s.ID, Quantity: ptr(dec("0.75"))})
	require.NoError(t, err)
	assert.True(t, got.Quantity.Equal(dec("1.75")))

	_, err = l.Purchase(ctx, appsweet.PurchaseInput{ID: s.ID, Quantity: ptr(dec("2"))})
	var ins *sweet.InsufficientStockError
	require.True(t, errors.As(err, &ins))
	assert.Equal(t, sweet.UnitKg, ins.Unit)
}

func TestLedgerRestock(t *testing.T) {
	ctx := context.Background()
	l, pub := setup(t)
	s := create(t, l, "Barfi", "Indian", "3", "10", "piece")

	got, err := l.Restock(ctx, appsweet.RestockInput{ID: s.ID, Quantity: dec("50")})
	require.NoError(t, err)
	assert.True(t, got.Quantity.Equal(dec("60")))
	assert.Equal(t, []string{"sweet.restocked"}, pub.names())

	_, err = l.Restock(ctx, appsweet.RestockInput{ID: s.ID, Quantity: dec("0")})
	assert.ErrorIs(t, err, sweet.ErrValidation)
	_, err = l.Restock(ctx, appsweet.RestockInput{ID: s.ID, Quantity: dec("-5")})
	assert.ErrorIs(t, err, sweet.ErrValidation)
	_, err = l.Restock(ctx, appsweet.RestockInput{ID: "missing", Quantity: dec("1")})
	assert.ErrorIs(t, err, sweet.ErrNotFound)
}

func TestLedgerManualOrder(t *testing.T) {
	ctx := context.Background()
	l, pub := setup(t)
	s := create(t, l, "Jalebi", "Indian", "4", "3", "piece")

	res, err := l.ManualOrder(ctx, appsweet.ManualOrderInput{ID: s.ID, Quantity: ptr(dec("-2"))})
	require.NoError(t, err)
	assert.Equal(t, appsweet.ManualOrderConfirmation, res.Confirmation)
	assert.True(t, res.Quantity.Equal(dec("1")), "non-positive quantities fall back to one")
	assert.True(t, res.Sweet.Quantity.Equal(dec("2")))

	res, err = l.ManualOrder(ctx, appsweet.ManualOrderInput{ID: s.ID, Quantity: ptr(dec("0.2"))})
	require.NoError(t, err)
	assert.True(t, res.Quantity.Equal(dec("1")))

	_, err = l.ManualOrder(ctx, appsweet.ManualOrderInput{ID: s.ID, Quantity: ptr(dec("5"))})
	assert.ErrorIs(t, err, sweet.ErrInsufficientStock)

	assert.Equal(t, []string{"sweet.manual_ordered", "sweet.manual_ordered"}, pub.names())
}

func TestLedgerUpdate(t *testing.T) {
	ctx := context.Background()
	l, _ := setup(t)
	a := create(t, l, "Rasgulla", "Bengali", "2", "5", "piece")
	create(t, l, "Sandesh", "Bengali", "3", "5", "piece")

	got, err := l.Update(ctx, appsweet.UpdateInput{ID: a.ID, Price: ptr(dec("2.25"))})
	require.NoError(t, err)
	assert.True(t, got.Price.Equal(dec("2.25")))
	assert.Equal(t, "Rasgulla", got.Name)
	assert.True(t, got.Quantity.Equal(dec("5")))

	got, err = l.Update(ctx, appsweet.UpdateInput{ID: a.ID, Quantity: ptr(dec("7.5"))})
	require.NoError(t, err)
	assert.True(t, got.Quantity.Equal(dec("8")))

	got, err = l.Update(ctx, appsweet.UpdateInput{ID: a.ID, Quantity: ptr(dec("1.5")), QuantityUnit: ptr("kg")})
	require.NoError(t, err)
	assert.True(t, got.Quantity.Equal(dec("1.5")))
	assert.Equal(t, sweet.UnitKg, got.QuantityUnit)

	_, err = l.Update(ctx, appsweet.UpdateInput{ID: a.ID, QuantityUnit: ptr("piece")})
	assert.ErrorIs(t, err, sweet.ErrValidation)

	_, err = l.Update(ctx, appsweet.UpdateInput{ID: a.ID, Name: ptr("Sandesh")})
	assert.ErrorIs(t, err, sweet.ErrDuplicateName)

	_, err = l.Update(ctx, appsweet.UpdateInput{ID: "missing", Name: ptr("x")})
	assert.ErrorIs(t, err, sweet.ErrNotFound)
}

func TestLedgerSearch(t *testing.T) {
	ctx := context.Background()
	l, _ := setup(t)
	a := create(t, l, "A", "Chocolate", "2.50", "1", "piece")
	b := create(t, l, "B", "Chocolate", "3.00", "1", "piece")
	create(t, l, "C", "Gummies", "1.50", "1", "piece")

	ids := func(ss []*sweet.Sweet) []string {
		out := make([]string, len(ss))
		for i, s := range ss {
			out[i] = s.ID
		}
		return out
	}

	got, err := l.Search(ctx, appsweet.SearchInput{Category: "Chocolate"})
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{a.ID, b.ID}, ids(got))

	got, err = l.Search(ctx, appsweet.SearchInput{MinPrice: ptr(dec("2.0")), MaxPrice: ptr(dec("2.75"))})
	require.NoError(t, err)
	assert.Equal(t, []string{a.ID}, ids(got))

	got, err = l.Search(ctx, appsweet.SearchInput{MinPrice: ptr(dec("3")), MaxPrice: ptr(dec("1"))})
	require.NoError(t, err)
	assert.Empty(t, got)

	all, err := l.List(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestLedgerDelete(t *testing.T) {
	ctx := context.Background()
	l, _ := setup(t)
	s := create(t, l, "Halwa", "Indian", "5", "1", "kg")

	require.NoError(t, l.Delete(ctx, s.ID))
	_, err := l.Get(ctx, s.ID)
	assert.ErrorIs(t, err, sweet.ErrNotFound)
	assert.ErrorIs(t, l.Delete(ctx, s.ID), sweet.ErrNotFound)
	_, err = l.Purchase(ctx, appsweet.PurchaseInput{ID: s.ID})
	assert.ErrorIs(t, err, sweet.ErrNotFound)
	_, err = l.Update(ctx, appsweet.UpdateInput{ID: s.ID, Price: ptr(dec("6"))})
	assert.ErrorIs(t, err, sweet.ErrNotFound)
}

// switchingRepository changes the stored unit once, right before the first
// stock write reaches the store.
type switchingRepository struct {
	*memory.SweetRepository
	to    sweet.Unit
	qty   *decimal.Decimal
	fired atomic.Bool
}

func (r *switchingRepository) switchOnce(ctx context.Context, id string) error {
	if r.fired.Swap(true) {
		return nil
	}
	unit := r.to
	_, err := r.SweetRepository.Update(ctx, id, sweet.Patch{QuantityUnit: &unit, Quantity: r.qty}, sweet.Guard{})
	return err
}

func (r *switchingRepository) DecrementIfAvailable(ctx context.Context, id string, qty decimal.Decimal, unit sweet.Unit) (*sweet.Sweet, error) {
	if err := r.switchOnce(ctx, id); err != nil {
		return nil, err
	}
	return r.SweetRepository.DecrementIfAvailable(ctx, id, qty, unit)
}

func (r *switchingRepository) Increment(ctx context.Context, id string, qty decimal.Decimal, unit sweet.Unit) (*sweet.Sweet, error) {
	if err := r.switchOnce(ctx, id); err != nil {
		return nil, err
	}
	return r.SweetRepository.Increment(ctx, id, qty, unit)
}

func (r *switchingRepository) Update(ctx context.Context, id string, p sweet.Patch, g sweet.Guard) (*sweet.Sweet, error) {
	if err := r.switchOnce(ctx, id); err != nil {
		return nil, err
	}
	return r.SweetRepository.Update(ctx, id, p, g)
}

func TestLedgerUnitSwitchDuringWrite(t *testing.T) {
	ctx := context.Background()
	seed := func(t *testing.T, to sweet.Unit, qty *decimal.Decimal) (*appsweet.Ledger, *switchingRepository, *sweet.Sweet) {
		t.Helper()
		base := memory.NewSweetRepository()
		s, err := base.Insert(ctx, &sweet.Sweet{Name: "Barfi", Category: "Indian", Price: dec("4"), Quantity: dec("10"), QuantityUnit: sweet.UnitKg})
		require.NoError(t, err)
		repo := &switchingRepository{SweetRepository: base, to: to, qty: qty}
		return appsweet.NewLedger(repo, &recordingPublisher{}, observability.Nop()), repo, s
	}

	t.Run("purchase rounds for the new unit", func(t *testing.T) {
		l, repo, s := seed(t, sweet.UnitPiece, nil)
		got, err := l.Purchase(ctx, appsweet.PurchaseInput{ID: s.ID, Quantity: ptr(dec("2.5"))})
		require.NoError(t, err)
		assert.True(t, repo.fired.Load())
		assert.Equal(t, sweet.UnitPiece, got.QuantityUnit)
		assert.True(t, got.Quantity.Equal(dec("7")), "got %s", got.Quantity)
	})

	t.Run("restock rounds for the new unit", func(t *testing.T) {
		l, _, s := seed(t, sweet.UnitPiece, nil)
		got, err := l.Restock(ctx, appsweet.RestockInput{ID: s.ID, Quantity: dec("0.4")})
		assert.ErrorIs(t, err, sweet.ErrValidation, "0.4 rounds to zero pieces")
		assert.Nil(t, got)

		stored, err := l.Get(ctx, s.ID)
		require.NoError(t, err)
		assert.True(t, stored.Quantity.Equal(dec("10")))
	})

	t.Run("whole quantities are unaffected", func(t *testing.T) {
		l, _, s := seed(t, sweet.UnitPiece, nil)
		got, err := l.Purchase(ctx, appsweet.PurchaseInput{ID: s.ID, Quantity: ptr(dec("3"))})
		require.NoError(t, err)
		assert.True(t, got.Quantity.Equal(dec("7")))
	})

	t.Run("update recomputed against the new unit", func(t *testing.T) {
		l, _, s := seed(t, sweet.UnitPiece, nil)
		got, err := l.Update(ctx, appsweet.UpdateInput{ID: s.ID, Quantity: ptr(dec("6.5"))})
		require.NoError(t, err)
		assert.Equal(t, sweet.UnitPiece, got.QuantityUnit)
		assert.True(t, got.Quantity.Equal(dec("7")), "got %s", got.Quantity)
	})

	t.Run("switch to piece sees fractional stock", func(t *testing.T) {
		l, _, s := seed(t, sweet.UnitGram, ptr(dec("10.5")))
		_, err := l.Update(ctx, appsweet.UpdateInput{ID: s.ID, QuantityUnit: ptr("piece")})
		assert.ErrorIs(t, err, sweet.ErrValidation)

		stored, err := l.Get(ctx, s.ID)
		require.NoError(t, err)
		assert.Equal(t, sweet.UnitGram, stored.QuantityUnit)
		assert.True(t, stored.Quantity.Equal(dec("10.5")))
	})
}

func TestLedgerConcurrentPurchases(t *testing.T) {
	ctx := context.Background()
	l, _ := setup(t)
	const stock, buyers = 7, 40
	s := create(t, l, "Kalakand", "Indian", "1", "7", "piece")

	var succeeded, refused atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < buyers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := l.Purchase(ctx, appsweet.PurchaseInput{ID: s.ID})
			switch {
			case err == nil:
				succeeded.Add(1)
			case errors.Is(err, sweet.ErrOutOfStock), errors.Is(err, sweet.ErrInsufficientStock):
				refused.Add(1)
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	assert.EqualValues(t, stock, succeeded.Load())
	assert.EqualValues(t, buyers-stock, refused.Load())
	final, err := l.Get(ctx, s.ID)
	require.NoError(t, err)
	assert.True(t, final.Quantity.IsZero())
}

func TestLedgerPublishFailureKeepsCommittedStock(t *testing.T) {
	ctx := context.Background()
	pub := &recordingPublisher{err: errors.New("bus closed")}
	l := appsweet.NewLedger(memory.NewSweetRepository(), pub, observability.Nop())
	s := create(t, l, "Modak", "Indian", "2", "2", "piece")

	got, err := l.Purchase(ctx, appsweet.PurchaseInput{ID: s.ID})
	require.NoError(t, err)
	assert.True(t, got.Quantity.Equal(dec("1")))
}
