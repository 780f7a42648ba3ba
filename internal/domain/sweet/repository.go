package sweet

import (
	"context"

	"github.com/shopspring/decimal"
)

// Repository is the persistence port of the ledger. Every stock mutation is a
// single conditional write on the store side; there is no read-modify-write.
type Repository interface {
	// Insert assigns the identifier and timestamps. A name collision yields ErrDuplicateName.
	Insert(ctx context.Context, s *Sweet) (*Sweet, error)
	Get(ctx context.Context, id string) (*Sweet, error)
	// List returns every sweet, newest first.
	List(ctx context.Context) ([]*Sweet, error)
	Search(ctx context.Context, f Filter) ([]*Sweet, error)
	// Update applies p only while g holds; otherwise it yields ErrConcurrentChange.
	Update(ctx context.Context, id string, p Patch, g Guard) (*Sweet, error)
	Delete(ctx context.Context, id string) error
	// DecrementIfAvailable subtracts qty only while the stored quantity is >= qty.
	// Refusals are reported through StockError. A non-empty unit must match the
	// stored unit, else ErrConcurrentChange.
	DecrementIfAvailable(ctx context.Context, id string, qty decimal.Decimal, unit Unit) (*Sweet, error)
	Increment(ctx context.Context, id string, qty decimal.Decimal, unit Unit) (*Sweet, error)
}

// Guard pins the stored state a write was computed from. Zero fields are not checked.
type Guard struct {
	Unit     Unit
	Quantity *decimal.Decimal
}

func (g Guard) Holds(s *Sweet) bool {
	if g.Unit != "" && s.QuantityUnit != g.Unit {
		return false
	}
	if g.Quantity != nil && !s.Quantity.Equal(*g.Quantity) {
		return false
	}
	return true
}

// UnitArg is the unit to compare in a store filter, or nil when unchecked.
func (g Guard) UnitArg() *string {
	if g.Unit == "" {
		return nil
	}
	u := string(g.Unit)
	return &u
}
