package order

import "context"

type Repository interface {
	// Insert stores a new order; an existing id or gateway order id yields ErrConflict.
	Insert(ctx context.Context, order *Order) error
	Get(ctx context.Context, id string) (*Order, error)
	FindByGatewayOrderID(ctx context.Context, gatewayOrderID string) (*Order, error)
	// Update replaces the stored order only while its status is still expected,
	// otherwise ErrConflict. This is the claim that serialises confirmations.
	Update(ctx context.Context, order *Order, expected Status) error
}
