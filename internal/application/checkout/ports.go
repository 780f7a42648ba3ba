package checkout

import (
	"context"

	appsweet "github.com/Zhima-Mochi/sweetshop/internal/application/sweet"
	domsweet "github.com/Zhima-Mochi/sweetshop/internal/domain/sweet"
)

type IDGenerator interface {
	NewID() string
}

// Ledger is the part of the stock ledger checkout drives.
type Ledger interface {
	Get(ctx context.Context, id string) (*domsweet.Sweet, error)
	Purchase(ctx context.Context, in appsweet.PurchaseInput) (*domsweet.Sweet, error)
	ManualOrder(ctx context.Context, in appsweet.ManualOrderInput) (*appsweet.ManualOrderResult, error)
}
