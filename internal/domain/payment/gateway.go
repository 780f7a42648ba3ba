package payment

import (
	"context"
	"errors"
)

var (
	ErrGatewayUnavailable = errors.New("payment: gateway unavailable")
	ErrInvalidSignature   = errors.New("payment: invalid signature")
	ErrGatewayRejected    = errors.New("payment: gateway rejected request")
)

// OrderRequest asks the gateway to open a payable order. Amount is in minor units (paise for INR).
type OrderRequest struct {
	Amount   int64
	Currency string
	Receipt  string
	Notes    map[string]string
}

// GatewayOrder is the gateway's view of an opened order.
type GatewayOrder struct {
	ID       string
	Amount   int64
	Currency string
	Receipt  string
	Status   string
}

// Confirmation is what the client returns after paying.
type Confirmation struct {
	OrderID   string
	PaymentID string
	Signature string
}

// Gateway brokers payments with an external provider.
type Gateway interface {
	Name() string
	CreateOrder(ctx context.Context, req OrderRequest) (*GatewayOrder, error)
	// VerifySignature returns ErrInvalidSignature when c was not signed by the provider.
	VerifySignature(c Confirmation) error
}
