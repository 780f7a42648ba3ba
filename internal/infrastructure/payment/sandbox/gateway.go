// Package sandbox is an in-process payment gateway for local runs and tests.
// It issues order ids and signs payments with the shared secret the way the
// real provider does, and can simulate an outage.
package sandbox

import (
	"context"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	dompay "github.com/Zhima-Mochi/sweetshop/internal/domain/payment"
	"github.com/Zhima-Mochi/sweetshop/internal/infrastructure/payment/hmacsig"
)

const Name = "sandbox"

type Gateway struct {
	secret    string
	available atomic.Bool

	mu     sync.RWMutex
	orders map[string]dompay.GatewayOrder
}

func New(secret string) *Gateway {
	g := &Gateway{secret: secret, orders: make(map[string]dompay.GatewayOrder)}
	g.available.Store(true)
	return g
}

func (g *Gateway) Name() string { return Name }

// SetAvailable toggles the simulated outage.
func (g *Gateway) SetAvailable(ok bool) { g.available.Store(ok) }

func (g *Gateway) CreateOrder(ctx context.Context, req dompay.OrderRequest) (*dompay.GatewayOrder, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}
	if !g.available.Load() {
		return nil, dompay.ErrGatewayUnavailable
	}
	if req.Amount <= 0 {
		return nil, dompay.ErrGatewayRejected
	}

	o := dompay.GatewayOrder{
		ID:       "order_" + compactID(),
		Amount:   req.Amount,
		Currency: req.Currency,
		Receipt:  req.Receipt,
		Status:   "created",
	}
	g.mu.Lock()
	g.orders[o.ID] = o
	g.mu.Unlock()
	return &o, nil
}

// Pay simulates the customer completing payment and returns what the client would post back.
func (g *Gateway) Pay(orderID string) dompay.Confirmation {
	paymentID := "pay_" + compactID()
	return dompay.Confirmation{
		OrderID:   orderID,
		PaymentID: paymentID,
		Signature: hmacsig.Sign(g.secret, orderID, paymentID),
	}
}

func (g *Gateway) VerifySignature(c dompay.Confirmation) error {
	return hmacsig.Verify(g.secret, c)
}

// Order returns a previously created order.
func (g *Gateway) Order(id string) (dompay.GatewayOrder, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	o, ok := g.orders[id]
	return o, ok
}

func compactID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:14]
}
