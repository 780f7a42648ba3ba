package sandbox_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dompay "github.com/Zhima-Mochi/sweetshop/internal/domain/payment"
	"github.com/Zhima-Mochi/sweetshop/internal/infrastructure/payment/sandbox"
)

func TestGateway(t *testing.T) {
	ctx := context.Background()
	g := sandbox.New("s3cret")

	t.Run("create and pay", func(t *testing.T) {
		o, err := g.CreateOrder(ctx, dompay.OrderRequest{Amount: 1200, Currency: "INR", Receipt: "r1"})
		require.NoError(t, err)
		assert.Regexp(t, `^order_[0-9a-f]{14}$`, o.ID)
		assert.Equal(t, "created", o.Status)

		stored, ok := g.Order(o.ID)
		require.True(t, ok)
		assert.EqualValues(t, 1200, stored.Amount)

		conf := g.Pay(o.ID)
		assert.NoError(t, g.VerifySignature(conf))

		conf.Signature = "00" + conf.Signature[2:]
		assert.ErrorIs(t, g.VerifySignature(conf), dompay.ErrInvalidSignature)
	})

	t.Run("outage", func(t *testing.T) {
		g.SetAvailable(false)
		defer g.SetAvailable(true)
		_, err := g.CreateOrder(ctx, dompay.OrderRequest{Amount: 1, Currency: "INR"})
		assert.ErrorIs(t, err, dompay.ErrGatewayUnavailable)
	})

	t.Run("non positive amount", func(t *testing.T) {
		_, err := g.CreateOrder(ctx, dompay.OrderRequest{Amount: 0, Currency: "INR"})
		assert.ErrorIs(t, err, dompay.ErrGatewayRejected)
	})

	t.Run("canceled context", func(t *testing.T) {
		cctx, cancel := context.WithCancel(ctx)
		cancel()
		_, err := g.CreateOrder(cctx, dompay.OrderRequest{Amount: 1, Currency: "INR"})
		assert.ErrorIs(t, err, context.Canceled)
	})

	t.Run("different secret rejects", func(t *testing.T) {
		other := sandbox.New("other")
		o, err := other.CreateOrder(ctx, dompay.OrderRequest{Amount: 5, Currency: "INR"})
		require.NoError(t, err)
		assert.ErrorIs(t, g.VerifySignature(other.Pay(o.ID)), dompay.ErrInvalidSignature)
	})
}
