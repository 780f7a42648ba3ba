package order_test

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Zhima-Mochi/sweetshop/internal/domain/order"
)

func line() order.Line {
	return order.Line{CustomerID: "u1", SweetID: "s1", SweetName: "Ladoo", Quantity: decimal.NewFromInt(2), Unit: "piece"}
}

func pending(t *testing.T) *order.Order {
	t.Helper()
	o, err := order.NewPending("o1", line(), 500, "INR", "order_x")
	require.NoError(t, err)
	return o
}

func TestNewPending(t *testing.T) {
	o := pending(t)
	assert.Equal(t, order.StatusPending, o.Status)
	assert.Equal(t, "order_x", o.GatewayOrderID)

	_, err := order.NewPending("o2", order.Line{SweetID: "s1"}, 500, "INR", "order_y")
	assert.ErrorIs(t, err, order.ErrInvalidQuantity)

	_, err = order.NewPending("o3", line(), -1, "INR", "order_z")
	assert.ErrorIs(t, err, order.ErrInvalidAmount)

	_, err = order.NewPending("o4", line(), 1, "INR", "")
	assert.Error(t, err)
}

func TestTransitions(t *testing.T) {
	t.Run("claim then complete", func(t *testing.T) {
		o := pending(t)
		require.NoError(t, o.BeginConfirmation("pay_1"))
		assert.Equal(t, order.StatusConfirming, o.Status)
		assert.ErrorIs(t, o.BeginConfirmation("pay_2"), order.ErrInvalidStateTransition)

		require.NoError(t, o.PaymentConfirmed())
		assert.Equal(t, order.StatusCompleted, o.Status)
		assert.Equal(t, "pay_1", o.PaymentID)
		assert.True(t, o.Terminal())
		assert.ErrorIs(t, o.PaymentRejected("bad"), order.ErrInvalidStateTransition)
	})

	t.Run("completion needs a claim", func(t *testing.T) {
		o := pending(t)
		assert.ErrorIs(t, o.PaymentConfirmed(), order.ErrInvalidStateTransition)
	})

	t.Run("failed signature can be retried", func(t *testing.T) {
		o := pending(t)
		require.NoError(t, o.PaymentRejected("invalid_signature"))
		assert.Equal(t, order.StatusPaymentFailed, o.Status)
		assert.Equal(t, "invalid_signature", o.FailureReason)

		require.NoError(t, o.BeginConfirmation("pay_2"))
		require.NoError(t, o.PaymentConfirmed())
		assert.Equal(t, order.StatusCompleted, o.Status)
		assert.Empty(t, o.FailureReason)
	})

	t.Run("aborted claim returns to pending", func(t *testing.T) {
		o := pending(t)
		require.NoError(t, o.BeginConfirmation("pay_3"))
		require.NoError(t, o.AbortConfirmation("store_unavailable"))
		assert.Equal(t, order.StatusPending, o.Status)
		assert.Empty(t, o.PaymentID)
	})

	t.Run("stock unavailable is terminal", func(t *testing.T) {
		o := pending(t)
		require.NoError(t, o.BeginConfirmation("pay_4"))
		require.NoError(t, o.StockUnavailable("out_of_stock"))
		assert.True(t, o.Terminal())
		assert.ErrorIs(t, o.BeginConfirmation("pay_4"), order.ErrInvalidStateTransition)
	})

	t.Run("manual orders reject gateway transitions", func(t *testing.T) {
		o, err := order.NewManual("o1", line(), 500, "INR")
		require.NoError(t, err)
		assert.Equal(t, order.StatusManual, o.Status)
		assert.ErrorIs(t, o.BeginConfirmation("p"), order.ErrInvalidStateTransition)
	})
}
