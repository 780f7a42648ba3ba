package order

import (
	"errors"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

var (
	ErrNotFound               = errors.New("order: not found")
	ErrConflict               = errors.New("order: already exists")
	ErrInvalidQuantity        = errors.New("order: quantity must be greater than zero")
	ErrInvalidAmount          = errors.New("order: amount must be zero or greater")
	ErrInvalidStateTransition = errors.New("order: invalid state transition")
)

type Status string

const (
	StatusPending          Status = "pending"
	StatusConfirming       Status = "confirming"
	StatusCompleted        Status = "completed"
	StatusPaymentFailed    Status = "payment_failed"
	StatusStockUnavailable Status = "stock_unavailable"
	StatusManual           Status = "manual"
)

// Order records one checkout attempt for a single sweet.
type Order struct {
	ID             string
	CustomerID     string
	SweetID        string
	SweetName      string
	Quantity       decimal.Decimal
	Unit           string
	Amount         int64
	Currency       string
	GatewayOrderID string
	PaymentID      string
	Status         Status
	FailureReason  string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Line identifies what is being bought.
type Line struct {
	CustomerID string
	SweetID    string
	SweetName  string
	Quantity   decimal.Decimal
	Unit       string
}

func (l Line) validate() error {
	if strings.TrimSpace(l.SweetID) == "" {
		return errors.New("order: sweet id is required")
	}
	if !l.Quantity.IsPositive() {
		return ErrInvalidQuantity
	}
	return nil
}

// NewPending opens an order awaiting gateway confirmation.
func NewPending(id string, line Line, amount int64, currency, gatewayOrderID string) (*Order, error) {
	if err := line.validate(); err != nil {
		return nil, err
	}
	if amount < 0 {
		return nil, ErrInvalidAmount
	}
	if gatewayOrderID == "" {
		return nil, errors.New("order: gateway order id is required")
	}
	o := newOrder(id, line, StatusPending)
	o.Amount = amount
	o.Currency = currency
	o.GatewayOrderID = gatewayOrderID
	return o, nil
}

// NewManual records stock reserved without an online payment.
func NewManual(id string, line Line, amount int64, currency string) (*Order, error) {
	if err := line.validate(); err != nil {
		return nil, err
	}
	if amount < 0 {
		return nil, ErrInvalidAmount
	}
	o := newOrder(id, line, StatusManual)
	o.Amount = amount
	o.Currency = currency
	return o, nil
}

func newOrder(id string, line Line, status Status) *Order {
	now := time.Now().UTC()
	return &Order{
		ID:         id,
		CustomerID: line.CustomerID,
		SweetID:    line.SweetID,
		SweetName:  line.SweetName,
		Quantity:   line.Quantity,
		Unit:       line.Unit,
		Status:     status,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

// BeginConfirmation claims the order for one confirmation attempt.
func (o *Order) BeginConfirmation(paymentID string) error {
	next, err := stateFor(o.Status).OnConfirmationStarted(o)
	if err != nil {
		return err
	}
	o.PaymentID = paymentID
	o.apply(next)
	return nil
}

// AbortConfirmation releases a claim after an infrastructure failure so the client can retry.
func (o *Order) AbortConfirmation(reason string) error {
	next, err := stateFor(o.Status).OnConfirmationAborted(o, reason)
	if err != nil {
		return err
	}
	o.apply(next)
	return nil
}

// PaymentConfirmed completes a claimed order once stock was taken.
func (o *Order) PaymentConfirmed() error {
	next, err := stateFor(o.Status).OnPaymentConfirmed(o)
	if err != nil {
		return err
	}
	o.apply(next)
	return nil
}

func (o *Order) PaymentRejected(reason string) error {
	next, err := stateFor(o.Status).OnPaymentRejected(o, reason)
	if err != nil {
		return err
	}
	o.apply(next)
	return nil
}

// StockUnavailable marks a paid order whose stock vanished before the decrement; it needs a refund.
func (o *Order) StockUnavailable(reason string) error {
	next, err := stateFor(o.Status).OnStockUnavailable(o, reason)
	if err != nil {
		return err
	}
	o.apply(next)
	return nil
}

func (o *Order) Terminal() bool {
	switch o.Status {
	case StatusCompleted, StatusStockUnavailable, StatusManual:
		return true
	}
	return false
}

func (o *Order) Clone() *Order {
	if o == nil {
		return nil
	}
	clone := *o
	return &clone
}

func (o *Order) apply(s OrderState) {
	o.Status = s.Status()
	o.touch()
}

func (o *Order) touch() {
	o.UpdatedAt = time.Now().UTC()
}
