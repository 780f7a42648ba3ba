package checkout

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"

	appsweet "github.com/Zhima-Mochi/sweetshop/internal/application/sweet"
	"github.com/Zhima-Mochi/sweetshop/internal/application/usecase"
	domorder "github.com/Zhima-Mochi/sweetshop/internal/domain/order"
	dompay "github.com/Zhima-Mochi/sweetshop/internal/domain/payment"
	domsweet "github.com/Zhima-Mochi/sweetshop/internal/domain/sweet"
	"github.com/Zhima-Mochi/sweetshop/internal/observability"
)

const (
	checkoutService    = "checkout-service"
	useCaseCreate      = "checkout.create"
	useCaseConfirm     = "checkout.confirm"
	useCaseManual      = "checkout.manual_order"
	useCaseGetOrder    = "checkout.get_order"
	gatewayPeer        = "payment_gateway"
	endpointCreate     = "create_order"
	maxReceiptLength   = 40
	DefaultCurrency    = "INR"
	reasonBadSignature = "invalid_signature"
)

var (
	// ErrRefundRequired wraps the stock error of a paid order that could not be fulfilled.
	ErrRefundRequired = errors.New("checkout: payment captured but stock unavailable, refund required")
	// ErrConfirmationInProgress is returned while another request holds the order claim.
	ErrConfirmationInProgress = errors.New("checkout: confirmation already in progress")
)

// minorUnits is the number of minor units per major unit; every supported currency uses two decimals.
var minorUnits = decimal.NewFromInt(100)

type Service struct {
	ledger   Ledger
	orders   domorder.Repository
	gateway  dompay.Gateway
	ids      IDGenerator
	now      func() time.Time
	currency string
	in       usecase.Instruments
}

type Option func(*Service)

// WithCurrency sets the currency used when a request names none and for manual orders.
func WithCurrency(code string) Option {
	return func(s *Service) {
		if c := strings.ToUpper(strings.TrimSpace(code)); c != "" {
			s.currency = c
		}
	}
}

func NewService(ledger Ledger, orders domorder.Repository, gateway dompay.Gateway, ids IDGenerator, tel observability.Observability, opts ...Option) *Service {
	s := &Service{
		ledger:   ledger,
		orders:   orders,
		gateway:  gateway,
		ids:      ids,
		now:      time.Now,
		currency: DefaultCurrency,
		in:       usecase.NewInstruments(tel, checkoutService, statusOf),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

type CreateInput struct {
	CustomerID string
	SweetID    string
	// Quantity defaults to one when nil.
	Quantity *decimal.Decimal
	Currency string
}

type CreateResult struct {
	Order        *domorder.Order
	GatewayOrder *dompay.GatewayOrder
}

// CreateCheckout checks stock, opens a gateway order and records it as pending.
// Stock is not reserved here; ConfirmPayment re-checks it atomically.
func (s *Service) CreateCheckout(ctx context.Context, in CreateInput) (_ *CreateResult, err error) {
	ctx, scope := s.in.Begin(ctx, useCaseCreate, "CreateCheckout",
		observability.F("sweet_id", in.SweetID),
		observability.F("customer_id", in.CustomerID),
	)
	defer func() { scope.End(err) }()

	if strings.TrimSpace(in.SweetID) == "" {
		return nil, &domsweet.ValidationError{Field: "sweetId", Message: "is required"}
	}
	currency := strings.ToUpper(strings.TrimSpace(in.Currency))
	if currency == "" {
		currency = s.currency
	}

	sw, err := s.ledger.Get(ctx, in.SweetID)
	if err != nil {
		return nil, err
	}
	qty, err := requestedQuantity(in.Quantity, sw.QuantityUnit)
	if err != nil {
		return nil, err
	}
	if sw.Quantity.LessThan(qty) {
		return nil, domsweet.StockError(sw.Quantity, sw.QuantityUnit)
	}

	amount := sw.Price.Mul(qty).Mul(minorUnits).Round(0).IntPart()
	if amount <= 0 {
		return nil, &domsweet.ValidationError{Field: "price", Message: "order total is below the smallest payable amount"}
	}
	req := dompay.OrderRequest{
		Amount:   amount,
		Currency: currency,
		Receipt:  receipt(sw.ID, s.now()),
		Notes: map[string]string{
			"sweetId":   sw.ID,
			"sweetName": sw.Name,
			"userId":    in.CustomerID,
			"quantity":  qty.String(),
		},
	}

	var gwOrder *dompay.GatewayOrder
	err = s.in.External(gatewayPeer, endpointCreate, func() error {
		var gerr error
		gwOrder, gerr = s.gateway.CreateOrder(ctx, req)
		return gerr
	})
	if err != nil {
		return nil, fmt.Errorf("checkout: %s create order: %w", s.gateway.Name(), err)
	}

	o, err := domorder.NewPending(s.ids.NewID(), domorder.Line{
		CustomerID: in.CustomerID,
		SweetID:    sw.ID,
		SweetName:  sw.Name,
		Quantity:   qty,
		Unit:       string(sw.QuantityUnit),
	}, gwOrder.Amount, gwOrder.Currency, gwOrder.ID)
	if err != nil {
		return nil, fmt.Errorf("checkout: construct order: %w", err)
	}
	if err := s.orders.Insert(ctx, o); err != nil {
		return nil, fmt.Errorf("checkout: save order: %w", err)
	}

	scope.Note("order_id", o.ID)
	scope.Note("gateway_order_id", gwOrder.ID)
	scope.Note("amount", amount)
	return &CreateResult{Order: o, GatewayOrder: gwOrder}, nil
}

type ConfirmInput struct {
	CustomerID     string
	GatewayOrderID string
	PaymentID      string
	Signature      string
}

type ConfirmResult struct {
	Order *domorder.Order
	// Sweet is the record after the purchase; nil on replays.
	Sweet *domsweet.Sweet
}

// ConfirmPayment verifies the gateway signature and then purchases the stock.
// A completed order is returned unchanged when confirmed again.
func (s *Service) ConfirmPayment(ctx context.Context, in ConfirmInput) (_ *ConfirmResult, err error) {
	ctx, scope := s.in.Begin(ctx, useCaseConfirm, "ConfirmPayment",
		observability.F("gateway_order_id", in.GatewayOrderID),
		observability.F("customer_id", in.CustomerID),
	)
	defer func() { scope.End(err) }()

	switch {
	case in.GatewayOrderID == "":
		return nil, &domsweet.ValidationError{Field: "razorpay_order_id", Message: "is required"}
	case in.PaymentID == "":
		return nil, &domsweet.ValidationError{Field: "razorpay_payment_id", Message: "is required"}
	case in.Signature == "":
		return nil, &domsweet.ValidationError{Field: "razorpay_signature", Message: "is required"}
	}

	o, err := s.orders.FindByGatewayOrderID(ctx, in.GatewayOrderID)
	if err != nil {
		return nil, err
	}
	if in.CustomerID != "" && o.CustomerID != in.CustomerID {
		return nil, domorder.ErrNotFound
	}
	scope.Note("order_id", o.ID)

	switch o.Status {
	case domorder.StatusCompleted:
		scope.SetStatus("IDEMPOTENT_REPLAY")
		return &ConfirmResult{Order: o}, nil
	case domorder.StatusStockUnavailable:
		return &ConfirmResult{Order: o}, fmt.Errorf("%w: %s", ErrRefundRequired, o.FailureReason)
	case domorder.StatusConfirming:
		return &ConfirmResult{Order: o}, ErrConfirmationInProgress
	}

	if verr := s.gateway.VerifySignature(dompay.Confirmation{
		OrderID:   in.GatewayOrderID,
		PaymentID: in.PaymentID,
		Signature: in.Signature,
	}); verr != nil {
		prev := o.Status
		if terr := o.PaymentRejected(reasonBadSignature); terr == nil {
			if uerr := s.orders.Update(ctx, o, prev); uerr != nil {
				scope.Note("order_update_error", uerr.Error())
			}
		}
		return &ConfirmResult{Order: o}, verr
	}

	prev := o.Status
	if err := o.BeginConfirmation(in.PaymentID); err != nil {
		return nil, err
	}
	if err := s.orders.Update(ctx, o, prev); err != nil {
		if errors.Is(err, domorder.ErrConflict) {
			return nil, ErrConfirmationInProgress
		}
		return nil, fmt.Errorf("checkout: claim order: %w", err)
	}
	scope.Event("order.claimed", attribute.String("order.id", o.ID))

	qty := o.Quantity
	sw, perr := s.ledger.Purchase(ctx, appsweet.PurchaseInput{ID: o.SweetID, Quantity: &qty})
	switch {
	case perr == nil:
		if err := o.PaymentConfirmed(); err != nil {
			return nil, err
		}
	case isStockFailure(perr):
		if err := o.StockUnavailable(reasonFor(perr)); err != nil {
			return nil, err
		}
	default:
		_ = o.AbortConfirmation(reasonFor(perr))
	}

	if err := s.orders.Update(ctx, o, domorder.StatusConfirming); err != nil {
		if perr == nil {
			// stock is taken; the order stays confirming until an operator reconciles it
			scope.Note("order_update_error", err.Error())
			return &ConfirmResult{Order: o, Sweet: sw}, nil
		}
		return nil, fmt.Errorf("checkout: update order: %w", err)
	}

	switch {
	case perr == nil:
		return &ConfirmResult{Order: o, Sweet: sw}, nil
	case isStockFailure(perr):
		return &ConfirmResult{Order: o}, fmt.Errorf("%w: %w", ErrRefundRequired, perr)
	default:
		return nil, perr
	}
}

type ManualInput struct {
	CustomerID string
	SweetID    string
	Quantity   *decimal.Decimal
}

type ManualResult struct {
	Order        *domorder.Order
	Sweet        *domsweet.Sweet
	Confirmation string
}

// PlaceManualOrder reserves stock through the ledger and records an order to be paid offline.
func (s *Service) PlaceManualOrder(ctx context.Context, in ManualInput) (_ *ManualResult, err error) {
	ctx, scope := s.in.Begin(ctx, useCaseManual, "PlaceManualOrder",
		observability.F("sweet_id", in.SweetID),
		observability.F("customer_id", in.CustomerID),
	)
	defer func() { scope.End(err) }()

	res, err := s.ledger.ManualOrder(ctx, appsweet.ManualOrderInput{ID: in.SweetID, Quantity: in.Quantity})
	if err != nil {
		return nil, err
	}

	amount := res.Sweet.Price.Mul(res.Quantity).Mul(minorUnits).Round(0).IntPart()
	o, err := domorder.NewManual(s.ids.NewID(), domorder.Line{
		CustomerID: in.CustomerID,
		SweetID:    res.Sweet.ID,
		SweetName:  res.Sweet.Name,
		Quantity:   res.Quantity,
		Unit:       string(res.Sweet.QuantityUnit),
	}, amount, s.currency)
	if err != nil {
		return nil, fmt.Errorf("checkout: construct order: %w", err)
	}
	if err := s.orders.Insert(ctx, o); err != nil {
		// stock is already reserved; the confirmation stands without an order record
		scope.Note("order_insert_error", err.Error())
		return &ManualResult{Sweet: res.Sweet, Confirmation: res.Confirmation}, nil
	}

	scope.Note("order_id", o.ID)
	return &ManualResult{Order: o, Sweet: res.Sweet, Confirmation: res.Confirmation}, nil
}

// GetOrder returns an order owned by customerID; admins pass an empty customerID.
func (s *Service) GetOrder(ctx context.Context, id, customerID string) (_ *domorder.Order, err error) {
	ctx, scope := s.in.Begin(ctx, useCaseGetOrder, "GetOrder", observability.F("order_id", id))
	defer func() { scope.End(err) }()

	o, err := s.orders.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if customerID != "" && o.CustomerID != customerID {
		return nil, domorder.ErrNotFound
	}
	return o, nil
}

func requestedQuantity(q *decimal.Decimal, unit domsweet.Unit) (decimal.Decimal, error) {
	qty := decimal.NewFromInt(1)
	if q != nil {
		qty = *q
	}
	if !qty.IsPositive() {
		return decimal.Zero, &domsweet.ValidationError{Field: "quantity", Message: "must be greater than zero"}
	}
	qty = domsweet.NormalizeQuantity(qty, unit)
	if !qty.IsPositive() {
		return decimal.Zero, &domsweet.ValidationError{Field: "quantity", Message: "rounds to zero pieces"}
	}
	return qty, nil
}

func receipt(sweetID string, now time.Time) string {
	r := "sweet_" + sweetID + "_" + strconv.FormatInt(now.UnixMilli(), 10)
	if len(r) > maxReceiptLength {
		r = r[len(r)-maxReceiptLength:]
	}
	return r
}

func isStockFailure(err error) bool {
	return errors.Is(err, domsweet.ErrOutOfStock) ||
		errors.Is(err, domsweet.ErrInsufficientStock) ||
		errors.Is(err, domsweet.ErrNotFound)
}

func reasonFor(err error) string {
	switch {
	case errors.Is(err, domsweet.ErrOutOfStock):
		return "out_of_stock"
	case errors.Is(err, domsweet.ErrInsufficientStock):
		return "insufficient_stock"
	case errors.Is(err, domsweet.ErrNotFound):
		return "sweet_removed"
	case errors.Is(err, domsweet.ErrStoreUnavailable):
		return "store_unavailable"
	default:
		return "purchase_failed"
	}
}

func statusOf(err error) string {
	switch {
	case errors.Is(err, ErrRefundRequired):
		return "REFUND_REQUIRED"
	case errors.Is(err, ErrConfirmationInProgress):
		return "CONFIRMATION_IN_PROGRESS"
	case errors.Is(err, dompay.ErrInvalidSignature):
		return "INVALID_SIGNATURE"
	case errors.Is(err, dompay.ErrGatewayUnavailable):
		return "GATEWAY_UNAVAILABLE"
	case errors.Is(err, dompay.ErrGatewayRejected):
		return "GATEWAY_REJECTED"
	case errors.Is(err, domorder.ErrNotFound), errors.Is(err, domsweet.ErrNotFound):
		return "NOT_FOUND"
	case errors.Is(err, domsweet.ErrOutOfStock):
		return "OUT_OF_STOCK"
	case errors.Is(err, domsweet.ErrInsufficientStock):
		return "INSUFFICIENT_STOCK"
	case errors.Is(err, domsweet.ErrValidation):
		return "VALIDATION_FAILED"
	case errors.Is(err, domsweet.ErrStoreUnavailable):
		return "STORE_UNAVAILABLE"
	default:
		return usecase.Status(err)
	}
}
