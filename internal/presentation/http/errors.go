package httppresentation

import (
	"context"
	"errors"
	"net/http"

	"github.com/Zhima-Mochi/sweetshop/internal/application/checkout"
	domorder "github.com/Zhima-Mochi/sweetshop/internal/domain/order"
	dompay "github.com/Zhima-Mochi/sweetshop/internal/domain/payment"
	domsweet "github.com/Zhima-Mochi/sweetshop/internal/domain/sweet"
)

type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Field   string `json:"field,omitempty"`
	// Available and Unit are set on INSUFFICIENT_STOCK.
	Available            string `json:"available,omitempty"`
	Unit                 string `json:"unit,omitempty"`
	ManualOrderAvailable bool   `json:"manual_order_available,omitempty"`
	OrderStatus          string `json:"order_status,omitempty"`
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, errorResponse{Error: code, Message: message})
}

func writeBadRequest(w http.ResponseWriter, err error) {
	writeError(w, http.StatusBadRequest, "BAD_REQUEST", err.Error())
}

func writeDomainError(w http.ResponseWriter, err error) {
	var (
		validation   *domsweet.ValidationError
		insufficient *domsweet.InsufficientStockError
	)
	body := errorResponse{Message: err.Error()}
	status := http.StatusInternalServerError

	// refund first: it wraps the stock error that caused it
	switch {
	case errors.Is(err, checkout.ErrRefundRequired):
		status, body.Error = http.StatusConflict, "REFUND_REQUIRED"
		body.OrderStatus = string(domorder.StatusStockUnavailable)
	case errors.Is(err, checkout.ErrConfirmationInProgress):
		status, body.Error = http.StatusConflict, "CONFIRMATION_IN_PROGRESS"
	case errors.Is(err, domorder.ErrInvalidStateTransition):
		status, body.Error = http.StatusConflict, "INVALID_ORDER_STATE"
	case errors.As(err, &validation):
		status, body.Error = http.StatusBadRequest, "VALIDATION_FAILED"
		body.Field = validation.Field
	case errors.Is(err, domsweet.ErrValidation):
		status, body.Error = http.StatusBadRequest, "VALIDATION_FAILED"
	case errors.Is(err, domsweet.ErrDuplicateName):
		status, body.Error = http.StatusConflict, "DUPLICATE_NAME"
	case errors.Is(err, domsweet.ErrNotFound):
		status, body.Error = http.StatusNotFound, "NOT_FOUND"
		body.Message = "Sweet not found"
	case errors.Is(err, domorder.ErrNotFound):
		status, body.Error = http.StatusNotFound, "NOT_FOUND"
		body.Message = "Order not found"
	case errors.Is(err, domsweet.ErrOutOfStock):
		status, body.Error = http.StatusConflict, "OUT_OF_STOCK"
		body.Message = "Sweet is out of stock"
	case errors.As(err, &insufficient):
		status, body.Error = http.StatusConflict, "INSUFFICIENT_STOCK"
		body.Available = insufficient.Available.String()
		body.Unit = string(insufficient.Unit)
		body.Message = "Only " + body.Available + " " + body.Unit + " available"
	case errors.Is(err, domsweet.ErrConcurrentChange):
		status, body.Error = http.StatusConflict, "CONCURRENT_UPDATE"
		body.Message = "Sweet changed while the request was applied, try again"
	case errors.Is(err, domsweet.ErrStoreUnavailable):
		status, body.Error = http.StatusServiceUnavailable, "STORE_UNAVAILABLE"
		body.Message = "inventory store unavailable, try again"
	case errors.Is(err, dompay.ErrGatewayUnavailable):
		status, body.Error = http.StatusServiceUnavailable, "GATEWAY_UNAVAILABLE"
		body.Message = "Payment gateway unavailable. You can place a manual order instead."
		body.ManualOrderAvailable = true
	case errors.Is(err, dompay.ErrInvalidSignature):
		status, body.Error = http.StatusBadRequest, "INVALID_SIGNATURE"
		body.Message = "Payment verification failed - Invalid signature"
	case errors.Is(err, dompay.ErrGatewayRejected):
		status, body.Error = http.StatusBadGateway, "GATEWAY_REJECTED"
	case errors.Is(err, context.DeadlineExceeded):
		status, body.Error = http.StatusGatewayTimeout, "TIMEOUT"
	case errors.Is(err, context.Canceled):
		status, body.Error = http.StatusServiceUnavailable, "CANCELED"
	default:
		body.Error, body.Message = "INTERNAL", "internal error"
	}
	writeJSON(w, status, body)
}
