package httppresentation

import (
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/shopspring/decimal"

	"github.com/Zhima-Mochi/sweetshop/internal/application/checkout"
	domorder "github.com/Zhima-Mochi/sweetshop/internal/domain/order"
)

type orderResponse struct {
	ID             string      `json:"id"`
	Status         string      `json:"status"`
	SweetID        string      `json:"sweetId"`
	SweetName      string      `json:"sweetName"`
	Quantity       json.Number `json:"quantity"`
	Unit           string      `json:"unit"`
	Amount         int64       `json:"amount"`
	Currency       string      `json:"currency"`
	GatewayOrderID string      `json:"gatewayOrderId,omitempty"`
	PaymentID      string      `json:"paymentId,omitempty"`
	FailureReason  string      `json:"failureReason,omitempty"`
	CreatedAt      time.Time   `json:"createdAt"`
	UpdatedAt      time.Time   `json:"updatedAt"`
}

func toOrderResponse(o *domorder.Order) *orderResponse {
	if o == nil {
		return nil
	}
	return &orderResponse{
		ID:             o.ID,
		Status:         string(o.Status),
		SweetID:        o.SweetID,
		SweetName:      o.SweetName,
		Quantity:       json.Number(o.Quantity.String()),
		Unit:           o.Unit,
		Amount:         o.Amount,
		Currency:       o.Currency,
		GatewayOrderID: o.GatewayOrderID,
		PaymentID:      o.PaymentID,
		FailureReason:  o.FailureReason,
		CreatedAt:      o.CreatedAt,
		UpdatedAt:      o.UpdatedAt,
	}
}

// createPaymentOrderRequest accepts amount and sweetName from older clients;
// the server recomputes both from the stored sweet.
type createPaymentOrderRequest struct {
	SweetID   string           `json:"sweetId"`
	Quantity  *decimal.Decimal `json:"quantity"`
	Currency  string           `json:"currency"`
	Amount    json.Number      `json:"amount"`
	SweetName string           `json:"sweetName"`
}

type createPaymentOrderResponse struct {
	OrderID      string `json:"orderId"`
	Amount       int64  `json:"amount"`
	Currency     string `json:"currency"`
	Receipt      string `json:"receipt"`
	KeyID        string `json:"keyId,omitempty"`
	LocalOrderID string `json:"localOrderId"`
}

func (h *Handler) handleCreatePaymentOrder(w http.ResponseWriter, r *http.Request) {
	var req createPaymentOrderRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeBadRequest(w, err)
		return
	}
	p, _ := principalFromContext(r.Context())

	res, err := h.checkout.CreateCheckout(r.Context(), checkout.CreateInput{
		CustomerID: p.UserID,
		SweetID:    strings.TrimSpace(req.SweetID),
		Quantity:   req.Quantity,
		Currency:   req.Currency,
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, createPaymentOrderResponse{
		OrderID:      res.GatewayOrder.ID,
		Amount:       res.GatewayOrder.Amount,
		Currency:     res.GatewayOrder.Currency,
		Receipt:      res.GatewayOrder.Receipt,
		KeyID:        h.gatewayKeyID,
		LocalOrderID: res.Order.ID,
	})
}

// verifyPaymentRequest tolerates the sweetId and quantity older clients send; the stored order is authoritative.
type verifyPaymentRequest struct {
	OrderID   string          `json:"razorpay_order_id"`
	PaymentID string          `json:"razorpay_payment_id"`
	Signature string          `json:"razorpay_signature"`
	SweetID   string          `json:"sweetId"`
	Quantity  json.RawMessage `json:"quantity"`
}

type verifyPaymentResponse struct {
	Success   bool           `json:"success"`
	Message   string         `json:"message"`
	PaymentID string         `json:"paymentId"`
	OrderID   string         `json:"orderId"`
	Quantity  json.Number    `json:"quantity"`
	Order     *orderResponse `json:"order"`
	Sweet     *sweetResponse `json:"sweet,omitempty"`
}

func (h *Handler) handleVerifyPayment(w http.ResponseWriter, r *http.Request) {
	var req verifyPaymentRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeBadRequest(w, err)
		return
	}
	p, _ := principalFromContext(r.Context())
	customerID := p.UserID
	if p.IsAdmin() {
		customerID = ""
	}

	res, err := h.checkout.ConfirmPayment(r.Context(), checkout.ConfirmInput{
		CustomerID:     customerID,
		GatewayOrderID: strings.TrimSpace(req.OrderID),
		PaymentID:      strings.TrimSpace(req.PaymentID),
		Signature:      strings.TrimSpace(req.Signature),
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}

	out := verifyPaymentResponse{
		Success:   true,
		Message:   "Payment verified successfully",
		PaymentID: res.Order.PaymentID,
		OrderID:   res.Order.GatewayOrderID,
		Quantity:  json.Number(res.Order.Quantity.String()),
		Order:     toOrderResponse(res.Order),
	}
	if res.Sweet != nil {
		s := toSweetResponse(res.Sweet)
		out.Sweet = &s
	}
	writeJSON(w, http.StatusOK, out)
}

type manualOrderResponse struct {
	Success  bool           `json:"success"`
	Message  string         `json:"message"`
	Quantity json.Number    `json:"quantity"`
	Sweet    sweetResponse  `json:"sweet"`
	Order    *orderResponse `json:"order,omitempty"`
}

func (h *Handler) handleManualOrder(w http.ResponseWriter, r *http.Request) {
	qty, err := lenientQuantity(r)
	if err != nil {
		writeBadRequest(w, err)
		return
	}
	p, _ := principalFromContext(r.Context())

	res, err := h.checkout.PlaceManualOrder(r.Context(), checkout.ManualInput{
		CustomerID: p.UserID,
		SweetID:    mux.Vars(r)["id"],
		Quantity:   qty,
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}

	out := manualOrderResponse{
		Success: true,
		Message: res.Confirmation,
		Sweet:   toSweetResponse(res.Sweet),
		Order:   toOrderResponse(res.Order),
	}
	if res.Order != nil {
		out.Quantity = json.Number(res.Order.Quantity.String())
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handler) handleGetOrder(w http.ResponseWriter, r *http.Request) {
	p, _ := principalFromContext(r.Context())
	customerID := p.UserID
	if p.IsAdmin() {
		customerID = ""
	}
	o, err := h.checkout.GetOrder(r.Context(), mux.Vars(r)["id"], customerID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toOrderResponse(o))
}

// lenientQuantity reads {"quantity": ...} where the value may be a number or a
// numeric string. Anything unparsable falls back to nil, which the ledger treats as one.
func lenientQuantity(r *http.Request) (*decimal.Decimal, error) {
	var body struct {
		Quantity json.RawMessage `json:"quantity"`
	}
	raw, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		return nil, err
	}
	if len(strings.TrimSpace(string(raw))) == 0 {
		return nil, nil
	}
	if err := json.Unmarshal(raw, &body); err != nil {
		return nil, err
	}
	s := strings.Trim(strings.TrimSpace(string(body.Quantity)), `"`)
	if s == "" || s == "null" {
		return nil, nil
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return nil, nil
	}
	return &d, nil
}
