package httppresentation

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/shopspring/decimal"

	appsweet "github.com/Zhima-Mochi/sweetshop/internal/application/sweet"
	domsweet "github.com/Zhima-Mochi/sweetshop/internal/domain/sweet"
)

// sweetResponse keeps the field names existing clients read; decimals are emitted as JSON numbers.
type sweetResponse struct {
	ID           string      `json:"_id"`
	Name         string      `json:"name"`
	Category     string      `json:"category"`
	Price        json.Number `json:"price"`
	Quantity     json.Number `json:"quantity"`
	QuantityUnit string      `json:"quantityUnit"`
	Image        string      `json:"image"`
	CreatedAt    time.Time   `json:"createdAt"`
	UpdatedAt    time.Time   `json:"updatedAt"`
}

func toSweetResponse(s *domsweet.Sweet) sweetResponse {
	return sweetResponse{
		ID:           s.ID,
		Name:         s.Name,
		Category:     s.Category,
		Price:        json.Number(s.Price.String()),
		Quantity:     json.Number(s.Quantity.String()),
		QuantityUnit: string(s.QuantityUnit),
		Image:        s.Image,
		CreatedAt:    s.CreatedAt,
		UpdatedAt:    s.UpdatedAt,
	}
}

func toSweetList(sweets []*domsweet.Sweet) []sweetResponse {
	out := make([]sweetResponse, len(sweets))
	for i, s := range sweets {
		out[i] = toSweetResponse(s)
	}
	return out
}

func (h *Handler) handleListSweets(w http.ResponseWriter, r *http.Request) {
	sweets, err := h.ledger.List(r.Context())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toSweetList(sweets))
}

func (h *Handler) handleSearchSweets(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	in := appsweet.SearchInput{
		Name:     strings.TrimSpace(q.Get("name")),
		Category: strings.TrimSpace(q.Get("category")),
	}
	var err error
	if in.MinPrice, err = queryDecimal(q.Get("minPrice"), "minPrice"); err != nil {
		writeDomainError(w, err)
		return
	}
	if in.MaxPrice, err = queryDecimal(q.Get("maxPrice"), "maxPrice"); err != nil {
		writeDomainError(w, err)
		return
	}

	sweets, err := h.ledger.Search(r.Context(), in)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toSweetList(sweets))
}

func (h *Handler) handleGetSweet(w http.ResponseWriter, r *http.Request) {
	s, err := h.ledger.Get(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toSweetResponse(s))
}

type createSweetRequest struct {
	Name         string           `json:"name"`
	Category     string           `json:"category"`
	Price        *decimal.Decimal `json:"price"`
	Quantity     *decimal.Decimal `json:"quantity"`
	QuantityUnit string           `json:"quantityUnit"`
	Image        string           `json:"image"`
}

func (h *Handler) handleCreateSweet(w http.ResponseWriter, r *http.Request) {
	var req createSweetRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeBadRequest(w, err)
		return
	}
	switch {
	case req.Price == nil:
		writeDomainError(w, &domsweet.ValidationError{Field: "price", Message: "is required"})
		return
	case req.Quantity == nil:
		writeDomainError(w, &domsweet.ValidationError{Field: "quantity", Message: "is required"})
		return
	}

	s, err := h.ledger.Create(r.Context(), appsweet.CreateInput{
		Name:         req.Name,
		Category:     req.Category,
		Price:        *req.Price,
		Quantity:     *req.Quantity,
		QuantityUnit: req.QuantityUnit,
		Image:        req.Image,
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toSweetResponse(s))
}

type updateSweetRequest struct {
	Name         *string          `json:"name"`
	Category     *string          `json:"category"`
	Price        *decimal.Decimal `json:"price"`
	Quantity     *decimal.Decimal `json:"quantity"`
	QuantityUnit *string          `json:"quantityUnit"`
	Image        *string          `json:"image"`
}

func (h *Handler) handleUpdateSweet(w http.ResponseWriter, r *http.Request) {
	var req updateSweetRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeBadRequest(w, err)
		return
	}
	s, err := h.ledger.Update(r.Context(), appsweet.UpdateInput{
		ID:           mux.Vars(r)["id"],
		Name:         req.Name,
		Category:     req.Category,
		Price:        req.Price,
		Quantity:     req.Quantity,
		QuantityUnit: req.QuantityUnit,
		Image:        req.Image,
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toSweetResponse(s))
}

func (h *Handler) handleDeleteSweet(w http.ResponseWriter, r *http.Request) {
	if err := h.ledger.Delete(r.Context(), mux.Vars(r)["id"]); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Sweet deleted successfully"})
}

type quantityRequest struct {
	Quantity *decimal.Decimal `json:"quantity"`
}

func (h *Handler) handlePurchase(w http.ResponseWriter, r *http.Request) {
	var req quantityRequest
	if err := decodeOptionalJSON(w, r, &req); err != nil {
		writeBadRequest(w, err)
		return
	}
	s, err := h.ledger.Purchase(r.Context(), appsweet.PurchaseInput{ID: mux.Vars(r)["id"], Quantity: req.Quantity})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toSweetResponse(s))
}

func (h *Handler) handleRestock(w http.ResponseWriter, r *http.Request) {
	var req quantityRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeBadRequest(w, err)
		return
	}
	if req.Quantity == nil {
		writeDomainError(w, &domsweet.ValidationError{Field: "quantity", Message: "is required"})
		return
	}
	s, err := h.ledger.Restock(r.Context(), appsweet.RestockInput{ID: mux.Vars(r)["id"], Quantity: *req.Quantity})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toSweetResponse(s))
}

func queryDecimal(raw, field string) (*decimal.Decimal, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return nil, &domsweet.ValidationError{Field: field, Message: "must be a number"}
	}
	return &d, nil
}
