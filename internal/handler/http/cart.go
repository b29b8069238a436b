package http

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/MyZenaa/pgpbl-jamubae/internal/cart"
	"github.com/MyZenaa/pgpbl-jamubae/internal/domain"
	"github.com/MyZenaa/pgpbl-jamubae/pkg/httputil"
	"github.com/MyZenaa/pgpbl-jamubae/pkg/validator"
)

// CartHandler handles HTTP requests for cart endpoints.
type CartHandler struct {
	service *cart.Service
	logger  *slog.Logger
}

// NewCartHandler creates a new cart HTTP handler.
func NewCartHandler(svc *cart.Service, logger *slog.Logger) *CartHandler {
	return &CartHandler{
		service: svc,
		logger:  logger,
	}
}

// --- Request DTOs ---

// UpsertItemRequest is the JSON request body for adding a product to the cart.
type UpsertItemRequest struct {
	ProductID string `json:"product_id" validate:"required"`
	Name      string `json:"name" validate:"required,min=1,max=500"`
	Price     int64  `json:"price" validate:"gte=0"`
	Image     string `json:"image"`
	RequestID string `json:"request_id"`
}

// SetQuantityRequest is the JSON request body for setting a line's quantity.
type SetQuantityRequest struct {
	Quantity int `json:"quantity" validate:"gte=0"`
}

// CartResponse is the cart payload returned by every cart endpoint.
type CartResponse struct {
	Items    []domain.LineItem `json:"items"`
	Subtotal int64             `json:"subtotal"`
}

// --- Handlers ---

// GetCart handles GET /api/v1/cart
func (h *CartHandler) GetCart(w http.ResponseWriter, r *http.Request) {
	items, err := h.service.Items(r.Context())
	if err != nil {
		writeError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: cartResponse(items)})
}

// UpsertItem handles POST /api/v1/cart/items
func (h *CartHandler) UpsertItem(w http.ResponseWriter, r *http.Request) {
	var req UpsertItemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteJSON(w, http.StatusBadRequest, httputil.Response{
			Error: &httputil.ErrorResponse{Code: "INVALID_INPUT", Message: "invalid request body: " + err.Error()},
		})
		return
	}

	if err := validator.Validate(req); err != nil {
		httputil.WriteValidationError(w, err)
		return
	}

	err := h.service.Upsert(r.Context(), cart.UpsertInput{
		ProductID: req.ProductID,
		Name:      req.Name,
		Price:     req.Price,
		Image:     req.Image,
		RequestID: req.RequestID,
	})
	if err != nil {
		writeError(w, r, err, h.logger)
		return
	}

	h.writeCart(w, r)
}

// SetQuantity handles PUT /api/v1/cart/items/{productID}
func (h *CartHandler) SetQuantity(w http.ResponseWriter, r *http.Request) {
	productID := chi.URLParam(r, "productID")

	var req SetQuantityRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteJSON(w, http.StatusBadRequest, httputil.Response{
			Error: &httputil.ErrorResponse{Code: "INVALID_INPUT", Message: "invalid request body: " + err.Error()},
		})
		return
	}

	if err := validator.Validate(req); err != nil {
		httputil.WriteValidationError(w, err)
		return
	}

	if err := h.service.SetQuantity(r.Context(), productID, req.Quantity); err != nil {
		writeError(w, r, err, h.logger)
		return
	}

	h.writeCart(w, r)
}

// RemoveItem handles DELETE /api/v1/cart/items/{productID}
func (h *CartHandler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	productID := chi.URLParam(r, "productID")

	if err := h.service.Remove(r.Context(), productID); err != nil {
		writeError(w, r, err, h.logger)
		return
	}

	h.writeCart(w, r)
}

// ClearCart handles DELETE /api/v1/cart
func (h *CartHandler) ClearCart(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Clear(r.Context()); err != nil {
		writeError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: map[string]string{"status": "cleared"}})
}

// StreamCart handles GET /api/v1/cart/stream, pushing a cart snapshot over
// SSE on every change.
func (h *CartHandler) StreamCart(w http.ResponseWriter, r *http.Request) {
	streamSSE(w, r, h.logger, func(send func(v any)) (unsubscribe func(), err error) {
		sub, err := h.service.Subscribe(func(items []domain.LineItem) {
			send(cartResponse(items))
		})
		if err != nil {
			return nil, err
		}
		return sub.Unsubscribe, nil
	})
}

func (h *CartHandler) writeCart(w http.ResponseWriter, r *http.Request) {
	items, err := h.service.Items(r.Context())
	if err != nil {
		writeError(w, r, err, h.logger)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: cartResponse(items)})
}

func cartResponse(items []domain.LineItem) CartResponse {
	if items == nil {
		items = []domain.LineItem{}
	}
	return CartResponse{
		Items:    items,
		Subtotal: domain.ComputeSubtotal(items),
	}
}
