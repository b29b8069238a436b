package http

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/MyZenaa/pgpbl-jamubae/internal/domain"
	"github.com/MyZenaa/pgpbl-jamubae/internal/geo"
	"github.com/MyZenaa/pgpbl-jamubae/internal/order"
	"github.com/MyZenaa/pgpbl-jamubae/pkg/httputil"
	"github.com/MyZenaa/pgpbl-jamubae/pkg/validator"
)

// OrderHandler handles HTTP requests for checkout and order endpoints.
type OrderHandler struct {
	service *order.Service
	logger  *slog.Logger
}

// NewOrderHandler creates a new order HTTP handler.
func NewOrderHandler(svc *order.Service, logger *slog.Logger) *OrderHandler {
	return &OrderHandler{
		service: svc,
		logger:  logger,
	}
}

// --- Request DTOs ---

// CheckoutRequest is the JSON request body for placing an order.
type CheckoutRequest struct {
	CustomerName  string  `json:"customer_name" validate:"required,min=1,max=200"`
	CustomerPhone string  `json:"customer_phone" validate:"required,min=5,max=30"`
	Method        string  `json:"method" validate:"required,oneof=pickup delivery"`
	Address       string  `json:"address"`
	Lat           float64 `json:"lat"`
	Lng           float64 `json:"lng"`
	Note          string  `json:"note" validate:"max=1000"`
}

// EditOrderRequest is the JSON request body for replacing an order's content.
type EditOrderRequest struct {
	CustomerName  string            `json:"customer_name" validate:"required,min=1,max=200"`
	CustomerPhone string            `json:"customer_phone" validate:"required,min=5,max=30"`
	Items         []domain.LineItem `json:"items" validate:"required,min=1,dive"`
	Method        string            `json:"method" validate:"required,oneof=pickup delivery"`
	Address       string            `json:"address"`
	Lat           float64           `json:"lat"`
	Lng           float64           `json:"lng"`
	Note          string            `json:"note" validate:"max=1000"`
}

// --- Handlers ---

// Checkout handles POST /api/v1/orders
func (h *OrderHandler) Checkout(w http.ResponseWriter, r *http.Request) {
	var req CheckoutRequest
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

	placed, err := h.service.Checkout(r.Context(), order.CheckoutInput{
		CustomerName:  req.CustomerName,
		CustomerPhone: req.CustomerPhone,
		Method:        domain.Method(req.Method),
		Address:       req.Address,
		Coordinate:    geo.Coordinate{Lat: req.Lat, Lng: req.Lng},
		Note:          req.Note,
	})
	if err != nil {
		writeError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusCreated, httputil.Response{Data: placed})
}

// ListOrders handles GET /api/v1/orders
func (h *OrderHandler) ListOrders(w http.ResponseWriter, r *http.Request) {
	orders, err := h.service.List(r.Context())
	if err != nil {
		writeError(w, r, err, h.logger)
		return
	}
	if orders == nil {
		orders = []domain.Order{}
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: orders})
}

// GetOrder handles GET /api/v1/orders/{orderID}
func (h *OrderHandler) GetOrder(w http.ResponseWriter, r *http.Request) {
	o, err := h.service.Get(r.Context(), chi.URLParam(r, "orderID"))
	if err != nil {
		writeError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: o})
}

// AdvanceOrder handles POST /api/v1/orders/{orderID}/advance
func (h *OrderHandler) AdvanceOrder(w http.ResponseWriter, r *http.Request) {
	o, err := h.service.Advance(r.Context(), chi.URLParam(r, "orderID"))
	if err != nil {
		writeError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: o})
}

// EditOrder handles PUT /api/v1/orders/{orderID}
func (h *OrderHandler) EditOrder(w http.ResponseWriter, r *http.Request) {
	var req EditOrderRequest
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

	o, err := h.service.Edit(r.Context(), chi.URLParam(r, "orderID"), order.EditInput{
		CustomerName:  req.CustomerName,
		CustomerPhone: req.CustomerPhone,
		Items:         req.Items,
		Method:        domain.Method(req.Method),
		Address:       req.Address,
		Coordinate:    geo.Coordinate{Lat: req.Lat, Lng: req.Lng},
		Note:          req.Note,
	})
	if err != nil {
		writeError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: o})
}

// DeleteOrder handles DELETE /api/v1/orders/{orderID}
func (h *OrderHandler) DeleteOrder(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Delete(r.Context(), chi.URLParam(r, "orderID")); err != nil {
		writeError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: map[string]string{"status": "deleted"}})
}

// StreamOrders handles GET /api/v1/orders/stream, pushing the full order
// list over SSE on every change.
func (h *OrderHandler) StreamOrders(w http.ResponseWriter, r *http.Request) {
	streamSSE(w, r, h.logger, func(send func(v any)) (func(), error) {
		sub, err := h.service.WatchAll(func(orders []domain.Order) {
			if orders == nil {
				orders = []domain.Order{}
			}
			send(orders)
		})
		if err != nil {
			return nil, err
		}
		return sub.Unsubscribe, nil
	})
}

// StreamOrder handles GET /api/v1/orders/{orderID}/stream, following one
// order. A deleted order streams as a null payload.
func (h *OrderHandler) StreamOrder(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "orderID")
	streamSSE(w, r, h.logger, func(send func(v any)) (func(), error) {
		sub, err := h.service.Watch(orderID, func(o *domain.Order) {
			send(o)
		})
		if err != nil {
			return nil, err
		}
		return sub.Unsubscribe, nil
	})
}
