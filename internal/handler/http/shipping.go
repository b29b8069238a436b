package http

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/MyZenaa/pgpbl-jamubae/internal/geo"
	"github.com/MyZenaa/pgpbl-jamubae/internal/location"
	"github.com/MyZenaa/pgpbl-jamubae/pkg/httputil"
)

// ShippingHandler quotes delivery cost and resolves the device position.
type ShippingHandler struct {
	origin    geo.Coordinate
	ratePerKm int64
	locations *location.Client
	logger    *slog.Logger
}

// NewShippingHandler creates a shipping and location HTTP handler.
func NewShippingHandler(origin geo.Coordinate, ratePerKm int64, locations *location.Client, logger *slog.Logger) *ShippingHandler {
	return &ShippingHandler{
		origin:    origin,
		ratePerKm: ratePerKm,
		locations: locations,
		logger:    logger,
	}
}

// QuoteResponse is the shipping quote payload.
type QuoteResponse struct {
	DistanceKm   float64 `json:"distance_km"`
	ShippingCost int64   `json:"shipping_cost"`
}

// Quote handles GET /api/v1/shipping/quote?lat=&lng=
func (h *ShippingHandler) Quote(w http.ResponseWriter, r *http.Request) {
	lat, errLat := strconv.ParseFloat(r.URL.Query().Get("lat"), 64)
	lng, errLng := strconv.ParseFloat(r.URL.Query().Get("lng"), 64)
	if errLat != nil || errLng != nil {
		httputil.WriteJSON(w, http.StatusBadRequest, httputil.Response{
			Error: &httputil.ErrorResponse{Code: "INVALID_INPUT", Message: "lat and lng query parameters are required"},
		})
		return
	}

	dest := geo.Coordinate{Lat: lat, Lng: lng}
	if dest.IsZero() {
		httputil.WriteJSON(w, http.StatusBadRequest, httputil.Response{
			Error: &httputil.ErrorResponse{Code: "INVALID_INPUT", Message: "destination coordinate is required"},
		})
		return
	}

	quote := geo.ComputeShipping(h.origin, dest, h.ratePerKm)
	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: QuoteResponse{
		DistanceKm:   quote.DistanceKm,
		ShippingCost: quote.Cost,
	}})
}

// CurrentLocation handles GET /api/v1/location
func (h *ShippingHandler) CurrentLocation(w http.ResponseWriter, r *http.Request) {
	coord, err := h.locations.Current(r.Context())
	if err != nil {
		writeError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: coord})
}
