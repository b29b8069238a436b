// Package location resolves the customer's current position through the
// kiosk's location bridge, a small sidecar exposing the device GPS over HTTP.
package location

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/MyZenaa/pgpbl-jamubae/internal/geo"
	apperrors "github.com/MyZenaa/pgpbl-jamubae/pkg/errors"
	"github.com/MyZenaa/pgpbl-jamubae/pkg/httpclient"
)

// ErrPermissionDenied is returned when the device has location access
// disabled. Callers fall back to picking the point on the map by hand.
var ErrPermissionDenied = apperrors.InvalidInput("location permission denied")

// Position is the bridge's response payload.
type Position struct {
	Lat        float64 `json:"lat"`
	Lng        float64 `json:"lng"`
	AccuracyM  float64 `json:"accuracy_m"`
	ResolvedAt string  `json:"resolved_at"`
}

// Client reads the current device position from the location bridge.
type Client struct {
	http    *httpclient.CircuitBreakerClient
	baseURL string
	logger  *slog.Logger
}

// NewClient creates a location bridge client.
func NewClient(http *httpclient.CircuitBreakerClient, baseURL string, logger *slog.Logger) *Client {
	return &Client{
		http:    http,
		baseURL: baseURL,
		logger:  logger,
	}
}

// Current returns the device's current coordinate.
func (c *Client) Current(ctx context.Context) (geo.Coordinate, error) {
	resp, err := c.http.Get(ctx, c.baseURL+"/v1/position")
	if err != nil {
		return geo.Coordinate{}, fmt.Errorf("location bridge: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusForbidden {
		return geo.Coordinate{}, ErrPermissionDenied
	}
	if resp.StatusCode != http.StatusOK {
		return geo.Coordinate{}, httpclient.ParseResponseError(resp, "location-bridge")
	}

	var pos Position
	if err := json.NewDecoder(resp.Body).Decode(&pos); err != nil {
		return geo.Coordinate{}, fmt.Errorf("decode position: %w", err)
	}

	coord := geo.Coordinate{Lat: pos.Lat, Lng: pos.Lng}
	if coord.IsZero() {
		return geo.Coordinate{}, apperrors.Unavailable("location bridge returned no fix")
	}

	c.logger.DebugContext(ctx, "resolved device position",
		slog.Float64("lat", pos.Lat),
		slog.Float64("lng", pos.Lng),
		slog.Float64("accuracy_m", pos.AccuracyM),
	)

	return coord, nil
}
