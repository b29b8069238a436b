package location

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/MyZenaa/pgpbl-jamubae/pkg/errors"
	"github.com/MyZenaa/pgpbl-jamubae/pkg/httpclient"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	cfg := httpclient.DefaultConfig()
	cfg.MaxRetries = 0
	cb := httpclient.NewCircuitBreakerClient(httpclient.New(cfg), httpclient.DefaultCircuitBreakerConfig("location-test"), logger)

	return NewClient(cb, srv.URL, logger)
}

func TestCurrent(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/position", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"lat":-7.7709,"lng":110.3779,"accuracy_m":12.5}`))
	})

	coord, err := c.Current(context.Background())
	require.NoError(t, err)
	assert.InDelta(t, -7.7709, coord.Lat, 1e-9)
	assert.InDelta(t, 110.3779, coord.Lng, 1e-9)
}

func TestCurrentPermissionDenied(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	})

	_, err := c.Current(context.Background())
	assert.ErrorIs(t, err, ErrPermissionDenied)
}

func TestCurrentNoFix(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"lat":0,"lng":0}`))
	})

	_, err := c.Current(context.Background())
	assert.ErrorIs(t, err, apperrors.ErrUnavailable)
}

func TestCurrentBadPayload(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`not json`))
	})

	_, err := c.Current(context.Background())
	assert.Error(t, err)
}
