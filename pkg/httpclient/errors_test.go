package httpclient

import (
	"errors"
	"io"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/MyZenaa/pgpbl-jamubae/pkg/errors"
)

func makeResponse(status int, body string) *http.Response {
	return &http.Response{
		StatusCode: status,
		Body:       io.NopCloser(strings.NewReader(body)),
	}
}

func TestParseResponseError_StructuredNotFound(t *testing.T) {
	resp := makeResponse(http.StatusNotFound,
		`{"error":{"code":"NOT_FOUND","message":"order abc not found"}}`)

	err := ParseResponseError(resp, "order-service")
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperrors.ErrNotFound))
}

func TestParseResponseError_StructuredInvalidInput(t *testing.T) {
	resp := makeResponse(http.StatusBadRequest,
		`{"error":{"code":"INVALID_INPUT","message":"quantity must be positive"}}`)

	err := ParseResponseError(resp, "cart-service")
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperrors.ErrInvalidInput))
	assert.Contains(t, err.Error(), "cart-service")
	assert.Contains(t, err.Error(), "quantity must be positive")
}

func TestParseResponseError_StructuredConflict(t *testing.T) {
	resp := makeResponse(http.StatusConflict,
		`{"error":{"code":"CONFLICT","message":"order already completed"}}`)

	err := ParseResponseError(resp, "order-service")
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperrors.ErrConflict))
}

func TestParseResponseError_ServerError(t *testing.T) {
	resp := makeResponse(http.StatusServiceUnavailable,
		`{"error":{"code":"UNAVAILABLE","message":"redis down"}}`)

	err := ParseResponseError(resp, "geolocation")
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperrors.ErrUnavailable))
}

func TestParseResponseError_UnstructuredBody(t *testing.T) {
	resp := makeResponse(http.StatusBadGateway, "upstream timeout")

	err := ParseResponseError(resp, "geolocation")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "geolocation")
	assert.Contains(t, err.Error(), "502")
	assert.Contains(t, err.Error(), "upstream timeout")
}

func TestParseResponseError_UnknownStatusPreservesCode(t *testing.T) {
	resp := makeResponse(http.StatusForbidden,
		`{"error":{"code":"PERMISSION_DENIED","message":"location access denied"}}`)

	err := ParseResponseError(resp, "geolocation")
	require.Error(t, err)

	var appErr *apperrors.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, "PERMISSION_DENIED", appErr.Code)
	assert.Equal(t, http.StatusForbidden, appErr.Status)
}

func TestIsClientError(t *testing.T) {
	assert.True(t, IsClientError(400))
	assert.True(t, IsClientError(404))
	assert.True(t, IsClientError(499))
	assert.False(t, IsClientError(399))
	assert.False(t, IsClientError(500))
	assert.False(t, IsClientError(200))
}
