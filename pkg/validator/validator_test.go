package validator

import (
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type checkoutForm struct {
	Name  string  `validate:"required"`
	Phone string  `validate:"required,min=8"`
	Mode  string  `validate:"required,oneof=pickup delivery"`
	Lat   float64 `validate:"omitempty,latitude"`
	Lng   float64 `validate:"omitempty,longitude"`
}

func TestValidate_Success(t *testing.T) {
	form := checkoutForm{
		Name:  "Budi Santoso",
		Phone: "081234567890",
		Mode:  "delivery",
		Lat:   -7.771055,
		Lng:   110.384504,
	}
	assert.NoError(t, Validate(form))
}

func TestValidate_RequiredFields(t *testing.T) {
	err := Validate(checkoutForm{Mode: "pickup"})
	require.Error(t, err)

	var valErr *ValidationError
	require.ErrorAs(t, err, &valErr)

	fields := valErr.Fields()
	assert.Equal(t, "is required", fields["Name"])
	assert.Equal(t, "is required", fields["Phone"])
}

func TestValidate_OneOf(t *testing.T) {
	form := checkoutForm{Name: "Budi", Phone: "081234567890", Mode: "teleport"}
	err := Validate(form)
	require.Error(t, err)

	var valErr *ValidationError
	require.ErrorAs(t, err, &valErr)
	assert.Contains(t, valErr.Fields()["Mode"], "must be one of")
}

func TestValidate_Latitude(t *testing.T) {
	form := checkoutForm{Name: "Budi", Phone: "081234567890", Mode: "delivery", Lat: 123.0}
	err := Validate(form)
	require.Error(t, err)

	var valErr *ValidationError
	require.ErrorAs(t, err, &valErr)
	assert.Equal(t, "must be a valid latitude", valErr.Fields()["Lat"])
}

func TestValidationError_ErrorString(t *testing.T) {
	err := Validate(checkoutForm{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "field 'Name' is required")
}

func TestDecodeAndValidate_Success(t *testing.T) {
	body := `{"Name":"Budi","Phone":"081234567890","Mode":"pickup"}`
	r := httptest.NewRequest("POST", "/", strings.NewReader(body))

	var form checkoutForm
	require.NoError(t, DecodeAndValidate(r, &form))
	assert.Equal(t, "Budi", form.Name)
}

func TestDecodeAndValidate_MalformedJSON(t *testing.T) {
	r := httptest.NewRequest("POST", "/", strings.NewReader("{{nope"))

	var form checkoutForm
	err := DecodeAndValidate(r, &form)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "decode request body")
}
