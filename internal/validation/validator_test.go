package validation

import (
	"errors"
	"testing"

	apperr "canchita/internal/errors"
	"canchita/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegisterRequest(t *testing.T) {
	valid := models.RegisterRequest{
		Name: "Juan", Surname: "Pérez", Email: "juan@example.com", Password: "secret1",
		DNI: "30.123.456", Phone: "+54 11 5555-1234",
	}
	assert.NoError(t, Struct(valid))

	bad := valid
	bad.Email = "juan-at-example"
	bad.DNI = "12"
	bad.Phone = "call me"

	err := Struct(bad)
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperr.ErrValidation))

	var ve *apperr.ValidationError
	require.True(t, errors.As(err, &ve))
	assert.Equal(t, "must be a valid email address", ve.Fields["email"])
	assert.Equal(t, "must contain 7 or 8 digits", ve.Fields["dni"])
	assert.Contains(t, ve.Fields, "phone")
	assert.NotContains(t, ve.Fields, "name")
}

func TestCreateBookingRequest(t *testing.T) {
	tests := []struct {
		name    string
		req     models.CreateBookingRequest
		invalid []string
	}{
		{"ok", models.CreateBookingRequest{FieldID: 1, Date: "2025-09-01", Time: "18:00", Duration: 1.5}, nil},
		{"bad date", models.CreateBookingRequest{FieldID: 1, Date: "01/09/2025", Time: "18:00", Duration: 1}, []string{"date"}},
		{"bad time", models.CreateBookingRequest{FieldID: 1, Date: "2025-09-01", Time: "6pm", Duration: 1}, []string{"time"}},
		{"missing all", models.CreateBookingRequest{}, []string{"field_id", "date", "time", "duration"}},
		{"negative duration", models.CreateBookingRequest{FieldID: 1, Date: "2025-09-01", Time: "18:00", Duration: -1}, []string{"duration"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Struct(tt.req)
			if tt.invalid == nil {
				assert.NoError(t, err)
				return
			}
			var ve *apperr.ValidationError
			require.True(t, errors.As(err, &ve))
			for _, f := range tt.invalid {
				assert.Contains(t, ve.Fields, f)
			}
		})
	}
}

func TestOptionalFieldsMaySkip(t *testing.T) {
	err := Struct(models.RegisterRequest{Name: "A", Surname: "B", Email: "a@b.co", Password: "123456"})
	assert.NoError(t, err)
}
