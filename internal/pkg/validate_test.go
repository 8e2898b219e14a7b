package pkg

import (
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProbabilityTag(t *testing.T) {
	v := validator.New()
	require.NoError(t, v.RegisterValidation("probability", validProbability))

	type payload struct {
		P *float64 `validate:"omitempty,probability"`
	}
	val := func(f float64) *float64 { return &f }

	assert.NoError(t, v.Struct(payload{}))
	assert.NoError(t, v.Struct(payload{P: val(0.5)}))
	assert.NoError(t, v.Struct(payload{P: val(0.001)}))
	assert.NoError(t, v.Struct(payload{P: val(0.999)}))
	assert.Error(t, v.Struct(payload{P: val(0)}))
	assert.Error(t, v.Struct(payload{P: val(1)}))
}
