package scoring

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"

	"Forecast_Hub/internal/model"
)

func TestWeightedMedian(t *testing.T) {
	assert.Equal(t, 0.4, WeightedMedian([]float64{0.9, 0.2, 0.4}, []float64{1, 1, 1}))
	assert.InDelta(t, 0.3, WeightedMedian([]float64{0.2, 0.4}, []float64{1, 1}), 1e-12)
	assert.Equal(t, 0.9, WeightedMedian([]float64{0.2, 0.9}, []float64{1, 3}))
}

func TestRecencyWeights(t *testing.T) {
	w := RecencyWeights(3)
	require.Len(t, w, 3)
	assert.InDelta(t, 1.0, w[2], 1e-12)
	assert.Less(t, w[0], w[1])
	assert.Less(t, w[1], w[2])
}

func TestAggregateBinary(t *testing.T) {
	forecasts := []model.Forecast{
		{ProbabilityYes: ptr(0.9)},
		{ProbabilityYes: ptr(0.1)},
		{ProbabilityYes: ptr(0.5)},
	}
	values, err := Aggregate(model.AggregationRecencyWeighted, model.QuestionBinary, forecasts)
	require.NoError(t, err)
	assert.InDeltaSlice(t, []float64{0.5, 0.5}, values, 1e-12)

	values, err = Aggregate(model.AggregationUnweighted, model.QuestionBinary, forecasts[:2])
	require.NoError(t, err)
	assert.InDeltaSlice(t, []float64{0.5, 0.5}, values, 1e-12)

	_, err = Aggregate(model.AggregationUnweighted, model.QuestionBinary, nil)
	assert.ErrorIs(t, err, ErrNoForecasts)
}

func TestAggregateMultipleChoiceNormalizes(t *testing.T) {
	forecasts := []model.Forecast{
		{ProbabilityYesPerCategory: datatypes.JSONSlice[float64]{0.6, 0.4}},
		{ProbabilityYesPerCategory: datatypes.JSONSlice[float64]{0.2, 0.8}},
		{ProbabilityYesPerCategory: datatypes.JSONSlice[float64]{0.5, 0.5}},
	}
	values, err := Aggregate(model.AggregationUnweighted, model.QuestionMultipleChoice, forecasts)
	require.NoError(t, err)
	require.Len(t, values, 2)
	assert.InDelta(t, 1.0, values[0]+values[1], 1e-12)
	assert.InDelta(t, 0.5, values[0], 1e-12)
}

func TestAggregateNumericMeanCDF(t *testing.T) {
	a := make(datatypes.JSONSlice[float64], model.CDFSize)
	b := make(datatypes.JSONSlice[float64], model.CDFSize)
	for i := range a {
		a[i] = float64(i) / float64(model.CDFSize-1)
		b[i] = 1
	}
	values, err := Aggregate(model.AggregationUnweighted, model.QuestionNumeric, []model.Forecast{{ContinuousCDF: a}, {ContinuousCDF: b}})
	require.NoError(t, err)
	require.Len(t, values, model.CDFSize)
	assert.InDelta(t, 0.5, values[0], 1e-12)
	assert.InDelta(t, 1.0, values[model.CDFSize-1], 1e-12)
}
