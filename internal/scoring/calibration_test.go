package scoring

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBinomialPPF(t *testing.T) {
	assert.Equal(t, 5.0, BinomialPPF(0.5, 10, 0.5))
	assert.Equal(t, 0.0, BinomialPPF(0.05, 1, 0.025))
	assert.Equal(t, 1.0, BinomialPPF(0.95, 1, 0.975))
}

func TestCalibration(t *testing.T) {
	curve := Calibration([]CalibrationSample{
		{Value: 0.62, Weight: 3, Resolution: 1},
		{Value: 0.63, Weight: 1, Resolution: 0},
	})
	require.Len(t, curve, CalibrationBins)

	assert.Nil(t, curve[0].Middle)
	assert.InDelta(t, 0.05, curve[0].PerfectCalibration, 1e-12)
	assert.Equal(t, 0.0, curve[0].Lower)
	assert.Equal(t, 0.0, curve[0].Upper)

	require.NotNil(t, curve[12].Middle)
	assert.InDelta(t, 0.75, *curve[12].Middle, 1e-12)
	assert.InDelta(t, 0.65, curve[12].PerfectCalibration, 1e-12)
	assert.LessOrEqual(t, curve[12].Lower, curve[12].Upper)

	assert.InDelta(t, 1.0, curve[19].PerfectCalibration, 1e-12)
	assert.Equal(t, 1.0, curve[19].Upper)
}

func TestHistogram(t *testing.T) {
	bins := Histogram([]float64{-700, 0, 69.9, 700})
	require.Len(t, bins, 20)
	assert.Equal(t, -700.0, bins[0].BinStart)
	assert.InDelta(t, 0.25, bins[0].PctScores, 1e-12)
	assert.InDelta(t, 0.5, bins[10].PctScores, 1e-12)

	for _, b := range Histogram(nil) {
		assert.Equal(t, 0.0, b.PctScores)
	}
}

func TestForecastWeight(t *testing.T) {
	end := 50.0
	assert.InDelta(t, 0.5, ForecastWeight(0, 100, 100, -10, &end), 1e-12)
	assert.InDelta(t, 0.8, ForecastWeight(0, 100, 100, 20, nil), 1e-12)
	assert.Equal(t, 0.0, ForecastWeight(0, 100, 0, 20, nil))
}
