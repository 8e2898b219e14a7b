package scoring

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"
)

const (
	CalibrationBins  = 20
	HistogramStart   = -700
	HistogramEnd     = 700
	HistogramBinSize = 70
)

// CalibrationPoint is one bin of the calibration curve. Middle is nil when the bin is empty.
type CalibrationPoint struct {
	Lower              float64  `json:"user_lower_quartile"`
	Middle             *float64 `json:"user_middle_quartile"`
	Upper              float64  `json:"user_upper_quartile"`
	PerfectCalibration float64  `json:"perfect_calibration"`
}

type HistogramBin struct {
	BinStart  float64 `json:"bin_start"`
	BinEnd    float64 `json:"bin_end"`
	PctScores float64 `json:"pct_scores"`
}

// CalibrationSample is a weighted forecast of a question that resolved yes (1) or no (0).
type CalibrationSample struct {
	Value      float64
	Weight     float64
	Resolution float64
}

// BinomialPPF returns the smallest k in [0, n] with P(X <= k) >= q for X ~ Binomial(n, p).
func BinomialPPF(q float64, n int, p float64) float64 {
	b := distuv.Binomial{N: float64(n), P: p}
	for k := 0; k < n; k++ {
		if b.CDF(float64(k)) >= q-1e-12 {
			return float64(k)
		}
	}
	return float64(n)
}

// Calibration bins samples by forecast value into CalibrationBins equal bins.
// The middle is the weighted share of yes resolutions; lower and upper are the
// 5% and 95% binomial quantiles expected from a perfectly calibrated forecaster.
func Calibration(samples []CalibrationSample) []CalibrationPoint {
	width := 1.0 / CalibrationBins
	out := make([]CalibrationPoint, 0, CalibrationBins)
	for b := 0; b < CalibrationBins; b++ {
		lo := float64(b) * width
		hi := lo + width
		// a bin is judged against its upper edge
		center := hi

		var res, ws []float64
		for _, s := range samples {
			if s.Value >= lo && s.Value < hi {
				res = append(res, s.Resolution)
				ws = append(ws, s.Weight)
			}
		}
		point := CalibrationPoint{PerfectCalibration: center}
		if len(res) > 0 && floats.Sum(ws) > 0 {
			m := stat.Mean(res, ws)
			point.Middle = &m
		}
		n := len(res)
		if n < 1 {
			n = 1
		}
		point.Lower = BinomialPPF(0.05, n, center) / float64(n)
		point.Upper = BinomialPPF(0.95, n, center) / float64(n)
		out = append(out, point)
	}
	return out
}

// Histogram returns the share of scores in each [start, start+HistogramBinSize) bin.
func Histogram(scores []float64) []HistogramBin {
	var out []HistogramBin
	for start := HistogramStart; start < HistogramEnd; start += HistogramBinSize {
		end := start + HistogramBinSize
		count := 0
		for _, s := range scores {
			if s >= float64(start) && s < float64(end) {
				count++
			}
		}
		pct := 0.0
		if len(scores) > 0 {
			pct = float64(count) / float64(len(scores))
		}
		out = append(out, HistogramBin{BinStart: float64(start), BinEnd: float64(end), PctScores: pct})
	}
	return out
}

// ForecastWeight is the share of the question's forecasting span covered by one aggregate step.
// The step is clipped to [open, scoringEnd] and divided by (closeTime - open).
func ForecastWeight(open, scoringEnd, closeTime, start float64, end *float64) float64 {
	fs := math.Max(open, start)
	fe := scoringEnd
	if end != nil {
		fe = math.Min(scoringEnd, *end)
	}
	span := closeTime - open
	if span <= 0 || fe <= fs {
		return 0
	}
	return (fe - fs) / span
}
