package scoring

import (
	"errors"
	"math"
	"sort"

	"Forecast_Hub/internal/model"
)

var ErrNoForecasts = errors.New("no active forecasts")

// RecencyWeights weights n forecasts ordered oldest first: w_i = exp(sqrt(i+1) - sqrt(n)).
func RecencyWeights(n int) []float64 {
	w := make([]float64, n)
	for i := range w {
		w[i] = math.Exp(math.Sqrt(float64(i+1)) - math.Sqrt(float64(n)))
	}
	return w
}

func uniformWeights(n int) []float64 {
	w := make([]float64, n)
	for i := range w {
		w[i] = 1
	}
	return w
}

// WeightedMedian returns the value at half the total weight, averaging when the split is exact.
func WeightedMedian(values, weights []float64) float64 {
	if len(values) == 0 {
		return math.NaN()
	}
	idx := make([]int, len(values))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool { return values[idx[a]] < values[idx[b]] })
	total := 0.0
	for _, w := range weights {
		total += w
	}
	half := total / 2
	cum := 0.0
	for k, i := range idx {
		cum += weights[i]
		if math.Abs(cum-half) < 1e-12 && k+1 < len(idx) {
			return (values[i] + values[idx[k+1]]) / 2
		}
		if cum > half {
			return values[i]
		}
	}
	return values[idx[len(idx)-1]]
}

// Aggregate computes the community forecast values from the active forecasts, ordered oldest first.
// Binary values are [p_no, p_yes]; multiple choice is a normalized per-option weighted median;
// numeric is the weighted mean cdf.
func Aggregate(method model.AggregationMethod, qtype model.QuestionType, forecasts []model.Forecast) ([]float64, error) {
	n := len(forecasts)
	if n == 0 {
		return nil, ErrNoForecasts
	}
	var weights []float64
	switch method {
	case model.AggregationRecencyWeighted:
		weights = RecencyWeights(n)
	case model.AggregationUnweighted:
		weights = uniformWeights(n)
	case model.AggregationSingleAggregation:
		weights = uniformWeights(n)
	default:
		return nil, errors.New("unknown aggregation method")
	}

	switch qtype {
	case model.QuestionBinary:
		values := make([]float64, 0, n)
		for _, f := range forecasts {
			if f.ProbabilityYes == nil {
				return nil, errors.New("binary forecast without probability_yes")
			}
			values = append(values, *f.ProbabilityYes)
		}
		p := WeightedMedian(values, weights)
		return []float64{1 - p, p}, nil

	case model.QuestionMultipleChoice:
		k := len(forecasts[0].ProbabilityYesPerCategory)
		out := make([]float64, k)
		column := make([]float64, n)
		sum := 0.0
		for c := 0; c < k; c++ {
			for i, f := range forecasts {
				if len(f.ProbabilityYesPerCategory) != k {
					return nil, errors.New("multiple choice forecasts disagree on option count")
				}
				column[i] = f.ProbabilityYesPerCategory[c]
			}
			out[c] = WeightedMedian(column, weights)
			sum += out[c]
		}
		if sum > 0 {
			for c := range out {
				out[c] /= sum
			}
		}
		return out, nil

	case model.QuestionNumeric:
		out := make([]float64, model.CDFSize)
		total := 0.0
		for i, f := range forecasts {
			if len(f.ContinuousCDF) != model.CDFSize {
				return nil, errors.New("numeric forecast with a malformed cdf")
			}
			for j, v := range f.ContinuousCDF {
				out[j] += weights[i] * v
			}
			total += weights[i]
		}
		for j := range out {
			out[j] /= total
		}
		return out, nil
	}
	return nil, errors.New("unknown question type")
}
