// Package scoring holds the pure math behind scores, community aggregates,
// leaderboard ranking and the calibration track record.
package scoring

import (
	"errors"
	"fmt"
	"math"
	"strconv"

	"Forecast_Hub/internal/model"
)

var (
	ErrAmbiguousOrAnnulled = errors.New("question is ambiguous or annulled")
	ErrMissingScoringEnd   = errors.New("resolved question has no forecast scoring end")
	ErrEmptyHorizon        = errors.New("question was never open for forecasting")
	ErrBadResolution       = errors.New("resolution does not fit the question")
)

// minProbability floors outcome probabilities before taking logs.
const minProbability = 1e-6

// tailMass is the baseline mass of an open bound's out-of-range bucket.
const tailMass = 0.05

// Outcome is the resolved outcome of a question in a form every forecast can be evaluated against.
type Outcome struct {
	Type     model.QuestionType
	Option   int // binary: 1 yes 0 no; multiple choice: option index; numeric: pmf bucket
	Baseline float64
	IsNumber bool
}

// ResolveOutcome maps a resolution string onto an Outcome.
func ResolveOutcome(q *model.Question, resolution string) (Outcome, error) {
	if model.IsAmbiguousOrAnnulled(resolution) {
		return Outcome{}, ErrAmbiguousOrAnnulled
	}
	switch q.Type {
	case model.QuestionBinary:
		switch resolution {
		case model.ResolutionYes:
			return Outcome{Type: q.Type, Option: 1, Baseline: 0.5}, nil
		case model.ResolutionNo:
			return Outcome{Type: q.Type, Option: 0, Baseline: 0.5}, nil
		}
	case model.QuestionMultipleChoice:
		for i, opt := range q.Options {
			if opt == resolution {
				return Outcome{Type: q.Type, Option: i, Baseline: 1 / float64(len(q.Options))}, nil
			}
		}
	case model.QuestionNumeric:
		bucket, err := numericBucket(q, resolution)
		if err != nil {
			return Outcome{}, err
		}
		return Outcome{Type: q.Type, Option: bucket, Baseline: baselinePMF(q)[bucket], IsNumber: true}, nil
	}
	return Outcome{}, fmt.Errorf("%w: %q", ErrBadResolution, resolution)
}

// ValidResolution reports whether resolution is acceptable for q.
func ValidResolution(q *model.Question, resolution string) bool {
	if model.IsAmbiguousOrAnnulled(resolution) {
		return true
	}
	_, err := ResolveOutcome(q, resolution)
	return err == nil
}

// numericBucket returns the pmf index (0 .. CDFSize) of a numeric resolution.
// Index 0 and CDFSize are the below / above range tails.
func numericBucket(q *model.Question, resolution string) (int, error) {
	if q.RangeMin == nil || q.RangeMax == nil || *q.RangeMax <= *q.RangeMin {
		return 0, fmt.Errorf("%w: numeric question without a valid range", ErrBadResolution)
	}
	switch resolution {
	case model.ResolutionBelowLower:
		if q.OpenLowerBound {
			return 0, nil
		}
		return 1, nil
	case model.ResolutionAboveUpper:
		if q.OpenUpperBound {
			return model.CDFSize, nil
		}
		return model.CDFSize - 1, nil
	}
	x, err := strconv.ParseFloat(resolution, 64)
	if err != nil || math.IsNaN(x) || math.IsInf(x, 0) {
		return 0, fmt.Errorf("%w: %q", ErrBadResolution, resolution)
	}
	lo, hi := *q.RangeMin, *q.RangeMax
	switch {
	case x < lo:
		return numericBucket(q, model.ResolutionBelowLower)
	case x > hi:
		return numericBucket(q, model.ResolutionAboveUpper)
	}
	inner := model.CDFSize - 1
	bucket := int(math.Floor((x-lo)/(hi-lo)*float64(inner))) + 1
	if bucket > inner {
		bucket = inner
	}
	return bucket, nil
}

// baselinePMF spreads mass uniformly over the inner buckets, reserving tailMass for each open bound.
func baselinePMF(q *model.Question) []float64 {
	pmf := make([]float64, model.CDFSize+1)
	inner := 1.0
	if q.OpenLowerBound {
		pmf[0] = tailMass
		inner -= tailMass
	}
	if q.OpenUpperBound {
		pmf[model.CDFSize] = tailMass
		inner -= tailMass
	}
	per := inner / float64(model.CDFSize-1)
	for i := 1; i < model.CDFSize; i++ {
		pmf[i] = per
	}
	return pmf
}

// CDFToPMF turns a CDFSize point cdf into CDFSize+1 bucket masses.
func CDFToPMF(cdf []float64) []float64 {
	pmf := make([]float64, len(cdf)+1)
	prev := 0.0
	for i, c := range cdf {
		pmf[i] = c - prev
		prev = c
	}
	pmf[len(cdf)] = 1 - prev
	return pmf
}

// Probability is the mass a forecast put on the outcome.
func (o Outcome) Probability(f *model.Forecast) (float64, error) {
	var p float64
	switch o.Type {
	case model.QuestionBinary:
		if f.ProbabilityYes == nil {
			return 0, errors.New("binary forecast without probability_yes")
		}
		p = *f.ProbabilityYes
		if o.Option == 0 {
			p = 1 - p
		}
	case model.QuestionMultipleChoice:
		if o.Option >= len(f.ProbabilityYesPerCategory) {
			return 0, errors.New("multiple choice forecast misses the resolved option")
		}
		p = f.ProbabilityYesPerCategory[o.Option]
	case model.QuestionNumeric:
		if len(f.ContinuousCDF) != model.CDFSize {
			return 0, fmt.Errorf("numeric forecast needs %d cdf points", model.CDFSize)
		}
		p = CDFToPMF(f.ContinuousCDF)[o.Option]
	default:
		return 0, fmt.Errorf("unknown question type %q", o.Type)
	}
	return math.Max(p, minProbability), nil
}

// ValuesProbability evaluates an aggregate's forecast_values the same way as a forecast.
func (o Outcome) ValuesProbability(values []float64) (float64, error) {
	f := &model.Forecast{}
	switch o.Type {
	case model.QuestionBinary:
		if len(values) != 2 {
			return 0, errors.New("binary aggregate needs [p_no, p_yes]")
		}
		f.ProbabilityYes = &values[1]
	case model.QuestionMultipleChoice:
		f.ProbabilityYesPerCategory = values
	case model.QuestionNumeric:
		f.ContinuousCDF = values
	}
	return o.Probability(f)
}

// scale is 1/2 for numeric questions.
func (o Outcome) scale() float64 {
	if o.IsNumber {
		return 0.5
	}
	return 1
}
