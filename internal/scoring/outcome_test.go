package scoring

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"

	"Forecast_Hub/internal/model"
)

func ptr(f float64) *float64 { return &f }

func numericQuestion() *model.Question {
	return &model.Question{Type: model.QuestionNumeric, RangeMin: ptr(0), RangeMax: ptr(100)}
}

func TestResolveOutcomeBinary(t *testing.T) {
	q := &model.Question{Type: model.QuestionBinary}
	f := &model.Forecast{ProbabilityYes: ptr(0.8)}

	yes, err := ResolveOutcome(q, model.ResolutionYes)
	require.NoError(t, err)
	p, err := yes.Probability(f)
	require.NoError(t, err)
	assert.InDelta(t, 0.8, p, 1e-12)

	no, err := ResolveOutcome(q, model.ResolutionNo)
	require.NoError(t, err)
	p, err = no.Probability(f)
	require.NoError(t, err)
	assert.InDelta(t, 0.2, p, 1e-12)
	assert.Equal(t, 0.5, no.Baseline)

	_, err = ResolveOutcome(q, "maybe")
	assert.ErrorIs(t, err, ErrBadResolution)
	_, err = ResolveOutcome(q, model.ResolutionAnnulled)
	assert.ErrorIs(t, err, ErrAmbiguousOrAnnulled)
}

func TestResolveOutcomeMultipleChoice(t *testing.T) {
	q := &model.Question{Type: model.QuestionMultipleChoice, Options: datatypes.JSONSlice[string]{"a", "b", "c"}}
	o, err := ResolveOutcome(q, "b")
	require.NoError(t, err)
	assert.Equal(t, 1, o.Option)
	assert.InDelta(t, 1.0/3, o.Baseline, 1e-12)

	p, err := o.Probability(&model.Forecast{ProbabilityYesPerCategory: datatypes.JSONSlice[float64]{0.2, 0.5, 0.3}})
	require.NoError(t, err)
	assert.InDelta(t, 0.5, p, 1e-12)

	assert.False(t, ValidResolution(q, "d"))
	assert.True(t, ValidResolution(q, model.ResolutionAmbiguous))
}

func TestResolveOutcomeNumeric(t *testing.T) {
	q := numericQuestion()
	o, err := ResolveOutcome(q, "50")
	require.NoError(t, err)
	assert.Equal(t, 101, o.Option)
	assert.True(t, o.IsNumber)
	assert.InDelta(t, 1.0/200, o.Baseline, 1e-12)

	below, err := ResolveOutcome(q, model.ResolutionBelowLower)
	require.NoError(t, err)
	assert.Equal(t, 1, below.Option)

	q.OpenUpperBound = true
	above, err := ResolveOutcome(q, "1000")
	require.NoError(t, err)
	assert.Equal(t, model.CDFSize, above.Option)
	assert.InDelta(t, tailMass, above.Baseline, 1e-12)

	_, err = ResolveOutcome(q, "abc")
	assert.ErrorIs(t, err, ErrBadResolution)
}

func TestCDFToPMF(t *testing.T) {
	pmf := CDFToPMF([]float64{0.1, 0.4, 0.9})
	require.Len(t, pmf, 4)
	assert.InDeltaSlice(t, []float64{0.1, 0.3, 0.5, 0.1}, pmf, 1e-12)
}

func TestProbabilityFloor(t *testing.T) {
	q := &model.Question{Type: model.QuestionMultipleChoice, Options: datatypes.JSONSlice[string]{"a", "b"}}
	o, err := ResolveOutcome(q, "a")
	require.NoError(t, err)
	p, err := o.ValuesProbability([]float64{0, 1})
	require.NoError(t, err)
	assert.Equal(t, minProbability, p)
}
