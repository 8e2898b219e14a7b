package permission

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRankOrdering(t *testing.T) {
	assert.Less(t, Rank(Viewer), Rank(Forecaster))
	assert.Less(t, Rank(Forecaster), Rank(Curator))
	assert.Less(t, Rank(Curator), Rank(Admin))
	assert.Less(t, Rank(Admin), Rank(Creator))
	assert.Equal(t, 0, Rank(""))
}

func TestMax(t *testing.T) {
	assert.Equal(t, Admin, Max(Viewer, Admin))
	assert.Equal(t, Curator, Max(Curator, Forecaster))
	assert.Equal(t, Viewer, Max("", Viewer))
}

func TestParse(t *testing.T) {
	p, err := Parse("curator")
	require.NoError(t, err)
	assert.Equal(t, Curator, p)

	_, err = Parse("owner")
	assert.Error(t, err)
}

func TestPredicates(t *testing.T) {
	tests := []struct {
		perm     ObjectPermission
		view     bool
		forecast bool
		resolve  bool
		admin    bool
	}{
		{"", false, false, false, false},
		{Viewer, true, false, false, false},
		{Forecaster, true, true, false, false},
		{Curator, true, true, true, false},
		{Admin, true, true, true, true},
		{Creator, true, true, false, false},
	}
	for _, tt := range tests {
		t.Run(string(tt.perm), func(t *testing.T) {
			assert.Equal(t, tt.view, CanView(tt.perm))
			assert.Equal(t, tt.forecast, CanForecast(tt.perm))
			assert.Equal(t, tt.resolve, CanResolve(tt.perm))
			assert.Equal(t, tt.admin, CanManageMembers(tt.perm))
		})
	}
}

func TestEnsureReturnsDenied(t *testing.T) {
	assert.ErrorIs(t, EnsureForecast(Viewer), ErrPermissionDenied)
	assert.NoError(t, EnsureForecast(Forecaster))
	assert.ErrorIs(t, EnsureView(""), ErrPermissionDenied)
	assert.NoError(t, EnsureDeleteComment(Curator))
	assert.ErrorIs(t, EnsureEditComment(Admin), ErrPermissionDenied)
}

func TestOf(t *testing.T) {
	assert.Equal(t, ObjectPermission(""), Of(nil))
	assert.Equal(t, Curator, Of(Ptr(Curator)))
	assert.False(t, CanView(Of(nil)))
}
