package scoring

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"Forecast_Hub/internal/model"
)

func TestEntriesPeerGlobalDivisor(t *testing.T) {
	var contributions []Contribution
	for i := 0; i < 10; i++ {
		contributions = append(contributions, Contribution{UserID: 1, Score: 3, Coverage: 0.5})
	}
	for i := 0; i < 40; i++ {
		contributions = append(contributions, Contribution{UserID: 2, Score: 1, Coverage: 1})
	}

	entries := Entries(model.LeaderboardPeerGlobal, contributions)
	require.Len(t, entries, 2)
	assert.InDelta(t, 1.0, entries[0].Score, 1e-12)
	assert.Equal(t, 10, entries[0].ContributionCount)
	assert.InDelta(t, 5.0, entries[0].Coverage, 1e-12)
	assert.InDelta(t, 1.0, entries[1].Score, 1e-12)

	sums := Entries(model.LeaderboardPeerTournament, contributions)
	assert.InDelta(t, 30.0, sums[0].Score, 1e-12)
	assert.InDelta(t, 40.0, sums[1].Score, 1e-12)
}

func TestRankCompetitionWithExcluded(t *testing.T) {
	entries := []model.LeaderboardEntry{
		{UserID: 5, Score: 5},
		{UserID: 2, Score: 8, Excluded: true},
		{UserID: 1, Score: 10},
		{UserID: 3, Score: 8},
		{UserID: 4, Score: 8},
	}
	Rank(entries)

	got := map[uint64]int{}
	for _, e := range entries {
		got[e.UserID] = e.Rank
	}
	assert.Equal(t, map[uint64]int{1: 1, 2: 2, 3: 2, 4: 2, 5: 4}, got)
	assert.Equal(t, uint64(1), entries[0].UserID)
}

func TestAssignMedals(t *testing.T) {
	var entries []model.LeaderboardEntry
	for i := 1; i <= 100; i++ {
		entries = append(entries, model.LeaderboardEntry{UserID: uint64(i), Score: float64(101 - i)})
	}
	entries = append(entries, model.LeaderboardEntry{UserID: 1000, Score: 1000, Excluded: true})
	Rank(entries)
	AssignMedals(entries)

	medals := map[uint64]model.Medal{}
	for _, e := range entries {
		if e.Medal != nil {
			medals[e.UserID] = *e.Medal
		}
	}
	assert.Equal(t, map[uint64]model.Medal{
		1: model.MedalGold,
		2: model.MedalSilver,
		3: model.MedalBronze,
		4: model.MedalBronze,
		5: model.MedalBronze,
	}, medals)
}

func TestHydrateTake(t *testing.T) {
	entries := []model.LeaderboardEntry{{Score: 3}, {Score: -1}, {Score: 1}}
	HydrateTake(entries, 100)

	assert.InDelta(t, 9.0, entries[0].Take, 1e-12)
	assert.InDelta(t, 0.0, entries[1].Take, 1e-12)
	assert.InDelta(t, 0.9, entries[0].PercentPrize, 1e-12)
	assert.InDelta(t, 90.0, entries[0].Prize, 1e-9)
	assert.InDelta(t, 10.0, entries[2].Prize, 1e-9)

	none := []model.LeaderboardEntry{{Score: -2}}
	HydrateTake(none, 100)
	assert.Equal(t, 0.0, none[0].Prize)
}

func TestGlobalCutoff(t *testing.T) {
	assert.Equal(t, 3.0, GlobalCutoff(10))
	assert.Equal(t, 10.0, GlobalCutoff(200))
}
