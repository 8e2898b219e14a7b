package scoring

import (
	"math"
	"sort"

	"Forecast_Hub/internal/model"
)

// PeerGlobalMinQuestions is the divisor floor of peer_global totals.
const PeerGlobalMinQuestions = 30

// Medal thresholds as a share of non-excluded entries.
const (
	GoldPercentile   = 0.01
	SilverPercentile = 0.02
	BronzePercentile = 0.05
)

// Contribution is one question score counted towards a leaderboard entry.
type Contribution struct {
	UserID   uint64
	Score    float64
	Coverage float64
}

// Entries folds per-question scores into leaderboard entries for the leaderboard type.
func Entries(typ model.LeaderboardType, contributions []Contribution) []model.LeaderboardEntry {
	byUser := make(map[uint64]*model.LeaderboardEntry)
	var order []uint64
	for _, c := range contributions {
		e := byUser[c.UserID]
		if e == nil {
			e = &model.LeaderboardEntry{UserID: c.UserID}
			byUser[c.UserID] = e
			order = append(order, c.UserID)
		}
		e.Score += c.Score
		e.Coverage += c.Coverage
		e.ContributionCount++
	}
	out := make([]model.LeaderboardEntry, 0, len(order))
	for _, id := range order {
		e := byUser[id]
		if typ == model.LeaderboardPeerGlobal {
			e.Score /= math.Max(PeerGlobalMinQuestions, float64(e.ContributionCount))
		}
		out = append(out, *e)
	}
	return out
}

// Rank sorts entries by score and assigns competition ranks (1,2,2,4) among non-excluded entries.
// An excluded entry gets 1 + the number of non-excluded entries scoring strictly higher.
func Rank(entries []model.LeaderboardEntry) {
	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].Score != entries[j].Score {
			return entries[i].Score > entries[j].Score
		}
		return entries[i].UserID < entries[j].UserID
	})
	var included []float64
	for _, e := range entries {
		if !e.Excluded {
			included = append(included, e.Score)
		}
	}
	for i := range entries {
		higher := sort.Search(len(included), func(k int) bool { return included[k] <= entries[i].Score })
		entries[i].Rank = higher + 1
	}
}

// AssignMedals sets medals on ranked entries by rank percentile of the non-excluded field.
func AssignMedals(entries []model.LeaderboardEntry) {
	n := 0
	for _, e := range entries {
		if !e.Excluded {
			n++
		}
	}
	for i := range entries {
		entries[i].Medal = nil
		if entries[i].Excluded || n == 0 {
			continue
		}
		pct := float64(entries[i].Rank) / float64(n)
		var m model.Medal
		switch {
		case pct <= GoldPercentile:
			m = model.MedalGold
		case pct <= SilverPercentile:
			m = model.MedalSilver
		case pct <= BronzePercentile:
			m = model.MedalBronze
		default:
			continue
		}
		entries[i].Medal = &m
	}
}

// HydrateTake fills take = max(score, 0)^2, its share of the total and the share of the prize pool.
func HydrateTake(entries []model.LeaderboardEntry, prizePool float64) {
	total := 0.0
	for i := range entries {
		s := math.Max(entries[i].Score, 0)
		entries[i].Take = s * s
		total += entries[i].Take
	}
	for i := range entries {
		if total > 0 {
			entries[i].PercentPrize = entries[i].Take / total
		} else {
			entries[i].PercentPrize = 0
		}
		entries[i].Prize = entries[i].PercentPrize * prizePool
	}
}

// GlobalCutoff is the highest rank shown on global leaderboards.
func GlobalCutoff(count int) float64 {
	return math.Max(3, float64(count)*0.05)
}
