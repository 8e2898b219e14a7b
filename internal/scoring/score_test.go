package scoring

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"Forecast_Hub/internal/model"
)

var t0 = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func at(sec int) time.Time { return t0.Add(time.Duration(sec) * time.Second) }

func atPtr(sec int) *time.Time {
	v := at(sec)
	return &v
}

func binaryYes(t *testing.T) Outcome {
	o, err := ResolveOutcome(&model.Question{Type: model.QuestionBinary}, model.ResolutionYes)
	require.NoError(t, err)
	return o
}

func TestBaseline(t *testing.T) {
	h := Horizon{Open: at(0), End: at(100)}
	results := Baseline(binaryYes(t), h, []Window{
		{UserID: 1, Start: at(-10), P: 0.8},
		{UserID: 2, Start: at(50), P: 0.5},
	})
	require.Len(t, results, 2)

	assert.Equal(t, uint64(1), results[0].UserID)
	assert.InDelta(t, 100*math.Log2(0.8/0.5), results[0].Score, 1e-9)
	assert.InDelta(t, 1.0, results[0].Coverage, 1e-9)

	assert.InDelta(t, 0.0, results[1].Score, 1e-9)
	assert.InDelta(t, 0.5, results[1].Coverage, 1e-9)
}

func TestBaselineSplitsWindowsOfOneUser(t *testing.T) {
	h := Horizon{Open: at(0), End: at(100)}
	results := Baseline(binaryYes(t), h, []Window{
		{UserID: 1, Start: at(0), End: atPtr(50), P: 0.5},
		{UserID: 1, Start: at(50), P: 1},
	})
	require.Len(t, results, 1)
	assert.InDelta(t, 50.0, results[0].Score, 1e-9)
	assert.InDelta(t, 1.0, results[0].Coverage, 1e-9)
}

func TestPeer(t *testing.T) {
	h := Horizon{Open: at(0), End: at(100)}
	results := Peer(binaryYes(t), h, []Window{
		{UserID: 1, Start: at(0), P: 0.8},
		{UserID: 2, Start: at(0), P: 0.5},
	})
	require.Len(t, results, 2)
	want := 100 * (math.Log(0.8) - math.Log(0.5))
	assert.InDelta(t, want, results[0].Score, 1e-9)
	assert.InDelta(t, -want, results[1].Score, 1e-9)
}

func TestPeerNeedsTwoForecasters(t *testing.T) {
	h := Horizon{Open: at(0), End: at(100)}
	results := Peer(binaryYes(t), h, []Window{
		{UserID: 1, Start: at(0), P: 0.8},
		{UserID: 2, Start: at(50), P: 0.5},
	})
	require.Len(t, results, 2)
	want := 0.5 * 100 * (math.Log(0.8) - math.Log(0.5))
	assert.InDelta(t, want, results[0].Score, 1e-9)
	assert.InDelta(t, 1.0, results[0].Coverage, 1e-9)
	assert.InDelta(t, -want, results[1].Score, 1e-9)
	assert.InDelta(t, 0.5, results[1].Coverage, 1e-9)
}

func TestPeerNumericIsHalved(t *testing.T) {
	o, err := ResolveOutcome(numericQuestion(), "50")
	require.NoError(t, err)
	h := Horizon{Open: at(0), End: at(100)}
	results := Peer(o, h, []Window{
		{UserID: 1, Start: at(0), P: 0.2},
		{UserID: 2, Start: at(0), P: 0.1},
	})
	require.Len(t, results, 2)
	assert.InDelta(t, 50*math.Log(2), results[0].Score, 1e-9)
}

func TestPeerAgainst(t *testing.T) {
	h := Horizon{Open: at(0), End: at(100)}
	res := PeerAgainst(binaryYes(t), h,
		[]Window{{Start: at(0), P: 0.8}},
		[]Window{{UserID: 1, Start: at(0), P: 0.5}},
	)
	assert.InDelta(t, 100*(math.Log(0.8)-math.Log(0.5)), res.Score, 1e-9)
	assert.InDelta(t, 1.0, res.Coverage, 1e-9)
}

func TestEmptyHorizon(t *testing.T) {
	h := Horizon{Open: at(10), End: at(10)}
	assert.Empty(t, Baseline(binaryYes(t), h, []Window{{UserID: 1, Start: at(0), P: 0.5}}))
	assert.Empty(t, Peer(binaryYes(t), h, []Window{{UserID: 1, Start: at(0), P: 0.5}}))
}

func TestSpotPeer(t *testing.T) {
	results := SpotPeer(binaryYes(t), at(100), []Window{
		{UserID: 1, Start: at(0), End: atPtr(40), P: 0.1},
		{UserID: 1, Start: at(40), P: 0.8},
		{UserID: 2, Start: at(10), P: 0.5},
		{UserID: 3, Start: at(200), P: 0.9},
	})
	require.Len(t, results, 2)
	assert.InDelta(t, 100*(math.Log(0.8)-math.Log(0.5)), results[0].Score, 1e-9)
	assert.Equal(t, 1.0, results[1].Coverage)

	assert.Empty(t, SpotPeer(binaryYes(t), at(5), []Window{{UserID: 1, Start: at(0), P: 0.5}}))
}
