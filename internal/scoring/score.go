package scoring

import (
	"math"
	"sort"
	"time"
)

// Window is one forecast evaluated against the outcome: it holds p from Start until End (nil = open).
type Window struct {
	UserID uint64
	Start  time.Time
	End    *time.Time
	P      float64
}

// Horizon is the scored span [Open, End] of a question.
type Horizon struct {
	Open time.Time
	End  time.Time
}

func (h Horizon) seconds() float64 {
	return h.End.Sub(h.Open).Seconds()
}

// clip returns the window's overlap with the horizon in seconds since Open.
func (h Horizon) clip(w Window) (float64, float64) {
	start := w.Start
	if start.Before(h.Open) {
		start = h.Open
	}
	end := h.End
	if w.End != nil && w.End.Before(end) {
		end = *w.End
	}
	s := start.Sub(h.Open).Seconds()
	e := end.Sub(h.Open).Seconds()
	if e < s {
		e = s
	}
	return s, e
}

// Result is one scored participant.
type Result struct {
	UserID   uint64
	Score    float64
	Coverage float64
}

func byUser(results map[uint64]*Result) []Result {
	out := make([]Result, 0, len(results))
	for _, r := range results {
		out = append(out, *r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UserID < out[j].UserID })
	return out
}

// Baseline scores every window against the uniform prior, weighted by the share of the horizon it covers.
func Baseline(o Outcome, h Horizon, windows []Window) []Result {
	total := h.seconds()
	results := make(map[uint64]*Result)
	if total <= 0 {
		return nil
	}
	for _, w := range windows {
		s, e := h.clip(w)
		if e <= s {
			continue
		}
		frac := (e - s) / total
		r := results[w.UserID]
		if r == nil {
			r = &Result{UserID: w.UserID}
			results[w.UserID] = r
		}
		r.Score += frac * 100 * math.Log2(w.P/o.Baseline) * o.scale()
		r.Coverage += frac
	}
	return byUser(results)
}

// segment is a stretch of the horizon during which the active forecast set does not change.
type segment struct {
	start, end float64
	active     map[uint64]float64
}

func segments(h Horizon, windows []Window) []segment {
	type span struct {
		user uint64
		s, e float64
		p    float64
	}
	var spans []span
	cuts := map[float64]bool{0: true, h.seconds(): true}
	for _, w := range windows {
		s, e := h.clip(w)
		if e <= s {
			continue
		}
		spans = append(spans, span{w.UserID, s, e, w.P})
		cuts[s] = true
		cuts[e] = true
	}
	points := make([]float64, 0, len(cuts))
	for c := range cuts {
		points = append(points, c)
	}
	sort.Float64s(points)

	var out []segment
	for i := 0; i+1 < len(points); i++ {
		seg := segment{start: points[i], end: points[i+1], active: make(map[uint64]float64)}
		for _, sp := range spans {
			if sp.s <= seg.start && sp.e >= seg.end {
				seg.active[sp.user] = sp.p
			}
		}
		out = append(out, seg)
	}
	return out
}

// Peer scores each forecaster against the mean log score of the others present at the same instant.
// Instants with fewer than two forecasters score nothing but still count towards coverage.
func Peer(o Outcome, h Horizon, windows []Window) []Result {
	total := h.seconds()
	if total <= 0 {
		return nil
	}
	results := make(map[uint64]*Result)
	for _, seg := range segments(h, windows) {
		frac := (seg.end - seg.start) / total
		n := len(seg.active)
		if n == 0 {
			continue
		}
		sumLog := 0.0
		for _, p := range seg.active {
			sumLog += math.Log(p)
		}
		for user, p := range seg.active {
			r := results[user]
			if r == nil {
				r = &Result{UserID: user}
				results[user] = r
			}
			r.Coverage += frac
			if n < 2 {
				continue
			}
			others := (sumLog - math.Log(p)) / float64(n-1)
			r.Score += frac * 100 * (math.Log(p) - others) * o.scale()
		}
	}
	return byUser(results)
}

// PeerAgainst scores a reference series (the community aggregate) against every user forecast present.
func PeerAgainst(o Outcome, h Horizon, reference []Window, windows []Window) Result {
	total := h.seconds()
	var res Result
	if total <= 0 {
		return res
	}
	const ref = math.MaxUint64
	all := make([]Window, 0, len(reference)+len(windows))
	for _, w := range reference {
		w.UserID = ref
		all = append(all, w)
	}
	all = append(all, windows...)
	for _, seg := range segments(h, all) {
		p, ok := seg.active[ref]
		if !ok {
			continue
		}
		frac := (seg.end - seg.start) / total
		res.Coverage += frac
		n := len(seg.active) - 1
		if n < 1 {
			continue
		}
		sumLog := 0.0
		for user, q := range seg.active {
			if user != ref {
				sumLog += math.Log(q)
			}
		}
		res.Score += frac * 100 * (math.Log(p) - sumLog/float64(n)) * o.scale()
	}
	return res
}

// SpotPeer is the peer score of the forecasts standing at one instant, full coverage for each.
func SpotPeer(o Outcome, at time.Time, windows []Window) []Result {
	active := make(map[uint64]float64)
	for _, w := range windows {
		if w.Start.After(at) || (w.End != nil && !w.End.After(at)) {
			continue
		}
		active[w.UserID] = w.P
	}
	results := make(map[uint64]*Result)
	n := len(active)
	if n < 2 {
		return nil
	}
	sumLog := 0.0
	for _, p := range active {
		sumLog += math.Log(p)
	}
	for user, p := range active {
		others := (sumLog - math.Log(p)) / float64(n-1)
		results[user] = &Result{UserID: user, Score: 100 * (math.Log(p) - others) * o.scale(), Coverage: 1}
	}
	return byUser(results)
}
