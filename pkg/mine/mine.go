// Mining of raw alignment output: threshold filtering and collapsing of
// multiple hits per query into a single reproducible best hit.
package mine

import (
	"sort"

	"github.com/yumyai/panscope/pkg/align"
)

// Thresholds are the run-scoped mining minima, both in percent.
type Thresholds struct {
	MinIdentity float64
	MinCoverage float64
	MaxEValue   float64
}

// BestHit is the single surviving hit for one query id.
type BestHit struct {
	align.RawHit
}

// Filter keeps hits meeting both identity and coverage minima, and the
// e-value cutoff when one is set.
func Filter(hits []align.RawHit, th Thresholds) []align.RawHit {
	var kept []align.RawHit
	for _, h := range hits {
		if h.Identity < th.MinIdentity {
			continue
		}
		if h.Coverage() < th.MinCoverage {
			continue
		}
		if th.MaxEValue > 0 && h.EValue > th.MaxEValue {
			continue
		}
		kept = append(kept, h)
	}
	return kept
}

// better reports whether a beats b under the documented total order:
// higher bitscore, then higher identity, then higher coverage, then
// lexicographically smaller subject id. The final tie-break makes selection
// deterministic on any input.
func better(a, b align.RawHit) bool {
	if a.Bitscore != b.Bitscore {
		return a.Bitscore > b.Bitscore
	}
	if a.Identity != b.Identity {
		return a.Identity > b.Identity
	}
	if ac, bc := a.Coverage(), b.Coverage(); ac != bc {
		return ac > bc
	}
	return a.SubjectID < b.SubjectID
}

// SelectBest collapses filtered hits to at most one BestHit per query id,
// returned sorted by query id. Queries with no surviving hit contribute
// nothing; that is not an error.
func SelectBest(filtered []align.RawHit) []BestHit {

	bestByQuery := make(map[string]align.RawHit)
	for _, h := range filtered {
		cur, seen := bestByQuery[h.QueryID]
		if !seen || better(h, cur) {
			bestByQuery[h.QueryID] = h
		}
	}

	out := make([]BestHit, 0, len(bestByQuery))
	for _, h := range bestByQuery {
		out = append(out, BestHit{RawHit: h})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].QueryID < out[j].QueryID })
	return out
}

// Mine runs the full filter-then-select step for one job's hits.
func Mine(hits []align.RawHit, th Thresholds) []BestHit {
	return SelectBest(Filter(hits, th))
}
