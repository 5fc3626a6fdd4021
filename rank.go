package mirrorrank

import "sort"

// Rank orders results best first: higher SuccessRate first, then lower
// AvgLatency. Results that compare equal keep their input order.
//
// Rank is pure. It returns a new slice and never modifies its input, and
// ranking an already ranked slice returns the same order.
func Rank(results []Stats) []Stats {
	ranked := make([]Stats, len(results))
	copy(ranked, results)

	sort.SliceStable(ranked, func(i, j int) bool {
		return better(ranked[i], ranked[j])
	})
	return ranked
}

// better reports whether a ranks strictly ahead of b. Two +Inf latencies
// compare equal, so unreachable endpoints keep their relative order.
func better(a, b Stats) bool {
	if a.SuccessRate != b.SuccessRate {
		return a.SuccessRate > b.SuccessRate
	}
	return a.AvgLatency < b.AvgLatency
}
