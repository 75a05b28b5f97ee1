package iaa

import "math"

// FleissResult is Fleiss' kappa over the items every annotator labeled.
type FleissResult struct {
	Raters int
	Items  int
	// Skipped is set when fewer than two raters were loaded or the shared
	// item count is under the minimum overlap; Kappa is NaN then.
	Skipped  bool
	Observed float64 // mean per-item agreement, P-bar
	Expected float64 // P-bar_e
	Kappa    float64
	Tier     string
}

// FleissKappa computes Fleiss' kappa across all sets on the keys present in
// every one of them. Kappa is 0 when P-bar_e is 1.
func FleissKappa(sets []*LabelSet, minOverlap int) FleissResult {
	res := FleissResult{Raters: len(sets), Kappa: math.NaN(), Observed: math.NaN(), Expected: math.NaN()}
	if len(sets) < 2 {
		res.Skipped = true
		return res
	}
	if minOverlap < 1 {
		minOverlap = 1
	}

	var keys []string
	for _, k := range sets[0].Keys() {
		shared := true
		for _, s := range sets[1:] {
			if _, ok := s.Lookup(k); !ok {
				shared = false
				break
			}
		}
		if shared {
			keys = append(keys, k)
		}
	}
	res.Items = len(keys)
	if res.Items < minOverlap {
		res.Skipped = true
		return res
	}

	n := float64(len(sets))
	totals := make(map[int]int)
	var sumP float64
	for _, k := range keys {
		counts := make(map[int]int)
		for _, s := range sets {
			it, _ := s.Lookup(k)
			counts[it.Label]++
			totals[it.Label]++
		}
		var sq float64
		for _, c := range counts {
			sq += float64(c * c)
		}
		sumP += (sq - n) / (n * (n - 1))
	}

	N := float64(len(keys))
	res.Observed = sumP / N
	res.Expected = 0
	for _, c := range classes(totals) {
		p := float64(totals[c]) / (N * n)
		res.Expected += p * p
	}

	if res.Expected >= 1 {
		res.Kappa = 0
	} else {
		res.Kappa = (res.Observed - res.Expected) / (1 - res.Expected)
	}
	res.Tier = Interpret(res.Kappa)
	return res
}
