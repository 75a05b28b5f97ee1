package iaa

// DefaultMinOverlap is the fewest jointly labeled items a pair needs before
// kappa is reported for it.
const DefaultMinOverlap = 10

// PairAgreement is the agreement between two annotators on their common items.
type PairAgreement struct {
	AnnotatorA   string
	AnnotatorB   string
	NCommon      int
	RawAgreement float64
	Kappa        float64
	Tier         string
	SE           float64
	Z            float64
	P            float64
}

// SkippedPair is a pair left out of the kappa report for insufficient overlap.
type SkippedPair struct {
	AnnotatorA string `json:"annotator_a"`
	AnnotatorB string `json:"annotator_b"`
	NCommon    int    `json:"n_common"`
}

// PairwiseResult holds every pair either measured or skipped, in pair order.
type PairwiseResult struct {
	Pairs   []PairAgreement
	Skipped []SkippedPair
}

// Pair is an unordered annotator pair, A before B in input order.
type Pair struct {
	A, B *LabelSet
}

// Pairs enumerates every unordered pair of sets.
func Pairs(sets []*LabelSet) []Pair {
	var out []Pair
	for i := 0; i < len(sets); i++ {
		for j := i + 1; j < len(sets); j++ {
			out = append(out, Pair{A: sets[i], B: sets[j]})
		}
	}
	return out
}

// Common returns the aligned labels of the keys both sets labeled, in A's
// first-occurrence order.
func (p Pair) Common() (keys []string, a, b []int) {
	for _, k := range p.A.Keys() {
		ib, ok := p.B.Lookup(k)
		if !ok {
			continue
		}
		ia, _ := p.A.Lookup(k)
		keys = append(keys, k)
		a = append(a, ia.Label)
		b = append(b, ib.Label)
	}
	return keys, a, b
}

// Pairwise computes Cohen's kappa for every pair with at least minOverlap
// common items. Pairs below the threshold are reported in Skipped with no
// value substituted. A minOverlap below 1 is treated as 1.
func Pairwise(sets []*LabelSet, minOverlap int) PairwiseResult {
	if minOverlap < 1 {
		minOverlap = 1
	}
	var res PairwiseResult
	for _, p := range Pairs(sets) {
		_, a, b := p.Common()
		if len(a) < minOverlap {
			res.Skipped = append(res.Skipped, SkippedPair{
				AnnotatorA: p.A.AnnotatorID,
				AnnotatorB: p.B.AnnotatorID,
				NCommon:    len(a),
			})
			continue
		}
		k := CohenKappa(a, b)
		res.Pairs = append(res.Pairs, PairAgreement{
			AnnotatorA:   p.A.AnnotatorID,
			AnnotatorB:   p.B.AnnotatorID,
			NCommon:      k.N,
			RawAgreement: k.Observed,
			Kappa:        k.Value,
			Tier:         Interpret(k.Value),
			SE:           k.SE,
			Z:            k.Z,
			P:            k.P,
		})
	}
	return res
}
