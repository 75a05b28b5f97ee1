package iaa

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/stat/distuv"
)

// Tier names for kappa values.
const (
	TierPoor          = "Poor (less than chance)"
	TierSlight        = "Slight"
	TierFair          = "Fair"
	TierModerate      = "Moderate"
	TierSubstantial   = "Substantial"
	TierAlmostPerfect = "Almost Perfect"
)

// Interpret maps kappa to its qualitative tier. Lower bounds are inclusive.
func Interpret(kappa float64) string {
	switch {
	case kappa < 0:
		return TierPoor
	case kappa < 0.20:
		return TierSlight
	case kappa < 0.40:
		return TierFair
	case kappa < 0.60:
		return TierModerate
	case kappa < 0.80:
		return TierSubstantial
	default:
		return TierAlmostPerfect
	}
}

// Kappa is a chance-corrected agreement estimate between two raters.
type Kappa struct {
	N        int
	Observed float64 // p_o, the raw agreement rate
	Expected float64 // p_e, agreement expected from the marginals
	Value    float64
	// SE is the standard error of kappa under the null hypothesis of
	// chance agreement; Z and P test Value against zero. All three are NaN
	// when undefined (n = 0 or p_e = 1).
	SE float64
	Z  float64
	P  float64
}

// CohenKappa computes Cohen's kappa for two aligned label vectors.
// It panics if the vectors differ in length. Kappa is 0 when p_e is 1.
func CohenKappa(a, b []int) Kappa {
	if len(a) != len(b) {
		panic("iaa: label vectors differ in length")
	}
	k := Kappa{N: len(a), SE: math.NaN(), Z: math.NaN(), P: math.NaN()}
	if k.N == 0 {
		k.Observed = math.NaN()
		k.Expected = math.NaN()
		k.Value = math.NaN()
		return k
	}

	n := float64(k.N)
	freqA := make(map[int]int)
	freqB := make(map[int]int)
	agree := 0
	for i := range a {
		freqA[a[i]]++
		freqB[b[i]]++
		if a[i] == b[i] {
			agree++
		}
	}
	k.Observed = float64(agree) / n

	var cross float64
	for _, c := range classes(freqA, freqB) {
		pa := float64(freqA[c]) / n
		pb := float64(freqB[c]) / n
		k.Expected += pa * pb
		cross += pa * pb * (pa + pb)
	}

	if k.Expected >= 1 {
		k.Value = 0
		return k
	}
	k.Value = (k.Observed - k.Expected) / (1 - k.Expected)

	variance := (k.Expected + k.Expected*k.Expected - cross) / (n * (1 - k.Expected) * (1 - k.Expected))
	if variance > 0 {
		k.SE = math.Sqrt(variance)
		k.Z = k.Value / k.SE
		k.P = 2 * (1 - distuv.UnitNormal.CDF(math.Abs(k.Z)))
	}
	return k
}

// classes returns the union of keys of both frequency maps, ascending.
func classes(maps ...map[int]int) []int {
	seen := make(map[int]bool)
	var out []int
	for _, m := range maps {
		for c := range m {
			if !seen[c] {
				seen[c] = true
				out = append(out, c)
			}
		}
	}
	sort.Ints(out)
	return out
}
