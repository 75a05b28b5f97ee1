package iaa

// Analysis bundles every report computed over one load.
type Analysis struct {
	MinOverlap int
	Summaries  []AnnotatorSummary
	// TooFewAnnotators is set when fewer than two sets were loaded; the
	// agreement, disagreement and confusion sections are then empty.
	TooFewAnnotators bool
	Pairwise         PairwiseResult
	Fleiss           FleissResult
	Wide             *WideTable
	Confusions       []Confusion
}

// Analyze runs every analysis over sets. Summaries are always produced.
func Analyze(sets []*LabelSet, minOverlap int) *Analysis {
	if minOverlap < 1 {
		minOverlap = DefaultMinOverlap
	}
	a := &Analysis{MinOverlap: minOverlap, Summaries: Summarize(sets)}
	if len(sets) < 2 {
		a.TooFewAnnotators = true
		return a
	}
	a.Pairwise = Pairwise(sets, minOverlap)
	a.Fleiss = FleissKappa(sets, minOverlap)
	a.Wide = Join(sets)
	a.Confusions = Confusions(sets)
	return a
}
