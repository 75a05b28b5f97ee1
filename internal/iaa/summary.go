package iaa

import (
	"math"

	"github.com/montanaflynn/stats"
)

// ClassCount is the frequency of one class in an annotator's labels.
type ClassCount struct {
	Class   int     `json:"class"`
	Count   int     `json:"count"`
	Percent float64 `json:"percent"`
}

// AnnotatorSummary describes one annotator's labeled rows.
type AnnotatorSummary struct {
	AnnotatorID string
	// Total counts labeled rows, duplicate keys included.
	Total   int
	Classes []ClassCount
	// MeanConfidence averages the rows that carry a confidence; NaN when none do.
	MeanConfidence float64
	// WithConfidence is how many rows contributed to MeanConfidence.
	WithConfidence int
}

// Summarize reports per-annotator totals, class distribution and mean confidence.
func Summarize(sets []*LabelSet) []AnnotatorSummary {
	out := make([]AnnotatorSummary, 0, len(sets))
	for _, s := range sets {
		sum := AnnotatorSummary{AnnotatorID: s.AnnotatorID, Total: len(s.Items), MeanConfidence: math.NaN()}

		freq := make(map[int]int)
		var conf stats.Float64Data
		for _, it := range s.Items {
			freq[it.Label]++
			if it.Confidence != nil {
				conf = append(conf, *it.Confidence)
			}
		}
		for _, c := range classes(freq) {
			sum.Classes = append(sum.Classes, ClassCount{
				Class:   c,
				Count:   freq[c],
				Percent: 100 * float64(freq[c]) / float64(sum.Total),
			})
		}

		sum.WithConfidence = len(conf)
		if mean, err := stats.Mean(conf); err == nil {
			sum.MeanConfidence = mean
		}
		out = append(out, sum)
	}
	return out
}
