package iaa

import (
	"sort"

	"github.com/hpungsan/phishlabel/internal/progress"
	"github.com/hpungsan/phishlabel/internal/tabular"
)

// WideRow is one text key across all annotators. Slices are indexed like
// WideTable.Annotators; nil entries mean that annotator did not label the key.
type WideRow struct {
	TextKey         string
	Labels          []*int
	Confidences     []*float64
	HasDisagreement bool
}

// WideTable is the outer join of every label set on text key.
type WideTable struct {
	Annotators []string
	// Rows is sorted by text key.
	Rows []WideRow
}

// Disagreements returns the flagged rows.
func (w *WideTable) Disagreements() []WideRow {
	var out []WideRow
	for _, r := range w.Rows {
		if r.HasDisagreement {
			out = append(out, r)
		}
	}
	return out
}

// Rate returns the share of rows that are flagged, or 0 for an empty table.
func (w *WideTable) Rate() float64 {
	if len(w.Rows) == 0 {
		return 0
	}
	return float64(len(w.Disagreements())) / float64(len(w.Rows))
}

// Join builds the wide table. Missing labels stay nil, never zero.
func Join(sets []*LabelSet) *WideTable {
	w := &WideTable{}
	keySet := make(map[string]bool)
	for _, s := range sets {
		w.Annotators = append(w.Annotators, s.AnnotatorID)
		for _, k := range s.Keys() {
			keySet[k] = true
		}
	}
	keys := make([]string, 0, len(keySet))
	for k := range keySet {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	w.Rows = make([]WideRow, len(keys))
	for i, k := range keys {
		row := WideRow{
			TextKey:     k,
			Labels:      make([]*int, len(sets)),
			Confidences: make([]*float64, len(sets)),
		}
		for j, s := range sets {
			it, ok := s.Lookup(k)
			if !ok {
				continue
			}
			label := it.Label
			row.Labels[j] = &label
			row.Confidences[j] = it.Confidence
		}
		row.HasDisagreement = Disagree(row.Labels)
		w.Rows[i] = row
	}
	return w
}

// Disagree reports whether at least two labels are present and not all equal.
func Disagree(labels []*int) bool {
	var first *int
	present := 0
	differs := false
	for _, l := range labels {
		if l == nil {
			continue
		}
		present++
		if first == nil {
			first = l
		} else if *l != *first {
			differs = true
		}
	}
	return present >= 2 && differs
}

// Adjudication column names appended to the disagreement export.
const (
	ColAdjudicatedLabel = "adjudicated_label"
	ColAdjudicationNote = "adjudication_notes"
)

// DisagreementTable renders the flagged rows for adjudication: per-annotator
// label and confidence columns, the flag, then two blank columns. Returns nil
// when nothing is flagged.
func (w *WideTable) DisagreementTable() *tabular.Table {
	flagged := w.Disagreements()
	if len(flagged) == 0 {
		return nil
	}

	header := []string{progress.ColText}
	for _, id := range w.Annotators {
		header = append(header, "label_"+id, "conf_"+id)
	}
	header = append(header, "has_disagreement", ColAdjudicatedLabel, ColAdjudicationNote)

	t := &tabular.Table{Header: header}
	for _, r := range flagged {
		row := []string{r.TextKey}
		for j := range w.Annotators {
			row = append(row, progress.FormatLabel(r.Labels[j]), progress.FormatFloat(r.Confidences[j]))
		}
		row = append(row, "True", "", "")
		t.Rows = append(t.Rows, row)
	}
	return t
}
