package ops

import (
	"github.com/hpungsan/phishlabel/internal/iaa"
)

// Report is the JSON form of an analysis, used by MCP tools.
// NaN values (undefined kappa, no confidences) are omitted.
type Report struct {
	RunID             string            `json:"run_id,omitempty"`
	NoInput           bool              `json:"no_input"`
	ProgressDir       string            `json:"progress_dir"`
	MinOverlap        int               `json:"min_overlap"`
	Annotators        []AnnotatorReport `json:"annotators"`
	Failures          []FailureReport   `json:"failures"`
	TooFewAnnotators  bool              `json:"too_few_annotators"`
	Pairs             []PairReport      `json:"pairs"`
	Skipped           []iaa.SkippedPair `json:"skipped_pairs"`
	Fleiss            *FleissReport     `json:"fleiss,omitempty"`
	TotalItems        int               `json:"total_items"`
	Disagreements     int               `json:"disagreements"`
	DisagreementRate  float64           `json:"disagreement_rate"`
	DisagreementsFile string            `json:"disagreements_file,omitempty"`
	Confusions        []ConfusionReport `json:"confusions"`
}

// AnnotatorReport summarizes one annotator.
type AnnotatorReport struct {
	ID             string           `json:"id"`
	Total          int              `json:"total"`
	Duplicates     int              `json:"duplicates"`
	Classes        []iaa.ClassCount `json:"classes"`
	MeanConfidence *float64         `json:"mean_confidence,omitempty"`
}

// FailureReport is a progress file that could not be loaded.
type FailureReport struct {
	Annotator string `json:"annotator"`
	Path      string `json:"path"`
	Error     string `json:"error"`
}

// PairReport is one measured pair.
type PairReport struct {
	AnnotatorA   string   `json:"annotator_a"`
	AnnotatorB   string   `json:"annotator_b"`
	NCommon      int      `json:"n_common"`
	RawAgreement float64  `json:"raw_agreement"`
	Kappa        float64  `json:"kappa"`
	Tier         string   `json:"tier"`
	PValue       *float64 `json:"p_value,omitempty"`
}

// FleissReport is Fleiss' kappa across all annotators.
type FleissReport struct {
	Raters  int      `json:"raters"`
	Items   int      `json:"items"`
	Skipped bool     `json:"skipped"`
	Kappa   *float64 `json:"kappa,omitempty"`
	Tier    string   `json:"tier,omitempty"`
}

// ConfusionReport is one pair's contingency table.
type ConfusionReport struct {
	AnnotatorA string  `json:"annotator_a"`
	AnnotatorB string  `json:"annotator_b"`
	Rows       []int   `json:"rows"`
	Cols       []int   `json:"cols"`
	Counts     [][]int `json:"counts"`
}

// Report converts the output for JSON encoding.
func (o *AnalyzeOutput) Report() *Report {
	r := &Report{
		RunID:             o.RunID,
		NoInput:           o.NoInput,
		ProgressDir:       o.ProgressDir,
		Annotators:        []AnnotatorReport{},
		Failures:          []FailureReport{},
		Pairs:             []PairReport{},
		Skipped:           []iaa.SkippedPair{},
		Confusions:        []ConfusionReport{},
		DisagreementsFile: o.DisagreementsFile,
	}
	if o.Load != nil {
		for _, f := range o.Load.Failures {
			r.Failures = append(r.Failures, FailureReport{Annotator: f.AnnotatorID, Path: f.Path, Error: f.Err.Error()})
		}
	}
	a := o.Analysis
	if a == nil {
		return r
	}

	r.MinOverlap = a.MinOverlap
	r.TooFewAnnotators = a.TooFewAnnotators
	for i, s := range a.Summaries {
		ar := AnnotatorReport{
			ID:             s.AnnotatorID,
			Total:          s.Total,
			Classes:        s.Classes,
			MeanConfidence: finite(s.MeanConfidence),
		}
		if o.Load != nil && i < len(o.Load.Sets) {
			ar.Duplicates = o.Load.Sets[i].Duplicates
		}
		r.Annotators = append(r.Annotators, ar)
	}
	if a.TooFewAnnotators {
		return r
	}

	for _, p := range a.Pairwise.Pairs {
		r.Pairs = append(r.Pairs, PairReport{
			AnnotatorA:   p.AnnotatorA,
			AnnotatorB:   p.AnnotatorB,
			NCommon:      p.NCommon,
			RawAgreement: p.RawAgreement,
			Kappa:        p.Kappa,
			Tier:         p.Tier,
			PValue:       finite(p.P),
		})
	}
	r.Skipped = append(r.Skipped, a.Pairwise.Skipped...)
	r.Fleiss = &FleissReport{
		Raters:  a.Fleiss.Raters,
		Items:   a.Fleiss.Items,
		Skipped: a.Fleiss.Skipped,
		Kappa:   finite(a.Fleiss.Kappa),
		Tier:    a.Fleiss.Tier,
	}
	r.TotalItems = len(a.Wide.Rows)
	r.Disagreements = len(a.Wide.Disagreements())
	r.DisagreementRate = a.Wide.Rate()
	for _, c := range a.Confusions {
		r.Confusions = append(r.Confusions, ConfusionReport{
			AnnotatorA: c.AnnotatorA,
			AnnotatorB: c.AnnotatorB,
			Rows:       c.Rows,
			Cols:       c.Cols,
			Counts:     c.Counts,
		})
	}
	return r
}
