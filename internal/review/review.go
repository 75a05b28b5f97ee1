// Package review gathers annotator remarks into one table for the chief annotator.
package review

import (
	"context"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/hpungsan/phishlabel/internal/errors"
	"github.com/hpungsan/phishlabel/internal/labels"
	"github.com/hpungsan/phishlabel/internal/progress"
	"github.com/hpungsan/phishlabel/internal/tabular"
)

// Output columns.
const (
	ColOriginalLabels     = "original_labels"
	ColOriginalConfidence = "original_confidence"
	ColAllRemarks         = "all_remarks"
	ColAnnotators         = "annotators"
	ColChiefLabel         = "chief_label"
	ColChiefConfidence    = "chief_confidence"
	ColChiefNotes         = "chief_notes"
)

// Header is the column order of the review table.
var Header = []string{
	progress.ColText, progress.ColSource, progress.ColLength,
	ColOriginalLabels, ColOriginalConfidence, ColAllRemarks, ColAnnotators,
	ColChiefLabel, ColChiefConfidence, ColChiefNotes,
}

// Entry is one remarked row, tagged with its annotator.
type Entry struct {
	AnnotatorID string
	Label       *int
	Confidence  *float64
	Remarks     string
}

// Item groups every remarked row sharing the same text. Entries keep the
// order they were read in, so each list column lines up position by position.
type Item struct {
	TextKey       string
	SourceDataset string
	TextLength    string
	Entries       []Entry
}

// Labels returns the entries' labels in entry order.
func (it *Item) Labels() []*int {
	out := make([]*int, len(it.Entries))
	for i, e := range it.Entries {
		out[i] = e.Label
	}
	return out
}

// Confidences returns the entries' confidences in entry order.
func (it *Item) Confidences() []*float64 {
	out := make([]*float64, len(it.Entries))
	for i, e := range it.Entries {
		out[i] = e.Confidence
	}
	return out
}

// Annotators returns the entries' annotator ids in entry order.
func (it *Item) Annotators() []string {
	out := make([]string, len(it.Entries))
	for i, e := range it.Entries {
		out[i] = e.AnnotatorID
	}
	return out
}

// AllRemarks joins the tagged remarks as "[id] remark | [id] remark".
func (it *Item) AllRemarks() string {
	parts := make([]string, len(it.Entries))
	for i, e := range it.Entries {
		parts[i] = "[" + e.AnnotatorID + "] " + e.Remarks
	}
	return strings.Join(parts, " | ")
}

// Failure records a progress file that could not be read.
type Failure struct {
	AnnotatorID string
	Path        string
	Err         error
}

// Result is the output of Extract.
type Result struct {
	// Items is sorted by text.
	Items []Item
	// Remarked counts remarked rows per annotator, for files that loaded.
	Remarked map[string]int
	// Coerced counts cells per annotator that were unreadable and nulled.
	Coerced  map[string]int
	Files    int
	Failures []Failure
}

// Options configures Extract.
type Options struct {
	Scheme *labels.Scheme
	Logger *zap.Logger
}

// Extract reads every progress file in dir and groups rows with non-empty
// remarks by text. Files are read leniently: a bad label or confidence
// becomes null and is counted in Coerced, so it cannot hide the remarks on
// other rows. Files are visited in annotator order and rows in file
// order, and every list of an Item is built from that single pass.
// A missing or empty directory returns NO_INPUT.
func Extract(ctx context.Context, dir string, opts Options) (*Result, error) {
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	scheme := opts.Scheme
	if scheme == nil {
		scheme = labels.Default()
	}

	files, err := progress.Discover(dir)
	if err != nil {
		return nil, err
	}
	res := &Result{Remarked: make(map[string]int), Coerced: make(map[string]int), Files: len(files)}
	if len(files) == 0 {
		return res, errors.NewNoInput(dir)
	}

	byText := make(map[string]*Item)
	for _, f := range files {
		if err := ctx.Err(); err != nil {
			return nil, errors.NewCancelled("review extract")
		}

		t, err := progress.ReadFile(f.Path, progress.ReadOptions{Mode: progress.Lenient, Scheme: scheme})
		if err != nil {
			log.Warn("skipping progress file", zap.String("annotator", f.AnnotatorID), zap.Error(err))
			res.Failures = append(res.Failures, Failure{AnnotatorID: f.AnnotatorID, Path: f.Path, Err: err})
			continue
		}
		if t.Coerced > 0 {
			res.Coerced[f.AnnotatorID] = t.Coerced
			log.Warn("nulled unreadable cells", zap.String("annotator", f.AnnotatorID), zap.Int("cells", t.Coerced))
		}

		n := 0
		for _, r := range t.Records {
			if r.Remarks == "" {
				continue
			}
			n++
			it, ok := byText[r.TextKey]
			if !ok {
				it = &Item{TextKey: r.TextKey}
				byText[r.TextKey] = it
			}
			if it.SourceDataset == "" {
				it.SourceDataset = r.SourceDataset
			}
			if it.TextLength == "" {
				it.TextLength = r.TextLength
			}
			it.Entries = append(it.Entries, Entry{
				AnnotatorID: f.AnnotatorID,
				Label:       r.Label,
				Confidence:  r.Confidence,
				Remarks:     r.Remarks,
			})
		}
		if n > 0 {
			res.Remarked[f.AnnotatorID] = n
		}
		log.Debug("scanned remarks", zap.String("annotator", f.AnnotatorID), zap.Int("remarked", n))
	}

	keys := make([]string, 0, len(byText))
	for k := range byText {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	res.Items = make([]Item, len(keys))
	for i, k := range keys {
		res.Items[i] = *byText[k]
	}
	return res, nil
}

// Table renders the review table with blank chief columns, or nil when no
// item has remarks.
func (r *Result) Table() *tabular.Table {
	if len(r.Items) == 0 {
		return nil
	}
	t := &tabular.Table{Header: append([]string(nil), Header...)}
	for i := range r.Items {
		it := &r.Items[i]
		t.Rows = append(t.Rows, []string{
			it.TextKey,
			it.SourceDataset,
			it.TextLength,
			formatLabels(it.Labels()),
			formatFloats(it.Confidences()),
			it.AllRemarks(),
			formatList(it.Annotators()),
			"", "", "",
		})
	}
	return t
}

// missing is how an absent label or confidence appears inside a list cell.
const missing = "nan"

func formatLabels(ls []*int) string {
	parts := make([]string, len(ls))
	for i, l := range ls {
		if l == nil {
			parts[i] = missing
			continue
		}
		parts[i] = progress.FormatLabel(l)
	}
	return formatList(parts)
}

func formatFloats(fs []*float64) string {
	parts := make([]string, len(fs))
	for i, f := range fs {
		if f == nil {
			parts[i] = missing
			continue
		}
		parts[i] = progress.FormatFloat(f)
	}
	return formatList(parts)
}

func formatList(items []string) string {
	return "[" + strings.Join(items, ", ") + "]"
}
