// Package iaa measures inter-annotator agreement over per-annotator progress files.
package iaa

import (
	"context"

	"go.uber.org/zap"

	"github.com/hpungsan/phishlabel/internal/errors"
	"github.com/hpungsan/phishlabel/internal/labels"
	"github.com/hpungsan/phishlabel/internal/progress"
)

// Item is one committed annotation.
type Item struct {
	TextKey    string
	Label      int
	Confidence *float64
}

// LabelSet is the read-only view of one annotator's labeled rows.
type LabelSet struct {
	AnnotatorID string
	// Items holds every labeled row in file order, duplicates included.
	Items []Item
	// Duplicates counts labeled rows whose text key was already seen.
	Duplicates int

	index map[string]int
}

// NewLabelSet builds a label set from labeled records. Rows without a label
// are dropped. Repeated text keys collapse to their first labeled occurrence
// for every keyed lookup; Items still keeps them all.
func NewLabelSet(annotatorID string, records []progress.Record) *LabelSet {
	ls := &LabelSet{AnnotatorID: annotatorID, index: make(map[string]int)}
	for _, r := range records {
		if r.Label == nil {
			continue
		}
		ls.Items = append(ls.Items, Item{TextKey: r.TextKey, Label: *r.Label, Confidence: r.Confidence})
		if _, seen := ls.index[r.TextKey]; seen {
			ls.Duplicates++
			continue
		}
		ls.index[r.TextKey] = len(ls.Items) - 1
	}
	return ls
}

// Lookup returns the first labeled item with the given key.
func (ls *LabelSet) Lookup(key string) (Item, bool) {
	i, ok := ls.index[key]
	if !ok {
		return Item{}, false
	}
	return ls.Items[i], true
}

// Keys returns the distinct keys in first-occurrence order.
func (ls *LabelSet) Keys() []string {
	keys := make([]string, 0, len(ls.index))
	for i, it := range ls.Items {
		if ls.index[it.TextKey] == i {
			keys = append(keys, it.TextKey)
		}
	}
	return keys
}

// Len returns the number of distinct keys.
func (ls *LabelSet) Len() int { return len(ls.index) }

// FileFailure records a progress file that could not be loaded.
type FileFailure struct {
	AnnotatorID string
	Path        string
	Err         error
}

// LoadResult is everything Load produced.
type LoadResult struct {
	// Sets is sorted by annotator id.
	Sets     []*LabelSet
	Failures []FileFailure
}

// LoadOptions configures Load.
type LoadOptions struct {
	// Scheme restricts labels; nil means the built-in scheme.
	Scheme *labels.Scheme
	Logger *zap.Logger
}

// Load reads every progress file in dir. A file that fails to parse is
// recorded in Failures and skipped; the remaining files still load.
// An empty or missing directory returns a NO_INPUT error alongside an empty
// result, which callers report without treating the run as failed.
func Load(ctx context.Context, dir string, opts LoadOptions) (*LoadResult, error) {
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
	res := &LoadResult{}
	if len(files) == 0 {
		return res, errors.NewNoInput(dir)
	}

	for _, f := range files {
		if err := ctx.Err(); err != nil {
			return nil, errors.NewCancelled("load")
		}

		t, err := progress.ReadFile(f.Path, progress.ReadOptions{Mode: progress.Strict, Scheme: scheme})
		if err != nil {
			log.Warn("skipping progress file", zap.String("annotator", f.AnnotatorID), zap.String("path", f.Path), zap.Error(err))
			res.Failures = append(res.Failures, FileFailure{AnnotatorID: f.AnnotatorID, Path: f.Path, Err: err})
			continue
		}

		ls := NewLabelSet(f.AnnotatorID, t.Records)
		log.Debug("loaded annotations",
			zap.String("annotator", f.AnnotatorID),
			zap.Int("labeled", len(ls.Items)),
			zap.Int("duplicates", ls.Duplicates))
		res.Sets = append(res.Sets, ls)
	}

	return res, nil
}
