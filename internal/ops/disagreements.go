package ops

import (
	"context"

	"go.uber.org/zap"

	"github.com/hpungsan/phishlabel/internal/config"
	"github.com/hpungsan/phishlabel/internal/errors"
	"github.com/hpungsan/phishlabel/internal/iaa"
	"github.com/hpungsan/phishlabel/internal/labels"
)

// DisagreementsInput contains parameters for the Disagreements operation.
type DisagreementsInput struct {
	ProgressDir string // optional, default: cfg.ProgressDir
	Limit       int    // optional, default 50, max 500
	Offset      int    // optional, default 0
	Scheme      *labels.Scheme
	Logger      *zap.Logger
}

// DisagreementRow is one flagged item keyed by annotator id.
// Annotators that did not label the item are absent from the maps.
type DisagreementRow struct {
	TextKey     string              `json:"text_cleaned"`
	Labels      map[string]int      `json:"labels"`
	Confidences map[string]*float64 `json:"confidences"`
}

// DisagreementsOutput contains the result of the Disagreements operation.
type DisagreementsOutput struct {
	NoInput    bool              `json:"no_input"`
	Annotators []string          `json:"annotators"`
	Items      []DisagreementRow `json:"items"`
	Pagination Pagination        `json:"pagination"`
}

// Disagreements lists flagged items without writing any file.
func Disagreements(ctx context.Context, cfg *config.Config, input DisagreementsInput) (*DisagreementsOutput, error) {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	limit, offset := paginate(input.Limit, input.Offset, DefaultDisagreementLimit, MaxDisagreementLimit)
	out := &DisagreementsOutput{
		Annotators: []string{},
		Items:      []DisagreementRow{},
		Pagination: Pagination{Limit: limit, Offset: offset},
	}

	res, err := iaa.Load(ctx, orDefault(input.ProgressDir, cfg.ProgressDir),
		iaa.LoadOptions{Scheme: input.Scheme, Logger: input.Logger})
	if err != nil {
		if errors.Is(err, errors.ErrNoInput) {
			out.NoInput = true
			return out, nil
		}
		return nil, err
	}
	if len(res.Sets) < 2 {
		for _, s := range res.Sets {
			out.Annotators = append(out.Annotators, s.AnnotatorID)
		}
		return out, nil
	}

	wide := iaa.Join(res.Sets)
	out.Annotators = wide.Annotators
	flagged := wide.Disagreements()
	out.Pagination.Total = len(flagged)

	end := min(offset+limit, len(flagged))
	for i := offset; i < end; i++ {
		out.Items = append(out.Items, toDisagreementRow(wide.Annotators, flagged[i]))
	}
	out.Pagination.HasMore = end < len(flagged)
	return out, nil
}

func toDisagreementRow(annotators []string, r iaa.WideRow) DisagreementRow {
	row := DisagreementRow{
		TextKey:     r.TextKey,
		Labels:      make(map[string]int),
		Confidences: make(map[string]*float64),
	}
	for i, id := range annotators {
		if r.Labels[i] == nil {
			continue
		}
		row.Labels[id] = *r.Labels[i]
		row.Confidences[id] = r.Confidences[i]
	}
	return row
}
