package ops

import (
	"context"

	"go.uber.org/zap"

	"github.com/hpungsan/phishlabel/internal/config"
	"github.com/hpungsan/phishlabel/internal/errors"
	"github.com/hpungsan/phishlabel/internal/labels"
	"github.com/hpungsan/phishlabel/internal/review"
	"github.com/hpungsan/phishlabel/internal/tabular"
)

// ReviewInput contains parameters for the ExtractReview operation.
type ReviewInput struct {
	ProgressDir string // optional, default: cfg.ProgressDir
	Output      string // optional, default: cfg.ReviewFile
	NoWrite     bool
	Scheme      *labels.Scheme
	Logger      *zap.Logger
}

// ReviewOutput contains the result of the ExtractReview operation.
type ReviewOutput struct {
	NoInput  bool            `json:"no_input"`
	Files    int             `json:"files"`
	Items    int             `json:"items"`
	Remarked map[string]int  `json:"remarked"`
	Coerced  map[string]int  `json:"coerced"`
	Failures []FailureReport `json:"failures"`
	// Path is the file written, or empty when no row had remarks.
	Path   string         `json:"path,omitempty"`
	Result *review.Result `json:"-"`
}

// ExtractReview collects remarked rows from every progress file into the
// review table and writes it.
func ExtractReview(ctx context.Context, cfg *config.Config, input ReviewInput) (*ReviewOutput, error) {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	log := input.Logger
	if log == nil {
		log = zap.NewNop()
	}
	dir := orDefault(input.ProgressDir, cfg.ProgressDir)
	output := orDefault(input.Output, cfg.ReviewFile)
	if !input.NoWrite {
		if err := tabular.ValidateOutputPath(output); err != nil {
			return nil, err
		}
	}

	out := &ReviewOutput{Remarked: map[string]int{}, Coerced: map[string]int{}, Failures: []FailureReport{}}
	res, err := review.Extract(ctx, dir, review.Options{Scheme: input.Scheme, Logger: log})
	if err != nil {
		if errors.Is(err, errors.ErrNoInput) {
			out.NoInput = true
			return out, nil
		}
		return nil, err
	}
	out.Result = res
	out.Files = res.Files
	out.Items = len(res.Items)
	out.Remarked = res.Remarked
	out.Coerced = res.Coerced
	for _, f := range res.Failures {
		out.Failures = append(out.Failures, FailureReport{Annotator: f.AnnotatorID, Path: f.Path, Error: f.Err.Error()})
	}

	if input.NoWrite {
		return out, nil
	}
	if t := res.Table(); t != nil {
		if err := tabular.Save(output, "review", t); err != nil {
			return nil, err
		}
		out.Path = output
		log.Info("review table written", zap.String("path", output), zap.Int("items", len(t.Rows)))
	}
	return out, nil
}
