package ops

import (
	"context"
	"database/sql"
	"time"

	"go.uber.org/zap"

	"github.com/hpungsan/phishlabel/internal/config"
	"github.com/hpungsan/phishlabel/internal/db"
	"github.com/hpungsan/phishlabel/internal/errors"
	"github.com/hpungsan/phishlabel/internal/iaa"
	"github.com/hpungsan/phishlabel/internal/ids"
	"github.com/hpungsan/phishlabel/internal/labels"
	"github.com/hpungsan/phishlabel/internal/tabular"
)

// AnalyzeInput contains parameters for the Analyze operation.
type AnalyzeInput struct {
	ProgressDir string // optional, default: cfg.ProgressDir
	MinOverlap  int    // optional, default: cfg.MinOverlap
	Output      string // optional, default: cfg.DisagreementsFile
	NoWrite     bool   // skip writing the disagreement file
	Record      bool   // store the run in history (requires a database)
	Scheme      *labels.Scheme
	Logger      *zap.Logger
}

// AnalyzeOutput contains the result of the Analyze operation.
type AnalyzeOutput struct {
	RunID string
	// NoInput is set when the progress directory held no progress files.
	// This is not an error: annotation happens incrementally.
	NoInput     bool
	ProgressDir string
	Load        *iaa.LoadResult
	Analysis    *iaa.Analysis
	// DisagreementsFile is the path written, or empty when nothing was flagged.
	DisagreementsFile string
}

// Analyze loads every progress file, computes all agreement reports, writes
// flagged disagreements and optionally records the run.
func Analyze(ctx context.Context, database *sql.DB, cfg *config.Config, input AnalyzeInput) (*AnalyzeOutput, error) {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	log := input.Logger
	if log == nil {
		log = zap.NewNop()
	}
	dir := orDefault(input.ProgressDir, cfg.ProgressDir)
	minOverlap := input.MinOverlap
	if minOverlap <= 0 {
		minOverlap = cfg.MinOverlap
	}
	if minOverlap <= 0 {
		minOverlap = iaa.DefaultMinOverlap
	}
	output := orDefault(input.Output, cfg.DisagreementsFile)
	if !input.NoWrite {
		if err := tabular.ValidateOutputPath(output); err != nil {
			return nil, err
		}
	}

	out := &AnalyzeOutput{ProgressDir: dir}
	res, err := iaa.Load(ctx, dir, iaa.LoadOptions{Scheme: input.Scheme, Logger: log})
	if err != nil {
		if errors.Is(err, errors.ErrNoInput) {
			log.Info("no progress files", zap.String("dir", dir))
			out.NoInput = true
			out.Load = res
			return out, nil
		}
		return nil, err
	}
	out.Load = res
	out.Analysis = iaa.Analyze(res.Sets, minOverlap)

	if !input.NoWrite && out.Analysis.Wide != nil {
		if t := out.Analysis.Wide.DisagreementTable(); t != nil {
			if err := tabular.Save(output, "disagreements", t); err != nil {
				return nil, err
			}
			out.DisagreementsFile = output
			log.Info("disagreements written", zap.String("path", output), zap.Int("rows", len(t.Rows)))
		}
	}

	if input.Record && database != nil {
		id, err := ids.New()
		if err != nil {
			return nil, errors.NewInternal(err)
		}
		out.RunID = id
		if err := db.InsertRun(ctx, database, out.run(time.Now())); err != nil {
			return nil, err
		}
		log.Debug("run recorded", zap.String("run", id))
	}

	return out, nil
}

// run converts the output to a history record.
func (o *AnalyzeOutput) run(now time.Time) *db.Run {
	a := o.Analysis
	r := &db.Run{
		ID:          o.RunID,
		CreatedAt:   now.Unix(),
		ProgressDir: o.ProgressDir,
		MinOverlap:  a.MinOverlap,
		Annotators:  []string{},
		FailedFiles: len(o.Load.Failures),
		Pairs:       []db.Pair{},
	}
	for _, s := range o.Load.Sets {
		r.Annotators = append(r.Annotators, s.AnnotatorID)
	}
	if o.DisagreementsFile != "" {
		f := o.DisagreementsFile
		r.DisagreementsFile = &f
	}
	if a.Wide != nil {
		r.TotalItems = len(a.Wide.Rows)
		r.Disagreements = len(a.Wide.Disagreements())
	}
	if !a.TooFewAnnotators {
		r.FleissItems = a.Fleiss.Items
		if !a.Fleiss.Skipped {
			r.FleissKappa = finite(a.Fleiss.Kappa)
		}
	}
	for _, p := range a.Pairwise.Pairs {
		tier := p.Tier
		r.Pairs = append(r.Pairs, db.Pair{
			AnnotatorA:   p.AnnotatorA,
			AnnotatorB:   p.AnnotatorB,
			NCommon:      p.NCommon,
			RawAgreement: finite(p.RawAgreement),
			Kappa:        finite(p.Kappa),
			Tier:         &tier,
			PValue:       finite(p.P),
		})
	}
	for _, s := range a.Pairwise.Skipped {
		r.Pairs = append(r.Pairs, db.Pair{
			AnnotatorA: s.AnnotatorA,
			AnnotatorB: s.AnnotatorB,
			NCommon:    s.NCommon,
			Skipped:    true,
		})
	}
	return r
}
