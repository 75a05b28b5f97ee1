package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"strings"
	"time"

	"github.com/hpungsan/phishlabel/internal/errors"
)

// Run is one recorded agreement analysis.
type Run struct {
	ID                string   `json:"id"`
	CreatedAt         int64    `json:"created_at"`
	ProgressDir       string   `json:"progress_dir"`
	MinOverlap        int      `json:"min_overlap"`
	Annotators        []string `json:"annotators"`
	FailedFiles       int      `json:"failed_files"`
	TotalItems        int      `json:"total_items"`
	Disagreements     int      `json:"disagreements"`
	DisagreementsFile *string  `json:"disagreements_file,omitempty"`
	FleissKappa       *float64 `json:"fleiss_kappa,omitempty"`
	FleissItems       int      `json:"fleiss_items"`
	Pairs             []Pair   `json:"pairs"`
}

// Pair is one annotator pair within a run. Skipped pairs carry no kappa.
type Pair struct {
	AnnotatorA   string   `json:"annotator_a"`
	AnnotatorB   string   `json:"annotator_b"`
	NCommon      int      `json:"n_common"`
	Skipped      bool     `json:"skipped"`
	RawAgreement *float64 `json:"raw_agreement,omitempty"`
	Kappa        *float64 `json:"kappa,omitempty"`
	Tier         *string  `json:"tier,omitempty"`
	PValue       *float64 `json:"p_value,omitempty"`
}

// ErrUniqueConstraint is returned when an insert violates a UNIQUE constraint.
var ErrUniqueConstraint = &errors.LabelError{
	Code:    "UNIQUE_CONSTRAINT",
	Status:  409,
	Message: "unique constraint violation",
}

// InsertRun stores a run and its pairs in one transaction.
func InsertRun(ctx context.Context, db *sql.DB, r *Run) error {
	annotators, err := json.Marshal(r.Annotators)
	if err != nil {
		return errors.NewInternal(err)
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return errors.NewInternal(err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO runs (
			id, created_at, progress_dir, min_overlap, annotators_json,
			failed_files, total_items, disagreements, disagreements_file,
			fleiss_kappa, fleiss_items
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		r.ID, r.CreatedAt, r.ProgressDir, r.MinOverlap, string(annotators),
		r.FailedFiles, r.TotalItems, r.Disagreements, toNullString(r.DisagreementsFile),
		toNullFloat(r.FleissKappa), r.FleissItems,
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return ErrUniqueConstraint
		}
		return errors.NewInternal(err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO pair_agreements (
			run_id, annotator_a, annotator_b, n_common, skipped,
			raw_agreement, kappa, tier, p_value
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return errors.NewInternal(err)
	}
	defer stmt.Close()

	for _, p := range r.Pairs {
		_, err := stmt.ExecContext(ctx,
			r.ID, p.AnnotatorA, p.AnnotatorB, p.NCommon, p.Skipped,
			toNullFloat(p.RawAgreement), toNullFloat(p.Kappa), toNullString(p.Tier), toNullFloat(p.PValue),
		)
		if err != nil {
			if isUniqueConstraintError(err) {
				return ErrUniqueConstraint
			}
			return errors.NewInternal(err)
		}
	}

	if err := tx.Commit(); err != nil {
		return errors.NewInternal(err)
	}
	return nil
}

// isUniqueConstraintError checks if the error is a SQLite UNIQUE constraint violation.
func isUniqueConstraintError(err error) bool {
	if err == nil {
		return false
	}
	// SQLite reports primary key and unique index violations the same way.
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}

const runColumns = `
	id, created_at, progress_dir, min_overlap, annotators_json,
	failed_files, total_items, disagreements, disagreements_file,
	fleiss_kappa, fleiss_items
`

// GetRun retrieves a run and its pairs by ULID.
func GetRun(ctx context.Context, db *sql.DB, id string) (*Run, error) {
	row := db.QueryRowContext(ctx, "SELECT "+runColumns+" FROM runs WHERE id = ?", id)
	r, err := scanRun(row)
	if err == sql.ErrNoRows {
		return nil, errors.NewNotFound(id)
	}
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	if err := loadPairs(ctx, db, []*Run{r}); err != nil {
		return nil, err
	}
	return r, nil
}

// ListRuns returns runs newest first, with pairs, and the total run count.
func ListRuns(ctx context.Context, db *sql.DB, limit, offset int) ([]*Run, int, error) {
	var total int
	if err := db.QueryRowContext(ctx, "SELECT COUNT(*) FROM runs").Scan(&total); err != nil {
		return nil, 0, errors.NewInternal(err)
	}

	rows, err := db.QueryContext(ctx,
		"SELECT "+runColumns+" FROM runs ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?",
		limit, offset)
	if err != nil {
		return nil, 0, errors.NewInternal(err)
	}
	defer rows.Close()

	var runs []*Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, 0, errors.NewInternal(err)
		}
		runs = append(runs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, errors.NewInternal(err)
	}
	rows.Close()

	if err := loadPairs(ctx, db, runs); err != nil {
		return nil, 0, err
	}
	return runs, total, nil
}

// DeleteRun removes a run; its pairs cascade.
func DeleteRun(ctx context.Context, db *sql.DB, id string) error {
	result, err := db.ExecContext(ctx, "DELETE FROM runs WHERE id = ?", id)
	if err != nil {
		return errors.NewInternal(err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return errors.NewInternal(err)
	}
	if rowsAffected == 0 {
		return errors.NewNotFound(id)
	}
	return nil
}

func loadPairs(ctx context.Context, db *sql.DB, runs []*Run) error {
	for _, r := range runs {
		rows, err := db.QueryContext(ctx, `
			SELECT annotator_a, annotator_b, n_common, skipped, raw_agreement, kappa, tier, p_value
			FROM pair_agreements
			WHERE run_id = ?
			ORDER BY annotator_a, annotator_b
		`, r.ID)
		if err != nil {
			return errors.NewInternal(err)
		}

		r.Pairs = []Pair{}
		for rows.Next() {
			var (
				p                  Pair
				raw, kappa, pValue sql.NullFloat64
				tier               sql.NullString
			)
			if err := rows.Scan(&p.AnnotatorA, &p.AnnotatorB, &p.NCommon, &p.Skipped, &raw, &kappa, &tier, &pValue); err != nil {
				rows.Close()
				return errors.NewInternal(err)
			}
			p.RawAgreement = fromNullFloat(raw)
			p.Kappa = fromNullFloat(kappa)
			p.Tier = fromNullString(tier)
			p.PValue = fromNullFloat(pValue)
			r.Pairs = append(r.Pairs, p)
		}
		err = rows.Err()
		rows.Close()
		if err != nil {
			return errors.NewInternal(err)
		}
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

// scanRun scans a single row into a Run without its pairs.
func scanRun(row scanner) (*Run, error) {
	var (
		r          Run
		annotators string
		file       sql.NullString
		fleiss     sql.NullFloat64
	)
	err := row.Scan(
		&r.ID, &r.CreatedAt, &r.ProgressDir, &r.MinOverlap, &annotators,
		&r.FailedFiles, &r.TotalItems, &r.Disagreements, &file,
		&fleiss, &r.FleissItems,
	)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(annotators), &r.Annotators); err != nil {
		return nil, err
	}
	r.DisagreementsFile = fromNullString(file)
	r.FleissKappa = fromNullFloat(fleiss)
	return &r, nil
}

// toNullString converts a *string to sql.NullString.
func toNullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

// fromNullString converts a sql.NullString to *string.
func fromNullString(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	return &ns.String
}

// toNullFloat converts a *float64 to sql.NullFloat64.
func toNullFloat(f *float64) sql.NullFloat64 {
	if f == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *f, Valid: true}
}

// fromNullFloat converts a sql.NullFloat64 to *float64.
func fromNullFloat(nf sql.NullFloat64) *float64 {
	if !nf.Valid {
		return nil
	}
	return &nf.Float64
}

// PurgeRuns deletes runs, optionally only those created more than
// olderThanDays days ago. Returns the number of runs deleted.
func PurgeRuns(ctx context.Context, db *sql.DB, olderThanDays *int) (int, error) {
	query := "DELETE FROM runs"
	var args []any
	if olderThanDays != nil {
		cutoff := time.Now().Add(-time.Duration(*olderThanDays) * 24 * time.Hour).Unix()
		query += " WHERE created_at < ?"
		args = append(args, cutoff)
	}

	result, err := db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, errors.NewInternal(err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, errors.NewInternal(err)
	}
	return int(n), nil
}
