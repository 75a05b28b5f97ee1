package ops

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hpungsan/phishlabel/internal/db"
)

// HistoryInput contains parameters for the History operation.
type HistoryInput struct {
	Limit  int // optional, default 20, max 100
	Offset int // optional, default 0
}

// HistoryOutput contains the result of the History operation.
type HistoryOutput struct {
	Runs       []*db.Run  `json:"runs"`
	Pagination Pagination `json:"pagination"`
}

// History lists recorded runs, newest first.
func History(ctx context.Context, database *sql.DB, input HistoryInput) (*HistoryOutput, error) {
	limit, offset := paginate(input.Limit, input.Offset, DefaultHistoryLimit, MaxHistoryLimit)

	runs, total, err := db.ListRuns(ctx, database, limit, offset)
	if err != nil {
		return nil, err
	}
	if runs == nil {
		runs = []*db.Run{}
	}

	return &HistoryOutput{
		Runs: runs,
		Pagination: Pagination{
			Limit:   limit,
			Offset:  offset,
			HasMore: offset+len(runs) < total,
			Total:   total,
		},
	}, nil
}

// PurgeInput contains parameters for the Purge operation.
type PurgeInput struct {
	OlderThanDays *int // optional, only purge runs created before (now - N days)
}

// PurgeOutput contains the result of the Purge operation.
type PurgeOutput struct {
	Purged  int    `json:"purged"`
	Message string `json:"message"`
}

// Purge permanently deletes recorded runs.
func Purge(ctx context.Context, database *sql.DB, input PurgeInput) (*PurgeOutput, error) {
	count, err := db.PurgeRuns(ctx, database, input.OlderThanDays)
	if err != nil {
		return nil, err
	}

	return &PurgeOutput{
		Purged:  count,
		Message: formatPurgeMessage(count, input.OlderThanDays),
	}, nil
}

// formatPurgeMessage creates a human-readable message for the purge result.
func formatPurgeMessage(count int, olderThanDays *int) string {
	if count == 0 {
		return "No runs to purge"
	}

	msg := fmt.Sprintf("Permanently deleted %d run(s)", count)
	if olderThanDays != nil {
		msg += fmt.Sprintf(" (older than %d days)", *olderThanDays)
	}
	return msg
}
