// Package ops implements the operations shared by the CLI, the MCP server and
// the web UI: agreement analysis, review extraction and run history.
package ops

import (
	"math"

	"github.com/hpungsan/phishlabel/internal/config"
	"github.com/hpungsan/phishlabel/internal/labels"
)

// Pagination limits
const (
	DefaultHistoryLimit      = 20
	MaxHistoryLimit          = 100
	DefaultDisagreementLimit = 50
	MaxDisagreementLimit     = 500
)

// Pagination contains pagination metadata for list operations.
type Pagination struct {
	Limit   int  `json:"limit"`
	Offset  int  `json:"offset"`
	HasMore bool `json:"has_more"`
	Total   int  `json:"total"`
}

func paginate(limit, offset, def, maxLimit int) (int, int) {
	if limit <= 0 {
		limit = def
	}
	if limit > maxLimit {
		limit = maxLimit
	}
	return limit, max(offset, 0)
}

// LoadScheme returns the configured label scheme, or the built-in one.
func LoadScheme(cfg *config.Config) (*labels.Scheme, error) {
	if cfg == nil || cfg.LabelsFile == "" {
		return labels.Default(), nil
	}
	return labels.Load(cfg.LabelsFile)
}

// finite returns nil for NaN or infinite values so results stay JSON-encodable.
func finite(f float64) *float64 {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return nil
	}
	return &f
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
