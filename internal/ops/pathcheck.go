package ops

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/hpungsan/phishlabel/internal/config"
	"github.com/hpungsan/phishlabel/internal/errors"
	"github.com/hpungsan/phishlabel/internal/tabular"
)

// ExportPolicy decides where MCP tools may write disagreement and review
// tables. Files must sit directly in the exports dir or in one of the
// configured allowed_paths; subdirectories are refused so no intermediate
// component can be swapped for a symlink after the check.
type ExportPolicy struct {
	exportsDir string
	dirs       []string // absolute, symlinks resolved
	unsafe     bool
}

// NewExportPolicy resolves the writable directories once. Relative
// allowed_paths are ignored.
func NewExportPolicy(exportsDir string, cfg *config.Config) (*ExportPolicy, error) {
	p := &ExportPolicy{exportsDir: exportsDir}
	candidates := []string{exportsDir}
	if cfg != nil {
		p.unsafe = cfg.AllowUnsafePaths
		for _, d := range cfg.AllowedPaths {
			if filepath.IsAbs(d) {
				candidates = append(candidates, d)
			}
		}
	}

	for _, d := range candidates {
		abs, err := filepath.Abs(filepath.Clean(d))
		if err != nil {
			return nil, errors.NewInvalidRequest(fmt.Sprintf("invalid allowed path %q: %v", d, err))
		}
		if info, err := os.Lstat(abs); err == nil && info.Mode()&os.ModeSymlink != 0 {
			if abs, err = filepath.EvalSymlinks(abs); err != nil {
				return nil, errors.NewInvalidRequest(fmt.Sprintf("cannot resolve allowed path %q: %v", d, err))
			}
		}
		p.dirs = append(p.dirs, abs)
	}
	return p, nil
}

// Resolve returns the path a tool writes to: requested when given, else a
// timestamped file named after kind in the exports dir. The result is checked.
func (p *ExportPolicy) Resolve(requested, kind string, now time.Time) (string, error) {
	path := requested
	if path == "" {
		path = DefaultExportPath(p.exportsDir, kind, now)
	}
	if err := p.Check(path); err != nil {
		return "", err
	}
	return path, nil
}

// Check validates path. Traversal, extension and symlink checks apply even
// when allow_unsafe_paths lifts the directory restriction.
func (p *ExportPolicy) Check(path string) error {
	if err := tabular.ValidateOutputPath(path); err != nil {
		return err
	}
	if p.unsafe {
		return nil
	}

	abs, err := filepath.Abs(filepath.Clean(path))
	if err != nil {
		return errors.NewInvalidRequest(fmt.Sprintf("invalid path: %v", err))
	}
	parent := filepath.Dir(abs)
	if !p.allows(parent) {
		return errors.NewInvalidRequest(fmt.Sprintf(
			"export must be written directly in one of %v (no subdirectories)", p.dirs))
	}
	if info, err := os.Lstat(parent); err == nil && info.Mode()&os.ModeSymlink != 0 {
		return errors.NewInvalidRequest("export directory must not be a symlink")
	}
	return nil
}

func (p *ExportPolicy) allows(dir string) bool {
	for _, d := range p.dirs {
		if dir == d {
			return true
		}
	}
	return false
}

// DefaultExportPath returns <exportsDir>/<kind>-<timestamp>.csv.
func DefaultExportPath(exportsDir, kind string, now time.Time) string {
	return filepath.Join(exportsDir, fmt.Sprintf("%s-%s.csv", SanitizeForFilename(kind), now.Format("2006-01-02T150405")))
}

// SanitizeForFilename turns s into a single path element: separators and ".."
// become dashes, control characters are dropped, dash runs collapse.
func SanitizeForFilename(s string) string {
	s = strings.ReplaceAll(s, "..", "-")

	var b strings.Builder
	dash := false
	for _, r := range s {
		switch {
		case r == '/' || r == '\\' || r == '-':
			if !dash {
				b.WriteByte('-')
			}
			dash = true
		case r < 32 || r == 127:
		default:
			b.WriteRune(r)
			dash = false
		}
	}

	if out := strings.Trim(b.String(), "-"); out != "" {
		return out
	}
	return "unnamed"
}
