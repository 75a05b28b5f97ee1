package tabular

import (
	"crypto/rand"
	"encoding/hex"
	stderrors "errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/hpungsan/phishlabel/internal/errors"
)

// ValidateOutputPath checks a caller-supplied output path before anything is written.
// It rejects traversal, unsupported extensions, and symlinked destinations.
func ValidateOutputPath(path string) error {
	if strings.TrimSpace(path) == "" {
		return errors.NewInvalidRequest("output path is required")
	}
	if containsTraversal(path) {
		return errors.NewInvalidRequest("path must not contain directory traversal (..)")
	}
	switch Format(path) {
	case FormatCSV, FormatXLSX:
	default:
		return errors.NewInvalidRequest("output path must have a .csv or .xlsx extension")
	}
	if info, err := os.Lstat(path); err == nil && info.Mode()&os.ModeSymlink != 0 {
		return errors.NewInvalidRequest("path must not be a symlink")
	}
	return nil
}

// containsTraversal reports whether any path element is "..".
func containsTraversal(path string) bool {
	for _, part := range strings.FieldsFunc(filepath.ToSlash(path), func(r rune) bool { return r == '/' }) {
		if part == ".." {
			return true
		}
	}
	return false
}

// tempName returns a random sibling of path for staging a write.
func tempName(path string) (string, error) {
	randBytes := make([]byte, 8)
	if _, err := rand.Read(randBytes); err != nil {
		return "", errors.NewInternal(fmt.Errorf("failed to generate temp file name: %w", err))
	}
	return path + "." + hex.EncodeToString(randBytes) + ".tmp", nil
}

// WriteAtomic writes a file by streaming into a temp file next to path and
// renaming it into place, so readers never observe a half-written table.
// On failure the previous contents of path are left untouched.
func WriteAtomic(path string, write func(w io.Writer) error) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return errors.NewInternal(fmt.Errorf("failed to create output directory: %w", err))
	}

	file, tempPath, err := createTemp(path)
	if err != nil {
		var lErr *errors.LabelError
		if stderrors.As(err, &lErr) {
			return err
		}
		return errors.NewInternal(fmt.Errorf("failed to create temp file: %w", err))
	}

	success := false
	defer func() {
		if file != nil {
			file.Close()
		}
		if !success {
			os.Remove(tempPath)
		}
	}()

	if err := write(file); err != nil {
		return err
	}
	if err := file.Sync(); err != nil {
		return errors.NewInternal(err)
	}

	// Close before rename (required on Windows; fine elsewhere).
	if err := file.Close(); err != nil {
		return errors.NewInternal(fmt.Errorf("failed to close temp file: %w", err))
	}
	file = nil

	if info, err := os.Lstat(path); err == nil && info.Mode()&os.ModeSymlink != 0 {
		return errors.NewInvalidRequest("output path is a symlink")
	}

	if err := os.Rename(tempPath, path); err != nil {
		if runtime.GOOS == "windows" {
			if _, statErr := os.Stat(path); statErr == nil {
				return errors.NewInvalidRequest("output file already exists; overwriting is not supported on Windows (choose a new path or delete the existing file)")
			}
		}
		return errors.NewInternal(fmt.Errorf("failed to finalize %s: %w", path, err))
	}

	success = true
	return nil
}
