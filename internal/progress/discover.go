package progress

import (
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/gobwas/glob"

	"github.com/hpungsan/phishlabel/internal/errors"
)

// FileSuffix is the naming convention for per-annotator progress files.
const FileSuffix = "_progress.csv"

var progressPattern = glob.MustCompile("*" + FileSuffix)

// File is a discovered progress file.
type File struct {
	AnnotatorID string
	Path        string
}

// Discover lists <annotator_id>_progress.csv files directly inside dir,
// sorted by annotator id. A missing directory yields no files and no error:
// annotation happens incrementally, so an empty progress directory is normal.
func Discover(dir string) ([]File, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, errors.NewInternal(err)
	}

	var files []File
	for _, e := range entries {
		if !e.Type().IsRegular() {
			continue
		}
		name := e.Name()
		if !progressPattern.Match(name) {
			continue
		}
		id := strings.TrimSuffix(name, FileSuffix)
		if id == "" {
			continue
		}
		files = append(files, File{AnnotatorID: id, Path: filepath.Join(dir, name)})
	}

	sort.Slice(files, func(i, j int) bool { return files[i].AnnotatorID < files[j].AnnotatorID })
	return files, nil
}

// PathFor returns the progress file path for an annotator.
func PathFor(dir, annotatorID string) string {
	return filepath.Join(dir, annotatorID+FileSuffix)
}
