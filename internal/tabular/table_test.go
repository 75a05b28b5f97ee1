package tabular

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/hpungsan/phishlabel/internal/errors"
)

func sampleTable() *Table {
	return &Table{
		Header: []string{"text_cleaned", "label_a", "adjudicated_label"},
		Rows: [][]string{
			{"win a prize, now", "2", ""},
			{"reset your password", "", ""},
		},
	}
}

func TestWriteCSV(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, sampleTable()))

	want := "text_cleaned,label_a,adjudicated_label\n" +
		"\"win a prize, now\",2,\n" +
		"reset your password,,\n"
	require.Equal(t, want, buf.String())
}

func TestSave_CSV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "disagreements.csv")

	require.NoError(t, Save(path, "", sampleTable()))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Contains(t, string(data), "reset your password,,")

	// No temp files left behind
	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	require.Len(t, entries, 1)
}

func TestSave_XLSX(t *testing.T) {
	path := filepath.Join(t.TempDir(), "review.xlsx")

	require.NoError(t, Save(path, "Review", sampleTable()))

	f, err := excelize.OpenFile(path)
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows("Review")
	require.NoError(t, err)
	require.Len(t, rows, 3)
	require.Equal(t, []string{"text_cleaned", "label_a", "adjudicated_label"}, rows[0])
	require.Equal(t, "win a prize, now", rows[1][0])
	require.Equal(t, "2", rows[1][1])
}

func TestValidateOutputPath(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "real.csv")
	require.NoError(t, os.WriteFile(target, []byte("x"), 0600))
	link := filepath.Join(dir, "link.csv")
	require.NoError(t, os.Symlink(target, link))

	tests := []struct {
		name    string
		path    string
		wantErr bool
	}{
		{"csv", filepath.Join(dir, "a.csv"), false},
		{"xlsx upper", filepath.Join(dir, "a.XLSX"), false},
		{"empty", "", true},
		{"traversal", "../a.csv", true},
		{"wrong extension", filepath.Join(dir, "a.json"), true},
		{"symlink", link, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateOutputPath(tt.path)
			if tt.wantErr {
				require.True(t, errors.Is(err, errors.ErrInvalidRequest), "got %v", err)
			} else {
				require.NoError(t, err)
			}
		})
	}
}

func TestWriteAtomic_FailurePreservesOriginal(t *testing.T) {
	path := filepath.Join(t.TempDir(), "progress.csv")
	require.NoError(t, os.WriteFile(path, []byte("original"), 0600))

	err := WriteAtomic(path, func(w io.Writer) error {
		_, _ = w.Write([]byte("partial"))
		return fmt.Errorf("encoder failed")
	})
	require.Error(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, "original", string(data))

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	require.Len(t, entries, 1, "temp file should be removed")
}

func TestCreateTemp(t *testing.T) {
	path := filepath.Join(t.TempDir(), "review.csv")

	f, tempPath, err := createTemp(path)
	require.NoError(t, err)
	defer os.Remove(tempPath)
	require.NoError(t, f.Close())

	require.Equal(t, filepath.Dir(path), filepath.Dir(tempPath))
	require.True(t, strings.HasPrefix(filepath.Base(tempPath), "review.csv."))
	require.True(t, strings.HasSuffix(tempPath, ".tmp"))

	other, otherPath, err := createTemp(path)
	require.NoError(t, err)
	defer os.Remove(otherPath)
	require.NoError(t, other.Close())
	require.NotEqual(t, tempPath, otherPath)
}
