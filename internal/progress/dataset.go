package progress

import (
	"encoding/csv"
	stderrors "errors"
	"fmt"
	"io"
	"strings"

	"github.com/hpungsan/phishlabel/internal/errors"
	"github.com/hpungsan/phishlabel/internal/labels"
)

// TextColumns are the dataset columns accepted as email text, in priority order.
// text_cleaned comes first so a dataset that already carries the join key keeps it.
var TextColumns = []string{ColText, "body", "text", "content", "email"}

// DetectTextColumn returns the first column of header found in TextColumns.
func DetectTextColumn(header []string) (string, bool) {
	present := make(map[string]bool, len(header))
	for _, h := range header {
		present[strings.TrimSpace(h)] = true
	}
	for _, c := range TextColumns {
		if present[c] {
			return c, true
		}
	}
	return "", false
}

// ReadDataset ingests an uploaded dataset for annotation. The text column is
// auto-detected and copied into text_cleaned; progress columns that already
// exist are kept (leniently coerced) so an annotator can resume from a
// previously downloaded file.
func ReadDataset(r io.Reader, name string, scheme *labels.Scheme) (*Table, string, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, "", errors.NewInternal(err)
	}

	cr := csv.NewReader(strings.NewReader(string(data)))
	header, err := cr.Read()
	if err != nil {
		if stderrors.Is(err, io.EOF) {
			return nil, "", errors.NewInvalidRequest(fmt.Sprintf("%s: empty file", name))
		}
		return nil, "", errors.NewInvalidRequest(fmt.Sprintf("%s: %v", name, err))
	}
	if len(header) > 0 {
		header[0] = trimBOM(header[0])
	}

	textCol, ok := DetectTextColumn(header)
	if !ok {
		return nil, "", errors.NewInvalidRequest(
			fmt.Sprintf("%s: CSV must contain a text column (%s)", name, strings.Join(TextColumns, ", ")))
	}

	if textCol == ColText {
		t, err := Read(strings.NewReader(string(data)), ReadOptions{Mode: Lenient, Scheme: scheme, Name: name})
		return t, textCol, err
	}

	// Re-encode with the detected column renamed and keep the original under its own name.
	renamed := append([]string(nil), header...)
	for i, h := range renamed {
		if strings.TrimSpace(h) == textCol {
			renamed[i] = ColText
			break
		}
	}
	t, err := readWithHeader(data, renamed, name, scheme)
	if err != nil {
		return nil, "", err
	}
	t.restoreColumn(textCol)
	return t, textCol, nil
}

func readWithHeader(data []byte, header []string, name string, scheme *labels.Scheme) (*Table, error) {
	cr := csv.NewReader(strings.NewReader(string(data)))
	cr.FieldsPerRecord = -1
	if _, err := cr.Read(); err != nil {
		return nil, errors.NewInvalidRequest(fmt.Sprintf("%s: %v", name, err))
	}
	rows, err := cr.ReadAll()
	if err != nil {
		return nil, errors.NewInvalidRequest(fmt.Sprintf("%s: %v", name, err))
	}

	var buf strings.Builder
	cw := csv.NewWriter(&buf)
	_ = cw.Write(header)
	_ = cw.WriteAll(rows)

	return Read(strings.NewReader(buf.String()), ReadOptions{Mode: Lenient, Scheme: scheme, Name: name})
}

// restoreColumn re-adds the original text column, which was renamed to
// text_cleaned during ingest, so downloads keep the uploader's columns.
func (t *Table) restoreColumn(original string) {
	for i, h := range t.Header {
		if h == ColText {
			t.Header = append(t.Header[:i+1], append([]string{original}, t.Header[i+1:]...)...)
			break
		}
	}
	for i := range t.Records {
		if t.Records[i].Extra == nil {
			t.Records[i].Extra = make(map[string]string)
		}
		t.Records[i].Extra[original] = t.Records[i].TextKey
	}
}

// InitProgress prepares a dataset table for one annotator: every record is
// stamped with the annotator id. Existing labels, remarks and skip flags are kept.
func InitProgress(dataset *Table, annotatorID string) *Table {
	t := &Table{
		Header:  append([]string(nil), dataset.Header...),
		Records: make([]Record, len(dataset.Records)),
		Coerced: dataset.Coerced,
	}
	for i, r := range dataset.Records {
		r.AnnotatorID = annotatorID
		if r.Label != nil {
			l := *r.Label
			r.Label = &l
		}
		if r.Confidence != nil {
			c := *r.Confidence
			r.Confidence = &c
		}
		if r.Extra != nil {
			extra := make(map[string]string, len(r.Extra))
			for k, v := range r.Extra {
				extra[k] = v
			}
			r.Extra = extra
		}
		t.Records[i] = r
	}
	return t
}
