package progress

import (
	"encoding/csv"
	stderrors "errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/hpungsan/phishlabel/internal/errors"
	"github.com/hpungsan/phishlabel/internal/labels"
	"github.com/hpungsan/phishlabel/internal/tabular"
)

// Mode selects how cell values that cannot be coerced are treated.
type Mode int

const (
	// Strict fails the whole table on the first bad cell. Analysis reads
	// tables this way so a bad label can never be counted as a class.
	Strict Mode = iota
	// Lenient turns bad labels and confidences into nulls and bad skip flags
	// into false, counting each replacement.
	Lenient
)

// ReadOptions configures Read.
type ReadOptions struct {
	Mode Mode
	// Scheme, when set, restricts labels to its classes.
	Scheme *labels.Scheme
	// Name identifies the source in error messages (usually the file name).
	Name string
}

// Table is an annotator's progress table. It is mutable and owned by whoever
// loaded it; sessions hold it by reference.
type Table struct {
	Header  []string
	Records []Record
	// Coerced counts cells replaced by a null or default in Lenient mode.
	Coerced int
}

// Len returns the number of rows.
func (t *Table) Len() int { return len(t.Records) }

// Read parses a progress table. Missing recognized columns are filled with
// their schema defaults; a missing text_cleaned column is an error.
func Read(r io.Reader, opts ReadOptions) (*Table, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if err != nil {
		if stderrors.Is(err, io.EOF) {
			return nil, errors.NewInvalidRequest(fmt.Sprintf("%s: empty file", opts.Name))
		}
		return nil, errors.NewInvalidRequest(fmt.Sprintf("%s: %v", opts.Name, err))
	}
	if len(header) > 0 {
		header[0] = trimBOM(header[0])
	}
	for i := range header {
		header[i] = strings.TrimSpace(header[i])
	}

	out, index := normalizeHeader(header)
	for _, c := range Schema {
		if c.Required && index[c.Name] == -1 {
			return nil, errors.NewInvalidRequest(fmt.Sprintf("%s: missing required column %q", opts.Name, c.Name))
		}
	}

	t := &Table{Header: out}
	line := 1
	for {
		row, err := cr.Read()
		if stderrors.Is(err, io.EOF) {
			break
		}
		line++
		if err != nil {
			return nil, errors.NewInvalidRequest(fmt.Sprintf("%s: row %d: %v", opts.Name, line, err))
		}
		rec, err := t.parseRow(header, row, index, line, opts)
		if err != nil {
			return nil, err
		}
		t.Records = append(t.Records, rec)
	}

	return t, nil
}

func (t *Table) parseRow(header, row []string, index map[string]int, line int, opts ReadOptions) (Record, error) {
	get := func(name string) string {
		i := index[name]
		if i < 0 || i >= len(row) {
			for _, c := range Schema {
				if c.Name == name {
					return c.Default
				}
			}
			return ""
		}
		return row[i]
	}

	rec := Record{
		TextKey:       get(ColText),
		Remarks:       parseRemarks(get(ColRemarks)),
		SourceDataset: get(ColSource),
		TextLength:    get(ColLength),
		AnnotatorID:   get(ColAnnotator),
	}

	raw := get(ColLabel)
	label, ok := parseLabel(raw)
	if ok && label != nil && opts.Scheme != nil && !opts.Scheme.Valid(*label) {
		ok = false
	}
	if !ok {
		if opts.Mode == Strict {
			return rec, errors.NewMalformedRow(opts.Name, line, ColLabel, raw)
		}
		t.Coerced++
		label = nil
	}
	rec.Label = label

	raw = get(ColConfidence)
	conf, ok := parseConfidence(raw)
	if !ok {
		if opts.Mode == Strict {
			return rec, errors.NewMalformedRow(opts.Name, line, ColConfidence, raw)
		}
		t.Coerced++
	}
	rec.Confidence = conf

	raw = get(ColSkipped)
	skipped, ok := parseSkipped(raw)
	if !ok {
		if opts.Mode == Strict {
			return rec, errors.NewMalformedRow(opts.Name, line, ColSkipped, raw)
		}
		t.Coerced++
	}
	rec.IsSkipped = skipped

	for i, h := range header {
		if recognized(h) || i >= len(row) {
			continue
		}
		if rec.Extra == nil {
			rec.Extra = make(map[string]string)
		}
		rec.Extra[h] = row[i]
	}

	return rec, nil
}

func trimBOM(s string) string {
	const bom = "\ufeff"
	if len(s) >= len(bom) && s[:len(bom)] == bom {
		return s[len(bom):]
	}
	return s
}

// ReadFile opens and strictly or leniently parses a progress file.
func ReadFile(path string, opts ReadOptions) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.NewFileNotFound(path)
		}
		return nil, errors.NewInternal(err)
	}
	defer f.Close()

	if opts.Name == "" {
		opts.Name = filepath.Base(path)
	}
	return Read(f, opts)
}

// Write encodes the table as CSV using its normalized header.
func Write(w io.Writer, t *Table) error {
	return tabular.WriteCSV(w, t.toTabular())
}

// WriteFile atomically replaces path with the table contents.
func WriteFile(path string, t *Table) error {
	tt := t.toTabular()
	return tabular.WriteAtomic(path, func(w io.Writer) error {
		return tabular.WriteCSV(w, tt)
	})
}

func (t *Table) toTabular() *tabular.Table {
	rows := make([][]string, len(t.Records))
	for i := range t.Records {
		row := make([]string, len(t.Header))
		for j, h := range t.Header {
			row[j] = t.Records[i].cell(h)
		}
		rows[i] = row
	}
	return &tabular.Table{Header: t.Header, Rows: rows}
}
