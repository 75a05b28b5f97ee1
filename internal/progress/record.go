package progress

import (
	"math"
	"strconv"
	"strings"
)

// Record is one row of an annotator's progress table.
type Record struct {
	// TextKey is the cleaned email text. It doubles as the join key, so two
	// rows with identical text are the same item everywhere downstream.
	TextKey       string
	Label         *int
	IsSkipped     bool
	Remarks       string
	Confidence    *float64
	SourceDataset string
	TextLength    string
	AnnotatorID   string
	// Extra holds the cells of unrecognized columns, keyed by header name.
	Extra map[string]string
}

// Labeled reports whether the record carries a committed label.
func (r *Record) Labeled() bool { return r.Label != nil }

// Pending reports whether the record is neither labeled nor skipped.
func (r *Record) Pending() bool { return r.Label == nil && !r.IsSkipped }

// cell returns the serialized value of column name.
func (r *Record) cell(name string) string {
	switch name {
	case ColText:
		return r.TextKey
	case ColLabel:
		if r.Label == nil {
			return ""
		}
		return strconv.Itoa(*r.Label)
	case ColConfidence:
		return FormatFloat(r.Confidence)
	case ColRemarks:
		return r.Remarks
	case ColSkipped:
		if r.IsSkipped {
			return "True"
		}
		return "False"
	case ColSource:
		return r.SourceDataset
	case ColLength:
		return r.TextLength
	case ColAnnotator:
		return r.AnnotatorID
	default:
		return r.Extra[name]
	}
}

// FormatFloat renders an optional float without trailing zeros; nil is empty.
func FormatFloat(f *float64) string {
	if f == nil {
		return ""
	}
	return strconv.FormatFloat(*f, 'f', -1, 64)
}

// FormatLabel renders an optional label; nil is empty.
func FormatLabel(l *int) string {
	if l == nil {
		return ""
	}
	return strconv.Itoa(*l)
}

// isNull reports whether a raw cell means "no value".
func isNull(raw string) bool {
	s := strings.TrimSpace(raw)
	return s == "" || strings.EqualFold(s, "nan") || strings.EqualFold(s, "none") || strings.EqualFold(s, "null")
}

// parseLabel parses an integer class. Integral floats such as "2.0" are
// accepted because spreadsheet tools write integer columns that way once
// the column contains blanks.
func parseLabel(raw string) (*int, bool) {
	if isNull(raw) {
		return nil, true
	}
	s := strings.TrimSpace(raw)
	if n, err := strconv.Atoi(s); err == nil {
		return &n, true
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsInf(f, 0) || math.IsNaN(f) || f != math.Trunc(f) {
		return nil, false
	}
	if f > math.MaxInt32 || f < math.MinInt32 {
		return nil, false
	}
	n := int(f)
	return &n, true
}

func parseConfidence(raw string) (*float64, bool) {
	if isNull(raw) {
		return nil, true
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil || math.IsInf(f, 0) {
		return nil, false
	}
	if math.IsNaN(f) {
		return nil, true
	}
	return &f, true
}

func parseSkipped(raw string) (bool, bool) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return false, true
	}
	b, err := strconv.ParseBool(s)
	if err != nil {
		return false, false
	}
	return b, true
}

// parseRemarks keeps whitespace-only remarks; only an exact null spelling is empty.
func parseRemarks(raw string) string {
	if strings.TrimSpace(raw) == raw && isNull(raw) {
		return ""
	}
	return raw
}
