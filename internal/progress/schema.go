package progress

// Recognized column names of a progress file.
const (
	ColText       = "text_cleaned"
	ColLabel      = "annotation_label"
	ColConfidence = "annotator_confidence"
	ColRemarks    = "annotator_remarks"
	ColSkipped    = "is_skipped"
	ColSource     = "source_dataset"
	ColLength     = "text_length"
	ColAnnotator  = "annotator_id"
)

// Column describes one recognized column and how it is filled when absent.
type Column struct {
	Name     string
	Required bool
	// Default is the raw cell value used for every row when the column is missing.
	Default string
}

// Schema is the full set of columns the store understands, in the order they
// are appended to a table that lacks them. Columns not listed here are carried
// through untouched.
var Schema = []Column{
	{Name: ColText, Required: true},
	{Name: ColSource},
	{Name: ColLength},
	{Name: ColLabel},
	{Name: ColConfidence},
	{Name: ColRemarks},
	{Name: ColSkipped, Default: "False"},
	{Name: ColAnnotator},
}

func recognized(name string) bool {
	for _, c := range Schema {
		if c.Name == name {
			return true
		}
	}
	return false
}

// normalizeHeader returns the output header (input order, then any missing
// recognized columns) and the index of each recognized column in the input,
// or -1 when it has to be default-filled.
func normalizeHeader(header []string) ([]string, map[string]int) {
	index := make(map[string]int, len(Schema))
	for _, c := range Schema {
		index[c.Name] = -1
	}

	out := make([]string, 0, len(header)+len(Schema))
	for i, h := range header {
		out = append(out, h)
		if idx, ok := index[h]; ok && idx == -1 {
			index[h] = i
		}
	}
	for _, c := range Schema {
		if index[c.Name] == -1 {
			out = append(out, c.Name)
		}
	}
	return out, index
}
