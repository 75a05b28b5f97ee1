package progress

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/hpungsan/phishlabel/internal/errors"
	"github.com/hpungsan/phishlabel/internal/labels"
)

func TestDetectTextColumn(t *testing.T) {
	tests := []struct {
		header []string
		want   string
		ok     bool
	}{
		{[]string{"id", "body"}, "body", true},
		{[]string{"email", "text"}, "text", true},
		{[]string{"body", "text_cleaned"}, "text_cleaned", true},
		{[]string{" content "}, "content", true},
		{[]string{"subject", "sender"}, "", false},
	}

	for _, tt := range tests {
		got, ok := DetectTextColumn(tt.header)
		require.Equal(t, tt.ok, ok, tt.header)
		require.Equal(t, tt.want, got, tt.header)
	}
}

func TestReadDataset_RenamesTextColumn(t *testing.T) {
	in := "subject,body,source_dataset\nHi,click here,spam_a\nYo,win money,spam_b\n"

	tbl, col, err := ReadDataset(strings.NewReader(in), "upload.csv", labels.Default())
	require.NoError(t, err)
	require.Equal(t, "body", col)
	require.Equal(t, 2, tbl.Len())

	require.Equal(t, "click here", tbl.Records[0].TextKey)
	require.Equal(t, "click here", tbl.Records[0].Extra["body"])
	require.Equal(t, "spam_a", tbl.Records[0].SourceDataset)
	require.True(t, tbl.Records[0].Pending())

	require.Equal(t, []string{"subject", ColText, "body", ColSource}, tbl.Header[:4])
}

func TestReadDataset_ResumesProgress(t *testing.T) {
	in := "text_cleaned,annotation_label,is_skipped\na,2,False\nb,banana,True\nc,,False\n"

	tbl, col, err := ReadDataset(strings.NewReader(in), "resume.csv", labels.Default())
	require.NoError(t, err)
	require.Equal(t, ColText, col)
	require.Equal(t, 1, tbl.Coerced)
	require.Equal(t, 2, *tbl.Records[0].Label)
	require.Nil(t, tbl.Records[1].Label)
	require.True(t, tbl.Records[1].IsSkipped)
}

func TestReadDataset_NoTextColumn(t *testing.T) {
	_, _, err := ReadDataset(strings.NewReader("subject\nhi\n"), "x.csv", nil)
	require.True(t, errors.Is(err, errors.ErrInvalidRequest))
}

func TestInitProgress_CopiesRecords(t *testing.T) {
	in := "text_cleaned,annotation_label\na,1\nb,\n"
	ds, _, err := ReadDataset(strings.NewReader(in), "d.csv", nil)
	require.NoError(t, err)

	p := InitProgress(ds, "Annotator_1")
	require.Equal(t, "Annotator_1", p.Records[0].AnnotatorID)
	require.Equal(t, "Annotator_1", p.Records[1].AnnotatorID)

	*p.Records[0].Label = 4
	require.Equal(t, 1, *ds.Records[0].Label, "dataset must not share label pointers with progress")
	require.Empty(t, ds.Records[0].AnnotatorID)
}
