// Package report renders agreement analyses for the terminal.
package report

import (
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/hpungsan/phishlabel/internal/iaa"
	"github.com/hpungsan/phishlabel/internal/labels"
)

var (
	sectionStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#2196F3"))
	nameStyle    = lipgloss.NewStyle().Bold(true)
	warnStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#FFC107"))
	mutedStyle   = lipgloss.NewStyle().Faint(true)
	headerStyle  = lipgloss.NewStyle().Bold(true).Padding(0, 1)
	cellStyle    = lipgloss.NewStyle().Padding(0, 1)
)

// Input is everything one report covers.
type Input struct {
	Load     *iaa.LoadResult
	Analysis *iaa.Analysis
	Scheme   *labels.Scheme
	// DisagreementsFile is the path the flagged rows were written to, or
	// empty when nothing was written.
	DisagreementsFile string
}

// Write renders the full report: load notes, per-annotator summary, pairwise
// kappa, Fleiss' kappa, disagreements and confusion tables.
func Write(w io.Writer, in Input) error {
	var sb strings.Builder
	scheme := in.Scheme
	if scheme == nil {
		scheme = labels.Default()
	}

	writeLoad(&sb, in.Load)
	if in.Analysis != nil {
		writeSummary(&sb, in.Analysis, scheme)
		if in.Analysis.TooFewAnnotators {
			sb.WriteString("\n" + warnStyle.Render("Need at least 2 annotators for IAA.") + "\n")
		} else {
			writePairwise(&sb, in.Analysis)
			writeFleiss(&sb, in.Analysis.Fleiss)
			writeDisagreements(&sb, in.Analysis.Wide, in.DisagreementsFile)
			writeConfusions(&sb, in.Analysis.Confusions)
		}
	}

	_, err := io.WriteString(w, sb.String())
	return err
}

func section(sb *strings.Builder, title string) {
	rule := strings.Repeat("=", 60)
	sb.WriteString("\n" + rule + "\n")
	sb.WriteString(sectionStyle.Render(title) + "\n")
	sb.WriteString(rule + "\n")
}

func newTable(headers ...string) *table.Table {
	return table.New().
		Border(lipgloss.NormalBorder()).
		Headers(headers...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			return cellStyle
		})
}

func writeLoad(sb *strings.Builder, res *iaa.LoadResult) {
	if res == nil {
		return
	}
	for _, s := range res.Sets {
		fmt.Fprintf(sb, "Loaded %d annotations from %s\n", len(s.Items), s.AnnotatorID)
		if s.Duplicates > 0 {
			sb.WriteString(mutedStyle.Render(fmt.Sprintf("  %d duplicate text(s) collapsed to first occurrence", s.Duplicates)) + "\n")
		}
	}
	for _, f := range res.Failures {
		sb.WriteString(warnStyle.Render(fmt.Sprintf("Skipped %s: %v", f.AnnotatorID, f.Err)) + "\n")
	}
}

func writeSummary(sb *strings.Builder, a *iaa.Analysis, scheme *labels.Scheme) {
	section(sb, "Overall Statistics")
	for _, s := range a.Summaries {
		sb.WriteString("\n" + nameStyle.Render(s.AnnotatorID+":") + "\n")
		fmt.Fprintf(sb, "  Total annotated: %d\n", s.Total)
		sb.WriteString("  Class distribution:\n")
		for _, c := range s.Classes {
			fmt.Fprintf(sb, "    Class %d (%s): %d (%.1f%%)\n", c.Class, scheme.ClassName(c.Class), c.Count, c.Percent)
		}
		fmt.Fprintf(sb, "  Avg confidence: %s\n", formatFloat(s.MeanConfidence, 2))
	}
}

func writePairwise(sb *strings.Builder, a *iaa.Analysis) {
	section(sb, "Pairwise Cohen's Kappa")
	if len(a.Pairwise.Pairs) > 0 {
		t := newTable("Pair", "Samples", "Agreement", "Kappa", "p", "Interpretation")
		for _, p := range a.Pairwise.Pairs {
			t.Row(
				p.AnnotatorA+" vs "+p.AnnotatorB,
				strconv.Itoa(p.NCommon),
				fmt.Sprintf("%.2f%%", 100*p.RawAgreement),
				fmt.Sprintf("%.4f", p.Kappa),
				formatP(p.P),
				p.Tier,
			)
		}
		sb.WriteString(t.String() + "\n")
	}
	for _, s := range a.Pairwise.Skipped {
		sb.WriteString(warnStyle.Render(fmt.Sprintf("%s vs %s: Not enough overlap (%d samples, need %d)",
			s.AnnotatorA, s.AnnotatorB, s.NCommon, a.MinOverlap)) + "\n")
	}
}

func writeFleiss(sb *strings.Builder, f iaa.FleissResult) {
	section(sb, "Fleiss' Kappa")
	if f.Skipped {
		sb.WriteString(warnStyle.Render(fmt.Sprintf("Not enough items labeled by all %d annotators (%d)", f.Raters, f.Items)) + "\n")
		return
	}
	fmt.Fprintf(sb, "Annotators: %d\n", f.Raters)
	fmt.Fprintf(sb, "Items labeled by all: %d\n", f.Items)
	fmt.Fprintf(sb, "Kappa: %.4f\n", f.Kappa)
	fmt.Fprintf(sb, "Interpretation: %s\n", f.Tier)
}

func writeDisagreements(sb *strings.Builder, w *iaa.WideTable, path string) {
	section(sb, "Disagreement Analysis")
	if w == nil {
		return
	}
	n := len(w.Disagreements())
	fmt.Fprintf(sb, "Total annotated (by any): %d\n", len(w.Rows))
	fmt.Fprintf(sb, "Disagreements: %d (%.1f%%)\n", n, 100*w.Rate())
	if path != "" {
		fmt.Fprintf(sb, "Disagreements saved to: %s\n", path)
	}
}

func writeConfusions(sb *strings.Builder, confs []iaa.Confusion) {
	if len(confs) == 0 {
		return
	}
	sb.WriteString("\nDisagreement by class pairs:\n")
	for _, c := range confs {
		sb.WriteString("\n" + nameStyle.Render(fmt.Sprintf("%s vs %s confusion:", c.AnnotatorA, c.AnnotatorB)) + "\n")
		sb.WriteString(Confusion(c) + "\n")
	}
}

// Confusion renders one contingency table with A's labels down the side.
func Confusion(c iaa.Confusion) string {
	headers := []string{c.AnnotatorA + ` \ ` + c.AnnotatorB}
	for _, col := range c.Cols {
		headers = append(headers, strconv.Itoa(col))
	}
	t := newTable(headers...)
	for i, r := range c.Rows {
		row := []string{strconv.Itoa(r)}
		for _, v := range c.Counts[i] {
			row = append(row, strconv.Itoa(v))
		}
		t.Row(row...)
	}
	return t.String()
}

func formatFloat(v float64, prec int) string {
	if math.IsNaN(v) {
		return "n/a"
	}
	return strconv.FormatFloat(v, 'f', prec, 64)
}

func formatP(p float64) string {
	switch {
	case math.IsNaN(p):
		return "n/a"
	case p < 0.001:
		return "<0.001"
	default:
		return fmt.Sprintf("%.3f", p)
	}
}
