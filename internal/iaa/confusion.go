package iaa

// Confusion is the contingency table of two annotators over their common items.
type Confusion struct {
	AnnotatorA string
	AnnotatorB string
	// Rows are A's observed label values, Cols B's, both ascending.
	Rows   []int
	Cols   []int
	Counts [][]int
}

// Count returns the number of items A labeled a and B labeled b.
func (c *Confusion) Count(a, b int) int {
	for i, r := range c.Rows {
		if r != a {
			continue
		}
		for j, col := range c.Cols {
			if col == b {
				return c.Counts[i][j]
			}
		}
	}
	return 0
}

// Total returns the number of common items.
func (c *Confusion) Total() int {
	n := 0
	for _, row := range c.Counts {
		for _, v := range row {
			n += v
		}
	}
	return n
}

// Confusions builds a table for every pair with at least one common item.
// No minimum overlap applies; the tables are descriptive.
func Confusions(sets []*LabelSet) []Confusion {
	var out []Confusion
	for _, p := range Pairs(sets) {
		_, a, b := p.Common()
		if len(a) == 0 {
			continue
		}
		out = append(out, crosstab(p.A.AnnotatorID, p.B.AnnotatorID, a, b))
	}
	return out
}

func crosstab(idA, idB string, a, b []int) Confusion {
	freqA := make(map[int]int)
	freqB := make(map[int]int)
	for i := range a {
		freqA[a[i]]++
		freqB[b[i]]++
	}
	c := Confusion{AnnotatorA: idA, AnnotatorB: idB, Rows: classes(freqA), Cols: classes(freqB)}

	rowIdx := make(map[int]int, len(c.Rows))
	for i, r := range c.Rows {
		rowIdx[r] = i
	}
	colIdx := make(map[int]int, len(c.Cols))
	for j, col := range c.Cols {
		colIdx[col] = j
	}

	c.Counts = make([][]int, len(c.Rows))
	for i := range c.Counts {
		c.Counts[i] = make([]int, len(c.Cols))
	}
	for i := range a {
		c.Counts[rowIdx[a[i]]][colIdx[b[i]]]++
	}
	return c
}
