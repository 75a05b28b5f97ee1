package session

import (
	"io"
	"strconv"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/hpungsan/phishlabel/internal/errors"
	"github.com/hpungsan/phishlabel/internal/labels"
	"github.com/hpungsan/phishlabel/internal/progress"
)

// SkippedPageSize is how many skipped rows Skipped lists.
const SkippedPageSize = 24

// Status of a single row.
type Status string

const (
	StatusDone    Status = "done"
	StatusSkipped Status = "skipped"
	StatusPending Status = "pending"
)

// View is the row under the cursor.
type View struct {
	Index    int // 0-based
	Position int // 1-based, as shown to the annotator
	Total    int
	Record   progress.Record
	Status   Status
}

// Stats summarizes progress. Percent is the labeled share, 0..100.
type Stats struct {
	Total   int
	Done    int
	Skipped int
	Left    int
	Percent float64
}

// Session is one annotator's labeling pass over their progress table.
// Every mutation is written to the progress file before it returns; a
// mutation whose write fails is undone and leaves the cursor in place.
type Session struct {
	ID          string
	AnnotatorID string
	StartedAt   time.Time

	mu     sync.Mutex
	table  *progress.Table
	cur    int
	path   string
	closed bool
	scheme *labels.Scheme
	log    *zap.Logger
}

func (s *Session) close() {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
}

func (s *Session) check(action string) error {
	if s.closed {
		return errors.NewInvalidState(AnnotatorUnselected.String(), action)
	}
	return nil
}

// Current returns the row under the cursor.
func (s *Session) Current() (View, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check("view"); err != nil {
		return View{}, err
	}
	return s.view(), nil
}

func (s *Session) view() View {
	r := s.table.Records[s.cur]
	st := StatusPending
	switch {
	case r.Label != nil:
		st = StatusDone
	case r.IsSkipped:
		st = StatusSkipped
	}
	return View{Index: s.cur, Position: s.cur + 1, Total: s.table.Len(), Record: r, Status: st}
}

// Label assigns class to the current row, clears its skip flag and moves to
// the next pending row.
func (s *Session) Label(class int) (View, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check("label"); err != nil {
		return View{}, err
	}
	if !s.scheme.Valid(class) {
		return View{}, errors.NewInvalidRequest("unknown class " + strconv.Itoa(class))
	}

	c := class
	if err := s.apply(func(r *progress.Record) {
		r.Label = &c
		r.IsSkipped = false
	}); err != nil {
		return s.view(), err
	}
	s.log.Debug("labeled", zap.Int("position", s.cur+1), zap.Int("class", class))
	s.cur = s.nextPending(s.cur)
	return s.view(), nil
}

// Skip marks the current row skipped and moves to the next pending row.
func (s *Session) Skip() (View, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check("skip"); err != nil {
		return View{}, err
	}
	if err := s.apply(func(r *progress.Record) { r.IsSkipped = true }); err != nil {
		return s.view(), err
	}
	s.log.Debug("skipped", zap.Int("position", s.cur+1))
	s.cur = s.nextPending(s.cur)
	return s.view(), nil
}

// Next moves one row forward, stopping at the last row.
func (s *Session) Next() (View, error) {
	return s.move("next", func() int { return min(s.cur+1, s.table.Len()-1) })
}

// Prev moves one row back, stopping at the first row.
func (s *Session) Prev() (View, error) {
	return s.move("prev", func() int { return max(0, s.cur-1) })
}

// NextBlank moves to the next pending row, wrapping around.
func (s *Session) NextBlank() (View, error) {
	return s.move("next blank", func() int { return s.nextPending(s.cur) })
}

// Jump moves to the 1-based position n.
func (s *Session) Jump(n int) (View, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check("jump"); err != nil {
		return View{}, err
	}
	if n < 1 || n > s.table.Len() {
		return View{}, errors.NewInvalidRequest("position must be between 1 and " + strconv.Itoa(s.table.Len()))
	}
	s.cur = n - 1
	return s.view(), nil
}

func (s *Session) move(action string, to func() int) (View, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check(action); err != nil {
		return View{}, err
	}
	s.cur = to()
	return s.view(), nil
}

// SaveRemarks replaces the current row's remarks.
func (s *Session) SaveRemarks(remarks string) (View, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check("save remarks"); err != nil {
		return View{}, err
	}
	err := s.apply(func(r *progress.Record) { r.Remarks = remarks })
	return s.view(), err
}

// Skipped returns the 0-based indices of the first SkippedPageSize skipped
// rows and the total number skipped.
func (s *Session) Skipped() ([]int, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check("list skipped"); err != nil {
		return nil, 0, err
	}
	var idx []int
	total := 0
	for i, r := range s.table.Records {
		if !r.IsSkipped {
			continue
		}
		total++
		if len(idx) < SkippedPageSize {
			idx = append(idx, i)
		}
	}
	return idx, total, nil
}

// Stats counts labeled, skipped and remaining rows.
func (s *Session) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := Stats{Total: s.table.Len()}
	for _, r := range s.table.Records {
		if r.Label != nil {
			st.Done++
		}
		if r.IsSkipped {
			st.Skipped++
		}
	}
	st.Left = st.Total - st.Done - st.Skipped
	if st.Total > 0 {
		st.Percent = 100 * float64(st.Done) / float64(st.Total)
	}
	return st
}

// DownloadName is the suggested file name for WriteCSV output.
func (s *Session) DownloadName() string {
	return s.AnnotatorID + "_annotations.csv"
}

// WriteCSV writes the progress table.
func (s *Session) WriteCSV(w io.Writer) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return progress.Write(w, s.table)
}

// firstPending returns the first pending row, or 0.
func (s *Session) firstPending() int {
	for i := range s.table.Records {
		if s.table.Records[i].Pending() {
			return i
		}
	}
	return 0
}

// nextPending searches after cur, then wraps to the start. With nothing
// pending it steps forward one row, stopping at the last.
func (s *Session) nextPending(cur int) int {
	recs := s.table.Records
	for i := cur + 1; i < len(recs); i++ {
		if recs[i].Pending() {
			return i
		}
	}
	for i := 0; i < cur; i++ {
		if recs[i].Pending() {
			return i
		}
	}
	return min(cur+1, len(recs)-1)
}

// apply changes the row under the cursor and saves. If the save fails the
// row is restored, so memory never runs ahead of the progress file.
func (s *Session) apply(change func(r *progress.Record)) error {
	r := &s.table.Records[s.cur]
	prev := *r
	change(r)
	if err := s.save(); err != nil {
		*r = prev
		return err
	}
	return nil
}

func (s *Session) save() error {
	if s.path == "" {
		return nil
	}
	if err := progress.WriteFile(s.path, s.table); err != nil {
		s.log.Error("saving progress failed", zap.String("path", s.path), zap.Error(err))
		return err
	}
	return nil
}
