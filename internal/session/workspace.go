package session

import (
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/hpungsan/phishlabel/internal/errors"
	"github.com/hpungsan/phishlabel/internal/ids"
	"github.com/hpungsan/phishlabel/internal/labels"
	"github.com/hpungsan/phishlabel/internal/progress"
)

// Options configures a Workspace.
type Options struct {
	// ProgressDir is where each annotator's progress file is restored from and
	// saved to. Empty disables persistence.
	ProgressDir string
	Scheme      *labels.Scheme
	// Annotators restricts who may log in. Empty allows any safe id.
	Annotators []string
	Logger     *zap.Logger
}

// Dataset describes the loaded upload.
type Dataset struct {
	Name       string
	TextColumn string
	Rows       int
	Coerced    int
}

// Workspace is the process-scoped annotation context. It owns the uploaded
// dataset and at most one active Session. Safe for concurrent use.
type Workspace struct {
	opts Options
	log  *zap.Logger

	mu      sync.Mutex
	state   State
	dataset *progress.Table
	info    Dataset
	session *Session
}

// NewWorkspace returns an Unloaded workspace.
func NewWorkspace(opts Options) *Workspace {
	if opts.Scheme == nil {
		opts.Scheme = labels.Default()
	}
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	return &Workspace{opts: opts, log: log, state: Unloaded}
}

// Scheme returns the label scheme in use.
func (w *Workspace) Scheme() *labels.Scheme { return w.opts.Scheme }

// Annotators returns the configured login identities.
func (w *Workspace) Annotators() []string {
	return append([]string(nil), w.opts.Annotators...)
}

// State returns the current lifecycle stage.
func (w *Workspace) State() State {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.state
}

// Dataset returns the loaded dataset description.
func (w *Workspace) Dataset() (Dataset, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.info, w.dataset != nil
}

// Session returns the active session, or INVALID_STATE when nobody is logged in.
func (w *Workspace) Session() (*Session, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.state != Annotating {
		return nil, errors.NewInvalidState(w.state.String(), "annotate")
	}
	return w.session, nil
}

// LoadDataset ingests an uploaded CSV. Unloaded → AnnotatorUnselected.
func (w *Workspace) LoadDataset(r io.Reader, name string) (Dataset, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.state != Unloaded {
		return Dataset{}, errors.NewInvalidState(w.state.String(), "load a dataset")
	}

	t, col, err := progress.ReadDataset(r, name, w.opts.Scheme)
	if err != nil {
		return Dataset{}, err
	}
	if t.Len() == 0 {
		return Dataset{}, errors.NewInvalidRequest(name + ": dataset has no rows")
	}

	w.dataset = t
	w.info = Dataset{Name: name, TextColumn: col, Rows: t.Len(), Coerced: t.Coerced}
	w.state = AnnotatorUnselected
	w.log.Info("dataset loaded",
		zap.String("name", name),
		zap.String("text_column", col),
		zap.Int("rows", t.Len()),
		zap.Int("coerced", t.Coerced))
	return w.info, nil
}

// Login starts a session for annotator. AnnotatorUnselected → Annotating.
// An existing progress file for the annotator is restored; otherwise progress
// starts from the dataset. The cursor is placed on the first pending row.
func (w *Workspace) Login(annotator string) (*Session, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.state != AnnotatorUnselected {
		return nil, errors.NewInvalidState(w.state.String(), "login")
	}
	annotator = strings.TrimSpace(annotator)
	if err := w.validateAnnotator(annotator); err != nil {
		return nil, err
	}

	var path string
	table := progress.InitProgress(w.dataset, annotator)
	if w.opts.ProgressDir != "" {
		path = progress.PathFor(w.opts.ProgressDir, annotator)
		restored, err := w.restore(path, annotator)
		if err != nil {
			return nil, err
		}
		if restored != nil {
			table = restored
		}
	}

	id, err := ids.New()
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	s := &Session{
		ID:          id,
		AnnotatorID: annotator,
		StartedAt:   time.Now().UTC(),
		table:       table,
		path:        path,
		log:         w.log.With(zap.String("session", id), zap.String("annotator", annotator)),
		scheme:      w.opts.Scheme,
	}
	s.cur = s.firstPending()

	w.session = s
	w.state = Annotating
	s.log.Info("session started", zap.Int("rows", table.Len()), zap.Int("position", s.cur+1))
	return s, nil
}

func (w *Workspace) restore(path, annotator string) (*progress.Table, error) {
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, errors.NewInternal(err)
	}
	t, err := progress.ReadFile(path, progress.ReadOptions{Mode: progress.Lenient, Scheme: w.opts.Scheme})
	if err != nil {
		return nil, err
	}
	if t.Len() == 0 {
		return nil, nil
	}
	if t.Len() != w.dataset.Len() {
		w.log.Warn("restored progress differs in size from the dataset",
			zap.String("annotator", annotator),
			zap.Int("progress_rows", t.Len()),
			zap.Int("dataset_rows", w.dataset.Len()))
	}
	for i := range t.Records {
		t.Records[i].AnnotatorID = annotator
	}
	return t, nil
}

func (w *Workspace) validateAnnotator(id string) error {
	if id == "" {
		return errors.NewInvalidRequest("annotator is required")
	}
	if strings.ContainsAny(id, `/\`) || strings.Contains(id, "..") || strings.HasPrefix(id, ".") {
		return errors.NewInvalidRequest("annotator id must not contain path separators")
	}
	if len(w.opts.Annotators) == 0 {
		return nil
	}
	for _, a := range w.opts.Annotators {
		if a == id {
			return nil
		}
	}
	return errors.NewNotFound("annotator " + id)
}

// Logout ends the active session. Annotating → AnnotatorUnselected.
// The session is closed and rejects further actions.
func (w *Workspace) Logout() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.state != Annotating {
		return errors.NewInvalidState(w.state.String(), "logout")
	}
	w.session.close()
	w.session.log.Info("session ended")
	w.session = nil
	w.state = AnnotatorUnselected
	return nil
}

// Unload drops the dataset and any session. Any state → Unloaded.
func (w *Workspace) Unload() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.session != nil {
		w.session.close()
		w.session = nil
	}
	w.dataset = nil
	w.info = Dataset{}
	w.state = Unloaded
}
