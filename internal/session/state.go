// Package session holds the annotation workflow: a process-scoped Workspace
// moving through Unloaded, AnnotatorUnselected and Annotating, and the
// per-login Session that labels rows of the annotator's progress table.
package session

// State is the workspace lifecycle stage.
type State int

const (
	// Unloaded: no dataset yet.
	Unloaded State = iota
	// AnnotatorUnselected: a dataset is loaded and nobody is logged in.
	AnnotatorUnselected
	// Annotating: an annotator session is active.
	Annotating
)

func (s State) String() string {
	switch s {
	case Unloaded:
		return "unloaded"
	case AnnotatorUnselected:
		return "annotator_unselected"
	case Annotating:
		return "annotating"
	default:
		return "unknown"
	}
}
