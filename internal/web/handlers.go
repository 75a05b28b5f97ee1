package web

import (
	"mime"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/hpungsan/phishlabel/internal/errors"
	"github.com/hpungsan/phishlabel/internal/progress"
	"github.com/hpungsan/phishlabel/internal/session"
)

// Handlers contains HTTP route handlers for the web UI.
type Handlers struct {
	ws       *session.Workspace
	renderer *Renderer
	log      *zap.Logger
}

// pageData fills the fields every page shares.
func (h *Handlers) pageData(title, nav string) PageData {
	pd := PageData{Title: title, Version: h.renderer.version, Nav: nav}
	if ds, ok := h.ws.Dataset(); ok {
		pd.Dataset = &ds
	}
	if s, err := h.ws.Session(); err == nil {
		pd.Annotator = s.AnnotatorID
	}
	return pd
}

// HandleIndex handles GET /. Redirects to the page for the current state.
func (h *Handlers) HandleIndex(w http.ResponseWriter, r *http.Request) {
	http.Redirect(w, r, pathForState(h.ws.State()), http.StatusFound)
}

func pathForState(s session.State) string {
	switch s {
	case session.Annotating:
		return "/annotate"
	case session.AnnotatorUnselected:
		return "/login"
	default:
		return "/upload"
	}
}

// redirectIfNot sends the browser to the page for the current state when it
// is not want. It reports whether a redirect was written.
func (h *Handlers) redirectIfNot(w http.ResponseWriter, r *http.Request, want session.State) bool {
	st := h.ws.State()
	if st == want {
		return false
	}
	if wantsJSON(r) {
		h.renderer.renderError(w, r, errors.NewInvalidState(st.String(), "open "+r.URL.Path))
		return true
	}
	http.Redirect(w, r, pathForState(st), http.StatusSeeOther)
	return true
}

// HandleUploadPage handles GET /upload. Dataset upload form.
func (h *Handlers) HandleUploadPage(w http.ResponseWriter, r *http.Request) {
	h.renderer.renderPage(w, "upload", UploadPageData{
		PageData:    h.pageData("Upload dataset", "upload"),
		TextColumns: progress.TextColumns,
	})
}

// HandleUpload handles POST /upload. Ingest a dataset CSV.
func (h *Handlers) HandleUpload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	file, header, err := r.FormFile("dataset")
	if err != nil {
		h.renderer.renderError(w, r, errors.NewInvalidRequest("a CSV file is required in field \"dataset\""))
		return
	}
	defer file.Close()

	name := filepath.Base(header.Filename)
	if !strings.EqualFold(filepath.Ext(name), ".csv") {
		h.renderer.renderError(w, r, errors.NewInvalidRequest("dataset must be a .csv file"))
		return
	}

	ds, err := h.ws.LoadDataset(file, name)
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}

	if wantsJSON(r) {
		renderJSON(w, http.StatusOK, map[string]any{
			"name":        ds.Name,
			"text_column": ds.TextColumn,
			"rows":        ds.Rows,
			"coerced":     ds.Coerced,
		})
		return
	}
	http.Redirect(w, r, "/login", http.StatusSeeOther)
}

// HandleUnload handles POST /unload. Drop the dataset and any session.
func (h *Handlers) HandleUnload(w http.ResponseWriter, r *http.Request) {
	h.ws.Unload()
	http.Redirect(w, r, "/upload", http.StatusSeeOther)
}

// HandleLoginPage handles GET /login. Annotator selection.
func (h *Handlers) HandleLoginPage(w http.ResponseWriter, r *http.Request) {
	if h.redirectIfNot(w, r, session.AnnotatorUnselected) {
		return
	}
	h.renderer.renderPage(w, "login", LoginPageData{
		PageData:   h.pageData("Select annotator", "login"),
		Annotators: h.ws.Annotators(),
	})
}

// HandleLogin handles POST /login. Start a session.
func (h *Handlers) HandleLogin(w http.ResponseWriter, r *http.Request) {
	if _, err := h.ws.Login(r.FormValue("annotator")); err != nil {
		h.renderer.renderError(w, r, err)
		return
	}
	h.respondView(w, r)
}

// HandleAnnotatePage handles GET /annotate. Show the current item.
func (h *Handlers) HandleAnnotatePage(w http.ResponseWriter, r *http.Request) {
	if h.redirectIfNot(w, r, session.Annotating) {
		return
	}
	s, err := h.ws.Session()
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}
	v, err := s.Current()
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}

	data := AnnotatePageData{
		PageData: h.pageData("Annotate", "annotate"),
		View:     v,
		Stats:    s.Stats(),
		Classes:  h.ws.Scheme().Classes,
		Guide:    renderMarkdown(h.ws.Scheme().Guide()),
	}
	if v.Record.Label != nil {
		data.Label = *v.Record.Label
	}
	h.renderer.renderPage(w, "annotate", data)
}

// HandleAnnotate handles POST /annotate. Apply one session action.
func (h *Handlers) HandleAnnotate(w http.ResponseWriter, r *http.Request) {
	s, err := h.ws.Session()
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}

	action := r.FormValue("action")
	switch action {
	case "label":
		class, perr := strconv.Atoi(r.FormValue("class"))
		if perr != nil {
			err = errors.NewInvalidRequest("class must be an integer")
			break
		}
		_, err = s.Label(class)
	case "skip":
		_, err = s.Skip()
	case "next":
		_, err = s.Next()
	case "prev":
		_, err = s.Prev()
	case "blank":
		_, err = s.NextBlank()
	case "jump":
		pos, perr := strconv.Atoi(strings.TrimSpace(r.FormValue("position")))
		if perr != nil {
			err = errors.NewInvalidRequest("position must be an integer")
			break
		}
		_, err = s.Jump(pos)
	case "remarks":
		_, err = s.SaveRemarks(strings.TrimSpace(r.FormValue("remarks")))
	default:
		err = errors.NewInvalidRequest("unknown action: " + action)
	}
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}

	h.respondView(w, r)
}

// respondView answers a successful session action: JSON clients get the
// current view, browsers are sent back to the annotation page.
func (h *Handlers) respondView(w http.ResponseWriter, r *http.Request) {
	if !wantsJSON(r) {
		http.Redirect(w, r, "/annotate", http.StatusSeeOther)
		return
	}
	s, err := h.ws.Session()
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}
	v, err := s.Current()
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}
	st := s.Stats()
	renderJSON(w, http.StatusOK, map[string]any{
		"session":   s.ID,
		"annotator": s.AnnotatorID,
		"position":  v.Position,
		"total":     v.Total,
		"status":    string(v.Status),
		"text":      v.Record.TextKey,
		"label":     v.Record.Label,
		"remarks":   v.Record.Remarks,
		"stats": map[string]any{
			"done":    st.Done,
			"skipped": st.Skipped,
			"left":    st.Left,
			"percent": st.Percent,
		},
	})
}

// HandleSkipped handles GET /skipped. List skipped items to jump back to.
func (h *Handlers) HandleSkipped(w http.ResponseWriter, r *http.Request) {
	if h.redirectIfNot(w, r, session.Annotating) {
		return
	}
	s, err := h.ws.Session()
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}
	idx, total, err := s.Skipped()
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}

	positions := make([]int, len(idx))
	for i, n := range idx {
		positions[i] = n + 1
	}
	if wantsJSON(r) {
		renderJSON(w, http.StatusOK, map[string]any{"positions": positions, "total": total})
		return
	}
	h.renderer.renderPage(w, "skipped", SkippedPageData{
		PageData:  h.pageData("Skipped", "skipped"),
		Positions: positions,
		Total:     total,
		Shown:     len(positions),
	})
}

// HandleDownload handles GET /download. The annotator's progress as CSV.
func (h *Handlers) HandleDownload(w http.ResponseWriter, r *http.Request) {
	s, err := h.ws.Session()
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": s.DownloadName()}))
	if err := s.WriteCSV(w); err != nil {
		h.log.Error("download failed", zap.String("annotator", s.AnnotatorID), zap.Error(err))
	}
}

// HandleLogout handles POST /logout. End the session.
func (h *Handlers) HandleLogout(w http.ResponseWriter, r *http.Request) {
	if err := h.ws.Logout(); err != nil {
		h.renderer.renderError(w, r, err)
		return
	}
	http.Redirect(w, r, "/login", http.StatusSeeOther)
}
