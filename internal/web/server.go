package web

import (
	"context"
	"embed"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/hpungsan/phishlabel/internal/session"
)

//go:embed templates/*.html
var templateFS embed.FS

//go:embed static/*
var staticFS embed.FS

// maxUploadBytes caps an uploaded dataset.
const maxUploadBytes = 64 << 20

// Options configures the web UI server.
type Options struct {
	Version string
	Bind    string
	Port    int
	Logger  *zap.Logger
}

// NewServer creates and configures the HTTP server for the annotation UI.
func NewServer(ws *session.Workspace, opts Options) (*http.Server, error) {
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}

	templateSub, err := fs.Sub(templateFS, "templates")
	if err != nil {
		return nil, fmt.Errorf("template sub-FS: %w", err)
	}
	staticSub, err := fs.Sub(staticFS, "static")
	if err != nil {
		return nil, fmt.Errorf("static sub-FS: %w", err)
	}

	h := &Handlers{
		ws:       ws,
		renderer: NewRenderer(templateSub, opts.Version, log),
		log:      log,
	}

	return &http.Server{
		Addr:              fmt.Sprintf("%s:%d", opts.Bind, opts.Port),
		Handler:           h.routes(staticSub),
		ReadHeaderTimeout: 10 * time.Second,
	}, nil
}

func (h *Handlers) routes(static fs.FS) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /{$}", h.HandleIndex)
	mux.HandleFunc("GET /upload", h.HandleUploadPage)
	mux.HandleFunc("POST /upload", h.HandleUpload)
	mux.HandleFunc("POST /unload", h.HandleUnload)
	mux.HandleFunc("GET /login", h.HandleLoginPage)
	mux.HandleFunc("POST /login", h.HandleLogin)
	mux.HandleFunc("GET /annotate", h.HandleAnnotatePage)
	mux.HandleFunc("POST /annotate", h.HandleAnnotate)
	mux.HandleFunc("GET /skipped", h.HandleSkipped)
	mux.HandleFunc("GET /download", h.HandleDownload)
	mux.HandleFunc("POST /logout", h.HandleLogout)

	mux.Handle("GET /static/", http.StripPrefix("/static/", http.FileServerFS(static)))

	return securityHeaders(mux)
}

// securityHeaders adds security-related HTTP headers to all responses.
func securityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Security-Policy", "default-src 'self'; script-src 'self'; style-src 'self'")
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		next.ServeHTTP(w, r)
	})
}

// Run starts the HTTP server and handles graceful shutdown on SIGINT/SIGTERM
// or when ctx is cancelled. The active session is closed on the way out.
func Run(ctx context.Context, srv *http.Server, ws *session.Workspace, log *zap.Logger) error {
	if log == nil {
		log = zap.NewNop()
	}
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	fmt.Fprintf(os.Stderr, "Annotation UI running at http://%s\n", srv.Addr)
	if strings.Contains(srv.Addr, "0.0.0.0") || strings.Contains(srv.Addr, "::") {
		log.Warn("server is binding to all interfaces and may be accessible from the network")
	}

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		log.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		err := srv.Shutdown(shutdownCtx)
		if ws != nil {
			ws.Unload()
		}
		return err
	}
}
