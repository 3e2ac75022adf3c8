package httpapi

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/ironsheep/object-counter/internal/capture"
	"github.com/ironsheep/object-counter/internal/config"
	"github.com/ironsheep/object-counter/internal/httputil"
	"github.com/ironsheep/object-counter/internal/monitoring"
	"github.com/ironsheep/object-counter/internal/store"
)

// HistoryStore is the subset of *store.Store the API uses.
type HistoryStore interface {
	RecordCount(ctx context.Context, rec *store.CountRecord) error
	ListCounts(ctx context.Context, limit int) ([]*store.CountRecord, error)
	GetCount(ctx context.Context, id string) (*store.CountRecord, error)
	DeleteCount(ctx context.Context, id string) error
	Ping(ctx context.Context) error
}

// Options configures a Server. Store, Capture and Source are optional;
// endpoints that need them answer 503 when they are nil.
type Options struct {
	Defaults *config.CountingDefaults
	Store    HistoryStore
	Capture  *capture.Loop
	// Source is checked by /camera_test. It is usually the loop's source.
	Source     capture.Source
	CaptureDir string
}

// Server is the HTTP front end used by camera UIs.
type Server struct {
	defaults   *config.CountingDefaults
	store      HistoryStore
	capture    *capture.Loop
	source     capture.Source
	captureDir string
	started    time.Time
	mux        *http.ServeMux
}

// New creates a Server and registers its routes.
func New(opts Options) *Server {
	defaults := opts.Defaults
	if defaults == nil {
		defaults = config.EmptyCountingDefaults()
	}
	s := &Server{
		defaults:   defaults,
		store:      opts.Store,
		capture:    opts.Capture,
		source:     opts.Source,
		captureDir: opts.CaptureDir,
		started:    time.Now(),
		mux:        http.NewServeMux(),
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.mux.HandleFunc("POST /count", s.handleCountUpload)
	s.mux.HandleFunc("GET /count", s.handleCountFile)
	s.mux.HandleFunc("POST /blobs", s.handleBlobs)

	s.mux.HandleFunc("GET /health", s.handleHealth)
	s.mux.HandleFunc("GET /system_info", s.handleSystemInfo)

	s.mux.HandleFunc("GET /history", s.handleHistoryList)
	s.mux.HandleFunc("GET /history/{id}", s.handleHistoryGet)
	s.mux.HandleFunc("DELETE /history/{id}", s.handleHistoryDelete)

	s.mux.HandleFunc("GET /files", s.handleFiles)
	s.mux.HandleFunc("POST /upload", s.handleUpload)
	s.mux.HandleFunc("GET /download", s.handleDownload)
	s.mux.HandleFunc("DELETE /delete", s.handleDelete)
	s.mux.HandleFunc("POST /capture", s.handleCapture)
	s.mux.HandleFunc("GET /camera_test", s.handleCameraTest)
}

// Handler returns the routes wrapped with CORS.
func (s *Server) Handler() http.Handler {
	return httputil.CORS(s.mux)
}

// ListenAndServe serves on addr until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		monitoring.Logf("HTTP API listening on %s", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		return nil
	}
}
