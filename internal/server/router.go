// Package server exposes download operations over a JSON HTTP API.
package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"ytdash/internal/history"
	"ytdash/internal/model"
	"ytdash/internal/session"
)

// DefaultAddr is the listen address used when none is configured.
const DefaultAddr = ":8827"

// Sessions is the operation store behind the API; *session.Manager satisfies it.
type Sessions interface {
	Start(ctx context.Context, url string, opts model.DownloadOptions) (string, error)
	Get(id string) (session.Snapshot, error)
	List() []session.Snapshot
	Cancel(id string) (bool, error)
	Outputs(id string) ([]model.OutputFile, error)
	Remove(id string) error
}

// InfoFetcher returns metadata for a URL.
type InfoFetcher interface {
	Info(ctx context.Context, url string) (model.VideoInfo, error)
}

// HistoryLister lists recorded operations.
type HistoryLister interface {
	List(limit int) ([]history.Entry, error)
}

// Server holds the API dependencies.
type Server struct {
	sessions Sessions
	info     InfoFetcher
	history  HistoryLister
	log      zerolog.Logger
}

// New returns a Server. hist may be nil when history is disabled.
func New(sessions Sessions, info InfoFetcher, hist HistoryLister, log zerolog.Logger) *Server {
	return &Server{sessions: sessions, info: info, history: hist, log: log}
}

// Router returns the http.Handler serving the API.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(s.requestLogger)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", s.handleHealth)

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/info", s.handleInfo)
		r.Post("/bundle", s.handleBundle)
		r.Get("/history", s.handleHistory)

		r.Route("/downloads", func(r chi.Router) {
			r.Get("/", s.handleListDownloads)
			r.Post("/", s.handleStartDownload)
			r.Get("/{id}", s.handleGetDownload)
			r.Delete("/{id}", s.handleDeleteDownload)
			r.Get("/{id}/file", s.handleDownloadFile)
		})
	})

	return r
}

// requestLogger logs one line per request through zerolog.
func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		defer func() {
			ev := s.log.Info()
			if ww.Status() >= http.StatusInternalServerError {
				ev = s.log.Error()
			}
			ev.Str("req_id", middleware.GetReqID(r.Context())).
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Int("status", ww.Status()).
				Int("bytes", ww.BytesWritten()).
				Dur("elapsed", time.Since(start)).
				Msg("http request")
		}()
		next.ServeHTTP(ww, r)
	})
}

// ListenAndServe serves the API on addr until ctx is cancelled, then shuts
// down gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	if addr == "" {
		addr = DefaultAddr
	}
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info().Str("addr", addr).Msg("ytdash API listening")
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

// stateURL is the polling location of an operation.
func stateURL(id string) string {
	return "/api/v1/downloads/" + id
}
