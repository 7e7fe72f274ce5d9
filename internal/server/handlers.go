package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strconv"

	"github.com/go-chi/chi/v5"

	"ytdash/internal/collector"
	"ytdash/internal/formats"
	"ytdash/internal/model"
	"ytdash/internal/pipeline"
	"ytdash/internal/session"
	"ytdash/internal/util"
)

const maxBodyBytes = 1 << 20

type urlRequest struct {
	URL string `json:"url"`
}

type startRequest struct {
	URL     string                `json:"url"`
	Options model.DownloadOptions `json:"options"`
}

type bundleRequest struct {
	IDs []string `json:"ids"`
}

type infoResponse struct {
	Info    model.VideoInfo   `json:"info"`
	Formats formats.Catalogue `json:"formats"`
}

type startResponse struct {
	ID       string `json:"id"`
	StateURL string `json:"state_url"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleInfo returns metadata and the format catalogue for a URL.
func (s *Server) handleInfo(w http.ResponseWriter, r *http.Request) {
	var req urlRequest
	if !decode(w, r, &req) {
		return
	}
	info, err := s.info.Info(r.Context(), req.URL)
	switch {
	case errors.Is(err, pipeline.ErrInvalidInput):
		writeError(w, http.StatusBadRequest, err)
		return
	case err != nil:
		s.log.Warn().Err(err).Str("url", req.URL).Msg("metadata fetch failed")
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, infoResponse{Info: info, Formats: formats.Build(info)})
}

// handleStartDownload validates the request and queues an operation.
func (s *Server) handleStartDownload(w http.ResponseWriter, r *http.Request) {
	req := startRequest{Options: model.DefaultDownloadOptions()}
	if !decode(w, r, &req) {
		return
	}
	url, err := util.NormalizeVideoURL(req.URL)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	opts, err := req.Options.Normalize()
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	id, err := s.sessions.Start(r.Context(), url, opts)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	w.Header().Set("Location", stateURL(id))
	writeJSON(w, http.StatusAccepted, startResponse{ID: id, StateURL: stateURL(id)})
}

func (s *Server) handleListDownloads(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.sessions.List())
}

// handleGetDownload is the polling endpoint for one operation.
func (s *Server) handleGetDownload(w http.ResponseWriter, r *http.Request) {
	snap, err := s.sessions.Get(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

// handleDeleteDownload cancels a running operation or removes a finished one.
func (s *Server) handleDeleteDownload(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	cancelled, err := s.sessions.Cancel(id)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	if cancelled {
		writeJSON(w, http.StatusAccepted, map[string]string{"id": id, "status": "cancelling"})
		return
	}
	if err := s.sessions.Remove(id); err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleDownloadFile serves a single output directly, or all outputs as a zip.
func (s *Server) handleDownloadFile(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	outs, err := s.sessions.Outputs(id)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	paths := pathsOf(outs)

	if collector.KindFor(paths) == collector.KindFile {
		s.serveFile(w, r, paths[0])
		return
	}
	name := id + ".zip"
	if snap, err := s.sessions.Get(id); err == nil && snap.Title != "" {
		name = util.SanitizeFilename(snap.Title) + ".zip"
	}
	s.serveZip(w, name, paths)
}

// handleBundle zips the outputs of several finished operations into one archive.
func (s *Server) handleBundle(w http.ResponseWriter, r *http.Request) {
	var req bundleRequest
	if !decode(w, r, &req) {
		return
	}
	if len(req.IDs) == 0 {
		writeError(w, http.StatusBadRequest, errors.New("ids must not be empty"))
		return
	}
	var paths []string
	for _, id := range req.IDs {
		outs, err := s.sessions.Outputs(id)
		if err != nil {
			writeError(w, statusFor(err), fmt.Errorf("%s: %w", id, err))
			return
		}
		paths = append(paths, pathsOf(outs)...)
	}
	s.serveZip(w, "ytdash-bundle.zip", paths)
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		writeError(w, http.StatusNotFound, errors.New("history is disabled"))
		return
	}
	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, fmt.Errorf("invalid limit %q", v))
			return
		}
		limit = n
	}
	entries, err := s.history.List(limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

// ----------------- Helpers -----------------

func (s *Server) serveFile(w http.ResponseWriter, r *http.Request, path string) {
	f, err := os.Open(path)
	if err != nil {
		writeError(w, http.StatusNotFound, errors.New("output file is gone"))
		return
	}
	defer f.Close()
	fi, err := f.Stat()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	w.Header().Set("Content-Disposition", attachment(filepath.Base(path)))
	http.ServeContent(w, r, fi.Name(), fi.ModTime(), f)
}

func (s *Server) serveZip(w http.ResponseWriter, name string, paths []string) {
	for _, p := range paths {
		if _, err := os.Stat(p); err != nil {
			writeError(w, http.StatusNotFound, fmt.Errorf("output file %s is gone", filepath.Base(p)))
			return
		}
	}
	w.Header().Set("Content-Type", "application/zip")
	w.Header().Set("Content-Disposition", attachment(name))
	w.WriteHeader(http.StatusOK)
	if err := collector.WriteZip(w, paths); err != nil {
		// headers are sent; the client sees a truncated archive
		s.log.Error().Err(err).Str("archive", name).Msg("zip stream failed")
	}
}

func attachment(name string) string {
	return mime.FormatMediaType("attachment", map[string]string{"filename": name})
}

func pathsOf(outs []model.OutputFile) []string {
	paths := make([]string, 0, len(outs))
	for _, o := range outs {
		paths = append(paths, o.Path)
	}
	return paths
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, session.ErrNotFound), errors.Is(err, session.ErrNoOutput):
		return http.StatusNotFound
	case errors.Is(err, session.ErrRunning):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("invalid request body: %w", err))
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
