// Package http is the HTTP adapter exposing job submission, status polling
// and artifact retrieval.
package http

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net"
	"net/http"
	"strconv"
	"strings"

	"github.com/vgrab/vgrab/internal/cleanup"
	"github.com/vgrab/vgrab/internal/domain"
	"github.com/vgrab/vgrab/internal/ratelimit"
)

// Server is the HTTP adapter for the download service.
type Server struct {
	svc     *domain.JobService
	limiter *ratelimit.Limiter
	mux     *http.ServeMux
	server  *http.Server
}

// NewServer creates a new HTTP server.
func NewServer(svc *domain.JobService, limiter *ratelimit.Limiter, addr string) *Server {
	s := &Server{
		svc:     svc,
		limiter: limiter,
		mux:     http.NewServeMux(),
	}
	s.routes()
	s.server = &http.Server{
		Addr:    addr,
		Handler: s.mux,
	}
	return s
}

func (s *Server) routes() {
	s.mux.HandleFunc("POST /api/download", s.handleDownload)
	s.mux.HandleFunc("GET /api/status/{id}", s.handleStatus)
	s.mux.HandleFunc("GET /api/file/{id}", s.handleFile)
	s.mux.HandleFunc("DELETE /api/file/{id}", s.handleDelete)
	s.mux.HandleFunc("GET /health", s.handleHealth)
}

// statusResponse is the JSON response for GET /api/status/{id}.
type statusResponse struct {
	Status   string           `json:"status"`
	Progress int              `json:"progress"`
	Message  string           `json:"message"`
	Error    string           `json:"error,omitempty"`
	Reason   string           `json:"reason,omitempty"`
	Filename string           `json:"filename,omitempty"`
	Meta     *domain.Metadata `json:"meta,omitempty"`
}

// errorResponse is the JSON error response.
type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) handleDownload(w http.ResponseWriter, r *http.Request) {
	if !s.limiter.Allow(clientIP(r)) {
		s.writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
		return
	}

	q := r.URL.Query()
	payload := domain.Payload{
		URL:     q.Get("url"),
		Quality: q.Get("quality"),
		Format:  q.Get("format"),
	}

	id, err := s.svc.Submit(r.Context(), payload)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrInvalidURL),
			errors.Is(err, domain.ErrDomainNotAllowed),
			errors.Is(err, domain.ErrUnsupportedFormat),
			errors.Is(err, domain.ErrUnknownQuality):
			s.writeError(w, http.StatusBadRequest, err.Error())
		default:
			log.Printf("submit error: %v", err)
			s.writeError(w, http.StatusServiceUnavailable, "unable to accept job")
		}
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]string{"job_id": id})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	job, err := s.svc.Status(r.Context(), r.PathValue("id"))
	if err != nil {
		s.notFoundOrInternal(w, err, "job not found")
		return
	}

	resp := statusResponse{
		Status:   string(job.Status),
		Progress: job.Progress,
		Message:  job.Message,
		Error:    job.Error,
		Reason:   job.Reason,
	}
	if job.Status == domain.StatusDone && job.Result != nil {
		resp.Filename = job.Result.Filename
		resp.Meta = job.Result.Meta
	}
	s.writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleFile(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	job, err := s.svc.Status(r.Context(), id)
	if err != nil {
		s.notFoundOrInternal(w, err, "file not ready")
		return
	}
	if job.Status != domain.StatusDone || job.Result == nil {
		s.writeError(w, http.StatusNotFound, "file not ready")
		return
	}

	result := job.Result
	w.Header().Set("Content-Type", result.Mimetype)
	w.Header().Set("Content-Disposition", "attachment; filename="+strconv.Quote(result.Filename))
	http.ServeFile(w, r, result.FilePath)

	// The artifact is single-use: reclaim it once the response is sent.
	go s.deleteArtifact(id, result.FilePath, "File deleted after download")
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	job, err := s.svc.Status(r.Context(), id)
	if err != nil {
		s.notFoundOrInternal(w, err, "not found")
		return
	}
	if job.Result == nil {
		s.writeError(w, http.StatusNotFound, "not found")
		return
	}

	s.deleteArtifact(id, job.Result.FilePath, "File deleted")
	s.writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

// deleteArtifact removes the file from disk (absence is not an error) and
// transitions the record to deleted, clearing its result.
func (s *Server) deleteArtifact(id, path, message string) {
	cleanup.DeletePath(path)
	if err := s.svc.Update(context.Background(), id, domain.DeletedUpdate(message)); err != nil {
		log.Printf("job %s: mark deleted: %v", id, err)
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) notFoundOrInternal(w http.ResponseWriter, err error, msg string) {
	if errors.Is(err, domain.ErrJobNotFound) {
		s.writeError(w, http.StatusNotFound, msg)
		return
	}
	log.Printf("lookup error: %v", err)
	s.writeError(w, http.StatusInternalServerError, "internal error")
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func (s *Server) writeError(w http.ResponseWriter, status int, msg string) {
	s.writeJSON(w, status, errorResponse{Error: msg})
}

// clientIP extracts the remote host, used as the rate-limit identity.
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return strings.TrimSpace(r.RemoteAddr)
	}
	return host
}

// ListenAndServe starts the HTTP server.
func (s *Server) ListenAndServe() error {
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

// ServeHTTP implements http.Handler for testing.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}
