// Package api provides the HTTP surface for on-demand sync triggers and
// health checks. Sync requests execute synchronously: the response
// carries the finished outcome, and a request against a program already
// mid-sync gets a conflict instead of a second run.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/xraph/rostersync"
	"github.com/xraph/rostersync/mirror"
	"github.com/xraph/rostersync/notify"
	"github.com/xraph/rostersync/syncer"
)

// SyncRunner executes one sync run under the program lock.
// trigger.Runner satisfies this interface.
type SyncRunner interface {
	RunNow(ctx context.Context, run *syncer.Run) (*syncer.Outcome, error)
}

// Pinger reports backend connectivity for the health endpoint.
type Pinger interface {
	Ping(ctx context.Context) error
}

// SyncRequest is the body of a sync trigger request. Both fields are
// optional.
type SyncRequest struct {
	// NotifyAddress receives the outcome report once the run finishes.
	NotifyAddress string `json:"notify_address,omitempty"`
	// ForceRecheck re-applies desired state even where observed state
	// already matches.
	ForceRecheck bool `json:"force_recheck,omitempty"`
}

// ErrorResponse is the standardized error body.
type ErrorResponse struct {
	Error string `json:"error"`
}

// ServerOption configures the Server.
type ServerOption func(*Server)

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) ServerOption {
	return func(s *Server) { s.logger = l }
}

// WithPinger sets the backend checked by /healthz.
func WithPinger(p Pinger) ServerOption {
	return func(s *Server) { s.pinger = p }
}

// WithRequestTimeout sets the per-request timeout. It must cover a full
// synchronous sync run.
func WithRequestTimeout(d time.Duration) ServerOption {
	return func(s *Server) { s.requestTimeout = d }
}

// Server is the HTTP API server.
type Server struct {
	runner         SyncRunner
	pinger         Pinger
	logger         *slog.Logger
	requestTimeout time.Duration
}

// NewServer creates a Server around a SyncRunner.
func NewServer(runner SyncRunner, opts ...ServerOption) *Server {
	s := &Server{
		runner:         runner,
		logger:         slog.Default(),
		requestTimeout: 15 * time.Minute,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Handler returns the fully assembled http.Handler with all routes.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.Recoverer)
	r.Use(chimw.Timeout(s.requestTimeout))

	r.Get("/healthz", s.health)
	r.Post("/programs/{programID}/sync", s.syncProgram)

	return r
}

// syncProgram triggers a synchronous run for one program.
func (s *Server) syncProgram(w http.ResponseWriter, r *http.Request) {
	programID := chi.URLParam(r, "programID")
	if programID == "" {
		s.writeError(w, http.StatusBadRequest, "program id is required")
		return
	}

	var req SyncRequest
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			s.writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
	}

	run := syncer.NewRun(mirror.ProgramRef(programID))
	run.NotifyAddress = req.NotifyAddress
	run.Force = req.ForceRecheck

	out, err := s.runner.RunNow(r.Context(), run)
	switch {
	case err == nil:
		s.writeJSON(w, http.StatusOK, notify.NewReport(run, out))
	case errors.Is(err, rostersync.ErrLockHeld):
		s.writeError(w, http.StatusConflict, "sync already in progress for this program")
	case errors.Is(err, rostersync.ErrProgramNotFound):
		s.writeError(w, http.StatusNotFound, "program not found")
	case errors.Is(err, rostersync.ErrMissingLocalConfiguration):
		s.writeError(w, http.StatusUnprocessableEntity, "program has no linked course")
	default:
		s.logger.Error("sync request failed",
			slog.String("program", programID),
			slog.String("error", err.Error()),
		)
		s.writeError(w, http.StatusInternalServerError, "sync run failed")
	}
}

// health reports liveness, and backend connectivity when configured.
func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	if s.pinger != nil {
		if err := s.pinger.Ping(r.Context()); err != nil {
			s.writeError(w, http.StatusServiceUnavailable, "store unreachable")
			return
		}
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("write response failed", slog.String("error", err.Error()))
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, msg string) {
	s.writeJSON(w, status, ErrorResponse{Error: msg})
}
