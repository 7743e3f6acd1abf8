// Package server exposes portfolio data over a JSON HTTP API.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/codeGROOVE-dev/folio/pkg/portfolio"
	"github.com/codeGROOVE-dev/folio/pkg/profile"
)

const shutdownTimeout = 10 * time.Second

// Builder is the subset of *portfolio.Builder served by the API.
type Builder interface {
	Build(ctx context.Context, username string) (*portfolio.Portfolio, error)
	Profile(ctx context.Context, username string) (*profile.Profile, error)
	Projects(ctx context.Context, username string) (*profile.ProjectsData, error)
}

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// Server routes API requests to a Builder.
type Server struct {
	router  *chi.Mux
	builder Builder
	logger  *slog.Logger
}

// New creates a Server with all routes registered.
func New(b Builder, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{router: chi.NewRouter(), builder: b, logger: logger}

	s.router.Use(chimiddleware.RequestID)
	s.router.Use(chimiddleware.RealIP)
	s.router.Use(requestLogger(logger))
	s.router.Use(chimiddleware.Recoverer)

	s.router.Get("/healthz", s.handleHealth)
	s.router.Route("/api/v1", func(r chi.Router) {
		r.Get("/portfolio/{username}", s.handlePortfolio)
		r.Get("/profile/{username}", s.handleProfile)
		r.Get("/projects/{username}", s.handleProjects)
	})
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// ListenAndServe serves on addr until ctx is canceled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.InfoContext(ctx, "server starting", "address", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		s.logger.InfoContext(ctx, "server shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}

func (*Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handlePortfolio(w http.ResponseWriter, r *http.Request) {
	p, err := s.builder.Build(r.Context(), chi.URLParam(r, "username"))
	s.respond(w, r, p, err)
}

func (s *Server) handleProfile(w http.ResponseWriter, r *http.Request) {
	p, err := s.builder.Profile(r.Context(), chi.URLParam(r, "username"))
	s.respond(w, r, p, err)
}

func (s *Server) handleProjects(w http.ResponseWriter, r *http.Request) {
	p, err := s.builder.Projects(r.Context(), chi.URLParam(r, "username"))
	s.respond(w, r, p, err)
}

func (s *Server) respond(w http.ResponseWriter, r *http.Request, data any, err error) {
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, data)
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("failed to encode JSON response", "error", err)
	}
}

// writeError maps errors to HTTP. Only "not found" is distinguished; everything
// else is a generic 500.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	username := chi.URLParam(r, "username")
	if errors.Is(err, profile.ErrProfileNotFound) {
		writeJSON(w, http.StatusNotFound, ErrorResponse{
			Error:   "not_found",
			Message: "GitHub user " + username + " not found",
		})
		return
	}

	s.logger.ErrorContext(r.Context(), "request failed",
		"username", username,
		"request_id", chimiddleware.GetReqID(r.Context()),
		"error", err,
	)
	writeJSON(w, http.StatusInternalServerError, ErrorResponse{
		Error:   "internal_error",
		Message: "Failed to load portfolio data",
	})
}
