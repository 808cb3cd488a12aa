// Package server assembles the gateway's HTTP surface: the middleware chain,
// the public and protected route groups, and the handlers that proxy to the
// model backend.
package server

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/modelgate/modelgate/internal/auth"
	"github.com/modelgate/modelgate/internal/domain"
	"github.com/modelgate/modelgate/internal/tokens"
)

// HealthChecker is the slice of the persistence layer the db health endpoint
// needs.
type HealthChecker interface {
	Ping(ctx context.Context) error
}

// GenerateValidator validates generation payloads.
type GenerateValidator interface {
	GenerateRequest(body io.Reader) (*domain.GenerateRequest, error)
}

// Options carries the collaborators the server composes. All of them are
// required except Estimator, which degrades to no token log field.
type Options struct {
	Logger    *slog.Logger
	Resolver  *auth.Resolver
	Backend   domain.Backend
	Store     HealthChecker
	Validator GenerateValidator
	AuthProxy http.Handler
	Estimator *tokens.Estimator

	// Timeout bounds protected-route handling, backend call included.
	Timeout time.Duration
}

// Server owns the router. Route registration and gate placement are one
// design decision: everything registered before the /api/llm group is
// public; everything inside it sits behind the access gate.
type Server struct {
	Router *chi.Mux
	Port   int

	logger    *slog.Logger
	backend   domain.Backend
	store     HealthChecker
	validator GenerateValidator
	estimator *tokens.Estimator

	http *http.Server
}

// New builds the router with the middleware chain in its load-bearing order:
// request ID, then logging, then tracing and panic recovery, then route
// classification. Health and identity-provider routes stay outside the gated
// group; the gate and the per-route timeout apply only inside /api/llm.
func New(port int, opts Options) *Server {
	s := &Server{
		Port:      port,
		logger:    opts.Logger,
		backend:   opts.Backend,
		store:     opts.Store,
		validator: opts.Validator,
		estimator: opts.Estimator,
	}

	timeout := opts.Timeout
	if timeout == 0 {
		timeout = 120 * time.Second
	}

	r := chi.NewRouter()
	r.Use(RequestIDMiddleware)
	r.Use(LoggingMiddleware(opts.Logger))
	r.Use(func(next http.Handler) http.Handler {
		return otelhttp.NewHandler(next, "modelgate")
	})
	r.Use(RecovererMiddleware(opts.Logger))

	// Public routes.
	r.Get("/api/health/api", s.handle(s.handleHealthAPI))
	r.Get("/api/health/db", s.handle(s.handleHealthDB))
	r.Handle("/api/auth/*", opts.AuthProxy)

	// Protected routes. New endpoints under this group inherit the gate.
	r.Route("/api/llm", func(r chi.Router) {
		r.Use(AccessGate(opts.Resolver, opts.Logger))
		r.Use(TimeoutMiddleware(timeout))
		r.Post("/generate", s.handle(s.handleGenerate))
		r.Get("/list", s.handle(s.handleListModels))
	})

	s.Router = r
	s.http = &http.Server{
		Addr:    fmt.Sprintf(":%d", port),
		Handler: r,
	}
	return s
}

// Start blocks serving HTTP until the listener fails or Shutdown is called.
func (s *Server) Start() error {
	s.logger.Info("starting server", slog.Int("port", s.Port))
	return s.http.ListenAndServe()
}

// Shutdown drains in-flight requests and stops the listener.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}

func (s *Server) handleHealthAPI(w http.ResponseWriter, r *http.Request) error {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	return nil
}

func (s *Server) handleHealthDB(w http.ResponseWriter, r *http.Request) error {
	if err := s.store.Ping(r.Context()); err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	return nil
}

func (s *Server) handleGenerate(w http.ResponseWriter, r *http.Request) error {
	req, err := s.validator.GenerateRequest(r.Body)
	if err != nil {
		return err
	}

	if s.estimator != nil {
		AddLogField(r.Context(), "prompt_tokens", strconv.Itoa(s.estimator.Count(req.Prompt)))
	}
	AddLogField(r.Context(), "model", req.Model)

	generation, err := s.backend.Generate(r.Context(), req)
	if err != nil {
		return err
	}

	writeJSON(w, http.StatusOK, generation)
	return nil
}

func (s *Server) handleListModels(w http.ResponseWriter, r *http.Request) error {
	models, err := s.backend.ListModels(r.Context())
	if err != nil {
		return err
	}
	if models == nil {
		models = []domain.Model{}
	}
	writeJSON(w, http.StatusOK, models)
	return nil
}
