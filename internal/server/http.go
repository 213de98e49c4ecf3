package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"skill_persistence/internal/core"
	"skill_persistence/pkg"
	"skill_persistence/src/model"

	"github.com/bytedance/sonic"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const maxEnvelopeBytes = 1 << 20

// Invoker runs one skill cycle
type Invoker interface {
	Invoke(ctx context.Context, envelope *pkg.RequestEnvelope) (*pkg.ResponseEnvelope, error)
}

// Option customizes the HTTP transport
type Option func(*Server)

// WithMetricsHandler mounts h at /metrics
func WithMetricsHandler(h http.Handler) Option {
	return func(s *Server) { s.metrics = h }
}

// Server exposes the skill over HTTP: POST /skill takes a request envelope and
// answers with a response envelope
type Server struct {
	skill   Invoker
	addr    string
	timeout time.Duration
	logger  zerolog.Logger
	metrics http.Handler
	router  chi.Router
}

// New creates the HTTP transport
func New(skill Invoker, cfg model.ServerConfig, logger zerolog.Logger, opts ...Option) *Server {
	s := &Server{
		skill:   skill,
		addr:    cfg.Addr,
		timeout: cfg.RequestTimeout,
		logger:  logger.With().Str("component", "http_transport").Logger(),
	}
	if s.timeout <= 0 {
		s.timeout = 10 * time.Second
	}
	for _, opt := range opts {
		opt(s)
	}
	s.setupRouter()
	return s
}

// setupRouter initializes HTTP router and middleware
func (s *Server) setupRouter() {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(s.timeout))

	r.Post("/skill", s.handleSkill)
	r.Get("/healthz", s.handleHealth)
	if s.metrics != nil {
		r.Method(http.MethodGet, "/metrics", s.metrics)
	}
	s.router = r
}

// Handler returns the root handler
func (s *Server) Handler() http.Handler {
	return s.router
}

// Serve listens until ctx is cancelled, then shuts down gracefully
func (s *Server) Serve(ctx context.Context) error {
	srv := &http.Server{
		Addr:         s.addr,
		Handler:      s.router,
		ReadTimeout:  s.timeout,
		WriteTimeout: s.timeout + time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info().Str("addr", s.addr).Msg("Starting HTTP transport")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		s.logger.Info().Msg("Shutting down HTTP transport")
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("failed to shut down HTTP transport: %w", err)
		}
		return nil
	}
}

func (s *Server) handleSkill(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxEnvelopeBytes))
	if err != nil {
		s.writeError(w, http.StatusRequestEntityTooLarge, err)
		return
	}

	var envelope pkg.RequestEnvelope
	if err := sonic.Unmarshal(body, &envelope); err != nil {
		s.writeError(w, http.StatusBadRequest, fmt.Errorf("invalid request envelope: %w", err))
		return
	}
	if envelope.Request.Type == "" {
		s.writeError(w, http.StatusBadRequest, fmt.Errorf("request type is required"))
		return
	}
	if envelope.Request.RequestID == "" {
		envelope.Request.RequestID = uuid.NewString()
	}

	response, err := s.skill.Invoke(r.Context(), &envelope)
	if response == nil {
		status := http.StatusInternalServerError
		var retrieval *core.RetrievalError
		if errors.As(err, &retrieval) {
			status = http.StatusServiceUnavailable
		}
		s.writeError(w, status, err)
		return
	}
	if err != nil {
		s.logger.Warn().Err(err).Str("request_id", envelope.Request.RequestID).Msg("Cycle finished with errors")
	}

	s.writeJSON(w, http.StatusOK, response)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) writeError(w http.ResponseWriter, status int, err error) {
	s.logger.Error().Err(err).Int("status", status).Msg("Request failed")
	s.writeJSON(w, status, map[string]string{"error": err.Error()})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	data, err := sonic.Marshal(v)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(data)
}
