// Package server provides the HTTP front end of the address lookup service.
package server

import (
	"context"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/jonathan/address-lookup/internal/export"
	"github.com/jonathan/address-lookup/internal/pipeline"
)

// baseWriteTimeout covers every response; /process adds time per company on top.
const baseWriteTimeout = 120 * time.Second

//go:embed templates/*.html
var templateFS embed.FS

// Processor runs a lookup submission for a session.
type Processor interface {
	Process(ctx context.Context, rawText, sessionID string) (*pipeline.Result, error)
}

// Exporter renders a session's results for download.
type Exporter interface {
	Export(ctx context.Context, sessionID string) (*export.File, error)
	ExportXLSX(ctx context.Context, sessionID string) (*export.File, error)
}

// Sessions identifies the browser session of a request.
type Sessions interface {
	SessionID(w http.ResponseWriter, r *http.Request) (string, error)
	Lookup(r *http.Request) (string, error)
}

// Config holds server configuration
type Config struct {
	Port int
	// LookupTimeout bounds one company lookup. A submission's write deadline is
	// extended by this much per company; zero removes the deadline.
	LookupTimeout time.Duration
}

// Deps are the collaborators the handlers call into.
type Deps struct {
	Pipeline Processor
	Exporter Exporter
	Sessions Sessions
	Logger   *zap.Logger
}

// Server represents the HTTP server
type Server struct {
	httpServer *http.Server
	pipeline   Processor
	exporter   Exporter
	sessions   Sessions
	logger     *zap.Logger
	validator  *validator.Validate
	templates  *template.Template

	lookupTimeout time.Duration
}

// New creates a new server instance
func New(cfg Config, deps Deps) (*Server, error) {
	if deps.Pipeline == nil || deps.Exporter == nil || deps.Sessions == nil {
		return nil, errors.New("server requires a pipeline, an exporter and a session manager")
	}
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	tmpl, err := template.ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("failed to parse templates: %w", err)
	}

	s := &Server{
		pipeline:  deps.Pipeline,
		exporter:  deps.Exporter,
		sessions:  deps.Sessions,
		logger:    logger.Named("server"),
		validator: validator.New(),
		templates: tmpl,

		lookupTimeout: cfg.LookupTimeout,
	}

	// Setup router
	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", s.handleIndex)
	mux.HandleFunc("POST /process", s.handleProcess)
	mux.HandleFunc("GET /download", s.handleDownload)
	mux.HandleFunc("GET /download.xlsx", s.handleDownloadXLSX)
	mux.HandleFunc("GET /health", s.handleHealth)

	// Create HTTP server
	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      s.withLogging(s.withCORS(mux)),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: baseWriteTimeout, // extended per submission in handleProcess
		IdleTimeout:  60 * time.Second,
	}

	return s, nil
}

// Handler returns the root handler with all middleware applied.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Start begins listening for requests and blocks until SIGINT/SIGTERM or ctx is done.
func (s *Server) Start(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("server starting", zap.String("addr", s.httpServer.Addr))
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	s.logger.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	s.logger.Info("server stopped")
	return nil
}

// withCORS adds CORS headers
func (s *Server) withCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, HX-Request, HX-Target, HX-Current-URL")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// statusRecorder captures the status code written by a handler.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// Unwrap lets http.ResponseController reach the underlying connection.
func (r *statusRecorder) Unwrap() http.ResponseWriter {
	return r.ResponseWriter
}

// withLogging adds request logging
func (s *Server) withLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		s.logger.Info("request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.String("remote", r.RemoteAddr),
			zap.Int("status", rec.status),
			zap.Duration("duration", time.Since(start)))
	})
}

// handleHealth returns server health status
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.jsonResponse(w, http.StatusOK, map[string]string{"status": "ok"})
}

// jsonResponse writes a JSON response
func (s *Server) jsonResponse(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.logger.Error("failed to encode JSON response", zap.Error(err))
	}
}

// errorResponse writes a plain-text error, which htmx swaps into the page as-is
func (s *Server) errorResponse(w http.ResponseWriter, err error) {
	status := HTTPStatus(err)
	msg := http.StatusText(status)
	var validationErr *ErrValidation
	if errors.As(err, &validationErr) {
		msg = validationErr.Error()
	}
	http.Error(w, msg, status)
}
