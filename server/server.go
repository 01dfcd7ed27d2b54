// Package server exposes the document processor over HTTP.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/poiesic/examscribe/core"
	"github.com/poiesic/examscribe/metrics"
	"github.com/poiesic/examscribe/render"
	"github.com/poiesic/examscribe/tenancy"
)

// Version is reported by the health and root endpoints.
var Version = "1.0.0"

// DefaultMaxUpload bounds the size of an uploaded document.
const DefaultMaxUpload = 32 << 20

// Processor runs an uploaded document through the pipeline.
type Processor interface {
	Process(ctx context.Context, raw []byte, clientKey string) (*core.Result, error)
}

// Server serves the upload, download, health and metrics endpoints.
type Server struct {
	processor Processor
	outputDir string
	metrics   *metrics.Metrics
	maxUpload int64
	logger    *slog.Logger
}

// Option configures a Server.
type Option func(*Server)

// WithMetrics serves m at /metrics and counts requests per handler.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Server) {
		s.metrics = m
	}
}

// WithMaxUpload sets the upload size limit in bytes.
func WithMaxUpload(n int64) Option {
	return func(s *Server) {
		if n > 0 {
			s.maxUpload = n
		}
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// New creates a server for processor. Rendered files are looked up in
// outputDir.
func New(processor Processor, outputDir string, opts ...Option) (*Server, error) {
	if processor == nil {
		return nil, errors.New("processor required")
	}
	s := &Server{
		processor: processor,
		outputDir: outputDir,
		maxUpload: DefaultMaxUpload,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With("component", "http")
	return s, nil
}

// Handler returns the routed handler with CORS and request logging.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	s.handle(mux, "POST /upload-document", "upload", http.HandlerFunc(s.handleUpload))
	s.handle(mux, "GET /download/{document_id}", "download", http.HandlerFunc(s.handleDownload))
	s.handle(mux, "GET /health", "health", http.HandlerFunc(s.handleHealth))
	s.handle(mux, "GET /{$}", "root", http.HandlerFunc(s.handleRoot))
	if s.metrics != nil {
		mux.Handle("GET /metrics", s.metrics.Handler())
	}
	return corsMiddleware(s.loggingMiddleware(mux))
}

func (s *Server) handle(mux *http.ServeMux, pattern, name string, h http.Handler) {
	if s.metrics != nil {
		h = s.metrics.Instrument(name, h)
	}
	mux.Handle(pattern, h)
}

// ListenAndServe serves on addr until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	server := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 15 * time.Second,
		// Processing a paper makes many provider calls.
		WriteTimeout: 10 * time.Minute,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("server listening", "addr", addr)
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.maxUpload)

	file, header, err := r.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "File too large")
			return
		}
		writeError(w, http.StatusBadRequest, "Multipart field \"file\" is required")
		return
	}
	defer file.Close()

	if !strings.EqualFold(filepath.Ext(header.Filename), ".pdf") {
		writeError(w, http.StatusBadRequest, "Only PDF files are allowed")
		return
	}

	raw, err := io.ReadAll(file)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Could not read upload")
		return
	}
	if len(raw) == 0 {
		writeError(w, http.StatusBadRequest, "Empty file uploaded")
		return
	}

	clientKey := clientHost(r)
	result, err := s.processor.Process(r.Context(), raw, clientKey)
	if err != nil {
		status := statusFor(err)
		s.logger.Warn("document processing failed", "client", clientKey, "status", status, "err", err)
		writeJSON(w, status, errorBody{Detail: "Document processing failed: " + err.Error(), Result: result})
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleDownload(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("document_id")
	path, err := render.Find(s.outputDir, id)
	if err != nil {
		if errors.Is(err, render.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Document not found")
			return
		}
		s.logger.Error("lookup of rendered document failed", "document_id", id, "err", err)
		writeError(w, http.StatusInternalServerError, "Lookup failed")
		return
	}
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filepath.Base(path)))
	http.ServeFile(w, r, path)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "healthy",
		"message": "API is running",
		"version": Version,
	})
}

func (s *Server) handleRoot(w http.ResponseWriter, _ *http.Request) {
	endpoints := map[string]string{
		"upload":   "/upload-document",
		"download": "/download/{document_id}",
		"health":   "/health",
	}
	if s.metrics != nil {
		endpoints["metrics"] = "/metrics"
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"message":   "Past Paper Answer Generator API",
		"version":   Version,
		"endpoints": endpoints,
	})
}

// statusFor maps a processing error to an HTTP status.
func statusFor(err error) int {
	switch {
	case errors.Is(err, core.ErrNoQuestionsFound):
		return http.StatusUnprocessableEntity
	case errors.Is(err, core.ErrExtraction), errors.Is(err, tenancy.ErrEmptyKey):
		return http.StatusBadRequest
	case errors.Is(err, core.ErrExternalService):
		return http.StatusBadGateway
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// clientHost is the client key for a request: the remote host without port.
func clientHost(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

type errorBody struct {
	Detail string       `json:"detail"`
	Result *core.Result `json:"result,omitempty"`
}

func writeError(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, errorBody{Detail: detail})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		s.logger.Info("request", "method", r.Method, "path", r.URL.Path, "status", rec.status, "duration", time.Since(start))
	})
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("Access-Control-Allow-Origin", "*")
		h.Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		h.Set("Access-Control-Allow-Headers", "*")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}
