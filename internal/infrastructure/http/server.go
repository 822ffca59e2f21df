// Package http provides the HTTP server infrastructure.
// Clean Architecture: Framework/driver layer - outermost circle.
package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/0xcro3dile/contextrag-go/internal/adapters/kbindex"
	"github.com/0xcro3dile/contextrag-go/internal/domain/entities"
	"github.com/0xcro3dile/contextrag-go/internal/domain/ports"
	"github.com/0xcro3dile/contextrag-go/internal/infrastructure/logging"
)

const maxRequestBytes = 32 << 20

// Runner is the pipeline surface the server exposes.
type Runner interface {
	Run(ctx context.Context, req entities.RunRequest) entities.RunResult
	RenderOnly(ctx context.Context, req entities.RunRequest) entities.RenderedContext
	DefaultRequest() entities.RunRequest
	LastRunInfo() entities.RunInfo
	Providers() entities.ProviderSummary
}

// KnowledgeBase is the index management surface.
type KnowledgeBase interface {
	Ensure(ctx context.Context, dir string, chunkChars, overlapChars int) error
	Invalidate(dir string)
	Stats(dir string) kbindex.Stats
}

// KBSettings locates the knowledge base served by /api/kb.
type KBSettings struct {
	Dir          string
	ChunkChars   int
	OverlapChars int
}

// Deps are the components behind the endpoints. Nil KB or Catalog
// disables the matching endpoints.
type Deps struct {
	Pipeline Runner
	KB       KnowledgeBase
	KBConfig KBSettings
	Catalog  ports.ModelCatalog
}

// Server is the HTTP API for the pipeline.
type Server struct {
	deps   Deps
	addr   string
	logger *zap.Logger
}

// NewServer creates a new HTTP server.
func NewServer(deps Deps, addr string, logger *zap.Logger) *Server {
	if addr == "" {
		addr = ":8080"
	}
	return &Server{deps: deps, addr: addr, logger: logging.OrNop(logger).Named("http")}
}

// Handler returns the routed handler with middleware applied.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/run", s.handleRun)
	mux.HandleFunc("POST /api/context", s.handleContext)
	mux.HandleFunc("GET /api/models", s.handleModels)
	mux.HandleFunc("GET /api/health", s.handleHealth)
	mux.HandleFunc("GET /api/kb/stats", s.handleKBStats)
	mux.HandleFunc("POST /api/kb/reindex", s.handleKBReindex)
	return corsMiddleware(s.loggingMiddleware(mux))
}

// Start runs the HTTP server until ctx is cancelled.
func (s *Server) Start(ctx context.Context) error {
	server := &http.Server{
		Addr:         s.addr,
		Handler:      s.Handler(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 300 * time.Second,
	}

	s.logger.Info("contextrag server starting", zap.String("addr", s.addr))

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		server.Shutdown(shutdownCtx)
	}()

	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// decodeRequest reads a RunRequest over the pipeline defaults so omitted
// fields keep the configured switches.
func (s *Server) decodeRequest(w http.ResponseWriter, r *http.Request) (entities.RunRequest, bool) {
	req := s.deps.Pipeline.DefaultRequest()
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBytes)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("invalid request: %w", err))
		return req, false
	}
	if strings.TrimSpace(req.UserPrompt) == "" {
		writeError(w, http.StatusBadRequest, errors.New("user_prompt is required"))
		return req, false
	}
	return req, true
}

func (s *Server) handleRun(w http.ResponseWriter, r *http.Request) {
	req, ok := s.decodeRequest(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, s.deps.Pipeline.Run(r.Context(), req))
}

func (s *Server) handleContext(w http.ResponseWriter, r *http.Request) {
	req, ok := s.decodeRequest(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, s.deps.Pipeline.RenderOnly(r.Context(), req))
}

func (s *Server) handleModels(w http.ResponseWriter, r *http.Request) {
	if s.deps.Catalog == nil {
		writeError(w, http.StatusNotImplemented, errors.New("model catalog not configured"))
		return
	}
	if inv, ok := s.deps.Catalog.(interface{ Invalidate() }); ok && r.URL.Query().Get("refresh") != "" {
		inv.Invalidate()
	}
	models, err := s.deps.Catalog.Models(r.Context())
	if err != nil {
		writeError(w, http.StatusBadGateway, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"models": models})
}

// handleHealth reports server and model endpoint health.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ollama := false
	if s.deps.Catalog != nil {
		ollama = s.deps.Catalog.Healthy(r.Context())
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"ollama":    ollama,
		"last_run":  s.deps.Pipeline.LastRunInfo(),
		"providers": s.deps.Pipeline.Providers(),
	})
}

func (s *Server) handleKBStats(w http.ResponseWriter, r *http.Request) {
	if s.deps.KB == nil {
		writeError(w, http.StatusNotImplemented, errors.New("knowledge base not configured"))
		return
	}
	writeJSON(w, http.StatusOK, s.deps.KB.Stats(s.deps.KBConfig.Dir))
}

func (s *Server) handleKBReindex(w http.ResponseWriter, r *http.Request) {
	if s.deps.KB == nil {
		writeError(w, http.StatusNotImplemented, errors.New("knowledge base not configured"))
		return
	}
	cfg := s.deps.KBConfig
	s.deps.KB.Invalidate(cfg.Dir)
	if err := s.deps.KB.Ensure(r.Context(), cfg.Dir, cfg.ChunkChars, cfg.OverlapChars); err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, kbindex.ErrNotReady) {
			status = http.StatusConflict
		}
		writeError(w, status, err)
		return
	}
	writeJSON(w, http.StatusOK, s.deps.KB.Stats(cfg.Dir))
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		s.logger.Info("request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", rec.status),
			zap.Duration("duration", time.Since(start)))
	})
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == http.MethodOptions {
			return
		}
		next.ServeHTTP(w, r)
	})
}
