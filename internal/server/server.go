// Package server exposes the analysis pipeline over HTTP as a server-sent event stream.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/ppiankov/clarifai/internal/model"
	"github.com/ppiankov/clarifai/internal/pipeline"
	"github.com/ppiankov/clarifai/internal/state"
	"github.com/ppiankov/clarifai/internal/stream"
)

var (
	// ErrInvalidBody is returned for a body that is not a JSON object with a string content field
	ErrInvalidBody = errors.New("request body must be a JSON object with a string \"content\" field")

	// ErrEmptyContent is returned when content is missing, empty or whitespace only.
	// Blank text is rejected too: it can only produce the "nothing to verify" report.
	ErrEmptyContent = errors.New("content must not be empty")
)

// RunHeader carries the run id of a streamed analysis
const RunHeader = "X-Clarifai-Run"

// Server serves the clarify endpoint
type Server struct {
	pipeline *pipeline.Pipeline
	cfg      model.ServerConfig
	runCfg   state.Configuration
	log      *zap.Logger
}

// New creates a server. runCfg is the configuration applied to every run.
func New(p *pipeline.Pipeline, cfg model.ServerConfig, runCfg state.Configuration, log *zap.Logger) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	return &Server{pipeline: p, cfg: cfg, runCfg: runCfg, log: log.Named("server")}
}

// Handler returns the HTTP routes
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/clarify", s.handleClarify)
	mux.HandleFunc("POST /api/analyze", s.handleAnalyze)
	mux.HandleFunc("GET /api/graph", s.handleGraph)
	mux.HandleFunc("GET /healthz", s.handleHealth)
	return cors(s.cfg.AllowedOrigin, mux)
}

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info("listening", zap.String("addr", s.cfg.Addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	timeout := s.cfg.ShutdownTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

type clarifyRequest struct {
	Content json.RawMessage `json:"content"`
}

// decodeContent validates the request body and returns the content to analyze
func decodeContent(w http.ResponseWriter, r *http.Request, maxBytes int64) (string, error) {
	body := r.Body
	if maxBytes > 0 {
		body = http.MaxBytesReader(w, r.Body, maxBytes)
	}

	var req clarifyRequest
	if err := json.NewDecoder(body).Decode(&req); err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidBody, err)
	}
	if len(req.Content) == 0 || string(req.Content) == "null" {
		return "", ErrEmptyContent
	}

	var content string
	if err := json.Unmarshal(req.Content, &content); err != nil {
		return "", ErrInvalidBody
	}
	if strings.TrimSpace(content) == "" {
		return "", ErrEmptyContent
	}
	return content, nil
}

func (s *Server) handleClarify(w http.ResponseWriter, r *http.Request) {
	content, err := decodeContent(w, r, s.cfg.MaxBodyBytes)
	if err != nil {
		s.log.Info("rejected request", zap.Error(err))
		writeError(w, http.StatusBadRequest, err)
		return
	}

	ctx, cancel := s.runContext(r.Context())
	defer cancel()

	run := s.pipeline.NewRun(content, s.runCfg)
	log := s.log.With(zap.String("run_id", run.ID))

	stream.SetHeaders(w)
	w.Header().Set(RunHeader, run.ID)
	w.WriteHeader(http.StatusOK)

	start := time.Now()
	if err := stream.Forward(ctx, run, stream.NewEncoder(w)); err != nil {
		log.Warn("stream ended with error", zap.Error(err), zap.Int64("duration_ms", time.Since(start).Milliseconds()))
		return
	}
	log.Info("stream complete", zap.Int64("duration_ms", time.Since(start).Milliseconds()))
}

// handleAnalyze runs the analysis to completion and answers with the JSON report
func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	content, err := decodeContent(w, r, s.cfg.MaxBodyBytes)
	if err != nil {
		s.log.Info("rejected request", zap.Error(err))
		writeError(w, http.StatusBadRequest, err)
		return
	}

	ctx, cancel := s.runContext(r.Context())
	defer cancel()

	run := s.pipeline.NewRun(content, s.runCfg)
	log := s.log.With(zap.String("run_id", run.ID))
	w.Header().Set(RunHeader, run.ID)

	start := time.Now()
	final, err := run.Invoke(ctx)
	if err != nil {
		log.Warn("analysis failed", zap.Error(err), zap.Int64("duration_ms", time.Since(start).Milliseconds()))
		writeError(w, http.StatusBadGateway, err)
		return
	}
	log.Info("analysis complete", zap.Int64("duration_ms", time.Since(start).Milliseconds()))
	writeJSON(w, http.StatusOK, pipeline.BuildReport(run.ID, "request", final))
}

func (s *Server) runContext(parent context.Context) (context.Context, context.CancelFunc) {
	if s.cfg.RunTimeout > 0 {
		return context.WithTimeout(parent, s.cfg.RunTimeout)
	}
	return context.WithCancel(parent)
}

func (s *Server) handleGraph(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte(s.pipeline.Graph().Mermaid()))
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func cors(origin string, next http.Handler) http.Handler {
	if origin == "" {
		origin = "*"
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", origin)
		w.Header().Set("Access-Control-Allow-Methods", "POST, GET, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Accept, Content-Type")
		w.Header().Set("Access-Control-Expose-Headers", RunHeader)
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}
