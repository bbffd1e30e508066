// Package server exposes the planning pipeline over HTTP.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/pario-ai/wanderplan/pkg/config"
	"github.com/pario-ai/wanderplan/pkg/models"
	"github.com/pario-ai/wanderplan/pkg/planner"
)

const maxBodyBytes = 1 << 20

// Server is the wanderplan HTTP API.
type Server struct {
	cfg      *config.Config
	pipeline *planner.Pipeline
	logger   *slog.Logger
	mux      *http.ServeMux
}

// New creates a Server wired to the pipeline.
func New(cfg *config.Config, p *planner.Pipeline, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		cfg:      cfg,
		pipeline: p,
		logger:   logger,
		mux:      http.NewServeMux(),
	}
	s.mux.HandleFunc("POST /v1/plans", s.handlePlan)
	s.mux.HandleFunc("POST /v1/plans/download", s.handleDownload)
	s.mux.HandleFunc("POST /v1/plans/calendar", s.handleCalendar)
	s.mux.HandleFunc("GET /v1/languages", s.handleLanguages)
	s.mux.HandleFunc("GET /v1/cache/stats", s.handleCacheStats)
	s.mux.HandleFunc("GET /healthz", s.handleHealth)
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

// ListenAndServe starts the server with graceful shutdown support.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Listen,
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("wanderplan listening", "addr", s.cfg.Listen)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutCtx)
	case err := <-errCh:
		return err
	}
}

// plan decodes the trip, runs the pipeline and writes any error response.
// It returns nil when a response has already been written.
func (s *Server) plan(w http.ResponseWriter, r *http.Request) *planner.Report {
	var in models.TripInput
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&in); err != nil {
		writeJSONError(w, http.StatusBadRequest, fmt.Sprintf("invalid JSON body: %v", err))
		return nil
	}

	fallback := models.MatchLanguage(r.Header.Get("Accept-Language"))
	req, err := in.Request(fallback)
	if err != nil {
		writeValidationError(w, err)
		return nil
	}

	rep, err := s.pipeline.Plan(r.Context(), req)
	if err != nil {
		writeValidationError(w, err)
		return nil
	}
	w.Header().Set("X-Request-Id", rep.RequestID)
	if rep.CacheHit {
		w.Header().Set("X-Wanderplan-Cache", "hit")
	} else {
		w.Header().Set("X-Wanderplan-Cache", "miss")
	}
	return rep
}

func (s *Server) handlePlan(w http.ResponseWriter, r *http.Request) {
	rep := s.plan(w, r)
	if rep == nil {
		return
	}
	code := http.StatusOK
	if rep.Document.Status == models.DocumentError {
		code = http.StatusBadGateway
	}
	writeJSON(w, code, rep)
}

func (s *Server) handleDownload(w http.ResponseWriter, r *http.Request) {
	rep := s.plan(w, r)
	if rep == nil {
		return
	}
	writeArtifact(w, rep, rep.Document.Download)
}

func (s *Server) handleCalendar(w http.ResponseWriter, r *http.Request) {
	rep := s.plan(w, r)
	if rep == nil {
		return
	}
	writeArtifact(w, rep, rep.Document.Calendar)
}

func writeArtifact(w http.ResponseWriter, rep *planner.Report, a *models.Artifact) {
	if a == nil {
		code := http.StatusUnprocessableEntity
		if rep.Document.Status == models.DocumentError {
			code = http.StatusBadGateway
		}
		writeJSONError(w, code, rep.Document.Message)
		return
	}
	w.Header().Set("Content-Type", a.ContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", a.Filename))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(a.Content)
}

type languageInfo struct {
	Code    models.Language `json:"code"`
	Name    string          `json:"name"`
	Default bool            `json:"default,omitempty"`
}

func (s *Server) handleLanguages(w http.ResponseWriter, r *http.Request) {
	out := make([]languageInfo, 0, len(models.Languages))
	for _, l := range models.Languages {
		out = append(out, languageInfo{Code: l, Name: l.Name(), Default: l.IsDefault()})
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleCacheStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.pipeline.Cache().Stats(r.Context())
	if err != nil {
		writeJSONError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"entries":  stats.Entries,
		"hits":     stats.Hits,
		"misses":   stats.Misses,
		"hit_rate": stats.HitRate(),
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeValidationError(w http.ResponseWriter, err error) {
	var verr *models.ValidationError
	if errors.As(err, &verr) {
		writeJSON(w, http.StatusBadRequest, map[string]any{
			"error": map[string]any{
				"message":  verr.Error(),
				"type":     "validation_error",
				"code":     http.StatusBadRequest,
				"problems": verr.Problems,
			},
		})
		return
	}
	writeJSONError(w, http.StatusBadRequest, err.Error())
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeJSONError(w http.ResponseWriter, code int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	fmt.Fprintf(w, `{"error":{"message":%q,"type":"wanderplan_error","code":%d}}`, message, code)
}
