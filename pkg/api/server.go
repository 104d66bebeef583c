// Package api exposes the selection engine over HTTP: selection requests,
// corpus introspection, and an explicit reload endpoint for the surrounding
// tooling to trigger after corpus changes.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/pkg/errors"

	"github.com/opus67/skillctx/pkg/engine"
	"github.com/opus67/skillctx/pkg/logger"
	"github.com/opus67/skillctx/pkg/mcp"
	"github.com/opus67/skillctx/pkg/registry"
	"github.com/opus67/skillctx/pkg/skills"
	"github.com/opus67/skillctx/pkg/version"
)

// ServerConfig holds the HTTP server configuration.
type ServerConfig struct {
	Host string
	Port int
}

// Validate validates the server configuration.
func (c *ServerConfig) Validate() error {
	if c.Host == "" {
		return errors.New("host cannot be empty")
	}
	if c.Port < 1 || c.Port > 65535 {
		return errors.Errorf("port must be between 1 and 65535, got %d", c.Port)
	}
	return nil
}

// Server serves the selection API.
type Server struct {
	router *mux.Router
	reg    *registry.Registry
	eng    *engine.Engine
	prober *mcp.Prober
	config *ServerConfig
	server *http.Server
}

// NewServer creates the API server. The prober may be nil, in which case
// requests must carry their own available_services.
func NewServer(config *ServerConfig, reg *registry.Registry, eng *engine.Engine, prober *mcp.Prober) (*Server, error) {
	if err := config.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid server configuration")
	}
	s := &Server{
		router: mux.NewRouter(),
		reg:    reg,
		eng:    eng,
		prober: prober,
		config: config,
	}
	s.setupRoutes()
	return s, nil
}

func (s *Server) setupRoutes() {
	api := s.router.PathPrefix("/api").Subrouter()
	api.HandleFunc("/select", s.handleSelect).Methods("POST")
	api.HandleFunc("/skills", s.handleListSkills).Methods("GET")
	api.HandleFunc("/skills/{id}", s.handleGetSkill).Methods("GET")
	api.HandleFunc("/reload", s.handleReload).Methods("POST")

	s.router.HandleFunc("/healthz", s.handleHealthz).Methods("GET")

	s.router.Use(s.loggingMiddleware)
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler { return s.router }

// selectRequest is the POST /api/select body. It mirrors RequestContext;
// unknown fields are ignored for forward compatibility.
type selectRequest struct {
	Keywords           []string `json:"keywords"`
	OpenFileExtensions []string `json:"open_file_extensions"`
	ActiveDirectories  []string `json:"active_directories"`
	TokenBudget        int      `json:"token_budget"`
	AvailableServices  []string `json:"available_services"`
}

type selectResponse struct {
	Result  *skills.SelectionResult `json:"result"`
	Context string                  `json:"context"`
}

func (s *Server) handleSelect(w http.ResponseWriter, r *http.Request) {
	var req selectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeErrorResponse(w, r, http.StatusBadRequest, "invalid request body", err)
		return
	}
	if req.TokenBudget <= 0 {
		s.writeErrorResponse(w, r, http.StatusBadRequest, "token_budget must be a positive integer", nil)
		return
	}

	available := req.AvailableServices
	if available == nil && s.prober != nil {
		available = s.prober.Available(r.Context())
	}

	out, err := s.eng.Select(r.Context(), &skills.RequestContext{
		Keywords:           req.Keywords,
		OpenFileExtensions: req.OpenFileExtensions,
		ActiveDirectories:  req.ActiveDirectories,
		TokenBudget:        req.TokenBudget,
		AvailableServices:  available,
	})
	if err != nil {
		s.writeErrorResponse(w, r, http.StatusInternalServerError, "selection failed", err)
		return
	}

	s.writeJSONResponse(w, r, selectResponse{Result: out.Result, Context: out.Context})
}

// skillSummary is the wire form of a record without its content blob.
type skillSummary struct {
	ID        string           `json:"id"`
	Tier      int              `json:"tier"`
	TokenCost int              `json:"token_cost"`
	Triggers  skills.Triggers  `json:"triggers"`
	Related   []skills.Relation `json:"related,omitempty"`
	Requires  []string         `json:"requires,omitempty"`
}

func summarize(rec *skills.Record) skillSummary {
	return skillSummary{
		ID:        rec.ID,
		Tier:      rec.Tier,
		TokenCost: rec.TokenCost,
		Triggers:  rec.Triggers,
		Related:   rec.Related,
		Requires:  rec.Requires,
	}
}

func (s *Server) handleListSkills(w http.ResponseWriter, r *http.Request) {
	snap := s.reg.Snapshot()
	summaries := make([]skillSummary, 0, snap.Len())
	for _, id := range snap.IDs() {
		if rec, ok := snap.Get(id); ok {
			summaries = append(summaries, summarize(rec))
		}
	}
	s.writeJSONResponse(w, r, map[string]any{
		"snapshot_version": snap.Version(),
		"skills":           summaries,
	})
}

func (s *Server) handleGetSkill(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	snap := s.reg.Snapshot()
	rec, ok := snap.Get(id)
	if !ok {
		s.writeErrorResponse(w, r, http.StatusNotFound, fmt.Sprintf("skill %q not found", id), nil)
		return
	}
	s.writeJSONResponse(w, r, map[string]any{
		"skill":   summarize(rec),
		"content": rec.Content,
	})
}

func (s *Server) handleReload(w http.ResponseWriter, r *http.Request) {
	report, err := s.reg.Load(r.Context())
	if err != nil {
		s.writeErrorResponse(w, r, http.StatusInternalServerError, "reload failed", err)
		return
	}
	skipped := make([]string, 0, len(report.Skipped))
	for path := range report.Skipped {
		skipped = append(skipped, path)
	}
	s.writeJSONResponse(w, r, map[string]any{
		"loaded":           report.Loaded,
		"skipped":          skipped,
		"snapshot_version": s.reg.Snapshot().Version(),
	})
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	s.writeJSONResponse(w, r, map[string]any{
		"status":  "ok",
		"version": version.Get(),
		"skills":  s.reg.Snapshot().Len(),
	})
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(rw, r)

		logger.G(r.Context()).WithFields(map[string]any{
			"method":   r.Method,
			"path":     r.URL.Path,
			"status":   rw.statusCode,
			"duration": time.Since(start),
		}).Info("HTTP request")
	})
}

type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

func (s *Server) writeJSONResponse(w http.ResponseWriter, r *http.Request, data any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(data); err != nil {
		logger.G(r.Context()).WithError(err).Error("failed to encode JSON response")
	}
}

func (s *Server) writeErrorResponse(w http.ResponseWriter, r *http.Request, statusCode int, message string, err error) {
	if err != nil {
		logger.G(r.Context()).WithError(err).Error(message)
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"error":  message,
		"status": statusCode,
	})
}

// Start runs the server until ctx is cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	address := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
	s.server = &http.Server{
		Addr:    address,
		Handler: s.router,
	}

	logger.G(ctx).WithField("address", address).Info("starting selection API server")

	errCh := make(chan error, 1)
	go func() {
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	return s.server.Shutdown(shutdownCtx)
}
