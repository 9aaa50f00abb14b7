package api

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/ohana-garden/almoner/internal/models"
	"github.com/ohana-garden/almoner/internal/resolution"
	"github.com/ohana-garden/almoner/internal/resolver"
	"github.com/ohana-garden/almoner/internal/schema"
	"github.com/ohana-garden/almoner/internal/store"
)

// Pinger checks graph engine reachability for the health endpoint.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Server is the HTTP surface collaborator engines use. It never lets them
// bypass the repository to reach the graph engine directly.
type Server struct {
	store     store.Store
	engine    *resolution.Engine
	resolver  *resolver.Client // nil when the external tier is disabled
	pinger    Pinger           // nil skips the graph reachability check
	logger    *slog.Logger
	authToken string // empty = no auth required
}

// NewServer creates a Server with the given dependencies.
func NewServer(st store.Store, eng *resolution.Engine, res *resolver.Client, pinger Pinger, logger *slog.Logger, authToken string) *Server {
	return &Server{
		store:     st,
		engine:    eng,
		resolver:  res,
		pinger:    pinger,
		logger:    logger,
		authToken: authToken,
	}
}

// Handler returns an http.Handler with all routes registered.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	// Health check, no auth required.
	mux.HandleFunc("GET /healthz", s.handleHealthz)

	mux.HandleFunc("POST /v1/resolve", s.auth(s.handleResolve))
	mux.HandleFunc("POST /v1/extract", s.auth(s.handleExtract))
	mux.HandleFunc("GET /v1/nodes/{label}/{id}", s.auth(s.handleGetNode))
	mux.HandleFunc("PATCH /v1/nodes/{label}/{id}", s.auth(s.handlePatchNode))
	mux.HandleFunc("GET /v1/nodes/{label}/{id}/edges", s.auth(s.handleListEdges))
	mux.HandleFunc("POST /v1/edges", s.auth(s.handleCreateEdge))

	return mux
}

// --- middleware ---

// auth wraps a handler with Bearer token authentication when authToken is set.
func (s *Server) auth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.authToken == "" {
			next(w, r)
			return
		}
		header := r.Header.Get("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || subtle.ConstantTimeCompare([]byte(token), []byte(s.authToken)) != 1 {
			s.writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		next(w, r)
	}
}

// --- handlers ---

type healthzResponse struct {
	Status            string `json:"status"`
	ResolverAvailable *bool  `json:"resolver_available,omitempty"`
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	resp := healthzResponse{Status: "ok"}

	if s.pinger != nil {
		if err := s.pinger.Ping(r.Context()); err != nil {
			s.logger.Error("health check: graph unreachable", "error", err)
			resp.Status = "unhealthy"
			s.writeJSON(w, http.StatusServiceUnavailable, resp)
			return
		}
	}

	if s.resolver != nil {
		available := s.resolver.Available(r.Context())
		resp.ResolverAvailable = &available
	}

	s.writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleResolve(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20) // 1 MB limit
	var cand models.Candidate
	if err := json.NewDecoder(r.Body).Decode(&cand); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if !cand.Label.IsValid() {
		s.writeError(w, http.StatusBadRequest, "invalid label")
		return
	}
	if cand.StableID == "" && cand.Name == "" && len(cand.Properties) == 0 {
		s.writeError(w, http.StatusBadRequest, "candidate is empty")
		return
	}

	res, err := s.engine.Resolve(r.Context(), cand)
	if err != nil {
		s.logger.Error("failed to resolve candidate", "label", cand.Label, "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to resolve candidate")
		return
	}

	s.writeJSON(w, http.StatusOK, res)
}

// extractRequest is the body accepted by POST /v1/extract.
type extractRequest struct {
	Text   string `json:"text"`
	Source string `json:"source"`
}

// extractedEntity pairs one extracted mention with its resolution.
type extractedEntity struct {
	Name       string             `json:"name"`
	Label      models.Label       `json:"label"`
	Resolution *models.Resolution `json:"resolution"`
}

// extractResponse is returned by POST /v1/extract.
type extractResponse struct {
	Entities []extractedEntity `json:"entities"`
}

func (s *Server) handleExtract(w http.ResponseWriter, r *http.Request) {
	if s.resolver == nil {
		s.writeError(w, http.StatusServiceUnavailable, "extraction requires the external resolver")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, 1<<20) // 1 MB limit
	var req extractRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Text == "" {
		s.writeError(w, http.StatusBadRequest, "text is required")
		return
	}
	if req.Source == "" {
		req.Source = "manual"
	}

	mentions, err := s.resolver.Extract(r.Context(), req.Text, req.Source)
	if err != nil {
		s.logger.Error("extraction failed", "error", err)
		s.writeError(w, http.StatusBadGateway, "extraction failed")
		return
	}

	entities := make([]extractedEntity, 0, len(mentions))
	for _, m := range mentions {
		label, ok := resolver.LabelFor(m.EntityType)
		if !ok {
			s.logger.Warn("skipping mention with unknown entity type", "type", m.EntityType, "name", m.Name)
			continue
		}

		res, err := s.engine.Resolve(r.Context(), models.Candidate{
			Label:      label,
			Name:       m.Name,
			Properties: m.Properties,
		})
		if err != nil {
			s.logger.Error("failed to resolve extracted mention", "name", m.Name, "error", err)
			s.writeError(w, http.StatusInternalServerError, "failed to resolve extracted mention")
			return
		}
		entities = append(entities, extractedEntity{Name: m.Name, Label: label, Resolution: res})
	}

	s.writeJSON(w, http.StatusOK, extractResponse{Entities: entities})
}

func (s *Server) handleGetNode(w http.ResponseWriter, r *http.Request) {
	label, id, ok := s.nodePath(w, r)
	if !ok {
		return
	}

	props, err := s.store.GetNode(r.Context(), label, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			s.writeError(w, http.StatusNotFound, "node not found")
			return
		}
		s.logger.Error("failed to get node", "label", label, "id", id, "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to get node")
		return
	}

	s.writeJSON(w, http.StatusOK, props)
}

func (s *Server) handlePatchNode(w http.ResponseWriter, r *http.Request) {
	label, id, ok := s.nodePath(w, r)
	if !ok {
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, 1<<20) // 1 MB limit
	var partial map[string]any
	if err := json.NewDecoder(r.Body).Decode(&partial); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := s.store.UpdateNode(r.Context(), label, id, partial); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			s.writeError(w, http.StatusNotFound, "node not found")
			return
		}
		s.logger.Error("failed to update node", "label", label, "id", id, "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to update node")
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]bool{"updated": true})
}

// createEdgeRequest is the body accepted by POST /v1/edges.
type createEdgeRequest struct {
	Type       string         `json:"type"`
	FromLabel  models.Label   `json:"from_label"`
	FromID     string         `json:"from_id"`
	ToLabel    models.Label   `json:"to_label"`
	ToID       string         `json:"to_id"`
	Properties map[string]any `json:"properties"`
}

func (s *Server) handleCreateEdge(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20) // 1 MB limit
	var req createEdgeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.Type == "" || req.FromID == "" || req.ToID == "" {
		s.writeError(w, http.StatusBadRequest, "type, from_id and to_id are required")
		return
	}
	if !req.FromLabel.IsValid() || !req.ToLabel.IsValid() {
		s.writeError(w, http.StatusBadRequest, "invalid label")
		return
	}

	id, err := s.store.CreateEdge(r.Context(), req.Type, req.FromLabel, req.FromID, req.ToLabel, req.ToID, req.Properties)
	if err != nil {
		switch {
		case errors.Is(err, schema.ErrSchemaViolation):
			s.writeError(w, http.StatusUnprocessableEntity, err.Error())
		case errors.Is(err, store.ErrEndpointNotFound):
			s.writeError(w, http.StatusNotFound, err.Error())
		default:
			s.logger.Error("failed to create edge", "type", req.Type, "error", err)
			s.writeError(w, http.StatusInternalServerError, "failed to create edge")
		}
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]string{"id": id})
}

func (s *Server) handleListEdges(w http.ResponseWriter, r *http.Request) {
	label, id, ok := s.nodePath(w, r)
	if !ok {
		return
	}

	direction := r.URL.Query().Get("direction")
	var (
		hops []models.EdgeHop
		err  error
	)
	switch direction {
	case "", "out":
		hops, err = s.store.FindEdgesFrom(r.Context(), label, id)
	case "in":
		hops, err = s.store.FindEdgesTo(r.Context(), label, id)
	default:
		s.writeError(w, http.StatusBadRequest, "direction must be 'out' or 'in'")
		return
	}
	if err != nil {
		s.logger.Error("failed to list edges", "label", label, "id", id, "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to list edges")
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]any{"edges": hops})
}

// --- helpers ---

// nodePath extracts and validates the {label}/{id} path values.
func (s *Server) nodePath(w http.ResponseWriter, r *http.Request) (models.Label, string, bool) {
	label := models.Label(r.PathValue("label"))
	id := r.PathValue("id")
	if !label.IsValid() {
		s.writeError(w, http.StatusBadRequest, "invalid label")
		return "", "", false
	}
	if id == "" {
		s.writeError(w, http.StatusBadRequest, "id is required")
		return "", "", false
	}
	return label, id, true
}

// writeJSON encodes v as JSON and writes it to w with the given status code.
func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if encErr := json.NewEncoder(w).Encode(v); encErr != nil {
		s.logger.Error("failed to encode response", "error", encErr)
	}
}

// writeError writes a JSON error response.
func (s *Server) writeError(w http.ResponseWriter, status int, msg string) {
	s.writeJSON(w, status, map[string]string{"error": msg})
}

// Shutdown gracefully shuts down an http.Server with the given timeout.
// This is a convenience helper used by the serve command.
func Shutdown(srv *http.Server, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	return srv.Shutdown(ctx)
}
