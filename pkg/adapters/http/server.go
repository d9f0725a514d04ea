package http

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/moogar0880/problems"

	"github.com/aretw0/statforge"
	"github.com/aretw0/statforge/internal/logging"
	"github.com/aretw0/statforge/internal/presentation/graph"
	"github.com/aretw0/statforge/internal/presentation/statblock"
	"github.com/aretw0/statforge/pkg/domain"
	"github.com/aretw0/statforge/pkg/parser"
	"github.com/aretw0/statforge/pkg/schema"
)

// Converter is the part of statforge.Converter served over HTTP.
type Converter interface {
	Convert(ctx context.Context, req statforge.Request) (*domain.WorkflowState, error)
	Resume(ctx context.Context, sessionID string) (*domain.WorkflowState, error)
	Inspect(ctx context.Context, sessionID string) (*domain.WorkflowState, error)
	Sessions(ctx context.Context) ([]string, error)
	Delete(ctx context.Context, sessionID string) error
	CreateEffect(ctx context.Context, req statforge.EffectRequest) (statforge.Effect, error)
	Registry() *schema.Registry
}

// maxBodyBytes bounds request bodies, including raw parse input.
const maxBodyBytes = 1 << 20

// Server holds the handlers.
type Server struct {
	conv    Converter
	streams *StreamManager
	parser  *parser.Parser
	metrics http.Handler
	logger  *slog.Logger
}

// Option configures the Server.
type Option func(*Server)

// WithStreams enables GET /sessions/{id}/events. The manager's Hooks must be
// registered on the converter for events to flow.
func WithStreams(sm *StreamManager) Option {
	return func(s *Server) {
		s.streams = sm
	}
}

// WithMetricsHandler mounts h at /metrics.
func WithMetricsHandler(h http.Handler) Option {
	return func(s *Server) {
		s.metrics = h
	}
}

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// NewHandler creates the API router.
func NewHandler(conv Converter, opts ...Option) http.Handler {
	s := &Server{
		conv:   conv,
		logger: logging.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.parser = parser.New(parser.WithLogger(s.logger))

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(enableCORS)

	r.Get("/health", s.GetHealth)
	r.Get("/info", s.GetInfo)
	r.Post("/convert", s.Convert)
	r.Post("/effects", s.CreateEffect)
	r.Post("/parse", s.Parse)
	r.Get("/graph", s.GetGraph)

	r.Route("/schemas", func(r chi.Router) {
		r.Get("/", s.ListSchemas)
		r.Get("/{type}", s.GetSchema)
	})

	r.Route("/sessions", func(r chi.Router) {
		r.Get("/", s.ListSessions)
		r.Get("/{id}", s.GetSession)
		r.Delete("/{id}", s.DeleteSession)
		r.Post("/{id}/resume", s.ResumeSession)
		r.Get("/{id}/statblock", s.GetStatBlock)
		if s.streams != nil {
			r.Get("/{id}/events", s.SubscribeEvents)
		}
	})

	if s.metrics != nil {
		r.Handle("/metrics", s.metrics)
	}
	return r
}

func enableCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// ConvertRequest is the body of POST /convert.
type ConvertRequest struct {
	SessionID    string `json:"session_id,omitempty"`
	Description  string `json:"description"`
	System       string `json:"system,omitempty"`
	EntityType   string `json:"entity_type,omitempty"`
	MaxRevisions *int   `json:"max_revisions,omitempty"`
}

// DefaultMaxRevisions applies when a request omits max_revisions.
const DefaultMaxRevisions = 1

// ErrorResponse is the RFC 7807 problem document returned by every failed request.
// Stage names the stage that failed for generation errors.
type ErrorResponse struct {
	*problems.DefaultProblem
	Stage string `json:"stage,omitempty"`
}

// ProblemMediaType is the content type of error responses.
const ProblemMediaType = "application/problem+json"

// Problem types.
const (
	ProblemInvalidRequest = "invalid_request"
	ProblemNotFound       = "not_found"
	ProblemClassification = "classification"
	ProblemConflict       = "conflict"
	ProblemGeneration     = "generation"
	ProblemTimeout        = "timeout"
	ProblemInternal       = "internal_error"
)

// EffectRequest is the body of POST /effects.
type EffectRequest struct {
	Scene  string `json:"scene"`
	System string `json:"system,omitempty"`
}

// EffectResponse is the body returned by POST /effects.
type EffectResponse struct {
	Scene    string         `json:"scene"`
	Occurred bool           `json:"occurred"`
	Effect   *domain.Record `json:"effect,omitempty"`
	Markdown string         `json:"markdown,omitempty"`
	// Description can be posted to /convert as is.
	Description string `json:"description,omitempty"`
}

// ParseResponse is the body of POST /parse.
type ParseResponse struct {
	Records  []domain.Record       `json:"records"`
	Warnings []domain.ParseWarning `json:"warnings"`
}

// Convert handles POST /convert.
func (s *Server) Convert(w http.ResponseWriter, r *http.Request) {
	var body ConvertRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&body); err != nil {
		s.logger.Warn("Convert: invalid request body", "error", err)
		writeProblem(w, r, http.StatusBadRequest, ProblemInvalidRequest, "invalid request body", "")
		return
	}

	req := statforge.Request{
		SessionID:    body.SessionID,
		Description:  body.Description,
		System:       body.System,
		EntityType:   domain.EntityType(body.EntityType),
		MaxRevisions: DefaultMaxRevisions,
	}
	if body.MaxRevisions != nil {
		req.MaxRevisions = *body.MaxRevisions
	}

	state, err := s.conv.Convert(r.Context(), req)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, state)
}

// CreateEffect handles POST /effects.
func (s *Server) CreateEffect(w http.ResponseWriter, r *http.Request) {
	var body EffectRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&body); err != nil {
		s.logger.Warn("CreateEffect: invalid request body", "error", err)
		writeProblem(w, r, http.StatusBadRequest, ProblemInvalidRequest, "invalid request body", "")
		return
	}

	effect, err := s.conv.CreateEffect(r.Context(), statforge.EffectRequest{Scene: body.Scene, System: body.System})
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	resp := EffectResponse{Scene: effect.Scene, Occurred: effect.Occurred()}
	if effect.Occurred() {
		resp.Effect = effect.Record
		resp.Markdown = statblock.Markdown(*effect.Record, schema.Effect)
		resp.Description = effect.Description()
	}
	writeJSON(w, http.StatusOK, resp)
}

// ResumeSession handles POST /sessions/{id}/resume.
func (s *Server) ResumeSession(w http.ResponseWriter, r *http.Request) {
	state, err := s.conv.Resume(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, state)
}

// ListSessions handles GET /sessions.
func (s *Server) ListSessions(w http.ResponseWriter, r *http.Request) {
	ids, err := s.conv.Sessions(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if ids == nil {
		ids = []string{}
	}
	writeJSON(w, http.StatusOK, ids)
}

// GetSession handles GET /sessions/{id}.
func (s *Server) GetSession(w http.ResponseWriter, r *http.Request) {
	state, err := s.conv.Inspect(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, state)
}

// GetStatBlock handles GET /sessions/{id}/statblock?format=markdown|html|json|text.
func (s *Server) GetStatBlock(w http.ResponseWriter, r *http.Request) {
	format := statblock.FormatMarkdown
	if q := r.URL.Query().Get("format"); q != "" {
		f, err := statblock.ParseFormat(q)
		if err != nil {
			writeProblem(w, r, http.StatusBadRequest, ProblemInvalidRequest, err.Error(), "")
			return
		}
		format = f
	}

	state, err := s.conv.Inspect(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if state.CurrentDraft == nil {
		writeProblem(w, r, http.StatusConflict, ProblemConflict, "session has no draft yet", string(state.Stage))
		return
	}
	sch, err := s.conv.Registry().SchemaFor(state.CurrentDraft.Type)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	switch format {
	case statblock.FormatHTML:
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
	case statblock.FormatJSON:
		w.Header().Set("Content-Type", "application/json")
	case statblock.FormatMarkdown:
		w.Header().Set("Content-Type", "text/markdown; charset=utf-8")
	default:
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	}
	if err := statblock.Write(w, format, *state.CurrentDraft, sch); err != nil {
		s.logger.Error("GetStatBlock: write failed", "error", err)
	}
}

// DeleteSession handles DELETE /sessions/{id}.
func (s *Server) DeleteSession(w http.ResponseWriter, r *http.Request) {
	if err := s.conv.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ListSchemas handles GET /schemas.
func (s *Server) ListSchemas(w http.ResponseWriter, r *http.Request) {
	out := make(map[domain.EntityType]schema.RecordSchema)
	for _, t := range s.conv.Registry().Types() {
		sch, _ := s.conv.Registry().SchemaFor(t)
		out[t] = sch
	}
	writeJSON(w, http.StatusOK, out)
}

// GetSchema handles GET /schemas/{type}.
func (s *Server) GetSchema(w http.ResponseWriter, r *http.Request) {
	sch, err := s.schemaParam(chi.URLParam(r, "type"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sch)
}

// Parse handles POST /parse?type=<entity type>; the body is raw delimited text.
func (s *Server) Parse(w http.ResponseWriter, r *http.Request) {
	t, err := domain.ParseEntityType(r.URL.Query().Get("type"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	sch, err := s.conv.Registry().SchemaFor(t)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	raw, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		writeProblem(w, r, http.StatusRequestEntityTooLarge, ProblemInvalidRequest, err.Error(), "")
		return
	}

	records, warnings := s.parser.Parse(string(raw), sch, t)
	resp := ParseResponse{Records: records, Warnings: warnings}
	if resp.Records == nil {
		resp.Records = []domain.Record{}
	}
	if resp.Warnings == nil {
		resp.Warnings = []domain.ParseWarning{}
	}
	writeJSON(w, http.StatusOK, resp)
}

// GetGraph handles GET /graph[?session=<id>] and returns a Mermaid flowchart.
func (s *Server) GetGraph(w http.ResponseWriter, r *http.Request) {
	var overlay *graph.Overlay
	if id := r.URL.Query().Get("session"); id != "" {
		state, err := s.conv.Inspect(r.Context(), id)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		overlay = graph.OverlayFor(state)
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = io.WriteString(w, graph.GenerateMermaid(overlay))
}

// GetHealth handles GET /health.
func (s *Server) GetHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// GetInfo handles GET /info.
func (s *Server) GetInfo(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"app":     "statforge-http",
		"version": statforge.Version,
	})
}

func (s *Server) schemaParam(raw string) (schema.RecordSchema, error) {
	t, err := domain.ParseEntityType(raw)
	if err != nil {
		return schema.RecordSchema{}, err
	}
	return s.conv.Registry().SchemaFor(t)
}

// writeError maps domain errors onto status codes and problem types.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		unknown  *domain.UnknownTypeError
		classErr *domain.ClassificationError
		genErr   *domain.GenerationError
	)

	status, kind, stage := http.StatusInternalServerError, ProblemInternal, ""
	switch {
	case errors.Is(err, domain.ErrSessionNotFound):
		status, kind = http.StatusNotFound, ProblemNotFound
	case errors.As(err, &classErr):
		status, kind = http.StatusUnprocessableEntity, ProblemClassification
	case errors.Is(err, statforge.ErrEmptyDescription), errors.Is(err, statforge.ErrInvalidMaxRevisions),
		errors.Is(err, statforge.ErrEmptyScene), errors.As(err, &unknown):
		status, kind = http.StatusBadRequest, ProblemInvalidRequest
	case errors.Is(err, statforge.ErrSessionConflict):
		status, kind = http.StatusConflict, ProblemConflict
	case errors.As(err, &genErr):
		status, kind, stage = http.StatusBadGateway, ProblemGeneration, string(genErr.Stage)
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		status, kind = http.StatusGatewayTimeout, ProblemTimeout
	}

	if status >= http.StatusInternalServerError {
		s.logger.Error("Request failed", "path", r.URL.Path, "status", status, "error", err)
	}
	writeProblem(w, r, status, kind, err.Error(), stage)
}

// writeProblem renders an RFC 7807 document, extended with the failed stage.
func writeProblem(w http.ResponseWriter, r *http.Request, status int, kind, detail, stage string) {
	resp := ErrorResponse{
		DefaultProblem: problems.NewStatusProblem(status).
			WithInstance(r.URL.Path).
			WithType(kind).
			WithDetail(detail),
		Stage: stage,
	}

	w.Header().Set("Content-Type", ProblemMediaType)
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(resp)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
