// Package mcp exposes a Converter as Model Context Protocol tools and resources.
package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/mitchellh/mapstructure"

	"github.com/aretw0/statforge"
	"github.com/aretw0/statforge/internal/logging"
	"github.com/aretw0/statforge/internal/presentation/graph"
	"github.com/aretw0/statforge/internal/presentation/statblock"
	"github.com/aretw0/statforge/pkg/domain"
	"github.com/aretw0/statforge/pkg/parser"
	"github.com/aretw0/statforge/pkg/schema"
)

// Converter is the part of statforge.Converter exposed as tools.
type Converter interface {
	Convert(ctx context.Context, req statforge.Request) (*domain.WorkflowState, error)
	Resume(ctx context.Context, sessionID string) (*domain.WorkflowState, error)
	Inspect(ctx context.Context, sessionID string) (*domain.WorkflowState, error)
	Sessions(ctx context.Context) ([]string, error)
	CreateEffect(ctx context.Context, req statforge.EffectRequest) (statforge.Effect, error)
	Registry() *schema.Registry
}

// ConvertArgs are the arguments of convert_description.
type ConvertArgs struct {
	Description  string `mapstructure:"description"`
	System       string `mapstructure:"system"`
	EntityType   string `mapstructure:"entity_type"`
	SessionID    string `mapstructure:"session_id"`
	MaxRevisions *int   `mapstructure:"max_revisions"`
}

// SessionArgs name a stored session.
type SessionArgs struct {
	SessionID string `mapstructure:"session_id"`
}

// ParseArgs are the arguments of parse_records.
type ParseArgs struct {
	Text       string `mapstructure:"text"`
	EntityType string `mapstructure:"entity_type"`
}

// EffectArgs are the arguments of create_effect.
type EffectArgs struct {
	Scene  string `mapstructure:"scene"`
	System string `mapstructure:"system"`
}

// EffectResponse is the result of create_effect.
type EffectResponse struct {
	Occurred    bool           `json:"occurred" jsonschema_description:"False when the scene produces no magical effect"`
	Effect      map[string]any `json:"effect,omitempty" jsonschema_description:"Fields of the effect"`
	Markdown    string         `json:"markdown,omitempty" jsonschema_description:"Effect rendered as markdown"`
	Description string         `json:"description,omitempty" jsonschema_description:"Input for convert_description"`
}

// StatBlockResponse summarizes a session for an agent.
type StatBlockResponse struct {
	SessionID      string         `json:"session_id" jsonschema_description:"Session identifier, usable with resume_session"`
	Stage          string         `json:"stage" jsonschema_description:"Next stage to run; done when finished"`
	EntityType     string         `json:"entity_type,omitempty" jsonschema_description:"Classified entity type"`
	RevisionNumber int            `json:"revision_number" jsonschema_description:"Number of drafts generated so far"`
	StatBlock      map[string]any `json:"stat_block,omitempty" jsonschema_description:"Fields of the current draft"`
	Markdown       string         `json:"markdown,omitempty" jsonschema_description:"Current draft rendered as markdown"`
	Critique       string         `json:"critique,omitempty" jsonschema_description:"Latest critique of the draft"`
}

// ParseResponse is the result of parse_records.
type ParseResponse struct {
	Records  []map[string]any      `json:"records" jsonschema_description:"Records that passed validation"`
	Warnings []domain.ParseWarning `json:"warnings" jsonschema_description:"Documents dropped for missing required fields"`
}

// DefaultMaxRevisions applies when a call omits max_revisions.
const DefaultMaxRevisions = 1

// Server wraps a Converter as an MCP server.
type Server struct {
	conv      Converter
	parser    *parser.Parser
	logger    *slog.Logger
	mcpServer *server.MCPServer
}

// Option configures the Server.
type Option func(*Server)

// WithLogger sets the structured logger. Logs must never go to stdout under stdio transport.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// NewServer creates the MCP server and registers its tools and resources.
func NewServer(conv Converter, opts ...Option) *Server {
	s := &Server{
		conv:   conv,
		logger: logging.NewNop(),
		mcpServer: server.NewMCPServer("statforge-mcp", statforge.Version,
			server.WithToolCapabilities(false),
			server.WithResourceCapabilities(false, false),
		),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.parser = parser.New(parser.WithLogger(s.logger))
	s.registerTools()
	s.registerResources()
	return s
}

// MCPServer returns the underlying protocol server.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcpServer
}

// ServeStdio serves on stdin/stdout until EOF.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcpServer)
}

// ServeSSE serves over HTTP server-sent events until ctx is done.
func (s *Server) ServeSSE(ctx context.Context, port int) error {
	addr := fmt.Sprintf(":%d", port)
	sse := server.NewSSEServer(s.mcpServer, server.WithBaseURL(fmt.Sprintf("http://localhost:%d", port)))

	mux := http.NewServeMux()
	mux.Handle("/sse", sse.SSEHandler())
	mux.Handle("/message", sse.MessageHandler())
	httpServer := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 10 * time.Second}

	serverErrors := make(chan error, 1)
	go func() {
		s.logger.Info("MCP server listening (SSE)", "address", addr)
		serverErrors <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("could not stop server gracefully: %w", err)
		}
		return nil
	}
}

func entityTypeNames() []string {
	names := make([]string, 0, len(domain.EntityTypes()))
	for _, t := range domain.EntityTypes() {
		names = append(names, string(t))
	}
	return names
}

func (s *Server) registerTools() {
	s.mcpServer.AddTool(mcp.NewTool("convert_description",
		mcp.WithDescription("Convert a free-text description into a validated tabletop RPG stat block. Runs classification, example retrieval, drafting and the critique/revise loop."),
		mcp.WithString("description", mcp.Required(), mcp.Description("What to convert, e.g. 'A metal scimitar that is engulfed by flame'")),
		mcp.WithString("system", mcp.Description("Target game system (default D&D 5e)")),
		mcp.WithString("entity_type", mcp.Description("Skip classification and use this type"), mcp.Enum(entityTypeNames()...)),
		mcp.WithNumber("max_revisions", mcp.Description("Critique/revise rounds after the first draft (default 1)")),
		mcp.WithString("session_id", mcp.Description("Checkpoint key; reuse it to resume an interrupted conversion")),
		mcp.WithOutputSchema[StatBlockResponse](),
	), mcp.NewStructuredToolHandler(s.handleConvert))

	s.mcpServer.AddTool(mcp.NewTool("resume_session",
		mcp.WithDescription("Continue an interrupted conversion from its last checkpoint."),
		mcp.WithString("session_id", mcp.Required(), mcp.Description("Session to resume")),
		mcp.WithOutputSchema[StatBlockResponse](),
	), mcp.NewStructuredToolHandler(s.handleResume))

	s.mcpServer.AddTool(mcp.NewTool("inspect_session",
		mcp.WithDescription("Show the checkpoint of a session without running it."),
		mcp.WithString("session_id", mcp.Required(), mcp.Description("Session to inspect")),
		mcp.WithOutputSchema[StatBlockResponse](),
	), mcp.NewStructuredToolHandler(s.handleInspect))

	s.mcpServer.AddTool(mcp.NewTool("parse_records",
		mcp.WithDescription("Parse 'key: value' documents separated by --document-separator-- into typed records, dropping documents that miss required fields."),
		mcp.WithString("text", mcp.Required(), mcp.Description("Raw documents")),
		mcp.WithString("entity_type", mcp.Required(), mcp.Description("Schema to parse against"), mcp.Enum(entityTypeNames()...)),
		mcp.WithOutputSchema[ParseResponse](),
	), mcp.NewStructuredToolHandler(s.handleParse))

	s.mcpServer.AddTool(mcp.NewTool("create_effect",
		mcp.WithDescription("Decide which magical effect a set of circumstances produces. Pass the returned description to convert_description for a stat block."),
		mcp.WithString("scene", mcp.Required(), mcp.Description("What the characters are doing, e.g. 'Five adventurers chant around a fire holding elemental gems'")),
		mcp.WithString("system", mcp.Description("Target game system (default D&D 5e)")),
		mcp.WithOutputSchema[EffectResponse](),
	), mcp.NewStructuredToolHandler(s.handleEffect))

	s.mcpServer.AddTool(mcp.NewTool("list_sessions",
		mcp.WithDescription("List stored session IDs."),
	), func(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		ids, err := s.conv.Sessions(ctx)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("list failed: %v", err)), nil
		}
		data, _ := json.Marshal(ids)
		return mcp.NewToolResultText(string(data)), nil
	})
}

// decode binds loosely typed tool arguments onto out. JSON numbers arrive as float64.
func decode(args map[string]any, out any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           out,
		WeaklyTypedInput: true,
	})
	if err != nil {
		return err
	}
	return dec.Decode(args)
}

func (s *Server) handleConvert(ctx context.Context, _ mcp.CallToolRequest, args map[string]any) (StatBlockResponse, error) {
	var in ConvertArgs
	if err := decode(args, &in); err != nil {
		return StatBlockResponse{}, fmt.Errorf("invalid arguments: %w", err)
	}

	req := statforge.Request{
		SessionID:    in.SessionID,
		Description:  in.Description,
		System:       in.System,
		EntityType:   domain.EntityType(in.EntityType),
		MaxRevisions: DefaultMaxRevisions,
	}
	if in.MaxRevisions != nil {
		req.MaxRevisions = *in.MaxRevisions
	}

	state, err := s.conv.Convert(ctx, req)
	if err != nil {
		return StatBlockResponse{}, s.toolError("convert", err)
	}
	return s.response(state), nil
}

func (s *Server) handleResume(ctx context.Context, _ mcp.CallToolRequest, args map[string]any) (StatBlockResponse, error) {
	var in SessionArgs
	if err := decode(args, &in); err != nil {
		return StatBlockResponse{}, fmt.Errorf("invalid arguments: %w", err)
	}
	state, err := s.conv.Resume(ctx, in.SessionID)
	if err != nil {
		return StatBlockResponse{}, s.toolError("resume", err)
	}
	return s.response(state), nil
}

func (s *Server) handleInspect(ctx context.Context, _ mcp.CallToolRequest, args map[string]any) (StatBlockResponse, error) {
	var in SessionArgs
	if err := decode(args, &in); err != nil {
		return StatBlockResponse{}, fmt.Errorf("invalid arguments: %w", err)
	}
	state, err := s.conv.Inspect(ctx, in.SessionID)
	if err != nil {
		return StatBlockResponse{}, s.toolError("inspect", err)
	}
	return s.response(state), nil
}

func (s *Server) handleEffect(ctx context.Context, _ mcp.CallToolRequest, args map[string]any) (EffectResponse, error) {
	var in EffectArgs
	if err := decode(args, &in); err != nil {
		return EffectResponse{}, fmt.Errorf("invalid arguments: %w", err)
	}
	effect, err := s.conv.CreateEffect(ctx, statforge.EffectRequest{Scene: in.Scene, System: in.System})
	if err != nil {
		return EffectResponse{}, s.toolError("effect", err)
	}

	out := EffectResponse{Occurred: effect.Occurred()}
	if effect.Occurred() {
		out.Effect = effect.Record.Fields
		out.Markdown = statblock.Markdown(*effect.Record, schema.Effect)
		out.Description = effect.Description()
	}
	return out, nil
}

func (s *Server) handleParse(_ context.Context, _ mcp.CallToolRequest, args map[string]any) (ParseResponse, error) {
	var in ParseArgs
	if err := decode(args, &in); err != nil {
		return ParseResponse{}, fmt.Errorf("invalid arguments: %w", err)
	}
	t, err := domain.ParseEntityType(in.EntityType)
	if err != nil {
		return ParseResponse{}, err
	}
	sch, err := s.conv.Registry().SchemaFor(t)
	if err != nil {
		return ParseResponse{}, err
	}

	records, warnings := s.parser.Parse(in.Text, sch, t)
	out := ParseResponse{
		Records:  make([]map[string]any, 0, len(records)),
		Warnings: warnings,
	}
	for _, r := range records {
		out.Records = append(out.Records, r.Fields)
	}
	if out.Warnings == nil {
		out.Warnings = []domain.ParseWarning{}
	}
	return out, nil
}

func (s *Server) toolError(op string, err error) error {
	var genErr *domain.GenerationError
	if errors.As(err, &genErr) {
		s.logger.Error("MCP tool failed", "op", op, "stage", genErr.Stage, "error", err)
	} else {
		s.logger.Warn("MCP tool failed", "op", op, "error", err)
	}
	return fmt.Errorf("%s failed: %w", op, err)
}

func (s *Server) response(state *domain.WorkflowState) StatBlockResponse {
	resp := StatBlockResponse{
		SessionID:      state.SessionID,
		Stage:          string(state.Stage),
		EntityType:     string(state.EntityType),
		RevisionNumber: state.RevisionNumber,
	}
	if state.Critique != nil {
		resp.Critique = state.Critique.Text
	}
	if state.CurrentDraft != nil {
		resp.StatBlock = state.CurrentDraft.Fields
		if sch, err := s.conv.Registry().SchemaFor(state.CurrentDraft.Type); err == nil {
			resp.Markdown = statblock.Markdown(*state.CurrentDraft, sch)
		}
	}
	return resp
}

func (s *Server) registerResources() {
	s.mcpServer.AddResource(mcp.NewResource("statforge://schemas", "Stat block schemas",
		mcp.WithResourceDescription("Field definitions of every entity type"),
		mcp.WithMIMEType("application/json"),
	), func(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		out := make(map[domain.EntityType]schema.RecordSchema)
		for _, t := range s.conv.Registry().Types() {
			sch, _ := s.conv.Registry().SchemaFor(t)
			out[t] = sch
		}
		data, err := json.Marshal(out)
		if err != nil {
			return nil, err
		}
		return []mcp.ResourceContents{
			mcp.TextResourceContents{URI: "statforge://schemas", MIMEType: "application/json", Text: string(data)},
		}, nil
	})

	s.mcpServer.AddResource(mcp.NewResource("statforge://graph", "Workflow graph",
		mcp.WithResourceDescription("Mermaid flowchart of the conversion stages"),
		mcp.WithMIMEType("text/plain"),
	), func(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		return []mcp.ResourceContents{
			mcp.TextResourceContents{URI: "statforge://graph", MIMEType: "text/plain", Text: graph.GenerateMermaid(nil)},
		}, nil
	})
}
