package mcp

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/statforge"
	"github.com/aretw0/statforge/pkg/domain"
	"github.com/aretw0/statforge/pkg/generation"
)

func newTestServer() (*Server, *statforge.Converter) {
	conv := statforge.New(generation.NewGateway(&generation.MockBackend{}))
	return NewServer(conv), conv
}

func TestConvertTool(t *testing.T) {
	s, conv := newTestServer()
	ctx := context.Background()

	resp, err := s.handleConvert(ctx, mcp.CallToolRequest{}, map[string]any{
		"description":   statforge.DefaultDescription,
		"session_id":    "scimitar",
		"max_revisions": float64(2),
	})
	require.NoError(t, err)

	assert.Equal(t, "scimitar", resp.SessionID)
	assert.Equal(t, string(domain.StageDone), resp.Stage)
	assert.Equal(t, string(domain.MagicItem), resp.EntityType)
	assert.Equal(t, 3, resp.RevisionNumber)
	assert.Equal(t, "Mock name", resp.StatBlock["name"])
	assert.Contains(t, resp.Markdown, "## Mock name")

	inspected, err := s.handleInspect(ctx, mcp.CallToolRequest{}, map[string]any{"session_id": "scimitar"})
	require.NoError(t, err)
	assert.Equal(t, resp.RevisionNumber, inspected.RevisionNumber)

	ids, err := conv.Sessions(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"scimitar"}, ids)
}

func TestConvertTool_DefaultsAndPresetType(t *testing.T) {
	s, _ := newTestServer()

	resp, err := s.handleConvert(context.Background(), mcp.CallToolRequest{}, map[string]any{
		"description": "A bolt of frost",
		"entity_type": "Spell",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, resp.SessionID)
	assert.Equal(t, string(domain.Spell), resp.EntityType)
	assert.Equal(t, DefaultMaxRevisions+1, resp.RevisionNumber)
}

func TestConvertTool_Errors(t *testing.T) {
	s, _ := newTestServer()
	ctx := context.Background()

	_, err := s.handleConvert(ctx, mcp.CallToolRequest{}, map[string]any{"description": "  "})
	assert.ErrorIs(t, err, statforge.ErrEmptyDescription)

	_, err = s.handleConvert(ctx, mcp.CallToolRequest{}, map[string]any{"description": "x", "max_revisions": "many"})
	assert.ErrorContains(t, err, "invalid arguments")

	_, err = s.handleResume(ctx, mcp.CallToolRequest{}, map[string]any{"session_id": "ghost"})
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)
}

func TestParseTool(t *testing.T) {
	s, _ := newTestServer()

	text := "name: Frost Bolt\ncomponents: Verbal, Somatic\nmagic_school: Evocation\nspell_level: 1\n" +
		"effect_description: 1d8 cold\nflavour_text: A shard of ice.\n" +
		"--document-separator--\nname: Broken\n"

	resp, err := s.handleParse(context.Background(), mcp.CallToolRequest{}, map[string]any{
		"text":        text,
		"entity_type": "spell",
	})
	require.NoError(t, err)
	require.Len(t, resp.Records, 1)
	assert.Equal(t, "Frost Bolt", resp.Records[0]["name"])
	require.Len(t, resp.Warnings, 1)
	assert.Contains(t, resp.Warnings[0].Missing, "components")

	_, err = s.handleParse(context.Background(), mcp.CallToolRequest{}, map[string]any{
		"text":        text,
		"entity_type": "vehicle",
	})
	var unknown *domain.UnknownTypeError
	assert.ErrorAs(t, err, &unknown)
}

func TestEffectTool(t *testing.T) {
	s, _ := newTestServer()
	ctx := context.Background()

	resp, err := s.handleEffect(ctx, mcp.CallToolRequest{}, map[string]any{"scene": statforge.DefaultScene})
	require.NoError(t, err)
	assert.True(t, resp.Occurred)
	assert.Equal(t, "Mock effect description", resp.Effect["effect_description"])
	assert.Contains(t, resp.Markdown, "## Mock name")

	converted, err := s.handleConvert(ctx, mcp.CallToolRequest{}, map[string]any{"description": resp.Description})
	require.NoError(t, err)
	assert.Equal(t, string(domain.StageDone), converted.Stage)

	_, err = s.handleEffect(ctx, mcp.CallToolRequest{}, map[string]any{"scene": ""})
	assert.ErrorIs(t, err, statforge.ErrEmptyScene)
}

func TestToolsAreListed(t *testing.T) {
	s, _ := newTestServer()

	msg := s.MCPServer().HandleMessage(context.Background(),
		json.RawMessage(`{"jsonrpc":"2.0","id":1,"method":"tools/list"}`))
	data, err := json.Marshal(msg)
	require.NoError(t, err)

	for _, name := range []string{"convert_description", "resume_session", "inspect_session", "parse_records", "create_effect", "list_sessions"} {
		assert.Contains(t, string(data), name)
	}
}

func TestResourcesAreListed(t *testing.T) {
	s, _ := newTestServer()

	msg := s.MCPServer().HandleMessage(context.Background(),
		json.RawMessage(`{"jsonrpc":"2.0","id":1,"method":"resources/list"}`))
	data, err := json.Marshal(msg)
	require.NoError(t, err)
	assert.Contains(t, string(data), "statforge://schemas")
	assert.Contains(t, string(data), "statforge://graph")
}
