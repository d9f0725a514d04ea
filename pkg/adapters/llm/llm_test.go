package llm_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/statforge/pkg/adapters/llm"
	"github.com/aretw0/statforge/pkg/domain"
	"github.com/aretw0/statforge/pkg/generation"
	"github.com/aretw0/statforge/pkg/schema"
)

func structuredRequest() generation.Request {
	return generation.Request{
		Prompt:     domain.Prompt{System: "You write stat blocks.", User: "A flaming scimitar."},
		SchemaName: "any",
		Schema:     schema.JSONSchema(schema.Any),
	}
}

func TestOllama_Complete(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/chat", r.URL.Path)
		body, _ := io.ReadAll(r.Body)
		assert.NoError(t, json.Unmarshal(body, &got))
		_, _ = w.Write([]byte(`{"message": {"role": "assistant", "content": "{\"name\": \"x\"}"}, "done": true}`))
	}))
	defer srv.Close()

	backend, err := llm.NewOllama(llm.Settings{BaseURL: srv.URL + "/", Model: "mistral"})
	require.NoError(t, err)

	out, err := backend.Complete(context.Background(), structuredRequest())
	require.NoError(t, err)

	assert.Equal(t, `{"name": "x"}`, out)
	assert.Equal(t, "mistral", got["model"])
	assert.Equal(t, false, got["stream"])
	assert.NotNil(t, got["format"], "structured requests constrain the output format")
	assert.Len(t, got["messages"], 2)
}

func TestOllama_FreeTextOmitsFormat(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&got)
		_, _ = w.Write([]byte(`{"message": {"role": "assistant", "content": "Looks good."}}`))
	}))
	defer srv.Close()

	backend, err := llm.NewOllama(llm.Settings{BaseURL: srv.URL})
	require.NoError(t, err)

	out, err := backend.Complete(context.Background(), generation.Request{Prompt: domain.Prompt{User: "critique"}})
	require.NoError(t, err)
	assert.Equal(t, "Looks good.", out)
	assert.NotContains(t, got, "format")
	assert.Len(t, got["messages"], 1)
}

func TestOllama_StatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not found", http.StatusNotFound)
	}))
	defer srv.Close()

	backend, err := llm.NewOllama(llm.Settings{BaseURL: srv.URL})
	require.NoError(t, err)

	_, err = backend.Complete(context.Background(), structuredRequest())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "404")
}

func chatCompletion(content string) string {
	resp := map[string]any{
		"id":      "chatcmpl-1",
		"object":  "chat.completion",
		"created": 0,
		"model":   "gpt-4o-mini",
		"choices": []any{map[string]any{
			"index":         0,
			"finish_reason": "stop",
			"message":       map[string]any{"role": "assistant", "content": content},
		}},
	}
	out, _ := json.Marshal(resp)
	return string(out)
}

func TestOpenAI_CompleteStructured(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&got)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(chatCompletion(`{"name": "Imp", "description": "Small."}`)))
	}))
	defer srv.Close()

	backend, err := llm.NewOpenAI(llm.Settings{APIKey: "test", Model: "gpt-4o-mini", BaseURL: srv.URL})
	require.NoError(t, err)

	out, err := backend.Complete(context.Background(), structuredRequest())
	require.NoError(t, err)
	assert.Equal(t, `{"name": "Imp", "description": "Small."}`, out)

	format, ok := got["response_format"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "json_schema", format["type"])
	js := format["json_schema"].(map[string]any)
	assert.Equal(t, "any", js["name"])
	assert.Equal(t, true, js["strict"])
}

func TestDeepSeek_UsesJSONObjectMode(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&got)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(chatCompletion(`{}`)))
	}))
	defer srv.Close()

	backend, err := llm.New(context.Background(), llm.Settings{
		Provider: llm.ProviderDeepSeek, APIKey: "test", Model: "deepseek-chat", BaseURL: srv.URL,
	})
	require.NoError(t, err)

	_, err = backend.Complete(context.Background(), structuredRequest())
	require.NoError(t, err)

	format := got["response_format"].(map[string]any)
	assert.Equal(t, "json_object", format["type"])

	messages := got["messages"].([]any)
	system := messages[0].(map[string]any)
	assert.Contains(t, system["content"], "JSON Schema")
}

func TestGemini_CompleteStructured(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&got)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"candidates": [{"content": {"role": "model", "parts": [{"text": "{\"name\": \"Imp\"}"}]}}]}`))
	}))
	defer srv.Close()

	backend, err := llm.NewGemini(context.Background(), llm.Settings{APIKey: "test", BaseURL: srv.URL})
	require.NoError(t, err)

	out, err := backend.Complete(context.Background(), structuredRequest())
	require.NoError(t, err)
	assert.Equal(t, `{"name": "Imp"}`, out)

	cfg, ok := got["generationConfig"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "application/json", cfg["responseMimeType"])
}

func TestNew(t *testing.T) {
	ctx := context.Background()

	mock, err := llm.New(ctx, llm.Settings{Provider: llm.ProviderMock})
	require.NoError(t, err)
	assert.IsType(t, &generation.MockBackend{}, mock)

	_, err = llm.New(ctx, llm.Settings{})
	assert.Error(t, err)

	_, err = llm.New(ctx, llm.Settings{Provider: "claude-on-a-toaster"})
	assert.Error(t, err)

	_, err = llm.New(ctx, llm.Settings{Provider: llm.ProviderOpenAI, Model: "gpt-4o"})
	assert.Error(t, err, "missing api key")
}
