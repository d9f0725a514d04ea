package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/aretw0/statforge/pkg/generation"
)

const defaultOllamaURL = "http://localhost:11434"

// OllamaBackend implements generation.Backend against a local Ollama server.
type OllamaBackend struct {
	endpoint    string
	model       string
	temperature float64
	client      *http.Client
}

// NewOllama creates an Ollama backend.
func NewOllama(cfg Settings) (*OllamaBackend, error) {
	endpoint := cfg.BaseURL
	if endpoint == "" {
		endpoint = defaultOllamaURL
	}
	model := cfg.Model
	if model == "" {
		model = "llama3.1"
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 2 * time.Minute
	}

	return &OllamaBackend{
		endpoint:    strings.TrimRight(endpoint, "/"),
		model:       model,
		temperature: cfg.Temperature,
		client:      &http.Client{Timeout: timeout},
	}, nil
}

// Complete implements generation.Backend.
func (o *OllamaBackend) Complete(ctx context.Context, req generation.Request) (string, error) {
	chat := ollamaChatRequest{
		Model:   o.model,
		Stream:  false,
		Options: map[string]any{"temperature": o.temperature},
	}
	if req.Prompt.System != "" {
		chat.Messages = append(chat.Messages, ollamaMessage{Role: "system", Content: req.Prompt.System})
	}
	chat.Messages = append(chat.Messages, ollamaMessage{Role: "user", Content: req.Prompt.User})
	if req.Structured() {
		chat.Format = req.Schema
	}

	body, err := json.Marshal(chat)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, o.endpoint+"/api/chat", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := o.client.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("ollama request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		bodyBytes, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("ollama returned status %d: %s", resp.StatusCode, string(bodyBytes))
	}

	var result ollamaChatResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("failed to decode response: %w", err)
	}
	return result.Message.Content, nil
}

type ollamaMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type ollamaChatRequest struct {
	Model    string          `json:"model"`
	Messages []ollamaMessage `json:"messages"`
	Stream   bool            `json:"stream"`
	Format   any             `json:"format,omitempty"`
	Options  map[string]any  `json:"options,omitempty"`
}

type ollamaChatResponse struct {
	Message ollamaMessage `json:"message"`
	Done    bool          `json:"done"`
}
