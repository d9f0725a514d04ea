package llm

import (
	"context"
	"errors"
	"fmt"

	"google.golang.org/genai"

	"github.com/aretw0/statforge/pkg/generation"
)

// GeminiBackend implements generation.Backend with the Gemini API.
type GeminiBackend struct {
	client      *genai.Client
	model       string
	temperature float64
}

// NewGemini creates a Gemini backend.
func NewGemini(ctx context.Context, cfg Settings) (*GeminiBackend, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("gemini api key missing; provide llm.api_key or GEMINI_API_KEY")
	}
	model := cfg.Model
	if model == "" {
		model = "gemini-2.5-flash"
	}

	cc := &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	}
	if cfg.BaseURL != "" {
		cc.HTTPOptions.BaseURL = cfg.BaseURL
	}
	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, fmt.Errorf("failed to create GenAI client: %w", err)
	}

	return &GeminiBackend{
		client:      client,
		model:       model,
		temperature: cfg.Temperature,
	}, nil
}

// Complete implements generation.Backend.
func (g *GeminiBackend) Complete(ctx context.Context, req generation.Request) (string, error) {
	config := &genai.GenerateContentConfig{
		Temperature: genai.Ptr(float32(g.temperature)),
	}
	if req.Prompt.System != "" {
		config.SystemInstruction = genai.NewContentFromText(req.Prompt.System, genai.RoleUser)
	}
	if req.Structured() {
		config.ResponseMIMEType = "application/json"
		config.ResponseJsonSchema = req.Schema
	}

	resp, err := g.client.Models.GenerateContent(ctx, g.model, genai.Text(req.Prompt.User), config)
	if err != nil {
		return "", fmt.Errorf("gemini: %w", err)
	}
	return resp.Text(), nil
}
