package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/aretw0/statforge/pkg/generation"
)

// OpenAIBackend implements generation.Backend with the chat completions API.
type OpenAIBackend struct {
	client         openai.Client
	model          string
	temperature    float64
	jsonObjectOnly bool
}

// NewOpenAI creates a backend for OpenAI or any endpoint speaking its API.
func NewOpenAI(cfg Settings) (*OpenAIBackend, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("openai api key missing; provide llm.api_key or OPENAI_API_KEY")
	}
	if cfg.Model == "" {
		return nil, errors.New("llm model is required")
	}
	opts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	if cfg.Timeout > 0 {
		opts = append(opts, option.WithRequestTimeout(cfg.Timeout))
	}
	return &OpenAIBackend{
		client:      openai.NewClient(opts...),
		model:       cfg.Model,
		temperature: cfg.Temperature,
	}, nil
}

// Complete implements generation.Backend.
func (o *OpenAIBackend) Complete(ctx context.Context, req generation.Request) (string, error) {
	system := req.Prompt.System
	params := openai.ChatCompletionNewParams{
		Model:       openai.ChatModel(o.model),
		Temperature: openai.Float(o.temperature),
	}

	if req.Structured() {
		if o.jsonObjectOnly {
			schemaJSON, err := json.Marshal(req.Schema)
			if err != nil {
				return "", fmt.Errorf("openai: encoding schema: %w", err)
			}
			system += "\n\nRespond with a single JSON object matching this JSON Schema:\n" + string(schemaJSON)
			params.ResponseFormat = openai.ChatCompletionNewParamsResponseFormatUnion{
				OfJSONObject: &openai.ResponseFormatJSONObjectParam{},
			}
		} else {
			params.ResponseFormat = openai.ChatCompletionNewParamsResponseFormatUnion{
				OfJSONSchema: &openai.ResponseFormatJSONSchemaParam{
					JSONSchema: openai.ResponseFormatJSONSchemaJSONSchemaParam{
						Name:   req.SchemaName,
						Schema: req.Schema,
						Strict: openai.Bool(true),
					},
				},
			}
		}
	}

	params.Messages = []openai.ChatCompletionMessageParamUnion{
		openai.SystemMessage(system),
		openai.UserMessage(req.Prompt.User),
	}

	resp, err := o.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("openai: empty choices")
	}
	return resp.Choices[0].Message.Content, nil
}
