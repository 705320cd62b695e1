package engine

import (
	"context"
	"fmt"

	"google.golang.org/genai"
)

// GeminiEngine serves completions and embeddings through the Gemini API.
type GeminiEngine struct {
	client *genai.Client
}

// NewGeminiEngine creates a GeminiEngine using the given API key.
func NewGeminiEngine(ctx context.Context, apiKey string) (*GeminiEngine, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("creating gemini client: %w", err)
	}
	return &GeminiEngine{client: client}, nil
}

func (e *GeminiEngine) Complete(ctx context.Context, model, prompt string) (string, error) {
	resp, err := e.client.Models.GenerateContent(ctx, model, genai.Text(prompt), nil)
	if err != nil {
		return "", fmt.Errorf("gemini generate: %w", err)
	}
	return resp.Text(), nil
}

func (e *GeminiEngine) Embed(ctx context.Context, model, text string) ([]float32, error) {
	resp, err := e.client.Models.EmbedContent(ctx, model, genai.Text(text), nil)
	if err != nil {
		return nil, fmt.Errorf("gemini embed: %w", err)
	}
	if len(resp.Embeddings) == 0 || len(resp.Embeddings[0].Values) == 0 {
		return nil, fmt.Errorf("gemini embed: empty embedding for model %s", model)
	}
	return resp.Embeddings[0].Values, nil
}

// IsRunning always reports true: the hosted API has no local liveness probe,
// and transient failures surface per call instead.
func (e *GeminiEngine) IsRunning(ctx context.Context) bool {
	return true
}
