package engine

import "context"

// Engine abstracts an inference backend (local Ollama or hosted Gemini).
// The advisor and the embedding gateway use this interface instead of
// depending on a concrete client.
type Engine interface {
	// Complete submits a single prompt to the given model and returns the
	// generated text. Unary request/response, no streaming.
	Complete(ctx context.Context, model, prompt string) (string, error)

	// Embed returns the embedding vector for the given text using the
	// specified model. Deterministic for a fixed model version.
	Embed(ctx context.Context, model, text string) ([]float32, error)

	// IsRunning reports whether the inference backend is reachable.
	IsRunning(ctx context.Context) bool
}
