package ai

import "context"

// Embedder generates vector embeddings from text for semantic similarity search.
// Implementations must be thread-safe for concurrent use.
type Embedder interface {
	// EmbedText generates a vector embedding for a single text string.
	EmbedText(ctx context.Context, text string) ([]float32, error)

	// EmbedTexts generates vector embeddings for multiple text strings in a batch.
	// The returned slice contains exactly one embedding per input, in input order.
	// Returns an error wrapping core.ErrExternalService if the call fails or the
	// provider returns a mismatched count or dimensionality.
	EmbedTexts(ctx context.Context, texts []string) ([][]float32, error)

	// Dimension returns the fixed length of every vector this embedder produces.
	Dimension() int
}

// GenerateOptions tunes a single completion call.
type GenerateOptions struct {
	// Temperature controls sampling randomness. Low values give focused,
	// reproducible answers.
	Temperature float64

	// MaxTokens caps the completion length.
	MaxTokens int
}

// Generator produces text completions from a prompt.
// Implementations must be thread-safe for concurrent use.
type Generator interface {
	// Generate returns the model's completion for prompt.
	// Returns an error wrapping core.ErrExternalService if the call fails,
	// times out, or returns no content.
	Generate(ctx context.Context, prompt string, opts GenerateOptions) (string, error)
}

// AIProvider aggregates AI services for convenient initialization and lifecycle management.
// A provider creates and manages Embedder and Generator instances,
// ensuring they share configuration, credentials and rate limits.
type AIProvider interface {
	// Embedder returns the text embedding service.
	Embedder() Embedder

	// Generator returns the completion service.
	Generator() Generator

	// Close releases resources held by the provider and its services.
	// After Close is called, the provider and its services should not be used.
	Close() error
}
