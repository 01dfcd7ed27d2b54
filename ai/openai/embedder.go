package openai

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/poiesic/examscribe/ai"
	"github.com/poiesic/examscribe/core"
	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms/openai"
	"golang.org/x/time/rate"
)

// Embedder implements ai.Embedder using OpenAI-compatible embedding APIs.
type Embedder struct {
	embedder  embeddings.Embedder
	dimension int
	timeout   time.Duration
	limiter   *rate.Limiter
	logger    *slog.Logger
}

// newEmbedder is an internal constructor that returns the concrete type.
// Used by Provider to manage the instance.
func newEmbedder(config *ai.Config, limiter *rate.Limiter) (*Embedder, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	client, err := openai.New(
		openai.WithBaseURL(config.EmbeddingHost),
		openai.WithToken(token(config)),
		openai.WithEmbeddingModel(config.EmbeddingModel),
	)
	if err != nil {
		return nil, err
	}

	embedder, err := embeddings.NewEmbedder(client,
		embeddings.WithStripNewLines(true),
		embeddings.WithBatchSize(config.EmbeddingBatchSize),
	)
	if err != nil {
		return nil, err
	}

	return &Embedder{
		embedder:  embedder,
		dimension: config.EmbeddingDimension,
		timeout:   config.Timeout,
		limiter:   limiter,
		logger:    slog.Default().With("component", "openai-embedder"),
	}, nil
}

// NewEmbedder creates a new embedder using the provided configuration.
//
// Returns ai.Embedder interface to enforce abstraction.
func NewEmbedder(config *ai.Config) (ai.Embedder, error) {
	return newEmbedder(config, newLimiter(config.RequestsPerSecond))
}

// Dimension returns the configured vector length.
func (e *Embedder) Dimension() int {
	return e.dimension
}

// EmbedText generates a vector embedding for a single text string.
func (e *Embedder) EmbedText(ctx context.Context, text string) ([]float32, error) {
	vectors, err := e.EmbedTexts(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

// EmbedTexts generates vector embeddings for multiple text strings in a batch.
func (e *Embedder) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}
	e.logger.Debug("generating embeddings for texts", "count", len(texts))

	var vectors [][]float32
	err := call(ctx, e.limiter, e.timeout, func(ctx context.Context) error {
		var err error
		vectors, err = e.embedder.EmbedDocuments(ctx, texts)
		return err
	})
	if err != nil {
		e.logger.Error("failed to generate embeddings", "count", len(texts), "err", err)
		return nil, fmt.Errorf("%w: embed %d texts: %w", core.ErrExternalService, len(texts), err)
	}

	if err := checkVectors(vectors, len(texts), e.dimension); err != nil {
		e.logger.Error("embedding provider returned malformed result", "err", err)
		return nil, err
	}
	return vectors, nil
}

// checkVectors verifies a provider response has one vector per input of the expected length.
func checkVectors(vectors [][]float32, want, dim int) error {
	if len(vectors) != want {
		return fmt.Errorf("%w: expected %d embeddings, got %d", core.ErrExternalService, want, len(vectors))
	}
	for i, v := range vectors {
		if len(v) != dim {
			return fmt.Errorf("%w: embedding %d has dimension %d, expected %d", core.ErrExternalService, i, len(v), dim)
		}
	}
	return nil
}
