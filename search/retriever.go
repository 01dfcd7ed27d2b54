package search

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/poiesic/examscribe/ai"
	"github.com/poiesic/examscribe/core"
	"github.com/poiesic/examscribe/storage"
)

// DefaultLimit is the number of chunks retrieved per question.
const DefaultLimit = 3

// Retriever finds the chunks nearest to a query in a collection.
type Retriever struct {
	index    storage.VectorIndex
	embedder ai.Embedder
	logger   *slog.Logger
}

// Option configures a Retriever.
type Option func(*Retriever) error

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(r *Retriever) error {
		if logger == nil {
			logger = slog.Default()
		}
		r.logger = logger
		return nil
	}
}

// NewRetriever creates a new retriever.
func NewRetriever(index storage.VectorIndex, embedder ai.Embedder, opts ...Option) (*Retriever, error) {
	if index == nil {
		return nil, ErrIndexRequired
	}
	if embedder == nil {
		return nil, ErrEmbedderRequired
	}

	r := &Retriever{
		index:    index,
		embedder: embedder,
		logger:   slog.Default(),
	}

	for _, opt := range opts {
		if err := opt(r); err != nil {
			return nil, err
		}
	}

	return r, nil
}

// Retrieve returns up to k hits for query from collection, best first.
func (r *Retriever) Retrieve(ctx context.Context, collection, query string, k int) ([]core.SearchHit, error) {
	return r.RetrieveWithMonitor(ctx, collection, query, k, nil)
}

// RetrieveWithMonitor is Retrieve with stage callbacks.
func (r *Retriever) RetrieveWithMonitor(ctx context.Context, collection, query string, k int, monitor SearchMonitor) (hits []core.SearchHit, err error) {
	if monitor == nil {
		monitor = &noopMonitor{}
	}
	monitor.Start(collection, query)
	defer func() { monitor.Finish(hits, err) }()

	vector, err := r.embedder.EmbedText(ctx, query)
	if err != nil {
		r.logger.Error("error generating embedding for query", "err", err)
		return nil, externalErr("embed query", err)
	}
	monitor.AfterEmbedding(vector)

	hits, err = r.index.Search(ctx, collection, vector, k)
	if err != nil {
		r.logger.Error("error querying vector index", "collection", collection, "err", err)
		return nil, externalErr("search index", err)
	}
	return hits, nil
}

// Context joins hit texts with newlines for use as prompt context.
func Context(hits []core.SearchHit) string {
	var out []byte
	for i, h := range hits {
		if i > 0 {
			out = append(out, '\n')
		}
		out = append(out, h.Text...)
	}
	return string(out)
}

// externalErr classifies a retrieval failure as an external service error
// unless it already is one.
func externalErr(stage string, err error) error {
	if errors.Is(err, core.ErrExternalService) {
		return fmt.Errorf("%s: %w", stage, err)
	}
	return fmt.Errorf("%w: %s: %w", core.ErrExternalService, stage, err)
}
