// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package ingestion

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/poiesic/examscribe/ai"
	"github.com/poiesic/examscribe/chunking"
	"github.com/poiesic/examscribe/core"
	"github.com/poiesic/examscribe/retry"
	"github.com/poiesic/examscribe/storage"
)

// Pipeline turns documents into indexed points.
type Pipeline struct {
	chunker  *chunking.Chunker
	embedder ai.Embedder
	index    storage.VectorIndex
	policy   retry.Policy
	logger   *slog.Logger
}

// Option configures a Pipeline.
type Option func(*Pipeline) error

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) error {
		if logger == nil {
			logger = slog.Default()
		}
		p.logger = logger
		return nil
	}
}

// WithRetryPolicy sets how embedding calls are retried.
// Default is retry.DefaultPolicy().
func WithRetryPolicy(policy retry.Policy) Option {
	return func(p *Pipeline) error {
		if policy.MaxAttempts < 1 {
			return retry.ErrInvalidMaxAttempts
		}
		p.policy = policy
		return nil
	}
}

// NewPipeline creates a new ingestion pipeline.
func NewPipeline(chunker *chunking.Chunker, embedder ai.Embedder, index storage.VectorIndex, opts ...Option) (*Pipeline, error) {
	if chunker == nil {
		return nil, ErrChunkerRequired
	}
	if embedder == nil {
		return nil, ErrEmbedderRequired
	}
	if index == nil {
		return nil, ErrIndexRequired
	}

	p := &Pipeline{
		chunker:  chunker,
		embedder: embedder,
		index:    index,
		policy:   retry.DefaultPolicy(),
		logger:   slog.Default(),
	}

	for _, opt := range opts {
		if err := opt(p); err != nil {
			return nil, err
		}
	}
	p.logger = p.logger.With("component", "ingestion")

	return p, nil
}

// Index chunks, embeds and stores doc in collection and returns the number
// of points written. A document without text writes nothing.
func (p *Pipeline) Index(ctx context.Context, doc *core.Document, collection string) (int, error) {
	chunks, err := p.chunker.ChunkDocument(doc)
	if err != nil {
		return 0, fmt.Errorf("chunk document: %w", err)
	}
	if len(chunks) == 0 {
		p.logger.Warn("document produced no chunks", "document_id", doc.ID)
		return 0, nil
	}

	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text
	}

	p.logger.Debug("embedding chunks", "document_id", doc.ID, "chunks", len(texts))
	vectors, err := p.embed(ctx, texts)
	if err != nil {
		p.logger.Error("error embedding chunks", "document_id", doc.ID, "err", err)
		return 0, fmt.Errorf("embed chunks: %w", err)
	}

	if err := p.index.EnsureCollection(ctx, collection, p.embedder.Dimension()); err != nil {
		return 0, fmt.Errorf("ensure collection: %w", err)
	}

	points := make([]core.Point, len(chunks))
	for i, c := range chunks {
		points[i] = core.Point{
			ID:         core.NewID(),
			Vector:     vectors[i],
			Text:       c.Text,
			DocumentID: c.DocumentID,
			ChunkIndex: c.Index,
		}
	}
	if err := p.index.Upsert(ctx, collection, points); err != nil {
		p.logger.Error("error writing points", "document_id", doc.ID, "collection", collection, "err", err)
		return 0, fmt.Errorf("upsert points: %w", err)
	}

	p.logger.Info("indexed document", "document_id", doc.ID, "collection", collection, "points", len(points))
	return len(points), nil
}

// embed runs the batched embedding call under the retry policy. Malformed
// responses are not retried.
func (p *Pipeline) embed(ctx context.Context, texts []string) ([][]float32, error) {
	var vectors [][]float32
	err := retry.Do(ctx, p.policy, func(ctx context.Context) error {
		var err error
		vectors, err = p.embedder.EmbedTexts(ctx, texts)
		if err != nil {
			return err
		}
		if len(vectors) != len(texts) {
			return retry.Permanent(fmt.Errorf("%w: expected %d embeddings, got %d", core.ErrExternalService, len(texts), len(vectors)))
		}
		for i, v := range vectors {
			if len(v) != p.embedder.Dimension() {
				return retry.Permanent(fmt.Errorf("%w: embedding %d: %w", core.ErrExternalService, i, core.ErrDimensionMismatch))
			}
		}
		return nil
	})
	if err != nil && !errors.Is(err, core.ErrExternalService) && ctx.Err() == nil {
		err = fmt.Errorf("%w: %w", core.ErrExternalService, err)
	}
	return vectors, err
}
