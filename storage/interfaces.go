package storage

import (
	"context"

	"github.com/poiesic/examscribe/core"
)

// VectorIndex stores embedded chunks in named collections and answers
// nearest-neighbour queries by cosine similarity.
// Implementations must be thread-safe and support concurrent access.
type VectorIndex interface {
	// EnsureCollection creates the collection if it does not exist.
	// It is idempotent and tolerates concurrent creators: losing a creation
	// race is success. An existing collection is left untouched.
	EnsureCollection(ctx context.Context, name string, dim int) error

	// Upsert writes points to an existing collection. Points without an ID
	// receive a fresh UUID. Every vector must match the collection's
	// dimensionality; otherwise nothing is written. A failure part way
	// through is returned as an error.
	Upsert(ctx context.Context, collection string, points []core.Point) error

	// Search returns up to k hits ordered by descending similarity, ties
	// broken by point ID. A missing or empty collection yields an empty
	// slice and no error.
	Search(ctx context.Context, collection string, vector []float32, k int) ([]core.SearchHit, error)

	// Close releases the backend's resources.
	Close() error
}
