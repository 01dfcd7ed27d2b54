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


package badger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/dgraph-io/badger/v4"
	"github.com/poiesic/examscribe/core"
	"github.com/poiesic/examscribe/storage"
)

// Index implements storage.VectorIndex on BadgerDB. Similarity search is a
// brute-force cosine scan over the collection's points, which suits the
// per-client collections of a few exam papers this store is meant for.
type Index struct {
	backend *Backend
	owned   bool
	logger  *slog.Logger
}

var _ storage.VectorIndex = (*Index)(nil)

// IndexOption configures an Index.
type IndexOption func(*Index) error

// WithLogger sets the logger for the index.
func WithLogger(logger *slog.Logger) IndexOption {
	return func(i *Index) error {
		i.logger = logger
		return nil
	}
}

// NewIndex creates a vector index over an existing backend. The caller keeps
// ownership of the backend; Close on the index leaves it open.
func NewIndex(backend *Backend, opts ...IndexOption) (storage.VectorIndex, error) {
	return newIndex(backend, false, opts...)
}

// OpenIndex opens (creating if needed) a BadgerDB database at path and
// returns an index that owns it.
func OpenIndex(path string, opts ...IndexOption) (storage.VectorIndex, error) {
	backend, err := OpenBackend(path, false)
	if err != nil {
		return nil, err
	}
	index, err := newIndex(backend, true, opts...)
	if err != nil {
		backend.Close()
		return nil, err
	}
	return index, nil
}

func newIndex(backend *Backend, owned bool, opts ...IndexOption) (*Index, error) {
	if backend == nil {
		return nil, errors.New("backend is required")
	}
	i := &Index{
		backend: backend,
		owned:   owned,
		logger:  slog.Default().With("component", "badger-index"),
	}
	for _, opt := range opts {
		if err := opt(i); err != nil {
			return nil, err
		}
	}
	return i, nil
}

// Close closes the backend if the index owns it.
func (i *Index) Close() error {
	if i.owned {
		return i.backend.Close()
	}
	return nil
}

func (i *Index) checkOpen() error {
	if i.backend.IsClosed() {
		return storage.ErrStorageClosed
	}
	return nil
}

// EnsureCollection creates the collection record if missing.
func (i *Index) EnsureCollection(ctx context.Context, name string, dim int) error {
	if err := core.ValidateCollection(name, dim); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := i.checkOpen(); err != nil {
		return err
	}

	created := false
	err := i.backend.WithTx(func(tx *badger.Txn) error {
		existing, err := getCollection(tx, name)
		if err != nil {
			return err
		}
		if existing != nil {
			if existing.Dimension != dim {
				i.logger.Warn("collection exists with a different dimension",
					"collection", name, "existing", existing.Dimension, "requested", dim)
			}
			return nil
		}
		created = true
		return tx.Set(makeCollectionKey(name), storage.MarshalCollection(&storage.Collection{Name: name, Dimension: dim}))
	}, true)

	if errors.Is(err, badger.ErrConflict) {
		// Another writer created it between our read and commit.
		var exists bool
		exists, err = i.collectionExists(name)
		if err == nil && !exists {
			err = fmt.Errorf("collection %q: creation conflicted but collection is missing", name)
		}
		created = false
	}
	if err != nil {
		return fmt.Errorf("%w: ensure collection %q: %w", core.ErrExternalService, name, err)
	}
	if created {
		i.logger.Info("created collection", "collection", name, "dimension", dim)
	}
	return nil
}

func (i *Index) collectionExists(name string) (bool, error) {
	var c *storage.Collection
	err := i.backend.WithTx(func(tx *badger.Txn) error {
		var err error
		c, err = getCollection(tx, name)
		return err
	}, false)
	return c != nil, err
}

// getCollection returns nil without error when the collection is missing.
func getCollection(tx *badger.Txn, name string) (*storage.Collection, error) {
	item, err := tx.Get(makeCollectionKey(name))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var c *storage.Collection
	err = item.Value(func(val []byte) error {
		c, err = storage.UnmarshalCollection(val)
		return err
	})
	return c, err
}

func (i *Index) collection(name string) (*storage.Collection, error) {
	var c *storage.Collection
	err := i.backend.WithTx(func(tx *badger.Txn) error {
		var err error
		c, err = getCollection(tx, name)
		return err
	}, false)
	return c, err
}

// Upsert validates every point against the collection dimension, then writes
// them in one batch.
func (i *Index) Upsert(ctx context.Context, collection string, points []core.Point) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := i.checkOpen(); err != nil {
		return err
	}
	if len(points) == 0 {
		return nil
	}

	meta, err := i.collection(collection)
	if err != nil {
		return fmt.Errorf("%w: read collection %q: %w", core.ErrExternalService, collection, err)
	}
	if meta == nil {
		return fmt.Errorf("%w: %q", storage.ErrCollectionNotFound, collection)
	}

	prepared := make([]core.Point, len(points))
	for n, p := range points {
		if err := core.ValidatePoint(&p, meta.Dimension); err != nil {
			return fmt.Errorf("point %d: %w", n, err)
		}
		if p.ID == "" {
			p.ID = core.NewID()
		}
		prepared[n] = p
	}

	wb := i.backend.NewWriteBatch()
	defer wb.Cancel()
	for n := range prepared {
		if err := wb.Set(makePointKey(collection, prepared[n].ID), storage.MarshalPoint(&prepared[n])); err != nil {
			return fmt.Errorf("%w: write point %d of %d: %w", core.ErrExternalService, n, len(prepared), err)
		}
	}
	if err := wb.Flush(); err != nil {
		return fmt.Errorf("%w: flush %d points: %w", core.ErrExternalService, len(prepared), err)
	}

	i.logger.Debug("upserted points", "collection", collection, "count", len(prepared))
	return nil
}

// Search scans the collection and ranks every point by cosine similarity.
func (i *Index) Search(ctx context.Context, collection string, vector []float32, k int) ([]core.SearchHit, error) {
	if len(vector) == 0 {
		return nil, fmt.Errorf("%w: %w", storage.ErrInvalidQuery, core.ErrEmptyVector)
	}
	if k <= 0 {
		return []core.SearchHit{}, nil
	}
	if err := i.checkOpen(); err != nil {
		return nil, err
	}

	var candidates []storage.ScoredPoint
	err := i.backend.WithTx(func(tx *badger.Txn) error {
		meta, err := getCollection(tx, collection)
		if err != nil {
			return err
		}
		if meta == nil {
			return nil
		}
		if meta.Dimension != len(vector) {
			return fmt.Errorf("%w: %w: query has %d, collection %q has %d",
				storage.ErrInvalidQuery, core.ErrDimensionMismatch, len(vector), collection, meta.Dimension)
		}

		opts := badger.DefaultIteratorOptions
		opts.Prefix = makePointPrefix(collection)
		iter := tx.NewIterator(opts)
		defer iter.Close()

		for iter.Rewind(); iter.Valid(); iter.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			var point *core.Point
			err := iter.Item().Value(func(val []byte) error {
				var err error
				point, err = storage.UnmarshalPoint(val)
				return err
			})
			if err != nil {
				return err
			}
			candidates = append(candidates, storage.ScoredPoint{
				ID: point.ID,
				Hit: core.SearchHit{
					Text:       point.Text,
					Score:      storage.Cosine(vector, point.Vector),
					DocumentID: point.DocumentID,
				},
			})
		}
		return nil
	}, false)

	if err != nil {
		if errors.Is(err, storage.ErrInvalidQuery) || ctx.Err() != nil {
			return nil, err
		}
		return nil, fmt.Errorf("%w: search %q: %w", core.ErrExternalService, collection, err)
	}
	return storage.TopK(candidates, k), nil
}
