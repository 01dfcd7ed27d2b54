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


// Package storage provides the vector index abstraction for examscribe.
//
// This package defines the VectorIndex interface that decouples the ingestion
// and retrieval pipelines from the storage backend. Two backends exist:
//
//   - storage/badger: embedded BadgerDB store with a brute-force cosine scan
//   - storage/qdrant: a Qdrant server reached over its REST API
//
// # Constructor Return Type Pattern
//
// Public backend constructors return the storage.VectorIndex interface to
// prevent accidental coupling to a specific backend:
//
//	index, err := badger.OpenIndex("/path/to/db")  // returns storage.VectorIndex
//
// # Collections
//
// Points live in named collections. A collection has a fixed vector
// dimensionality and uses cosine similarity. Collections are created lazily
// by EnsureCollection and are never deleted.
//
// # Thread Safety
//
// All implementations must be thread-safe and support concurrent access
// from multiple goroutines, including concurrent creators of the same
// collection.
//
// # Context Support
//
// All methods accept context.Context for cancellation and timeout support.
package storage
