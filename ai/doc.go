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


// Package ai provides abstractions for the AI services used by examscribe.
//
// This package defines interfaces for text embeddings and text generation.
// The retrieval, ingestion and generation packages depend on these
// abstractions rather than on a concrete provider, so tests can substitute
// deterministic doubles.
//
// # Design Principles
//
// The package is designed around three key interfaces:
//
//   - Embedder: Generates fixed-dimension vector embeddings from text
//   - Generator: Produces completions for answer prompts
//   - AIProvider: Aggregates AI services for convenient initialization
//
// # Implementation Packages
//
//   - ai/openai: Production implementation using OpenAI-compatible APIs
//   - ai/mock: Test doubles for unit testing without external dependencies
//
// # Constructor Return Type Pattern
//
// Public constructors (openai.NewProvider, openai.NewEmbedder, etc.) return
// INTERFACE types to prevent accidental coupling to concrete implementations.
//
//	provider, err := openai.NewProvider(config)  // returns ai.AIProvider
//
// Test utility constructors (mock.NewMockEmbedder, mock.NewMockGenerator)
// return CONCRETE types to enable test assertions and behavior injection via
// the mock's public fields and methods (CallCount, Prompts, Reset, etc.).
//
// # Usage Example
//
//	config := ai.NewConfig(ai.WithAPIKey(os.Getenv("OPENAI_API_KEY")))
//	provider, err := openai.NewProvider(config)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer provider.Close()
//
//	vectors, err := provider.Embedder().EmbedTexts(ctx, chunks)
//	answer, err := provider.Generator().Generate(ctx, prompt, ai.GenerateOptions{Temperature: 0.3, MaxTokens: 500})
package ai
