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


// Package strategy pairs a question extractor with an answering mode.
//
// A Strategy is chosen once per run. Structured pairs the header-aware
// extractor with direct-context answering and needs no vector index.
// Retrieval pairs the heuristic extractor with retrieval answering and
// requires the document to be indexed first.
package strategy
