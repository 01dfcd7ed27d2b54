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


package core

import "errors"

// Pipeline failure taxonomy. Component errors wrap one of these so the
// orchestrator and adapters can classify a failure with errors.Is.
var (
	// ErrExtraction indicates the source document could not be read or
	// yielded no text.
	ErrExtraction = errors.New("document extraction failed")

	// ErrNoQuestionsFound indicates question extraction produced nothing.
	ErrNoQuestionsFound = errors.New("no questions found in the document")

	// ErrExternalService indicates an embedding, generation or vector index
	// call failed, timed out, or returned malformed data.
	ErrExternalService = errors.New("external service error")

	// ErrRender indicates the output document could not be produced.
	ErrRender = errors.New("answer document rendering failed")
)

// Domain validation errors
var (
	// ErrInvalidPoint indicates a Point failed validation.
	ErrInvalidPoint = errors.New("invalid point")

	// ErrEmptyVector indicates a Point or query has no vector.
	ErrEmptyVector = errors.New("vector cannot be empty")

	// ErrDimensionMismatch indicates a vector length differs from the
	// collection's configured dimensionality.
	ErrDimensionMismatch = errors.New("vector dimension mismatch")

	// ErrEmptyContent indicates a text field is empty.
	ErrEmptyContent = errors.New("content cannot be empty")

	// ErrInvalidCollection indicates a collection name or dimension is unusable.
	ErrInvalidCollection = errors.New("invalid collection")
)
