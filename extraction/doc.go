// Package extraction finds exam questions in normalized document text.
//
// Two extractors are provided. Structured parses papers laid out with
// "QUESTION <N> (<M> MARKS)" headers and lettered/roman sub-parts into
// hierarchically numbered questions. Heuristic scans unstructured text line by
// line for question-like sentences ending in "?".
package extraction

import "github.com/poiesic/examscribe/core"

// Extractor finds questions in document text. An empty result means the
// text holds nothing the extractor recognizes.
type Extractor interface {
	Extract(text string) []core.Question
}
