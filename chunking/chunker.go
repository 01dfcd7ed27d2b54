// Package chunking splits document text into overlapping, size-bounded chunks
// suitable for embedding.
package chunking

import (
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/poiesic/examscribe/core"
	"github.com/tmc/langchaingo/textsplitter"
)

const (
	// DefaultSize is the maximum chunk length in runes.
	DefaultSize = 1000
	// DefaultOverlap is the number of runes consecutive chunks may share.
	DefaultOverlap = 200
)

var (
	ErrInvalidSize    = errors.New("chunk size must be positive")
	ErrInvalidOverlap = errors.New("chunk overlap must be non-negative and smaller than the chunk size")
)

// Separators is the split preference, coarsest first. The empty separator
// falls back to splitting between runes.
var Separators = []string{"\n\n", "\n", ".", "!", "?", ",", " ", ""}

// Chunker is a recursive character splitter measuring length in runes.
// It is safe for concurrent use.
type Chunker struct {
	size     int
	overlap  int
	splitter textsplitter.RecursiveCharacter
}

// New returns a Chunker producing chunks of at most size runes that overlap
// by up to overlap runes.
func New(size, overlap int) (*Chunker, error) {
	if size <= 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidSize, size)
	}
	if overlap < 0 || overlap >= size {
		return nil, fmt.Errorf("%w: overlap %d, size %d", ErrInvalidOverlap, overlap, size)
	}
	return &Chunker{
		size:    size,
		overlap: overlap,
		splitter: textsplitter.NewRecursiveCharacter(
			textsplitter.WithChunkSize(size),
			textsplitter.WithChunkOverlap(overlap),
			textsplitter.WithSeparators(Separators),
			textsplitter.WithKeepSeparator(true),
			textsplitter.WithLenFunc(utf8.RuneCountInString),
		),
	}, nil
}

// Size returns the configured maximum chunk length.
func (c *Chunker) Size() int { return c.size }

// Overlap returns the configured overlap.
func (c *Chunker) Overlap() int { return c.overlap }

// Chunk splits text into trimmed, non-empty chunks in document order.
// Separators stay with the text that follows them, so only whitespace is
// lost at chunk boundaries. Whitespace-only input yields no chunks.
func (c *Chunker) Chunk(text string) ([]string, error) {
	if strings.TrimSpace(text) == "" {
		return []string{}, nil
	}

	parts, err := c.splitter.SplitText(text)
	if err != nil {
		return nil, fmt.Errorf("split text: %w", err)
	}

	chunks := make([]string, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		chunks = append(chunks, c.bound(part)...)
	}
	return chunks, nil
}

// bound hard-splits a chunk the splitter left oversized, on rune boundaries.
func (c *Chunker) bound(chunk string) []string {
	if utf8.RuneCountInString(chunk) <= c.size {
		return []string{chunk}
	}
	runes := []rune(chunk)
	step := c.size - c.overlap
	var out []string
	for start := 0; start < len(runes); start += step {
		end := min(start+c.size, len(runes))
		if piece := strings.TrimSpace(string(runes[start:end])); piece != "" {
			out = append(out, piece)
		}
		if end == len(runes) {
			break
		}
	}
	return out
}

// ChunkDocument chunks doc and tags every chunk with its document id and position.
func (c *Chunker) ChunkDocument(doc *core.Document) ([]core.Chunk, error) {
	texts, err := c.Chunk(doc.Text)
	if err != nil {
		return nil, err
	}
	chunks := make([]core.Chunk, len(texts))
	for i, text := range texts {
		chunks[i] = core.Chunk{DocumentID: doc.ID, Index: i, Text: text}
	}
	return chunks, nil
}
