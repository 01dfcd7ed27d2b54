package strategy

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/poiesic/examscribe/core"
	"github.com/poiesic/examscribe/extraction"
	"github.com/poiesic/examscribe/generation"
)

// Strategy names accepted by Select.
const (
	NameStructured = "structured"
	NameRetrieval  = "retrieval"
	NameAuto       = "auto"
)

var (
	// ErrUnknownStrategy is returned by Select for an unrecognized name.
	ErrUnknownStrategy = errors.New("unknown strategy")

	// ErrAnswererRequired is returned when a strategy is built without an answerer.
	ErrAnswererRequired = errors.New("answerer required")
)

// Strategy extracts questions from a document and answers them.
type Strategy interface {
	// Name identifies the strategy in results and logs.
	Name() string

	// Extract returns the questions found in text, or core.ErrNoQuestionsFound.
	Extract(text string) ([]core.Question, error)

	// RequiresIndex reports whether the document must be indexed before Answer.
	RequiresIndex() bool

	// Answer returns one answer per question in input order.
	Answer(ctx context.Context, questions []core.Question, doc *core.Document, collection string) []core.Answer
}

type base struct {
	name      string
	extractor extraction.Extractor
	answerer  *generation.Answerer
}

func (b *base) Name() string { return b.name }

func (b *base) Extract(text string) ([]core.Question, error) {
	questions := b.extractor.Extract(text)
	if len(questions) == 0 {
		return nil, fmt.Errorf("%w: %s extractor matched nothing", core.ErrNoQuestionsFound, b.name)
	}
	return questions, nil
}

func (b *base) Answer(ctx context.Context, questions []core.Question, doc *core.Document, collection string) []core.Answer {
	return b.answerer.Answer(ctx, questions, doc, collection)
}

// Structured answers header-structured papers from the document text itself.
type Structured struct {
	base
}

// NewStructured pairs the structured extractor with answerer, which should
// be a direct-context answerer.
func NewStructured(answerer *generation.Answerer) (*Structured, error) {
	if answerer == nil {
		return nil, ErrAnswererRequired
	}
	return &Structured{base{name: NameStructured, extractor: extraction.NewStructured(), answerer: answerer}}, nil
}

// RequiresIndex is false: the document prefix is the context.
func (s *Structured) RequiresIndex() bool { return false }

// Retrieval answers unstructured papers with context fetched from the index.
type Retrieval struct {
	base
}

// NewRetrieval pairs the heuristic extractor with answerer, which should be
// a retrieval answerer.
func NewRetrieval(answerer *generation.Answerer) (*Retrieval, error) {
	if answerer == nil {
		return nil, ErrAnswererRequired
	}
	return &Retrieval{base{name: NameRetrieval, extractor: extraction.NewHeuristic(), answerer: answerer}}, nil
}

// RequiresIndex is true: answers depend on the indexed chunks.
func (r *Retrieval) RequiresIndex() bool { return true }

// Selector chooses a Strategy for a run.
type Selector struct {
	structured *Structured
	retrieval  *Retrieval
}

// NewSelector creates a selector over the two strategies.
func NewSelector(structured *Structured, retrieval *Retrieval) (*Selector, error) {
	if structured == nil || retrieval == nil {
		return nil, ErrAnswererRequired
	}
	return &Selector{structured: structured, retrieval: retrieval}, nil
}

// Select returns the strategy for name. An empty name means structured.
// Auto picks structured when the structured extractor finds questions in
// text and retrieval otherwise.
func (s *Selector) Select(name, text string) (Strategy, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", NameStructured:
		return s.structured, nil
	case NameRetrieval:
		return s.retrieval, nil
	case NameAuto:
		if len(s.structured.extractor.Extract(text)) > 0 {
			return s.structured, nil
		}
		return s.retrieval, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownStrategy, name)
	}
}

// ValidName reports whether Select accepts name.
func ValidName(name string) bool {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", NameStructured, NameRetrieval, NameAuto:
		return true
	}
	return false
}
