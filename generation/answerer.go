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


package generation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/panjf2000/ants/v2"
	"github.com/poiesic/examscribe/ai"
	"github.com/poiesic/examscribe/core"
	"github.com/poiesic/examscribe/search"
)

// DefaultPoolSize is the number of questions answered concurrently.
const DefaultPoolSize = 4

var (
	// ErrGeneratorRequired is returned when a generator is not provided.
	ErrGeneratorRequired = errors.New("generator required")

	// ErrRetrieverRequired is returned when retrieval mode has no retriever.
	ErrRetrieverRequired = errors.New("retriever required")
)

// Answerer generates one answer per question.
type Answerer struct {
	generator    ai.Generator
	prompter     prompter
	pool         *ants.Pool
	poolSize     int
	monitor      Monitor
	contextLimit int
	topK         int
	logger       *slog.Logger
}

// Option configures an Answerer.
type Option func(*Answerer) error

// WithPoolSize sets how many questions are answered at once.
// Default is DefaultPoolSize, with a minimum of 1.
func WithPoolSize(size int) Option {
	return func(a *Answerer) error {
		if size < 1 {
			size = 1
		}
		a.poolSize = size
		return nil
	}
}

// WithMonitor sets the monitor receiving per-question events.
func WithMonitor(monitor Monitor) Option {
	return func(a *Answerer) error {
		if monitor == nil {
			monitor = noopMonitor{}
		}
		a.monitor = monitor
		return nil
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(a *Answerer) error {
		if logger == nil {
			logger = slog.Default()
		}
		a.logger = logger
		return nil
	}
}

// WithContextLimit sets how many runes of the document direct mode uses.
func WithContextLimit(runes int) Option {
	return func(a *Answerer) error {
		if runes < 1 {
			return fmt.Errorf("context limit must be positive, got %d", runes)
		}
		a.contextLimit = runes
		return nil
	}
}

// WithTopK sets how many chunks retrieval mode fetches per question.
func WithTopK(k int) Option {
	return func(a *Answerer) error {
		if k < 1 {
			return fmt.Errorf("top k must be positive, got %d", k)
		}
		a.topK = k
		return nil
	}
}

// NewDirectAnswerer returns an Answerer that uses the start of the document
// as context for every question.
func NewDirectAnswerer(generator ai.Generator, opts ...Option) (*Answerer, error) {
	a, err := newAnswerer(generator, opts...)
	if err != nil {
		return nil, err
	}
	a.prompter = directPrompter{limit: a.contextLimit}
	return a, nil
}

// NewRetrievalAnswerer returns an Answerer that retrieves context for each
// question from the collection passed to Answer.
func NewRetrievalAnswerer(generator ai.Generator, retriever *search.Retriever, opts ...Option) (*Answerer, error) {
	if retriever == nil {
		return nil, ErrRetrieverRequired
	}
	a, err := newAnswerer(generator, opts...)
	if err != nil {
		return nil, err
	}
	a.prompter = retrievalPrompter{retriever: retriever, topK: a.topK}
	return a, nil
}

func newAnswerer(generator ai.Generator, opts ...Option) (*Answerer, error) {
	if generator == nil {
		return nil, ErrGeneratorRequired
	}
	a := &Answerer{
		generator:    generator,
		poolSize:     DefaultPoolSize,
		monitor:      noopMonitor{},
		contextLimit: DefaultContextLimit,
		topK:         search.DefaultLimit,
		logger:       slog.Default(),
	}
	for _, opt := range opts {
		if err := opt(a); err != nil {
			return nil, err
		}
	}

	pool, err := ants.NewPool(a.poolSize)
	if err != nil {
		return nil, err
	}
	a.pool = pool
	a.logger = a.logger.With("component", "answerer")
	return a, nil
}

// Release stops the worker pool. The Answerer must not be used afterwards.
func (a *Answerer) Release() {
	a.pool.Release()
}

// Answer generates answers for questions concurrently and returns them in
// input order. collection is only consulted in retrieval mode.
func (a *Answerer) Answer(ctx context.Context, questions []core.Question, doc *core.Document, collection string) []core.Answer {
	answers := make([]core.Answer, len(questions))
	a.monitor.Start(len(questions))

	var wg sync.WaitGroup
	for i, q := range questions {
		wg.Add(1)
		err := a.pool.Submit(func() {
			defer wg.Done()
			start := time.Now()
			answers[i] = a.answerOne(ctx, q, doc, collection)
			a.monitor.QuestionFinished(answers[i], time.Since(start))
		})
		if err != nil {
			wg.Done()
			a.logger.Error("failed to schedule question", "question", q.Number, "err", err)
			answers[i] = placeholder(q, err)
			a.monitor.QuestionFinished(answers[i], 0)
		}
	}
	wg.Wait()

	a.monitor.Finish(answers)
	return answers
}

func (a *Answerer) answerOne(ctx context.Context, q core.Question, doc *core.Document, collection string) core.Answer {
	prompt, opts, err := a.prompter.prompt(ctx, q, doc, collection)
	if err != nil {
		a.logger.Warn("could not build prompt", "question", q.Number, "err", err)
		return placeholder(q, err)
	}

	text, err := a.generator.Generate(ctx, prompt, opts)
	if err != nil {
		a.logger.Warn("answer generation failed", "question", q.Number, "err", err)
		return placeholder(q, err)
	}

	return core.Answer{
		QuestionNumber: q.Number,
		Question:       q.Text,
		Text:           text,
		Marks:          q.Marks,
	}
}

// placeholder records a failed question so the batch keeps one answer per question.
func placeholder(q core.Question, err error) core.Answer {
	return core.Answer{
		QuestionNumber: q.Number,
		Question:       q.Text,
		Text:           "Error generating answer: " + err.Error(),
		Marks:          q.Marks,
		Err:            err,
	}
}
