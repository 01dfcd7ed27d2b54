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


// Package examscribe turns uploaded exam papers into answered marking
// schemes.
//
// A Processor runs one document through text extraction, question
// extraction, optional indexing of the document into a per-client vector
// collection, concurrent answer generation and PDF rendering.
package examscribe

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/poiesic/examscribe/ai"
	"github.com/poiesic/examscribe/ai/openai"
	"github.com/poiesic/examscribe/chunking"
	"github.com/poiesic/examscribe/config"
	"github.com/poiesic/examscribe/core"
	"github.com/poiesic/examscribe/document"
	"github.com/poiesic/examscribe/generation"
	"github.com/poiesic/examscribe/ingestion"
	"github.com/poiesic/examscribe/metrics"
	"github.com/poiesic/examscribe/render"
	"github.com/poiesic/examscribe/retry"
	"github.com/poiesic/examscribe/search"
	"github.com/poiesic/examscribe/storage"
	"github.com/poiesic/examscribe/storage/badger"
	"github.com/poiesic/examscribe/storage/qdrant"
	"github.com/poiesic/examscribe/strategy"
	"github.com/poiesic/examscribe/tenancy"
)

// Processing phases, used to wrap errors and label metrics.
const (
	PhaseExtraction = "extraction"
	PhaseQuestions  = "questions"
	PhaseIndexing   = "indexing"
	PhaseAnswering  = "answering"
	PhaseRendering  = "rendering"
)

const (
	messageProcessed    = "Document processed successfully"
	messageRenderFailed = "Answers generated but the marking scheme could not be rendered"
)

// Processor runs documents through the pipeline. It is safe for concurrent
// use; each Process call owns its document.
type Processor struct {
	cfg       *config.Config
	provider  ai.AIProvider
	index     storage.VectorIndex
	extractor document.TextExtractor
	renderer  render.Renderer
	namer     tenancy.Namer
	selector  *strategy.Selector
	pipeline  *ingestion.Pipeline
	retriever *search.Retriever
	answerers []*generation.Answerer
	metrics   *metrics.Metrics
	closers   []func() error
	logger    *slog.Logger
}

// ProcessorOption configures a Processor.
type ProcessorOption func(*processorOptions)

type processorOptions struct {
	provider  ai.AIProvider
	index     storage.VectorIndex
	extractor document.TextExtractor
	renderer  render.Renderer
	namer     tenancy.Namer
	metrics   *metrics.Metrics
	monitors  []generation.Monitor
	logger    *slog.Logger
}

// WithProvider supplies the AI provider instead of building one from the
// configuration. The caller keeps ownership.
func WithProvider(provider ai.AIProvider) ProcessorOption {
	return func(o *processorOptions) {
		o.provider = provider
	}
}

// WithIndex supplies the vector index instead of opening the configured
// backend. The caller keeps ownership.
func WithIndex(index storage.VectorIndex) ProcessorOption {
	return func(o *processorOptions) {
		o.index = index
	}
}

// WithTextExtractor replaces the PDF text extractor.
func WithTextExtractor(extractor document.TextExtractor) ProcessorOption {
	return func(o *processorOptions) {
		o.extractor = extractor
	}
}

// WithRenderer replaces the PDF renderer.
func WithRenderer(renderer render.Renderer) ProcessorOption {
	return func(o *processorOptions) {
		o.renderer = renderer
	}
}

// WithNamer replaces the configured client key to collection mapping.
func WithNamer(namer tenancy.Namer) ProcessorOption {
	return func(o *processorOptions) {
		o.namer = namer
	}
}

// WithMetrics records documents, phases and answers in m.
func WithMetrics(m *metrics.Metrics) ProcessorOption {
	return func(o *processorOptions) {
		o.metrics = m
	}
}

// WithMonitor adds a monitor receiving answer generation events.
func WithMonitor(monitor generation.Monitor) ProcessorOption {
	return func(o *processorOptions) {
		o.monitors = append(o.monitors, monitor)
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) ProcessorOption {
	return func(o *processorOptions) {
		o.logger = logger
	}
}

// NewProcessor wires a Processor from cfg. A nil cfg means config.Default().
func NewProcessor(cfg *config.Config, opts ...ProcessorOption) (*Processor, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	options := &processorOptions{logger: slog.Default()}
	for _, opt := range opts {
		opt(options)
	}
	if options.logger == nil {
		options.logger = slog.Default()
	}

	p := &Processor{
		cfg:       cfg,
		extractor: options.extractor,
		renderer:  options.renderer,
		namer:     options.namer,
		metrics:   options.metrics,
		logger:    options.logger.With("component", "processor"),
	}
	if err := p.wire(options); err != nil {
		p.Close()
		return nil, err
	}
	return p, nil
}

func (p *Processor) wire(options *processorOptions) error {
	cfg := p.cfg

	if err := document.SetLicense(cfg.UnidocLicenseKey); err != nil {
		return err
	}

	p.provider = options.provider
	if p.provider == nil {
		provider, err := openai.NewProvider(cfg.AIConfig())
		if err != nil {
			return err
		}
		p.provider = provider
		p.closers = append(p.closers, provider.Close)
	}

	p.index = options.index
	if p.index == nil {
		index, err := OpenIndex(cfg, options.logger)
		if err != nil {
			return err
		}
		p.index = index
		p.closers = append(p.closers, index.Close)
	}

	if p.extractor == nil {
		p.extractor = document.NewPDFExtractor(document.WithLogger(options.logger))
	}
	if p.renderer == nil {
		renderer, err := render.NewPDFRenderer(cfg.OutputDir, render.WithLogger(options.logger))
		if err != nil {
			return err
		}
		p.renderer = renderer
	}
	if p.namer == nil {
		namer, err := tenancy.New(cfg.Tenancy)
		if err != nil {
			return err
		}
		p.namer = namer
	}

	chunker, err := chunking.New(cfg.Chunking.Size, cfg.Chunking.Overlap)
	if err != nil {
		return err
	}
	embedder := p.provider.Embedder()

	p.pipeline, err = ingestion.NewPipeline(chunker, embedder, p.index,
		ingestion.WithLogger(options.logger),
		ingestion.WithRetryPolicy(retry.Policy{MaxAttempts: cfg.MaxRetries, BaseDelay: cfg.RetryDelay}))
	if err != nil {
		return err
	}

	p.retriever, err = search.NewRetriever(p.index, embedder, search.WithLogger(options.logger))
	if err != nil {
		return err
	}

	monitors := options.monitors
	if p.metrics != nil {
		monitors = append(monitors, p.metrics)
	}
	answerOpts := []generation.Option{
		generation.WithPoolSize(cfg.Workers),
		generation.WithMonitor(generation.Monitors(monitors...)),
		generation.WithLogger(options.logger),
	}

	direct, err := generation.NewDirectAnswerer(p.provider.Generator(), answerOpts...)
	if err != nil {
		return err
	}
	p.answerers = append(p.answerers, direct)

	retrieving, err := generation.NewRetrievalAnswerer(p.provider.Generator(), p.retriever, answerOpts...)
	if err != nil {
		return err
	}
	p.answerers = append(p.answerers, retrieving)

	structured, err := strategy.NewStructured(direct)
	if err != nil {
		return err
	}
	retrieval, err := strategy.NewRetrieval(retrieving)
	if err != nil {
		return err
	}
	p.selector, err = strategy.NewSelector(structured, retrieval)
	return err
}

// OpenIndex opens the vector index backend selected by cfg.
func OpenIndex(cfg *config.Config, logger *slog.Logger) (storage.VectorIndex, error) {
	switch strings.ToLower(cfg.Index.Backend) {
	case config.BackendQdrant:
		return qdrant.New(qdrant.Options{
			Endpoint: cfg.Index.QdrantURL,
			APIKey:   cfg.Index.QdrantAPIKey,
			Timeout:  cfg.CallTimeout,
			Logger:   logger,
		})
	case config.BackendBadger:
		return badger.OpenIndex(cfg.Index.Path, badger.WithLogger(logger))
	default:
		return nil, fmt.Errorf("unknown index backend %q", cfg.Index.Backend)
	}
}

// Close stops the worker pools and closes the provider and index when the
// Processor opened them.
func (p *Processor) Close() error {
	for _, a := range p.answerers {
		a.Release()
	}
	p.answerers = nil

	var errs []error
	for i := len(p.closers) - 1; i >= 0; i-- {
		if err := p.closers[i](); err != nil {
			p.logger.Error("error closing resource", "err", err)
			errs = append(errs, err)
		}
	}
	p.closers = nil
	return errors.Join(errs...)
}

// Process runs raw through the pipeline on behalf of clientKey.
//
// On a rendering failure the Result with all answers is returned together
// with a core.ErrRender error. Every other failure returns a nil Result.
func (p *Processor) Process(ctx context.Context, raw []byte, clientKey string) (result *core.Result, err error) {
	collection, err := p.namer.Collection(clientKey)
	if err != nil {
		return nil, err
	}

	doc := &core.Document{ID: core.NewID()}
	logger := p.logger.With("document_id", doc.ID, "collection", collection)
	strategyName := ""
	defer func() {
		p.observeDocument(strategyName, err)
	}()

	phaseStart := time.Now()
	text, err := p.extractor.Extract(raw)
	if err != nil {
		return nil, phaseErr(PhaseExtraction, core.ErrExtraction, err)
	}
	doc.Text = document.Normalize(text)
	if doc.Text == "" {
		return nil, phaseErr(PhaseExtraction, core.ErrExtraction, errors.New("document has no text"))
	}
	p.observePhase(PhaseExtraction, phaseStart)

	strat, err := p.selector.Select(p.cfg.Strategy, doc.Text)
	if err != nil {
		return nil, err
	}
	strategyName = strat.Name()

	phaseStart = time.Now()
	questions, err := strat.Extract(doc.Text)
	if err != nil {
		return nil, phaseErr(PhaseQuestions, core.ErrNoQuestionsFound, err)
	}
	p.observePhase(PhaseQuestions, phaseStart)
	logger.Info("extracted questions", "strategy", strategyName, "questions", len(questions))

	if strat.RequiresIndex() {
		phaseStart = time.Now()
		chunks, err := p.pipeline.Index(ctx, doc, collection)
		if err != nil {
			return nil, phaseErr(PhaseIndexing, nil, err)
		}
		p.observePhase(PhaseIndexing, phaseStart)
		logger.Info("indexed document", "chunks", chunks)
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	phaseStart = time.Now()
	answers := strat.Answer(ctx, questions, doc, collection)
	p.observePhase(PhaseAnswering, phaseStart)

	result = &core.Result{
		Message:        messageProcessed,
		DocumentID:     doc.ID,
		Strategy:       strategyName,
		QuestionsCount: len(answers),
		Answers:        answers,
	}

	phaseStart = time.Now()
	path, err := p.renderer.Render(answers, doc.ID)
	if err != nil {
		logger.Error("rendering failed", "err", err)
		result.Message = messageRenderFailed
		return result, phaseErr(PhaseRendering, core.ErrRender, err)
	}
	p.observePhase(PhaseRendering, phaseStart)
	result.FilePath = path

	logger.Info("processed document", "answers", len(answers), "failed", failedCount(answers), "path", path)
	return result, nil
}

// Search returns up to k chunks from clientKey's collection nearest to query.
func (p *Processor) Search(ctx context.Context, clientKey, query string, k int) ([]core.SearchHit, error) {
	return p.SearchWithMonitor(ctx, clientKey, query, k, nil)
}

// SearchWithMonitor is Search reporting each retrieval stage to monitor.
// A nil monitor is ignored.
func (p *Processor) SearchWithMonitor(ctx context.Context, clientKey, query string, k int, monitor search.SearchMonitor) ([]core.SearchHit, error) {
	collection, err := p.namer.Collection(clientKey)
	if err != nil {
		return nil, err
	}
	if k <= 0 {
		k = search.DefaultLimit
	}
	return p.retriever.RetrieveWithMonitor(ctx, collection, query, k, monitor)
}

// phaseErr prefixes err with phase and guarantees it matches class.
func phaseErr(phase string, class, err error) error {
	if class != nil && !errors.Is(err, class) {
		return fmt.Errorf("%s: %w: %w", phase, class, err)
	}
	return fmt.Errorf("%s: %w", phase, err)
}

func (p *Processor) observePhase(phase string, start time.Time) {
	if p.metrics != nil {
		p.metrics.ObservePhase(phase, time.Since(start))
	}
}

func (p *Processor) observeDocument(strategyName string, err error) {
	if p.metrics == nil {
		return
	}
	status := metrics.StatusOK
	if err != nil {
		status = metrics.StatusFailed
	}
	p.metrics.ObserveDocument(strategyName, status)
}

func failedCount(answers []core.Answer) int {
	n := 0
	for i := range answers {
		if answers[i].Failed() {
			n++
		}
	}
	return n
}
