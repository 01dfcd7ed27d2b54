package openai

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/poiesic/examscribe/ai"
	"github.com/poiesic/examscribe/core"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"
	"golang.org/x/time/rate"
)

// Generator implements ai.Generator using OpenAI-compatible chat completion APIs.
type Generator struct {
	llm     llms.Model
	timeout time.Duration
	limiter *rate.Limiter
	logger  *slog.Logger
}

func newGenerator(config *ai.Config, limiter *rate.Limiter) (*Generator, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	client, err := openai.New(
		openai.WithBaseURL(config.GenerationHost),
		openai.WithToken(token(config)),
		openai.WithModel(config.GenerationModel),
	)
	if err != nil {
		return nil, err
	}

	return &Generator{
		llm:     client,
		timeout: config.Timeout,
		limiter: limiter,
		logger:  slog.Default().With("component", "openai-generator"),
	}, nil
}

// NewGenerator creates a new completion service using the provided configuration.
//
// Returns ai.Generator interface to enforce abstraction.
func NewGenerator(config *ai.Config) (ai.Generator, error) {
	return newGenerator(config, newLimiter(config.RequestsPerSecond))
}

// Generate returns the trimmed completion for prompt.
func (g *Generator) Generate(ctx context.Context, prompt string, opts ai.GenerateOptions) (string, error) {
	g.logger.Debug("generating completion", "prompt_length", len(prompt), "max_tokens", opts.MaxTokens)

	callOpts := []llms.CallOption{llms.WithTemperature(opts.Temperature)}
	if opts.MaxTokens > 0 {
		callOpts = append(callOpts, llms.WithMaxTokens(opts.MaxTokens))
	}

	var completion string
	err := call(ctx, g.limiter, g.timeout, func(ctx context.Context) error {
		var err error
		completion, err = llms.GenerateFromSinglePrompt(ctx, g.llm, prompt, callOpts...)
		return err
	})
	if err != nil {
		g.logger.Error("completion failed", "err", err)
		return "", fmt.Errorf("%w: generate: %w", core.ErrExternalService, err)
	}

	completion = strings.TrimSpace(completion)
	if completion == "" {
		return "", fmt.Errorf("%w: empty completion", core.ErrExternalService)
	}
	return completion, nil
}
