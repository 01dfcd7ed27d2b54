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


package ai

import (
	"errors"
	"strings"
	"time"
)

// Config holds configuration for AI service providers.
type Config struct {
	// EmbeddingHost is the base URL for the embedding service API.
	// Example: "https://api.openai.com/v1" or "http://localhost:11434/v1"
	EmbeddingHost string

	// GenerationHost is the base URL for the chat completion service API.
	// Example: "https://api.openai.com/v1" or "http://localhost:11434/v1"
	GenerationHost string

	// APIKey authenticates against both services. Local OpenAI-compatible
	// servers usually accept any value; "none" is sent when empty.
	APIKey string

	// EmbeddingModel is the model identifier to use for text embeddings.
	// Example: "text-embedding-3-large"
	EmbeddingModel string

	// GenerationModel is the model identifier used to write answers.
	// Example: "gpt-4-turbo-preview", "qwen2.5:7b"
	GenerationModel string

	// EmbeddingDimension is the length of every vector the embedding model returns.
	// Default: 3072
	EmbeddingDimension int

	// EmbeddingBatchSize caps the number of texts sent in one embedding request.
	// Default: 512
	EmbeddingBatchSize int

	// Timeout bounds every embedding and generation call.
	// Default: 30s
	Timeout time.Duration

	// RequestsPerSecond throttles calls to the provider. Zero disables throttling.
	RequestsPerSecond float64
}

// ConfigOption is a functional option for configuring a Config.
type ConfigOption func(*Config)

// WithEmbeddingHost sets the embedding service host URL.
func WithEmbeddingHost(host string) ConfigOption {
	return func(c *Config) {
		c.EmbeddingHost = host
	}
}

// WithGenerationHost sets the generation service host URL.
func WithGenerationHost(host string) ConfigOption {
	return func(c *Config) {
		c.GenerationHost = host
	}
}

// WithHost sets both embedding and generation hosts to the same URL.
func WithHost(host string) ConfigOption {
	return func(c *Config) {
		c.EmbeddingHost = host
		c.GenerationHost = host
	}
}

// WithAPIKey sets the provider API key.
func WithAPIKey(key string) ConfigOption {
	return func(c *Config) {
		c.APIKey = key
	}
}

// WithEmbeddingModel sets the embedding model identifier.
func WithEmbeddingModel(model string) ConfigOption {
	return func(c *Config) {
		c.EmbeddingModel = model
	}
}

// WithGenerationModel sets the generation model identifier.
func WithGenerationModel(model string) ConfigOption {
	return func(c *Config) {
		c.GenerationModel = model
	}
}

// WithEmbeddingDimension sets the expected embedding vector length.
func WithEmbeddingDimension(dim int) ConfigOption {
	return func(c *Config) {
		c.EmbeddingDimension = dim
	}
}

// WithTimeout sets the per-call timeout.
func WithTimeout(timeout time.Duration) ConfigOption {
	return func(c *Config) {
		c.Timeout = timeout
	}
}

// WithRequestsPerSecond sets the provider call rate limit.
func WithRequestsPerSecond(rps float64) ConfigOption {
	return func(c *Config) {
		c.RequestsPerSecond = rps
	}
}

// DefaultConfig returns a Config targeting the hosted OpenAI API.
// By default, both embedding and generation use the same host.
func DefaultConfig() *Config {
	defaultHost := "https://api.openai.com/v1"
	return &Config{
		EmbeddingHost:      defaultHost,
		GenerationHost:     defaultHost,
		EmbeddingModel:     "text-embedding-3-large",
		GenerationModel:    "gpt-4-turbo-preview",
		EmbeddingDimension: 3072,
		EmbeddingBatchSize: 512,
		Timeout:            30 * time.Second,
	}
}

// NewConfig creates a Config with the default values and applies the provided options.
//
// Example:
//
//	cfg := NewConfig(
//	    WithHost("http://localhost:11434/v1"),
//	    WithEmbeddingModel("nomic-embed-text"),
//	    WithEmbeddingDimension(768),
//	)
func NewConfig(opts ...ConfigOption) *Config {
	cfg := DefaultConfig()
	for _, opt := range opts {
		opt(cfg)
	}
	return cfg
}

// Normalize ensures the configuration is in a canonical form.
// It adds the /v1 suffix to hosts if missing, which OpenAI-compatible
// servers (Ollama, LocalAI, vLLM) expect.
func (c *Config) Normalize() {
	c.EmbeddingHost = normalizeHost(c.EmbeddingHost)
	c.GenerationHost = normalizeHost(c.GenerationHost)
	if c.EmbeddingBatchSize <= 0 {
		c.EmbeddingBatchSize = 512
	}
}

func normalizeHost(host string) string {
	if host == "" || strings.HasSuffix(host, "/v1") {
		return host
	}
	return strings.TrimSuffix(host, "/") + "/v1"
}

// Validate checks that the configuration is valid and complete.
// It normalizes the configuration before validation.
func (c *Config) Validate() error {
	c.Normalize()

	if c.EmbeddingHost == "" {
		return errors.New("ai config: EmbeddingHost is required")
	}
	if c.GenerationHost == "" {
		return errors.New("ai config: GenerationHost is required")
	}
	if c.EmbeddingModel == "" {
		return errors.New("ai config: EmbeddingModel is required")
	}
	if c.GenerationModel == "" {
		return errors.New("ai config: GenerationModel is required")
	}
	if c.EmbeddingDimension <= 0 {
		return errors.New("ai config: EmbeddingDimension must be positive")
	}
	if c.Timeout <= 0 {
		return errors.New("ai config: Timeout must be positive")
	}
	if c.RequestsPerSecond < 0 {
		return errors.New("ai config: RequestsPerSecond cannot be negative")
	}
	return nil
}
