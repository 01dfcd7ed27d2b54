// Package config loads examscribe settings from defaults, an optional YAML
// file, a .env file and the process environment, in increasing priority.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/poiesic/examscribe/ai"
	"github.com/poiesic/examscribe/strategy"
	"github.com/poiesic/examscribe/tenancy"
	"gopkg.in/yaml.v3"
)

// Index backends.
const (
	BackendBadger = "badger"
	BackendQdrant = "qdrant"
)

// OpenAIConfig configures the OpenAI-compatible provider.
type OpenAIConfig struct {
	APIKey             string  `yaml:"api_key"`
	BaseURL            string  `yaml:"base_url"`
	GenerationModel    string  `yaml:"generation_model"`
	EmbeddingModel     string  `yaml:"embedding_model"`
	EmbeddingDimension int     `yaml:"embedding_dimension"`
	RequestsPerSecond  float64 `yaml:"requests_per_second"`
}

// ChunkingConfig configures document splitting.
type ChunkingConfig struct {
	Size    int `yaml:"size"`
	Overlap int `yaml:"overlap"`
}

// IndexConfig selects the vector index.
type IndexConfig struct {
	Backend      string `yaml:"backend"`
	Path         string `yaml:"path"`
	QdrantURL    string `yaml:"qdrant_url"`
	QdrantAPIKey string `yaml:"qdrant_api_key"`
}

// Config is the complete application configuration.
type Config struct {
	OpenAI   OpenAIConfig   `yaml:"openai"`
	Chunking ChunkingConfig `yaml:"chunking"`
	Index    IndexConfig    `yaml:"index"`

	Strategy    string        `yaml:"strategy"`
	Tenancy     string        `yaml:"tenancy"`
	Workers     int           `yaml:"workers"`
	CallTimeout time.Duration `yaml:"call_timeout"`
	MaxRetries  int           `yaml:"max_retries"`
	RetryDelay  time.Duration `yaml:"retry_delay"`

	OutputDir        string `yaml:"output_dir"`
	UnidocLicenseKey string `yaml:"unidoc_license_key"`
	ListenAddr       string `yaml:"listen_addr"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		OpenAI: OpenAIConfig{
			BaseURL:            "https://api.openai.com/v1",
			GenerationModel:    "gpt-4-turbo-preview",
			EmbeddingModel:     "text-embedding-3-large",
			EmbeddingDimension: 3072,
		},
		Chunking: ChunkingConfig{Size: 1000, Overlap: 200},
		Index: IndexConfig{
			Backend: BackendBadger,
			Path:    "examscribe_index",
		},
		Strategy:    strategy.NameStructured,
		Tenancy:     tenancy.NameSanitized,
		Workers:     4,
		CallTimeout: 30 * time.Second,
		MaxRetries:  3,
		RetryDelay:  time.Second,
		OutputDir:   "generated_pdfs",
		ListenAddr:  ":8000",
	}
}

// Load builds a Config from the defaults, the YAML file at path (skipped
// when path is empty), envFiles (".env" when none are given; missing files
// are ignored) and finally the process environment.
func Load(path string, envFiles ...string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	env, err := readEnvFiles(envFiles)
	if err != nil {
		return nil, err
	}
	for _, kv := range os.Environ() {
		if k, v, ok := strings.Cut(kv, "="); ok {
			env[k] = v
		}
	}
	if err := cfg.applyEnv(env); err != nil {
		return nil, err
	}
	return cfg, nil
}

func readEnvFiles(files []string) (map[string]string, error) {
	if len(files) == 0 {
		files = []string{".env"}
	}
	env := make(map[string]string)
	for _, f := range files {
		values, err := godotenv.Read(f)
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				continue
			}
			return nil, fmt.Errorf("read %s: %w", f, err)
		}
		for k, v := range values {
			env[k] = v
		}
	}
	return env, nil
}

// applyEnv overrides fields from env. Unset or empty keys keep their value.
func (c *Config) applyEnv(env map[string]string) error {
	p := envParser{env: env}

	p.str("OPENAI_API_KEY", &c.OpenAI.APIKey)
	p.str("OPENAI_BASE_URL", &c.OpenAI.BaseURL)
	p.str("GENERATION_MODEL", &c.OpenAI.GenerationModel)
	p.str("EMBEDDING_MODEL", &c.OpenAI.EmbeddingModel)
	p.int("EMBEDDING_DIMENSION", &c.OpenAI.EmbeddingDimension)
	p.float("REQUESTS_PER_SECOND", &c.OpenAI.RequestsPerSecond)

	p.int("CHUNK_SIZE", &c.Chunking.Size)
	p.int("CHUNK_OVERLAP", &c.Chunking.Overlap)

	p.str("INDEX_BACKEND", &c.Index.Backend)
	p.str("INDEX_PATH", &c.Index.Path)
	p.str("QDRANT_URL", &c.Index.QdrantURL)
	p.str("QDRANT_API_KEY", &c.Index.QdrantAPIKey)

	p.str("STRATEGY", &c.Strategy)
	p.str("TENANCY", &c.Tenancy)
	p.int("WORKERS", &c.Workers)
	p.duration("CALL_TIMEOUT", &c.CallTimeout)
	p.int("MAX_RETRIES", &c.MaxRetries)
	p.duration("RETRY_DELAY", &c.RetryDelay)

	p.str("OUTPUT_DIR", &c.OutputDir)
	p.str("UNIDOC_LICENSE_API_KEY", &c.UnidocLicenseKey)
	p.str("LISTEN_ADDR", &c.ListenAddr)

	return p.err
}

// envParser records the first parse failure and skips later keys.
type envParser struct {
	env map[string]string
	err error
}

func (p *envParser) lookup(key string) (string, bool) {
	if p.err != nil {
		return "", false
	}
	v := strings.TrimSpace(p.env[key])
	return v, v != ""
}

func (p *envParser) str(key string, dst *string) {
	if v, ok := p.lookup(key); ok {
		*dst = v
	}
}

func (p *envParser) int(key string, dst *int) {
	if v, ok := p.lookup(key); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			p.err = fmt.Errorf("%s: %w", key, err)
			return
		}
		*dst = n
	}
}

func (p *envParser) float(key string, dst *float64) {
	if v, ok := p.lookup(key); ok {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			p.err = fmt.Errorf("%s: %w", key, err)
			return
		}
		*dst = f
	}
}

func (p *envParser) duration(key string, dst *time.Duration) {
	if v, ok := p.lookup(key); ok {
		d, err := time.ParseDuration(v)
		if err != nil {
			p.err = fmt.Errorf("%s: %w", key, err)
			return
		}
		*dst = d
	}
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	switch {
	case c.OpenAI.BaseURL == "":
		return errors.New("config: OPENAI_BASE_URL is required")
	case c.OpenAI.GenerationModel == "":
		return errors.New("config: GENERATION_MODEL is required")
	case c.OpenAI.EmbeddingModel == "":
		return errors.New("config: EMBEDDING_MODEL is required")
	case c.OpenAI.EmbeddingDimension <= 0:
		return errors.New("config: EMBEDDING_DIMENSION must be positive")
	case c.OpenAI.RequestsPerSecond < 0:
		return errors.New("config: REQUESTS_PER_SECOND must not be negative")
	case c.Chunking.Size <= 0:
		return errors.New("config: CHUNK_SIZE must be positive")
	case c.Chunking.Overlap < 0 || c.Chunking.Overlap >= c.Chunking.Size:
		return errors.New("config: CHUNK_OVERLAP must be in [0, CHUNK_SIZE)")
	case !strategy.ValidName(c.Strategy):
		return fmt.Errorf("config: unknown STRATEGY %q", c.Strategy)
	case c.Workers < 1:
		return errors.New("config: WORKERS must be at least 1")
	case c.CallTimeout <= 0:
		return errors.New("config: CALL_TIMEOUT must be positive")
	case c.MaxRetries < 1:
		return errors.New("config: MAX_RETRIES must be at least 1")
	case c.RetryDelay < 0:
		return errors.New("config: RETRY_DELAY must not be negative")
	case c.OutputDir == "":
		return errors.New("config: OUTPUT_DIR is required")
	}

	if _, err := tenancy.New(c.Tenancy); err != nil {
		return fmt.Errorf("config: TENANCY: %w", err)
	}

	switch strings.ToLower(c.Index.Backend) {
	case BackendBadger:
		if c.Index.Path == "" {
			return errors.New("config: INDEX_PATH is required for the badger backend")
		}
	case BackendQdrant:
		if c.Index.QdrantURL == "" {
			return errors.New("config: QDRANT_URL is required for the qdrant backend")
		}
	default:
		return fmt.Errorf("config: unknown INDEX_BACKEND %q", c.Index.Backend)
	}
	return nil
}

// AIConfig converts the provider settings into an ai.Config.
func (c *Config) AIConfig() *ai.Config {
	return ai.NewConfig(
		ai.WithHost(c.OpenAI.BaseURL),
		ai.WithAPIKey(c.OpenAI.APIKey),
		ai.WithGenerationModel(c.OpenAI.GenerationModel),
		ai.WithEmbeddingModel(c.OpenAI.EmbeddingModel),
		ai.WithEmbeddingDimension(c.OpenAI.EmbeddingDimension),
		ai.WithTimeout(c.CallTimeout),
		ai.WithRequestsPerSecond(c.OpenAI.RequestsPerSecond),
	)
}
