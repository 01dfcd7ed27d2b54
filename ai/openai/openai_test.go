package openai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/poiesic/examscribe/ai"
	"github.com/poiesic/examscribe/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeAPI serves the two OpenAI endpoints the provider talks to.
func fakeAPI(t *testing.T, dim int, completion string) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/embeddings", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Input []string `json:"input"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		data := make([]map[string]any, len(req.Input))
		for i := range req.Input {
			vec := make([]float32, dim)
			vec[i%dim] = 1
			data[i] = map[string]any{"object": "embedding", "index": i, "embedding": vec}
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{"object": "list", "data": data, "model": "test"})
	})
	mux.HandleFunc("/v1/chat/completions", func(w http.ResponseWriter, r *http.Request) {
		if completion == "" {
			http.Error(w, `{"error":{"message":"boom"}}`, http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"id":     "cmpl-1",
			"object": "chat.completion",
			"model":  "test",
			"choices": []map[string]any{{
				"index":         0,
				"finish_reason": "stop",
				"message":       map[string]any{"role": "assistant", "content": completion},
			}},
		})
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func testConfig(host string, dim int) *ai.Config {
	return ai.NewConfig(
		ai.WithHost(host),
		ai.WithAPIKey("test"),
		ai.WithEmbeddingDimension(dim),
		ai.WithTimeout(5*time.Second),
	)
}

func TestEmbedderEmbedTexts(t *testing.T) {
	srv := fakeAPI(t, 4, "unused")
	embedder, err := NewEmbedder(testConfig(srv.URL, 4))
	require.NoError(t, err)

	vectors, err := embedder.EmbedTexts(context.Background(), []string{"alpha", "beta", "gamma"})
	require.NoError(t, err)
	require.Len(t, vectors, 3)
	for _, v := range vectors {
		assert.Len(t, v, 4)
	}
	assert.Equal(t, 4, embedder.Dimension())
}

func TestEmbedderEmptyInput(t *testing.T) {
	embedder, err := NewEmbedder(testConfig("http://127.0.0.1:1", 4))
	require.NoError(t, err)

	vectors, err := embedder.EmbedTexts(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, vectors)
}

func TestEmbedderDimensionMismatch(t *testing.T) {
	srv := fakeAPI(t, 3, "unused")
	embedder, err := NewEmbedder(testConfig(srv.URL, 8))
	require.NoError(t, err)

	_, err = embedder.EmbedText(context.Background(), "alpha")
	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrExternalService)
}

func TestGeneratorGenerate(t *testing.T) {
	srv := fakeAPI(t, 4, "  Photosynthesis converts light to chemical energy.\n")
	gen, err := NewGenerator(testConfig(srv.URL, 4))
	require.NoError(t, err)

	answer, err := gen.Generate(context.Background(), "Explain photosynthesis", ai.GenerateOptions{Temperature: 0.3, MaxTokens: 100})
	require.NoError(t, err)
	assert.Equal(t, "Photosynthesis converts light to chemical energy.", answer)
}

func TestGeneratorServerError(t *testing.T) {
	srv := fakeAPI(t, 4, "")
	gen, err := NewGenerator(testConfig(srv.URL, 4))
	require.NoError(t, err)

	_, err = gen.Generate(context.Background(), "Explain photosynthesis", ai.GenerateOptions{})
	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrExternalService)
}

func TestCheckVectors(t *testing.T) {
	tests := []struct {
		name    string
		vectors [][]float32
		want    int
		dim     int
		wantErr bool
	}{
		{"matching", [][]float32{{1, 0}, {0, 1}}, 2, 2, false},
		{"too few", [][]float32{{1, 0}}, 2, 2, true},
		{"wrong dimension", [][]float32{{1, 0}, {0, 1, 0}}, 2, 2, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := checkVectors(tt.vectors, tt.want, tt.dim)
			if tt.wantErr {
				assert.ErrorIs(t, err, core.ErrExternalService)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestNewProviderValidatesConfig(t *testing.T) {
	_, err := NewProvider(&ai.Config{})
	assert.Error(t, err)

	provider, err := NewProvider(testConfig("http://localhost:11434", 4))
	require.NoError(t, err)
	assert.NotNil(t, provider.Embedder())
	assert.NotNil(t, provider.Generator())
	assert.NoError(t, provider.Close())
}

func TestNewLimiter(t *testing.T) {
	assert.Equal(t, 1, newLimiter(0.5).Burst())
	assert.Equal(t, 4, newLimiter(4).Burst())
	assert.True(t, newLimiter(0).Allow())
}
