// Package qdrant implements storage.VectorIndex against a Qdrant server's
// REST API.
package qdrant

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/poiesic/examscribe/core"
	"github.com/poiesic/examscribe/storage"
)

// Options configures the Qdrant client.
type Options struct {
	// Endpoint is the server base URL. Default: http://localhost:6333
	Endpoint string
	// APIKey is sent in the api-key header when set.
	APIKey string
	// Timeout bounds every HTTP request. Default: 30s
	Timeout time.Duration
	// HTTPClient overrides the client built from Timeout.
	HTTPClient *http.Client
	Logger     *slog.Logger
}

// Index is a Qdrant-backed vector index.
type Index struct {
	client   *http.Client
	endpoint string
	apiKey   string
	logger   *slog.Logger
}

var _ storage.VectorIndex = (*Index)(nil)

// New returns a Qdrant index. It performs no I/O.
func New(opts Options) (storage.VectorIndex, error) {
	endpoint := opts.Endpoint
	if endpoint == "" {
		endpoint = "http://localhost:6333"
	}
	if !strings.HasPrefix(endpoint, "http://") && !strings.HasPrefix(endpoint, "https://") {
		endpoint = "http://" + endpoint
	}
	if _, err := url.Parse(endpoint); err != nil {
		return nil, fmt.Errorf("qdrant endpoint: %w", err)
	}

	client := opts.HTTPClient
	if client == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = 30 * time.Second
		}
		client = &http.Client{Timeout: timeout}
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default().With("component", "qdrant-index")
	}

	return &Index{
		client:   client,
		endpoint: strings.TrimSuffix(endpoint, "/"),
		apiKey:   opts.APIKey,
		logger:   logger,
	}, nil
}

// Close is a no-op; the HTTP client holds no resources that need release.
func (i *Index) Close() error {
	return nil
}

// EnsureCollection creates the collection with cosine distance unless it exists.
func (i *Index) EnsureCollection(ctx context.Context, name string, dim int) error {
	if err := core.ValidateCollection(name, dim); err != nil {
		return err
	}

	status, _, err := i.do(ctx, http.MethodGet, collectionPath(name), nil)
	if err != nil {
		return err
	}
	switch {
	case status == http.StatusOK:
		return nil
	case status != http.StatusNotFound:
		return fmt.Errorf("%w: qdrant get collection %q: status %d", core.ErrExternalService, name, status)
	}

	body := map[string]any{
		"vectors": map[string]any{
			"size":     dim,
			"distance": "Cosine",
		},
	}
	status, raw, err := i.do(ctx, http.MethodPut, collectionPath(name), body)
	if err != nil {
		return err
	}
	if status == http.StatusConflict || alreadyExists(raw) {
		// Lost a creation race to a concurrent run.
		return nil
	}
	if status >= 300 {
		return fmt.Errorf("%w: qdrant create collection %q: status %d: %s", core.ErrExternalService, name, status, raw)
	}
	i.logger.Info("created collection", "collection", name, "dimension", dim)
	return nil
}

func alreadyExists(raw []byte) bool {
	return bytes.Contains(bytes.ToLower(raw), []byte("already exists"))
}

type pointPayload struct {
	Text       string `json:"text"`
	DocumentID string `json:"document_id"`
	ChunkIndex int    `json:"chunk_index"`
}

type pointStruct struct {
	ID      string       `json:"id"`
	Vector  []float32    `json:"vector"`
	Payload pointPayload `json:"payload"`
}

// Upsert writes points and waits for the server to apply them.
// Dimensionality is checked by the server against the collection schema;
// empty vectors and text are rejected locally.
func (i *Index) Upsert(ctx context.Context, collection string, points []core.Point) error {
	if len(points) == 0 {
		return nil
	}

	batch := make([]pointStruct, len(points))
	for n, p := range points {
		if err := core.ValidatePoint(&p, len(p.Vector)); err != nil {
			return fmt.Errorf("point %d: %w", n, err)
		}
		id := p.ID
		if id == "" {
			id = core.NewID()
		}
		batch[n] = pointStruct{
			ID:     id,
			Vector: p.Vector,
			Payload: pointPayload{
				Text:       p.Text,
				DocumentID: p.DocumentID,
				ChunkIndex: p.ChunkIndex,
			},
		}
	}

	status, raw, err := i.do(ctx, http.MethodPut, collectionPath(collection)+"/points?wait=true", map[string]any{"points": batch})
	if err != nil {
		return err
	}
	switch {
	case status == http.StatusNotFound:
		return fmt.Errorf("%w: %q", storage.ErrCollectionNotFound, collection)
	case status == http.StatusBadRequest && bytes.Contains(bytes.ToLower(raw), []byte("dimension")):
		return fmt.Errorf("%w: %s", core.ErrDimensionMismatch, raw)
	case status >= 300:
		return fmt.Errorf("%w: qdrant upsert %d points into %q: status %d: %s", core.ErrExternalService, len(batch), collection, status, raw)
	}
	i.logger.Debug("upserted points", "collection", collection, "count", len(batch))
	return nil
}

type searchResponse struct {
	Result []struct {
		ID      any          `json:"id"`
		Score   float32      `json:"score"`
		Payload pointPayload `json:"payload"`
	} `json:"result"`
}

// Search runs a top-k cosine query.
func (i *Index) Search(ctx context.Context, collection string, vector []float32, k int) ([]core.SearchHit, error) {
	if len(vector) == 0 {
		return nil, fmt.Errorf("%w: %w", storage.ErrInvalidQuery, core.ErrEmptyVector)
	}
	if k <= 0 {
		return []core.SearchHit{}, nil
	}

	body := map[string]any{
		"vector":       vector,
		"limit":        k,
		"with_payload": true,
		"with_vector":  false,
	}
	status, raw, err := i.do(ctx, http.MethodPost, collectionPath(collection)+"/points/search", body)
	if err != nil {
		return nil, err
	}
	if status == http.StatusNotFound {
		return []core.SearchHit{}, nil
	}
	if status >= 300 {
		return nil, fmt.Errorf("%w: qdrant search %q: status %d: %s", core.ErrExternalService, collection, status, raw)
	}

	var resp searchResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, fmt.Errorf("%w: qdrant search %q: decode: %w", core.ErrExternalService, collection, err)
	}

	// Re-rank locally so ties break by point ID like the embedded backend.
	candidates := make([]storage.ScoredPoint, len(resp.Result))
	for n, r := range resp.Result {
		candidates[n] = storage.ScoredPoint{
			ID: fmt.Sprint(r.ID),
			Hit: core.SearchHit{
				Text:       r.Payload.Text,
				Score:      r.Score,
				DocumentID: r.Payload.DocumentID,
			},
		}
	}
	return storage.TopK(candidates, k), nil
}

func collectionPath(name string) string {
	return "/collections/" + url.PathEscape(name)
}

// do sends a JSON request and returns the status and body. Transport
// failures are wrapped with core.ErrExternalService.
func (i *Index) do(ctx context.Context, method, path string, body any) (int, []byte, error) {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return 0, nil, err
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, i.endpoint+path, reader)
	if err != nil {
		return 0, nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if i.apiKey != "" {
		req.Header.Set("api-key", i.apiKey)
	}

	resp, err := i.client.Do(req)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return 0, nil, err
		}
		return 0, nil, fmt.Errorf("%w: qdrant %s %s: %w", core.ErrExternalService, method, path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, fmt.Errorf("%w: qdrant %s %s: read body: %w", core.ErrExternalService, method, path, err)
	}
	return resp.StatusCode, raw, nil
}
