package vectorindex

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"research-compass/internal/config"
	"research-compass/internal/domain/ports/adapter"
)

var _ adapter.VectorIndex = (*QdrantIndex)(nil)

// QdrantIndex talks to Qdrant over its REST API. The surface used here is
// small enough that a hand-rolled HTTP client beats pulling in the gRPC SDK.
type QdrantIndex struct {
	baseURL string
	apiKey  string
	http    *http.Client
	log     *zerolog.Logger
}

func NewQdrantIndex(cfg *config.VectorConfig, logger *zerolog.Logger) *QdrantIndex {
	ql := logger.With().Str("component", "QdrantIndex").Logger()
	return &QdrantIndex{
		baseURL: cfg.BaseURL,
		apiKey:  cfg.APIKey,
		http:    &http.Client{Timeout: 30 * time.Second},
		log:     &ql,
	}
}

// EnsureCollection creates the collection when absent. Safe to call on every
// startup.
func (q *QdrantIndex) EnsureCollection(ctx context.Context, name string, dimensions int) error {
	status, _, err := q.do(ctx, http.MethodGet, "/collections/"+name, nil)
	if err != nil {
		return fmt.Errorf("check collection %s: %w", name, err)
	}
	if status == http.StatusOK {
		return nil
	}
	body := map[string]any{
		"vectors": map[string]any{
			"size":     dimensions,
			"distance": "Cosine",
		},
	}
	status, raw, err := q.do(ctx, http.MethodPut, "/collections/"+name, body)
	if err != nil {
		return fmt.Errorf("create collection %s: %w", name, err)
	}
	if status != http.StatusOK {
		return fmt.Errorf("create collection %s: status %d: %s", name, status, raw)
	}
	q.log.Info().Str("collection", name).Int("dimensions", dimensions).Msg("collection created")
	return nil
}

func (q *QdrantIndex) Upsert(ctx context.Context, collection string, points []adapter.Point) error {
	if len(points) == 0 {
		return nil
	}
	body := map[string]any{"points": points}
	status, raw, err := q.do(ctx, http.MethodPut, "/collections/"+collection+"/points?wait=true", body)
	if err != nil {
		return fmt.Errorf("upsert points: %w", err)
	}
	if status != http.StatusOK {
		return fmt.Errorf("upsert points: status %d: %s", status, raw)
	}
	return nil
}

func (q *QdrantIndex) do(ctx context.Context, method, path string, body any) (int, []byte, error) {
	var rd io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return 0, nil, fmt.Errorf("marshal body: %w", err)
		}
		rd = bytes.NewReader(buf)
	}
	req, err := http.NewRequestWithContext(ctx, method, q.baseURL+path, rd)
	if err != nil {
		return 0, nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if q.apiKey != "" {
		req.Header.Set("api-key", q.apiKey)
	}
	resp, err := q.http.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return resp.StatusCode, nil, err
	}
	return resp.StatusCode, raw, nil
}
