// Package embedcollab talks to the embedding-model collaborator (spec.md
// §6.4): a POST of {input, model} answered with {data: [{embedding}]}. It
// owns the single-flight guard and per-process embedding cache C1 relies on
// (spec.md §4.1: "at most one in-flight embedding request per cache key"),
// adapted from the teacher's pkg/embedding client shape — a thin HTTP
// client wrapped in resilience policies, constructed once at the
// composition root.
package embedcollab

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/corkum-labs/graphcore/internal/apperr"
	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/singleflight"
)

// Client requests query embeddings from the collaborator, deduplicating
// concurrent requests for identical normalized text and memoizing results
// in a bounded L1 cache.
type Client struct {
	httpClient *http.Client
	endpoint   string
	model      string
	dimension  int

	group singleflight.Group
	cache *lru.Cache[string, []float32]
}

// New constructs a collaborator client. cacheSize bounds the embedding L1
// cache (spec.md §4.2: default 10,000 entries).
func New(endpoint, model string, dimension, cacheSize int, timeout time.Duration) (*Client, error) {
	cache, err := lru.New[string, []float32](cacheSize)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindInternal, err, "embedcollab: constructing cache")
	}
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		endpoint:   endpoint,
		model:      model,
		dimension:  dimension,
		cache:      cache,
	}, nil
}

type embedRequest struct {
	Input []string `json:"input"`
	Model string   `json:"model"`
}

type embedDatum struct {
	Embedding []float32 `json:"embedding"`
}

type embedResponse struct {
	Data []embedDatum `json:"data"`
}

// NormalizeKey derives the cache key for query text: trimmed and
// lower-cased before hashing, so "Foo " and "foo" share one embedding
// (spec.md §4.1: "keyed by the SHA-256 of the normalized query").
func NormalizeKey(text string) string {
	normalized := strings.ToLower(strings.TrimSpace(text))
	sum := sha256.Sum256([]byte(normalized))
	return hex.EncodeToString(sum[:])
}

// Embed returns the embedding for text, serving from cache when present
// and deduplicating concurrent misses for the same key via single-flight.
func (c *Client) Embed(ctx context.Context, text string) ([]float32, error) {
	key := NormalizeKey(text)
	if v, ok := c.cache.Get(key); ok {
		return v, nil
	}

	v, err, _ := c.group.Do(key, func() (any, error) {
		if v, ok := c.cache.Get(key); ok {
			return v, nil
		}
		vec, err := c.fetch(ctx, text)
		if err != nil {
			return nil, err
		}
		c.cache.Add(key, vec)
		return vec, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]float32), nil
}

func (c *Client) fetch(ctx context.Context, text string) ([]float32, error) {
	body, err := json.Marshal(embedRequest{Input: []string{text}, Model: c.model})
	if err != nil {
		return nil, apperr.Wrap(apperr.KindInternal, err, "embedcollab: marshaling request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, apperr.Wrap(apperr.KindInternal, err, "embedcollab: building request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindUnavailable, err, "embedcollab: request failed")
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, apperr.New(apperr.KindDependencyFailed, fmt.Sprintf("embedcollab: unexpected status %d", resp.StatusCode))
	}

	var parsed embedResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, apperr.Wrap(apperr.KindDependencyFailed, err, "embedcollab: malformed response body")
	}
	if len(parsed.Data) == 0 {
		return nil, apperr.New(apperr.KindDependencyFailed, "embedcollab: empty data array")
	}
	vec := parsed.Data[0].Embedding
	if c.dimension > 0 && len(vec) != c.dimension {
		return nil, apperr.New(apperr.KindInvalidInput, fmt.Sprintf("embedcollab: embedding dimension %d, want %d", len(vec), c.dimension))
	}
	return vec, nil
}

// Len reports the number of cached embedding vectors, for the cache-stats
// debug endpoint.
func (c *Client) Len() int { return c.cache.Len() }
