// Package cached decorates an embedder with a ristretto cache. The
// cache is semantically transparent: identical text with an identical
// inner embedder yields the identical vector, fetched or cached.
package cached

import (
	"context"
	"fmt"

	"github.com/dgraph-io/ristretto"

	"github.com/lumenstay/copilot/search"
)

// Embedder caches vectors from an inner embedder keyed by input text.
type Embedder struct {
	inner search.Embedder
	cache *ristretto.Cache
}

// New wraps inner with a cache sized to roughly maxEntries vectors.
// maxEntries <= 0 defaults to 10_000.
func New(inner search.Embedder, maxEntries int64) (*Embedder, error) {
	if maxEntries <= 0 {
		maxEntries = 10_000
	}
	vectorCost := int64(inner.Dimensions()) * 4
	cache, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: maxEntries * 10,
		MaxCost:     maxEntries * vectorCost,
		BufferItems: 64,
	})
	if err != nil {
		return nil, fmt.Errorf("create embedding cache: %w", err)
	}
	return &Embedder{inner: inner, cache: cache}, nil
}

// Embed returns the cached vector when present, otherwise delegates and
// caches the result. Errors are never cached.
func (e *Embedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if hit, ok := e.cache.Get(text); ok {
		if vec, ok := hit.([]float32); ok {
			return vec, nil
		}
	}
	vec, err := e.inner.Embed(ctx, text)
	if err != nil {
		return nil, err
	}
	e.cache.Set(text, vec, int64(len(vec))*4)
	return vec, nil
}

// Dimensions returns the inner embedder's vector size.
func (e *Embedder) Dimensions() int { return e.inner.Dimensions() }

// Wait blocks until pending cache writes are applied. Tests use this to
// make cache behavior deterministic.
func (e *Embedder) Wait() { e.cache.Wait() }
