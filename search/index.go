// Package search implements embedding-based similarity search over
// maintenance request text: an embedder turns text into vectors, an
// in-memory index ranks stored records by cosine similarity.
package search

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"

	"github.com/lumenstay/copilot/core"
)

// Embedder converts text to a fixed-dimension vector. All vectors from
// one embedder share Dimensions().
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	Dimensions() int
}

// Record is one stored (id, vector, payload) entry. The raw vector is
// excluded from serialized results; only ids, payloads, and scores
// leave the index.
type Record struct {
	ID      string    `json:"id"`
	Vector  []float32 `json:"-"`
	Payload any       `json:"payload,omitempty"`
}

// Result is one ranked query hit. Score is cosine similarity in [-1, 1].
type Result struct {
	Record Record  `json:"record"`
	Score  float64 `json:"score"`
}

// Index is an in-memory similarity index. Queries may run concurrently;
// inserts are exclusive so a reader never observes a half-published
// record.
type Index struct {
	mu      sync.RWMutex
	dims    int
	records []Record
	ids     map[string]struct{}
}

// NewIndex creates an empty index. Dimensionality is fixed by the first
// inserted record.
func NewIndex() *Index {
	return &Index{ids: make(map[string]struct{})}
}

// Insert adds a record. Identifiers must be unique and vectors must
// match the index dimensionality.
func (x *Index) Insert(rec Record) error {
	if rec.ID == "" {
		return fmt.Errorf("%w: record id is empty", core.ErrInvalidInput)
	}
	if len(rec.Vector) == 0 {
		return fmt.Errorf("%w: record vector is empty", core.ErrInvalidInput)
	}

	x.mu.Lock()
	defer x.mu.Unlock()

	if _, exists := x.ids[rec.ID]; exists {
		return fmt.Errorf("%w: %s", core.ErrDuplicateKey, rec.ID)
	}
	if x.dims == 0 {
		x.dims = len(rec.Vector)
	} else if len(rec.Vector) != x.dims {
		return fmt.Errorf("%w: got %d, index has %d", core.ErrDimensionMismatch, len(rec.Vector), x.dims)
	}

	x.ids[rec.ID] = struct{}{}
	x.records = append(x.records, rec)
	return nil
}

// Len returns the number of stored records.
func (x *Index) Len() int {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return len(x.records)
}

// Query ranks all stored records by cosine similarity against vector,
// drops scores below minScore, and returns them best first. Ties are
// broken by insertion order, earlier record first, so ordering is
// deterministic. Records with a zero-norm vector have no defined
// similarity and are excluded.
//
// maxResults <= 0 means unbounded: every qualifying result is returned.
// This mirrors the boundary default where max_results is 0 when the
// caller omits it.
func (x *Index) Query(vector []float32, maxResults int, minScore float64) ([]Result, error) {
	if len(vector) == 0 {
		return nil, fmt.Errorf("%w: query vector is empty", core.ErrInvalidInput)
	}

	x.mu.RLock()
	defer x.mu.RUnlock()

	if x.dims != 0 && len(vector) != x.dims {
		return nil, fmt.Errorf("%w: query has %d, index has %d", core.ErrDimensionMismatch, len(vector), x.dims)
	}

	queryNorm := norm(vector)
	if queryNorm == 0 {
		return []Result{}, nil
	}

	results := make([]Result, 0, len(x.records))
	for _, rec := range x.records {
		recNorm := norm(rec.Vector)
		if recNorm == 0 {
			continue
		}
		score := dot(vector, rec.Vector) / (queryNorm * recNorm)
		if score < minScore {
			continue
		}
		results = append(results, Result{Record: rec, Score: score})
	}

	// Stable sort preserves insertion order among equal scores.
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})

	if maxResults > 0 && len(results) > maxResults {
		results = results[:maxResults]
	}
	return results, nil
}

func dot(a, b []float32) float64 {
	var sum float64
	for i := range a {
		sum += float64(a[i]) * float64(b[i])
	}
	return sum
}

func norm(v []float32) float64 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	return math.Sqrt(sum)
}
