package search

import (
	"context"
	"fmt"
	"strings"

	"github.com/lumenstay/copilot/core"
	"github.com/lumenstay/copilot/logging"
)

// Service pairs an embedder with an index: vectorize text, search by
// vector, and add new records in one step.
type Service struct {
	embedder Embedder
	index    *Index
	log      *logging.Logger
}

// NewService builds a search service over the given embedder and index.
func NewService(embedder Embedder, index *Index, log *logging.Logger) *Service {
	return &Service{embedder: embedder, index: index, log: log.Sub("search")}
}

// Vectorize turns text into an embedding vector. Empty or
// whitespace-only text fails with core.ErrInvalidInput; provider
// failures pass through unchanged.
func (s *Service) Vectorize(ctx context.Context, text string) ([]float32, error) {
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("%w: text is empty", core.ErrInvalidInput)
	}
	vec, err := s.embedder.Embed(ctx, text)
	if err != nil {
		return nil, err
	}
	return vec, nil
}

// Search ranks indexed records against the query vector. maxResults <= 0
// returns everything above minScore; this is the boundary where that
// default must hold exactly.
func (s *Service) Search(vector []float32, maxResults int, minScore float64) ([]Result, error) {
	results, err := s.index.Query(vector, maxResults, minScore)
	if err != nil {
		return nil, err
	}
	s.log.Debug().Int("results", len(results)).Float64("min_score", minScore).Msg("vector search")
	return results, nil
}

// Add vectorizes text and inserts it under the given id with an opaque
// payload.
func (s *Service) Add(ctx context.Context, id, text string, payload any) error {
	vec, err := s.Vectorize(ctx, text)
	if err != nil {
		return err
	}
	return s.index.Insert(Record{ID: id, Vector: vec, Payload: payload})
}
