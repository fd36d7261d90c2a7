// Package recall keeps an embedded vector archive of past maintenance
// exchanges. The agent queries it before each completion and injects
// similar earlier requests into the system prompt, so the copilot can
// connect a new report to history ("room 204 reported this last week").
package recall

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	chromem "github.com/philippgille/chromem-go"

	"github.com/lumenstay/copilot/logging"
	"github.com/lumenstay/copilot/search"
)

const (
	defaultLimit         = 5
	defaultMinSimilarity = 0.6
)

// Options tunes retrieval.
type Options struct {
	// Limit caps how many past exchanges are injected. <= 0 uses 5.
	Limit int
	// MinSimilarity drops weakly related exchanges. <= 0 uses 0.6.
	MinSimilarity float32
}

// Archive stores and retrieves exchanges in a chromem-go database.
// Exchanges share one collection so a session can surface requests
// reported in other sessions.
type Archive struct {
	db       *chromem.DB
	embedder search.Embedder
	opts     Options
	log      *logging.Logger

	mu  sync.Mutex
	col *chromem.Collection
}

// New creates an in-memory archive using the given embedder.
func New(embedder search.Embedder, opts Options, log *logging.Logger) *Archive {
	if opts.Limit <= 0 {
		opts.Limit = defaultLimit
	}
	if opts.MinSimilarity <= 0 {
		opts.MinSimilarity = defaultMinSimilarity
	}
	return &Archive{
		db:       chromem.NewDB(),
		embedder: embedder,
		opts:     opts,
		log:      log.Sub("recall"),
	}
}

func (a *Archive) collection() (*chromem.Collection, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.col != nil {
		return a.col, nil
	}
	col, err := a.db.CreateCollection("exchanges", nil, nil)
	if err != nil {
		return nil, fmt.Errorf("create collection: %w", err)
	}
	a.col = col
	return col, nil
}

// Record archives one exchange. Failures are returned but callers treat
// them as non-fatal; the conversation already succeeded.
func (a *Archive) Record(ctx context.Context, sessionID, userText, assistantText string) error {
	if strings.TrimSpace(userText) == "" {
		return nil
	}
	col, err := a.collection()
	if err != nil {
		return err
	}

	content := fmt.Sprintf("Guest: %s\nCopilot: %s", userText, assistantText)
	vec, err := a.embedder.Embed(ctx, content)
	if err != nil {
		return fmt.Errorf("embed exchange: %w", err)
	}

	doc := chromem.Document{
		ID:        uuid.New().String(),
		Content:   content,
		Embedding: vec,
		Metadata: map[string]string{
			"session_id": sessionID,
			"created_at": time.Now().UTC().Format(time.RFC3339),
		},
	}
	if err := col.AddDocument(ctx, doc); err != nil {
		return fmt.Errorf("add document: %w", err)
	}
	return nil
}

// Retrieve formats the most similar archived exchanges as a prompt
// block, or "" when nothing qualifies.
func (a *Archive) Retrieve(ctx context.Context, query string) (string, error) {
	col, err := a.collection()
	if err != nil {
		return "", err
	}
	if col.Count() == 0 {
		return "", nil
	}

	vec, err := a.embedder.Embed(ctx, query)
	if err != nil {
		return "", fmt.Errorf("embed query: %w", err)
	}

	// chromem rejects nResults larger than the collection, so clamp.
	limit := a.opts.Limit
	if n := col.Count(); n < limit {
		limit = n
	}
	results, err := col.QueryEmbedding(ctx, vec, limit, nil, nil)
	if err != nil {
		return "", fmt.Errorf("query archive: %w", err)
	}

	var lines []string
	for _, res := range results {
		if res.Similarity < a.opts.MinSimilarity {
			continue
		}
		lines = append(lines, "- "+strings.ReplaceAll(res.Content, "\n", " / "))
	}
	if len(lines) == 0 {
		return "", nil
	}
	a.log.Debug().Int("matches", len(lines)).Msg("recalled past exchanges")
	return "Similar past maintenance exchanges:\n" + strings.Join(lines, "\n"), nil
}
