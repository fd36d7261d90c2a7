package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lumenstay/copilot/agent"
	"github.com/lumenstay/copilot/llm"
	"github.com/lumenstay/copilot/logging"
	"github.com/lumenstay/copilot/search"
	"github.com/lumenstay/copilot/search/embedder/mock"
	"github.com/lumenstay/copilot/store"
	"github.com/lumenstay/copilot/tools"
)

type fixture struct {
	server    *Server
	repo      store.Repository
	svc       *search.Service
	completer *llm.MockCompleter
	router    http.Handler
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	repo, err := store.NewSQLite(filepath.Join(t.TempDir(), "api.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = repo.Close() })

	svc := search.NewService(mock.New(8), search.NewIndex(), logging.Nop())

	registry := tools.NewRegistry()
	require.NoError(t, tools.RegisterMaintenanceTools(registry, repo, svc))

	completer := &llm.MockCompleter{}
	copilot := agent.New(completer, registry, logging.Nop())

	server := New(repo, svc, copilot, logging.Nop())
	return &fixture{
		server:    server,
		repo:      repo,
		svc:       svc,
		completer: completer,
		router:    server.Router(),
	}
}

func (f *fixture) do(t *testing.T, req *http.Request) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func TestRootGreeting(t *testing.T) {
	f := newFixture(t)
	rec := f.do(t, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Welcome")
}

func TestHotelsEndpoint(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, store.SeedDemoData(ctx, f.repo))

	rec := f.do(t, httptest.NewRequest(http.MethodGet, "/Hotels", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var hotels []store.Hotel
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &hotels))
	assert.NotEmpty(t, hotels)
}

func TestBookingsEndpointValidation(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, httptest.NewRequest(http.MethodGet, "/Hotels/abc/Bookings", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.do(t, httptest.NewRequest(http.MethodGet, "/Hotels/1/Bookings/not-a-date", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.do(t, httptest.NewRequest(http.MethodGet, "/Hotels/1/Bookings", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = f.do(t, httptest.NewRequest(http.MethodGet, "/Hotels/1/Bookings/2026-08-01", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestVectorizeEndpoint(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, httptest.NewRequest(http.MethodGet, "/Vectorize?text=leaking+faucet", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var vec []float32
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &vec))
	assert.Len(t, vec, 8)

	rec = f.do(t, httptest.NewRequest(http.MethodGet, "/Vectorize", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestVectorSearchEndpoint(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.svc.Add(ctx, "req-1", "the faucet is leaking", map[string]string{"room": "204"}))

	vec, err := f.svc.Vectorize(ctx, "the faucet is leaking")
	require.NoError(t, err)
	body, err := json.Marshal(vec)
	require.NoError(t, err)

	// Defaults: max_results 0 (all), minimum similarity 0.8. The exact
	// query vector scores 1.0 against its own record.
	rec := f.do(t, httptest.NewRequest(http.MethodPost, "/VectorSearch", bytes.NewReader(body)))
	require.Equal(t, http.StatusOK, rec.Code)

	var results []search.Result
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &results))
	require.Len(t, results, 1)
	assert.Equal(t, "req-1", results[0].Record.ID)
	assert.InDelta(t, 1.0, results[0].Score, 1e-6)
	// Each hit is a {record, score} pair and raw vectors stay internal.
	assert.Contains(t, rec.Body.String(), `"record"`)
	assert.NotContains(t, rec.Body.String(), "Vector")

	// A raised threshold that nothing meets yields an empty list.
	rec = f.do(t, httptest.NewRequest(http.MethodPost,
		"/VectorSearch?minimum_similarity_score=1.5", bytes.NewReader(body)))
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &results))
	assert.Empty(t, results)

	rec = f.do(t, httptest.NewRequest(http.MethodPost, "/VectorSearch", strings.NewReader("not json")))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.do(t, httptest.NewRequest(http.MethodPost, "/VectorSearch", strings.NewReader("[1, 0]")))
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestChatEndpoint(t *testing.T) {
	f := newFixture(t)
	f.completer.Responses = []*llm.Response{{Text: "Happy to help with that."}}

	form := url.Values{"message": {"hello"}}
	req := httptest.NewRequest(http.MethodPost, "/Chat", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	rec := f.do(t, req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Happy to help with that.", rec.Body.String())
}

func TestChatEndpointRejectsEmptyMessage(t *testing.T) {
	f := newFixture(t)

	req := httptest.NewRequest(http.MethodPost, "/Chat", strings.NewReader(""))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	rec := f.do(t, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCopilotChatSessionHeader(t *testing.T) {
	f := newFixture(t)
	f.completer.Responses = []*llm.Response{
		{Text: "Noted the leak in 204."},
		{Text: "Anything else?"},
	}

	req := httptest.NewRequest(http.MethodPost, "/MaintenanceCopilotChat",
		strings.NewReader("the faucet in 204 is leaking"))
	rec := f.do(t, req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Noted the leak in 204.", rec.Body.String())

	sessionID := rec.Header().Get("X-Session-Id")
	require.NotEmpty(t, sessionID)

	// A follow-up with the same session id lands in the same transcript.
	req = httptest.NewRequest(http.MethodPost, "/MaintenanceCopilotChat",
		strings.NewReader("thanks, that is all"))
	req.Header.Set("X-Session-Id", sessionID)
	rec = f.do(t, req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, sessionID, rec.Header().Get("X-Session-Id"))

	require.Len(t, f.completer.Requests, 2)
	assert.Greater(t, len(f.completer.Requests[1].History), len(f.completer.Requests[0].History))
}

func TestCopilotChatProviderFailure(t *testing.T) {
	f := newFixture(t)
	f.completer.Errs = []error{assert.AnError}

	req := httptest.NewRequest(http.MethodPost, "/MaintenanceCopilotChat", strings.NewReader("hi"))
	rec := f.do(t, req)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}
