// Copyright 2025 ChurchOps
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/churchops/datapilot/history"
	"github.com/churchops/datapilot/orchestrator"
	"github.com/churchops/datapilot/orchestrator/llm"
	"github.com/churchops/datapilot/shared/logger"
)

// stubProvider returns a fixed completion; healthy is togglable.
type stubProvider struct {
	content string
	healthy bool
}

func (p *stubProvider) Name() string    { return "stub" }
func (p *stubProvider) IsHealthy() bool { return p.healthy }

func (p *stubProvider) Complete(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	return &llm.CompletionResponse{Content: p.content}, nil
}

// memoryStore keeps history records in a slice.
type memoryStore struct {
	records []history.Record
	saveErr error
	listErr error
}

func (m *memoryStore) Save(ctx context.Context, record history.Record) error {
	if m.saveErr != nil {
		return m.saveErr
	}
	m.records = append(m.records, record)
	return nil
}

func (m *memoryStore) Recent(ctx context.Context, limit int) ([]history.Record, error) {
	if m.listErr != nil {
		return nil, m.listErr
	}
	if limit > len(m.records) {
		limit = len(m.records)
	}
	return m.records[:limit], nil
}

func testPipeline(t *testing.T, provider llm.Provider, peopleURL string) *orchestrator.EnhancedQueryOrchestrator {
	t.Helper()
	log := logger.New("test")

	catalog, err := orchestrator.NewRouteCatalog([]orchestrator.RouteIndex{
		{Service: "membershipapi", Method: "GET", Path: "/people", RouteKey: "membershipapi.GET./people"},
	})
	require.NoError(t, err)

	executorConfig := orchestrator.DefaultExecutorConfig()
	if peopleURL != "" {
		executorConfig.ServiceURLs["membershipapi"] = peopleURL
	}

	return orchestrator.NewEnhancedQueryOrchestrator(
		orchestrator.NewQueryClassifier(provider, orchestrator.DefaultClassifierConfig(), log),
		orchestrator.NewRouteSelector(catalog, orchestrator.DefaultSelectorConfig(), log),
		orchestrator.NewApiExecutor(executorConfig, log),
		orchestrator.NewDataProcessor(orchestrator.DefaultProcessorConfig(), log),
		orchestrator.NewAnswerSynthesizer(provider, log),
		nil,
		log,
	)
}

func TestHandleQuery(t *testing.T) {
	downstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode([]interface{}{
			map[string]interface{}{"id": "p1", "name": "Ann", "membershipStatus": "Staff"},
			map[string]interface{}{"id": "p2", "name": "Bob", "membershipStatus": "Member"},
		})
	}))
	defer downstream.Close()

	provider := &stubProvider{
		content: `{"intent":"count","entities":{"subject":"people","attribute":"membershipStatus","value":"Staff"},"complexity":"simple","confidence":0.9}`,
		healthy: true,
	}
	store := &memoryStore{}
	server := newAPIServer(testPipeline(t, provider, downstream.URL), store, provider, logger.New("test"))

	body := `{"question":"How many staff members?","serviceTokens":{"membershipapi":"t"}}`
	req := httptest.NewRequest("POST", "/api/query", strings.NewReader(body))
	rec := httptest.NewRecorder()

	server.handleQuery(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var result orchestrator.EnhancedQueryResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	assert.Equal(t, `I found 1 people with membershipStatus="Staff".`, result.Answer)

	// The answered question lands in history
	require.Len(t, store.records, 1)
	assert.Equal(t, "How many staff members?", store.records[0].Question)
	assert.Equal(t, "count", store.records[0].Intent)
}

func TestHandleQueryInvalidBody(t *testing.T) {
	provider := &stubProvider{healthy: true}
	server := newAPIServer(testPipeline(t, provider, ""), nil, provider, logger.New("test"))

	req := httptest.NewRequest("POST", "/api/query", strings.NewReader("{not json"))
	rec := httptest.NewRecorder()
	server.handleQuery(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "invalid request body")
}

func TestHandleQueryMissingQuestion(t *testing.T) {
	provider := &stubProvider{healthy: true}
	server := newAPIServer(testPipeline(t, provider, ""), nil, provider, logger.New("test"))

	req := httptest.NewRequest("POST", "/api/query", strings.NewReader(`{}`))
	rec := httptest.NewRecorder()
	server.handleQuery(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "question is required")
}

func TestHandleQueryHistoryFailureDoesNotFailRequest(t *testing.T) {
	downstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode([]interface{}{
			map[string]interface{}{"id": "p1", "membershipStatus": "Staff"},
		})
	}))
	defer downstream.Close()

	provider := &stubProvider{
		content: `{"intent":"count","entities":{"subject":"people","attribute":"membershipStatus","value":"Staff"},"complexity":"simple","confidence":0.9}`,
		healthy: true,
	}
	store := &memoryStore{saveErr: errors.New("db down")}
	server := newAPIServer(testPipeline(t, provider, downstream.URL), store, provider, logger.New("test"))

	body := `{"question":"How many staff?","serviceTokens":{"membershipapi":"t"}}`
	req := httptest.NewRequest("POST", "/api/query", strings.NewReader(body))
	rec := httptest.NewRecorder()
	server.handleQuery(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestHandleHistory(t *testing.T) {
	store := &memoryStore{records: []history.Record{
		{ID: "r1", Question: "q1", Answer: "a1"},
		{ID: "r2", Question: "q2", Answer: "a2"},
	}}
	provider := &stubProvider{healthy: true}
	server := newAPIServer(nil, store, provider, logger.New("test"))

	req := httptest.NewRequest("GET", "/api/history?limit=1", nil)
	rec := httptest.NewRecorder()
	server.handleHistory(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var records []history.Record
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &records))
	assert.Len(t, records, 1)
}

func TestHandleHistoryWithoutStore(t *testing.T) {
	provider := &stubProvider{healthy: true}
	server := newAPIServer(nil, nil, provider, logger.New("test"))

	req := httptest.NewRequest("GET", "/api/history", nil)
	rec := httptest.NewRecorder()
	server.handleHistory(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandleHealth(t *testing.T) {
	provider := &stubProvider{healthy: true}
	server := newAPIServer(nil, nil, provider, logger.New("test"))

	rec := httptest.NewRecorder()
	server.handleHealth(rec, httptest.NewRequest("GET", "/health", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "healthy")
}

func TestHandleHealthDegraded(t *testing.T) {
	provider := &stubProvider{healthy: false}
	server := newAPIServer(nil, nil, provider, logger.New("test"))

	rec := httptest.NewRecorder()
	server.handleHealth(rec, httptest.NewRequest("GET", "/health", nil))

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), "degraded")
}
