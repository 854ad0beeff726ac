// Copyright 2025 ChurchOps
// SPDX-License-Identifier: Apache-2.0

package orchestrator

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/churchops/datapilot/orchestrator/llm"
)

const staffClassificationJSON = `{"intent":"count","entities":{"subject":"people","attribute":"membershipStatus","value":"Staff"},"complexity":"simple","confidence":0.9}`

func newTestPipeline(provider llm.Provider, baseURL string, catalog *RouteCatalog, metrics *MetricsCollector) *EnhancedQueryOrchestrator {
	log := testLogger()

	executorConfig := DefaultExecutorConfig()
	if baseURL != "" {
		executorConfig.ServiceURLs["membershipapi"] = baseURL
	}

	return NewEnhancedQueryOrchestrator(
		NewQueryClassifier(provider, DefaultClassifierConfig(), log),
		NewRouteSelector(catalog, DefaultSelectorConfig(), log),
		NewApiExecutor(executorConfig, log),
		NewDataProcessor(DefaultProcessorConfig(), log),
		NewAnswerSynthesizer(provider, log),
		metrics,
		log,
	)
}

func TestRunCountStaffEndToEnd(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "Bearer member-token", r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(staffDataset())
	}))
	defer server.Close()

	provider := &mockProvider{script: []mockCompletion{{content: staffClassificationJSON}}}
	pipeline := newTestPipeline(provider, server.URL, testCatalog(t), nil)

	result, err := pipeline.Run(context.Background(), "How many staff members are at this church?", QueryOptions{
		ServiceTokens: map[string]string{"membershipapi": "member-token"},
	})
	require.NoError(t, err)

	assert.Equal(t, `I found 3 people with membershipStatus="Staff".`, result.Answer)
	assert.Equal(t, IntentCount, result.Classification.Intent)
	assert.Equal(t, "membershipapi.GET./people", result.RouteSelection.PrimaryRoute.Route.RouteKey)
	assert.Equal(t, 6, result.ProcessedData.Metadata.TotalRecords)
	assert.Equal(t, 3, result.ProcessedData.Metadata.FilteredRecords)

	// One classification call, zero synthesis calls on the count path
	assert.Equal(t, 1, provider.callCount())
	assert.Zero(t, result.TokenUsage.FinalAnswerTokens)
	assert.Positive(t, result.TokenUsage.ClassificationTokens)
	assert.Equal(t, result.TokenUsage.ClassificationTokens+result.TokenUsage.FinalAnswerTokens, result.TokenUsage.TotalTokens)

	// 6 records * 50 per-record baseline - 200 reduced-context overhead
	assert.Equal(t, 100, result.TokenUsage.TokensSaved)

	// Overall confidence is the weaker of classification and route confidence
	assert.InDelta(t, 0.9, result.Confidence, 0.001)

	assert.GreaterOrEqual(t, result.Execution.TotalMs, int64(0))
}

func TestRunEmptyQuestion(t *testing.T) {
	pipeline := newTestPipeline(&mockProvider{}, "", testCatalog(t), nil)

	_, err := pipeline.Run(context.Background(), "", QueryOptions{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "question must not be empty")
}

func TestRunDownstreamFailureStillAnswers(t *testing.T) {
	// No token for the downstream service: the call fails, processing yields
	// an empty response, and synthesis phrases the empty result.
	provider := &mockProvider{script: []mockCompletion{
		{content: staffClassificationJSON},
		{content: "I could not find any matching records.", usage: llm.UsageStats{TotalTokens: 18}},
	}}
	pipeline := newTestPipeline(provider, "", testCatalog(t), nil)

	result, err := pipeline.Run(context.Background(), "How many staff members are at this church?", QueryOptions{})
	require.NoError(t, err)

	assert.Equal(t, "I could not find any matching records.", result.Answer)
	assert.Equal(t, 0, result.ProcessedData.Metadata.TotalRecords)
	assert.Equal(t, "No data found", result.ProcessedData.Summary)
	assert.Equal(t, 18, result.TokenUsage.FinalAnswerTokens)
	assert.Zero(t, result.TokenUsage.TokensSaved)
}

func TestRunSelectionErrorAborts(t *testing.T) {
	// Catalog without the safe fallback route: a groups query with no
	// groupsapi routes is a configuration error.
	catalog, err := NewRouteCatalog([]RouteIndex{
		{Service: "givingapi", Method: "GET", Path: "/donations", RouteKey: "givingapi.GET./donations"},
	})
	require.NoError(t, err)

	provider := &mockProvider{script: []mockCompletion{
		{content: `{"intent":"list","entities":{"subject":"groups"},"complexity":"simple","confidence":0.8}`},
	}}
	pipeline := newTestPipeline(provider, "", catalog, nil)

	_, err = pipeline.Run(context.Background(), "List all groups", QueryOptions{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "fatal configuration error")
}

func TestRunSynthesisFailureAborts(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(staffDataset())
	}))
	defer server.Close()

	provider := &mockProvider{script: []mockCompletion{
		{content: `{"intent":"list","entities":{"subject":"people"},"complexity":"simple","confidence":0.8}`},
		{err: errors.New("completion service unavailable")},
	}}
	pipeline := newTestPipeline(provider, server.URL, testCatalog(t), nil)

	_, err := pipeline.Run(context.Background(), "List all people", QueryOptions{
		ServiceTokens: map[string]string{"membershipapi": "t"},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "answer synthesis failed")
}

func TestRunClassificationFallbackStillCompletes(t *testing.T) {
	// Classification call fails; keyword fallback still drives a full run.
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(staffDataset())
	}))
	defer server.Close()

	provider := &mockProvider{script: []mockCompletion{
		{err: errors.New("timeout")},
	}}
	pipeline := newTestPipeline(provider, server.URL, testCatalog(t), nil)

	result, err := pipeline.Run(context.Background(), "How many staff members are at this church?", QueryOptions{
		ServiceTokens: map[string]string{"membershipapi": "t"},
	})
	require.NoError(t, err)

	assert.Equal(t, IntentCount, result.Classification.Intent)
	assert.InDelta(t, 0.3, result.Classification.Confidence, 0.001)
	assert.Equal(t, `I found 3 people with membershipStatus="Staff".`, result.Answer)
	assert.InDelta(t, 0.3, result.Confidence, 0.001)
}

func TestRunRecordsMetrics(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(staffDataset())
	}))
	defer server.Close()

	registry := prometheus.NewRegistry()
	metrics := NewMetricsCollector(registry)

	provider := &mockProvider{script: []mockCompletion{{content: staffClassificationJSON}}}
	pipeline := newTestPipeline(provider, server.URL, testCatalog(t), metrics)

	result, err := pipeline.Run(context.Background(), "How many staff members are at this church?", QueryOptions{
		ServiceTokens: map[string]string{"membershipapi": "t"},
	})
	require.NoError(t, err)

	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.requestsTotal.WithLabelValues("success")))
	assert.Equal(t, float64(result.TokenUsage.TotalTokens), testutil.ToFloat64(metrics.tokensTotal))
	assert.Equal(t, 100.0, testutil.ToFloat64(metrics.tokensSaved))
}

func TestRunPropagatesRequestID(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(staffDataset())
	}))
	defer server.Close()

	provider := &mockProvider{script: []mockCompletion{{content: staffClassificationJSON}}}
	pipeline := newTestPipeline(provider, server.URL, testCatalog(t), nil)

	_, err := pipeline.Run(context.Background(), "How many staff?", QueryOptions{
		ServiceTokens: map[string]string{"membershipapi": "t"},
		RequestID:     "req-42",
	})
	require.NoError(t, err)
}

func TestEstimateTokensSaved(t *testing.T) {
	tests := []struct {
		name    string
		records int
		want    int
	}{
		{"zero records", 0, 0},
		{"small payload below overhead", 3, 0},
		{"typical payload", 6, 100},
		{"large payload hits cap", 100, 1800},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, estimateTokensSaved(tt.records))
		})
	}
}
