// Copyright 2025 ChurchOps
// SPDX-License-Identifier: Apache-2.0

package orchestrator

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/churchops/datapilot/orchestrator/llm"
	"github.com/churchops/datapilot/shared/logger"
)

// mockCompletion is one scripted completion result.
type mockCompletion struct {
	content string
	usage   llm.UsageStats
	err     error
}

// mockProvider returns scripted completions in order; the last entry repeats
// once the script is exhausted.
type mockProvider struct {
	mu       sync.Mutex
	script   []mockCompletion
	requests []llm.CompletionRequest
}

func (m *mockProvider) Name() string { return "mock" }

func (m *mockProvider) IsHealthy() bool { return true }

func (m *mockProvider) Complete(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.requests = append(m.requests, req)

	if len(m.script) == 0 {
		return &llm.CompletionResponse{Content: "ok"}, nil
	}
	next := m.script[0]
	if len(m.script) > 1 {
		m.script = m.script[1:]
	}
	if next.err != nil {
		return nil, next.err
	}
	return &llm.CompletionResponse{Content: next.content, Usage: next.usage, Model: "mock-model"}, nil
}

func (m *mockProvider) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.requests)
}

func testLogger() *logger.Logger {
	return logger.New("test")
}

// testCatalog returns a small catalog covering all four services.
func testCatalog(t *testing.T) *RouteCatalog {
	t.Helper()

	catalog, err := NewRouteCatalog([]RouteIndex{
		{Service: "membershipapi", Method: "GET", Path: "/people", Summary: "List people", Tags: []string{"people"}, RequiresAuth: true, RouteKey: "membershipapi.GET./people"},
		{Service: "membershipapi", Method: "GET", Path: "/people/search", Summary: "Search people", Tags: []string{"people"}, RequiresAuth: true, RouteKey: "membershipapi.GET./people/search"},
		{Service: "membershipapi", Method: "GET", Path: "/people/{id}", Summary: "Get a person", Tags: []string{"people"}, RequiresAuth: true, RouteKey: "membershipapi.GET./people/{id}"},
		{Service: "attendanceapi", Method: "GET", Path: "/attendance", Summary: "List attendance", Tags: []string{"attendance"}, RequiresAuth: true, RouteKey: "attendanceapi.GET./attendance"},
		{Service: "attendanceapi", Method: "GET", Path: "/attendance/summary", Summary: "Attendance summary", Tags: []string{"attendance"}, RequiresAuth: true, RouteKey: "attendanceapi.GET./attendance/summary"},
		{Service: "givingapi", Method: "GET", Path: "/donations", Summary: "List donations", Tags: []string{"donations"}, RequiresAuth: true, RouteKey: "givingapi.GET./donations"},
		{Service: "groupsapi", Method: "GET", Path: "/groups", Summary: "List groups", Tags: []string{"groups"}, RequiresAuth: true, RouteKey: "groupsapi.GET./groups"},
	})
	require.NoError(t, err)
	return catalog
}

// staffDataset is the six-record people payload used by the count scenarios:
// three Staff, plus four Female of eight in the extended variant.
func staffDataset() []interface{} {
	return []interface{}{
		map[string]interface{}{"id": "p1", "name": "Ann Lee", "gender": "Female", "membershipStatus": "Staff", "maritalStatus": "Married"},
		map[string]interface{}{"id": "p2", "name": "Bob Cole", "gender": "Male", "membershipStatus": "Staff", "maritalStatus": "Single"},
		map[string]interface{}{"id": "p3", "name": "Cara Diaz", "gender": "Female", "membershipStatus": "Staff", "maritalStatus": "Married"},
		map[string]interface{}{"id": "p4", "name": "Dan Fox", "gender": "Male", "membershipStatus": "Member", "maritalStatus": "Married"},
		map[string]interface{}{"id": "p5", "name": "Eve Gray", "gender": "Female", "membershipStatus": "Member", "maritalStatus": "Single"},
		map[string]interface{}{"id": "p6", "name": "Fay Hill", "gender": "Female", "membershipStatus": "Guest", "maritalStatus": "Single"},
	}
}
