// Copyright 2025 ChurchOps
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/churchops/datapilot/history"
	"github.com/churchops/datapilot/orchestrator"
	"github.com/churchops/datapilot/orchestrator/llm"
	"github.com/churchops/datapilot/shared/logger"
)

// apiServer is the thin HTTP surface over the pipeline. It serializes the
// pipeline result unchanged.
type apiServer struct {
	pipeline *orchestrator.EnhancedQueryOrchestrator
	store    history.Store
	provider llm.Provider
	log      *logger.Logger
}

func newAPIServer(pipeline *orchestrator.EnhancedQueryOrchestrator, store history.Store, provider llm.Provider, log *logger.Logger) *apiServer {
	return &apiServer{pipeline: pipeline, store: store, provider: provider, log: log}
}

type queryRequest struct {
	Question      string            `json:"question"`
	ServiceTokens map[string]string `json:"serviceTokens"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (s *apiServer) handleQuery(w http.ResponseWriter, r *http.Request) {
	var req queryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}
	if req.Question == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "question is required"})
		return
	}

	requestID := uuid.NewString()
	result, err := s.pipeline.Run(r.Context(), req.Question, orchestrator.QueryOptions{
		ServiceTokens: req.ServiceTokens,
		RequestID:     requestID,
	})
	if err != nil {
		s.log.Error(requestID, "query failed", err, nil)
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: err.Error()})
		return
	}

	s.recordHistory(r.Context(), requestID, req.Question, result)
	writeJSON(w, http.StatusOK, result)
}

// recordHistory persists the answered question. Failures are logged and
// never fail the request.
func (s *apiServer) recordHistory(ctx context.Context, requestID, question string, result *orchestrator.EnhancedQueryResult) {
	if s.store == nil {
		return
	}
	err := s.store.Save(ctx, history.Record{
		ID:         requestID,
		Question:   question,
		Answer:     result.Answer,
		Intent:     string(result.Classification.Intent),
		Confidence: result.Confidence,
		TokensUsed: result.TokenUsage.TotalTokens,
		CreatedAt:  time.Now().UTC(),
	})
	if err != nil {
		s.log.Warn(requestID, "failed to record history", map[string]interface{}{"error": err.Error()})
	}
}

func (s *apiServer) handleHistory(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "history store not configured"})
		return
	}

	limit := 20
	if v := r.URL.Query().Get("limit"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil && parsed > 0 {
			limit = parsed
		}
	}

	records, err := s.store.Recent(r.Context(), limit)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: err.Error()})
		return
	}
	if records == nil {
		records = []history.Record{}
	}
	writeJSON(w, http.StatusOK, records)
}

func (s *apiServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := "healthy"
	code := http.StatusOK
	if !s.provider.IsHealthy() {
		status = "degraded"
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, map[string]string{"status": status})
}

func writeJSON(w http.ResponseWriter, code int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(payload)
}
