// Copyright 2025 ChurchOps
// SPDX-License-Identifier: Apache-2.0

// Package orchestrator implements the query orchestration pipeline: intent
// classification, deterministic route selection, downstream API execution,
// local data reduction, and answer synthesis.
package orchestrator

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/churchops/datapilot/shared/logger"
)

// Token-saving estimate constants. The baseline assumes the naive approach
// of sending every raw record to the model.
const (
	perRecordTokenCost     = 50
	savedTokensCap         = 2000
	reducedContextOverhead = 200
)

// QueryOptions carries per-request inputs supplied by the caller.
type QueryOptions struct {
	// ServiceTokens maps lower-cased canonical service names to bearer
	// tokens for the downstream calls.
	ServiceTokens map[string]string
	// RequestID correlates log lines; generated when empty.
	RequestID string
}

// EnhancedQueryOrchestrator composes the pipeline phases in sequence and
// returns a structured result with timings and token-usage estimates.
type EnhancedQueryOrchestrator struct {
	classifier  *QueryClassifier
	selector    *RouteSelector
	executor    *ApiExecutor
	processor   *DataProcessor
	synthesizer *AnswerSynthesizer
	metrics     *MetricsCollector
	log         *logger.Logger
}

// NewEnhancedQueryOrchestrator wires the pipeline from its phase components.
// The metrics collector may be nil.
func NewEnhancedQueryOrchestrator(
	classifier *QueryClassifier,
	selector *RouteSelector,
	executor *ApiExecutor,
	processor *DataProcessor,
	synthesizer *AnswerSynthesizer,
	metrics *MetricsCollector,
	log *logger.Logger,
) *EnhancedQueryOrchestrator {
	return &EnhancedQueryOrchestrator{
		classifier:  classifier,
		selector:    selector,
		executor:    executor,
		processor:   processor,
		synthesizer: synthesizer,
		metrics:     metrics,
		log:         log,
	}
}

// Run executes the full pipeline for one question. Phases run strictly
// sequentially; downstream API failures flow through as empty processed
// data, while route-selection configuration errors and answer-synthesis
// failures abort the request. Partial results are never returned.
func (o *EnhancedQueryOrchestrator) Run(ctx context.Context, question string, opts QueryOptions) (*EnhancedQueryResult, error) {
	if question == "" {
		return nil, fmt.Errorf("question must not be empty")
	}

	requestID := opts.RequestID
	if requestID == "" {
		requestID = uuid.NewString()
	}

	totalStart := time.Now()
	var timings PhaseTimings

	o.log.Info(requestID, "query pipeline started", map[string]interface{}{
		"question_length": len(question),
	})

	// Phase 1: classification (never fails; falls back internally)
	phaseStart := time.Now()
	classification, classificationTokens := o.classifier.Classify(ctx, question)
	timings.ClassificationMs = time.Since(phaseStart).Milliseconds()
	o.observePhase("classification", timings.ClassificationMs)

	// Phase 2: route selection (pure; only fails on broken configuration)
	phaseStart = time.Now()
	selection, err := o.selector.SelectRoutes(classification)
	timings.RouteSelectionMs = time.Since(phaseStart).Milliseconds()
	o.observePhase("route_selection", timings.RouteSelectionMs)
	if err != nil {
		o.recordOutcome("error")
		return nil, err
	}

	// Phase 3: downstream execution (failures become error-status results)
	phaseStart = time.Now()
	callResult := o.executor.Execute(ctx, selection.PrimaryRoute, opts.ServiceTokens)
	timings.APIExecutionMs = time.Since(phaseStart).Milliseconds()
	o.observePhase("api_execution", timings.APIExecutionMs)

	// Phase 4: local data reduction
	phaseStart = time.Now()
	processed := o.processor.Process(callResult, classification)
	timings.DataProcessingMs = time.Since(phaseStart).Milliseconds()
	o.observePhase("data_processing", timings.DataProcessingMs)

	// Phase 5: answer synthesis (a completion failure here is fatal)
	phaseStart = time.Now()
	answer, answerTokens, err := o.synthesizer.Synthesize(ctx, question, classification, processed)
	timings.AnswerSynthesisMs = time.Since(phaseStart).Milliseconds()
	o.observePhase("answer_synthesis", timings.AnswerSynthesisMs)
	if err != nil {
		o.recordOutcome("error")
		return nil, err
	}

	timings.TotalMs = time.Since(totalStart).Milliseconds()

	usage := TokenUsage{
		ClassificationTokens: classificationTokens,
		FinalAnswerTokens:    answerTokens,
		TotalTokens:          classificationTokens + answerTokens,
		TokensSaved:          estimateTokensSaved(processed.Metadata.TotalRecords),
	}

	confidence := classification.Confidence
	if selection.PrimaryRoute.Confidence < confidence {
		confidence = selection.PrimaryRoute.Confidence
	}

	o.recordOutcome("success")
	if o.metrics != nil {
		o.metrics.RecordTokens(usage.TotalTokens, usage.TokensSaved)
	}

	o.log.InfoWithDuration(requestID, "query pipeline completed", float64(timings.TotalMs), map[string]interface{}{
		"intent":       string(classification.Intent),
		"route_key":    selection.PrimaryRoute.Route.RouteKey,
		"call_status":  string(callResult.Status),
		"total_tokens": usage.TotalTokens,
		"tokens_saved": usage.TokensSaved,
	})

	return &EnhancedQueryResult{
		Answer:         answer,
		Classification: classification,
		RouteSelection: selection,
		ProcessedData:  processed,
		Execution:      timings,
		TokenUsage:     usage,
		Confidence:     confidence,
	}, nil
}

// estimateTokensSaved estimates the reduction versus sending every raw
// record to the model, clamped at zero.
func estimateTokensSaved(totalRecords int) int {
	baseline := totalRecords * perRecordTokenCost
	if baseline > savedTokensCap {
		baseline = savedTokensCap
	}
	saved := baseline - reducedContextOverhead
	if saved < 0 {
		return 0
	}
	return saved
}

func (o *EnhancedQueryOrchestrator) observePhase(phase string, durationMs int64) {
	if o.metrics != nil {
		o.metrics.ObservePhase(phase, durationMs)
	}
}

func (o *EnhancedQueryOrchestrator) recordOutcome(outcome string) {
	if o.metrics != nil {
		o.metrics.RecordRequest(outcome)
	}
}
