// Copyright 2025 ChurchOps
// SPDX-License-Identifier: Apache-2.0

package orchestrator

// Intent is the closed set of question intents the pipeline understands.
type Intent string

const (
	IntentCount      Intent = "count"
	IntentSearch     Intent = "search"
	IntentList       Intent = "list"
	IntentComparison Intent = "comparison"
	IntentAggregate  Intent = "aggregate"
)

// ValidIntent reports whether s is a member of the intent enum.
func ValidIntent(s string) bool {
	switch Intent(s) {
	case IntentCount, IntentSearch, IntentList, IntentComparison, IntentAggregate:
		return true
	}
	return false
}

// Complexity of a classified question.
type Complexity string

const (
	ComplexitySimple  Complexity = "simple"
	ComplexityComplex Complexity = "complex"
)

// Entities holds the structured pieces extracted from a question.
type Entities struct {
	Subject      string `json:"subject"`
	Attribute    string `json:"attribute,omitempty"`
	Filter       string `json:"filter,omitempty"`
	Relationship string `json:"relationship,omitempty"`
	Value        string `json:"value,omitempty"`
}

// QueryClassification is the structured interpretation of a question.
// Created per request and never persisted.
type QueryClassification struct {
	Intent     Intent     `json:"intent"`
	Entities   Entities   `json:"entities"`
	Complexity Complexity `json:"complexity"`
	Confidence float64    `json:"confidence"`
}

// SearchCondition is one equals-style filter condition for search routes.
type SearchCondition struct {
	Field    string `json:"field"`
	Operator string `json:"operator"`
	Value    string `json:"value"`
}

// RouteParameters carries the request parameters for a selected route.
type RouteParameters struct {
	Query      map[string]string      `json:"query,omitempty"`
	Body       map[string]interface{} `json:"body,omitempty"`
	Conditions []SearchCondition      `json:"conditions,omitempty"`
}

// RouteMatch is a scored candidate route for a classified question.
type RouteMatch struct {
	Route      RouteIndex      `json:"route"`
	Confidence float64         `json:"confidence"`
	Parameters RouteParameters `json:"parameters"`
	Reason     string          `json:"reason"`
	Priority   int             `json:"priority"`
}

// RouteSelection is the full output of route selection: one primary route
// plus up to two alternatives.
type RouteSelection struct {
	PrimaryRoute      RouteMatch   `json:"primaryRoute"`
	AlternativeRoutes []RouteMatch `json:"alternativeRoutes"`
	SelectionStrategy string       `json:"selectionStrategy"`
	TotalCandidates   int          `json:"totalCandidates"`
}

// CallStatus is the outcome of a downstream API call.
type CallStatus string

const (
	CallSuccess CallStatus = "success"
	CallError   CallStatus = "error"
)

// ApiCallResult is the raw outcome of executing a route.
// Error is set iff Status is CallError.
type ApiCallResult struct {
	Route  RouteMatch  `json:"route"`
	Data   interface{} `json:"data,omitempty"`
	Status CallStatus  `json:"status"`
	Error  string      `json:"error,omitempty"`
}

// ProcessingMetadata describes what the data processor did to a payload.
// FieldsExtracted reflects the rule table used, not the keys actually present.
type ProcessingMetadata struct {
	TotalRecords     int      `json:"totalRecords"`
	FilteredRecords  int      `json:"filteredRecords"`
	FieldsExtracted  []string `json:"fieldsExtracted"`
	ProcessingTimeMs int64    `json:"processingTime"`
}

// ProcessedResponse is the reduced view of a downstream payload.
// FilteredRecords never exceeds TotalRecords.
type ProcessedResponse struct {
	RelevantFields []map[string]interface{} `json:"relevantFields"`
	Aggregations   map[string]float64       `json:"aggregations,omitempty"`
	Metadata       ProcessingMetadata       `json:"metadata"`
	Summary        string                   `json:"summary"`
}

// PhaseTimings records wall-clock milliseconds per pipeline phase.
type PhaseTimings struct {
	ClassificationMs  int64 `json:"classificationMs"`
	RouteSelectionMs  int64 `json:"routeSelectionMs"`
	APIExecutionMs    int64 `json:"apiExecutionMs"`
	DataProcessingMs  int64 `json:"dataProcessingMs"`
	AnswerSynthesisMs int64 `json:"answerSynthesisMs"`
	TotalMs           int64 `json:"totalMs"`
}

// TokenUsage is the completion-service token accounting for one request.
// ClassificationTokens + FinalAnswerTokens = TotalTokens; TokensSaved is the
// estimated reduction versus sending the full payload to the model.
type TokenUsage struct {
	ClassificationTokens int `json:"classificationTokens"`
	FinalAnswerTokens    int `json:"finalAnswerTokens"`
	TotalTokens          int `json:"totalTokens"`
	TokensSaved          int `json:"tokensSaved"`
}

// EnhancedQueryResult is the complete output of the pipeline. This is the
// shape the HTTP layer serializes unchanged.
type EnhancedQueryResult struct {
	Answer         string              `json:"answer"`
	Classification QueryClassification `json:"classification"`
	RouteSelection RouteSelection      `json:"routeSelection"`
	ProcessedData  ProcessedResponse   `json:"processedData"`
	Execution      PhaseTimings        `json:"execution"`
	TokenUsage     TokenUsage          `json:"tokenUsage"`
	Confidence     float64             `json:"confidence"`
}
