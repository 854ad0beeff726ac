// Copyright 2025 ChurchOps
// SPDX-License-Identifier: Apache-2.0

package orchestrator

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/churchops/datapilot/orchestrator/llm"
	"github.com/churchops/datapilot/shared/logger"
)

const (
	// maxPromptAggregations bounds how many aggregation entries go into the
	// synthesis prompt.
	maxPromptAggregations = 5

	// maxSampleRecords bounds how many reduced sample records go into the
	// synthesis prompt.
	maxSampleRecords = 3

	// answerMaxTokens bounds the completion output for the final answer.
	answerMaxTokens = 150

	// answerTemperature keeps final-answer phrasing close to the data.
	answerTemperature = 0.2
)

// AnswerSynthesizer produces the final user-facing text. Count questions
// with aggregations are answered deterministically at zero completion
// tokens; everything else makes one minimal-context completion call.
type AnswerSynthesizer struct {
	provider llm.Provider
	log      *logger.Logger
}

// NewAnswerSynthesizer creates a synthesizer backed by the given provider.
func NewAnswerSynthesizer(provider llm.Provider, log *logger.Logger) *AnswerSynthesizer {
	return &AnswerSynthesizer{provider: provider, log: log}
}

// Synthesize builds the final answer. The int return is the completion
// tokens consumed (zero on the deterministic path). A completion failure is
// fatal for the request: no fallback text is generated.
func (s *AnswerSynthesizer) Synthesize(ctx context.Context, question string, cls QueryClassification, processed ProcessedResponse) (string, int, error) {
	if cls.Intent == IntentCount && len(processed.Aggregations) > 0 {
		return s.deterministicCountAnswer(cls, processed), 0, nil
	}

	prompt := s.buildPrompt(question, processed)

	resp, err := s.provider.Complete(ctx, llm.CompletionRequest{
		Prompt:      prompt,
		Temperature: answerTemperature,
		MaxTokens:   answerMaxTokens,
	})
	if err != nil {
		return "", 0, fmt.Errorf("answer synthesis failed: %w", err)
	}

	answer := strings.TrimSpace(resp.Content)
	if answer == "" {
		return "", resp.Usage.TotalTokens, fmt.Errorf("answer synthesis returned empty content")
	}
	return answer, resp.Usage.TotalTokens, nil
}

// deterministicCountAnswer phrases a count result without any model call.
func (s *AnswerSynthesizer) deterministicCountAnswer(cls QueryClassification, processed ProcessedResponse) string {
	total := int(processed.Aggregations["total_count"])

	subject := cls.Entities.Subject
	if subject == "" {
		subject = "records"
	}

	answer := fmt.Sprintf("I found %d %s", total, subject)
	if cls.Entities.Attribute != "" && cls.Entities.Value != "" {
		answer += fmt.Sprintf(" with %s=%q", cls.Entities.Attribute, cls.Entities.Value)
	}
	answer += "."

	// Without an attribute filter the breakdown keys add useful detail
	if cls.Entities.Attribute == "" || cls.Entities.Value == "" {
		if breakdown := formatBreakdown(processed.Aggregations); breakdown != "" {
			answer += " " + breakdown
		}
	}
	return answer
}

// formatBreakdown renders the non-total aggregation keys in sorted order.
func formatBreakdown(aggregations map[string]float64) string {
	keys := make([]string, 0, len(aggregations))
	for key := range aggregations {
		if key == "total_count" {
			continue
		}
		keys = append(keys, key)
	}
	if len(keys) == 0 {
		return ""
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, key := range keys {
		parts = append(parts, fmt.Sprintf("%s: %g", key, aggregations[key]))
	}
	return "Breakdown: " + strings.Join(parts, ", ") + "."
}

// buildPrompt assembles the minimal-context synthesis prompt: question,
// summary, filtered count, a bounded slice of aggregations, and a few sample
// records reduced to their essential fields.
func (s *AnswerSynthesizer) buildPrompt(question string, processed ProcessedResponse) string {
	var b strings.Builder

	b.WriteString("Answer the question in one or two short sentences using only the data below.\n\n")
	b.WriteString("Question: " + question + "\n")
	b.WriteString("Data summary: " + processed.Summary + "\n")
	fmt.Fprintf(&b, "Matching records: %d\n", processed.Metadata.FilteredRecords)

	if len(processed.Aggregations) > 0 {
		b.WriteString("Aggregations:\n")
		keys := make([]string, 0, len(processed.Aggregations))
		for key := range processed.Aggregations {
			keys = append(keys, key)
		}
		sort.Strings(keys)
		for i, key := range keys {
			if i == maxPromptAggregations {
				break
			}
			fmt.Fprintf(&b, "  %s: %g\n", key, processed.Aggregations[key])
		}
	}

	if len(processed.RelevantFields) > 0 {
		b.WriteString("Sample records:\n")
		limit := maxSampleRecords
		if len(processed.RelevantFields) < limit {
			limit = len(processed.RelevantFields)
		}
		for i := 0; i < limit; i++ {
			fmt.Fprintf(&b, "  %s\n", formatSampleRecord(processed.RelevantFields[i]))
		}
	}

	b.WriteString("\nAnswer:")
	return b.String()
}

// essentialSampleFields are the fields worth showing the model per record.
var essentialSampleFields = []string{"name", "membershipStatus", "gender", "amount", "date", "status"}

// formatSampleRecord reduces one record to two or three essential fields.
func formatSampleRecord(record map[string]interface{}) string {
	parts := make([]string, 0, 3)
	for _, field := range essentialSampleFields {
		value, ok := record[field]
		if !ok || value == nil {
			continue
		}
		parts = append(parts, fmt.Sprintf("%s=%v", field, value))
		if len(parts) == 3 {
			break
		}
	}
	if len(parts) == 0 {
		if id, ok := record["id"]; ok {
			parts = append(parts, fmt.Sprintf("id=%v", id))
		}
	}
	return strings.Join(parts, ", ")
}
