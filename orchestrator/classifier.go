// Copyright 2025 ChurchOps
// SPDX-License-Identifier: Apache-2.0

package orchestrator

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/churchops/datapilot/orchestrator/llm"
	"github.com/churchops/datapilot/shared/logger"
)

// classificationPromptTemplate instructs the model to emit strict JSON only.
const classificationSystemPrompt = `You are a query classifier for a church management platform. ` +
	`Classify the user's question and respond with strict JSON only, no prose, using exactly this shape:
{"intent":"count|search|list|comparison|aggregate","entities":{"subject":"...","attribute":"...","filter":"...","relationship":"...","value":"..."},"complexity":"simple|complex","confidence":0.0}
Subjects are plural domain nouns such as people, attendance, donations, groups. ` +
	`Omit entity fields you cannot determine. Confidence is your certainty between 0 and 1.`

// QueryClassifier turns a question into a QueryClassification using one
// completion call, then applies deterministic domain normalization. It never
// returns an error: any completion or parse failure is replaced by a keyword
// fallback with low confidence.
type QueryClassifier struct {
	provider llm.Provider
	config   ClassifierConfig
	log      *logger.Logger
}

// NewQueryClassifier creates a classifier backed by the given provider.
func NewQueryClassifier(provider llm.Provider, config ClassifierConfig, log *logger.Logger) *QueryClassifier {
	return &QueryClassifier{provider: provider, config: config, log: log}
}

// rawClassification is the untrusted shape parsed from the model output.
type rawClassification struct {
	Intent   string `json:"intent"`
	Entities struct {
		Subject      string `json:"subject"`
		Attribute    string `json:"attribute"`
		Filter       string `json:"filter"`
		Relationship string `json:"relationship"`
		Value        string `json:"value"`
	} `json:"entities"`
	Complexity string  `json:"complexity"`
	Confidence float64 `json:"confidence"`
}

// Classify classifies a question. The second return value is the estimated
// completion-service token cost of the call (prompt plus response size; zero
// tokens are never reported because the prompt is always sent).
func (c *QueryClassifier) Classify(ctx context.Context, question string) (QueryClassification, int) {
	prompt := "Question: " + question

	resp, err := c.provider.Complete(ctx, llm.CompletionRequest{
		Prompt:       prompt,
		SystemPrompt: classificationSystemPrompt,
		Temperature:  0.0,
		MaxTokens:    300,
	})
	if err != nil {
		c.log.Warn("", "classification call failed, using keyword fallback", map[string]interface{}{
			"error": err.Error(),
		})
		return c.fallbackClassification(question), estimateTokens(classificationSystemPrompt + prompt)
	}

	tokens := estimateTokens(classificationSystemPrompt + prompt + resp.Content)

	parsed, ok := c.parseResponse(resp.Content)
	if !ok {
		c.log.Warn("", "unparseable classification response, using keyword fallback", map[string]interface{}{
			"response_length": len(resp.Content),
		})
		return c.fallbackClassification(question), tokens
	}

	return c.normalize(parsed, question), tokens
}

// parseResponse treats the model output as an untrusted string. Models
// occasionally wrap JSON in code fences or prose; the outermost JSON object
// is extracted before decoding.
func (c *QueryClassifier) parseResponse(content string) (rawClassification, bool) {
	var raw rawClassification

	start := strings.Index(content, "{")
	end := strings.LastIndex(content, "}")
	if start < 0 || end <= start {
		return raw, false
	}

	if err := json.Unmarshal([]byte(content[start:end+1]), &raw); err != nil {
		return raw, false
	}
	if raw.Intent == "" && raw.Entities.Subject == "" {
		return raw, false
	}
	return raw, true
}

// normalize coerces the raw model output into the closed domain model.
func (c *QueryClassifier) normalize(raw rawClassification, question string) QueryClassification {
	cls := QueryClassification{
		Intent: Intent(strings.ToLower(strings.TrimSpace(raw.Intent))),
		Entities: Entities{
			Subject:      strings.TrimSpace(raw.Entities.Subject),
			Attribute:    strings.TrimSpace(raw.Entities.Attribute),
			Filter:       strings.TrimSpace(raw.Entities.Filter),
			Relationship: strings.TrimSpace(raw.Entities.Relationship),
			Value:        strings.TrimSpace(raw.Entities.Value),
		},
		Complexity: Complexity(strings.ToLower(strings.TrimSpace(raw.Complexity))),
		Confidence: clamp01(raw.Confidence),
	}

	// Unknown intents fall back to search
	if !ValidIntent(string(cls.Intent)) {
		cls.Intent = IntentSearch
	}
	if cls.Complexity != ComplexityComplex {
		cls.Complexity = ComplexitySimple
	}

	c.applyDomainNormalization(&cls, question)

	// Relationship or filter entities always mean a complex query
	if cls.Entities.Relationship != "" || cls.Entities.Filter != "" {
		cls.Complexity = ComplexityComplex
	}

	return cls
}

// applyDomainNormalization rewrites ambiguous subjects into canonical
// subject/attribute/value triples and canonicalizes attribute and value
// names through the synonym tables.
func (c *QueryClassifier) applyDomainNormalization(cls *QueryClassification, question string) {
	words := questionWords(question)

	for _, rewrite := range c.config.SubjectRewrites {
		if !matchesKeyword(words, rewrite.Keyword) {
			continue
		}
		cls.Entities.Subject = rewrite.Subject
		if rewrite.Attribute != "" && cls.Entities.Attribute == "" {
			cls.Entities.Attribute = rewrite.Attribute
		}
		if rewrite.Value != "" && cls.Entities.Value == "" {
			cls.Entities.Value = rewrite.Value
		}
		break
	}

	if cls.Entities.Subject == "" {
		cls.Entities.Subject = CategoryPeople
	}

	if attr := cls.Entities.Attribute; attr != "" {
		lowerAttr := strings.ToLower(attr)
		for synonym, canonical := range c.config.AttributeSynonyms {
			if strings.Contains(lowerAttr, synonym) {
				cls.Entities.Attribute = canonical
				break
			}
		}
	}

	if value := cls.Entities.Value; value != "" {
		if canonical, ok := c.config.ValueAliases[strings.ToLower(value)]; ok {
			cls.Entities.Value = canonical
		}
	}
}

// fallbackClassification derives a deterministic classification from keyword
// matching on the raw question. Confidence is fixed low to signal distrust.
func (c *QueryClassifier) fallbackClassification(question string) QueryClassification {
	lower := strings.ToLower(question)

	intent := IntentSearch
	switch {
	case strings.Contains(lower, "how many") || strings.Contains(lower, "count"):
		intent = IntentCount
	case strings.Contains(lower, "list") || strings.Contains(lower, "show"):
		intent = IntentList
	case strings.Contains(lower, "oldest") || strings.Contains(lower, "youngest"):
		intent = IntentComparison
	}

	cls := QueryClassification{
		Intent:     intent,
		Complexity: ComplexitySimple,
		Confidence: c.config.FallbackConfidence,
	}
	c.applyDomainNormalization(&cls, question)
	return cls
}

// questionWords splits a question into lower-cased words.
func questionWords(question string) []string {
	return strings.FieldsFunc(strings.ToLower(question), func(r rune) bool {
		return !('a' <= r && r <= 'z') && !('0' <= r && r <= '9')
	})
}

// matchesKeyword reports whether any word equals the keyword, allowing a
// trailing plural s on either side. Whole-word matching keeps "man" from
// firing on "many".
func matchesKeyword(words []string, keyword string) bool {
	for _, w := range words {
		if w == keyword || w == keyword+"s" || strings.TrimSuffix(w, "s") == keyword {
			return true
		}
	}
	return false
}

// estimateTokens approximates token counts at four characters per token.
func estimateTokens(text string) int {
	return (len(text) + 3) / 4
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
