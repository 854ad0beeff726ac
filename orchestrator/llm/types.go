// Copyright 2025 ChurchOps
// SPDX-License-Identifier: Apache-2.0

package llm

import "time"

// CompletionRequest is a single non-streaming completion call.
type CompletionRequest struct {
	Prompt       string  // The user message
	SystemPrompt string  // Optional system prompt
	Model        string  // Model override; provider default when empty
	MaxTokens    int     // Maximum tokens to generate
	Temperature  float64 // Sampling temperature (0.0 is valid and deterministic)
}

// UsageStats contains token usage reported by the completion service.
type UsageStats struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// CompletionResponse is the result of a completion call.
type CompletionResponse struct {
	Content string        `json:"content"`
	Model   string        `json:"model"`
	Usage   UsageStats    `json:"usage"`
	Latency time.Duration `json:"latency"`
}
