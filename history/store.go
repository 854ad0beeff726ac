// Copyright 2025 ChurchOps
// SPDX-License-Identifier: Apache-2.0

// Package history persists question/answer records. The store is a simple
// keyed record log; failures to record never fail a query request.
package history

import (
	"context"
	"time"
)

// Record is one answered question.
type Record struct {
	ID         string    `json:"id"`
	Question   string    `json:"question"`
	Answer     string    `json:"answer"`
	Intent     string    `json:"intent"`
	Confidence float64   `json:"confidence"`
	TokensUsed int       `json:"tokensUsed"`
	CreatedAt  time.Time `json:"createdAt"`
}

// Store persists and retrieves answered questions.
type Store interface {
	// Save writes one record.
	Save(ctx context.Context, record Record) error

	// Recent returns up to limit records, newest first.
	Recent(ctx context.Context, limit int) ([]Record, error)
}
