// Copyright 2025 ChurchOps
// SPDX-License-Identifier: Apache-2.0

// Package llm defines the completion-service abstraction used by the query
// pipeline. The pipeline talks to one Provider; implementations live in
// subpackages.
package llm

import "context"

// Provider is the interface for completion-service backends.
// Implementations must be safe for concurrent use.
type Provider interface {
	// Name returns the identifier used for logging and metrics.
	Name() string

	// Complete generates a completion for the given request.
	// The context should be used for cancellation and timeout.
	Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error)

	// IsHealthy reports whether the provider is believed operational.
	IsHealthy() bool
}
