// Copyright 2025 ChurchOps
// SPDX-License-Identifier: Apache-2.0

// Package retry provides a minimal retry helper driven by an explicit policy
// value, so callers declare their attempt budget instead of inlining loops.
package retry

import (
	"context"
	"time"
)

// Policy describes how many times an operation may be attempted and how long
// to wait between attempts.
type Policy struct {
	MaxAttempts int
	Backoff     time.Duration
}

// Do runs fn until it succeeds, the policy is exhausted, or ctx is done.
// The last error is returned when all attempts fail.
func Do(ctx context.Context, policy Policy, fn func() error) error {
	attempts := policy.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	var lastErr error
	for i := 0; i < attempts; i++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		lastErr = fn()
		if lastErr == nil {
			return nil
		}

		if i < attempts-1 && policy.Backoff > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(policy.Backoff):
			}
		}
	}
	return lastErr
}
