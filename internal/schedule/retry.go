package schedule

import (
	"context"
	"math"
	"time"

	"github.com/dwsmith1983/oacload/pkg/types"
)

const maxBackoffSeconds = 300

// DefaultRetryPolicy returns the default fetch retry configuration.
func DefaultRetryPolicy() types.RetryPolicy {
	return types.RetryPolicy{
		MaxAttempts:       3,
		BackoffSeconds:    2,
		BackoffMultiplier: 2.0,
		MaxBackoffSeconds: 60,
		RetryableFailures: []types.FailureCategory{
			types.FailureTransient,
			types.FailureTimeout,
		},
	}
}

// CalculateBackoff returns the wait duration after the given failed attempt.
// Uses exponential backoff: base * multiplier^(attempt-1), capped.
func CalculateBackoff(policy types.RetryPolicy, attempt int) time.Duration {
	ceiling := policy.MaxBackoffSeconds
	if ceiling <= 0 {
		ceiling = maxBackoffSeconds
	}
	backoff := policy.BackoffSeconds
	if attempt > 1 {
		multiplier := policy.BackoffMultiplier
		if multiplier <= 0 {
			multiplier = 2.0
		}
		backoff = policy.BackoffSeconds * math.Pow(multiplier, float64(attempt-1))
	}
	if backoff > ceiling {
		backoff = ceiling
	}
	if backoff <= 0 {
		return 0
	}
	return time.Duration(backoff * float64(time.Second))
}

// IsRetryable returns whether a failure category should be retried.
func IsRetryable(policy types.RetryPolicy, category types.FailureCategory) bool {
	if category == types.FailurePermanent {
		return false
	}
	if len(policy.RetryableFailures) == 0 {
		// Default: retry transient and timeout
		return category == types.FailureTransient || category == types.FailureTimeout
	}
	for _, fc := range policy.RetryableFailures {
		if fc == category {
			return true
		}
	}
	return false
}

// Retry calls fn until it succeeds, returns a non-retryable failure, or the
// policy's attempts are exhausted. classify maps an error to its category.
// It returns the number of attempts made and the last error.
func Retry(ctx context.Context, policy types.RetryPolicy, classify func(error) types.FailureCategory, fn func(ctx context.Context, attempt int) error) (int, error) {
	maxAttempts := policy.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = 1
	}

	var err error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		err = fn(ctx, attempt)
		if err == nil {
			return attempt, nil
		}
		if attempt == maxAttempts || !IsRetryable(policy, classify(err)) {
			return attempt, err
		}

		wait := CalculateBackoff(policy, attempt)
		if wait == 0 {
			if ctx.Err() != nil {
				return attempt, err
			}
			continue
		}
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return attempt, err
		case <-timer.C:
		}
	}
	return maxAttempts, err
}
