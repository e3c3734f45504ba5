package core

import (
	"context"
	"time"
)

// RetryPolicy governs retry behavior for outbound platform RPCs (§7:
// PlatformError is "retriable with exponential backoff once, then
// surfaced").
type RetryPolicy struct {
	Attempts       int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	Multiplier     float64
}

// DefaultRetryPolicy is a single attempt, no backoff.
var DefaultRetryPolicy = RetryPolicy{Attempts: 1, Multiplier: 1}

// PlatformRetryPolicy matches §7's "retriable ... once" rule: the initial
// attempt plus exactly one retry after a backoff.
var PlatformRetryPolicy = RetryPolicy{
	Attempts:       2,
	InitialBackoff: 250 * time.Millisecond,
	MaxBackoff:     2 * time.Second,
	Multiplier:     2,
}

// Retry executes fn with the provided policy, returning the last error.
func Retry(ctx context.Context, policy RetryPolicy, fn func() error) error {
	if policy.Attempts <= 0 {
		policy.Attempts = 1
	}
	if policy.Multiplier <= 0 {
		policy.Multiplier = 1
	}
	backoff := policy.InitialBackoff
	for attempt := 1; attempt <= policy.Attempts; attempt++ {
		if err := fn(); err != nil {
			if attempt == policy.Attempts {
				return err
			}
			if backoff > 0 {
				select {
				case <-time.After(backoff):
				case <-ctx.Done():
					return ctx.Err()
				}
				next := time.Duration(float64(backoff) * policy.Multiplier)
				if policy.MaxBackoff > 0 && next > policy.MaxBackoff {
					next = policy.MaxBackoff
				}
				backoff = next
			}
			continue
		}
		return nil
	}
	return nil
}
