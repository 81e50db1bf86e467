package classify

import (
	"math"
	"time"
)

// RetryPolicy controls how failed remote classification calls are retried
// with exponential backoff. Retries stay bounded so a stalled remote service
// can never block ticket creation for long.
type RetryPolicy struct {
	MaxAttempts  int
	InitialDelay time.Duration
	Multiplier   float64
	MaxDelay     time.Duration
}

// DefaultRetryPolicy returns the policy used for the remote classifier:
// 2 attempts, 500ms initial delay, 2x multiplier, 2s max delay.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts:  2,
		InitialDelay: 500 * time.Millisecond,
		Multiplier:   2.0,
		MaxDelay:     2 * time.Second,
	}
}

// NextDelay returns the backoff delay for the given attempt number (1-indexed).
func (p RetryPolicy) NextDelay(attempt int) time.Duration {
	delay := float64(p.InitialDelay) * math.Pow(p.Multiplier, float64(attempt-1))
	if delay > float64(p.MaxDelay) {
		return p.MaxDelay
	}
	return time.Duration(delay)
}
