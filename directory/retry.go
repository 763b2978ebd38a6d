package directory

import (
	"time"
)

// RetryPolicy decides how failed warm-up batches are retried.
//
// A zero InitialDelay retries immediately. A zero MaxAttempts retries
// forever.
type RetryPolicy struct {
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
	MaxAttempts  int
}

var DefaultRetryPolicy = RetryPolicy{
	InitialDelay: 1 * time.Second,
	MaxDelay:     1 * time.Minute,
	Multiplier:   2,
	MaxAttempts:  0,
}

// Delay before retry number attempt (starting at 1).
func (p RetryPolicy) Delay(attempt int) time.Duration {
	if p.InitialDelay <= 0 || attempt < 1 {
		return 0
	}

	d := float64(p.InitialDelay)
	for i := 1; i < attempt; i++ {
		if p.Multiplier > 1 {
			d *= p.Multiplier
		}
		if p.MaxDelay > 0 && d >= float64(p.MaxDelay) {
			return p.MaxDelay
		}
	}

	if p.MaxDelay > 0 && time.Duration(d) > p.MaxDelay {
		return p.MaxDelay
	}
	return time.Duration(d)
}

// Whether another attempt is allowed after attempts failures.
func (p RetryPolicy) Allow(attempts int) bool {
	return p.MaxAttempts <= 0 || attempts < p.MaxAttempts
}
