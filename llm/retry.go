package llm

import (
	"math"
	"math/rand"
	"time"
)

// RetryConfig controls per-endpoint retry behavior.
type RetryConfig struct {
	// MaxAttempts is how many times a single endpoint is tried before
	// the client moves on to the next one in the fallback chain.
	MaxAttempts int

	// BackoffBase is the delay before the first retry.
	BackoffBase time.Duration

	// BackoffMultiplier scales the delay on each subsequent retry.
	BackoffMultiplier float64

	// MaxBackoff caps the delay regardless of attempt count.
	MaxBackoff time.Duration
}

// DefaultRetryConfig returns the retry settings used when a Client is
// built without an explicit configuration.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:       3,
		BackoffBase:       2 * time.Second,
		BackoffMultiplier: 2.0,
		MaxBackoff:        30 * time.Second,
	}
}

// backoff returns the capped exponential delay for the given attempt
// (1-based), with 25% jitter so concurrent clients do not retry in
// lockstep.
func (r RetryConfig) backoff(attempt int) time.Duration {
	d := time.Duration(float64(r.BackoffBase) * math.Pow(r.BackoffMultiplier, float64(attempt-1)))
	if d > r.MaxBackoff {
		d = r.MaxBackoff
	}
	jitter := float64(d) * 0.25 * (rand.Float64()*2 - 1)
	return d + time.Duration(jitter)
}
