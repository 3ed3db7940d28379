// internal/domain/webhook/retry.go
package webhook

import "time"

// BackoffFunc returns the delay before the next attempt given how many retries already happened
type BackoffFunc func(retries int) time.Duration

// RetryPolicy bounds redelivery of a failed event
type RetryPolicy struct {
	MaxRetries int
	Backoff    BackoffFunc
}

// DefaultRetryPolicy allows five retries spaced 60s, 120s, 240s, 480s and 960s apart
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxRetries: 5,
		Backoff:    ExponentialBackoff(60*time.Second, time.Hour),
	}
}

// ExponentialBackoff yields min(base * 2^retries, max)
func ExponentialBackoff(base, max time.Duration) BackoffFunc {
	return func(retries int) time.Duration {
		if retries < 0 {
			retries = 0
		}
		d := base
		for i := 0; i < retries; i++ {
			d *= 2
			if d >= max || d <= 0 {
				return max
			}
		}
		if d > max {
			return max
		}
		return d
	}
}

// MaxAttempts is the total number of delivery attempts an event may receive
func (p RetryPolicy) MaxAttempts() int {
	return p.MaxRetries + 1
}

// ShouldRetry reports whether another attempt may be scheduled
func (p RetryPolicy) ShouldRetry(retries int) bool {
	return retries < p.MaxRetries
}
