package live

import (
	"math/rand"
	"time"
)

// reconnector tracks backoff state across connection attempts. A
// connection that stays up long enough resets the attempt counter so an
// old outage does not shorten the retry budget of a fresh one.
type reconnector struct {
	baseDelay   time.Duration
	maxDelay    time.Duration
	maxAttempts int

	attempt     int
	connectedAt time.Time
}

const stableAfter = 60 * time.Second

func newReconnector(base, max time.Duration, attempts int) *reconnector {
	return &reconnector{baseDelay: base, maxDelay: max, maxAttempts: attempts}
}

func (r *reconnector) markConnected() {
	r.connectedAt = time.Now()
}

func (r *reconnector) shouldRetry() bool {
	if !r.connectedAt.IsZero() && time.Since(r.connectedAt) > stableAfter {
		r.attempt = 0
	}
	return r.attempt < r.maxAttempts
}

// nextDelay returns an exponentially growing delay with jitter, capped
// at maxDelay, and advances the attempt counter.
func (r *reconnector) nextDelay() time.Duration {
	delay := r.baseDelay << uint(r.attempt)
	if delay > r.maxDelay || delay <= 0 {
		delay = r.maxDelay
	}
	jitter := time.Duration(rand.Int63n(int64(r.baseDelay)))
	delay += jitter
	if delay > r.maxDelay {
		delay = r.maxDelay
	}
	r.attempt++
	return delay
}
