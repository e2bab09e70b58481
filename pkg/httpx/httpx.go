// Package httpx holds small helpers for deciding whether an HTTP failure
// is worth retrying and how long to wait before the next attempt.
package httpx

import (
	"context"
	"errors"
	"math/rand"
	"net"
	"time"
)

// HTTPStatusCoder is implemented by errors carrying an HTTP status
type HTTPStatusCoder interface {
	HTTPStatusCode() int
}

// IsRetryableStatus reports whether a status code indicates a transient
// server condition (timeouts, throttling, 5xx)
func IsRetryableStatus(code int) bool {
	if code == 408 || code == 429 {
		return true
	}
	return code >= 500 && code <= 599
}

// IsRetryableError reports whether err looks transient: a network
// timeout, or a server error with a retryable status. Context
// cancellation is never retryable; the caller asked to stop.
func IsRetryableError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	var sc HTTPStatusCoder
	if errors.As(err, &sc) {
		return IsRetryableStatus(sc.HTTPStatusCode())
	}
	return false
}

// BackoffDelay returns the wait before retry attempt `attempt` (0-based):
// base doubled per attempt, capped at max, with ±20% jitter so callers
// don't thunder in lockstep.
func BackoffDelay(attempt int, base, max time.Duration) time.Duration {
	if base <= 0 {
		return 0
	}
	d := base
	for i := 0; i < attempt; i++ {
		d *= 2
		if d >= max {
			d = max
			break
		}
	}
	if max > 0 && d > max {
		d = max
	}
	jitter := 0.2 * d.Seconds()
	low := d.Seconds() - jitter
	v := low + rand.Float64()*2*jitter
	return time.Duration(v * float64(time.Second))
}
