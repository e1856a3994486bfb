package gateway

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/time/rate"
)

// limiter wraps a token-bucket rate limiter for RPC calls.
type limiter struct {
	limiter *rate.Limiter
}

// newLimiter returns nil when rps is not positive, which disables limiting.
func newLimiter(rps float64, burst int) *limiter {
	if rps <= 0 {
		return nil
	}
	if burst < 1 {
		burst = 1
	}
	return &limiter{limiter: rate.NewLimiter(rate.Limit(rps), burst)}
}

// wait blocks until the limiter allows one event, or ctx is done.
// Reserve guarantees exactly one token is consumed per call.
func (l *limiter) wait(ctx context.Context) error {
	if l == nil {
		return nil
	}
	r := l.limiter.Reserve()
	if !r.OK() {
		return fmt.Errorf("rate: cannot reserve token")
	}
	if delay := r.Delay(); delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			r.Cancel()
			return ctx.Err()
		}
	}
	return nil
}
