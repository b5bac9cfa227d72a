package instance

import (
	"context"
	"time"

	"github.com/wadesk/wadesk/internal/gateway"
)

// RetryPolicy is an explicit, caller-owned retry configuration. It is applied
// to idempotent reads and store writes only; delete semantics carry their own
// tolerant policy and never go through here.
type RetryPolicy struct {
	MaxAttempts    int
	BackoffBase    time.Duration
	RetryableKinds []gateway.Kind // empty means every error is retryable
}

// DefaultStoreRetry covers transient database write failures.
var DefaultStoreRetry = RetryPolicy{
	MaxAttempts: 3,
	BackoffBase: 200 * time.Millisecond,
}

// GatewayReadRetry covers idempotent gateway reads. Timeouts are excluded:
// a timed-out poll is handled by the fail-safe disconnect path instead.
var GatewayReadRetry = RetryPolicy{
	MaxAttempts:    2,
	BackoffBase:    500 * time.Millisecond,
	RetryableKinds: []gateway.Kind{gateway.KindNetwork, gateway.KindHTTP},
}

func (p RetryPolicy) retryable(err error) bool {
	if len(p.RetryableKinds) == 0 {
		return true
	}
	kind := gateway.KindOf(err)
	for _, k := range p.RetryableKinds {
		if k == kind {
			return true
		}
	}
	return false
}

// Do runs op with exponential backoff until it succeeds, the attempt budget
// is spent, a non-retryable error occurs, or ctx is cancelled.
func (p RetryPolicy) Do(ctx context.Context, op func() error) error {
	attempts := p.MaxAttempts
	if attempts <= 0 {
		attempts = 1
	}

	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		err = op()
		if err == nil || !p.retryable(err) {
			return err
		}
		if attempt == attempts {
			break
		}

		backoff := p.BackoffBase << uint(attempt-1)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
	}
	return err
}
