package instance

import (
	"context"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wadesk/wadesk/internal/gateway"
)

func TestRetryPolicyExhaustsAttempts(t *testing.T) {
	policy := RetryPolicy{MaxAttempts: 3, BackoffBase: time.Millisecond}

	calls := 0
	err := policy.Do(context.Background(), func() error {
		calls++
		return errors.New("boom")
	})
	require.Error(t, err)
	assert.Equal(t, 3, calls)
}

func TestRetryPolicyStopsOnSuccess(t *testing.T) {
	policy := RetryPolicy{MaxAttempts: 5, BackoffBase: time.Millisecond}

	calls := 0
	err := policy.Do(context.Background(), func() error {
		calls++
		if calls < 2 {
			return errors.New("transient")
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 2, calls)
}

func TestRetryPolicySkipsNonRetryableKinds(t *testing.T) {
	policy := RetryPolicy{
		MaxAttempts:    5,
		BackoffBase:    time.Millisecond,
		RetryableKinds: []gateway.Kind{gateway.KindNetwork},
	}

	calls := 0
	err := policy.Do(context.Background(), func() error {
		calls++
		return &gateway.Error{Kind: gateway.KindTimeout, Op: "/x"}
	})
	require.Error(t, err)
	assert.Equal(t, 1, calls, "timeout is not retryable under this policy")

	calls = 0
	err = policy.Do(context.Background(), func() error {
		calls++
		return &gateway.Error{Kind: gateway.KindNetwork, Op: "/x"}
	})
	require.Error(t, err)
	assert.Equal(t, 5, calls)
}

func TestRetryPolicyHonorsContext(t *testing.T) {
	policy := RetryPolicy{MaxAttempts: 10, BackoffBase: 50 * time.Millisecond}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	err := policy.Do(ctx, func() error {
		return errors.New("always")
	})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
