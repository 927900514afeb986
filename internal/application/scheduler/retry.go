package scheduler

import (
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/kulbirminhas-aiinitiative/maestro-platform-sub014/pkg/domain"
)

// retryDelay computes the wait before the next attempt. attempt is the
// count of attempts already made, so the first retry of a node sees
// attempt == 1.
func retryDelay(policy domain.RetryPolicy, attempt int) time.Duration {
	if policy.Delay <= 0 {
		return 0
	}
	if !policy.Exponential {
		return backoff.NewConstantBackOff(policy.Delay).NextBackOff()
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = policy.Delay
	b.RandomizationFactor = 0
	b.Multiplier = 2
	b.MaxInterval = maxRetryInterval
	b.MaxElapsedTime = 0
	b.Reset()

	var d time.Duration
	for i := 0; i < attempt; i++ {
		d = b.NextBackOff()
	}
	return d
}

// maxRetryInterval caps exponential growth so a long retry ladder cannot
// stall a run indefinitely.
const maxRetryInterval = 5 * time.Minute
