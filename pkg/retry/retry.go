// Package retry wraps durable-store and collaborator calls in a bounded
// exponential backoff with jitter. Only transient failures are retried;
// validation and permission failures surface immediately.
package retry

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"

	"assetdex/pkg/fault"
)

const (
	// DefaultBaseDelay is the first backoff interval.
	DefaultBaseDelay = 200 * time.Millisecond
	// DefaultMaxDelay caps any single backoff interval.
	DefaultMaxDelay = 5 * time.Second
	// DefaultMaxAttempts bounds the total number of tries.
	DefaultMaxAttempts = 4
)

// Policy describes a retry schedule. The zero value is not usable; use
// DefaultPolicy or fill every field.
type Policy struct {
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	MaxAttempts uint64
}

// DefaultPolicy returns the schedule used for durable-store access.
func DefaultPolicy() Policy {
	return Policy{
		BaseDelay:   DefaultBaseDelay,
		MaxDelay:    DefaultMaxDelay,
		MaxAttempts: DefaultMaxAttempts,
	}
}

// Do runs op under the policy, retrying transient failures with
// exponential backoff and jitter until the attempt budget is spent.
// Non-transient failures stop the loop immediately.
func (p Policy) Do(ctx context.Context, op func(ctx context.Context) error) error {
	if p.MaxAttempts == 0 {
		p = DefaultPolicy()
	}

	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = p.BaseDelay
	eb.MaxInterval = p.MaxDelay
	// RandomizationFactor defaults to 0.5, which supplies the jitter.
	eb.MaxElapsedTime = 0

	schedule := backoff.WithContext(backoff.WithMaxRetries(eb, p.MaxAttempts-1), ctx)

	return backoff.Retry(func() error {
		err := op(ctx)
		if err == nil {
			return nil
		}
		if fault.IsTransient(err) {
			return err
		}
		return backoff.Permanent(err)
	}, schedule)
}
