// Package retry runs external calls with bounded attempts and a fixed delay
// sequence.
package retry

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/alimgiray/sentinel/internal/models"
	"github.com/alimgiray/sentinel/pkg/logger"
	"github.com/cenkalti/backoff/v5"
	"github.com/sirupsen/logrus"
)

// Policy bounds a retried call. The delay after failed attempt i is
// Delays[i], or the last delay once the sequence runs out.
type Policy struct {
	Attempts int
	Delays   []time.Duration

	// Notify, when set, observes every scheduled wait.
	Notify func(err error, wait time.Duration)
}

// DefaultPolicy is three attempts with 1s, 2s and 4s between them.
func DefaultPolicy() Policy {
	return NewPolicy(3, []int{1, 2, 4})
}

// NewPolicy builds a policy from the configured attempt count and delays in seconds.
func NewPolicy(attempts int, delaysSeconds []int) Policy {
	delays := make([]time.Duration, 0, len(delaysSeconds))
	for _, s := range delaysSeconds {
		delays = append(delays, time.Duration(s)*time.Second)
	}
	return Policy{Attempts: attempts, Delays: delays}
}

// Hinted is implemented by errors that carry a server-provided backoff.
type Hinted interface {
	RetryAfter() time.Duration
}

// IsRetryable reports whether err is worth another attempt.
func IsRetryable(err error) bool {
	return errors.Is(err, models.ErrTransient)
}

// HintFor returns the server backoff carried by err, if any.
func HintFor(err error) (time.Duration, bool) {
	var hinted Hinted
	if errors.As(err, &hinted) && hinted.RetryAfter() > 0 {
		return hinted.RetryAfter(), true
	}
	return 0, false
}

// sequence hands out the configured delays, repeating the last one. A
// pending server hint replaces the next delay.
type sequence struct {
	delays []time.Duration
	next   int
	hint   time.Duration
}

func (s *sequence) NextBackOff() time.Duration {
	var d time.Duration
	if len(s.delays) > 0 {
		d = s.delays[min(s.next, len(s.delays)-1)]
	}
	s.next++
	if s.hint > 0 {
		d, s.hint = s.hint, 0
	}
	return d
}

func (s *sequence) Reset() {
	s.next = 0
	s.hint = 0
}

// Do calls op until it succeeds, fails with a non-retryable error, or the
// attempts run out. The last error is returned wrapped.
func Do(ctx context.Context, policy Policy, name string, op func(ctx context.Context) error) error {
	_, err := DoValue(ctx, policy, name, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, op(ctx)
	})
	return err
}

// DoValue is Do for operations that return a result.
func DoValue[T any](ctx context.Context, policy Policy, name string, op func(ctx context.Context) (T, error)) (T, error) {
	attempts := max(policy.Attempts, 1)

	seq := &sequence{delays: policy.Delays}
	calls := 0
	var lastErr error
	operation := func() (T, error) {
		calls++
		result, err := op(ctx)
		if err == nil {
			return result, nil
		}
		lastErr = err
		if !IsRetryable(err) {
			return result, backoff.Permanent(err)
		}
		if hint, ok := HintFor(err); ok {
			seq.hint = hint
		}
		return result, err
	}

	notify := func(_ error, wait time.Duration) {
		logger.WithFields(logrus.Fields{
			"operation": name,
			"attempt":   calls,
			"wait":      wait.String(),
		}).WithError(lastErr).Warn("Retrying external call")
		if policy.Notify != nil {
			policy.Notify(lastErr, wait)
		}
	}

	result, err := backoff.Retry(ctx, operation,
		backoff.WithBackOff(seq),
		backoff.WithMaxTries(uint(attempts)),
		backoff.WithMaxElapsedTime(0),
		backoff.WithNotify(notify),
	)

	var zero T
	switch {
	case err == nil:
		return result, nil
	case lastErr == nil || (ctx.Err() != nil && errors.Is(err, ctx.Err())):
		return zero, fmt.Errorf("%s: %w", name, err)
	case !IsRetryable(lastErr):
		return zero, lastErr
	default:
		return zero, fmt.Errorf("%s failed after %d attempts: %w", name, calls, lastErr)
	}
}
