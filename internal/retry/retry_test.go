package retry

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/alimgiray/sentinel/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type hintedErr struct{ wait time.Duration }

func (e *hintedErr) Error() string             { return "rate limited" }
func (e *hintedErr) RetryAfter() time.Duration { return e.wait }
func (e *hintedErr) Unwrap() error             { return models.ErrTransient }

// recordingPolicy uses millisecond delays so the tests stay fast.
func recordingPolicy(attempts int, delaysMillis []int, slept *[]time.Duration) Policy {
	p := Policy{Attempts: attempts}
	for _, ms := range delaysMillis {
		p.Delays = append(p.Delays, time.Duration(ms)*time.Millisecond)
	}
	p.Notify = func(_ error, d time.Duration) {
		*slept = append(*slept, d)
	}
	return p
}

func TestDo(t *testing.T) {
	ctx := context.Background()

	t.Run("succeeds after transient failures", func(t *testing.T) {
		var slept []time.Duration
		calls := 0
		err := Do(ctx, recordingPolicy(3, []int{1, 2, 4}, &slept), "op", func(context.Context) error {
			calls++
			if calls < 3 {
				return fmt.Errorf("flaky: %w", models.ErrTransient)
			}
			return nil
		})

		require.NoError(t, err)
		assert.Equal(t, 3, calls)
		assert.Equal(t, []time.Duration{time.Millisecond, 2 * time.Millisecond}, slept)
	})

	t.Run("gives up after attempts", func(t *testing.T) {
		var slept []time.Duration
		calls := 0
		err := Do(ctx, recordingPolicy(3, []int{1, 2, 4}, &slept), "op", func(context.Context) error {
			calls++
			return fmt.Errorf("down: %w", models.ErrTransient)
		})

		require.Error(t, err)
		assert.True(t, errors.Is(err, models.ErrTransient))
		assert.Equal(t, 3, calls)
		assert.Len(t, slept, 2)
	})

	t.Run("non retryable surfaces immediately", func(t *testing.T) {
		var slept []time.Duration
		calls := 0
		err := Do(ctx, recordingPolicy(3, []int{1, 2, 4}, &slept), "op", func(context.Context) error {
			calls++
			return fmt.Errorf("missing: %w", models.ErrNotFound)
		})

		assert.True(t, errors.Is(err, models.ErrNotFound))
		assert.Equal(t, 1, calls)
		assert.Empty(t, slept)
	})

	t.Run("server hint replaces the delay", func(t *testing.T) {
		var slept []time.Duration
		calls := 0
		err := Do(ctx, recordingPolicy(2, []int{1}, &slept), "op", func(context.Context) error {
			calls++
			if calls == 1 {
				return &hintedErr{wait: 30 * time.Millisecond}
			}
			return nil
		})

		require.NoError(t, err)
		assert.Equal(t, 2, calls)
		assert.Equal(t, []time.Duration{30 * time.Millisecond}, slept)
	})

	t.Run("hint does not consume the sequence", func(t *testing.T) {
		var slept []time.Duration
		calls := 0
		_ = Do(ctx, recordingPolicy(3, []int{1, 2}, &slept), "op", func(context.Context) error {
			calls++
			if calls == 1 {
				return &hintedErr{wait: 5 * time.Millisecond}
			}
			return models.ErrTransient
		})
		assert.Equal(t, []time.Duration{5 * time.Millisecond, 2 * time.Millisecond}, slept)
	})

	t.Run("last delay repeats", func(t *testing.T) {
		var slept []time.Duration
		_ = Do(ctx, recordingPolicy(4, []int{1}, &slept), "op", func(context.Context) error {
			return models.ErrTransient
		})
		assert.Equal(t, []time.Duration{time.Millisecond, time.Millisecond, time.Millisecond}, slept)
	})

	t.Run("cancelled context stops waiting", func(t *testing.T) {
		cancelled, cancel := context.WithCancel(ctx)
		cancel()

		policy := NewPolicy(3, []int{60})
		err := Do(cancelled, policy, "op", func(context.Context) error {
			return models.ErrTransient
		})
		assert.True(t, errors.Is(err, context.Canceled))
	})

	t.Run("exhausted error keeps the cause", func(t *testing.T) {
		var slept []time.Duration
		err := Do(ctx, recordingPolicy(2, []int{1}, &slept), "fetch", func(context.Context) error {
			return &hintedErr{wait: time.Millisecond}
		})

		var hinted *hintedErr
		require.True(t, errors.As(err, &hinted))
		assert.Contains(t, err.Error(), "fetch failed after 2 attempts")
	})
}

func TestDoValue(t *testing.T) {
	var slept []time.Duration
	calls := 0
	got, err := DoValue(context.Background(), recordingPolicy(3, []int{1}, &slept), "value", func(context.Context) (int, error) {
		calls++
		if calls == 1 {
			return 0, models.ErrTransient
		}
		return 42, nil
	})

	require.NoError(t, err)
	assert.Equal(t, 42, got)
}
