package pattern

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestRetry(t *testing.T) {
	errTransient := errors.New("transient")
	errFatal := errors.New("fatal")

	cases := []struct {
		name         string
		failures     int
		failWith     error
		opts         []RetryOption
		wantErr      error
		wantAttempts int
	}{
		{name: "first_try", failures: 0, wantAttempts: 1},
		{name: "succeeds_after_retries", failures: 2, failWith: errTransient, wantAttempts: 3},
		{name: "exhausted", failures: 10, failWith: errTransient, opts: []RetryOption{WithMaxAttempts(3)}, wantErr: errTransient, wantAttempts: 3},
		{
			name:     "non_retriable_stops",
			failures: 10, failWith: errFatal,
			opts:         []RetryOption{WithShouldRetry(func(err error) bool { return !errors.Is(err, errFatal) })},
			wantErr:      errFatal,
			wantAttempts: 1,
		},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			attempts := 0
			opts := append([]RetryOption{WithInitialDelay(time.Millisecond), WithMaxDelay(2 * time.Millisecond)}, tc.opts...)
			err := Retry(context.Background(), func(attempt int) error {
				attempts = attempt
				if attempt <= tc.failures {
					return tc.failWith
				}
				return nil
			}, opts...)
			if tc.wantErr != nil {
				require.ErrorIs(t, err, tc.wantErr)
			} else {
				require.NoError(t, err)
			}
			require.Equal(t, tc.wantAttempts, attempts)
		})
	}
}

func TestRetry_ContextCanceled(t *testing.T) {
	t.Parallel()
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	err := Retry(ctx, func(int) error { return errors.New("down") },
		WithInfiniteAttempts(), WithInitialDelay(5*time.Millisecond), WithMaxDelay(5*time.Millisecond))
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestRetry_OnRetryHook(t *testing.T) {
	t.Parallel()
	var hooks []int
	err := Retry(context.Background(), func(attempt int) error {
		if attempt < 3 {
			return errors.New("again")
		}
		return nil
	},
		WithInitialDelay(time.Millisecond),
		WithJitter(0),
		WithOnRetry(func(attempt int, _ error, next time.Duration) {
			hooks = append(hooks, attempt)
			require.Positive(t, next)
		}),
	)
	require.NoError(t, err)
	require.Equal(t, []int{1, 2}, hooks)
}

func TestBackoff_CappedByMaxDelay(t *testing.T) {
	t.Parallel()
	cfg := RetryConfig{InitialDelay: 100 * time.Millisecond, MaxDelay: 300 * time.Millisecond, Multiplier: 2}
	require.Equal(t, 100*time.Millisecond, backoff(cfg, 1))
	require.Equal(t, 200*time.Millisecond, backoff(cfg, 2))
	require.Equal(t, 300*time.Millisecond, backoff(cfg, 5))
}
