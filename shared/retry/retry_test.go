package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sleepRecorder struct {
	waits []time.Duration
}

func (s *sleepRecorder) sleep(_ context.Context, d time.Duration) error {
	s.waits = append(s.waits, d)
	return nil
}

func TestPolicy_Do(t *testing.T) {
	errBoom := errors.New("boom")

	tests := []struct {
		name          string
		attempts      int
		failures      int
		retryable     func(error) bool
		wantCalls     int
		wantWaits     []time.Duration
		wantErr       bool
		wantExhausted bool
	}{
		{
			name:      "succeeds first time",
			attempts:  3,
			failures:  0,
			wantCalls: 1,
		},
		{
			name:      "succeeds after two failures",
			attempts:  3,
			failures:  2,
			wantCalls: 3,
			wantWaits: []time.Duration{time.Second, 2 * time.Second},
		},
		{
			name:          "exhausts attempts",
			attempts:      3,
			failures:      5,
			wantCalls:     3,
			wantWaits:     []time.Duration{time.Second, 2 * time.Second},
			wantErr:       true,
			wantExhausted: true,
		},
		{
			name:      "non retryable error stops immediately",
			attempts:  3,
			failures:  5,
			retryable: func(error) bool { return false },
			wantCalls: 1,
			wantErr:   true,
		},
		{
			name:          "zero attempts behaves as one",
			attempts:      0,
			failures:      1,
			wantCalls:     1,
			wantErr:       true,
			wantExhausted: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := &sleepRecorder{}
			p := Policy{
				Attempts:  tt.attempts,
				Wait:      time.Second,
				Retryable: tt.retryable,
				Sleep:     rec.sleep,
			}

			calls := 0
			err := p.Do(context.Background(), func(_ context.Context, attempt int) error {
				calls++
				assert.Equal(t, calls, attempt)
				if calls <= tt.failures {
					return errBoom
				}
				return nil
			})

			assert.Equal(t, tt.wantCalls, calls)
			assert.Equal(t, tt.wantWaits, rec.waits)

			if !tt.wantErr {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.ErrorIs(t, err, errBoom)

			var exhausted *ExhaustedError
			assert.Equal(t, tt.wantExhausted, errors.As(err, &exhausted))
		})
	}
}

func TestPolicy_LinearBackoffForFiveRetries(t *testing.T) {
	rec := &sleepRecorder{}
	p := Policy{Attempts: 6, Wait: time.Second, Sleep: rec.sleep}

	err := p.Do(context.Background(), func(context.Context, int) error {
		return errors.New("locked")
	})

	require.Error(t, err)
	assert.Equal(t, []time.Duration{
		1 * time.Second, 2 * time.Second, 3 * time.Second, 4 * time.Second, 5 * time.Second,
	}, rec.waits)
}

func TestPolicy_OnRetry(t *testing.T) {
	var seen []int
	p := Policy{
		Attempts: 3,
		Wait:     time.Millisecond,
		Backoff:  Constant,
		Sleep:    func(context.Context, time.Duration) error { return nil },
		OnRetry: func(attempt int, wait time.Duration, err error) {
			seen = append(seen, attempt)
			assert.Equal(t, time.Millisecond, wait)
		},
	}

	_ = p.Do(context.Background(), func(context.Context, int) error { return errors.New("x") })
	assert.Equal(t, []int{1, 2}, seen)
}

func TestPolicy_CanceledDuringSleep(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	p := Policy{Attempts: 3, Wait: time.Hour}
	errTransfer := errors.New("transfer failed")
	err := p.Do(ctx, func(context.Context, int) error { return errTransfer })

	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.ErrorIs(t, err, errTransfer)
}

func TestSleepContext(t *testing.T) {
	require.NoError(t, SleepContext(context.Background(), time.Millisecond))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, SleepContext(ctx, time.Hour), context.Canceled)
}

func TestExponential(t *testing.T) {
	step := Exponential(2)
	assert.Equal(t, 100*time.Millisecond, step(100*time.Millisecond, 1))
	assert.Equal(t, 200*time.Millisecond, step(100*time.Millisecond, 2))
	assert.Equal(t, 400*time.Millisecond, step(100*time.Millisecond, 3))
}

func TestPolicy_SleepFailureStops(t *testing.T) {
	errSleep := errors.New("timer broken")
	errRead := errors.New("read failed")
	calls := 0
	p := Policy{
		Attempts: 5,
		Wait:     time.Second,
		Sleep:    func(context.Context, time.Duration) error { return errSleep },
	}

	err := p.Do(context.Background(), func(context.Context, int) error {
		calls++
		return errRead
	})

	require.Error(t, err)
	assert.Equal(t, 1, calls)
	assert.ErrorIs(t, err, errSleep)
	assert.ErrorIs(t, err, errRead)
}

func TestPolicy_BackOffSchedule(t *testing.T) {
	tests := []struct {
		name   string
		policy Policy
		want   []time.Duration
	}{
		{
			name:   "linear",
			policy: Policy{Attempts: 4, Wait: time.Second},
			want:   []time.Duration{time.Second, 2 * time.Second, 3 * time.Second, backoff.Stop},
		},
		{
			name:   "constant",
			policy: Policy{Attempts: 3, Wait: 2 * time.Second, Backoff: Constant},
			want:   []time.Duration{2 * time.Second, 2 * time.Second, backoff.Stop},
		},
		{
			name:   "single attempt never waits",
			policy: Policy{Wait: time.Second},
			want:   []time.Duration{backoff.Stop},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := tt.policy.BackOff()
			b.Reset()
			var got []time.Duration
			for range tt.want {
				got = append(got, b.NextBackOff())
			}
			assert.Equal(t, tt.want, got)
		})
	}
}
