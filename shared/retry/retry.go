package retry

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// Policy describes a bounded retry loop
type Policy struct {
	// Attempts is the total number of attempts, including the first
	Attempts int
	// Wait is the base duration handed to Backoff
	Wait time.Duration
	// Backoff defaults to Linear
	Backoff func(wait time.Duration, attempt int) time.Duration
	// Retryable filters errors worth another attempt; nil retries everything
	Retryable func(err error) bool
	Sleep     func(ctx context.Context, d time.Duration) error
	OnRetry   func(attempt int, wait time.Duration, err error)
}

// ExhaustedError is returned once every attempt failed
type ExhaustedError struct {
	Attempts int
	Err      error
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("gave up after %d attempts: %v", e.Attempts, e.Err)
}

func (e *ExhaustedError) Unwrap() error {
	return e.Err
}

// Linear waits wait*attempt after the given failed attempt (1-based)
func Linear(wait time.Duration, attempt int) time.Duration {
	return wait * time.Duration(attempt)
}

// Constant waits the same duration after every attempt
func Constant(wait time.Duration, _ int) time.Duration {
	return wait
}

// Exponential multiplies the wait by factor after every failed attempt
func Exponential(factor float64) func(wait time.Duration, attempt int) time.Duration {
	return func(wait time.Duration, attempt int) time.Duration {
		return time.Duration(float64(wait) * math.Pow(factor, float64(attempt-1)))
	}
}

// BackOff returns the policy's wait schedule as a backoff.BackOff, capped at Attempts-1 retries
func (p Policy) BackOff() backoff.BackOff {
	step := p.Backoff
	if step == nil {
		step = Linear
	}
	return backoff.WithMaxRetries(&stepBackOff{wait: p.Wait, step: step}, uint64(p.attempts()-1))
}

func (p Policy) attempts() int {
	if p.Attempts <= 0 {
		return 1
	}
	return p.Attempts
}

// Do runs fn until it succeeds, returns a non-retryable error, or the attempts run out.
// Non-retryable errors are returned as-is; exhaustion is reported as *ExhaustedError.
func (p Policy) Do(ctx context.Context, fn func(ctx context.Context, attempt int) error) error {
	sleep := p.Sleep
	if sleep == nil {
		sleep = SleepContext
	}
	timer := &sleepTimer{ctx: ctx, sleep: sleep}

	var (
		attempt int
		lastErr error
		stopped bool
	)
	operation := func() error {
		if timer.err != nil {
			return backoff.Permanent(timer.err)
		}
		attempt++
		err := fn(ctx, attempt)
		if err == nil {
			return nil
		}
		lastErr = err
		if p.Retryable != nil && !p.Retryable(err) {
			stopped = true
			return backoff.Permanent(err)
		}
		return err
	}
	notify := func(err error, wait time.Duration) {
		if p.OnRetry != nil {
			p.OnRetry(attempt, wait, err)
		}
	}

	err := backoff.RetryNotifyWithTimer(operation, backoff.WithContext(p.BackOff(), ctx), notify, timer)
	switch {
	case err == nil:
		return nil
	case stopped:
		return err
	case timer.err != nil:
		return errors.Join(timer.err, lastErr)
	case ctx.Err() != nil:
		return errors.Join(ctx.Err(), lastErr)
	}
	return &ExhaustedError{Attempts: attempt, Err: lastErr}
}

// stepBackOff turns a wait(base, attempt) function into a backoff.BackOff
type stepBackOff struct {
	wait    time.Duration
	step    func(wait time.Duration, attempt int) time.Duration
	attempt int
}

func (b *stepBackOff) NextBackOff() time.Duration {
	b.attempt++
	return b.step(b.wait, b.attempt)
}

func (b *stepBackOff) Reset() {
	b.attempt = 0
}

// sleepTimer drives backoff's wait through Policy.Sleep so tests can skip real time.
// A failed sleep still fires the timer; the next operation call turns it into a permanent error.
type sleepTimer struct {
	ctx   context.Context
	sleep func(ctx context.Context, d time.Duration) error
	c     chan time.Time
	err   error
}

func (t *sleepTimer) Start(d time.Duration) {
	t.c = make(chan time.Time, 1)
	t.err = t.sleep(t.ctx, d)
	t.c <- time.Now()
}

func (t *sleepTimer) Stop() {}

func (t *sleepTimer) C() <-chan time.Time {
	return t.c
}

// SleepContext waits for d or until ctx is done
func SleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
