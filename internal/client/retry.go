package client

import (
	"context"
	"time"

	"github.com/kode4food/flowrelay/pkg/api"
)

type (
	// Retrier wraps an Executor with a bounded, linearly backed-off retry
	// loop. Every failure kind is retried, including client errors
	Retrier struct {
		executor    Executor
		observer    Observer
		newTimer    TimerConstructor
		maxAttempts int
		baseDelay   time.Duration
	}

	// RetryState describes the progress of one Retrier invocation
	RetryState struct {
		LastError   error
		Attempt     int
		MaxAttempts int
		BaseDelay   time.Duration
	}

	// RetrierOption customizes a Retrier
	RetrierOption func(*Retrier)
)

// NewRetrier creates a Retrier making at most maxAttempts calls. The delay
// before attempt k+1 is baseDelay * k
func NewRetrier(
	exec Executor, maxAttempts int, baseDelay time.Duration,
	opts ...RetrierOption,
) *Retrier {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	r := &Retrier{
		executor:    exec,
		observer:    LogObserver{},
		newTimer:    NewTimer,
		maxAttempts: maxAttempts,
		baseDelay:   baseDelay,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// WithObserver reports attempts and delays to o
func WithObserver(o Observer) RetrierOption {
	return func(r *Retrier) {
		if o != nil {
			r.observer = o
		}
	}
}

// WithTimer replaces the timer used for inter-attempt delays
func WithTimer(ctor TimerConstructor) RetrierOption {
	return func(r *Retrier) {
		if ctor != nil {
			r.newTimer = ctor
		}
	}
}

// Do invokes the Executor until it succeeds or attempts run out. Attempts
// are strictly sequential. Cancelling ctx stops any pending delay and
// returns the context's error
func (r *Retrier) Do(
	ctx context.Context, url string, body any,
) (api.RunResponse, error) {
	state := RetryState{
		MaxAttempts: r.maxAttempts,
		BaseDelay:   r.baseDelay,
	}

	for attempt := 1; attempt <= r.maxAttempts; attempt++ {
		state.Attempt = attempt
		if attempt > 1 {
			delay := r.baseDelay * time.Duration(attempt-1)
			r.observer.DelayScheduled(state, delay)
			if err := r.wait(ctx, delay); err != nil {
				return nil, err
			}
		}

		r.observer.AttemptStarted(state)
		res, err := r.executor.Post(ctx, url, body)
		if err == nil {
			return res, nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}

		state.LastError = err
		r.observer.AttemptFailed(state)
	}

	return nil, &RetriesExhaustedError{
		Attempts:  r.maxAttempts,
		LastError: state.LastError,
	}
}

func (r *Retrier) wait(ctx context.Context, delay time.Duration) error {
	if delay <= 0 {
		return ctx.Err()
	}

	t := r.newTimer(delay)
	defer t.Stop()

	select {
	case <-t.Channel():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
