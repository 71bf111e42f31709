/******************************************************************************
 * Copyright (c) 2025-2026 Tenebris Technologies Inc.                         *
 * Please see LICENSE file for details.                                       *
 ******************************************************************************/

package gateway

import (
	"context"
	"fmt"
	"runtime"
	"time"

	"github.com/PivotLLM/GatewayAuth/global"
)

// PollResult is the outcome of a single polling attempt. When Continue is
// false exactly one of Data or Err is expected to be set.
type PollResult[T any] struct {
	Continue bool
	Data     *T
	Err      error
}

// Continue asks the poller for another attempt
func Continue[T any]() PollResult[T] {
	return PollResult[T]{Continue: true}
}

// Done stops polling and returns v
func Done[T any](v T) PollResult[T] {
	return PollResult[T]{Data: &v}
}

// Fail stops polling with err
func Fail[T any](err error) PollResult[T] {
	return PollResult[T]{Err: err}
}

// PollFunc performs one attempt
type PollFunc[T any] func(ctx context.Context) PollResult[T]

// Sleeper suspends the caller for d or until ctx is done
type Sleeper func(ctx context.Context, d time.Duration) error

// PollOptions configures a single Poll invocation
type PollOptions[T any] struct {
	Interval    time.Duration
	MaxAttempts int
	PollFn      PollFunc[T]
	Sleep       Sleeper       // optional, defaults to SleepContext
	Logger      global.Logger // optional
	Name        string        // used in log messages
	OnAttempt   func(int)     // optional, called before each attempt
}

// Poll drives PollFn until it stops or MaxAttempts is exhausted. The first
// attempt runs immediately and every later attempt is preceded by a wait of
// exactly Interval. Cancellation of ctx is observed between attempts and
// during the wait; the context handed to PollFn is detached from
// cancellation so a request already in flight completes.
func Poll[T any](ctx context.Context, opts PollOptions[T]) (T, error) {
	var zero T

	if opts.MaxAttempts < 1 {
		return zero, fmt.Errorf("%w: got %d", ErrInvalidMaxAttempts, opts.MaxAttempts)
	}
	if opts.PollFn == nil {
		return zero, ErrMissingPollFunction
	}

	sleep := opts.Sleep
	if sleep == nil {
		sleep = SleepContext
	}
	name := opts.Name
	if name == "" {
		name = "poll"
	}

	attemptCtx := context.WithoutCancel(ctx)

	for attempt := 1; attempt <= opts.MaxAttempts; attempt++ {
		if attempt > 1 {
			if err := sleep(ctx, opts.Interval); err != nil {
				return zero, fmt.Errorf("%w: %w", ErrPollCancelled, err)
			}
		}
		if err := ctx.Err(); err != nil {
			return zero, fmt.Errorf("%w: %w", ErrPollCancelled, err)
		}

		if opts.OnAttempt != nil {
			opts.OnAttempt(attempt)
		}

		result := opts.PollFn(attemptCtx)
		if result.Continue {
			if opts.Logger != nil {
				opts.Logger.Debugf("%s: attempt %d/%d pending", name, attempt, opts.MaxAttempts)
			}
			continue
		}

		if result.Err != nil {
			return zero, result.Err
		}
		if result.Data == nil {
			return zero, ErrPollNoData
		}

		if opts.Logger != nil && attempt > 1 {
			opts.Logger.Debugf("%s: completed after %d attempts", name, attempt)
		}
		return *result.Data, nil
	}

	if opts.Logger != nil {
		opts.Logger.Warningf("%s: all %d attempts exhausted", name, opts.MaxAttempts)
	}
	return zero, ErrPollTimeout
}

// SleepContext waits for d or until ctx is done. A non-positive d yields the
// processor without delay.
func SleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		runtime.Gosched()
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
