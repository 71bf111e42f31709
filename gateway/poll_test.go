/******************************************************************************
 * Copyright (c) 2025-2026 Tenebris Technologies Inc.                         *
 * Please see LICENSE file for details.                                       *
 ******************************************************************************/

package gateway

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPollExhaustsAttempts(t *testing.T) {
	sleeper := &recordingSleeper{}
	calls := 0

	_, err := Poll(context.Background(), PollOptions[string]{
		Interval:    2 * time.Second,
		MaxAttempts: 4,
		Sleep:       sleeper.Sleep,
		PollFn: func(ctx context.Context) PollResult[string] {
			calls++
			return Continue[string]()
		},
	})

	require.ErrorIs(t, err, ErrPollTimeout)
	assert.Equal(t, 4, calls)
	assert.Equal(t, []time.Duration{2 * time.Second, 2 * time.Second, 2 * time.Second}, sleeper.Delays(),
		"every attempt after the first waits exactly one interval")
}

func TestPollStopsWithData(t *testing.T) {
	sleeper := &recordingSleeper{}
	calls := 0

	value, err := Poll(context.Background(), PollOptions[int]{
		Interval:    time.Second,
		MaxAttempts: 10,
		Sleep:       sleeper.Sleep,
		PollFn: func(ctx context.Context) PollResult[int] {
			calls++
			if calls == 3 {
				return Done(42)
			}
			return Continue[int]()
		},
	})

	require.NoError(t, err)
	assert.Equal(t, 42, value)
	assert.Equal(t, 3, calls)
	assert.Len(t, sleeper.Delays(), 2)
}

func TestPollFirstAttemptImmediate(t *testing.T) {
	sleeper := &recordingSleeper{}

	value, err := Poll(context.Background(), PollOptions[string]{
		Interval:    time.Hour,
		MaxAttempts: 1,
		Sleep:       sleeper.Sleep,
		PollFn: func(ctx context.Context) PollResult[string] {
			return Done("ready")
		},
	})

	require.NoError(t, err)
	assert.Equal(t, "ready", value)
	assert.Empty(t, sleeper.Delays())
}

func TestPollStopsWithError(t *testing.T) {
	boom := errors.New("boom")
	calls := 0

	_, err := Poll(context.Background(), PollOptions[string]{
		MaxAttempts: 5,
		Sleep:       (&recordingSleeper{}).Sleep,
		PollFn: func(ctx context.Context) PollResult[string] {
			calls++
			return Fail[string](boom)
		},
	})

	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 1, calls)
}

func TestPollStopWithoutData(t *testing.T) {
	_, err := Poll(context.Background(), PollOptions[string]{
		MaxAttempts: 3,
		PollFn: func(ctx context.Context) PollResult[string] {
			return PollResult[string]{}
		},
	})

	assert.ErrorIs(t, err, ErrPollNoData)
}

func TestPollInvalidOptions(t *testing.T) {
	for _, attempts := range []int{0, -1} {
		called := false
		_, err := Poll(context.Background(), PollOptions[string]{
			MaxAttempts: attempts,
			PollFn: func(ctx context.Context) PollResult[string] {
				called = true
				return Done("x")
			},
		})
		assert.ErrorIs(t, err, ErrInvalidMaxAttempts)
		assert.False(t, called)
	}

	_, err := Poll(context.Background(), PollOptions[string]{MaxAttempts: 1})
	assert.ErrorIs(t, err, ErrMissingPollFunction)
}

func TestPollCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0

	_, err := Poll(ctx, PollOptions[string]{
		Interval:    time.Millisecond,
		MaxAttempts: 100,
		PollFn: func(pollCtx context.Context) PollResult[string] {
			calls++
			if calls == 2 {
				cancel()
				// The attempt context survives cancellation of the caller
				assert.NoError(t, pollCtx.Err())
			}
			return Continue[string]()
		},
	})

	require.ErrorIs(t, err, ErrPollCancelled)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 2, calls, "no attempt starts after cancellation")
}

func TestPollAlreadyCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	calls := 0

	_, err := Poll(ctx, PollOptions[string]{
		MaxAttempts: 3,
		PollFn: func(ctx context.Context) PollResult[string] {
			calls++
			return Done("x")
		},
	})

	assert.ErrorIs(t, err, ErrPollCancelled)
	assert.Zero(t, calls)
}

func TestPollZeroIntervalUsesRealSleeper(t *testing.T) {
	calls := 0
	attempts := []int{}
	logger := newTestLogger()

	_, err := Poll(context.Background(), PollOptions[string]{
		Interval:    0,
		MaxAttempts: 3,
		Logger:      logger,
		Name:        "zero",
		OnAttempt:   func(n int) { attempts = append(attempts, n) },
		PollFn: func(ctx context.Context) PollResult[string] {
			calls++
			return Continue[string]()
		},
	})

	assert.ErrorIs(t, err, ErrPollTimeout)
	assert.Equal(t, 3, calls)
	assert.Equal(t, []int{1, 2, 3}, attempts)
	assert.True(t, logged(logger, "zero: all 3 attempts exhausted"))
}

func TestSleepContext(t *testing.T) {
	require.NoError(t, SleepContext(context.Background(), time.Millisecond))
	require.NoError(t, SleepContext(context.Background(), 0))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	start := time.Now()
	err := SleepContext(ctx, time.Minute)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Less(t, time.Since(start), time.Second)
}
