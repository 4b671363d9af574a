// Playwarden - Unattended Media Playback Supervisor
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/playwarden

// Package retry is the one retry-with-backoff helper used by the player
// control client, the state file writer and the channel reconnect logic.
package retry

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v5"

	"github.com/tomtom215/playwarden/internal/logging"
	"github.com/tomtom215/playwarden/internal/metrics"
)

// Policy describes how often and how long to retry.
type Policy struct {
	// MaxAttempts is the total number of attempts including the first.
	// Zero retries until the context is canceled.
	MaxAttempts int

	// Delay is the wait before the second attempt.
	Delay time.Duration

	// Linear grows the wait by Delay after every failure instead of
	// keeping it fixed.
	Linear bool

	// MaxDelay caps a linear wait. Zero means no cap.
	MaxDelay time.Duration
}

// Fixed returns a policy with a constant delay.
func Fixed(attempts int, delay time.Duration) Policy {
	return Policy{MaxAttempts: attempts, Delay: delay}
}

// Linear returns a policy whose delay grows by step after every failure.
func Linear(attempts int, step time.Duration) Policy {
	return Policy{MaxAttempts: attempts, Delay: step, Linear: true}
}

// BackOff returns the backoff.BackOff for this policy.
func (p Policy) BackOff() backoff.BackOff {
	if p.Linear {
		return &linearBackOff{step: p.Delay, limit: p.MaxDelay}
	}
	return backoff.NewConstantBackOff(p.Delay)
}

// linearBackOff waits step, 2*step, 3*step and so on.
type linearBackOff struct {
	step  time.Duration
	limit time.Duration
	n     int
}

func (b *linearBackOff) NextBackOff() time.Duration {
	b.n++
	d := time.Duration(b.n) * b.step
	if b.limit > 0 && d > b.limit {
		return b.limit
	}
	return d
}

func (b *linearBackOff) Reset() { b.n = 0 }

// Permanent marks err as not worth retrying.
func Permanent(err error) error {
	return backoff.Permanent(err)
}

// Do runs op until it succeeds, returns a Permanent error, the policy is
// exhausted, or ctx is done. name labels log lines and metrics.
func Do[T any](ctx context.Context, name string, p Policy, op func(context.Context) (T, error)) (T, error) {
	opts := []backoff.RetryOption{
		backoff.WithBackOff(p.BackOff()),
		backoff.WithMaxElapsedTime(0),
		backoff.WithNotify(func(err error, wait time.Duration) {
			metrics.RetryAttempts.WithLabelValues(name).Inc()
			logging.Debug().Err(err).Str("operation", name).Dur("wait", wait).Msg("Retrying")
		}),
	}
	if p.MaxAttempts > 0 {
		opts = append(opts, backoff.WithMaxTries(uint(p.MaxAttempts)))
	}

	res, err := backoff.Retry(ctx, func() (T, error) { return op(ctx) }, opts...)
	if err != nil {
		var perm *backoff.PermanentError
		if errors.As(err, &perm) {
			err = perm.Unwrap()
		}
		metrics.RetryExhausted.WithLabelValues(name).Inc()
	}
	return res, err
}

// Run is Do for operations without a result.
func Run(ctx context.Context, name string, p Policy, op func(context.Context) error) error {
	_, err := Do(ctx, name, p, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, op(ctx)
	})
	return err
}
