// Playwarden - Unattended Media Playback Supervisor
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/playwarden

package retry

import (
	"context"
	"errors"
	"testing"
	"time"
)

var errFlaky = errors.New("flaky")

func TestDoSucceedsAfterFailures(t *testing.T) {
	calls := 0
	got, err := Do(context.Background(), "test", Fixed(3, time.Millisecond), func(context.Context) (int, error) {
		calls++
		if calls < 3 {
			return 0, errFlaky
		}
		return 42, nil
	})
	if err != nil {
		t.Fatalf("Do() error = %v", err)
	}
	if got != 42 || calls != 3 {
		t.Errorf("got %d after %d calls, want 42 after 3", got, calls)
	}
}

func TestDoStopsAtMaxAttempts(t *testing.T) {
	calls := 0
	err := Run(context.Background(), "test", Fixed(2, time.Millisecond), func(context.Context) error {
		calls++
		return errFlaky
	})
	if !errors.Is(err, errFlaky) {
		t.Errorf("Run() error = %v, want %v", err, errFlaky)
	}
	if calls != 2 {
		t.Errorf("calls = %d, want 2", calls)
	}
}

func TestDoPermanentErrorIsNotRetried(t *testing.T) {
	calls := 0
	err := Run(context.Background(), "test", Fixed(5, time.Millisecond), func(context.Context) error {
		calls++
		return Permanent(errFlaky)
	})
	if !errors.Is(err, errFlaky) {
		t.Errorf("Run() error = %v", err)
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
}

func TestDoHonorsContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	done := make(chan error, 1)
	go func() {
		done <- Run(ctx, "test", Fixed(0, time.Hour), func(context.Context) error {
			calls++
			return errFlaky
		})
	}()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("Run() error = %v, want context.Canceled", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestLinearBackOff(t *testing.T) {
	b := Policy{Delay: 10 * time.Millisecond, Linear: true, MaxDelay: 25 * time.Millisecond}.BackOff()
	want := []time.Duration{10 * time.Millisecond, 20 * time.Millisecond, 25 * time.Millisecond}
	for i, w := range want {
		if got := b.NextBackOff(); got != w {
			t.Errorf("step %d = %v, want %v", i, got, w)
		}
	}
	b.Reset()
	if got := b.NextBackOff(); got != 10*time.Millisecond {
		t.Errorf("after Reset = %v", got)
	}
}
