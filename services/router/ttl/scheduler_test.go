// Copyright (C) 2025 Meridian Pay (eng@meridianpay.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package ttl

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

type countingSweeper struct {
	calls   atomic.Int64
	removed int
	err     error
}

func (c *countingSweeper) Sweep(ctx context.Context) (int, error) {
	c.calls.Add(1)
	return c.removed, c.err
}

func TestScheduler_RunNow(t *testing.T) {
	sweeper := &countingSweeper{removed: 3}
	scheduler := NewScheduler(sweeper, time.Hour)

	removed, err := scheduler.RunNow(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if removed != 3 {
		t.Errorf("expected 3 removed, got %d", removed)
	}
	if sweeper.calls.Load() != 1 {
		t.Errorf("expected exactly one sweep call, got %d", sweeper.calls.Load())
	}
}

func TestScheduler_StartRunsInitialSweep(t *testing.T) {
	sweeper := &countingSweeper{}
	scheduler := NewScheduler(sweeper, time.Hour)

	if err := scheduler.Start(context.Background()); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	defer func() { _ = scheduler.Stop() }()

	deadline := time.After(2 * time.Second)
	for sweeper.calls.Load() == 0 {
		select {
		case <-deadline:
			t.Fatal("initial sweep did not run")
		case <-time.After(10 * time.Millisecond):
		}
	}
}

func TestScheduler_DoubleStartFails(t *testing.T) {
	scheduler := NewScheduler(&countingSweeper{}, time.Hour)

	if err := scheduler.Start(context.Background()); err != nil {
		t.Fatalf("first start failed: %v", err)
	}
	defer func() { _ = scheduler.Stop() }()

	if err := scheduler.Start(context.Background()); err == nil {
		t.Error("second start must fail while running")
	}
}

func TestScheduler_StopIsIdempotent(t *testing.T) {
	scheduler := NewScheduler(&countingSweeper{}, time.Hour)

	if err := scheduler.Start(context.Background()); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	if err := scheduler.Stop(); err != nil {
		t.Errorf("stop failed: %v", err)
	}
	if err := scheduler.Stop(); err != nil {
		t.Errorf("second stop must be a no-op, got: %v", err)
	}
}

func TestScheduler_SweepErrorDoesNotStopLoop(t *testing.T) {
	sweeper := &countingSweeper{err: errors.New("store unavailable")}
	scheduler := NewScheduler(sweeper, 20*time.Millisecond)

	if err := scheduler.Start(context.Background()); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	defer func() { _ = scheduler.Stop() }()

	deadline := time.After(2 * time.Second)
	for sweeper.calls.Load() < 2 {
		select {
		case <-deadline:
			t.Fatal("scheduler stopped after a sweep error")
		case <-time.After(10 * time.Millisecond):
		}
	}
}
