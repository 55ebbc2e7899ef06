// Copyright (C) 2025 Meridian Pay (eng@meridianpay.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package ttl

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// Sweeper is the minimal contract the scheduler drives. The conversation
// store satisfies it.
type Sweeper interface {
	Sweep(ctx context.Context) (int, error)
}

// Scheduler runs the conversation sweeper at a fixed interval.
//
// # Description
//
// Manages the lifecycle of a background goroutine that periodically removes
// expired conversations. Uses the ticker + done channel pattern for graceful
// shutdown. Sweep errors are logged and do not stop the loop; the query-time
// filter covers any window where a sweep failed.
//
// # Thread Safety
//
// All public methods are thread-safe.
type Scheduler struct {
	sweeper  Sweeper
	interval time.Duration
	done     chan struct{}
	mu       sync.Mutex
	running  bool
}

// DefaultSweepInterval balances cleanup responsiveness against store load.
const DefaultSweepInterval = 1 * time.Hour

// NewScheduler creates a sweep scheduler. A non-positive interval falls back
// to DefaultSweepInterval.
func NewScheduler(sweeper Sweeper, interval time.Duration) *Scheduler {
	if interval <= 0 {
		interval = DefaultSweepInterval
	}
	return &Scheduler{
		sweeper:  sweeper,
		interval: interval,
		done:     make(chan struct{}),
	}
}

// Start begins the background sweep loop. An initial sweep runs immediately;
// the loop then continues until Stop is called or ctx is cancelled.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return fmt.Errorf("sweep scheduler is already running")
	}
	s.running = true
	s.done = make(chan struct{}) // Reset for potential restart
	s.mu.Unlock()

	slog.Info("Conversation sweep scheduler starting", "interval", s.interval.String())
	go s.runLoop(ctx)
	return nil
}

// Stop signals the scheduler to stop. Safe to call multiple times; does not
// interrupt an in-progress sweep.
func (s *Scheduler) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return nil
	}

	slog.Info("Conversation sweep scheduler stopping")
	close(s.done)
	s.running = false
	return nil
}

// RunNow triggers an immediate sweep without waiting for the next tick.
// Useful for manual invocation and tests.
func (s *Scheduler) RunNow(ctx context.Context) (int, error) {
	return s.sweeper.Sweep(ctx)
}

func (s *Scheduler) runLoop(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.executeSweep(ctx)

	for {
		select {
		case <-ctx.Done():
			slog.Info("Conversation sweep scheduler stopped (context cancelled)")
			return
		case <-s.done:
			slog.Info("Conversation sweep scheduler stopped (stop requested)")
			return
		case <-ticker.C:
			s.executeSweep(ctx)
		}
	}
}

func (s *Scheduler) executeSweep(ctx context.Context) {
	start := time.Now()
	removed, err := s.sweeper.Sweep(ctx)
	if err != nil {
		slog.Error("Conversation sweep failed", "error", err)
		return
	}

	if removed > 0 {
		slog.Info("Conversation sweep completed",
			"conversations_removed", removed,
			"duration_ms", time.Since(start).Milliseconds(),
		)
	} else {
		slog.Debug("Conversation sweep completed (no expired conversations)")
	}
}
