// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package store

import (
	"context"
	"log/slog"
	"time"
)

// Janitor periodically expires idle conversations from a MemoryStore.
type Janitor struct {
	store    *MemoryStore
	ttl      time.Duration
	interval time.Duration
	cancel   context.CancelFunc
	done     chan struct{}
}

// NewJanitor builds a janitor that expires conversations idle longer than
// ttl, sweeping every interval. A non-positive interval defaults to
// ttl/4, floored at one minute.
func NewJanitor(store *MemoryStore, ttl, interval time.Duration) *Janitor {
	if interval <= 0 {
		interval = ttl / 4
		if interval < time.Minute {
			interval = time.Minute
		}
	}
	return &Janitor{store: store, ttl: ttl, interval: interval}
}

// Start launches the sweep loop. Call Stop to shut it down.
func (j *Janitor) Start(ctx context.Context) {
	ctx, j.cancel = context.WithCancel(ctx)
	j.done = make(chan struct{})

	go func() {
		defer close(j.done)
		ticker := time.NewTicker(j.interval)
		defer ticker.Stop()
		slog.Info("Conversation janitor started", "ttl", j.ttl, "interval", j.interval)
		for {
			select {
			case <-ctx.Done():
				slog.Info("Conversation janitor stopped")
				return
			case <-ticker.C:
				if expired := j.store.ExpireIdle(j.ttl); expired > 0 {
					slog.Info("Expired idle conversations", "count", expired)
				}
			}
		}
	}()
}

// Stop halts the sweep loop and waits for it to exit.
func (j *Janitor) Stop() {
	if j.cancel == nil {
		return
	}
	j.cancel()
	<-j.done
}
