package core

// sync_limiter.go bounds sync runs.
//
// A shop runs at most one sync at a time; a second request for the same
// shop fails at once with ErrSyncInProgress. Across shops at most
// maxConcurrent syncs run in parallel, and a request that cannot get a slot
// within maxWait fails with ErrTooManySyncs.
//
// WaitForDrain blocks until every running sync has finished, for graceful
// shutdown.

import (
	"context"
	"sync"
	"time"
)

// DefaultMaxConcurrentSyncs is the default limit for parallel sync runs.
const DefaultMaxConcurrentSyncs = 4

// DefaultSyncMaxWait is how long to wait for a slot before rejecting.
const DefaultSyncMaxWait = 10 * time.Second

// SyncLimiter controls concurrent sync runs using a semaphore plus a set of
// shops with a sync in flight.
type SyncLimiter struct {
	slots   chan struct{}
	maxWait time.Duration

	mu      sync.Mutex
	running map[string]struct{}
}

// NewSyncLimiter creates a limiter that allows at most maxConcurrent
// simultaneous syncs. Non-positive values select the defaults.
func NewSyncLimiter(maxConcurrent int, maxWait time.Duration) *SyncLimiter {
	if maxConcurrent <= 0 {
		maxConcurrent = DefaultMaxConcurrentSyncs
	}
	if maxWait <= 0 {
		maxWait = DefaultSyncMaxWait
	}
	return &SyncLimiter{
		slots:   make(chan struct{}, maxConcurrent),
		maxWait: maxWait,
		running: make(map[string]struct{}),
	}
}

// Acquire reserves shop and a slot. The returned release must be called
// when the sync finishes; calling it more than once is a no-op.
func (l *SyncLimiter) Acquire(ctx context.Context, shop string) (release func(), err error) {
	l.mu.Lock()
	if _, busy := l.running[shop]; busy {
		l.mu.Unlock()
		return nil, ErrSyncInProgress
	}
	l.running[shop] = struct{}{}
	l.mu.Unlock()

	forget := func() {
		l.mu.Lock()
		delete(l.running, shop)
		l.mu.Unlock()
	}

	waitCtx, cancel := context.WithTimeout(ctx, l.maxWait)
	defer cancel()

	select {
	case l.slots <- struct{}{}:
	case <-waitCtx.Done():
		forget()
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, ErrTooManySyncs
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			<-l.slots
			forget()
		})
	}, nil
}

// ActiveCount returns the number of syncs holding a slot.
func (l *SyncLimiter) ActiveCount() int {
	return len(l.slots)
}

// MaxConcurrent returns the maximum allowed concurrent syncs.
func (l *SyncLimiter) MaxConcurrent() int {
	return cap(l.slots)
}

// Running reports whether shop has a sync in flight or waiting for a slot.
func (l *SyncLimiter) Running(shop string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, ok := l.running[shop]
	return ok
}

// WaitForDrain blocks until all active syncs complete or ctx is done.
func (l *SyncLimiter) WaitForDrain(ctx context.Context) error {
	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()

	for {
		if l.ActiveCount() == 0 {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// SyncLimiterStatus is a snapshot of the limiter for logs.
type SyncLimiterStatus struct {
	Active        int `json:"active"`
	Available     int `json:"available"`
	MaxConcurrent int `json:"max_concurrent"`
}

// Status returns the current limiter state.
func (l *SyncLimiter) Status() SyncLimiterStatus {
	active := len(l.slots)
	return SyncLimiterStatus{
		Active:        active,
		Available:     cap(l.slots) - active,
		MaxConcurrent: cap(l.slots),
	}
}
