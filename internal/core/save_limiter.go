package core

// save_limiter.go bounds how many save batches run at once across all
// controls of the process.
//
// A batch fans out one update per record, so an unbounded number of
// simultaneous batches would translate into an unbounded number of store
// connections. Batches beyond the limit wait up to maxWait for a slot and
// then fail with ErrTooManySaves; the user can simply save again.
//
// Drain blocks until no batch is running and is used during shutdown.

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrTooManySaves is returned when every save slot stays occupied for maxWait.
var ErrTooManySaves = errors.New("too many saves in progress, please try again")

// DefaultMaxConcurrentSaves is the default limit for parallel save batches.
const DefaultMaxConcurrentSaves = 8

// DefaultSaveWaitTime is how long a batch waits for a slot before rejecting.
const DefaultSaveWaitTime = 10 * time.Second

// SaveLimiter is a counting semaphore over save batches.
type SaveLimiter struct {
	slots   chan struct{}
	maxWait time.Duration

	mu     sync.Mutex
	active int
	idle   chan struct{} // closed while active == 0
}

// SaveLimiterStatus is a snapshot of the limiter for monitoring.
type SaveLimiterStatus struct {
	Active        int `json:"active"`
	Available     int `json:"available"`
	MaxConcurrent int `json:"max_concurrent"`
}

// NewSaveLimiter allows at most maxConcurrent batches at a time.
func NewSaveLimiter(maxConcurrent int, maxWait time.Duration) *SaveLimiter {
	if maxConcurrent <= 0 {
		maxConcurrent = DefaultMaxConcurrentSaves
	}
	if maxWait <= 0 {
		maxWait = DefaultSaveWaitTime
	}
	idle := make(chan struct{})
	close(idle)
	return &SaveLimiter{
		slots:   make(chan struct{}, maxConcurrent),
		maxWait: maxWait,
		idle:    idle,
	}
}

// Acquire takes a slot, waiting at most maxWait.
// The caller must call Release exactly once after a nil return.
func (l *SaveLimiter) Acquire(ctx context.Context) error {
	timer := time.NewTimer(l.maxWait)
	defer timer.Stop()

	select {
	case l.slots <- struct{}{}:
		l.started()
		return nil
	case <-timer.C:
		return ErrTooManySaves
	case <-ctx.Done():
		return ctx.Err()
	}
}

// TryAcquire takes a slot only if one is free right now.
func (l *SaveLimiter) TryAcquire() bool {
	select {
	case l.slots <- struct{}{}:
		l.started()
		return true
	default:
		return false
	}
}

// Release returns a slot taken by Acquire or TryAcquire.
func (l *SaveLimiter) Release() {
	l.mu.Lock()
	l.active--
	if l.active == 0 {
		close(l.idle)
	}
	l.mu.Unlock()

	<-l.slots
}

func (l *SaveLimiter) started() {
	l.mu.Lock()
	if l.active == 0 {
		l.idle = make(chan struct{})
	}
	l.active++
	l.mu.Unlock()
}

// ActiveCount returns the number of running batches.
func (l *SaveLimiter) ActiveCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.active
}

// Drain blocks until no batch is running or ctx is done.
func (l *SaveLimiter) Drain(ctx context.Context) error {
	for {
		l.mu.Lock()
		idle := l.idle
		active := l.active
		l.mu.Unlock()

		if active == 0 {
			return nil
		}
		select {
		case <-idle:
			// Re-check: a new batch may have started right after the close
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// Status returns the current limiter state.
func (l *SaveLimiter) Status() SaveLimiterStatus {
	active := l.ActiveCount()
	return SaveLimiterStatus{
		Active:        active,
		Available:     cap(l.slots) - len(l.slots),
		MaxConcurrent: cap(l.slots),
	}
}
