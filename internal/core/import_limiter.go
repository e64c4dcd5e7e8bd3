package core

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"
)

// ErrImportBusy is returned when no import slot frees up within the wait
// time. Clients should retry after a short delay.
var ErrImportBusy = errors.New("import in progress, please try again later")

// DefaultMaxConcurrentImports is the default number of import slots.
const DefaultMaxConcurrentImports = 1

// DefaultMaxWaitTime is how long an import waits for a slot before it is
// rejected.
const DefaultMaxWaitTime = 30 * time.Second

// ImportLimiter hands out import slots.
//
// The importer checks rows against a snapshot of the store and then writes
// to it, so two imports sharing a store must not overlap: a row imported by
// one would be missing from the other's duplicate check. With the default
// single slot, holding a slot means holding the store. More slots are only
// safe for stores that are disjoint per import.
type ImportLimiter struct {
	slots   chan struct{}
	maxWait time.Duration
	waiting atomic.Int32
}

// NewImportLimiter creates a limiter with maxConcurrent slots. Imports that
// cannot get one within maxWait fail with ErrImportBusy.
func NewImportLimiter(maxConcurrent int, maxWait time.Duration) *ImportLimiter {
	if maxConcurrent <= 0 {
		maxConcurrent = DefaultMaxConcurrentImports
	}
	if maxWait <= 0 {
		maxWait = DefaultMaxWaitTime
	}
	return &ImportLimiter{
		slots:   make(chan struct{}, maxConcurrent),
		maxWait: maxWait,
	}
}

// Acquire waits for a slot and returns the function that gives it back.
// The snapshot read and every write of one import must happen between
// Acquire and release. Calling release more than once is harmless.
//
// It fails with ErrImportBusy after the wait time, or with ctx's error when
// ctx ends first.
func (l *ImportLimiter) Acquire(ctx context.Context) (release func(), err error) {
	l.waiting.Add(1)
	defer l.waiting.Add(-1)

	timer := time.NewTimer(l.maxWait)
	defer timer.Stop()

	select {
	case l.slots <- struct{}{}:
		var once sync.Once
		return func() { once.Do(func() { <-l.slots }) }, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-timer.C:
		return nil, ErrImportBusy
	}
}

// ActiveCount returns the number of held slots.
func (l *ImportLimiter) ActiveCount() int {
	return len(l.slots)
}

// MaxConcurrent returns the number of slots.
func (l *ImportLimiter) MaxConcurrent() int {
	return cap(l.slots)
}

// Available returns the number of free slots.
func (l *ImportLimiter) Available() int {
	return cap(l.slots) - len(l.slots)
}

// WaitForDrain blocks until no slot is held or ctx ends. Imports still
// queued in Acquire are not waited for.
func (l *ImportLimiter) WaitForDrain(ctx context.Context) error {
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for l.ActiveCount() > 0 {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
	return nil
}

// ImportLimiterStatus is a snapshot of slot usage.
type ImportLimiterStatus struct {
	Active        int `json:"active"`
	Waiting       int `json:"waiting"`
	Available     int `json:"available"`
	MaxConcurrent int `json:"max_concurrent"`
}

// Status returns the current slot usage.
func (l *ImportLimiter) Status() ImportLimiterStatus {
	active := len(l.slots)
	return ImportLimiterStatus{
		Active:        active,
		Waiting:       int(l.waiting.Load()),
		Available:     cap(l.slots) - active,
		MaxConcurrent: cap(l.slots),
	}
}
