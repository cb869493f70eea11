package app

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrRunInProgress is returned when another run holds the gate and the wait
// expires. Callers may retry once the current run finishes.
var ErrRunInProgress = errors.New("a run is already in progress")

// runGate admits one run at a time. The input and output directories are
// shared, so two cycles must never interleave.
type runGate struct {
	slot    chan struct{}
	maxWait time.Duration

	mu      sync.RWMutex
	started time.Time
}

func newRunGate(maxWait time.Duration) *runGate {
	return &runGate{
		slot:    make(chan struct{}, 1),
		maxWait: maxWait,
	}
}

// Acquire takes the slot, waiting up to maxWait for a run in progress.
// A zero maxWait fails at once when busy. The caller must Release.
func (g *runGate) Acquire(ctx context.Context) error {
	select {
	case g.slot <- struct{}{}:
		g.mark(time.Now())
		return nil
	default:
	}
	if g.maxWait <= 0 {
		return ErrRunInProgress
	}

	waitCtx, cancel := context.WithTimeout(ctx, g.maxWait)
	defer cancel()

	select {
	case g.slot <- struct{}{}:
		g.mark(time.Now())
		return nil
	case <-waitCtx.Done():
		// Distinguish the caller going away from the wait expiring
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return ErrRunInProgress
	}
}

// Release frees the slot taken by Acquire.
func (g *runGate) Release() {
	g.mark(time.Time{})
	<-g.slot
}

func (g *runGate) mark(t time.Time) {
	g.mu.Lock()
	g.started = t
	g.mu.Unlock()
}

// Busy reports whether a run holds the gate and since when.
func (g *runGate) Busy() (time.Time, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.started, !g.started.IsZero()
}
