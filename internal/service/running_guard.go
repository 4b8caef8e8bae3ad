package service

import (
	"context"
	"sync"
)

// ExportedRunningGuard is an exported alias so _test packages can test the guard.
type ExportedRunningGuard = runningChecksGuard

// runningChecksGuard ensures only one run of a given check is in flight.
// Cron ticks and config-file events that land during a run are dropped.
type runningChecksGuard struct {
	mu      sync.Mutex
	running map[string]struct{}
	wg      sync.WaitGroup
}

// TryLock marks check as running. It returns false if a run is already in flight.
func (g *runningChecksGuard) TryLock(check string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.running == nil {
		g.running = make(map[string]struct{})
	}
	if _, ok := g.running[check]; ok {
		return false
	}
	g.running[check] = struct{}{}
	g.wg.Add(1)
	return true
}

// Unlock releases check. Must follow a successful TryLock.
func (g *runningChecksGuard) Unlock(check string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.running, check)
	g.wg.Done()
}

// Running reports whether check is in flight.
func (g *runningChecksGuard) Running(check string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	_, ok := g.running[check]
	return ok
}

// WaitAll blocks until in-flight runs finish or ctx is cancelled.
func (g *runningChecksGuard) WaitAll(ctx context.Context) {
	done := make(chan struct{})
	go func() {
		g.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
	}
}
