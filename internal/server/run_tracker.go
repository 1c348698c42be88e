package server

import (
	"context"
	"fmt"
	"sync"
)

type trackedRun struct {
	cancel context.CancelFunc
}

// RunTracker keeps the cancel functions of in-flight runs so they can be
// stopped individually or all at once on shutdown.
type RunTracker struct {
	mu   sync.Mutex
	runs map[string]*trackedRun
}

// NewRunTracker creates an empty tracker.
func NewRunTracker() *RunTracker {
	return &RunTracker{
		runs: make(map[string]*trackedRun),
	}
}

// Start registers key and returns a context cancelled by Cancel, CloseAll or
// the returned done func. done must be called when the run ends.
func (rt *RunTracker) Start(parent context.Context, key string) (context.Context, func(), error) {
	rt.mu.Lock()
	defer rt.mu.Unlock()

	if _, ok := rt.runs[key]; ok {
		return nil, nil, fmt.Errorf("run %q already in progress", key)
	}

	ctx, cancel := context.WithCancel(parent)
	tr := &trackedRun{cancel: cancel}
	rt.runs[key] = tr

	done := func() {
		cancel()
		rt.mu.Lock()
		if rt.runs[key] == tr {
			delete(rt.runs, key)
		}
		rt.mu.Unlock()
	}
	return ctx, done, nil
}

// Cancel stops the run registered under key. It reports whether one was
// found.
func (rt *RunTracker) Cancel(key string) bool {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	tr, ok := rt.runs[key]
	if ok {
		tr.cancel()
		delete(rt.runs, key)
	}
	return ok
}

// CloseAll cancels every in-flight run.
func (rt *RunTracker) CloseAll() {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	for key, tr := range rt.runs {
		tr.cancel()
		delete(rt.runs, key)
	}
}

// Count returns the number of in-flight runs.
func (rt *RunTracker) Count() int {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	return len(rt.runs)
}
