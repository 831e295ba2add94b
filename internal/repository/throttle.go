package repository

import (
	"sync"
	"time"
)

// throttle remembers, per node, when the last sample was accepted.
// The state lives in memory only and starts empty after a restart.
type throttle struct {
	mu     sync.Mutex
	window int64
	last   map[string]int64
}

func newThrottle(window time.Duration) *throttle {
	return &throttle{
		window: window.Milliseconds(),
		last:   make(map[string]int64),
	}
}

// reserve claims nowMs for nodeID if the previous accepted sample is at
// least one window old. It returns the previous value for release.
func (t *throttle) reserve(nodeID string, nowMs int64) (int64, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	prev, seen := t.last[nodeID]
	if seen && nowMs-prev < t.window {
		return prev, false
	}
	t.last[nodeID] = nowMs
	return prev, true
}

// release undoes a reservation whose write failed, unless a later
// reservation already replaced it.
func (t *throttle) release(nodeID string, nowMs, prev int64) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.last[nodeID] != nowMs {
		return
	}
	if prev == 0 {
		delete(t.last, nodeID)
		return
	}
	t.last[nodeID] = prev
}
