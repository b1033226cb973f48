package service

import (
	"sync"
)

// stampedeTracker counts in-progress rebuilds per cache key. Rebuilds are
// not serialized; a count above one means concurrent misses are each
// hitting upstream, which is only measured.
type stampedeTracker struct {
	mu     sync.Mutex
	active map[string]int
}

func newStampedeTracker() *stampedeTracker {
	return &stampedeTracker{
		active: make(map[string]int),
	}
}

// RecordMiss registers a rebuild for key and returns the number now in
// progress. Pair with RecordHit when the rebuild ends.
func (st *stampedeTracker) RecordMiss(key string) int {
	st.mu.Lock()
	defer st.mu.Unlock()
	st.active[key]++
	return st.active[key]
}

// RecordHit marks a rebuild for key as finished.
func (st *stampedeTracker) RecordHit(key string) {
	st.mu.Lock()
	defer st.mu.Unlock()
	if st.active[key] <= 1 {
		delete(st.active, key)
		return
	}
	st.active[key]--
}
