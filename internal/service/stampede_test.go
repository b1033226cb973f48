package service

import (
	"sync"
	"testing"
)

// TestStampedeTracker_RecordMiss_RecordHit verifies that RecordMiss increments and returns
// the concurrent count per key and that RecordHit decrements correctly until the key is removed.
func TestStampedeTracker_RecordMiss_RecordHit(t *testing.T) {
	st := newStampedeTracker()
	key := "fusionados"

	if got := st.RecordMiss(key); got != 1 {
		t.Errorf("RecordMiss first = %d, want 1", got)
	}
	if got := st.RecordMiss(key); got != 2 {
		t.Errorf("RecordMiss second = %d, want 2", got)
	}

	st.RecordHit(key)
	if got := st.RecordMiss(key); got != 2 {
		t.Errorf("after one hit, RecordMiss = %d, want 2", got)
	}
	st.RecordHit(key)
	st.RecordHit(key)
	if got := st.RecordMiss(key); got != 1 {
		t.Errorf("after all hit, RecordMiss = %d, want 1", got)
	}
	st.RecordHit(key)

	// extra hits must not drive the count negative
	st.RecordHit(key)
	if got := st.RecordMiss(key); got != 1 {
		t.Errorf("after surplus hit, RecordMiss = %d, want 1", got)
	}
}

// TestStampedeTracker_Concurrent verifies that concurrent RecordMiss/RecordHit calls
// do not race and leave the tracker in a consistent state.
func TestStampedeTracker_Concurrent(t *testing.T) {
	st := newStampedeTracker()
	key := "fusionados"
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			st.RecordMiss(key)
			st.RecordHit(key)
		}()
	}
	wg.Wait()
	if got := st.RecordMiss(key); got != 1 {
		t.Errorf("after concurrent ops RecordMiss = %d, want 1", got)
	}
	st.RecordHit(key)
}
