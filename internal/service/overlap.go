package service

import (
	"sync"
)

// overlapTracker counts fetches in flight per cache key. Overlapping fetches
// are allowed; the count only feeds weatherFetchOverlapTotal.
type overlapTracker struct {
	mu       sync.Mutex
	inFlight map[string]int
}

func newOverlapTracker() *overlapTracker {
	return &overlapTracker{
		inFlight: make(map[string]int),
	}
}

// Begin records a fetch start for key and returns the in-flight count including it.
// Caller must defer End(key).
func (ot *overlapTracker) Begin(key string) int {
	ot.mu.Lock()
	defer ot.mu.Unlock()
	ot.inFlight[key]++
	return ot.inFlight[key]
}

// End records completion of a fetch for key.
func (ot *overlapTracker) End(key string) {
	ot.mu.Lock()
	defer ot.mu.Unlock()
	if count, ok := ot.inFlight[key]; ok && count > 0 {
		ot.inFlight[key]--
		if ot.inFlight[key] == 0 {
			delete(ot.inFlight, key)
		}
	}
}

// Count returns the fetches currently in flight for key.
func (ot *overlapTracker) Count(key string) int {
	ot.mu.Lock()
	defer ot.mu.Unlock()
	return ot.inFlight[key]
}
