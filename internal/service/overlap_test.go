package service

import (
	"sync"
	"testing"
)

func TestOverlapTracker_BeginEnd(t *testing.T) {
	ot := newOverlapTracker()
	key := "63.3667,23.4833"

	if got := ot.Begin(key); got != 1 {
		t.Errorf("Begin first = %d, want 1", got)
	}
	if got := ot.Begin(key); got != 2 {
		t.Errorf("Begin second = %d, want 2", got)
	}
	ot.End(key)
	if got := ot.Count(key); got != 1 {
		t.Errorf("Count after one End = %d, want 1", got)
	}
	ot.End(key)
	ot.End(key) // extra End is ignored
	if got := ot.Begin(key); got != 1 {
		t.Errorf("Begin after all ended = %d, want 1", got)
	}
	ot.End(key)
}

func TestOverlapTracker_Concurrent(t *testing.T) {
	ot := newOverlapTracker()
	key := "k"
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ot.Begin(key)
			ot.End(key)
		}()
	}
	wg.Wait()
	if got := ot.Count(key); got != 0 {
		t.Errorf("Count after concurrent ops = %d, want 0", got)
	}
}
