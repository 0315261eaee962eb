// Package traffic keeps sliding windows of weather fetch outcomes and
// toggle-route rate-limit denials. Health reads the fetch error rate from it.
package traffic

import (
	"sync"
	"time"
)

// retention bounds how long outcomes are kept. Fetches run every ten minutes,
// so health windows are measured in hours rather than seconds.
const retention = 6 * time.Hour

var defaultTracker Tracker

// RecordFetchSuccess records a weather fetch that produced a reading.
func RecordFetchSuccess() {
	defaultTracker.RecordFetchSuccess()
}

// RecordFetchError records a weather fetch that ended in "Weather unavailable".
func RecordFetchError() {
	defaultTracker.RecordFetchError()
}

// RecordDenied records a rate-limit denial (429) on a toggle route.
func RecordDenied() {
	defaultTracker.RecordDenied()
}

// DenialCount returns the number of denials within the window.
func DenialCount(window time.Duration) int {
	return defaultTracker.DenialCount(window)
}

// ErrorRate returns (failed, total) fetches within the window.
func ErrorRate(window time.Duration) (errors, total int) {
	return defaultTracker.ErrorRate(window)
}

// LastFetch returns the time and outcome of the most recent fetch, if any.
func LastFetch() (at time.Time, ok bool, seen bool) {
	return defaultTracker.LastFetch()
}

// Reset clears all recorded outcomes. For tests only.
func Reset() {
	defaultTracker.Reset()
}

// Tracker maintains sliding windows of outcome timestamps.
type Tracker struct {
	mu           sync.Mutex
	successTimes []time.Time
	errorTimes   []time.Time
	deniedTimes  []time.Time
	lastFetchAt  time.Time
	lastFetchOK  bool
}

// RecordFetchSuccess records a successful fetch at the current time.
func (t *Tracker) RecordFetchSuccess() {
	t.recordFetch(&t.successTimes, true)
}

// RecordFetchError records a failed fetch at the current time.
func (t *Tracker) RecordFetchError() {
	t.recordFetch(&t.errorTimes, false)
}

// RecordDenied records a rate-limit denial at the current time.
func (t *Tracker) RecordDenied() {
	t.mu.Lock()
	defer t.mu.Unlock()
	now := time.Now()
	t.deniedTimes = append(t.deniedTimes, now)
	t.pruneLocked(now)
}

func (t *Tracker) recordFetch(slice *[]time.Time, ok bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	now := time.Now()
	*slice = append(*slice, now)
	t.lastFetchAt = now
	t.lastFetchOK = ok
	t.pruneLocked(now)
}

// DenialCount returns the number of rate-limit denials within the window.
func (t *Tracker) DenialCount(window time.Duration) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return countInWindow(t.deniedTimes, time.Now().Add(-window))
}

// ErrorRate returns (errorCount, totalCount) of fetches within the window.
// Denials are not fetches and are excluded.
func (t *Tracker) ErrorRate(window time.Duration) (errors, total int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	cutoff := time.Now().Add(-window)
	errCount := countInWindow(t.errorTimes, cutoff)
	successCount := countInWindow(t.successTimes, cutoff)
	return errCount, errCount + successCount
}

// LastFetch returns when the latest fetch completed and whether it succeeded.
// seen is false before the first fetch completes.
func (t *Tracker) LastFetch() (at time.Time, ok bool, seen bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.lastFetchAt, t.lastFetchOK, !t.lastFetchAt.IsZero()
}

// Reset clears all recorded outcomes.
func (t *Tracker) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.successTimes = nil
	t.errorTimes = nil
	t.deniedTimes = nil
	t.lastFetchAt = time.Time{}
	t.lastFetchOK = false
}

func countInWindow(times []time.Time, cutoff time.Time) int {
	n := 0
	for _, ts := range times {
		if !ts.Before(cutoff) {
			n++
		}
	}
	return n
}

// pruneLocked drops timestamps older than retention. Must be called with mu held.
func (t *Tracker) pruneLocked(now time.Time) {
	cutoff := now.Add(-retention)
	prune := func(slice *[]time.Time) {
		times := *slice
		i := 0
		for ; i < len(times) && times[i].Before(cutoff); i++ {
		}
		if i > 0 {
			*slice = append(times[:0], times[i:]...)
		}
	}
	prune(&t.successTimes)
	prune(&t.errorTimes)
	prune(&t.deniedTimes)
}
