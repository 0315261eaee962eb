package lifecycle

import (
	"sync/atomic"
	"time"
)

// shutdownAt is nil while serving and holds the signal time while draining.
var shutdownAt atomic.Pointer[time.Time]

// SetShuttingDown marks the process as draining (true) or serving (false).
// Health reports shutting-down with 503 while draining.
func SetShuttingDown(v bool) {
	if !v {
		shutdownAt.Store(nil)
		return
	}
	now := time.Now()
	shutdownAt.CompareAndSwap(nil, &now)
}

// IsShuttingDown returns true once shutdown has started.
func IsShuttingDown() bool {
	return shutdownAt.Load() != nil
}

// ShutdownStartedAt returns when draining began.
func ShutdownStartedAt() (time.Time, bool) {
	if p := shutdownAt.Load(); p != nil {
		return *p, true
	}
	return time.Time{}, false
}
