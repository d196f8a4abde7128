package logging

import (
	"sync/atomic"
	"time"
)

// DefaultGateWindow is how often a Gate opens when no window is configured.
const DefaultGateWindow = 5 * time.Minute

// Gate rate-limits verbose diagnostics. It opens at most once per window and is
// safe for use by concurrent requests.
type Gate struct {
	window time.Duration
	last   atomic.Int64 // unix nanos of the last time the gate opened
	now    func() time.Time
}

// NewGate creates a gate that opens at most once per window.
func NewGate(window time.Duration) *Gate {
	if window <= 0 {
		window = DefaultGateWindow
	}
	return &Gate{window: window, now: time.Now}
}

// Allow reports whether the caller may emit detailed output now. Only one of
// several concurrent callers inside the same window gets true.
func (g *Gate) Allow() bool {
	now := g.now().UnixNano()
	for {
		last := g.last.Load()
		if last != 0 && now-last < int64(g.window) {
			return false
		}
		if g.last.CompareAndSwap(last, now) {
			return true
		}
	}
}

// MaybeInfo logs msg at info level when the gate is open, debug otherwise.
func (g *Gate) MaybeInfo(l *Logger, msg string, fields ...interface{}) {
	if g.Allow() {
		l.Info(msg, fields...)
		return
	}
	l.Debug(msg, fields...)
}
