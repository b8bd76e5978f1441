// Package ratelimit provides a coalescing debounce primitive used
// between the protocol receive paths and the channel stores.
//
// Bursts of incoming network updates are collapsed into at most one
// flush per update interval, while a force deadline bounds worst-case
// staleness under continuous churn.
package ratelimit

import (
	"sync"
	"time"
)

// settleDelay is the pause inserted after a deferred flush when more
// changes arrived during the wait, before the next cycle is scheduled.
const settleDelay = 50 * time.Millisecond

// Limiter coalesces calls to an update function.
//
// ScheduleUpdate invokes the function immediately when enough time has
// passed since the last flush (or the force deadline has expired), and
// otherwise schedules exactly one deferred invocation for the remaining
// interval. The final state is always eventually flushed.
//
// Thread Safety:
//   - All methods are safe for concurrent use from multiple goroutines.
//   - Flushes never interleave; the update function runs serialized.
type Limiter struct {
	update     func()
	interval   time.Duration
	forceAfter time.Duration

	// flushMu serializes invocations of the update function so a
	// deferred flush and a forced flush can never double-apply.
	flushMu sync.Mutex

	mu         sync.Mutex
	lastRun    time.Time
	lastForced time.Time
	pending    bool
	scheduled  bool
	timer      *time.Timer
	stopped    bool
}

// New creates a Limiter.
//
// Parameters:
//   - update: function invoked to flush pending state
//   - interval: minimum spacing between flushes under load
//   - forceAfter: hard cap on staleness; a schedule call past this
//     deadline flushes immediately regardless of the interval
func New(update func(), interval, forceAfter time.Duration) *Limiter {
	now := time.Now()
	return &Limiter{
		update:     update,
		interval:   interval,
		forceAfter: forceAfter,
		// Backdate so the very first schedule call flushes immediately.
		lastRun:    now.Add(-interval),
		lastForced: now,
	}
}

// ScheduleUpdate requests a flush of pending state.
//
// The call returns without blocking on the interval: when a flush
// cannot run yet, a single timer is armed for the remaining time and
// concurrent callers piggyback on it.
func (l *Limiter) ScheduleUpdate() {
	l.mu.Lock()
	if l.stopped {
		l.mu.Unlock()
		return
	}
	l.pending = true
	now := time.Now()

	if now.Sub(l.lastForced) >= l.forceAfter {
		l.pending = false
		l.lastRun = now
		l.lastForced = now
		l.mu.Unlock()
		l.runUpdate()
		return
	}

	elapsed := now.Sub(l.lastRun)
	if elapsed >= l.interval {
		l.pending = false
		l.lastRun = now
		l.mu.Unlock()
		l.runUpdate()
		return
	}

	if !l.scheduled {
		l.scheduled = true
		l.timer = time.AfterFunc(l.interval-elapsed, l.delayedUpdate)
	}
	l.mu.Unlock()
}

// Stop cancels any outstanding deferred flush. Pending state is not
// flushed; callers needing a final flush should invoke the update
// function themselves before stopping.
func (l *Limiter) Stop() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.stopped = true
	if l.timer != nil {
		l.timer.Stop()
		l.timer = nil
	}
}

// runUpdate invokes the update function under the flush mutex.
func (l *Limiter) runUpdate() {
	l.flushMu.Lock()
	defer l.flushMu.Unlock()
	l.update()
}

// delayedUpdate fires when the deferred timer expires. If further
// changes arrived while the flush ran, a short settle delay is added
// and another cycle is scheduled, guaranteeing the final state lands.
func (l *Limiter) delayedUpdate() {
	l.mu.Lock()
	if l.stopped {
		l.mu.Unlock()
		return
	}
	run := l.pending
	if run {
		l.pending = false
		l.lastRun = time.Now()
	}
	l.mu.Unlock()

	if run {
		l.runUpdate()
	}

	l.mu.Lock()
	l.scheduled = false
	again := l.pending && !l.stopped
	l.mu.Unlock()

	if again {
		time.Sleep(settleDelay)
		l.ScheduleUpdate()
	}
}
