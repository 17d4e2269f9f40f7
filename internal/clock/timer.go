// Package clock implements the cancellable, restartable countdown used by
// an auction to drive its reset-on-bid timer. It holds no knowledge of
// auctions, queues, or bids: callers observe ticks and expiry through
// plain callbacks.
package clock

import (
	"sync"
	"time"
)

// Timer is a one-second-resolution countdown. It is not safe for
// concurrent Start/Cancel calls from multiple goroutines without external
// serialization — callers are expected to drive it from a single
// goroutine, matching the per-auction single-threaded model it lives in.
type Timer struct {
	mu      sync.Mutex
	cancel  chan struct{}
	running bool
}

// New returns a stopped Timer.
func New() *Timer {
	return &Timer{}
}

// Start begins a countdown from initial seconds. onTick is invoked once
// per second, starting immediately with the initial value, so the first
// broadcast a caller makes from onTick carries the full duration. onExpiry
// is invoked exactly once when the countdown reaches zero, unless Cancel
// or a subsequent Start preempts it first.
//
// Start implicitly cancels any run already in progress before beginning
// the new one, satisfying the "only one timer task live" invariant.
func (t *Timer) Start(initial int, onTick func(remaining int), onExpiry func()) {
	t.Cancel()

	t.mu.Lock()
	cancel := make(chan struct{})
	t.cancel = cancel
	t.running = true
	t.mu.Unlock()

	go t.run(initial, cancel, onTick, onExpiry)
}

// Cancel stops emission. It guarantees no further tick or expiry callback
// fires for the run it cancels. Calling Cancel when nothing is running is
// a no-op.
func (t *Timer) Cancel() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.running {
		return
	}
	close(t.cancel)
	t.running = false
}

// Running reports whether a countdown is currently active.
func (t *Timer) Running() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.running
}

func (t *Timer) run(remaining int, cancel chan struct{}, onTick func(int), onExpiry func()) {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for remaining > 0 {
		select {
		case <-cancel:
			return
		default:
		}

		onTick(remaining)

		select {
		case <-cancel:
			return
		case <-ticker.C:
			remaining--
		}
	}

	t.finish(cancel, onExpiry)
}

// finish marks the run as no longer active before invoking onExpiry, so a
// caller that starts a new timer from within the expiry callback does not
// observe a stale "running" run still holding the clock.
func (t *Timer) finish(cancel chan struct{}, onExpiry func()) {
	t.mu.Lock()
	if t.cancel == cancel {
		t.running = false
	}
	t.mu.Unlock()

	select {
	case <-cancel:
		return
	default:
	}
	onExpiry()
}
