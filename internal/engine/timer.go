package engine

import (
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

// Timer is a single-shot, pausable countdown. Start begins the delay;
// Pause freezes the remaining time and suppresses the pending fire;
// Resume continues from the remaining time. The callback runs at most
// once per Timer, from the timer's own goroutine.
//
// Each Resume bumps a generation counter and spawns a waiter carrying
// the new generation. A waiter fires the callback only if no Pause or
// Resume happened since it was spawned, so a Pause issued strictly
// after a Resume always wins the race, regardless of how close to
// expiry the pending fire was. Pause also releases the waiter through
// its done channel, so paused countdowns never strand a goroutine.
type Timer struct {
	clock    clockwork.Clock
	interval time.Duration
	fn       func()

	mu        sync.Mutex
	gen       uint64
	running   bool
	fired     bool
	elapsed   time.Duration
	startedAt time.Time
	done      chan struct{}
}

// NewTimer creates a countdown that will invoke fn once interval of
// running time has accumulated. The timer starts paused.
func NewTimer(clock clockwork.Clock, interval time.Duration, fn func()) *Timer {
	return &Timer{
		clock:    clock,
		interval: interval,
		fn:       fn,
	}
}

// Start begins the countdown. Equivalent to Resume.
func (t *Timer) Start() { t.Resume() }

// Cancel stops the countdown for good. Equivalent to Pause; callers
// that cancel simply never resume.
func (t *Timer) Cancel() { t.Pause() }

// Pause freezes the remaining time. Any in-flight fire becomes a no-op.
// Pausing a paused or already-fired timer does nothing.
func (t *Timer) Pause() {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.running {
		return
	}
	t.gen++
	t.running = false
	t.elapsed += t.clock.Since(t.startedAt)
	if t.done != nil {
		close(t.done)
		t.done = nil
	}
}

// Resume continues counting down the remaining time. Resuming a timer
// that is already running, or that has fired, is a no-op.
func (t *Timer) Resume() {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.running || t.fired {
		return
	}
	t.gen++
	t.running = true
	t.startedAt = t.clock.Now()

	remaining := t.interval - t.elapsed
	if remaining < 0 {
		remaining = 0
	}

	gen := t.gen
	done := make(chan struct{})
	t.done = done
	tm := t.clock.NewTimer(remaining)
	go func() {
		select {
		case <-tm.Chan():
			t.expire(gen)
		case <-done:
			tm.Stop()
		}
	}()
}

// Remaining reports how much countdown time is left.
func (t *Timer) Remaining() time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()

	elapsed := t.elapsed
	if t.running {
		elapsed += t.clock.Since(t.startedAt)
	}
	remaining := t.interval - elapsed
	if remaining < 0 {
		remaining = 0
	}
	return remaining
}

func (t *Timer) expire(gen uint64) {
	t.mu.Lock()
	if gen != t.gen || !t.running {
		// A Pause or Resume superseded this waiter.
		t.mu.Unlock()
		return
	}
	t.running = false
	t.fired = true
	t.elapsed = t.interval
	t.done = nil
	t.mu.Unlock()

	t.fn()
}
