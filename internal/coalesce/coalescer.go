package coalesce

import (
	"sync"
	"time"
)

// Coalescer debounces triggers: every Trigger (re)schedules a single pending
// signal at now+window, so a burst produces exactly one value on C, about one
// window after the last trigger.
type Coalescer struct {
	// window is the quiet period.
	window time.Duration
	// fired carries at most one ready signal.
	fired chan struct{}

	// mu protects the fields below.
	mu sync.Mutex
	// armed gates Trigger until the owner has established initial state.
	armed bool
	// timer is the pending deferred signal, nil when none.
	timer *time.Timer
	// generation invalidates timers that fired after being replaced.
	generation uint64
}

// New creates a disarmed coalescer.
func New(window time.Duration) *Coalescer {
	return &Coalescer{
		window: window,
		fired:  make(chan struct{}, 1),
	}
}

// C delivers one value per completed quiet window.
func (c *Coalescer) C() <-chan struct{} {
	return c.fired
}

// Arm enables Trigger. Triggers before Arm are dropped.
func (c *Coalescer) Arm() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.armed = true
}

// Trigger replaces any pending signal with one due a full window from now.
func (c *Coalescer) Trigger() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.armed {
		return
	}

	if c.timer != nil {
		c.timer.Stop()
	}

	c.generation++
	generation := c.generation

	c.timer = time.AfterFunc(c.window, func() {
		c.expire(generation)
	})
}

// expire runs on the timer goroutine. A replaced or stopped timer may still
// get here, so the generation decides whether the signal is still valid.
func (c *Coalescer) expire(generation uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.armed || generation != c.generation {
		return
	}

	c.timer = nil

	select {
	case c.fired <- struct{}{}:
	default:
	}
}

// Pending reports whether a signal is scheduled or ready but not yet received.
func (c *Coalescer) Pending() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.timer != nil || len(c.fired) > 0
}

// Stop disarms the coalescer and cancels the pending signal, including one
// that is ready but not yet received.
func (c *Coalescer) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.armed = false
	c.generation++

	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}

	select {
	case <-c.fired:
	default:
	}
}
