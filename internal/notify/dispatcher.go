package notify

import (
	"context"
	"sync"
	"time"

	"github.com/oshokin/nosleep/internal/logger"
)

// Dispatcher rate-limits and coalesces notification requests.
// All launches happen on its own goroutine, so a hung helper never stalls the caller.
type Dispatcher struct {
	// launcher starts the helper process.
	launcher Launcher
	// minInterval is the minimum time between two launches.
	minInterval time.Duration
	// retryBackoff is the delay after a failed launch.
	retryBackoff time.Duration

	// mu protects next.
	mu sync.Mutex
	// next is the latest request not yet launched.
	next *Request

	// wake nudges the loop after Send.
	wake chan struct{}
	// stop ends the loop.
	stop chan struct{}
	// done is closed when the loop has returned.
	done chan struct{}

	startOnce sync.Once
	closeOnce sync.Once
}

// Options configures the dispatcher.
type Options struct {
	// MinInterval is the minimum time between two launches.
	MinInterval time.Duration
	// RetryBackoff is the delay after a failed launch.
	RetryBackoff time.Duration
}

// NewDispatcher creates a dispatcher. Call Start before Send has any effect.
func NewDispatcher(launcher Launcher, opts Options) *Dispatcher {
	return &Dispatcher{
		launcher:     launcher,
		minInterval:  opts.MinInterval,
		retryBackoff: opts.RetryBackoff,
		wake:         make(chan struct{}, 1),
		stop:         make(chan struct{}),
		done:         make(chan struct{}),
	}
}

// Start runs the dispatch loop until Close.
func (d *Dispatcher) Start(ctx context.Context) {
	d.startOnce.Do(func() {
		go d.run(logger.WithName(ctx, "notify"))
	})
}

// Send records req as the latest request, superseding any deferred one.
func (d *Dispatcher) Send(req Request) {
	d.mu.Lock()
	d.next = &req
	d.mu.Unlock()

	select {
	case d.wake <- struct{}{}:
	default:
	}
}

// Close stops the loop. Deferred requests are dropped and a helper that is
// already running is left alone.
func (d *Dispatcher) Close() {
	d.closeOnce.Do(func() {
		close(d.stop)

		// Start may never have been called.
		d.startOnce.Do(func() { close(d.done) })
		<-d.done
	})
}

//nolint:cyclop // One select plus the send policy, easier to follow in one place.
func (d *Dispatcher) run(ctx context.Context) {
	defer close(d.done)

	var (
		lastSend time.Time
		inFlight <-chan error
		timer    *time.Timer
		timerC   <-chan time.Time
	)

	schedule := func(delay time.Duration) {
		if timer != nil {
			timer.Stop()
		}

		timer = time.NewTimer(delay)
		timerC = timer.C
	}

	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-d.stop:
			return
		case <-d.wake:
		case <-timerC:
			timer, timerC = nil, nil
		case err := <-inFlight:
			inFlight = nil

			if err != nil {
				logger.DebugKV(ctx, "Notification helper exited with error", "error", err)
			}
		}

		// One helper at a time: its completion re-enters this loop.
		if inFlight != nil {
			continue
		}

		if !d.hasNext() {
			continue
		}

		if !lastSend.IsZero() {
			if remaining := d.minInterval - time.Since(lastSend); remaining > 0 {
				schedule(remaining)
				continue
			}
		}

		req := d.takeNext()

		done, err := d.launcher.Launch(ctx, *req)
		if err != nil {
			logger.WarnKV(ctx, "Failed to launch notification helper", "error", err, "retry_in", d.retryBackoff)

			d.restore(req)
			schedule(d.retryBackoff)

			continue
		}

		lastSend = time.Now()
		inFlight = done
	}
}

// hasNext reports whether a request is waiting.
func (d *Dispatcher) hasNext() bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	return d.next != nil
}

// takeNext consumes the latest request. Send only ever replaces next, so it
// is non-nil after hasNext returned true.
func (d *Dispatcher) takeNext() *Request {
	d.mu.Lock()
	defer d.mu.Unlock()

	req := d.next
	d.next = nil

	return req
}

// restore puts a failed request back unless a newer one arrived.
func (d *Dispatcher) restore(req *Request) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.next == nil {
		d.next = req
	}
}
