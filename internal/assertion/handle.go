package assertion

import (
	"context"
	"sync"

	"github.com/oshokin/nosleep/internal/logger"
	"github.com/oshokin/nosleep/internal/system"
)

// Handle owns at most one sleep assertion.
type Handle struct {
	// asserter talks to the OS.
	asserter system.Asserter
	// name tags the assertion in system tooling.
	name string

	// mu protects id and active.
	mu sync.Mutex
	// id is the native token, meaningful only while active.
	id system.AssertionID
	// active reports whether an assertion is currently held.
	active bool
}

// New creates an inactive handle.
func New(asserter system.Asserter, name string) *Handle {
	if name == "" {
		name = system.AssertionName
	}

	return &Handle{
		asserter: asserter,
		name:     name,
	}
}

// Acquire takes the assertion unless it is already held.
// Failure leaves the handle inactive; the next evaluation retries.
func (h *Handle) Acquire(ctx context.Context) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.active {
		return true
	}

	id, err := h.asserter.Create(h.name)
	if err != nil {
		logger.WarnKV(ctx, "Failed to create sleep assertion", "error", err)
		return false
	}

	h.id = id
	h.active = true

	logger.DebugKV(ctx, "Sleep assertion created", "assertion_id", id)

	return true
}

// Release drops the assertion if held. Local state is cleared even when the
// OS call fails, so the handle never believes it holds an assertion it cannot confirm.
func (h *Handle) Release(ctx context.Context) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if !h.active {
		return
	}

	if err := h.asserter.Release(h.id); err != nil {
		logger.WarnKV(ctx, "Failed to release sleep assertion", "assertion_id", h.id, "error", err)
	} else {
		logger.DebugKV(ctx, "Sleep assertion released", "assertion_id", h.id)
	}

	h.id = 0
	h.active = false
}

// Active reports whether the assertion is held.
func (h *Handle) Active() bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	return h.active
}
