package coalesce

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

const testWindow = 150 * time.Millisecond

// countFires drains c.C() in the background and counts values.
func countFires(t *testing.T, c *Coalescer) (*atomic.Int32, *atomic.Int64) {
	t.Helper()

	var (
		count  atomic.Int32
		lastAt atomic.Int64
		done   = make(chan struct{})
	)

	go func() {
		for {
			select {
			case <-c.C():
				lastAt.Store(time.Now().UnixNano())
				count.Add(1)
			case <-done:
				return
			}
		}
	}()

	t.Cleanup(func() { close(done) })

	return &count, &lastAt
}

// TestCoalescer_BurstYieldsOneSignal fires 10 triggers 10ms apart and expects a single signal.
func TestCoalescer_BurstYieldsOneSignal(t *testing.T) {
	t.Parallel()

	c := New(testWindow)
	c.Arm()

	count, lastAt := countFires(t, c)

	var lastTrigger time.Time

	for i := range 10 {
		if i > 0 {
			time.Sleep(10 * time.Millisecond)
		}

		c.Trigger()
		lastTrigger = time.Now()
	}

	require.Eventually(t, func() bool { return count.Load() == 1 }, time.Second, 5*time.Millisecond)
	require.Never(t, func() bool { return count.Load() > 1 }, 2*testWindow, 10*time.Millisecond)

	firedAfter := time.Unix(0, lastAt.Load()).Sub(lastTrigger)
	require.GreaterOrEqual(t, firedAfter, testWindow-5*time.Millisecond)
	require.False(t, c.Pending())
}

// TestCoalescer_SeparateBursts ensures bursts separated by more than a window each fire once.
func TestCoalescer_SeparateBursts(t *testing.T) {
	t.Parallel()

	c := New(20 * time.Millisecond)
	c.Arm()

	count, _ := countFires(t, c)

	c.Trigger()
	require.Eventually(t, func() bool { return count.Load() == 1 }, time.Second, 5*time.Millisecond)

	c.Trigger()
	c.Trigger()
	require.Eventually(t, func() bool { return count.Load() == 2 }, time.Second, 5*time.Millisecond)
}

// TestCoalescer_IgnoresTriggersBeforeArm verifies the setup guard.
func TestCoalescer_IgnoresTriggersBeforeArm(t *testing.T) {
	t.Parallel()

	c := New(10 * time.Millisecond)
	count, _ := countFires(t, c)

	c.Trigger()
	require.False(t, c.Pending())
	require.Never(t, func() bool { return count.Load() > 0 }, 100*time.Millisecond, 10*time.Millisecond)
}

// TestCoalescer_StopCancelsPending makes sure a stopped coalescer never signals.
func TestCoalescer_StopCancelsPending(t *testing.T) {
	t.Parallel()

	c := New(30 * time.Millisecond)
	c.Arm()
	c.Trigger()
	require.True(t, c.Pending())

	c.Stop()
	require.False(t, c.Pending())

	// Disarmed after Stop.
	c.Trigger()
	require.False(t, c.Pending())

	select {
	case <-c.C():
		t.Fatal("stopped coalescer signalled")
	case <-time.After(100 * time.Millisecond):
	}
}

// TestCoalescer_StopDrainsReadySignal checks a signal that fired but was not received is dropped.
func TestCoalescer_StopDrainsReadySignal(t *testing.T) {
	t.Parallel()

	c := New(5 * time.Millisecond)
	c.Arm()
	c.Trigger()

	require.Eventually(t, func() bool { return len(c.C()) == 1 }, time.Second, time.Millisecond)

	c.Stop()
	require.Empty(t, c.C())
}

// TestCoalescer_StaleExpireIsIgnored simulates a replaced timer that already fired.
func TestCoalescer_StaleExpireIsIgnored(t *testing.T) {
	t.Parallel()

	c := New(time.Hour)
	c.Arm()
	c.Trigger()
	c.Trigger()

	c.expire(1)
	require.Empty(t, c.C())

	c.expire(2)
	require.Len(t, c.C(), 1)
}
