//go:build darwin && cgo

package system

/*
#cgo LDFLAGS: -framework IOKit -framework CoreFoundation

#include <CoreFoundation/CoreFoundation.h>
#include <IOKit/IOKitLib.h>
#include <IOKit/ps/IOPowerSources.h>

// Implemented in Go, see callback_darwin.go.
extern void nosleepOnPowerEvent(int source);

static io_service_t lidService;
static IONotificationPortRef lidPort;
static io_object_t lidNotifier;
static CFRunLoopSourceRef powerSource;
static CFRunLoopRef watcherLoop;

static void lidCallback(void *refCon, io_service_t service, uint32_t messageType, void *messageArgument) {
	// The message type differs between macOS releases, the evaluation re-reads the state anyway.
	nosleepOnPowerEvent(0);
}

static void powerSourceCallback(void *context) {
	nosleepOnPowerEvent(1);
}

static void captureLoop(void) {
	watcherLoop = CFRunLoopGetCurrent();
	CFRetain(watcherLoop);
}

static void releaseLoop(void) {
	if (watcherLoop != NULL) {
		CFRelease(watcherLoop);
		watcherLoop = NULL;
	}
}

static void runLoop(void) {
	CFRunLoopRun();
}

static void stopLoop(void) {
	if (watcherLoop != NULL) {
		CFRunLoopStop(watcherLoop);
	}
}

static int installLid(void) {
	lidService = IOServiceGetMatchingService(MACH_PORT_NULL, IOServiceMatching("IOPMrootDomain"));
	if (lidService == 0) {
		return -1;
	}

	lidPort = IONotificationPortCreate(MACH_PORT_NULL);
	if (lidPort == NULL) {
		IOObjectRelease(lidService);
		lidService = 0;
		return -2;
	}

	kern_return_t kr = IOServiceAddInterestNotification(
		lidPort, lidService, kIOGeneralInterest, lidCallback, NULL, &lidNotifier);
	if (kr != KERN_SUCCESS) {
		IONotificationPortDestroy(lidPort);
		lidPort = NULL;
		IOObjectRelease(lidService);
		lidService = 0;
		return (int)kr;
	}

	CFRunLoopAddSource(watcherLoop, IONotificationPortGetRunLoopSource(lidPort), kCFRunLoopDefaultMode);

	return 0;
}

static void removeLid(void) {
	if (lidNotifier != 0) {
		IOObjectRelease(lidNotifier);
		lidNotifier = 0;
	}

	if (lidPort != NULL) {
		CFRunLoopRemoveSource(watcherLoop, IONotificationPortGetRunLoopSource(lidPort), kCFRunLoopDefaultMode);
		IONotificationPortDestroy(lidPort);
		lidPort = NULL;
	}

	if (lidService != 0) {
		IOObjectRelease(lidService);
		lidService = 0;
	}
}

static int installPowerSource(void) {
	powerSource = IOPSNotificationCreateRunLoopSource(powerSourceCallback, NULL);
	if (powerSource == NULL) {
		return -1;
	}

	CFRunLoopAddSource(watcherLoop, powerSource, kCFRunLoopDefaultMode);

	return 0;
}

static void removePowerSource(void) {
	if (powerSource != NULL) {
		CFRunLoopRemoveSource(watcherLoop, powerSource, kCFRunLoopDefaultMode);
		CFRelease(powerSource);
		powerSource = NULL;
	}
}
*/
import "C"

import (
	"errors"
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"
	"time"
)

// stopRetryInterval re-issues CFRunLoopStop in case it landed before CFRunLoopRun.
const stopRetryInterval = 50 * time.Millisecond

var (
	// errWatcherInUse is returned when a second watcher is requested.
	// The IOKit handles live in C statics, so only one watcher may exist.
	errWatcherInUse = errors.New("power watcher already exists")

	// currentWatcher receives the C callbacks.
	//nolint:gochecknoglobals // C callbacks have no way to carry a Go pointer.
	currentWatcher atomic.Pointer[darwinWatcher]
)

// darwinWatcher runs a CFRunLoop on a dedicated, locked OS thread.
type darwinWatcher struct {
	events    chan Source
	done      chan struct{}
	started   atomic.Bool
	closeOnce sync.Once
}

// NewWatcher returns the IOKit backed Watcher.
func NewWatcher() (Watcher, error) {
	w := &darwinWatcher{
		// One slot per source: a pending trigger is as good as many.
		events: make(chan Source, 2),
		done:   make(chan struct{}),
	}

	if !currentWatcher.CompareAndSwap(nil, w) {
		return nil, errWatcherInUse
	}

	return w, nil
}

// Events carries one value per OS callback.
func (w *darwinWatcher) Events() <-chan Source {
	return w.events
}

// Start installs both subscriptions on the watcher thread.
func (w *darwinWatcher) Start() []Installation {
	if !w.started.CompareAndSwap(false, true) {
		return nil
	}

	results := make(chan []Installation, 1)

	go w.loop(results)

	return <-results
}

func (w *darwinWatcher) loop(results chan<- []Installation) {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()
	defer close(w.done)

	C.captureLoop()

	results <- []Installation{
		{Source: SourceLid, Err: installError("IOServiceAddInterestNotification", C.installLid())},
		{Source: SourcePower, Err: installError("IOPSNotificationCreateRunLoopSource", C.installPowerSource())},
	}

	// Returns immediately when nothing was installed.
	C.runLoop()

	C.removePowerSource()
	C.removeLid()
}

// Close stops the run loop and waits for the subscriptions to be removed.
func (w *darwinWatcher) Close() {
	w.closeOnce.Do(func() {
		defer currentWatcher.CompareAndSwap(w, nil)

		if !w.started.Load() {
			return
		}

		ticker := time.NewTicker(stopRetryInterval)
		defer ticker.Stop()

		for {
			C.stopLoop()

			select {
			case <-w.done:
				C.releaseLoop()
				return
			case <-ticker.C:
			}
		}
	})
}

// notify is called from the run loop thread. It must not block or allocate.
func (w *darwinWatcher) notify(source Source) {
	select {
	case w.events <- source:
	default:
	}
}

func installError(call string, code C.int) error {
	if code == 0 {
		return nil
	}

	return fmt.Errorf("%s failed: %d", call, int(code))
}
