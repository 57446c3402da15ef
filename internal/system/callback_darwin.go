//go:build darwin && cgo

package system

import "C"

//export nosleepOnPowerEvent
func nosleepOnPowerEvent(source C.int) {
	if w := currentWatcher.Load(); w != nil {
		w.notify(Source(source))
	}
}
