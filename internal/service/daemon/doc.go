// Package daemon runs the noSleep agent.
//
// Run walks the lifecycle Init, SettingUp, Running and ShuttingDown: it takes
// the instance lock, subscribes to lid and power-source changes, evaluates the
// policy once synchronously and then re-evaluates after every coalesced burst
// of OS notifications until the context is canceled. The loop goroutine is the
// only writer of daemon state. Cleanup runs in a fixed order after it returns.
package daemon
