// Package state persists the daemon status published for the CLI.
//
// The FileRepository stores the status as YAML next to the lock file. The daemon
// rewrites it after every policy evaluation and removes it on shutdown.
package state
