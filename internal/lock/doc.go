// Package lock implements the single-instance guard of the daemon.
//
// The guard is a non-blocking exclusive advisory lock on a well-known file.
// The file records the holder's pid for external tooling; ReadOwner parses it
// and checks whether that process still exists, since a crashed daemon leaves
// the file behind without holding the lock.
package lock
