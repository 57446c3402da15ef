// Package assertion owns the single process-wide sleep assertion.
//
// Handle makes acquire and release idempotent around a system.Asserter: the
// native token is held only while the handle is active, and release always
// clears local state even if the OS reports an error.
package assertion
