// Package notify delivers user-visible notifications through an external
// helper process without flooding the user.
//
// The Dispatcher keeps only the latest request, launches at most one helper
// at a time and spaces launches by a minimum interval. Requests arriving
// during the cooldown are deferred and coalesced, never queued.
package notify
