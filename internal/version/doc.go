// Package version exposes build metadata for noSleep.
//
// Version, Commit and BuildTime are injected at build time via ldflags and
// default to sensible values for local builds.
package version
