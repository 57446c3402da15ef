package version

import "fmt"

// Name is the product name shown in notifications, logs and CLI output.
const Name = "noSleep"

var (
	// Version is the semantic version of the build. It can be overridden via ldflags.
	Version = "1.0.0"
	// Commit is the short git SHA embedded at build time (or "none").
	Commit = "none"
	// BuildTime is the UTC build timestamp embedded at build time.
	BuildTime = "unknown"
)

// Short returns only the semantic version string.
func Short() string {
	return Version
}

// Banner returns the product name followed by the version, e.g. "noSleep v1.0.0".
func Banner() string {
	return fmt.Sprintf("%s v%s", Name, Version)
}

// Full returns a human-readable version string with commit and build time.
func Full() string {
	return fmt.Sprintf("%s, commit: %s, built at: %s", Banner(), Commit, BuildTime)
}
