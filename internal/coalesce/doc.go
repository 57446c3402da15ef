// Package coalesce collapses bursts of triggers into one deferred signal.
package coalesce
