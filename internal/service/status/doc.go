// Package status gathers read-only diagnostics for the status and doctor
// commands. It never takes the instance lock or creates assertions.
package status
