// Package system binds noSleep to the operating system.
//
// It reads the power source, lid and battery state, creates and releases
// sleep assertions, and delivers power-source and lid change notifications.
// The real implementation uses IOKit through cgo and is built only on darwin;
// elsewhere every constructor fails with ErrUnsupported.
package system
