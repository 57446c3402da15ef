// Package power contains the core domain types of noSleep.
//
// State is an immutable snapshot of the power source, lid and battery, and
// the functions here implement the fixed decision rule: prevent system sleep
// only while running on AC power with the lid closed.
package power
