package system

import (
	"errors"
	"fmt"

	"github.com/oshokin/nosleep/internal/domain/power"
)

// ErrUnsupported is returned by constructors on platforms without IOKit.
var ErrUnsupported = errors.New("unsupported platform")

// AssertionName tags the sleep assertion in pmset -g assertions and Activity Monitor.
const AssertionName = "noSleep - lid closed on AC power"

// Reader produces power snapshots. Read never fails: unreadable lid state is
// reported as open and unreadable battery capacity as unknown.
type Reader interface {
	Read() power.State
	Close()
}

// AssertionID is the opaque native assertion token.
type AssertionID uint32

// Asserter creates and releases system-sleep assertions.
type Asserter interface {
	Create(name string) (AssertionID, error)
	Release(id AssertionID) error
}

// Source identifies an OS notification subscription.
type Source int

// Subscriptions in installation order.
const (
	SourceLid Source = iota
	SourcePower
)

// String implements fmt.Stringer.
func (s Source) String() string {
	switch s {
	case SourceLid:
		return "lid"
	case SourcePower:
		return "power-source"
	default:
		return fmt.Sprintf("source(%d)", int(s))
	}
}

// Installation is the outcome of installing one subscription.
type Installation struct {
	Source Source
	Err    error
}

// Watcher delivers power-source and lid change notifications.
type Watcher interface {
	// Start installs the lid subscription, then the power-source one, and
	// reports each outcome in that order. A failed subscription simply never
	// delivers events.
	Start() []Installation
	// Events carries one value per OS callback. Bursts are expected.
	Events() <-chan Source
	// Close stops delivery and tears the subscriptions down in reverse order.
	Close()
}
