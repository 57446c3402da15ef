package power

import "fmt"

// State is a point-in-time snapshot of the machine's power situation.
// It is produced fresh on every evaluation and never mutated.
type State struct {
	// OnAC reports whether the providing power source is external power.
	OnAC bool
	// LidClosed reports the clamshell state. Unreadable state is reported as open.
	LidClosed bool
	// BatteryPercent is the capacity of the first power source, nil when unknown.
	BatteryPercent *int
}

// Restore reasons, checked in this order.
const (
	ReasonSwitchedToBattery = "Switched to battery"
	ReasonLidOpened         = "Lid opened"
	ReasonReadyToSleep      = "Ready to sleep"
)

// NewState builds a snapshot. A battery percent outside [0,100] is dropped.
func NewState(onAC, lidClosed bool, batteryPercent int, hasBattery bool) State {
	s := State{
		OnAC:      onAC,
		LidClosed: lidClosed,
	}

	if hasBattery && batteryPercent >= 0 && batteryPercent <= 100 {
		pct := batteryPercent
		s.BatteryPercent = &pct
	}

	return s
}

// ShouldPrevent is the whole policy: AC power and a closed lid.
func (s State) ShouldPrevent() bool {
	return s.OnAC && s.LidClosed
}

// RestoreReason explains why sleep is allowed again. AC is checked before the lid.
func (s State) RestoreReason() string {
	switch {
	case !s.OnAC:
		return ReasonSwitchedToBattery
	case !s.LidClosed:
		return ReasonLidOpened
	default:
		return ReasonReadyToSleep
	}
}

// PowerSource renders the power source for humans.
func (s State) PowerSource() string {
	if s.OnAC {
		return "AC"
	}

	return "Battery"
}

// Lid renders the lid state for humans.
func (s State) Lid() string {
	if s.LidClosed {
		return "Closed"
	}

	return "Open"
}

// String implements fmt.Stringer.
func (s State) String() string {
	if s.BatteryPercent == nil {
		return fmt.Sprintf("power=%s lid=%s", s.PowerSource(), s.Lid())
	}

	return fmt.Sprintf("power=%s lid=%s battery=%d%%", s.PowerSource(), s.Lid(), *s.BatteryPercent)
}
