package status

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/oshokin/nosleep/internal/domain/power"
	"github.com/oshokin/nosleep/internal/lock"
	"github.com/oshokin/nosleep/internal/logger"
	"github.com/oshokin/nosleep/internal/repository/state"
	"github.com/oshokin/nosleep/internal/system"
	"github.com/oshokin/nosleep/internal/version"
)

// Service answers questions about the LaunchAgent.
type Service interface {
	Loaded(ctx context.Context) bool
	PlistValid(ctx context.Context) bool
}

// Report is one snapshot of the machine and the daemon.
type Report struct {
	// Power is the current power state, valid when PowerKnown is set.
	Power power.State
	// PowerKnown is false on platforms without IOKit.
	PowerKnown bool
	// Daemon is the owner recorded in the lock file.
	Daemon lock.Owner
	// Preventing is the assertion state published by the daemon, nil when unknown.
	Preventing *bool
	// Loaded reports whether launchd knows the job.
	Loaded bool
	// PlistValid reports whether the plist parses.
	PlistValid bool
	// Binary is the path of the running executable.
	Binary string
	// LockFile is the lock path, empty when the file does not exist.
	LockFile string
}

// Running reports whether a live daemon holds the lock.
func (r *Report) Running() bool {
	return r.Daemon.PID > 0 && r.Daemon.Alive
}

// Collector builds reports.
type Collector struct {
	// NewReader opens the power state reader.
	NewReader func() (system.Reader, error)
	// Service inspects the LaunchAgent.
	Service Service
	// LockFile is the daemon lock path.
	LockFile string
	// Statuses holds the status published by the daemon, optional.
	Statuses state.Repository
	// Binary is reported as is.
	Binary string
}

// Collect gathers a report. Every probe degrades to "unknown" instead of failing.
func (c *Collector) Collect(ctx context.Context) *Report {
	report := &Report{
		Binary: c.Binary,
	}

	if reader, err := c.NewReader(); err != nil {
		logger.DebugKV(ctx, "Power state unavailable", "error", err)
	} else {
		report.Power = reader.Read()
		report.PowerKnown = true

		reader.Close()
	}

	owner, err := lock.ReadOwner(c.LockFile)
	switch {
	case err == nil:
		report.Daemon = owner
	case errors.Is(err, lock.ErrNoOwner):
	default:
		logger.DebugKV(ctx, "Unreadable lock file", "path", c.LockFile, "error", err)
	}

	if _, err := os.Stat(c.LockFile); err == nil {
		report.LockFile = c.LockFile
	}

	// A status left behind by a dead daemon says nothing about the present.
	if report.Running() && c.Statuses != nil {
		if published, err := c.Statuses.Load(ctx); err == nil && published.PID == report.Daemon.PID {
			preventing := published.Preventing
			report.Preventing = &preventing
		}
	}

	if c.Service != nil {
		report.Loaded = c.Service.Loaded(ctx)
		report.PlistValid = c.Service.PlistValid(ctx)
	}

	return report
}

// WriteStatus renders the short status block.
func WriteStatus(w io.Writer, r *Report) error {
	var b strings.Builder

	b.WriteString("---- noSleep status ----\n")

	if r.PowerKnown {
		fmt.Fprintf(&b, "Power: %s\n", r.Power.PowerSource())
		fmt.Fprintf(&b, "Lid: %s\n", r.Power.Lid())
	} else {
		b.WriteString("Power: Unknown\nLid: Unknown\n")
	}

	if r.Running() {
		fmt.Fprintf(&b, "Daemon: RUNNING (pid %d)\n", r.Daemon.PID)
	} else {
		b.WriteString("Daemon: NOT running\n")
	}

	if r.Preventing != nil {
		fmt.Fprintf(&b, "Sleep prevention: %s\n", onOff(*r.Preventing))
	}

	fmt.Fprintf(&b, "launchd: %s\n", pick(r.Loaded, "LOADED", "NOT loaded"))

	_, err := io.WriteString(w, b.String())

	return err
}

// WriteDoctor renders the full diagnostics block.
func WriteDoctor(w io.Writer, r *Report) error {
	var b strings.Builder

	fmt.Fprintf(&b, "%s - Diagnostics (read-only)\n\n", version.Banner())

	powerLine, lidLine := "Unknown", "Unknown"
	if r.PowerKnown {
		powerLine = r.Power.PowerSource()
		if r.Power.BatteryPercent != nil {
			powerLine += fmt.Sprintf(" (%d%%)", *r.Power.BatteryPercent)
		}

		lidLine = r.Power.Lid()
	}

	prevention := "Inactive"
	if r.Running() {
		prevention = fmt.Sprintf("Active (pid %d)", r.Daemon.PID)
		if r.Preventing != nil {
			prevention += ", assertion " + pick(*r.Preventing, "held", "not held")
		}
	}

	lockFile := r.LockFile
	if lockFile == "" {
		lockFile = "None"
	}

	b.WriteString("SYSTEM STATE:\n")
	fmt.Fprintf(&b, "    %-16s %s\n", "Power", powerLine)
	fmt.Fprintf(&b, "    %-16s %s\n", "Lid", lidLine)
	fmt.Fprintf(&b, "    %-16s %s\n", "Sleep prevention", prevention)
	b.WriteString("\nSERVICE:\n")
	fmt.Fprintf(&b, "    %-16s %s\n", "launchd", pick(r.Loaded, "Loaded", "Not loaded"))
	fmt.Fprintf(&b, "    %-16s %s\n", "Plist", pick(r.PlistValid, "Valid", "Missing or invalid"))
	fmt.Fprintf(&b, "    %-16s %s\n", "Binary", r.Binary)
	fmt.Fprintf(&b, "    %-16s %s\n", "Lock file", lockFile)

	_, err := io.WriteString(w, b.String())

	return err
}

func onOff(v bool) string {
	return pick(v, "ON", "OFF")
}

func pick(v bool, yes, no string) string {
	if v {
		return yes
	}

	return no
}
