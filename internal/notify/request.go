package notify

import (
	"context"
	"fmt"
	"os/exec"
	"strings"

	"github.com/oshokin/nosleep/internal/logger"
)

// Request is a single notification.
type Request struct {
	// Message is the body text.
	Message string
	// Subtitle is optional.
	Subtitle string
	// Sound is a named system sound, optional.
	Sound string
}

// Sender accepts notification requests without blocking.
type Sender interface {
	Send(req Request)
}

// Discard drops every request. Used when notifications are disabled.
type Discard struct{}

// Send implements Sender.
func (Discard) Send(Request) {}

// Launcher starts the external helper for a request. The returned channel
// receives the helper's exit result exactly once.
type Launcher interface {
	Launch(ctx context.Context, req Request) (<-chan error, error)
}

// HelperLauncher displays notifications with osascript.
type HelperLauncher struct {
	// Path is the osascript executable.
	Path string
	// Title is shown above every notification.
	Title string
}

// Launch starts the helper. Its output is discarded.
func (l HelperLauncher) Launch(ctx context.Context, req Request) (<-chan error, error) {
	// Not bound to ctx: a notification already on its way is left to finish.
	cmd := exec.Command(l.Path, "-e", Script(l.Title, req)) //nolint:gosec,noctx // Script escapes every user string.

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start %s: %w", l.Path, err)
	}

	logger.DebugKV(ctx, "Notification helper started", "pid", cmd.Process.Pid, "message", req.Message)

	done := make(chan error, 1)

	go func() {
		done <- cmd.Wait()
	}()

	return done, nil
}

// appleScriptEscaper escapes backslashes and double quotes in one pass.
//
//nolint:gochecknoglobals // Immutable after init.
var appleScriptEscaper = strings.NewReplacer(`\`, `\\`, `"`, `\"`)

// Script renders the AppleScript `display notification` command.
func Script(title string, req Request) string {
	var b strings.Builder

	fmt.Fprintf(&b, `display notification "%s" with title "%s"`,
		appleScriptEscaper.Replace(req.Message), appleScriptEscaper.Replace(title))

	if req.Subtitle != "" {
		fmt.Fprintf(&b, ` subtitle "%s"`, appleScriptEscaper.Replace(req.Subtitle))
	}

	if req.Sound != "" {
		fmt.Fprintf(&b, ` sound name "%s"`, appleScriptEscaper.Replace(req.Sound))
	}

	return b.String()
}
