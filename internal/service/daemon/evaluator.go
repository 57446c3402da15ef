package daemon

import (
	"context"
	"os"
	"sync"
	"time"

	"github.com/oshokin/nosleep/internal/domain/power"
	"github.com/oshokin/nosleep/internal/logger"
	"github.com/oshokin/nosleep/internal/notify"
	"github.com/oshokin/nosleep/internal/repository/state"
)

// Notification texts.
const (
	MessageStarted  = "Sleep Prevention Active"
	SubtitleStarted = "AC Power + Lid Closed"
	SoundStarted    = "Hero"

	MessageRestored = "Normal Behaviour Restored"
	SoundRestored   = "Glass"
)

// Reader produces power snapshots.
type Reader interface {
	Read() power.State
}

// Assertion is the sleep assertion owned by the daemon.
type Assertion interface {
	Acquire(ctx context.Context) bool
	Release(ctx context.Context)
	Active() bool
}

// Outcome is the result of one evaluation.
type Outcome int

// Evaluation outcomes.
const (
	// OutcomeUnchanged means the decision matched the assertion state.
	OutcomeUnchanged Outcome = iota
	// OutcomeStarted means the assertion was acquired.
	OutcomeStarted
	// OutcomeRestored means the assertion was released.
	OutcomeRestored
	// OutcomeAcquireFailed means prevention was wanted but the OS refused.
	OutcomeAcquireFailed
)

// String implements fmt.Stringer.
func (o Outcome) String() string {
	switch o {
	case OutcomeStarted:
		return "started"
	case OutcomeRestored:
		return "restored"
	case OutcomeAcquireFailed:
		return "acquire-failed"
	default:
		return "unchanged"
	}
}

// Evaluator applies the AC-and-lid-closed rule to the current snapshot.
type Evaluator struct {
	// reader produces snapshots.
	reader Reader
	// assertion is held while preventing sleep.
	assertion Assertion
	// notifier receives user notifications.
	notifier notify.Sender
	// statuses receives the published status, optional.
	statuses state.Repository
	// pid is written to the status file.
	pid int
	// now is the clock used for status timestamps.
	now func() time.Time

	// mu serializes evaluations.
	mu sync.Mutex
}

// NewEvaluator creates an evaluator. notifier and statuses may be nil.
func NewEvaluator(reader Reader, assertion Assertion, notifier notify.Sender, statuses state.Repository) *Evaluator {
	if notifier == nil {
		notifier = notify.Discard{}
	}

	return &Evaluator{
		reader:    reader,
		assertion: assertion,
		notifier:  notifier,
		statuses:  statuses,
		pid:       os.Getpid(),
		now:       time.Now,
	}
}

// Evaluate reads the power state and acquires or releases the assertion when
// the decision differs from what is held. Concurrent calls run one at a time.
func (e *Evaluator) Evaluate(ctx context.Context) Outcome {
	e.mu.Lock()
	defer e.mu.Unlock()

	snapshot := e.reader.Read()
	outcome := e.apply(ctx, snapshot)

	if outcome != OutcomeUnchanged {
		logger.InfoKV(ctx, "Power state evaluated",
			"outcome", outcome,
			"on_ac", snapshot.OnAC,
			"lid_closed", snapshot.LidClosed,
		)
	} else {
		logger.DebugKV(ctx, "Power state unchanged", "state", snapshot)
	}

	e.publish(ctx, snapshot)

	return outcome
}

func (e *Evaluator) apply(ctx context.Context, snapshot power.State) Outcome {
	wasPreventing := e.assertion.Active()

	switch shouldPrevent := snapshot.ShouldPrevent(); {
	case shouldPrevent && !wasPreventing:
		if !e.assertion.Acquire(ctx) {
			return OutcomeAcquireFailed
		}

		e.notifier.Send(notify.Request{
			Message:  MessageStarted,
			Subtitle: SubtitleStarted,
			Sound:    SoundStarted,
		})

		return OutcomeStarted
	case !shouldPrevent && wasPreventing:
		e.assertion.Release(ctx)

		e.notifier.Send(notify.Request{
			Message:  MessageRestored,
			Subtitle: snapshot.RestoreReason(),
			Sound:    SoundRestored,
		})

		return OutcomeRestored
	default:
		return OutcomeUnchanged
	}
}

// publish writes the status file. Failures only cost observability.
func (e *Evaluator) publish(ctx context.Context, snapshot power.State) {
	if e.statuses == nil {
		return
	}

	status := state.NewStatus(e.pid, e.assertion.Active(), snapshot, e.now())
	if err := e.statuses.Save(ctx, status); err != nil {
		logger.WarnKV(ctx, "Failed to publish status", "error", err)
	}
}
