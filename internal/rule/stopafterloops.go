package rule

import (
	"context"

	"github.com/steipete/codelooper/internal/element"
	"github.com/steipete/codelooper/internal/errors"
	"github.com/steipete/codelooper/internal/event"
)

// StopAfterLoopsName identifies the stop-after-loops rule in counters and
// events.
const StopAfterLoopsName = "stop_after_loops"

// StopAfterLoops presses the force-stop/resume control when the target
// application shows it, meaning a session is looping or stalled. The rule
// self-limits through its counter so a window that keeps re-triggering the
// loop condition is eventually left alone.
type StopAfterLoops struct{}

// NewStopAfterLoops creates the stop-after-loops rule.
func NewStopAfterLoops() *StopAfterLoops { return &StopAfterLoops{} }

// Name implements Rule.
func (r *StopAfterLoops) Name() string { return StopAfterLoopsName }

// Evaluate implements Rule.
func (r *StopAfterLoops) Evaluate(ctx context.Context, ec *EvalContext) (bool, error) {
	if !checkCeiling(r.Name(), ec) {
		return false, nil
	}

	h, err := ec.Locators.Resolve(ctx, element.TypeForceStopResumeLink, ec.PID)
	if err != nil {
		return false, err
	}
	if h == (element.Handle{}) {
		return false, nil
	}

	if err := ec.Backend.InvokeAction(ctx, h, element.ActionPress); err != nil {
		ec.logger().Warn("force-stop action failed",
			"rule", r.Name(),
			"window", ec.WindowID,
			"error", err)
		ec.publish(event.NewInterventionExecutedEvent(
			r.Name(), ec.WindowID, false, ec.Counters.Get(r.Name()).Count()))
		if errors.Is(err, errors.ErrElementNotFound) {
			// The control vanished between resolve and press.
			ec.Locators.Invalidate(element.TypeForceStopResumeLink, ec.PID)
			return false, nil
		}
		return false, err
	}

	recordExecution(r.Name(), ec)
	return true, nil
}
