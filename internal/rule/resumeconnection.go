package rule

import (
	"context"

	"github.com/steipete/codelooper/internal/element"
	"github.com/steipete/codelooper/internal/errors"
	"github.com/steipete/codelooper/internal/event"
)

// ResumeConnectionName identifies the resume-connection rule in counters
// and events.
const ResumeConnectionName = "resume_connection"

// ResumeConnection presses the resume control when the target application
// shows its connection-trouble indicator, recovering sessions dropped by
// transient network failures.
type ResumeConnection struct{}

// NewResumeConnection creates the resume-connection rule.
func NewResumeConnection() *ResumeConnection { return &ResumeConnection{} }

// Name implements Rule.
func (r *ResumeConnection) Name() string { return ResumeConnectionName }

// Evaluate implements Rule.
func (r *ResumeConnection) Evaluate(ctx context.Context, ec *EvalContext) (bool, error) {
	if !checkCeiling(r.Name(), ec) {
		return false, nil
	}

	indicator, err := ec.Locators.Resolve(ctx, element.TypeConnectionErrorIndicator, ec.PID)
	if err != nil {
		return false, err
	}
	if indicator == (element.Handle{}) {
		return false, nil
	}

	// The indicator alone is not actionable; a resume control must exist.
	btn, err := ec.Locators.Resolve(ctx, element.TypeResumeButton, ec.PID)
	if err != nil {
		return false, err
	}
	if btn == (element.Handle{}) {
		ec.logger().Debug("connection error shown but no resume control found",
			"rule", r.Name(), "window", ec.WindowID)
		return false, nil
	}

	if err := ec.Backend.InvokeAction(ctx, btn, element.ActionPress); err != nil {
		ec.publish(event.NewInterventionExecutedEvent(
			r.Name(), ec.WindowID, false, ec.Counters.Get(r.Name()).Count()))
		if errors.Is(err, errors.ErrElementNotFound) {
			ec.Locators.Invalidate(element.TypeResumeButton, ec.PID)
			return false, nil
		}
		return false, err
	}

	recordExecution(r.Name(), ec)
	return true, nil
}
