package rule

import (
	"context"

	"github.com/steipete/codelooper/internal/discovery"
	"github.com/steipete/codelooper/internal/element"
	"github.com/steipete/codelooper/internal/event"
	"github.com/steipete/codelooper/internal/logging"
)

// EvalContext carries everything a rule needs to evaluate one window on
// one tick. Rules read from it; the supervision loop owns it.
type EvalContext struct {
	// WindowID identifies the window under evaluation.
	WindowID string
	// PID is the owning application's process id.
	PID int32
	// Text is the window's last-observed text snapshot.
	Text string

	// Backend executes element actions.
	Backend element.Backend
	// Locators resolves semantic element types to live elements.
	Locators *discovery.Manager
	// Counters holds the window's per-rule execution counters.
	Counters *CounterSet
	// Bus receives intervention and limit events; may be nil.
	Bus *event.Bus
	// Logger for rule execution logging; may be nil.
	Logger *logging.Logger
	// WarnMargin is how close to the ceiling warnings begin; <= 0 means
	// DefaultWarnMargin.
	WarnMargin int64
}

func (ec *EvalContext) logger() *logging.Logger {
	if ec.Logger == nil {
		return logging.NopLogger()
	}
	return ec.Logger
}

func (ec *EvalContext) warnMargin() int64 {
	if ec.WarnMargin <= 0 {
		return DefaultWarnMargin
	}
	return ec.WarnMargin
}

func (ec *EvalContext) publish(e event.Event) {
	if ec.Bus != nil {
		ec.Bus.Publish(e)
	}
}

// Rule is one independent intervention policy. Evaluate returns whether the
// rule took an action this cycle. A false return with a nil error means the
// rule's condition did not hold (a no-op, not a failure); errors are
// reserved for backend failures during the probe or the action.
type Rule interface {
	// Name identifies the rule in counters, events and logs.
	Name() string

	// Evaluate probes the window and intervenes if the rule's condition
	// holds and its counter has headroom.
	Evaluate(ctx context.Context, ec *EvalContext) (bool, error)
}

// checkCeiling implements the shared counter discipline: at the ceiling the
// rule is inert, and the limit-reached event fires exactly once per latch.
// It returns false when the rule must not act.
func checkCeiling(name string, ec *EvalContext) bool {
	c := ec.Counters.Get(name)
	if !c.AtCeiling() {
		return true
	}
	if c.FireLimit() {
		ec.logger().Warn("rule execution limit reached",
			"rule", name,
			"window", ec.WindowID,
			"ceiling", c.Ceiling())
		ec.publish(event.NewRuleLimitReachedEvent(name, ec.WindowID, c.Ceiling()))
	}
	return false
}

// recordExecution increments the counter after a successful action,
// publishes the executed event, and warns when close to the ceiling.
func recordExecution(name string, ec *EvalContext) {
	c := ec.Counters.Get(name)
	count, _ := c.Increment()

	ec.logger().Info("intervention executed",
		"rule", name,
		"window", ec.WindowID,
		"count", count,
		"ceiling", c.Ceiling())
	ec.publish(event.NewInterventionExecutedEvent(name, ec.WindowID, true, count))

	if remaining := c.Ceiling() - count; remaining > 0 && remaining <= ec.warnMargin() {
		ec.logger().Warn("rule approaching execution limit",
			"rule", name,
			"window", ec.WindowID,
			"remaining", remaining)
		ec.publish(event.NewRuleLimitWarningEvent(name, ec.WindowID, count, c.Ceiling()))
	}
}
