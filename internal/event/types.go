// Package event defines the supervision engine's outbound events and the
// bus they are published on. Events decouple the engine from presentation
// and alerting: the engine publishes, observers subscribe.
package event

import "time"

// Event is the interface that all events must implement.
type Event interface {
	// EventType returns a string identifier for this event type.
	// Convention: "category.action" (e.g., "window.state_changed").
	EventType() string

	// Timestamp returns when the event occurred.
	Timestamp() time.Time
}

// baseEvent provides common fields for all events.
// Embed this in concrete event types to satisfy the Event interface.
type baseEvent struct {
	eventType string
	timestamp time.Time
}

func (e baseEvent) EventType() string    { return e.eventType }
func (e baseEvent) Timestamp() time.Time { return e.timestamp }

// newBaseEvent creates a baseEvent with the current time.
func newBaseEvent(eventType string) baseEvent {
	return baseEvent{
		eventType: eventType,
		timestamp: time.Now(),
	}
}

// -----------------------------------------------------------------------------
// Window State Events
// -----------------------------------------------------------------------------

// WindowStateChangedEvent is emitted when a tracked window's supervision
// state changes.
type WindowStateChangedEvent struct {
	baseEvent
	WindowID string // Stable-enough window identity
	AppPID   int32  // Owning application's process id
	OldState string // Previous state name
	NewState string // New state name
}

// NewWindowStateChangedEvent creates a WindowStateChangedEvent.
func NewWindowStateChangedEvent(windowID string, appPID int32, oldState, newState string) WindowStateChangedEvent {
	return WindowStateChangedEvent{
		baseEvent: newBaseEvent("window.state_changed"),
		WindowID:  windowID,
		AppPID:    appPID,
		OldState:  oldState,
		NewState:  newState,
	}
}

// -----------------------------------------------------------------------------
// Intervention Events
// -----------------------------------------------------------------------------

// InterventionExecutedEvent is emitted when an intervention rule takes an
// action against a window.
type InterventionExecutedEvent struct {
	baseEvent
	Rule           string // Rule that fired
	WindowID       string // Window the action targeted
	Success        bool   // Whether the action invocation succeeded
	ExecutionCount int64  // Rule counter value after this execution
}

// NewInterventionExecutedEvent creates an InterventionExecutedEvent.
func NewInterventionExecutedEvent(rule, windowID string, success bool, executionCount int64) InterventionExecutedEvent {
	return InterventionExecutedEvent{
		baseEvent:      newBaseEvent("intervention.executed"),
		Rule:           rule,
		WindowID:       windowID,
		Success:        success,
		ExecutionCount: executionCount,
	}
}

// RuleLimitWarningEvent is emitted when a rule counter approaches its
// ceiling (within the configured warning margin).
type RuleLimitWarningEvent struct {
	baseEvent
	Rule      string // Rule approaching its ceiling
	WindowID  string // Window the counter belongs to
	Count     int64  // Current execution count
	Ceiling   int64  // Hard ceiling
	Remaining int64  // Executions left before the rule goes inert
}

// NewRuleLimitWarningEvent creates a RuleLimitWarningEvent.
func NewRuleLimitWarningEvent(rule, windowID string, count, ceiling int64) RuleLimitWarningEvent {
	return RuleLimitWarningEvent{
		baseEvent: newBaseEvent("rule.limit_warning"),
		Rule:      rule,
		WindowID:  windowID,
		Count:     count,
		Ceiling:   ceiling,
		Remaining: ceiling - count,
	}
}

// RuleLimitReachedEvent is emitted exactly once when a rule counter hits
// its ceiling. The rule is inert until the counter is explicitly reset.
type RuleLimitReachedEvent struct {
	baseEvent
	Rule     string // Rule that hit its ceiling
	WindowID string // Window the counter belongs to
	Ceiling  int64  // The ceiling that was reached
}

// NewRuleLimitReachedEvent creates a RuleLimitReachedEvent.
func NewRuleLimitReachedEvent(rule, windowID string, ceiling int64) RuleLimitReachedEvent {
	return RuleLimitReachedEvent{
		baseEvent: newBaseEvent("rule.limit_reached"),
		Rule:      rule,
		WindowID:  windowID,
		Ceiling:   ceiling,
	}
}

// -----------------------------------------------------------------------------
// Application Events
// -----------------------------------------------------------------------------

// AppStatusChangedEvent is emitted when a tracked application's aggregated
// status changes (derived from its windows' states).
type AppStatusChangedEvent struct {
	baseEvent
	AppPID    int32  // Process id of the application
	BundleID  string // Bundle identifier the app was matched by
	OldStatus string // Previous aggregated status
	NewStatus string // New aggregated status
}

// NewAppStatusChangedEvent creates an AppStatusChangedEvent.
func NewAppStatusChangedEvent(pid int32, bundleID, oldStatus, newStatus string) AppStatusChangedEvent {
	return AppStatusChangedEvent{
		baseEvent: newBaseEvent("app.status_changed"),
		AppPID:    pid,
		BundleID:  bundleID,
		OldStatus: oldStatus,
		NewStatus: newStatus,
	}
}

// AppRemovedEvent is emitted when a dead application is removed from
// tracking after its grace period.
type AppRemovedEvent struct {
	baseEvent
	AppPID   int32  // Process id of the removed application
	BundleID string // Bundle identifier the app was matched by
}

// NewAppRemovedEvent creates an AppRemovedEvent.
func NewAppRemovedEvent(pid int32, bundleID string) AppRemovedEvent {
	return AppRemovedEvent{
		baseEvent: newBaseEvent("app.removed"),
		AppPID:    pid,
		BundleID:  bundleID,
	}
}

// -----------------------------------------------------------------------------
// Discovery Events
// -----------------------------------------------------------------------------

// DiscoveryExhaustedEvent is emitted when every heuristic strategy for an
// element type failed for a process this cycle.
type DiscoveryExhaustedEvent struct {
	baseEvent
	ElementType string // Semantic element type that could not be located
	AppPID      int32  // Process the discovery ran against
	Strategies  int    // Number of strategies attempted
}

// NewDiscoveryExhaustedEvent creates a DiscoveryExhaustedEvent.
func NewDiscoveryExhaustedEvent(elementType string, pid int32, strategies int) DiscoveryExhaustedEvent {
	return DiscoveryExhaustedEvent{
		baseEvent:   newBaseEvent("discovery.exhausted"),
		ElementType: elementType,
		AppPID:      pid,
		Strategies:  strategies,
	}
}
