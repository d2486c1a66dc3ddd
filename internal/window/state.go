// Package window models the windows and applications the supervision
// engine tracks: the per-window activity state machine with its anti-flap
// grace period and post-intervention observation cooldown, and the
// TrackedWindow/TrackedApp records the supervision loop mutates under
// per-window locks.
package window

// State classifies one tracked window's activity.
type State int

const (
	// StateUnknown is the initial state before the first observation.
	StateUnknown State = iota
	// StateActive means the window is open and responsive with no
	// generating indicator showing.
	StateActive
	// StatePositiveWork means the generating/processing indicator is
	// visible; the target application is doing useful work.
	StatePositiveWork
	// StateIntervening means an intervention rule is acting on the window.
	StateIntervening
	// StateObservation is the short cooldown after an intervention, giving
	// the window a chance to show recovery before re-evaluation.
	StateObservation
	// StatePausedInterventionLimit means an intervention counter hit its
	// ceiling; supervision is parked until an explicit reset or resume.
	StatePausedInterventionLimit
	// StatePausedUnrecoverable means discovery or the backend failed
	// repeatedly; supervision is parked until manually resumed.
	StatePausedUnrecoverable
	// StatePausedManual means a user paused supervision of this window.
	StatePausedManual
	// StateIdle means the window showed no indicator, no rule hits and no
	// text change for a sustained period. Informational only.
	StateIdle
	// StateNotRunning means the owning process is gone. Terminal.
	StateNotRunning
)

// String returns the state's snake_case name.
func (s State) String() string {
	switch s {
	case StateUnknown:
		return "unknown"
	case StateActive:
		return "active"
	case StatePositiveWork:
		return "positive_work"
	case StateIntervening:
		return "intervening"
	case StateObservation:
		return "observation"
	case StatePausedInterventionLimit:
		return "paused_intervention_limit"
	case StatePausedUnrecoverable:
		return "paused_unrecoverable"
	case StatePausedManual:
		return "paused_manual"
	case StateIdle:
		return "idle"
	case StateNotRunning:
		return "not_running"
	default:
		return "unknown"
	}
}

// IsPaused reports whether supervision is parked in this state.
func (s State) IsPaused() bool {
	switch s {
	case StatePausedInterventionLimit, StatePausedUnrecoverable, StatePausedManual:
		return true
	default:
		return false
	}
}

// IsTerminal reports whether the state can never be left. Only a dead
// process is terminal; paused windows can be resumed.
func (s State) IsTerminal() bool {
	return s == StateNotRunning
}
