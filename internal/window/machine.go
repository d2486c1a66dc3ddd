package window

// DefaultGraceTicks is how many consecutive indicator-free ticks must pass
// before positive work is considered finished. Indicator text flickers
// between renders; a single absent tick must not flip the state.
const DefaultGraceTicks = 2

// DefaultObservationTicks is how long a window sits in the observation
// cooldown after an intervention before being re-evaluated.
const DefaultObservationTicks = 2

// Machine drives one window's state transitions. It is not safe for
// concurrent use; the owning TrackedWindow serializes access through its
// own lock.
type Machine struct {
	state State

	graceTicks       int
	observationTicks int

	graceLeft       int
	observationLeft int
	limitAfterObs   bool
}

// NewMachine creates a machine in StateUnknown. Non-positive tick counts
// fall back to the defaults.
func NewMachine(graceTicks, observationTicks int) *Machine {
	if graceTicks <= 0 {
		graceTicks = DefaultGraceTicks
	}
	if observationTicks <= 0 {
		observationTicks = DefaultObservationTicks
	}
	return &Machine{
		state:            StateUnknown,
		graceTicks:       graceTicks,
		observationTicks: observationTicks,
	}
}

// State returns the current state.
func (m *Machine) State() State { return m.state }

// Tick applies one supervision tick's observation. indicatorPresent is
// whether the generating/processing indicator was found in the window.
// It returns the resulting state.
//
// The positive-work to active edge only fires after graceTicks consecutive
// indicator-free ticks; any sighting of the indicator re-arms the full
// grace period.
func (m *Machine) Tick(indicatorPresent bool) State {
	switch m.state {
	case StateUnknown:
		if indicatorPresent {
			m.enterPositiveWork()
		} else {
			m.state = StateActive
		}

	case StateActive, StateIdle:
		if indicatorPresent {
			m.enterPositiveWork()
		}

	case StatePositiveWork:
		if indicatorPresent {
			m.graceLeft = m.graceTicks
			break
		}
		m.graceLeft--
		if m.graceLeft <= 0 {
			m.state = StateActive
		}

	case StateObservation:
		m.observationLeft--
		if m.observationLeft > 0 {
			break
		}
		if m.limitAfterObs {
			m.state = StatePausedInterventionLimit
		} else if indicatorPresent {
			m.enterPositiveWork()
		} else {
			m.state = StateActive
		}
		m.limitAfterObs = false
	}
	return m.state
}

func (m *Machine) enterPositiveWork() {
	m.state = StatePositiveWork
	m.graceLeft = m.graceTicks
}

// BeginIntervention moves an active or positive-work window to
// intervening. It reports whether the transition applied.
func (m *Machine) BeginIntervention() bool {
	switch m.state {
	case StateActive, StatePositiveWork, StateIdle:
		m.state = StateIntervening
		return true
	default:
		return false
	}
}

// CompleteIntervention resolves an intervening window. A successful action
// enters the observation cooldown; limitReached routes the window to the
// intervention-limit pause once the cooldown expires. A failed action
// returns the window to active for retry on a later tick.
func (m *Machine) CompleteIntervention(success, limitReached bool) {
	if m.state != StateIntervening {
		return
	}
	if !success {
		m.state = StateActive
		return
	}
	m.state = StateObservation
	m.observationLeft = m.observationTicks
	m.limitAfterObs = limitReached
}

// MarkIdle moves an active window to idle. Any other state is unchanged.
func (m *Machine) MarkIdle() bool {
	if m.state != StateActive {
		return false
	}
	m.state = StateIdle
	return true
}

// PauseManual parks the window on user request. Terminal windows stay
// terminal.
func (m *Machine) PauseManual() bool {
	if m.state.IsTerminal() || m.state == StatePausedManual {
		return false
	}
	m.state = StatePausedManual
	return true
}

// PauseUnrecoverable parks the window after sustained failures.
func (m *Machine) PauseUnrecoverable() bool {
	if m.state.IsTerminal() || m.state == StatePausedUnrecoverable {
		return false
	}
	m.state = StatePausedUnrecoverable
	return true
}

// PauseLimit parks the window because an intervention counter hit its
// ceiling.
func (m *Machine) PauseLimit() bool {
	if m.state.IsTerminal() || m.state == StatePausedInterventionLimit {
		return false
	}
	m.state = StatePausedInterventionLimit
	return true
}

// Resume returns a paused window to active. Non-paused states are
// unchanged.
func (m *Machine) Resume() bool {
	if !m.state.IsPaused() {
		return false
	}
	m.state = StateActive
	m.graceLeft = 0
	m.observationLeft = 0
	m.limitAfterObs = false
	return true
}

// MarkNotRunning records that the owning process is gone. Terminal; the
// machine never leaves this state.
func (m *Machine) MarkNotRunning() bool {
	if m.state == StateNotRunning {
		return false
	}
	m.state = StateNotRunning
	return true
}
