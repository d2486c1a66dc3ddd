package window

import (
	"sync"
	"sync/atomic"
)

// Status is a tracked application's aggregated supervision status,
// derived from its windows' states.
type Status string

const (
	// StatusUnknown means the app has no observed windows yet.
	StatusUnknown Status = "unknown"
	// StatusActive means at least one window is being supervised and none
	// needs attention.
	StatusActive Status = "active"
	// StatusWorking means at least one window shows positive work.
	StatusWorking Status = "working"
	// StatusIntervening means an intervention or its observation cooldown
	// is in progress on some window.
	StatusIntervening Status = "intervening"
	// StatusAttention means at least one window is paused and needs a
	// human decision.
	StatusAttention Status = "attention"
	// StatusIdle means every window is idle.
	StatusIdle Status = "idle"
	// StatusNotRunning means the process is gone.
	StatusNotRunning Status = "not_running"
)

// TrackedApp is one supervised application instance: its process, its
// ordered windows, and app-level counters. Window state lives in the
// windows themselves; the app lock only guards the window list and the
// liveness bookkeeping.
type TrackedApp struct {
	pid         int32
	bundleID    string
	displayName string

	mu          sync.Mutex
	windows     []*TrackedWindow
	missedTicks int
	lastStatus  Status

	interventions atomic.Int64
}

// AppSnapshot is a point-in-time copy of an app's observable state.
type AppSnapshot struct {
	PID           int32
	BundleID      string
	DisplayName   string
	Status        Status
	Interventions int64
	Windows       []Snapshot
}

// NewTrackedApp creates an app record with no windows.
func NewTrackedApp(pid int32, bundleID, displayName string) *TrackedApp {
	return &TrackedApp{
		pid:         pid,
		bundleID:    bundleID,
		displayName: displayName,
		lastStatus:  StatusUnknown,
	}
}

// PID returns the process id.
func (a *TrackedApp) PID() int32 { return a.pid }

// BundleID returns the bundle identifier the app was matched by.
func (a *TrackedApp) BundleID() string { return a.bundleID }

// DisplayName returns the app's display name.
func (a *TrackedApp) DisplayName() string { return a.displayName }

// Windows returns a copy of the ordered window list.
func (a *TrackedApp) Windows() []*TrackedWindow {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]*TrackedWindow(nil), a.windows...)
}

// Window returns the window with the given id, if tracked.
func (a *TrackedApp) Window(id string) (*TrackedWindow, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	for _, w := range a.windows {
		if w.ID() == id {
			return w, true
		}
	}
	return nil, false
}

// EnsureWindow reconciles one enumerated window against the tracked set,
// matching by position. An existing window keeps its identity and state
// across title changes; a new position creates a fresh record. Reports
// whether a record was created.
func (a *TrackedApp) EnsureWindow(index int, title string, graceTicks, observationTicks int, ruleCeiling int64) (*TrackedWindow, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()

	for _, w := range a.windows {
		if w.Index() == index {
			w.SetTitle(title)
			return w, false
		}
	}

	w := NewTrackedWindow(a.pid, index, title, graceTicks, observationTicks, ruleCeiling)
	a.windows = append(a.windows, w)
	return w, true
}

// PruneWindows drops tracked windows whose positions were not enumerated
// this tick, returning the removed records.
func (a *TrackedApp) PruneWindows(seen map[int]bool) []*TrackedWindow {
	a.mu.Lock()
	defer a.mu.Unlock()

	var kept []*TrackedWindow
	var removed []*TrackedWindow
	for _, w := range a.windows {
		if seen[w.Index()] {
			kept = append(kept, w)
		} else {
			removed = append(removed, w)
		}
	}
	a.windows = kept
	return removed
}

// NoteMissedTick counts one tick on which the process was not alive,
// returning the consecutive miss count. Drives the removal grace period.
func (a *TrackedApp) NoteMissedTick() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.missedTicks++
	return a.missedTicks
}

// ClearMissedTicks resets liveness bookkeeping after the process is seen
// alive.
func (a *TrackedApp) ClearMissedTicks() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.missedTicks = 0
}

// AddInterventions adds to the app's monotonic intervention count.
func (a *TrackedApp) AddInterventions(n int64) {
	a.interventions.Add(n)
}

// InterventionCount returns the app's monotonic intervention count. It
// only ever decreases through ResetInterventionCount.
func (a *TrackedApp) InterventionCount() int64 {
	return a.interventions.Load()
}

// ResetInterventionCount zeroes the app's intervention count on explicit
// request.
func (a *TrackedApp) ResetInterventionCount() {
	a.interventions.Store(0)
}

// UpdateStatus recomputes the aggregated status from the windows' states
// and returns (old, new, changed).
func (a *TrackedApp) UpdateStatus() (Status, Status, bool) {
	next := a.aggregateStatus()

	a.mu.Lock()
	defer a.mu.Unlock()
	prev := a.lastStatus
	a.lastStatus = next
	return prev, next, prev != next
}

// Status returns the last aggregated status.
func (a *TrackedApp) Status() Status {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.lastStatus
}

// aggregateStatus folds window states into one app status, most urgent
// first.
func (a *TrackedApp) aggregateStatus() Status {
	windows := a.Windows()
	if len(windows) == 0 {
		return StatusUnknown
	}

	var paused, working, intervening, idle, notRunning int
	for _, w := range windows {
		switch s := w.State(); {
		case s.IsPaused():
			paused++
		case s == StateIntervening || s == StateObservation:
			intervening++
		case s == StatePositiveWork:
			working++
		case s == StateIdle:
			idle++
		case s == StateNotRunning:
			notRunning++
		}
	}

	switch {
	case notRunning == len(windows):
		return StatusNotRunning
	case paused > 0:
		return StatusAttention
	case intervening > 0:
		return StatusIntervening
	case working > 0:
		return StatusWorking
	case idle == len(windows):
		return StatusIdle
	default:
		return StatusActive
	}
}

// Snapshot returns a copy of the app's observable state, including every
// window.
func (a *TrackedApp) Snapshot() AppSnapshot {
	windows := a.Windows()
	snap := AppSnapshot{
		PID:           a.pid,
		BundleID:      a.bundleID,
		DisplayName:   a.displayName,
		Status:        a.Status(),
		Interventions: a.InterventionCount(),
		Windows:       make([]Snapshot, 0, len(windows)),
	}
	for _, w := range windows {
		snap.Windows = append(snap.Windows, w.Snapshot())
	}
	return snap
}
