package window

import (
	"fmt"
	"hash/fnv"
	"sync"
	"time"

	"github.com/steipete/codelooper/internal/rule"
)

// TrackedWindow is one supervised window of a tracked application. All
// mutable state is guarded by the window's own lock; windows never share a
// lock, so a stuck window cannot stall supervision of the others.
type TrackedWindow struct {
	id     string
	appPID int32
	index  int

	mu       sync.Mutex
	title    string
	machine  *Machine
	counters *rule.CounterSet

	lastText      string
	quietTicks    int
	failureStreak int

	lastPositive     time.Time
	lastIntervention time.Time
	createdAt        time.Time
}

// Snapshot is a point-in-time copy of a window's observable state.
type Snapshot struct {
	ID               string
	AppPID           int32
	Index            int
	Title            string
	State            State
	Interventions    int64
	FailureStreak    int
	LastPositive     time.Time
	LastIntervention time.Time
}

// WindowID derives the best-effort stable identity for a window from its
// process, position and first observed title. Not stable across the target
// application's restarts; pids and window order both change.
func WindowID(pid int32, index int, title string) string {
	h := fnv.New32a()
	h.Write([]byte(title))
	return fmt.Sprintf("%d-%d-%08x", pid, index, h.Sum32())
}

// NewTrackedWindow creates a window record in StateUnknown.
func NewTrackedWindow(pid int32, index int, title string, graceTicks, observationTicks int, ruleCeiling int64) *TrackedWindow {
	return &TrackedWindow{
		id:        WindowID(pid, index, title),
		appPID:    pid,
		index:     index,
		title:     title,
		machine:   NewMachine(graceTicks, observationTicks),
		counters:  rule.NewCounterSet(ruleCeiling),
		createdAt: time.Now(),
	}
}

// ID returns the window's derived identity.
func (w *TrackedWindow) ID() string { return w.id }

// PID returns the owning process id.
func (w *TrackedWindow) PID() int32 { return w.appPID }

// Index returns the window's position in the app's window list at creation.
func (w *TrackedWindow) Index() int { return w.index }

// Title returns the last observed title.
func (w *TrackedWindow) Title() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.title
}

// SetTitle updates the observed title. The derived ID keeps the title the
// window was first seen with.
func (w *TrackedWindow) SetTitle(title string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.title = title
}

// State returns the current supervision state.
func (w *TrackedWindow) State() State {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.machine.State()
}

// Counters returns the window's per-rule execution counters.
func (w *TrackedWindow) Counters() *rule.CounterSet { return w.counters }

// WithLock runs fn with exclusive access to the window's state machine.
// Every state transition for a window goes through here, which is what
// makes transitions strictly ordered per window: a concurrent manual pause
// and an in-flight tick serialize on this lock, and tick results check the
// state again before applying.
func (w *TrackedWindow) WithLock(fn func(m *Machine)) {
	w.mu.Lock()
	defer w.mu.Unlock()
	fn(w.machine)
}

// RecordText stores the tick's text snapshot and reports whether it
// changed since the previous tick.
func (w *TrackedWindow) RecordText(text string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	changed := text != w.lastText
	w.lastText = text
	return changed
}

// LastText returns the last recorded text snapshot.
func (w *TrackedWindow) LastText() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.lastText
}

// NoteQuietTick counts one tick with no indicator, no rule hit and no text
// change, returning the consecutive quiet-tick count.
func (w *TrackedWindow) NoteQuietTick() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.quietTicks++
	return w.quietTicks
}

// NoteActivity resets idle accounting and stamps the last positive
// activity time.
func (w *TrackedWindow) NoteActivity() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.quietTicks = 0
	w.lastPositive = time.Now()
}

// NoteFailure counts one consecutive query/discovery failure and returns
// the streak length.
func (w *TrackedWindow) NoteFailure() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.failureStreak++
	return w.failureStreak
}

// ClearFailures resets the consecutive failure streak after any
// successful supervision pass.
func (w *TrackedWindow) ClearFailures() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.failureStreak = 0
}

// TouchIntervention stamps the last intervention time.
func (w *TrackedWindow) TouchIntervention() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.lastIntervention = time.Now()
}

// Snapshot returns a copy of the window's observable state.
func (w *TrackedWindow) Snapshot() Snapshot {
	w.mu.Lock()
	defer w.mu.Unlock()
	return Snapshot{
		ID:               w.id,
		AppPID:           w.appPID,
		Index:            w.index,
		Title:            w.title,
		State:            w.machine.State(),
		Interventions:    w.counters.Total(),
		FailureStreak:    w.failureStreak,
		LastPositive:     w.lastPositive,
		LastIntervention: w.lastIntervention,
	}
}
