package supervisor

import (
	"context"
	"sort"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/steipete/codelooper/internal/discovery"
	"github.com/steipete/codelooper/internal/element"
	"github.com/steipete/codelooper/internal/errors"
	"github.com/steipete/codelooper/internal/event"
	"github.com/steipete/codelooper/internal/logging"
	"github.com/steipete/codelooper/internal/rule"
	"github.com/steipete/codelooper/internal/window"
)

// Monitor is the supervision loop. Construct one per process with
// NewMonitor; Start and Stop are idempotent and safe to call from any
// goroutine, as is the whole control surface.
type Monitor struct {
	opts      Options
	backend   element.Backend
	locators  *discovery.Manager
	processes ProcessObserver
	windows   WindowEnumerator
	rules     []rule.Rule
	bus       *event.Bus
	logger    *logging.Logger

	mu           sync.Mutex
	running      bool
	cancel       context.CancelFunc
	loopDone     chan struct{}
	apps         map[int32]*window.TrackedApp
	observed     []string
	seedCounters map[string]map[string]int64

	sessionInterventions atomic.Int64
}

// NewMonitor creates a supervision loop. Rules evaluate in the given
// order; the first rule that acts on a window short-circuits the rest for
// that cycle.
func NewMonitor(
	backend element.Backend,
	locators *discovery.Manager,
	processes ProcessObserver,
	windows WindowEnumerator,
	bus *event.Bus,
	logger *logging.Logger,
	opts Options,
	rules ...rule.Rule,
) *Monitor {
	if logger == nil {
		logger = logging.NopLogger()
	}
	return &Monitor{
		opts:      opts.withDefaults(),
		backend:   backend,
		locators:  locators,
		processes: processes,
		windows:   windows,
		rules:     rules,
		bus:       bus,
		logger:    logger,
		apps:      make(map[int32]*window.TrackedApp),
	}
}

// Start launches the tick loop. Starting an already-running monitor is a
// no-op.
func (m *Monitor) Start() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.running {
		m.logger.Debug("monitor already running, start ignored")
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	m.cancel = cancel
	m.loopDone = make(chan struct{})
	m.running = true

	m.logger.Info("supervision loop starting",
		"interval", m.opts.Interval.String(),
		"max_parallel", m.opts.MaxParallel,
		"rules", len(m.rules))
	go m.run(ctx, m.loopDone)
}

// Stop cancels in-flight work and waits for the tick loop to exit.
// Stopping an already-stopped monitor is a no-op.
func (m *Monitor) Stop() {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		m.logger.Debug("monitor not running, stop ignored")
		return
	}
	m.running = false
	cancel := m.cancel
	done := m.loopDone
	m.mu.Unlock()

	cancel()
	<-done
	m.logger.Info("supervision loop stopped")
}

// Running reports whether the tick loop is active.
func (m *Monitor) Running() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.running
}

// run is the tick loop goroutine.
func (m *Monitor) run(ctx context.Context, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(m.opts.Interval)
	defer ticker.Stop()

	m.tick(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.tick(ctx)
		}
	}
}

// UpdateObservedApplications replaces the bundle-identifier watch list.
// Takes effect on the next tick; already-tracked apps whose identifier was
// removed age out through the normal liveness path.
func (m *Monitor) UpdateObservedApplications(bundleIDs []string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.observed = append([]string(nil), bundleIDs...)
	m.logger.Info("observed applications updated", "bundle_ids", m.observed)
}

// PauseWindow parks supervision of one window on user request. Pausing an
// already-paused window is a no-op.
func (m *Monitor) PauseWindow(windowID string) error {
	w, ok := m.findWindow(windowID)
	if !ok {
		return errors.NewNotFoundError("window", windowID).WithCause(errors.ErrWindowNotFound)
	}

	var prev, next window.State
	var changed bool
	w.WithLock(func(machine *window.Machine) {
		prev = machine.State()
		changed = machine.PauseManual()
		next = machine.State()
	})
	if changed {
		m.logger.WithWindow(windowID).Info("window paused by request")
		m.publish(event.NewWindowStateChangedEvent(windowID, w.PID(), prev.String(), next.String()))
	}
	return nil
}

// ResumeWindow returns a paused window to supervision and clears its
// failure streak so it gets a fresh chance. Resuming a non-paused window
// is a no-op.
func (m *Monitor) ResumeWindow(windowID string) error {
	w, ok := m.findWindow(windowID)
	if !ok {
		return errors.NewNotFoundError("window", windowID).WithCause(errors.ErrWindowNotFound)
	}

	var prev, next window.State
	var changed bool
	w.WithLock(func(machine *window.Machine) {
		prev = machine.State()
		changed = machine.Resume()
		next = machine.State()
	})
	if changed {
		w.ClearFailures()
		m.logger.WithWindow(windowID).Info("window resumed")
		m.publish(event.NewWindowStateChangedEvent(windowID, w.PID(), prev.String(), next.String()))
	}
	return nil
}

// ResetRuleCounter resets the named rule's counter on every tracked
// window, re-arming the rule and its limit-reached latch.
func (m *Monitor) ResetRuleCounter(ruleName string) error {
	known := false
	for _, r := range m.rules {
		if r.Name() == ruleName {
			known = true
			break
		}
	}
	if !known {
		return errors.NewNotFoundError("rule", ruleName).WithCause(errors.ErrRuleNotFound)
	}

	for _, app := range m.trackedApps() {
		for _, w := range app.Windows() {
			w.Counters().Reset(ruleName)
		}
	}
	m.logger.WithRule(ruleName).Info("rule counter reset")
	return nil
}

// ResetAppInterventions zeroes one app's monotonic intervention count.
func (m *Monitor) ResetAppInterventions(pid int32) error {
	m.mu.Lock()
	app, ok := m.apps[pid]
	m.mu.Unlock()
	if !ok {
		return errors.NewNotFoundError("application", strconv.Itoa(int(pid))).WithCause(errors.ErrAppNotFound)
	}
	app.ResetInterventionCount()
	return nil
}

// SeedCounters installs persisted per-window rule counts, keyed by window
// id then rule name. Each entry is applied once, when the matching window
// is first tracked; ids that never reappear are silently dropped.
func (m *Monitor) SeedCounters(counts map[string]map[string]int64) {
	if len(counts) == 0 {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.seedCounters == nil {
		m.seedCounters = make(map[string]map[string]int64, len(counts))
	}
	for id, c := range counts {
		m.seedCounters[id] = c
	}
}

// takeSeed removes and returns the seeded counts for a window id.
func (m *Monitor) takeSeed(windowID string) (map[string]int64, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	counts, ok := m.seedCounters[windowID]
	if ok {
		delete(m.seedCounters, windowID)
	}
	return counts, ok
}

// CounterSnapshots returns the current rule counts of every tracked
// window, keyed by window id then rule name.
func (m *Monitor) CounterSnapshots() map[string]map[string]int64 {
	out := make(map[string]map[string]int64)
	for _, app := range m.trackedApps() {
		for _, w := range app.Windows() {
			if snap := w.Counters().Snapshot(); len(snap) > 0 {
				out[w.ID()] = snap
			}
		}
	}
	return out
}

// SessionInterventionCount returns the total interventions executed since
// the monitor was created.
func (m *Monitor) SessionInterventionCount() int64 {
	return m.sessionInterventions.Load()
}

// Snapshot returns the aggregated status of every tracked app, ordered by
// pid.
func (m *Monitor) Snapshot() []window.AppSnapshot {
	apps := m.trackedApps()
	out := make([]window.AppSnapshot, 0, len(apps))
	for _, app := range apps {
		out = append(out, app.Snapshot())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].PID < out[j].PID })
	return out
}

// trackedApps returns a copy of the tracked app set.
func (m *Monitor) trackedApps() []*window.TrackedApp {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*window.TrackedApp, 0, len(m.apps))
	for _, app := range m.apps {
		out = append(out, app)
	}
	return out
}

// findWindow locates a tracked window by id across all apps.
func (m *Monitor) findWindow(windowID string) (*window.TrackedWindow, bool) {
	for _, app := range m.trackedApps() {
		if w, ok := app.Window(windowID); ok {
			return w, true
		}
	}
	return nil, false
}

func (m *Monitor) publish(e event.Event) {
	if m.bus != nil {
		m.bus.Publish(e)
	}
}
