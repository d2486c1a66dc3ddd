package supervisor

import (
	"context"
	"sync"

	"github.com/steipete/codelooper/internal/element"
	"github.com/steipete/codelooper/internal/errors"
	"github.com/steipete/codelooper/internal/event"
	"github.com/steipete/codelooper/internal/rule"
	"github.com/steipete/codelooper/internal/window"
)

// tick runs one supervision pass: liveness, window reconciliation, then
// bounded parallel per-window supervision.
func (m *Monitor) tick(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}

	live := m.refreshApps(ctx)

	var wg sync.WaitGroup
	sem := make(chan struct{}, m.opts.MaxParallel)
	for _, app := range live {
		m.reconcileWindows(ctx, app)

		for _, w := range app.Windows() {
			if s := w.State(); s.IsPaused() || s.IsTerminal() {
				continue
			}
			wg.Add(1)
			sem <- struct{}{}
			go func(app *window.TrackedApp, w *window.TrackedWindow) {
				defer wg.Done()
				defer func() { <-sem }()
				m.superviseWindow(ctx, app, w)
			}(app, w)
		}
	}
	wg.Wait()

	for _, app := range m.trackedApps() {
		if prev, next, changed := app.UpdateStatus(); changed {
			m.publish(event.NewAppStatusChangedEvent(app.PID(), app.BundleID(), string(prev), string(next)))
		}
	}
}

// refreshApps reconciles the tracked app set against the processes that
// are actually running and returns the live ones. Dead apps move to
// not_running and are removed after the grace period.
//
// Events are collected under the monitor mutex and published after it is
// released: the bus is synchronous, so a subscriber that reads monitor
// state back (Snapshot, for example) would otherwise deadlock the tick
// goroutine.
func (m *Monitor) refreshApps(ctx context.Context) []*window.TrackedApp {
	m.mu.Lock()
	observed := append([]string(nil), m.observed...)
	m.mu.Unlock()

	infos, err := m.processes.Running(ctx, observed)
	if err != nil {
		m.logger.Warn("process enumeration failed", "error", err)
		infos = nil
	}

	runningPIDs := make(map[int32]bool, len(infos))
	var live []*window.TrackedApp
	var events []event.Event

	m.mu.Lock()
	for _, info := range infos {
		runningPIDs[info.PID] = true
		app, ok := m.apps[info.PID]
		if !ok {
			app = window.NewTrackedApp(info.PID, info.BundleID, info.DisplayName)
			m.apps[info.PID] = app
			m.logger.WithApp(info.PID).Info("tracking application",
				"bundle_id", info.BundleID, "name", info.DisplayName)
		}
		app.ClearMissedTicks()
		live = append(live, app)
	}

	for pid, app := range m.apps {
		if runningPIDs[pid] {
			continue
		}
		if m.processes.Alive(pid) {
			// Missing from enumeration but the process still exists; keep
			// supervising rather than churning the tracked state.
			app.ClearMissedTicks()
			live = append(live, app)
			continue
		}
		events = append(events, m.markDead(app)...)
		if app.NoteMissedTick() >= m.opts.RemovalGraceTicks {
			delete(m.apps, pid)
			m.locators.Forget(pid)
			m.logger.WithApp(pid).Info("application removed from tracking")
			events = append(events, event.NewAppRemovedEvent(pid, app.BundleID()))
		}
	}
	m.mu.Unlock()

	for _, e := range events {
		m.publish(e)
	}
	return live
}

// markDead transitions every window of a dead app to the terminal
// not_running state and returns the resulting events for the caller to
// publish outside the monitor mutex.
func (m *Monitor) markDead(app *window.TrackedApp) []event.Event {
	var events []event.Event
	for _, w := range app.Windows() {
		var prev window.State
		var changed bool
		w.WithLock(func(machine *window.Machine) {
			prev = machine.State()
			changed = machine.MarkNotRunning()
		})
		if changed {
			events = append(events, event.NewWindowStateChangedEvent(
				w.ID(), w.PID(), prev.String(), window.StateNotRunning.String()))
		}
	}
	return events
}

// reconcileWindows synchronizes an app's tracked windows with the
// enumerated ones.
func (m *Monitor) reconcileWindows(ctx context.Context, app *window.TrackedApp) {
	infos, err := m.windows.Windows(ctx, app.PID())
	if err != nil {
		m.logger.WithApp(app.PID()).Warn("window enumeration failed", "error", err)
		return
	}

	seen := make(map[int]bool, len(infos))
	for _, info := range infos {
		seen[info.Index] = true
		w, created := app.EnsureWindow(info.Index, info.Title,
			m.opts.GraceTicks, m.opts.ObservationTicks, m.opts.RuleCeiling)
		if created {
			m.logger.WithWindow(w.ID()).Info("tracking window", "title", info.Title)
			if counts, ok := m.takeSeed(w.ID()); ok {
				w.Counters().Restore(counts)
			}
		}
	}

	for _, w := range app.PruneWindows(seen) {
		m.logger.WithWindow(w.ID()).Info("window closed")
		var prev window.State
		var changed bool
		w.WithLock(func(machine *window.Machine) {
			prev = machine.State()
			changed = machine.MarkNotRunning()
		})
		if changed {
			m.publish(event.NewWindowStateChangedEvent(
				w.ID(), w.PID(), prev.String(), window.StateNotRunning.String()))
		}
	}
}

// superviseWindow runs the full pipeline for one window: indicator probe,
// state machine tick, rule evaluation, idle accounting. All state
// transitions happen under the window's lock with a pause re-check, so a
// concurrent manual pause always wins over this tick's results.
func (m *Monitor) superviseWindow(ctx context.Context, app *window.TrackedApp, w *window.TrackedWindow) {
	if ctx.Err() != nil {
		return
	}
	log := m.logger.WithWindow(w.ID())

	if err := m.checkStructure(ctx, w); err != nil {
		m.noteWindowFailure(w, err)
		return
	}

	indicator, text, err := m.observe(ctx, w)
	if err != nil {
		m.noteWindowFailure(w, err)
		return
	}

	textChanged := w.RecordText(text)

	var prev, next window.State
	applied := false
	w.WithLock(func(machine *window.Machine) {
		if machine.State().IsPaused() || machine.State().IsTerminal() {
			return
		}
		prev = machine.State()
		next = machine.Tick(indicator)
		applied = true
	})
	if !applied {
		return
	}
	if prev != next {
		m.publish(event.NewWindowStateChangedEvent(w.ID(), w.PID(), prev.String(), next.String()))
	}

	if indicator || textChanged {
		w.NoteActivity()
	}

	acted := false
	if next == window.StateActive || next == window.StatePositiveWork || next == window.StateIdle {
		var ruleErr error
		acted, ruleErr = m.evaluateRules(ctx, app, w)
		if ruleErr != nil {
			m.noteWindowFailure(w, ruleErr)
			return
		}
	}

	if !acted && !indicator && !textChanged && m.opts.IdleTicks > 0 && next == window.StateActive {
		if w.NoteQuietTick() >= m.opts.IdleTicks {
			var changed bool
			w.WithLock(func(machine *window.Machine) {
				changed = machine.MarkIdle()
			})
			if changed {
				log.Debug("window idle")
				m.publish(event.NewWindowStateChangedEvent(
					w.ID(), w.PID(), window.StateActive.String(), window.StateIdle.String()))
			}
		}
	}

	w.ClearFailures()
}

// checkStructure verifies the window still carries its structural anchor,
// the input field. Indicators and rule controls come and go with the
// window's activity, but the input field is always present in a healthy
// window; a sustained failure to find it means the UI changed beyond
// every heuristic and feeds the unrecoverable streak.
func (m *Monitor) checkStructure(ctx context.Context, w *window.TrackedWindow) error {
	_, err := m.locators.ResolveRequired(ctx, element.TypeInputField, w.PID())
	return err
}

// observe probes the generating indicator and captures the window's text
// snapshot. An absent indicator is a normal observation; only backend
// failures return an error.
func (m *Monitor) observe(ctx context.Context, w *window.TrackedWindow) (bool, string, error) {
	h, err := m.locators.Resolve(ctx, element.TypeGeneratingIndicator, w.PID())
	if err != nil {
		return false, "", err
	}
	if h == (element.Handle{}) {
		return false, "", nil
	}

	text, err := m.backend.ReadText(ctx, h)
	if err != nil {
		if errors.Is(err, errors.ErrElementNotFound) {
			// Vanished between resolve and read; treat as absent.
			m.locators.Invalidate(element.TypeGeneratingIndicator, w.PID())
			return false, "", nil
		}
		return false, "", err
	}
	return true, text, nil
}

// evaluateRules runs the rules in registration order; the first rule that
// acts short-circuits the rest and moves the window through the
// intervening and observation states.
func (m *Monitor) evaluateRules(ctx context.Context, app *window.TrackedApp, w *window.TrackedWindow) (bool, error) {
	ec := &rule.EvalContext{
		WindowID:   w.ID(),
		PID:        w.PID(),
		Text:       w.LastText(),
		Backend:    m.backend,
		Locators:   m.locators,
		Counters:   w.Counters(),
		Bus:        m.bus,
		Logger:     m.logger,
		WarnMargin: m.opts.WarnMargin,
	}

	for _, r := range m.rules {
		acted, err := r.Evaluate(ctx, ec)
		if err != nil {
			return false, err
		}
		if !acted {
			continue
		}

		limitReached := w.Counters().Get(r.Name()).AtCeiling()

		var prev, next window.State
		applied := false
		w.WithLock(func(machine *window.Machine) {
			if machine.State().IsPaused() || machine.State().IsTerminal() {
				return
			}
			prev = machine.State()
			if machine.BeginIntervention() {
				machine.CompleteIntervention(true, limitReached)
			}
			next = machine.State()
			applied = true
		})
		if applied && prev != next {
			m.publish(event.NewWindowStateChangedEvent(w.ID(), w.PID(), prev.String(), next.String()))
		}

		w.TouchIntervention()
		w.NoteActivity()
		app.AddInterventions(1)
		m.sessionInterventions.Add(1)
		return true, nil
	}
	return false, nil
}

// noteWindowFailure counts one failed supervision pass; a sustained streak
// parks the window in the unrecoverable pause.
func (m *Monitor) noteWindowFailure(w *window.TrackedWindow, err error) {
	streak := w.NoteFailure()
	log := m.logger.WithWindow(w.ID())
	if errors.IsRetryable(err) {
		log.Warn("supervision pass failed",
			"error", err,
			"severity", errors.GetSeverity(err).String(),
			"consecutive_failures", streak)
	} else {
		log.Error("supervision pass failed",
			"error", err,
			"severity", errors.GetSeverity(err).String(),
			"consecutive_failures", streak)
	}

	if streak < m.opts.UnrecoverableThreshold {
		return
	}

	var prev window.State
	var changed bool
	w.WithLock(func(machine *window.Machine) {
		prev = machine.State()
		changed = machine.PauseUnrecoverable()
	})
	if changed {
		log.Error("window paused as unrecoverable",
			"consecutive_failures", streak)
		m.publish(event.NewWindowStateChangedEvent(
			w.ID(), w.PID(), prev.String(), window.StatePausedUnrecoverable.String()))
	}
}
